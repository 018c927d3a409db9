package engine

import (
	"sync"
	"time"

	"github.com/yangwenmai/sofort/internal/model"
)

// EventType classifies controller events.
type EventType string

// Event types
const (
	EventState    EventType = "state"
	EventNotice   EventType = "notice"
	EventArtifact EventType = "artifact"
)

// Event is pushed to subscribers on every state change, notice and new
// artifact. Front ends drive the developing animation from these.
type Event struct {
	Type       EventType   `json:"type"`
	Time       string      `json:"t"`
	State      model.State `json:"state,omitempty"`
	ArtifactID string      `json:"artifact_id,omitempty"`
	Label      string      `json:"label,omitempty"`
	Level      string      `json:"level,omitempty"`
	Message    string      `json:"message,omitempty"`
}

// Broadcaster distributes events to multiple subscribers.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[chan Event]struct{}
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[chan Event]struct{})}
}

// Subscribe returns a channel that receives events and a cleanup function.
// The caller must call the cleanup when done (e.g. on client disconnect).
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Publish sends e to all subscribers. Slow subscribers miss events.
func (b *Broadcaster) Publish(e Event) {
	if e.Time == "" {
		e.Time = time.Now().UTC().Format(time.RFC3339Nano)
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- e:
		default:
		}
	}
}
