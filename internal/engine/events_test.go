package engine

import (
	"testing"

	"github.com/yangwenmai/sofort/internal/model"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster()
	a, unsubA := b.Subscribe()
	c, unsubC := b.Subscribe()
	defer unsubC()

	b.Publish(Event{Type: EventState, State: model.StateCapturing})

	for _, ch := range []<-chan Event{a, c} {
		e := <-ch
		if e.Type != EventState || e.State != model.StateCapturing {
			t.Errorf("event = %+v", e)
		}
		if e.Time == "" {
			t.Error("event time not stamped")
		}
	}

	unsubA()
	unsubA() // idempotent
	if _, ok := <-a; ok {
		t.Error("channel should be closed after unsubscribe")
	}
	b.Publish(Event{Type: EventNotice, Message: "after"})
	if e := <-c; e.Message != "after" {
		t.Errorf("remaining subscriber got %+v", e)
	}
}

func TestBroadcaster_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroadcaster()
	_, unsub := b.Subscribe()
	defer unsub()

	for i := 0; i < 200; i++ {
		b.Publish(Event{Type: EventState, State: model.StateIdle})
	}
}
