package model

import "fmt"

// State is the phase of the capture controller.
type State string

// Controller state constants
const (
	StateIdle      State = "IDLE"
	StateCapturing State = "CAPTURING"
	StatePrinting  State = "PRINTING"
	StateError     State = "ERROR"
)

// transitions lists the legal moves out of each state.
var transitions = map[State][]State{
	StateIdle:      {StateCapturing},
	StateCapturing: {StatePrinting, StateError, StateIdle},
	StatePrinting:  {StateIdle, StateCapturing},
	StateError:     {StateIdle},
}

// ValidateTransition returns an error if moving from s to next is not allowed.
// PRINTING -> CAPTURING is only taken by a restyle of the current artifact.
func (s State) ValidateTransition(next State) error {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return nil
		}
	}
	return fmt.Errorf("invalid transition %s -> %s", s, next)
}
