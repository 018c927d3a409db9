// Package metrics records capture pipeline metrics.
package metrics

import "time"

// Recorder defines the interface for recording pipeline metrics
type Recorder interface {
	// RecordCapture records a finished capture attempt by source kind
	RecordCapture(source string, success bool, duration time.Duration)

	// RecordTransform records a call to the image transform service
	RecordTransform(success bool, duration time.Duration)

	// RecordExport records a share/download packaging attempt
	RecordExport(mode string, success bool, duration time.Duration)

	// RecordDroppedCapture counts capture requests ignored because one was in flight
	RecordDroppedCapture()

	// SetState publishes the current controller state
	SetState(state string)
}

// Nop discards all metrics.
type Nop struct{}

func (Nop) RecordCapture(string, bool, time.Duration) {}
func (Nop) RecordTransform(bool, time.Duration)       {}
func (Nop) RecordExport(string, bool, time.Duration)  {}
func (Nop) RecordDroppedCapture()                     {}
func (Nop) SetState(string)                           {}
