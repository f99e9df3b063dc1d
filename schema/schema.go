package schema

import "time"

// ADC range of the acquisition hardware (12-bit).
const (
	ValueMin = 0
	ValueMax = 4095
)

// Sample is one scalar reading on one channel. Immutable once created.
type Sample struct {
	Timestamp time.Time
	Value     int
}

// Frame is one decoded wire message: one clamped value per channel, channel
// index = position.
type Frame []int

// Broker event names, usable as subscription filters.
const (
	FrameEventName  = "frame"
	StatusEventName = "status"
)

// FrameEvent is published on the broker for every accepted frame.
type FrameEvent struct {
	Timestamp time.Time
	Values    Frame
	// Batch is set for the single-channel batched variant, where Values
	// holds time-sequential samples of one channel rather than one sample
	// per channel.
	Batch bool
	// Payload is the raw wire line length in bytes, for per-batch stats.
	Payload int
}

func (e *FrameEvent) Name() string {
	return FrameEventName
}

// ConnState describes the lifecycle of one transport connection.
type ConnState string

const (
	StateConnecting ConnState = "connecting"
	StateActive     ConnState = "active"
	StateDraining   ConnState = "draining"
	StateClosed     ConnState = "closed"
)

// StatusEvent is published on transport state transitions and periodic
// statistics refreshes.
type StatusEvent struct {
	Timestamp time.Time
	State     ConnState
	Peer      string
	Detail    string
}

func (e *StatusEvent) Name() string {
	return StatusEventName
}
