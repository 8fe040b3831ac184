package domain

import (
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventWrite    EventType = "write"
	EventCompute  EventType = "compute"
	EventFinalize EventType = "finalize"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Store     string    `json:"store"`
}

// WriteEvent is emitted for every write that changed a draft.
type WriteEvent struct {
	EventBase
	Prop   string `json:"prop"`
	Delete bool   `json:"delete,omitempty"`
}

// ComputeEvent is emitted after a computed getter ran.
type ComputeEvent struct {
	EventBase
	Prop     string        `json:"prop"`
	Changed  bool          `json:"changed"`
	Duration time.Duration `json:"duration"`
}

// FinalizeEvent summarizes one batched commit-and-notify pass.
// Store is empty; Stores lists every store that committed changes.
type FinalizeEvent struct {
	EventBase
	Stores    []string      `json:"stores"`
	Changed   []string      `json:"changed"`
	Notified  int           `json:"notified"`
	Listeners int           `json:"listeners"`
	Duration  time.Duration `json:"duration"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnWrite    func(*WriteEvent)
	OnCompute  func(*ComputeEvent)
	OnFinalize func(*FinalizeEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnWrite: func(e *WriteEvent) {
			if h.OnWrite != nil {
				h.OnWrite(e)
			}
			if other.OnWrite != nil {
				other.OnWrite(e)
			}
		},
		OnCompute: func(e *ComputeEvent) {
			if h.OnCompute != nil {
				h.OnCompute(e)
			}
			if other.OnCompute != nil {
				other.OnCompute(e)
			}
		},
		OnFinalize: func(e *FinalizeEvent) {
			if h.OnFinalize != nil {
				h.OnFinalize(e)
			}
			if other.OnFinalize != nil {
				other.OnFinalize(e)
			}
		},
	}
}
