package analysis

import (
	"time"

	"github.com/marcus/triage/internal/strategy"
)

// EventType classifies analysis lifecycle events.
type EventType int

const (
	EventRunStart EventType = iota // invocation accepted
	EventPhase                     // phase changed
	EventRunEnd                    // invocation finished, successfully or not
)

func (t EventType) String() string {
	switch t {
	case EventRunStart:
		return "run_start"
	case EventPhase:
		return "phase"
	case EventRunEnd:
		return "run_end"
	default:
		return "unknown"
	}
}

// Event carries data about an analysis lifecycle event.
type Event struct {
	Type      EventType
	Time      time.Time
	RunID     string
	Strategy  strategy.Strategy
	Phase     Phase
	TaskCount int
	Duration  time.Duration // for EventRunEnd
	Error     string        // for EventRunEnd on failure
	Report    *Report       // for EventRunEnd
}

// EventHandler receives analysis events. It is called synchronously from Run.
type EventHandler func(Event)
