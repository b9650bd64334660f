package process

import (
	"fmt"
	"time"
)

// State is the lifecycle state of a ManagedProcess. It only moves forward:
// NotStarted, Running, Terminated.
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ExitKind records how a process came to terminate.
type ExitKind int

const (
	// ExitNatural means the process exited on its own.
	ExitNatural ExitKind = iota
	// ExitDestroyed means the process was stopped by Destroy.
	ExitDestroyed
	// ExitSignaled means the process was killed by a signal it was not sent by Destroy.
	ExitSignaled
)

func (k ExitKind) String() string {
	switch k {
	case ExitNatural:
		return "natural"
	case ExitDestroyed:
		return "destroyed"
	case ExitSignaled:
		return "signaled"
	default:
		return fmt.Sprintf("exit_kind(%d)", int(k))
	}
}

// ExitOutcome is recorded once, when the process becomes Terminated.
type ExitOutcome struct {
	// Code is the exit code. For signal deaths on Unix it is 128+signal.
	// A forced outcome has code -1.
	Code int
	Kind ExitKind
	// Signal names the terminating signal, if any.
	Signal string
	// Forced is set when Destroy gave up waiting and marked the process
	// terminated without observing its exit.
	Forced bool
	// Runtime is the wall-clock time between start and exit.
	Runtime time.Duration
}

func (o ExitOutcome) String() string {
	s := fmt.Sprintf("exit code %d (%s", o.Code, o.Kind)
	if o.Signal != "" {
		s += ", " + o.Signal
	}
	if o.Forced {
		s += ", forced"
	}
	return s + ")"
}
