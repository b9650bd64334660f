// Package metrics records supervisor activity: process lifecycle, destroy
// escalation, console throughput and pattern waits.
package metrics

import "time"

// Collector receives supervisor events. Implementations must be safe for
// concurrent use; the supervisor calls them from its waiter and capture
// goroutines.
type Collector interface {
	// StateTransition records a lifecycle transition for a process
	StateTransition(process, from, to string)

	// ProcessExited records how a process ended and how long it ran
	ProcessExited(process, kind string, code int, runtime time.Duration)

	// DestroyDuration records how long a destroy took and whether it had to give up
	DestroyDuration(process string, duration time.Duration, forced bool)

	// ConsoleLine records one captured console line
	ConsoleLine(process, stream string)

	// PatternWait records the outcome of a console wait ("matched", "never_matched", "timeout")
	PatternWait(process, outcome string, duration time.Duration)

	// ProcessError records an error for a process
	ProcessError(process, errorType string)
}

// noopCollector is a no-op implementation of Collector
type noopCollector struct{}

func (noopCollector) StateTransition(process, from, to string)                            {}
func (noopCollector) ProcessExited(process, kind string, code int, runtime time.Duration) {}
func (noopCollector) DestroyDuration(process string, duration time.Duration, forced bool) {}
func (noopCollector) ConsoleLine(process, stream string)                                  {}
func (noopCollector) PatternWait(process, outcome string, duration time.Duration)         {}
func (noopCollector) ProcessError(process, errorType string)                              {}

// Noop returns a Collector that discards everything
func Noop() Collector {
	return noopCollector{}
}
