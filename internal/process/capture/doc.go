// Package capture provides console capture for supervised processes.
//
// The package drains a process's stdout and stderr concurrently into a
// bounded, line-oriented console and lets callers wait for lines matching
// a pattern.
//
// # Main Types
//
//   - [Buffer]: bounded circular buffer of lines, oldest evicted first
//   - [Matcher]: line predicate ([Contains], [Regexp], [Glob])
//   - [Console]: Buffer plus the set of pending [Watch] registrations
//   - [Capture]: two reader goroutines feeding a Console and optional [LineSink]s
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Buffer reads take
// only the buffer's read lock, so snapshotting the console never waits for
// pattern evaluation.
//
// # Basic Usage
//
//	console := capture.NewConsole(100)
//	c := capture.New(console)
//	c.Start(stdoutPipe, stderrPipe)
//
//	w := console.Watch(capture.Contains("ready"))
//	select {
//	case <-w.Done():
//		if !w.Matched() {
//			// console closed without the line
//		}
//	case <-ctx.Done():
//		console.Unwatch(w)
//	}
package capture
