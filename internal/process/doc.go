// Package process supervises external processes.
//
// A ManagedProcess is built from a Builder, started once, and moves through
// three states: not_started, running and terminated. While it runs, its
// stdout and stderr are read line by line into a bounded console buffer that
// callers can wait on:
//
//	p, err := process.NewBuilder("/usr/sbin/mysqld").
//		AddArgument("--no-defaults").
//		AddFileArgument("--datadir", dataDir).
//		Build()
//	if err != nil {
//		return err
//	}
//	if err := p.Start(ctx); err != nil {
//		return err
//	}
//	if err := p.WaitForConsoleMessageMax("ready for connections", 30*time.Second); err != nil {
//		_ = p.Destroy()
//		return err
//	}
//
// Destroy stops a running process. On Unix the process runs in its own
// process group, which receives SIGTERM first and SIGKILL once the grace
// period has passed. On Windows the process is killed directly.
//
// Waits on the console consider lines still in the buffer, so waiting for a
// message that has already been printed succeeds immediately. A wait fails
// with a PatternNeverMatchedError once the process terminates without
// printing a matching line.
package process
