package process

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/mproc/internal/errors"
	"github.com/Iron-Ham/mproc/internal/process/capture"
)

func TestWaitForConsoleMessage_AlreadyPrinted(t *testing.T) {
	p := mustStart(t, shell(t, "echo 'mysqld: ready for connections.'; sleep 30"))

	if err := p.WaitForConsoleMessageMax("ready for connections", 5*time.Second); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	// The line is still buffered, so a second wait returns at once.
	start := time.Now()
	if err := p.WaitForConsoleMessageMax("ready for connections", 5*time.Second); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("second wait took %v, want immediate", elapsed)
	}
}

func TestWaitForConsoleMessage_AfterExit(t *testing.T) {
	p := mustStart(t, shell(t, "echo hello; exit 0"))
	if _, err := p.WaitForExitMax(5 * time.Second); err != nil {
		t.Fatalf("WaitForExitMax: %v", err)
	}

	if err := p.WaitForConsoleMessageMax("hello", time.Second); err != nil {
		t.Errorf("wait for printed line after exit = %v, want nil", err)
	}

	start := time.Now()
	err := p.WaitForConsoleMessageMax("never printed", 5*time.Second)
	if !errors.Is(err, errors.ErrPatternNeverMatched) {
		t.Fatalf("wait for missing line after exit = %v, want ErrPatternNeverMatched", err)
	}
	if errors.IsTimeout(err) {
		t.Errorf("wait after exit reported a timeout: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("wait after exit took %v, want immediate", elapsed)
	}
}

func TestWaitForConsoleMessage_ProcessExitsWithoutMatch(t *testing.T) {
	p := mustStart(t, shell(t, "echo starting; sleep 0.2; echo fatal error >&2; exit 1"))

	err := p.WaitForConsoleMessageMax("ready", 10*time.Second)
	var pnm *errors.PatternNeverMatchedError
	if !errors.As(err, &pnm) {
		t.Fatalf("wait = %v, want PatternNeverMatchedError", err)
	}
	if errors.IsTimeout(err) {
		t.Errorf("exit without match reported as timeout: %v", err)
	}
	if pnm.Pattern != `"ready"` {
		t.Errorf("Pattern = %q", pnm.Pattern)
	}
	if pnm.Process != p.LongName() {
		t.Errorf("Process = %q, want %q", pnm.Process, p.LongName())
	}
	if len(pnm.RecentOutput) != 2 {
		t.Errorf("RecentOutput = %q, want both console lines", pnm.RecentOutput)
	}
}

func TestWaitForConsoleMessage_Timeout(t *testing.T) {
	p := mustStart(t, shell(t, "sleep 30"))

	err := p.WaitForConsoleMessageMax("ready", 100*time.Millisecond)
	if !errors.Is(err, errors.ErrPatternNeverMatched) {
		t.Fatalf("wait = %v, want ErrPatternNeverMatched", err)
	}
	if !errors.IsTimeout(err) {
		t.Errorf("wait = %v, want timeout cause", err)
	}
	if !p.IsAlive() {
		t.Error("timed out wait affected the process")
	}
	if n := p.console.Pending(); n != 0 {
		t.Errorf("pending watches after timeout = %d, want 0", n)
	}
}

func TestWaitForConsoleMessage_Canceled(t *testing.T) {
	p := mustStart(t, shell(t, "sleep 30"))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	err := p.WaitForConsoleMessage(ctx, "ready")
	if !errors.Is(err, errors.ErrCanceled) {
		t.Errorf("wait = %v, want ErrCanceled", err)
	}
	if errors.IsTimeout(err) {
		t.Errorf("cancellation reported as timeout: %v", err)
	}
}

func TestWaitForConsoleMatch_Matchers(t *testing.T) {
	p := mustStart(t, shell(t, "echo 'InnoDB: 128 buffer pool(s) loaded'; echo 'port: 3306  socket: /tmp/mysql.sock'; sleep 30"))

	re, err := capture.Regexp(`port: \d+`)
	if err != nil {
		t.Fatalf("Regexp: %v", err)
	}
	g, err := capture.Glob("InnoDB:*loaded")
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}

	for _, m := range []capture.Matcher{re, g, capture.Contains("socket")} {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.WaitForConsoleMatch(ctx, m); err != nil {
			t.Errorf("WaitForConsoleMatch(%s) = %v", m, err)
		}
		cancel()
	}
}

func TestWaitForConsoleMessage_LineArrivesDuringWait(t *testing.T) {
	p := mustStart(t, shell(t, "sleep 0.3; echo ready; sleep 30"))

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = p.WaitForConsoleMessageMax("ready", 5*time.Second)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("waiter %d: %v", i, err)
		}
	}
}

func TestWaitForExit_Timeout(t *testing.T) {
	p := mustStart(t, shell(t, "sleep 30"))

	_, err := p.WaitForExitMax(100 * time.Millisecond)
	if !errors.IsTimeout(err) {
		t.Fatalf("WaitForExitMax = %v, want timeout", err)
	}
	if !p.IsAlive() {
		t.Error("WaitForExitMax timeout should not stop the process")
	}
}

func TestWaitForSuccessExit(t *testing.T) {
	ok := mustStart(t, shell(t, "exit 0"))
	if _, err := ok.WaitForSuccessExit(context.Background()); err != nil {
		t.Errorf("WaitForSuccessExit(exit 0) = %v", err)
	}

	bad := mustStart(t, shell(t, "exit 2"))
	outcome, err := bad.WaitForSuccessExit(context.Background())
	if !errors.Is(err, errors.ErrNonZeroExit) {
		t.Errorf("WaitForSuccessExit(exit 2) = %v, want ErrNonZeroExit", err)
	}
	if outcome.Code != 2 {
		t.Errorf("outcome.Code = %d, want 2", outcome.Code)
	}
}

func TestWaitForExitMaxOrDestroy(t *testing.T) {
	t.Run("exits in time", func(t *testing.T) {
		p := mustStart(t, shell(t, "exit 0"))
		outcome, err := p.WaitForExitMaxOrDestroy(5 * time.Second)
		if err != nil {
			t.Fatalf("WaitForExitMaxOrDestroy: %v", err)
		}
		if outcome.Kind != ExitNatural {
			t.Errorf("Kind = %v, want natural", outcome.Kind)
		}
	})

	t.Run("destroyed after deadline", func(t *testing.T) {
		p := mustStart(t, shell(t, "sleep 30"))

		start := time.Now()
		outcome, err := p.WaitForExitMaxOrDestroy(200 * time.Millisecond)
		if err != nil {
			t.Fatalf("WaitForExitMaxOrDestroy: %v", err)
		}
		if elapsed := time.Since(start); elapsed > 3*time.Second {
			t.Errorf("took %v", elapsed)
		}
		if outcome.Kind != ExitDestroyed {
			t.Errorf("Kind = %v, want destroyed", outcome.Kind)
		}
		if p.State() != StateTerminated {
			t.Errorf("State = %v, want terminated", p.State())
		}
	})
}

func TestContextError(t *testing.T) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()
	if err := contextError(ctx, "op", start); !errors.IsTimeout(err) {
		t.Errorf("deadline: %v, want timeout", err)
	}

	ctx2, cancel2 := context.WithCancel(context.Background())
	cancel2()
	err := contextError(ctx2, "op", start)
	if !errors.Is(err, errors.ErrCanceled) || !errors.Is(err, context.Canceled) {
		t.Errorf("cancel: %v, want ErrCanceled wrapping context.Canceled", err)
	}
}
