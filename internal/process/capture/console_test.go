package capture

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func resolved(w *Watch) bool {
	select {
	case <-w.Done():
		return true
	default:
		return false
	}
}

func TestConsole_WatchMatchesBufferedLine(t *testing.T) {
	c := NewConsole(10)
	c.Write("booting")
	c.Write("ready for connections")

	w := c.Watch(Contains("ready"))
	if !resolved(w) {
		t.Fatal("watch on an already-buffered line should resolve immediately")
	}
	if !w.Matched() || w.Line() != "ready for connections" {
		t.Errorf("Matched() = %v, Line() = %q", w.Matched(), w.Line())
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", c.Pending())
	}
}

func TestConsole_WatchResolvesOnArrival(t *testing.T) {
	c := NewConsole(10)
	w := c.Watch(Contains("ready"))

	if resolved(w) {
		t.Fatal("watch resolved before any line arrived")
	}
	if w.Matched() {
		t.Error("Matched() should be false while pending")
	}

	c.Write("still booting")
	if resolved(w) {
		t.Fatal("watch resolved on a non-matching line")
	}

	c.Write("ready 1")
	c.Write("ready 2")
	if !resolved(w) || w.Line() != "ready 1" {
		t.Errorf("watch should resolve on the first matching line, got %q", w.Line())
	}
}

func TestConsole_CloseResolvesPendingAsUnmatched(t *testing.T) {
	c := NewConsole(10)
	w := c.Watch(Contains("never"))

	c.Close()
	if !resolved(w) {
		t.Fatal("Close should resolve pending watches")
	}
	if w.Matched() {
		t.Error("Matched() = true after Close without a match")
	}

	late := c.Watch(Contains("never"))
	if !resolved(late) || late.Matched() {
		t.Error("watch registered after Close should resolve unmatched")
	}

	c.Write("never mind")
	if c.Buffer().Len() != 0 {
		t.Error("Write after Close should be dropped")
	}
	c.Close()
}

func TestConsole_WatchAfterCloseStillSeesBuffer(t *testing.T) {
	c := NewConsole(10)
	c.Write("hello")
	c.Close()

	w := c.Watch(Contains("hello"))
	if !w.Matched() {
		t.Error("watch after Close should match buffered lines")
	}
}

func TestConsole_Unwatch(t *testing.T) {
	c := NewConsole(10)
	w := c.Watch(Contains("x"))
	c.Unwatch(w)

	c.Write("x")
	if resolved(w) {
		t.Error("unwatched watch should not resolve")
	}
	if c.LinesWritten() != 1 {
		t.Errorf("LinesWritten() = %d, want 1", c.LinesWritten())
	}
}

// Every watcher registered while lines are streaming must resolve as matched
// once its line has been written, wherever registration falls relative to it.
func TestConsole_NoLostWakeup(t *testing.T) {
	for round := 0; round < 50; round++ {
		c := NewConsole(1000)
		var wg sync.WaitGroup

		const lines = 200
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < lines; i++ {
				c.Write(fmt.Sprintf("line-%03d", i))
			}
		}()

		watches := make([]*Watch, 20)
		for i := range watches {
			watches[i] = c.Watch(Contains(fmt.Sprintf("line-%03d", i*10)))
		}

		wg.Wait()
		for i, w := range watches {
			select {
			case <-w.Done():
				if !w.Matched() {
					t.Fatalf("round %d: watch %d resolved unmatched", round, i)
				}
			case <-time.After(time.Second):
				t.Fatalf("round %d: watch %d never resolved", round, i)
			}
		}
	}
}
