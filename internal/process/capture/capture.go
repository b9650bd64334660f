package capture

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"

	"github.com/sourcegraph/conc"

	mperrors "github.com/Iron-Ham/mproc/internal/errors"
)

// MaxLineBytes is the longest line kept intact. Longer lines are split into
// MaxLineBytes-sized pieces.
const MaxLineBytes = 1024 * 1024

// LineSink receives every captured line as it arrives.
// Implementations must not block for long; they run on the capture goroutines.
type LineSink interface {
	WriteLine(stream Stream, line string)
}

// LineSinkFunc adapts a function to the LineSink interface.
type LineSinkFunc func(stream Stream, line string)

// WriteLine calls f(stream, line).
func (f LineSinkFunc) WriteLine(stream Stream, line string) {
	f(stream, line)
}

// Capture drains the stdout and stderr pipes of a process into a Console.
// Each stream is read on its own goroutine.
type Capture struct {
	console *Console
	sinks   []LineSink

	wg   conc.WaitGroup
	done chan struct{}

	mu      sync.Mutex
	pipes   []io.Closer
	stopped bool
	err     error
}

// New creates a Capture that feeds console and sinks.
func New(console *Console, sinks ...LineSink) *Capture {
	return &Capture{
		console: console,
		sinks:   sinks,
		done:    make(chan struct{}),
	}
}

// Start begins reading stdout and stderr. It must be called once.
func (c *Capture) Start(stdout, stderr io.ReadCloser) {
	c.mu.Lock()
	c.pipes = []io.Closer{stdout, stderr}
	c.mu.Unlock()

	c.wg.Go(func() { c.read(Stdout, stdout) })
	c.wg.Go(func() { c.read(Stderr, stderr) })

	go func() {
		if recovered := c.wg.WaitAndRecover(); recovered != nil {
			c.setErr(mperrors.NewCaptureError("", recovered.AsError()))
		}
		close(c.done)
	}()
}

// Done is closed once both readers have finished.
func (c *Capture) Done() <-chan struct{} {
	return c.done
}

// Stop closes the pipes, which makes any blocked reads return.
// It is safe to call more than once and before Start.
func (c *Capture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	c.stopped = true
	for _, p := range c.pipes {
		_ = p.Close()
	}
}

// Err returns the first read error observed, or nil.
func (c *Capture) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Capture) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *Capture) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func (c *Capture) read(stream Stream, r io.Reader) {
	br := bufio.NewReaderSize(r, 64*1024)
	var pending []byte

	for {
		chunk, err := br.ReadSlice('\n')
		pending = append(pending, chunk...)

		if errors.Is(err, bufio.ErrBufferFull) {
			for len(pending) >= MaxLineBytes {
				c.emit(stream, pending[:MaxLineBytes])
				pending = append(pending[:0], pending[MaxLineBytes:]...)
			}
			continue
		}

		if len(pending) > 0 {
			c.emit(stream, pending)
			pending = pending[:0]
		}

		if err == nil {
			continue
		}
		if err != io.EOF && !c.isStopped() && !errors.Is(err, fs.ErrClosed) {
			c.setErr(mperrors.NewCaptureError(string(stream), fmt.Errorf("read: %w", err)))
		}
		return
	}
}

func (c *Capture) emit(stream Stream, raw []byte) {
	raw = bytes.TrimSuffix(raw, []byte("\n"))
	raw = bytes.TrimSuffix(raw, []byte("\r"))
	line := string(raw)

	c.console.Write(line)
	for _, sink := range c.sinks {
		sink.WriteLine(stream, line)
	}
}
