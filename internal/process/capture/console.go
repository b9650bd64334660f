package capture

import "sync"

// Stream names one of the two captured output streams.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// Watch is a single registration of a Matcher against a Console.
// It resolves at most once: either with the first matching line or,
// when the Console closes first, as never matched.
type Watch struct {
	matcher Matcher
	done    chan struct{}

	// Written before done is closed, read only after.
	matched bool
	line    string
}

// Done is closed once the watch has resolved.
func (w *Watch) Done() <-chan struct{} {
	return w.done
}

// Matched reports whether a line satisfied the matcher.
// Only meaningful after Done is closed.
func (w *Watch) Matched() bool {
	select {
	case <-w.done:
		return w.matched
	default:
		return false
	}
}

// Line returns the line that satisfied the matcher, if any.
func (w *Watch) Line() string {
	if !w.Matched() {
		return ""
	}
	return w.line
}

// Matcher returns the matcher this watch was registered with.
func (w *Watch) Matcher() Matcher {
	return w.matcher
}

func (w *Watch) resolve(matched bool, line string) {
	w.matched = matched
	w.line = line
	close(w.done)
}

// Console is the console of one process: a bounded line Buffer plus the set
// of pending watches.
//
// Lines are appended and evaluated against the pending watches under the
// console's match lock, and Watch checks the buffered lines and registers
// under the same lock. A line therefore either is already buffered when a
// watch registers, or is evaluated against it on arrival; it cannot fall
// between the two.
type Console struct {
	buffer *Buffer

	mu      sync.Mutex
	watches map[*Watch]struct{}
	closed  bool
	lines   int64
}

// NewConsole creates a Console whose buffer retains maxLines lines.
func NewConsole(maxLines int) *Console {
	return &Console{
		buffer:  NewBuffer(maxLines),
		watches: make(map[*Watch]struct{}),
	}
}

// Buffer returns the console's line buffer.
func (c *Console) Buffer() *Buffer {
	return c.buffer
}

// Write records one line and resolves every pending watch it satisfies.
// Lines written after Close are dropped.
func (c *Console) Write(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.buffer.Append(line)
	c.lines++

	for w := range c.watches {
		if w.matcher.Match(line) {
			delete(c.watches, w)
			w.resolve(true, line)
		}
	}
}

// Watch registers m. If a buffered line already satisfies m the returned
// watch is resolved immediately. After Close, a watch that does not match a
// buffered line resolves as never matched.
func (c *Console) Watch(m Matcher) *Watch {
	w := &Watch{matcher: m, done: make(chan struct{})}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, line := range c.buffer.Lines() {
		if m.Match(line) {
			w.resolve(true, line)
			return w
		}
	}
	if c.closed {
		w.resolve(false, "")
		return w
	}
	c.watches[w] = struct{}{}
	return w
}

// Unwatch removes a pending watch without resolving it.
func (c *Console) Unwatch(w *Watch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.watches, w)
}

// Pending returns the number of unresolved watches.
func (c *Console) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.watches)
}

// LinesWritten returns the total number of lines written, including evicted ones.
func (c *Console) LinesWritten() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lines
}

// Close freezes the console and resolves all pending watches as never matched.
// Close is idempotent.
func (c *Console) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	for w := range c.watches {
		delete(c.watches, w)
		w.resolve(false, "")
	}
}

// Closed reports whether Close has been called.
func (c *Console) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
