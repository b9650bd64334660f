package capture

import (
	"strings"
	"sync"
)

// DefaultMaxLines is the console buffer capacity used when none is configured.
const DefaultMaxLines = 100

// Buffer is a thread-safe circular buffer of console lines.
//
// It retains the most recent Cap() lines in arrival order. When full, each
// appended line evicts the oldest one.
//
// # How It Works
//
// The buffer keeps a fixed slice of slots plus two values:
//   - start: index of the oldest line
//   - count: number of lines stored
//
// Visual example with a 3-line buffer:
//
//	Initial:      [_, _, _]  start=0, count=0
//	Append a,b:   [a, b, _]  start=0, count=2
//	Append c:     [a, b, c]  start=0, count=3
//	Append d:     [d, b, c]  start=1, count=3 → Lines() returns b, c, d
//
// # Thread Safety
//
// All methods are safe for concurrent use. Append, Resize and Reset take the
// write lock; Lines, String, Len and Cap take the read lock, so readers
// never observe a partially appended line.
type Buffer struct {
	mu    sync.RWMutex
	lines []string
	start int
	count int
}

// NewBuffer creates a Buffer holding at most maxLines lines.
// A non-positive maxLines falls back to DefaultMaxLines.
func NewBuffer(maxLines int) *Buffer {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	return &Buffer{lines: make([]string, maxLines)}
}

// Append adds a line, evicting the oldest line when the buffer is full.
func (b *Buffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.append(line)
}

// append adds a line (caller must hold the write lock).
func (b *Buffer) append(line string) {
	size := len(b.lines)
	if b.count < size {
		b.lines[(b.start+b.count)%size] = line
		b.count++
		return
	}
	b.lines[b.start] = line
	b.start = (b.start + 1) % size
}

// Lines returns a copy of the buffered lines, oldest first.
func (b *Buffer) Lines() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot()
}

// snapshot copies the buffered lines (caller must hold a lock).
func (b *Buffer) snapshot() []string {
	out := make([]string, b.count)
	size := len(b.lines)
	for i := 0; i < b.count; i++ {
		out[i] = b.lines[(b.start+i)%size]
	}
	return out
}

// String joins the buffered lines with "\n". Each line, including the last,
// is followed by a newline. An empty buffer yields "".
func (b *Buffer) String() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.count == 0 {
		return ""
	}
	var sb strings.Builder
	size := len(b.lines)
	for i := 0; i < b.count; i++ {
		sb.WriteString(b.lines[(b.start+i)%size])
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Len returns the number of lines currently stored.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Cap returns the maximum number of lines the buffer retains.
func (b *Buffer) Cap() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines)
}

// Resize changes the capacity. Shrinking discards the oldest lines
// immediately. Non-positive capacities are ignored and return false.
func (b *Buffer) Resize(maxLines int) bool {
	if maxLines <= 0 {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.snapshot()
	if len(kept) > maxLines {
		kept = kept[len(kept)-maxLines:]
	}
	lines := make([]string, maxLines)
	copy(lines, kept)

	b.lines = lines
	b.start = 0
	b.count = len(kept)
	return true
}

// Reset discards all stored lines while keeping the capacity.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	clear(b.lines)
	b.start = 0
	b.count = 0
}
