package utils

import (
	"strings"
	"sync"
)

// RingWriter is an io.Writer that retains the most recent lines written
// through it. It backs the recent-logs debugging accessor.
type RingWriter struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

// NewRingWriter creates a ring retaining up to capacity lines
func NewRingWriter(capacity int) *RingWriter {
	if capacity <= 0 {
		capacity = 100
	}
	return &RingWriter{
		lines: make([]string, capacity),
	}
}

// Write implements io.Writer. Input is split on newlines; empty trailing
// fragments are ignored.
func (rw *RingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	for _, line := range strings.Split(string(p), "\n") {
		if line == "" {
			continue
		}
		rw.lines[rw.next] = line
		rw.next++
		if rw.next == len(rw.lines) {
			rw.next = 0
			rw.full = true
		}
	}

	return len(p), nil
}

// Recent returns up to n of the most recent lines, oldest first.
// n <= 0 returns everything retained.
func (rw *RingWriter) Recent(n int) []string {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	var ordered []string
	if rw.full {
		ordered = append(ordered, rw.lines[rw.next:]...)
		ordered = append(ordered, rw.lines[:rw.next]...)
	} else {
		ordered = append(ordered, rw.lines[:rw.next]...)
	}

	if n > 0 && len(ordered) > n {
		ordered = ordered[len(ordered)-n:]
	}

	// Copy so callers cannot mutate the ring
	out := make([]string, len(ordered))
	copy(out, ordered)
	return out
}

// Len returns how many lines are currently retained
func (rw *RingWriter) Len() int {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.full {
		return len(rw.lines)
	}
	return rw.next
}
