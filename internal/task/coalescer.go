// Package task provides the coalescing scheduler shared by the file
// persister, the document mirror and the nested-store composition: any
// number of mark-dirty signals within a quiet window collapse into exactly
// one flush.
package task

import (
	"sync"
	"time"
)

const defaultQuietWindow = 500 * time.Millisecond

// CoalescerConfig configures a Coalescer.
type CoalescerConfig struct {
	// QuietWindow is how long after the last Mark the flush runs.
	// Defaults to 500ms.
	QuietWindow time.Duration
	// Flush runs outside any lock, at most once per quiet period. Required.
	Flush func()
}

// Coalescer debounces repeated dirty signals into single flushes. It is
// safe for concurrent use.
type Coalescer struct {
	mu      sync.Mutex
	window  time.Duration
	flush   func()
	timer   *time.Timer
	pending bool
	stopped bool
}

// NewCoalescer builds a Coalescer; a nil Flush yields a no-op scheduler so
// callers need no nil checks when a concern is disabled.
func NewCoalescer(cfg CoalescerConfig) *Coalescer {
	window := cfg.QuietWindow
	if window <= 0 {
		window = defaultQuietWindow
	}
	flush := cfg.Flush
	if flush == nil {
		flush = func() {}
	}
	return &Coalescer{window: window, flush: flush}
}

// Mark signals dirty state and (re)starts the quiet window.
func (c *Coalescer) Mark() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.pending = true
	if c.timer == nil {
		c.timer = time.AfterFunc(c.window, c.fire)
		return
	}
	c.timer.Reset(c.window)
}

// Flush runs any pending work immediately, cancelling the timer.
func (c *Coalescer) Flush() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	run := c.pending
	c.pending = false
	c.mu.Unlock()
	if run {
		c.flush()
	}
}

// Stop drains pending work and rejects further marks.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
	}
	run := c.pending
	c.pending = false
	c.mu.Unlock()
	if run {
		c.flush()
	}
}

func (c *Coalescer) fire() {
	c.mu.Lock()
	run := c.pending && !c.stopped
	c.pending = false
	c.mu.Unlock()
	if run {
		c.flush()
	}
}
