package controller

import (
	"context"
	"sync"
	"time"
)

// coalescer rate-limits per-key emissions: the first emission for a key
// passes immediately, later ones inside the window are held and the
// last one wins when the window reopens. With a zero interval every
// emission passes through.
type coalescer struct {
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	last    map[string]time.Time
	pending map[string]func()
}

func newCoalescer(interval time.Duration) *coalescer {
	return &coalescer{
		interval: interval,
		now:      time.Now,
		last:     make(map[string]time.Time),
		pending:  make(map[string]func()),
	}
}

// Offer emits immediately when the key's window is open, otherwise
// replaces any held emission for the key.
func (c *coalescer) Offer(key string, emit func()) {
	if c.interval <= 0 {
		emit()
		return
	}

	c.mu.Lock()
	now := c.now()
	if now.Sub(c.last[key]) >= c.interval {
		c.last[key] = now
		delete(c.pending, key)
		c.mu.Unlock()
		emit()
		return
	}
	c.pending[key] = emit
	c.mu.Unlock()
}

// Flush emits every held value whose window has reopened.
func (c *coalescer) Flush() {
	c.mu.Lock()
	now := c.now()
	var due []func()
	for key, emit := range c.pending {
		if now.Sub(c.last[key]) >= c.interval {
			c.last[key] = now
			delete(c.pending, key)
			due = append(due, emit)
		}
	}
	c.mu.Unlock()

	for _, emit := range due {
		emit()
	}
}

// Run flushes periodically until the context is cancelled. No goroutine
// is needed when the interval is zero.
func (c *coalescer) Run(ctx context.Context) {
	if c.interval <= 0 {
		return
	}
	period := c.interval / 4
	if period < 10*time.Millisecond {
		period = 10 * time.Millisecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Flush()
		}
	}
}
