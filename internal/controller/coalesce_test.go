package controller

import (
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func TestCoalescerFirstEmissionPasses(t *testing.T) {
	clock := newFakeClock()
	co := newCoalescer(500 * time.Millisecond)
	co.now = clock.Now

	var got []int
	co.Offer("a", func() { got = append(got, 1) })
	if len(got) != 1 {
		t.Fatalf("emissions = %d, want immediate first emission", len(got))
	}
}

func TestCoalescerHoldsInsideWindowLastWins(t *testing.T) {
	clock := newFakeClock()
	co := newCoalescer(500 * time.Millisecond)
	co.now = clock.Now

	var got []int
	co.Offer("a", func() { got = append(got, 1) })

	clock.Advance(100 * time.Millisecond)
	co.Offer("a", func() { got = append(got, 2) })
	clock.Advance(100 * time.Millisecond)
	co.Offer("a", func() { got = append(got, 3) })
	if len(got) != 1 {
		t.Fatalf("emissions inside window = %d, want 1", len(got))
	}

	// Flush before the window reopens does nothing.
	co.Flush()
	if len(got) != 1 {
		t.Fatalf("emissions after early flush = %d, want 1", len(got))
	}

	clock.Advance(300 * time.Millisecond)
	co.Flush()
	if len(got) != 2 || got[1] != 3 {
		t.Fatalf("emissions = %v, want last held value 3", got)
	}
}

func TestCoalescerKeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	co := newCoalescer(500 * time.Millisecond)
	co.now = clock.Now

	var a, b int
	co.Offer("a", func() { a++ })
	co.Offer("b", func() { b++ })
	if a != 1 || b != 1 {
		t.Errorf("a = %d, b = %d, want both keys to emit immediately", a, b)
	}
}

func TestCoalescerZeroIntervalPassesEverything(t *testing.T) {
	co := newCoalescer(0)

	var n int
	co.Offer("a", func() { n++ })
	co.Offer("a", func() { n++ })
	if n != 2 {
		t.Errorf("emissions = %d, want 2 with no rate limit", n)
	}
}
