// Package clock provides the instrument's single logical timeline: deferred
// callbacks ordered by due time and fired when the owner advances the clock.
package clock

import (
	"container/heap"
	"time"
)

// Handle identifies a scheduled callback. The zero Handle is never issued.
type Handle uint64

type timer struct {
	at     time.Duration
	seq    uint64
	handle Handle
	fn     func()
}

type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x interface{}) { *h = append(*h, x.(*timer)) }
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Clock is not safe for concurrent use; the owner serializes access.
type Clock struct {
	now     time.Duration
	queue   timerHeap
	pending map[Handle]*timer
	nextSeq uint64
}

func New() *Clock {
	return &Clock{pending: make(map[Handle]*timer)}
}

// Now returns the elapsed time since the clock was created.
func (c *Clock) Now() time.Duration {
	return c.now
}

// AfterFunc schedules fn to run once the clock reaches Now()+d.
// Negative delays are treated as zero. Callbacks due at the same instant
// run in scheduling order.
func (c *Clock) AfterFunc(d time.Duration, fn func()) Handle {
	if d < 0 {
		d = 0
	}
	c.nextSeq++
	t := &timer{at: c.now + d, seq: c.nextSeq, handle: Handle(c.nextSeq), fn: fn}
	heap.Push(&c.queue, t)
	c.pending[t.handle] = t
	return t.handle
}

// Cancel removes a pending callback. It reports whether the callback was
// still pending.
func (c *Clock) Cancel(h Handle) bool {
	t, ok := c.pending[h]
	if !ok {
		return false
	}
	delete(c.pending, h)
	t.fn = nil
	return true
}

// Pending returns the number of callbacks still waiting to fire.
func (c *Clock) Pending() int {
	return len(c.pending)
}

// Advance moves the clock forward by d, firing due callbacks.
func (c *Clock) Advance(d time.Duration) {
	if d < 0 {
		return
	}
	c.AdvanceTo(c.now + d)
}

// AdvanceTo moves the clock to t, firing every callback due at or before t in
// time order. Callbacks scheduled by callbacks are honoured within the same
// call when they fall inside the window.
func (c *Clock) AdvanceTo(t time.Duration) {
	for c.queue.Len() > 0 {
		next := c.queue[0]
		if next.at > t {
			break
		}
		heap.Pop(&c.queue)
		if next.fn == nil {
			continue
		}
		delete(c.pending, next.handle)
		if next.at > c.now {
			c.now = next.at
		}
		fn := next.fn
		next.fn = nil
		fn()
	}
	if t > c.now {
		c.now = t
	}
}
