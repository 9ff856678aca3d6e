package clock

import (
	"testing"
	"time"
)

func TestClockFiresInTimeThenInsertionOrder(t *testing.T) {
	c := New()
	var got []string
	c.AfterFunc(20*time.Millisecond, func() { got = append(got, "b") })
	c.AfterFunc(10*time.Millisecond, func() { got = append(got, "a") })
	c.AfterFunc(20*time.Millisecond, func() { got = append(got, "c") })

	c.Advance(15 * time.Millisecond)
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("after 15ms got %v, want [a]", got)
	}
	c.Advance(5 * time.Millisecond)
	if len(got) != 3 || got[1] != "b" || got[2] != "c" {
		t.Fatalf("after 20ms got %v, want [a b c]", got)
	}
	if c.Now() != 20*time.Millisecond {
		t.Fatalf("Now() = %v, want 20ms", c.Now())
	}
}

func TestClockCallbackSeesItsDueTime(t *testing.T) {
	c := New()
	var at time.Duration
	c.AfterFunc(7*time.Millisecond, func() { at = c.Now() })
	c.Advance(time.Second)
	if at != 7*time.Millisecond {
		t.Fatalf("callback saw Now()=%v, want 7ms", at)
	}
}

func TestClockCancel(t *testing.T) {
	c := New()
	fired := false
	h := c.AfterFunc(time.Millisecond, func() { fired = true })
	if !c.Cancel(h) {
		t.Fatalf("expected cancel of pending callback to succeed")
	}
	if c.Cancel(h) {
		t.Fatalf("expected second cancel to report not pending")
	}
	c.Advance(time.Second)
	if fired {
		t.Fatalf("cancelled callback fired")
	}
	if c.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0", c.Pending())
	}
}

func TestClockNestedSchedulingWithinWindow(t *testing.T) {
	c := New()
	count := 0
	var tick func()
	tick = func() {
		count++
		c.AfterFunc(10*time.Millisecond, tick)
	}
	c.AfterFunc(10*time.Millisecond, tick)
	c.Advance(55 * time.Millisecond)
	if count != 5 {
		t.Fatalf("self-rescheduling callback fired %d times, want 5", count)
	}
}

func TestTaskStopCancelsEverything(t *testing.T) {
	c := New()
	task := NewTask(c)
	task.Start()
	fired := 0
	for i := 1; i <= 3; i++ {
		task.After(time.Duration(i)*time.Millisecond, func() { fired++ })
	}
	if task.Pending() != 3 {
		t.Fatalf("Pending() = %d, want 3", task.Pending())
	}
	c.Advance(time.Millisecond)
	task.Stop()
	task.Stop()
	c.Advance(time.Second)
	if fired != 1 {
		t.Fatalf("fired %d callbacks, want 1", fired)
	}
	if task.Pending() != 0 || c.Pending() != 0 {
		t.Fatalf("expected no pending callbacks, task=%d clock=%d", task.Pending(), c.Pending())
	}
}

func TestTaskSkipsCallbacksAfterFlagFlip(t *testing.T) {
	c := New()
	task := NewTask(c)
	task.Start()
	second := false
	task.After(time.Millisecond, func() {
		// stopping from inside a callback must suppress a sibling due at the same instant
		task.running = false
	})
	task.After(time.Millisecond, func() { second = true })
	c.Advance(time.Millisecond)
	if second {
		t.Fatalf("callback ran after the running flag was cleared")
	}
}

func TestTaskAfterOnStoppedTaskIsNoop(t *testing.T) {
	c := New()
	task := NewTask(c)
	if h := task.After(time.Millisecond, func() {}); h != 0 {
		t.Fatalf("expected zero handle from stopped task, got %v", h)
	}
	if c.Pending() != 0 {
		t.Fatalf("stopped task scheduled work")
	}
}
