package clock

import "time"

// Task groups the callbacks one subsystem schedules so they can be cancelled
// together. Every callback also checks the running flag before acting, since
// a stop can race a callback that is already being dispatched.
type Task struct {
	clock   *Clock
	running bool
	pending map[Handle]struct{}
}

func NewTask(c *Clock) *Task {
	return &Task{clock: c, pending: make(map[Handle]struct{})}
}

// Start marks the task running. Starting a running task is a no-op.
func (t *Task) Start() {
	t.running = true
}

// Stop clears the running flag and cancels every callback still pending.
// Stopping an idle task is a no-op.
func (t *Task) Stop() {
	t.running = false
	for h := range t.pending {
		t.clock.Cancel(h)
		delete(t.pending, h)
	}
}

func (t *Task) Running() bool {
	return t.running
}

// Pending returns the number of outstanding callbacks owned by the task.
func (t *Task) Pending() int {
	return len(t.pending)
}

// Now is the owning clock's current time.
func (t *Task) Now() time.Duration {
	return t.clock.Now()
}

// After schedules fn on the owning clock. fn is skipped if the task has been
// stopped by the time it fires. Scheduling on a stopped task does nothing
// and returns the zero Handle.
func (t *Task) After(d time.Duration, fn func()) Handle {
	if !t.running {
		return 0
	}
	var h Handle
	h = t.clock.AfterFunc(d, func() {
		delete(t.pending, h)
		if !t.running {
			return
		}
		fn()
	})
	t.pending[h] = struct{}{}
	return h
}

// Cancel drops one callback owned by the task.
func (t *Task) Cancel(h Handle) {
	if _, ok := t.pending[h]; !ok {
		return
	}
	delete(t.pending, h)
	t.clock.Cancel(h)
}
