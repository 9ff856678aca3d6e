package sequencer

import (
	"time"

	"github.com/cbegin/vkeys-go/internal/clock"
)

// Loop repeats a block of scheduled work. Each iteration schedules its own
// events and then the next iteration, so the loop length is read afresh at
// every boundary and timing never accumulates error.
type Loop struct {
	task       *clock.Task
	schedule   func(t *clock.Task)
	length     func() time.Duration
	onBoundary func()
	iterations int
}

// NewLoop builds a stopped loop. schedule registers one iteration's callbacks
// relative to the iteration start; length is consulted at the start of every
// iteration. onBoundary, if set, runs each time an iteration completes.
func NewLoop(c *clock.Clock, schedule func(t *clock.Task), length func() time.Duration, onBoundary func()) *Loop {
	return &Loop{
		task:       clock.NewTask(c),
		schedule:   schedule,
		length:     length,
		onBoundary: onBoundary,
	}
}

// Start begins iterating immediately. Starting a running loop is a no-op.
func (l *Loop) Start() {
	if l.task.Running() {
		return
	}
	l.iterations = 0
	l.task.Start()
	l.iterate()
}

func (l *Loop) iterate() {
	n := l.length()
	if n <= 0 {
		n = EmptyLoopLength
	}
	l.schedule(l.task)
	l.task.After(n, func() {
		l.iterations++
		if l.onBoundary != nil {
			l.onBoundary()
		}
		if l.task.Running() {
			l.iterate()
		}
	})
}

// Stop cancels every callback the loop still has queued.
func (l *Loop) Stop() {
	l.task.Stop()
}

func (l *Loop) Running() bool {
	return l.task.Running()
}

// Iterations counts completed passes since the last Start.
func (l *Loop) Iterations() int {
	return l.iterations
}
