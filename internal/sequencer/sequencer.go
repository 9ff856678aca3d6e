// Package sequencer records live note events against the instrument clock and
// replays them on a seamless loop.
package sequencer

import (
	"time"

	"github.com/cbegin/vkeys-go/internal/clock"
)

const (
	// LoopTail is added after the last recorded event before the loop restarts.
	LoopTail = 500 * time.Millisecond
	// EmptyLoopLength is used when there is nothing to measure a loop from.
	EmptyLoopLength = time.Second
)

// Target is what playback drives. voice.Manager satisfies it.
type Target interface {
	NoteOn(id string, octave int, playback bool) bool
	NoteOff(id string, playback, force bool)
	StopAll()
}

type Kind int

const (
	NoteOn Kind = iota
	NoteOff
)

func (k Kind) String() string {
	if k == NoteOn {
		return "on"
	}
	return "off"
}

// Event is one recorded note transition. Octave is only meaningful for
// NoteOn events.
type Event struct {
	Note   string
	Offset time.Duration
	Kind   Kind
	Octave int
}

type State int

const (
	Idle State = iota
	Recording
	Playing
)

func (s State) String() string {
	switch s {
	case Recording:
		return "recording"
	case Playing:
		return "playing"
	default:
		return "idle"
	}
}

// EventKind identifies sequencer lifecycle events.
type EventKind int

const (
	EventLoopCompleted EventKind = iota
	EventPlaybackStarted
	EventPlaybackStopped
	EventRecordingStarted
	EventRecordingStopped
)

type Options struct {
	OnEvent func(EventKind)
}

type Sequencer struct {
	clock       *clock.Clock
	target      Target
	events      []Event
	state       State
	recordStart time.Duration
	loop        *Loop
	onEvent     func(EventKind)
}

func New(c *clock.Clock, target Target) *Sequencer {
	return NewWithOptions(c, target, Options{})
}

func NewWithOptions(c *clock.Clock, target Target, opts Options) *Sequencer {
	s := &Sequencer{
		clock:   c,
		target:  target,
		onEvent: opts.OnEvent,
	}
	s.loop = NewLoop(c, s.scheduleIteration, s.LoopLength, func() { s.emit(EventLoopCompleted) })
	return s
}

func (s *Sequencer) State() State { return s.state }

func (s *Sequencer) IsRecording() bool { return s.state == Recording }

func (s *Sequencer) IsPlaying() bool { return s.state == Playing }

// StartRecording discards the previous take and starts a new one at the
// current clock time. Any playback is stopped first.
func (s *Sequencer) StartRecording() {
	if s.state == Playing {
		s.Stop()
	}
	s.events = nil
	s.recordStart = s.clock.Now()
	s.state = Recording
	s.emit(EventRecordingStarted)
}

// StopRecording freezes the take. It is a no-op unless recording.
func (s *Sequencer) StopRecording() {
	if s.state != Recording {
		return
	}
	s.state = Idle
	s.emit(EventRecordingStopped)
}

// ToggleRecording starts or stops a take and reports whether recording is on.
func (s *Sequencer) ToggleRecording() bool {
	if s.state == Recording {
		s.StopRecording()
		return false
	}
	s.StartRecording()
	return true
}

// RecordNoteOn appends a note-on at the elapsed time since recording began.
// It does nothing outside a recording.
func (s *Sequencer) RecordNoteOn(id string, octave int) {
	s.record(Event{Note: id, Kind: NoteOn, Octave: octave})
}

func (s *Sequencer) RecordNoteOff(id string) {
	s.record(Event{Note: id, Kind: NoteOff})
}

func (s *Sequencer) record(ev Event) {
	if s.state != Recording {
		return
	}
	ev.Offset = s.clock.Now() - s.recordStart
	s.events = append(s.events, ev)
}

// Play loops the recorded take until Stop. It does nothing when the take is
// empty, when already playing, or while recording.
func (s *Sequencer) Play() bool {
	if len(s.events) == 0 || s.state != Idle {
		return false
	}
	s.state = Playing
	s.emit(EventPlaybackStarted)
	s.loop.Start()
	return true
}

func (s *Sequencer) scheduleIteration(t *clock.Task) {
	for _, ev := range s.events {
		ev := ev
		t.After(ev.Offset, func() {
			if ev.Kind == NoteOn {
				s.target.NoteOn(ev.Note, ev.Octave, true)
				return
			}
			s.target.NoteOff(ev.Note, true, false)
		})
	}
}

// LoopLength is the span of one playback pass: the last event offset plus
// LoopTail, or EmptyLoopLength with nothing recorded.
func (s *Sequencer) LoopLength() time.Duration {
	if len(s.events) == 0 {
		return EmptyLoopLength
	}
	return s.Duration() + LoopTail
}

// Duration is the offset of the last recorded event.
func (s *Sequencer) Duration() time.Duration {
	var end time.Duration
	for _, ev := range s.events {
		if ev.Offset > end {
			end = ev.Offset
		}
	}
	return end
}

// Stop cancels queued playback and force-stops every sounding note. Calling
// it again is harmless.
func (s *Sequencer) Stop() {
	s.loop.Stop()
	s.target.StopAll()
	if s.state == Playing {
		s.state = Idle
		s.emit(EventPlaybackStopped)
	}
}

// Clear ends any recording or playback and drops the take.
func (s *Sequencer) Clear() {
	s.StopRecording()
	s.Stop()
	s.events = nil
}

// Events returns a copy of the recorded take.
func (s *Sequencer) Events() []Event {
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Len is the number of recorded events.
func (s *Sequencer) Len() int {
	return len(s.events)
}

// Iterations counts completed loop passes in the current playback.
func (s *Sequencer) Iterations() int {
	return s.loop.Iterations()
}

func (s *Sequencer) emit(kind EventKind) {
	if s.onEvent != nil {
		s.onEvent(kind)
	}
}
