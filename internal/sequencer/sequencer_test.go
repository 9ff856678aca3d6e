package sequencer

import (
	"testing"
	"time"

	"github.com/cbegin/vkeys-go/internal/clock"
)

type call struct {
	at     time.Duration
	note   string
	on     bool
	octave int
}

type countingTarget struct {
	clock    *clock.Clock
	calls    []call
	sounding map[string]bool
	stopAlls int
}

func newCountingTarget(c *clock.Clock) *countingTarget {
	return &countingTarget{clock: c, sounding: map[string]bool{}}
}

func (t *countingTarget) NoteOn(id string, octave int, playback bool) bool {
	if t.sounding[id] {
		return false
	}
	t.sounding[id] = true
	t.calls = append(t.calls, call{at: t.clock.Now(), note: id, on: true, octave: octave})
	return true
}

func (t *countingTarget) NoteOff(id string, playback, force bool) {
	delete(t.sounding, id)
	t.calls = append(t.calls, call{at: t.clock.Now(), note: id})
}

func (t *countingTarget) StopAll() {
	t.stopAlls++
	t.sounding = map[string]bool{}
}

func recordTake(c *clock.Clock, s *Sequencer) {
	s.StartRecording()
	s.RecordNoteOn("A", 5)
	c.Advance(500 * time.Millisecond)
	s.RecordNoteOff("A")
	s.StopRecording()
}

func TestRecordStampsOffsetsFromRecordStart(t *testing.T) {
	c := clock.New()
	c.Advance(3 * time.Second)
	s := New(c, newCountingTarget(c))
	recordTake(c, s)
	got := s.Events()
	want := []Event{
		{Note: "A", Offset: 0, Kind: NoteOn, Octave: 5},
		{Note: "A", Offset: 500 * time.Millisecond, Kind: NoteOff},
	}
	if len(got) != len(want) {
		t.Fatalf("events = %#v, want %#v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event[%d] = %#v, want %#v", i, got[i], want[i])
		}
	}
	s.RecordNoteOn("B", 4)
	if s.Len() != 2 {
		t.Fatalf("event recorded outside a take")
	}
}

func TestPlaybackRepeatsWithStableTiming(t *testing.T) {
	c := clock.New()
	target := newCountingTarget(c)
	s := New(c, target)
	recordTake(c, s)

	start := c.Now()
	if !s.Play() {
		t.Fatalf("Play() refused a non-empty take")
	}
	if s.LoopLength() != time.Second {
		t.Fatalf("LoopLength() = %v, want 1s", s.LoopLength())
	}
	c.Advance(2*time.Second + 900*time.Millisecond)

	if len(target.calls) != 6 {
		t.Fatalf("got %d calls, want 6: %#v", len(target.calls), target.calls)
	}
	for i, cl := range target.calls {
		iteration := time.Duration(i/2) * time.Second
		want := start + iteration
		if !cl.on {
			want += 500 * time.Millisecond
		}
		if cl.at != want || cl.note != "A" || cl.on != (i%2 == 0) {
			t.Fatalf("call[%d] = %#v, want at %v", i, cl, want)
		}
		if cl.on && cl.octave != 5 {
			t.Fatalf("call[%d] played octave %d, want the recorded 5", i, cl.octave)
		}
	}
	if s.Iterations() != 2 {
		t.Fatalf("Iterations() = %d, want 2", s.Iterations())
	}
	if s.Len() != 2 {
		t.Fatalf("playback mutated the take")
	}
}

func TestPlayGuards(t *testing.T) {
	c := clock.New()
	s := New(c, newCountingTarget(c))
	if s.Play() {
		t.Fatalf("empty take played")
	}
	s.StartRecording()
	s.RecordNoteOn("C", 4)
	if s.Play() {
		t.Fatalf("played while recording")
	}
	s.StopRecording()
	if !s.Play() || s.Play() {
		t.Fatalf("expected exactly one successful Play")
	}
}

func TestStopIsIdempotentAndCancelsPending(t *testing.T) {
	c := clock.New()
	target := newCountingTarget(c)
	var kinds []EventKind
	s := NewWithOptions(c, target, Options{OnEvent: func(k EventKind) { kinds = append(kinds, k) }})
	recordTake(c, s)
	s.Play()
	c.Advance(100 * time.Millisecond)
	s.Stop()
	s.Stop()
	before := len(target.calls)
	c.Advance(5 * time.Second)
	if len(target.calls) != before {
		t.Fatalf("callbacks fired after Stop: %#v", target.calls[before:])
	}
	if s.State() != Idle {
		t.Fatalf("State() = %v, want idle", s.State())
	}
	if target.stopAlls != 2 || len(target.sounding) != 0 {
		t.Fatalf("expected every note force-stopped, stopAlls=%d sounding=%v", target.stopAlls, target.sounding)
	}
	stopped := 0
	for _, k := range kinds {
		if k == EventPlaybackStopped {
			stopped++
		}
	}
	if stopped != 1 {
		t.Fatalf("EventPlaybackStopped emitted %d times, want 1", stopped)
	}
}

func TestStartRecordingStopsPlaybackAndClearsTake(t *testing.T) {
	c := clock.New()
	s := New(c, newCountingTarget(c))
	recordTake(c, s)
	s.Play()
	s.StartRecording()
	if !s.IsRecording() || s.IsPlaying() {
		t.Fatalf("state = %v, want recording", s.State())
	}
	if s.Len() != 0 {
		t.Fatalf("previous take survived a new recording")
	}
}

func TestClearWhileRecording(t *testing.T) {
	c := clock.New()
	s := New(c, newCountingTarget(c))
	s.StartRecording()
	s.RecordNoteOn("C", 4)
	s.Clear()
	if s.State() != Idle || s.Len() != 0 {
		t.Fatalf("Clear left state=%v len=%d", s.State(), s.Len())
	}
	s.RecordNoteOn("D", 4)
	if s.Len() != 0 {
		t.Fatalf("recorded after Clear")
	}
}

func TestLoopReadsLengthEachIteration(t *testing.T) {
	c := clock.New()
	length := 100 * time.Millisecond
	fired := 0
	l := NewLoop(c, func(task *clock.Task) {
		task.After(0, func() { fired++ })
	}, func() time.Duration { return length }, func() { length = 200 * time.Millisecond })
	l.Start()
	l.Start()
	c.Advance(500 * time.Millisecond)
	// passes start at 0, 100, 300 and 500
	if fired != 4 {
		t.Fatalf("fired %d passes, want 4", fired)
	}
	l.Stop()
	c.Advance(time.Second)
	if fired != 4 || l.Running() {
		t.Fatalf("loop kept running after Stop")
	}
}
