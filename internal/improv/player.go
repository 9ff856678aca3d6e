package improv

import (
	"slices"
	"time"

	"github.com/cbegin/vkeys-go/internal/clock"
	"github.com/cbegin/vkeys-go/internal/sequencer"
	"github.com/cbegin/vkeys-go/internal/voice"
)

// Target sounds generated notes. voice.Manager satisfies it.
type Target interface {
	NoteOnRef(id string, octave int, playback bool) (voice.Ref, bool)
	NoteOffRef(r voice.Ref, playback, force bool)
}

type EventKind int

const (
	EventStarted EventKind = iota
	EventStopped
	EventLoopCompleted
)

type PlayerOptions struct {
	OnEvent func(EventKind)
}

// Player loops a generated phrase on its own clock task. It releases only
// the notes it started, so live playing and a recorded loop can continue
// underneath it.
type Player struct {
	target  Target
	loop    *sequencer.Loop
	events  []Event
	length  time.Duration
	owned   map[string]voice.Ref
	onEvent func(EventKind)
}

func NewPlayer(c *clock.Clock, target Target, opts PlayerOptions) *Player {
	p := &Player{
		target:  target,
		owned:   make(map[string]voice.Ref),
		onEvent: opts.OnEvent,
	}
	p.loop = sequencer.NewLoop(c, p.scheduleIteration, p.LoopLength, func() { p.emit(EventLoopCompleted) })
	return p
}

// Play replaces the phrase and starts looping it from the top. length is the
// preferred loop length; see LoopLength. An empty phrase stops playback and
// reports false.
func (p *Player) Play(events []Event, length time.Duration) bool {
	p.Stop()
	if len(events) == 0 {
		return false
	}
	p.events = slices.Clone(events)
	p.length = length
	p.loop.Start()
	p.emit(EventStarted)
	return true
}

func (p *Player) scheduleIteration(t *clock.Task) {
	for _, ev := range p.events {
		ev := ev
		var ref voice.Ref
		t.After(ev.Offset, func() {
			if r, ok := p.target.NoteOnRef(ev.Note, ev.Octave, true); ok {
				ref = r
				p.owned[ev.Note] = r
			}
		})
		t.After(ev.End(), func() {
			if owned, ok := p.owned[ev.Note]; !ok || owned != ref {
				return
			}
			delete(p.owned, ev.Note)
			p.target.NoteOffRef(ref, true, false)
		})
	}
}

// LoopLength is the preferred length, or the last release plus
// sequencer.LoopTail when notes would otherwise spill past it.
func (p *Player) LoopLength() time.Duration {
	var end time.Duration
	for _, ev := range p.events {
		if ev.End() > end {
			end = ev.End()
		}
	}
	if p.length >= end && p.length > 0 {
		return p.length
	}
	if end == 0 {
		return sequencer.EmptyLoopLength
	}
	return end + sequencer.LoopTail
}

// Stop cancels pending notes and force-releases the ones still sounding.
// Stopping an idle player is a no-op.
func (p *Player) Stop() {
	running := p.loop.Running()
	p.loop.Stop()
	ids := make([]string, 0, len(p.owned))
	for id := range p.owned {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		r := p.owned[id]
		delete(p.owned, id)
		p.target.NoteOffRef(r, true, true)
	}
	if running {
		p.emit(EventStopped)
	}
}

func (p *Player) Playing() bool {
	return p.loop.Running()
}

// Events returns the phrase being looped.
func (p *Player) Events() []Event {
	return slices.Clone(p.events)
}

// Iterations counts completed passes of the current phrase.
func (p *Player) Iterations() int {
	return p.loop.Iterations()
}

func (p *Player) emit(kind EventKind) {
	if p.onEvent != nil {
		p.onEvent(kind)
	}
}
