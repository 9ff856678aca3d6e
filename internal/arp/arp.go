// Package arp steps monophonically through the notes a player is holding,
// on its own clock and independent of how long keys stay down.
package arp

import (
	"math/rand"
	"slices"
	"sort"
	"time"

	"github.com/cbegin/vkeys-go/internal/clock"
	"github.com/cbegin/vkeys-go/internal/pitch"
	"github.com/cbegin/vkeys-go/internal/voice"
)

type Mode string

const (
	ModeUp       Mode = "up"
	ModeDown     Mode = "down"
	ModeUpDown   Mode = "updown"
	ModeRandom   Mode = "random"
	ModeAsPlayed Mode = "asplayed"
)

var Modes = []Mode{ModeUp, ModeDown, ModeUpDown, ModeRandom, ModeAsPlayed}

var (
	// Rates are note divisions of a whole note: 4 is a quarter, 32 a thirty-second.
	Rates = []int{4, 8, 16, 32}
	// Gates are the percentages of a step a note sounds for.
	Gates = []int{25, 50, 75, 100}
)

const (
	MinOctaves = 1
	MaxOctaves = 4

	// QuickRelease is the release applied to arp notes.
	QuickRelease = 50 * time.Millisecond
	// GateMargin ends every note this long before its gate expires.
	GateMargin = 10 * time.Millisecond
)

// Target sounds the arp's notes. voice.Manager satisfies it.
type Target interface {
	NoteOnRef(id string, octave int, playback bool) (voice.Ref, bool)
	StopRef(r voice.Ref, release time.Duration)
	Octave() int
}

type Params struct {
	Mode    Mode
	Rate    int
	Gate    int
	Octaves int
	Tempo   float64
}

func DefaultParams() Params {
	return Params{
		Mode:    ModeUp,
		Rate:    8,
		Gate:    75,
		Octaves: 1,
		Tempo:   120,
	}
}

// Step is one pattern entry: a held note and the octave layer it sits in.
type Step struct {
	Note  string
	Layer int
}

// EventKind identifies arpeggiator clock transitions.
type EventKind int

const (
	EventStarted EventKind = iota
	EventStopped
)

type Options struct {
	OnEvent func(EventKind)
	Rand    *rand.Rand
}

type sounding struct {
	note  string
	ref   voice.Ref
	owned bool
	gate  clock.Handle
}

type Arpeggiator struct {
	target    Target
	task      *clock.Task
	rng       *rand.Rand
	params    Params
	enabled   bool
	hold      bool
	held      []string
	pattern   []Step
	index     int
	direction int
	tick      clock.Handle
	current   *sounding
	onEvent   func(EventKind)
}

func New(c *clock.Clock, target Target, params Params) *Arpeggiator {
	return NewWithOptions(c, target, params, Options{})
}

func NewWithOptions(c *clock.Clock, target Target, params Params, opts Options) *Arpeggiator {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	def := DefaultParams()
	if !slices.Contains(Modes, params.Mode) {
		params.Mode = def.Mode
	}
	if !slices.Contains(Rates, params.Rate) {
		params.Rate = def.Rate
	}
	if !slices.Contains(Gates, params.Gate) {
		params.Gate = def.Gate
	}
	params.Octaves = clampOctaves(params.Octaves)
	if params.Tempo <= 0 {
		params.Tempo = def.Tempo
	}
	return &Arpeggiator{
		target:    target,
		task:      clock.NewTask(c),
		rng:       rng,
		params:    params,
		direction: 1,
		onEvent:   opts.OnEvent,
	}
}

func (a *Arpeggiator) Params() Params { return a.params }

func (a *Arpeggiator) Enabled() bool { return a.enabled }

func (a *Arpeggiator) Hold() bool { return a.hold }

// Running reports whether the step clock is ticking.
func (a *Arpeggiator) Running() bool { return a.task.Running() }

// Index is the pattern position most recently sounded.
func (a *Arpeggiator) Index() int { return a.index }

// SetEnabled turns the arpeggiator on or off. Enabling with notes already held
// starts the clock; disabling stops it and forgets the held notes.
func (a *Arpeggiator) SetEnabled(enabled bool) {
	if enabled == a.enabled {
		return
	}
	a.enabled = enabled
	if enabled {
		a.rebuild()
		a.start()
		return
	}
	a.held = nil
	a.rebuild()
	a.stop()
}

// SetHold latches held notes. Releasing the latch drops every held note and
// stops the clock.
func (a *Arpeggiator) SetHold(hold bool) {
	a.hold = hold
	if hold || !a.enabled {
		return
	}
	a.held = nil
	a.rebuild()
	a.stop()
}

// Add holds a note. It reports whether the held set changed.
func (a *Arpeggiator) Add(id string) bool {
	if !a.enabled || !pitch.Valid(id) || slices.Contains(a.held, id) {
		return false
	}
	a.held = append(a.held, id)
	a.rebuild()
	if !a.task.Running() {
		a.start()
	}
	return true
}

// Remove releases a held note. Ignored while the hold latch is engaged.
func (a *Arpeggiator) Remove(id string) bool {
	if !a.enabled || a.hold {
		return false
	}
	i := slices.Index(a.held, id)
	if i < 0 {
		return false
	}
	a.held = slices.Delete(a.held, i, i+1)
	a.rebuild()
	if len(a.held) == 0 {
		a.stop()
	}
	return true
}

// Held returns the held notes in the order they were pressed.
func (a *Arpeggiator) Held() []string {
	return slices.Clone(a.held)
}

// Pattern returns the current traversal pattern.
func (a *Arpeggiator) Pattern() []Step {
	return slices.Clone(a.pattern)
}

func (a *Arpeggiator) SetMode(m Mode) bool {
	if !slices.Contains(Modes, m) {
		return false
	}
	a.params.Mode = m
	a.index = 0
	a.direction = 1
	return true
}

// SetRate changes the note division, restarting a running clock at the new
// period. The traversal position is kept.
func (a *Arpeggiator) SetRate(rate int) bool {
	if !slices.Contains(Rates, rate) {
		return false
	}
	a.params.Rate = rate
	a.restart()
	return true
}

func (a *Arpeggiator) SetGate(gate int) bool {
	if !slices.Contains(Gates, gate) {
		return false
	}
	a.params.Gate = gate
	return true
}

// SetOctaves sets how many octave layers the pattern spans, clamped to [1,4].
func (a *Arpeggiator) SetOctaves(n int) {
	a.params.Octaves = clampOctaves(n)
	if a.enabled {
		a.rebuild()
	}
}

func (a *Arpeggiator) SetTempo(bpm float64) {
	if bpm <= 0 {
		return
	}
	a.params.Tempo = bpm
	a.restart()
}

// Period is the time between steps: (60000/tempo) * (4/rate) milliseconds.
func (a *Arpeggiator) Period() time.Duration {
	return time.Duration(float64(time.Minute) / a.params.Tempo * 4 / float64(a.params.Rate))
}

// GateLength is how long each note sounds before its quick release begins.
func (a *Arpeggiator) GateLength() time.Duration {
	d := a.Period()*time.Duration(a.params.Gate)/100 - GateMargin
	if d < 0 {
		return 0
	}
	return d
}

// Current returns the note the arpeggiator is sounding, if any.
func (a *Arpeggiator) Current() (string, bool) {
	if a.current == nil {
		return "", false
	}
	return a.current.note, true
}

// Stop halts the clock and silences the current note without touching the
// held set.
func (a *Arpeggiator) Stop() {
	a.stop()
}

func (a *Arpeggiator) rebuild() {
	a.index = 0
	a.direction = 1
	if len(a.held) == 0 {
		a.pattern = nil
		return
	}
	sorted := slices.Clone(a.held)
	sort.Slice(sorted, func(i, j int) bool { return pitch.Index(sorted[i]) < pitch.Index(sorted[j]) })
	a.pattern = make([]Step, 0, len(sorted)*a.params.Octaves)
	for layer := 0; layer < a.params.Octaves; layer++ {
		for _, id := range sorted {
			a.pattern = append(a.pattern, Step{Note: id, Layer: layer})
		}
	}
}

func (a *Arpeggiator) start() {
	if len(a.pattern) == 0 || a.task.Running() {
		return
	}
	a.task.Start()
	a.emit(EventStarted)
	a.play()
	a.scheduleTick()
}

func (a *Arpeggiator) scheduleTick() {
	a.tick = a.task.After(a.Period(), func() {
		a.advance()
		a.play()
		a.scheduleTick()
	})
}

func (a *Arpeggiator) restart() {
	if !a.task.Running() {
		return
	}
	a.task.Cancel(a.tick)
	a.scheduleTick()
}

func (a *Arpeggiator) stop() {
	running := a.task.Running()
	a.task.Stop()
	a.stopCurrent()
	a.index = 0
	a.direction = 1
	if running {
		a.emit(EventStopped)
	}
}

func (a *Arpeggiator) advance() {
	n := len(a.pattern)
	if n == 0 {
		return
	}
	switch a.params.Mode {
	case ModeDown:
		a.index = (a.index - 1 + n) % n
	case ModeUpDown:
		a.index += a.direction
		if a.index >= n-1 {
			a.index = n - 1
			a.direction = -1
		} else if a.index <= 0 {
			a.index = 0
			a.direction = 1
		}
	case ModeRandom:
		a.index = a.rng.Intn(n)
	default:
		// asplayed walks the pitch-sorted pattern exactly like up
		a.index = (a.index + 1) % n
	}
}

func (a *Arpeggiator) play() {
	a.stopCurrent()
	if len(a.pattern) == 0 {
		return
	}
	if a.index < 0 || a.index >= len(a.pattern) {
		a.index = 0
	}
	step := a.pattern[a.index]
	octave := a.target.Octave() + step.Layer
	if octave > pitch.MaxOctave {
		octave = pitch.MaxOctave
	}
	s := &sounding{note: step.Note}
	s.ref, s.owned = a.target.NoteOnRef(step.Note, octave, true)
	s.gate = a.task.After(a.GateLength(), func() {
		if a.current == s {
			a.stopCurrent()
		}
	})
	a.current = s
}

func (a *Arpeggiator) stopCurrent() {
	s := a.current
	if s == nil {
		return
	}
	a.current = nil
	a.task.Cancel(s.gate)
	// a voice force-stopped elsewhere may have been replaced by a live key
	if s.owned {
		a.target.StopRef(s.ref, QuickRelease)
	}
}

func (a *Arpeggiator) emit(kind EventKind) {
	if a.onEvent != nil {
		a.onEvent(kind)
	}
}

func clampOctaves(n int) int {
	if n < MinOctaves {
		return MinOctaves
	}
	if n > MaxOctaves {
		return MaxOctaves
	}
	return n
}
