package improv

import (
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/cbegin/vkeys-go/internal/analysis"
	"github.com/cbegin/vkeys-go/internal/clock"
	"github.com/cbegin/vkeys-go/internal/pitch"
	"github.com/cbegin/vkeys-go/internal/voice"
)

func TestNoteCountFollowsDensity(t *testing.T) {
	cases := []struct {
		d       time.Duration
		density int
		want    int
	}{
		{8 * time.Second, 0, 4},
		{8 * time.Second, 5, 20},
		{8 * time.Second, 10, 36},
		{1500 * time.Millisecond, 3, 2},
		{100 * time.Millisecond, 0, 0},
	}
	for _, tc := range cases {
		if got := NoteCount(tc.d, tc.density); got != tc.want {
			t.Fatalf("NoteCount(%v, %d) = %d, want %d", tc.d, tc.density, got, tc.want)
		}
	}
}

func TestScaleForStyle(t *testing.T) {
	cases := []struct {
		style    Style
		detected analysis.Scale
		want     analysis.Scale
	}{
		{StyleJazz, analysis.Major, analysis.Dorian},
		{StyleBlues, analysis.Major, analysis.Blues},
		{StyleClassical, analysis.PentatonicMinor, analysis.Minor},
		{StyleClassical, analysis.PentatonicMajor, analysis.Major},
		{StylePop, analysis.Minor, analysis.PentatonicMinor},
		{StyleAmbient, analysis.Major, analysis.PentatonicMajor},
		{StyleRandom, analysis.Minor, analysis.Chromatic},
	}
	for _, tc := range cases {
		if got := ScaleFor(tc.style, tc.detected); got != tc.want {
			t.Fatalf("ScaleFor(%s, %s) = %s, want %s", tc.style, tc.detected, got, tc.want)
		}
	}
}

func TestGenerateStaysInStyleScale(t *testing.T) {
	a := analysis.Default(2, analysis.Major, 120)
	for _, style := range []Style{StyleJazz, StyleBlues, StyleClassical, StylePop, StyleAmbient} {
		t.Run(string(style), func(t *testing.T) {
			p := Params{Style: style, Complexity: 0, Density: 7, Tempo: 120}
			events := Generate(a, p, rand.New(rand.NewSource(42)))
			if len(events) != NoteCount(a.Duration, p.Density) {
				t.Fatalf("got %d events, want %d", len(events), NoteCount(a.Duration, p.Density))
			}
			scale := ScaleFor(style, a.Scale)
			for _, ev := range events {
				if !pitch.Valid(ev.Note) {
					t.Fatalf("generated unknown note %q", ev.Note)
				}
				// complexity 0 never adds passing tones
				if !analysis.Contains(a.Key, scale, pitch.ClassIndex(ev.Note)) {
					t.Fatalf("%s is outside %s %s", ev.Note, analysis.KeyName(a.Key), scale)
				}
			}
		})
	}
}

func TestGenerateTimingAndDurations(t *testing.T) {
	a := analysis.Default(0, analysis.Minor, 100)
	beat := time.Duration(float64(time.Minute) / 100)
	cases := []struct {
		style    Style
		min, max time.Duration
	}{
		{StyleAmbient, beat, 3 * beat},
		{StyleJazz, beat / 4, beat},
		{StyleBlues, beat / 2, beat},
		{StyleClassical, beat / 4, beat},
		{StylePop, beat / 2, beat / 2},
	}
	for _, tc := range cases {
		events := Generate(a, Params{Style: tc.style, Complexity: 8, Density: 6, Tempo: 100}, rand.New(rand.NewSource(3)))
		spacing := a.Duration / time.Duration(len(events))
		for i, ev := range events {
			if ev.Duration < tc.min || ev.Duration > tc.max {
				t.Fatalf("%s: event %d lasts %v, want within [%v, %v]", tc.style, i, ev.Duration, tc.min, tc.max)
			}
			if i == 0 {
				if ev.Offset != 0 {
					t.Fatalf("%s: first event at %v, want 0", tc.style, ev.Offset)
				}
				continue
			}
			gap := ev.Offset - events[i-1].Offset
			if gap < spacing/2-time.Millisecond || gap > spacing*3/2+time.Millisecond {
				t.Fatalf("%s: gap %v outside %v +/- 50%%", tc.style, gap, spacing)
			}
		}
	}
}

func TestGenerateIsReproducibleForASeed(t *testing.T) {
	a := analysis.Default(7, analysis.Major, 120)
	p := Params{Style: StyleRandom, Complexity: 9, Density: 4, Tempo: 120}
	first := Generate(a, p, rand.New(rand.NewSource(11)))
	second := Generate(a, p, rand.New(rand.NewSource(11)))
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same seed produced different phrases")
	}
}

func TestGenerateFallsBackToSixteenBeats(t *testing.T) {
	events := Generate(analysis.Analysis{Scale: analysis.Major}, Params{Style: StylePop, Density: 0, Tempo: 60}, rand.New(rand.NewSource(1)))
	// 16s at 0.5 notes per second
	if len(events) != 8 {
		t.Fatalf("got %d events, want 8", len(events))
	}
}

type recordingTarget struct {
	sounding map[string]bool
	ons      int
	offs     []string
}

func (r *recordingTarget) NoteOnRef(id string, octave int, playback bool) (voice.Ref, bool) {
	if r.sounding[id] {
		return voice.Ref{}, false
	}
	r.sounding[id] = true
	r.ons++
	return voice.Ref{ID: id, Serial: uint64(r.ons)}, true
}

func (r *recordingTarget) NoteOffRef(ref voice.Ref, playback, force bool) {
	delete(r.sounding, ref.ID)
	r.offs = append(r.offs, ref.ID)
}

func TestPlayerLoopsAndReleasesOnlyItsNotes(t *testing.T) {
	c := clock.New()
	target := &recordingTarget{sounding: map[string]bool{"E": true}}
	var kinds []EventKind
	p := NewPlayer(c, target, PlayerOptions{OnEvent: func(k EventKind) { kinds = append(kinds, k) }})
	phrase := []Event{
		{Note: "C", Offset: 0, Duration: 200 * time.Millisecond},
		{Note: "E", Offset: 100 * time.Millisecond, Duration: 200 * time.Millisecond},
		{Note: "G", Offset: 400 * time.Millisecond, Duration: 400 * time.Millisecond},
	}
	if !p.Play(phrase, time.Second) {
		t.Fatalf("Play refused a phrase")
	}
	if p.LoopLength() != time.Second {
		t.Fatalf("LoopLength() = %v, want 1s", p.LoopLength())
	}
	c.Advance(2*time.Second + 500*time.Millisecond)
	if target.ons != 6 {
		t.Fatalf("ons = %d, want 6 over three passes", target.ons)
	}
	if !target.sounding["E"] {
		t.Fatalf("player released a note it did not start")
	}
	p.Stop()
	p.Stop()
	if target.sounding["G"] || !target.sounding["E"] {
		t.Fatalf("after Stop sounding = %v, want only E", target.sounding)
	}
	if p.Playing() {
		t.Fatalf("still playing after Stop")
	}
	want := []EventKind{EventStarted, EventLoopCompleted, EventLoopCompleted, EventStopped}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
}

func TestPlayerStretchesShortLoops(t *testing.T) {
	p := NewPlayer(clock.New(), &recordingTarget{sounding: map[string]bool{}}, PlayerOptions{})
	p.Play([]Event{{Note: "C", Offset: 900 * time.Millisecond, Duration: 300 * time.Millisecond}}, time.Second)
	if got := p.LoopLength(); got != 1700*time.Millisecond {
		t.Fatalf("LoopLength() = %v, want 1.7s", got)
	}
	if p.Play(nil, time.Second) || p.Playing() {
		t.Fatalf("empty phrase should stop playback")
	}
}

type nullRenderer struct{ next int }

func (r *nullRenderer) CreateVoice(freq float64) (int, error) {
	r.next++
	return r.next, nil
}
func (r *nullRenderer) Retune(int, float64, time.Duration) {}
func (r *nullRenderer) Release(int, time.Duration)         {}

func TestPlayerSparesLiveNoteAfterForcedStop(t *testing.T) {
	c := clock.New()
	m := voice.NewManager(&nullRenderer{})
	p := NewPlayer(c, m, PlayerOptions{})
	p.Play([]Event{{Note: "C", Offset: 0, Duration: time.Second}}, 2*time.Second)
	c.Advance(100 * time.Millisecond)
	m.StopAll()
	c.Advance(100 * time.Millisecond)
	if !m.NoteOn("C", 0, false) {
		t.Fatalf("live C refused after StopAll")
	}
	c.Advance(900 * time.Millisecond)
	if !m.Sounding("C") {
		t.Fatalf("phrase end released a live C the player did not start")
	}
	p.Stop()
	if !m.Sounding("C") {
		t.Fatalf("Stop released a live C the player did not start")
	}
}
