// Package analysis infers a key, scale and chord progression from a recorded
// performance.
//
// Key detection is a histogram heuristic, not music theory: every
// (root, scale) pair is scored as twice the weight of in-scale pitch classes
// minus the weight of out-of-scale ones, and the first best score wins.
package analysis

import (
	"fmt"
	"time"

	"github.com/cbegin/vkeys-go/internal/pitch"
	"github.com/cbegin/vkeys-go/internal/sequencer"
)

const (
	// ChordWindow groups note-ons starting within this span of a cluster's
	// first note.
	ChordWindow = 50 * time.Millisecond

	// DefaultBeats is the length of a synthesized progression.
	DefaultBeats = 16
	beatsPerBar  = 4
)

type Analysis struct {
	Key       int
	Scale     Scale
	Chords    []Chord
	NoteCount int
	Duration  time.Duration
}

// KeyName spells the detected key.
func (a Analysis) KeyName() string {
	return KeyName(a.Key)
}

func (a Analysis) String() string {
	return fmt.Sprintf("%s %s, %d chords, %d notes", a.KeyName(), a.Scale, len(a.Chords), a.NoteCount)
}

// ChordAt returns the chord sounding at offset t: the latest chord starting
// at or before t.
func (a Analysis) ChordAt(t time.Duration) (Chord, bool) {
	var (
		found Chord
		ok    bool
	)
	for _, c := range a.Chords {
		if c.At > t {
			break
		}
		found, ok = c, true
	}
	return found, ok
}

// Histogram counts note-ons per pitch class.
func Histogram(events []sequencer.Event) [12]int {
	var h [12]int
	for _, ev := range events {
		if ev.Kind != sequencer.NoteOn {
			continue
		}
		if pc := pitch.ClassIndex(ev.Note); pc >= 0 {
			h[pc]++
		}
	}
	return h
}

// Score rates how well the histogram fits scale s on root.
func Score(h [12]int, root int, s Scale) int {
	score := 0
	for pc, n := range h {
		if Contains(root, s, pc) {
			score += 2 * n
		} else {
			score -= n
		}
	}
	return score
}

// DetectKey returns the best scoring (root, scale) pair, enumerating roots
// from C upward and Detectable scales within each root.
func DetectKey(h [12]int) (int, Scale) {
	bestRoot, bestScale := 0, Detectable[0]
	best := 0
	first := true
	for root := 0; root < 12; root++ {
		for _, s := range Detectable {
			score := Score(h, root, s)
			if first || score > best {
				best, bestRoot, bestScale = score, root, s
				first = false
			}
		}
	}
	return bestRoot, bestScale
}

// Analyze derives key, scale and chords from a recording. It reports false
// when the recording contains no usable note-ons.
func Analyze(events []sequencer.Event) (Analysis, bool) {
	h := Histogram(events)
	count := 0
	for _, n := range h {
		count += n
	}
	if count == 0 {
		return Analysis{}, false
	}
	key, scale := DetectKey(h)
	var end time.Duration
	for _, ev := range events {
		if ev.Offset > end {
			end = ev.Offset
		}
	}
	return Analysis{
		Key:       key,
		Scale:     scale,
		Chords:    DetectChords(events),
		NoteCount: count,
		Duration:  end,
	}, true
}

// Default synthesizes a four-chord progression one bar apart for when there
// is no recording to analyze: I-V-vi-IV for major-family scales and
// i-VII-VI-VII otherwise.
func Default(key int, s Scale, tempo float64) Analysis {
	if tempo <= 0 {
		tempo = 120
	}
	if !s.Valid() {
		s = Major
	}
	key = mod12(key)
	beat := time.Duration(float64(time.Minute) / tempo)
	bar := beatsPerBar * beat

	type degree struct {
		offset  int
		quality Quality
	}
	steps := []degree{{0, QualityMajor}, {7, QualityMajor}, {9, QualityMinor}, {5, QualityMajor}}
	if s.IsMinor() {
		steps = []degree{{0, QualityMinor}, {10, QualityMajor}, {8, QualityMajor}, {10, QualityMajor}}
	}
	chords := make([]Chord, len(steps))
	for i, st := range steps {
		chords[i] = Chord{Root: mod12(key + st.offset), Quality: st.quality, At: time.Duration(i) * bar}
	}
	return Analysis{
		Key:      key,
		Scale:    s,
		Chords:   chords,
		Duration: DefaultBeats * beat,
	}
}
