package analysis

import (
	"testing"
	"time"

	"github.com/cbegin/vkeys-go/internal/sequencer"
)

func ons(at time.Duration, ids ...string) []sequencer.Event {
	out := make([]sequencer.Event, 0, len(ids))
	for _, id := range ids {
		out = append(out, sequencer.Event{Note: id, Offset: at, Kind: sequencer.NoteOn, Octave: 4})
	}
	return out
}

func TestDiatonicPerformanceScoresFromHistogram(t *testing.T) {
	var events []sequencer.Event
	at := time.Duration(0)
	for _, id := range []string{"C", "C2", "C", "E", "G", "C", "D", "F", "A", "B", "E2", "G"} {
		events = append(events, ons(at, id)...)
		events = append(events, sequencer.Event{Note: id, Offset: at + 100*time.Millisecond, Kind: sequencer.NoteOff})
		at += 200 * time.Millisecond
	}
	a, ok := Analyze(events)
	if !ok {
		t.Fatalf("Analyze reported no notes")
	}
	h := Histogram(events)
	if h[0] != 4 || h[4] != 2 || h[7] != 2 {
		t.Fatalf("histogram = %v, want C=4 E=2 G=2", h)
	}

	// reconstruct the winning score by hand
	in, out := 0, 0
	for pc, n := range h {
		if Contains(a.Key, a.Scale, pc) {
			in += n
		} else {
			out += n
		}
	}
	want := 2*in - out
	if got := Score(h, a.Key, a.Scale); got != want {
		t.Fatalf("Score = %d, want 2*%d-%d = %d", got, in, out, want)
	}
	for root := 0; root < 12; root++ {
		for _, s := range Detectable {
			if Score(h, root, s) > want {
				t.Fatalf("%s %s scores %d, above the selected %d", KeyName(root), s, Score(h, root, s), want)
			}
		}
	}
	if a.KeyName() != "C" || a.Scale != Major {
		t.Fatalf("detected %s %s, want C major", a.KeyName(), a.Scale)
	}
	if a.NoteCount != 12 {
		t.Fatalf("NoteCount = %d, want 12", a.NoteCount)
	}
	if a.Duration != 2300*time.Millisecond {
		t.Fatalf("Duration = %v, want 2.3s", a.Duration)
	}
}

func TestTiesKeepEnumerationOrder(t *testing.T) {
	// C, E and G sit in C major, C pentatonic major and several other keys
	var h [12]int
	h[0], h[4], h[7] = 1, 1, 1
	root, s := DetectKey(h)
	if root != 0 || s != Major {
		t.Fatalf("DetectKey = %s %s, want C major", KeyName(root), s)
	}
}

func TestDetectedKeyHoldsTopScore(t *testing.T) {
	var events []sequencer.Event
	for i, id := range []string{"C", "E", "G", "A", "C2", "E", "G", "A", "F", "F", "F"} {
		events = append(events, ons(time.Duration(i)*time.Second, id)...)
	}
	a, _ := Analyze(events)
	h := Histogram(events)
	top := Score(h, a.Key, a.Scale)
	for root := 0; root < 12; root++ {
		for _, s := range Detectable {
			if Score(h, root, s) > top {
				t.Fatalf("selected %s %s (%d) but %s %s scores %d", a.KeyName(), a.Scale, top, KeyName(root), s, Score(h, root, s))
			}
		}
	}
}

func TestAnalyzeEmptyRecording(t *testing.T) {
	if _, ok := Analyze(nil); ok {
		t.Fatalf("Analyze(nil) reported a result")
	}
	offOnly := []sequencer.Event{{Note: "C", Kind: sequencer.NoteOff}}
	if _, ok := Analyze(offOnly); ok {
		t.Fatalf("note-offs alone produced an analysis")
	}
}

func TestIdentifyTemplates(t *testing.T) {
	cases := []struct {
		notes []string
		want  string
	}{
		{[]string{"C", "E", "G"}, "C"},
		{[]string{"D", "F#", "A"}, "D"},
		{[]string{"E", "G", "B"}, "Em"},
		{[]string{"A", "C2", "E2"}, "Am"},
		{[]string{"B", "D2", "F2"}, "Bdim"},
		{[]string{"C", "E", "G#"}, "Caug"},
		// the same set read as sus2 from C; sus4 has priority
		{[]string{"G", "C2", "D2"}, "Gsus4"},
		{[]string{"D", "G", "A"}, "Dsus4"},
		// sevenths resolve to the first triad template they contain
		{[]string{"A", "C2", "E2", "G2"}, "C"},
		{[]string{"D", "F", "A", "C2"}, "F"},
		{[]string{"G", "B", "D2", "F2"}, "G"},
		{[]string{"C", "E", "G", "B"}, "C"},
		{[]string{"C", "C#", "D"}, "C?"},
		{[]string{"C3", "G", "F#", "G#"}, "F#?"},
	}
	for _, tc := range cases {
		notes := make([]Note, len(tc.notes))
		for i, id := range tc.notes {
			notes[i] = Note{ID: id, Octave: 4}
		}
		root, q, _ := Identify(notes)
		got := Chord{Root: root, Quality: q}.Name()
		if got != tc.want {
			t.Fatalf("Identify(%v) = %s, want %s", tc.notes, got, tc.want)
		}
	}
}

func TestDetectChordsClustersWithinWindow(t *testing.T) {
	var events []sequencer.Event
	events = append(events, ons(0, "C")...)
	events = append(events, ons(20*time.Millisecond, "E")...)
	events = append(events, ons(50*time.Millisecond, "G")...)
	events = append(events, ons(1*time.Second, "A", "C2")...)
	events = append(events, ons(1030*time.Millisecond, "E2")...)
	// only two pitch classes: not a chord
	events = append(events, ons(2*time.Second, "D", "D2", "F")...)
	// outside the window of its first note
	events = append(events, ons(3*time.Second, "E", "G")...)
	events = append(events, ons(3*time.Second+60*time.Millisecond, "B")...)

	chords := DetectChords(events)
	if len(chords) != 2 {
		t.Fatalf("chords = %v, want [C Am]", chords)
	}
	if chords[0].Name() != "C" || chords[0].At != 0 {
		t.Fatalf("first chord = %s at %v", chords[0], chords[0].At)
	}
	if chords[1].Name() != "Am" || chords[1].At != time.Second {
		t.Fatalf("second chord = %s at %v", chords[1], chords[1].At)
	}
}

func TestDefaultProgressions(t *testing.T) {
	major := Default(0, Major, 120)
	names := chordNames(major.Chords)
	if names != "C G Am F" {
		t.Fatalf("major progression = %s, want C G Am F", names)
	}
	if major.Chords[1].At != 2*time.Second || major.Duration != 8*time.Second {
		t.Fatalf("bar=%v duration=%v, want 2s and 8s at 120bpm", major.Chords[1].At, major.Duration)
	}
	minor := Default(9, Dorian, 90)
	if got := chordNames(minor.Chords); got != "Am G F G" {
		t.Fatalf("minor progression = %s, want Am G F G", got)
	}
	if minor.NoteCount != 0 {
		t.Fatalf("default analysis claims %d notes", minor.NoteCount)
	}
}

func TestChordAt(t *testing.T) {
	a := Default(0, Major, 120)
	if _, ok := (Analysis{}).ChordAt(0); ok {
		t.Fatalf("empty analysis returned a chord")
	}
	c, ok := a.ChordAt(4500 * time.Millisecond)
	if !ok || c.Name() != "Am" {
		t.Fatalf("ChordAt(4.5s) = %v, want Am", c)
	}
}

func TestChordTones(t *testing.T) {
	if got := (Chord{Root: 9, Quality: QualityMinor}).Tones(); got[0] != 9 || got[1] != 0 || got[2] != 4 {
		t.Fatalf("Am tones = %v, want [9 0 4]", got)
	}
	if got := (Chord{Root: 11, Quality: QualityDim}).Tones(); got[1] != 2 || got[2] != 5 {
		t.Fatalf("Bdim tones = %v, want [11 2 5]", got)
	}
}

func chordNames(chords []Chord) string {
	s := ""
	for i, c := range chords {
		if i > 0 {
			s += " "
		}
		s += c.Name()
	}
	return s
}
