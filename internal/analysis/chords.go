package analysis

import (
	"sort"
	"time"

	"github.com/cbegin/vkeys-go/internal/pitch"
	"github.com/cbegin/vkeys-go/internal/sequencer"
)

// Quality is a chord type, spelled as the suffix appended to the root name.
type Quality string

const (
	QualityMajor     Quality = ""
	QualityMinor     Quality = "m"
	QualityDim       Quality = "dim"
	QualityAug       Quality = "aug"
	QualitySus4      Quality = "sus4"
	QualitySus2      Quality = "sus2"
	QualityDominant7 Quality = "7"
	QualityMajor7    Quality = "maj7"
	QualityMinor7    Quality = "m7"
	QualityUnknown   Quality = "?"
)

type template struct {
	quality   Quality
	intervals []int
}

// templates in match priority order
var templates = []template{
	{QualityMajor, []int{0, 4, 7}},
	{QualityMinor, []int{0, 3, 7}},
	{QualityDim, []int{0, 3, 6}},
	{QualityAug, []int{0, 4, 8}},
	{QualitySus4, []int{0, 5, 7}},
	{QualitySus2, []int{0, 2, 7}},
	{QualityDominant7, []int{0, 4, 7, 10}},
	{QualityMajor7, []int{0, 4, 7, 11}},
	{QualityMinor7, []int{0, 3, 7, 10}},
}

type Chord struct {
	Root    int
	Quality Quality
	At      time.Duration
}

// Name is the root spelled with the quality suffix, e.g. "Am" or "G7".
func (c Chord) Name() string {
	return KeyName(c.Root) + string(c.Quality)
}

func (c Chord) String() string {
	return c.Name()
}

// Tones returns root, third and fifth pitch classes for weighting melody
// against the chord. The third and fifth follow the chord quality, so a
// minor chord doubles its minor third only rather than both thirds.
func (c Chord) Tones() []int {
	third, fifth := 4, 7
	switch c.Quality {
	case QualityMinor, QualityMinor7:
		third = 3
	case QualityDim:
		third, fifth = 3, 6
	case QualityAug:
		fifth = 8
	case QualitySus4:
		third = 5
	case QualitySus2:
		third = 2
	}
	return []int{mod12(c.Root), mod12(c.Root + third), mod12(c.Root + fifth)}
}

// Identify names a set of sounding notes. Templates are tried in priority
// order against every candidate root, lowest note first; the first template
// contained in the notes' interval set wins, so a seventh chord is named by
// the first triad it contains (A C E G reads as C). With no match the lowest
// note is returned with QualityUnknown.
func Identify(notes []Note) (root int, q Quality, ok bool) {
	roots := distinctClasses(notes)
	if len(roots) == 0 {
		return 0, QualityUnknown, false
	}
	for _, t := range templates {
		for _, r := range roots {
			if containsIntervals(roots, r, t.intervals) {
				return r, t.quality, true
			}
		}
	}
	return roots[0], QualityUnknown, false
}

// Note is a pitch in a chord cluster.
type Note struct {
	ID     string
	Octave int
}

func (n Note) height() int {
	return pitch.Index(n.ID) + 12*(n.Octave-pitch.ReferenceOctave)
}

// DetectChords groups note-ons into clusters starting within ChordWindow of
// the cluster's first note and names every cluster with at least three
// distinct pitch classes.
func DetectChords(events []sequencer.Event) []Chord {
	var (
		chords  []Chord
		cluster []Note
		start   time.Duration
	)
	flush := func() {
		if len(distinctClasses(cluster)) >= 3 {
			root, q, _ := Identify(cluster)
			chords = append(chords, Chord{Root: root, Quality: q, At: start})
		}
		cluster = cluster[:0]
	}
	for _, ev := range events {
		if ev.Kind != sequencer.NoteOn || !pitch.Valid(ev.Note) {
			continue
		}
		if len(cluster) > 0 && ev.Offset-start > ChordWindow {
			flush()
		}
		if len(cluster) == 0 {
			start = ev.Offset
		}
		octave := ev.Octave
		if octave <= 0 {
			octave = pitch.ReferenceOctave
		}
		cluster = append(cluster, Note{ID: ev.Note, Octave: octave})
	}
	flush()
	return chords
}

// distinctClasses returns the pitch classes present, ordered by the lowest
// sounding note of each class.
func distinctClasses(notes []Note) []int {
	sorted := make([]Note, len(notes))
	copy(sorted, notes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].height() < sorted[j].height() })
	seen := make(map[int]bool, 12)
	var out []int
	for _, n := range sorted {
		pc := pitch.ClassIndex(n.ID)
		if pc < 0 || seen[pc] {
			continue
		}
		seen[pc] = true
		out = append(out, pc)
	}
	return out
}

func containsIntervals(classes []int, root int, intervals []int) bool {
	have := make(map[int]bool, len(classes))
	for _, pc := range classes {
		have[mod12(pc-root)] = true
	}
	for _, iv := range intervals {
		if !have[iv] {
			return false
		}
	}
	return true
}
