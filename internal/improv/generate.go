// Package improv composes new phrases in the key and harmony of an analysis
// and loops them alongside, or instead of, a recorded take.
package improv

import (
	"math/rand"
	"time"

	"github.com/cbegin/vkeys-go/internal/analysis"
	"github.com/cbegin/vkeys-go/internal/pitch"
)

type Style string

const (
	StyleJazz      Style = "jazz"
	StyleBlues     Style = "blues"
	StyleClassical Style = "classical"
	StylePop       Style = "pop"
	StyleAmbient   Style = "ambient"
	StyleRandom    Style = "random"
)

var Styles = []Style{StyleJazz, StyleBlues, StyleClassical, StylePop, StyleAmbient, StyleRandom}

const (
	MaxComplexity = 10
	MaxDensity    = 10
	registers     = 3
)

type Params struct {
	Style      Style
	Complexity int
	Density    int
	Tempo      float64
	// Octave is passed through to every event; 0 plays at the live octave.
	Octave int
}

func DefaultParams() Params {
	return Params{
		Style:      StyleJazz,
		Complexity: 5,
		Density:    5,
		Tempo:      120,
	}
}

// Event is one generated note with its own length.
type Event struct {
	Note     string
	Octave   int
	Offset   time.Duration
	Duration time.Duration
}

// End is when the note is released.
func (e Event) End() time.Duration {
	return e.Offset + e.Duration
}

type candidate struct {
	pc     int
	weight float64
}

// ScaleFor returns the scale a style improvises over. Styles override the
// detected scale; classical, pop and ambient only keep its tonic quality.
func ScaleFor(s Style, detected analysis.Scale) analysis.Scale {
	minor := detected.IsMinor()
	switch s {
	case StyleJazz:
		return analysis.Dorian
	case StyleBlues:
		return analysis.Blues
	case StyleClassical:
		if minor {
			return analysis.Minor
		}
		return analysis.Major
	case StyleRandom:
		return analysis.Chromatic
	default:
		if minor {
			return analysis.PentatonicMinor
		}
		return analysis.PentatonicMajor
	}
}

// NoteCount is floor(seconds * (0.5 + density/10*4)).
func NoteCount(d time.Duration, density int) int {
	density = clamp(density, 0, MaxDensity)
	perSecond := 0.5 + float64(density)/10*4
	return int(d.Seconds() * perSecond)
}

// Generate composes a phrase over a. Equal seeds give equal phrases.
func Generate(a analysis.Analysis, p Params, rng *rand.Rand) []Event {
	if p.Tempo <= 0 {
		p.Tempo = DefaultParams().Tempo
	}
	p.Complexity = clamp(p.Complexity, 0, MaxComplexity)
	beat := time.Duration(float64(time.Minute) / p.Tempo)
	total := a.Duration
	if total <= 0 {
		total = analysis.DefaultBeats * beat
	}
	count := NoteCount(total, p.Density)
	if count <= 0 {
		return nil
	}
	pool := analysis.PitchClasses(a.Key, ScaleFor(p.Style, a.Scale))
	spacing := float64(total) / float64(count)

	g := &generator{a: a, p: p, rng: rng, prevPC: -1}
	events := make([]Event, 0, count)
	var at time.Duration
	for i := 0; i < count; i++ {
		pc := g.pickClass(pool, at)
		reg := g.pickRegister(pc)
		events = append(events, Event{
			Note:     pitch.ID(pc, reg),
			Octave:   p.Octave,
			Offset:   at,
			Duration: g.noteLength(beat),
		})
		at += time.Duration(spacing * (0.5 + rng.Float64()))
	}
	return events
}

type generator struct {
	a        analysis.Analysis
	p        Params
	rng      *rand.Rand
	prevPC   int
	prevReg  int
	lastJump int
}

func (g *generator) pickClass(pool []int, at time.Duration) int {
	cands := make([]candidate, len(pool))
	for i, pc := range pool {
		cands[i] = candidate{pc: pc, weight: 1}
	}

	if chord, ok := g.a.ChordAt(at); ok {
		tones := chord.Tones()
		for i := range cands {
			if containsInt(tones, cands[i].pc) {
				cands[i].weight *= 2
			}
		}
	}

	g.styleWeights(cands)

	if g.prevPC >= 0 && g.p.Complexity > 5 && g.rng.Float64() < float64(g.p.Complexity-5)/10 {
		step := 1
		if g.rng.Intn(2) == 0 {
			step = -1
		}
		cands = append(cands, candidate{pc: mod12(g.prevPC + step), weight: 0.5})
	}

	if g.prevPC >= 0 {
		for i := range cands {
			d := distance(cands[i].pc, g.prevPC)
			if d <= 2 {
				cands[i].weight *= 1.5
			} else if d >= 5 {
				cands[i].weight *= 0.5
			}
		}
	}

	return cands[weighted(g.rng, cands)].pc
}

func (g *generator) styleWeights(cands []candidate) {
	key := g.a.Key
	minor := g.a.Scale.IsMinor()
	for i := range cands {
		iv := mod12(cands[i].pc - key)
		switch g.p.Style {
		case StyleJazz:
			if iv == 3 || iv == 6 || iv == 10 {
				cands[i].weight *= 1.3
			}
		case StyleBlues:
			if iv == 3 || iv == 4 || iv == 6 || iv == 10 {
				cands[i].weight *= 1.5
			}
		case StyleClassical:
			if !analysis.Contains(key, ScaleFor(StyleClassical, g.a.Scale), cands[i].pc) {
				cands[i].weight *= 0.3
			}
		case StyleAmbient:
			if g.prevPC >= 0 && distance(cands[i].pc, g.prevPC) == 1 {
				cands[i].weight *= 0.3
			}
		case StylePop:
			third := 4
			if minor {
				third = 3
			}
			if iv == 0 || iv == third || iv == 7 {
				cands[i].weight *= 1.8
			}
		}
	}
}

// pickRegister chooses the octave layer for pc with a bias toward the
// previous one, then makes pc the previous note. After a leap of a fifth or
// more the register on the far side of the leap is favoured so lines turn
// back.
func (g *generator) pickRegister(pc int) int {
	weights := make([]float64, registers)
	for r := range weights {
		switch d := absInt(r - g.prevReg); d {
		case 0:
			weights[r] = 3
		case 1:
			weights[r] = 1.5
		default:
			weights[r] = 0.5
		}
		if g.lastJump >= 7 && r < g.prevReg {
			weights[r] *= 2
		}
		if g.lastJump <= -7 && r > g.prevReg {
			weights[r] *= 2
		}
	}
	cands := make([]candidate, registers)
	for r, w := range weights {
		cands[r] = candidate{pc: r, weight: w}
	}
	reg := cands[weighted(g.rng, cands)].pc
	if g.prevPC >= 0 {
		g.lastJump = (reg*12 + pc) - (g.prevReg*12 + g.prevPC)
	}
	g.prevPC, g.prevReg = pc, reg
	return reg
}

func (g *generator) noteLength(beat time.Duration) time.Duration {
	var beats float64
	switch g.p.Style {
	case StyleAmbient:
		beats = 1 + g.rng.Float64()*2
	case StyleJazz:
		beats = 0.25 + g.rng.Float64()*0.75
	case StyleBlues:
		beats = 0.5 + g.rng.Float64()*0.5
	case StyleClassical:
		choices := []float64{0.25, 0.5, 0.5, 1}
		beats = choices[g.rng.Intn(len(choices))]
	default:
		beats = 0.5
	}
	return time.Duration(beats * float64(beat))
}

func weighted(rng *rand.Rand, cands []candidate) int {
	total := 0.0
	for _, c := range cands {
		total += c.weight
	}
	r := rng.Float64() * total
	for i, c := range cands {
		r -= c.weight
		if r < 0 {
			return i
		}
	}
	return len(cands) - 1
}

// distance is the wrapped semitone distance between two pitch classes.
func distance(a, b int) int {
	d := mod12(a - b)
	if d > 6 {
		d = 12 - d
	}
	return d
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func mod12(n int) int {
	return ((n % 12) + 12) % 12
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
