package pitch

import (
	"math"
	"strings"
)

const (
	MinOctave       = 1
	MaxOctave       = 7
	ReferenceOctave = 4

	MinBend = -100
	MaxBend = 100

	DefaultBendRange = 2.0
)

// ClassNames lists the 12 pitch classes starting at C.
var ClassNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Order is every note identifier from lowest to highest pitch.
var Order = []string{
	"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B",
	"C2", "C#2", "D2", "D#2", "E2", "F2", "F#2", "G2", "G#2", "A2", "A#2", "B2",
	"C3", "C#3", "D3", "D#3", "E3", "F3", "F#3", "G3", "G#3", "A3", "A#3", "B3",
	"C4",
}

// base frequencies at the reference octave
var baseFrequencies = map[string]float64{
	"C": 261.63, "C#": 277.18, "D": 293.66, "D#": 311.13, "E": 329.63, "F": 349.23,
	"F#": 369.99, "G": 392.00, "G#": 415.30, "A": 440.00, "A#": 466.16, "B": 493.88,

	"C2": 523.25, "C#2": 554.37, "D2": 587.33, "D#2": 622.25, "E2": 659.25, "F2": 698.46,
	"F#2": 739.99, "G2": 783.99, "G#2": 830.61, "A2": 880.00, "A#2": 932.33, "B2": 987.77,

	"C3": 1046.50, "C#3": 1108.73, "D3": 1174.66, "D#3": 1244.51, "E3": 1318.51, "F3": 1396.91,
	"F#3": 1479.98, "G3": 1567.98, "G#3": 1661.22, "A3": 1760.00, "A#3": 1864.66, "B3": 1975.53,

	"C4": 2093.00,
}

var orderIndex = func() map[string]int {
	m := make(map[string]int, len(Order))
	for i, id := range Order {
		m[id] = i
	}
	return m
}()

// Base returns the reference-octave frequency of id.
func Base(id string) (float64, bool) {
	f, ok := baseFrequencies[id]
	return f, ok
}

// Valid reports whether id is a known note identifier.
func Valid(id string) bool {
	_, ok := baseFrequencies[id]
	return ok
}

// Index returns the position of id in Order, or -1.
func Index(id string) int {
	if i, ok := orderIndex[id]; ok {
		return i
	}
	return -1
}

// OctaveFactor is the transposition multiplier for octave relative to the reference.
func OctaveFactor(octave int) float64 {
	return math.Pow(2, float64(octave-ReferenceOctave))
}

// BendSemitones maps a bend value in [-100,100] onto ±rangeSemitones.
func BendSemitones(bend int, rangeSemitones float64) float64 {
	return float64(ClampBend(bend)) / 100 * rangeSemitones
}

// BendFactor is the frequency multiplier for a bend value.
func BendFactor(bend int, rangeSemitones float64) float64 {
	if bend == 0 {
		return 1
	}
	return math.Pow(2, BendSemitones(bend, rangeSemitones)/12)
}

// Unbent returns the octave-shifted frequency of id without pitch bend.
func Unbent(id string, octave int) (float64, bool) {
	f, ok := baseFrequencies[id]
	if !ok {
		return 0, false
	}
	return f * OctaveFactor(ClampOctave(octave)), true
}

// Frequency returns the sounding frequency of id at octave under bend.
func Frequency(id string, octave int, bend int, rangeSemitones float64) (float64, bool) {
	f, ok := Unbent(id, octave)
	if !ok {
		return 0, false
	}
	return f * BendFactor(bend, rangeSemitones), true
}

// Class strips the octave tag from id ("C#2" -> "C#").
func Class(id string) string {
	return strings.TrimRight(id, "0123456789")
}

// ClassIndex returns 0..11 for a pitch class or note identifier, or -1.
func ClassIndex(id string) int {
	c := Class(id)
	for i, n := range ClassNames {
		if n == c {
			return i
		}
	}
	return -1
}

// Register returns the 0-based octave layer encoded in an identifier's tag
// ("C" -> 0, "C2" -> 1, "C3" -> 2, "C4" -> 3).
func Register(id string) int {
	i := Index(id)
	if i < 0 {
		return 0
	}
	return i / 12
}

// ID builds the identifier for pitch class pc (0..11) in register layer r.
// The result is empty when the combination is not in the table.
func ID(pc int, register int) string {
	pc = ((pc % 12) + 12) % 12
	i := register*12 + pc
	if i < 0 || i >= len(Order) {
		return ""
	}
	return Order[i]
}

func ClampOctave(octave int) int {
	if octave < MinOctave {
		return MinOctave
	}
	if octave > MaxOctave {
		return MaxOctave
	}
	return octave
}

func ClampBend(bend int) int {
	if bend < MinBend {
		return MinBend
	}
	if bend > MaxBend {
		return MaxBend
	}
	return bend
}
