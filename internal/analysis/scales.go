package analysis

import "github.com/cbegin/vkeys-go/internal/pitch"

type Scale string

const (
	Major           Scale = "major"
	Minor           Scale = "minor"
	PentatonicMajor Scale = "pentatonicMajor"
	PentatonicMinor Scale = "pentatonicMinor"
	Dorian          Scale = "dorian"
	Blues           Scale = "blues"
	Chromatic       Scale = "chromatic"
)

// Intervals lists each scale's degrees as semitone offsets from the root.
var Intervals = map[Scale][]int{
	Major:           {0, 2, 4, 5, 7, 9, 11},
	Minor:           {0, 2, 3, 5, 7, 8, 10},
	PentatonicMajor: {0, 2, 4, 7, 9},
	PentatonicMinor: {0, 3, 5, 7, 10},
	Dorian:          {0, 2, 3, 5, 7, 9, 10},
	Blues:           {0, 3, 5, 6, 7, 10},
	Chromatic:       {0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
}

// Detectable is the enumeration order used by key detection. Ties keep the
// earliest entry.
var Detectable = []Scale{Major, Minor, PentatonicMajor, PentatonicMinor}

// Valid reports whether s names a known scale.
func (s Scale) Valid() bool {
	_, ok := Intervals[s]
	return ok
}

// IsMinor reports whether a scale has a minor tonic.
func (s Scale) IsMinor() bool {
	switch s {
	case Minor, PentatonicMinor, Dorian, Blues:
		return true
	}
	return false
}

// PitchClasses returns the pitch classes of the scale built on root.
func PitchClasses(root int, s Scale) []int {
	degrees := Intervals[s]
	out := make([]int, len(degrees))
	for i, d := range degrees {
		out[i] = mod12(root + d)
	}
	return out
}

// Contains reports whether pitch class pc belongs to the scale on root.
func Contains(root int, s Scale, pc int) bool {
	for _, d := range Intervals[s] {
		if mod12(root+d) == mod12(pc) {
			return true
		}
	}
	return false
}

// KeyName spells a pitch class.
func KeyName(pc int) string {
	return pitch.ClassNames[mod12(pc)]
}

func mod12(n int) int {
	return ((n % 12) + 12) % 12
}
