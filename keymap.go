package vkeys

import "strings"

// KeyMap maps lower-case qwerty keys to note ids. The home row carries the
// first octave's naturals with sharps on the row above; the number row
// continues into the third octave.
var KeyMap = map[string]string{
	"a": "C", "s": "D", "d": "E", "f": "F", "g": "G", "h": "A", "j": "B",
	"w": "C#", "e": "D#", "t": "F#", "y": "G#", "u": "A#",

	"k": "C2", "l": "D2", ";": "E2", "'": "F2", "\\": "G2",
	"o": "C#2", "p": "D#2", "[": "F#2", "]": "G#2",

	"1": "A2", "2": "A#2", "3": "B2", "4": "C3", "5": "C#3", "6": "D3",
	"7": "D#3", "8": "E3", "9": "F3", "0": "F#3", "-": "G3", "=": "G#3",
	"q": "A3", "r": "A#3", "n": "B3", "m": "C4",
}

// Octave shift keys.
const (
	OctaveDownKey = "z"
	OctaveUpKey   = "x"
)

// NoteForKey returns the note played by a qwerty key, ignoring case.
func NoteForKey(key string) (string, bool) {
	id, ok := KeyMap[strings.ToLower(key)]
	return id, ok
}
