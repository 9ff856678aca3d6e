package vkeys

// ChordNames lists the chord buttons in display order.
var ChordNames = []string{"C", "Dm", "Em", "F", "G", "Am", "Bdim"}

// chordNotes are the diatonic triads of C major voiced inside the keyboard.
var chordNotes = map[string][]string{
	"C":    {"C", "E", "G"},
	"Dm":   {"D", "F", "A"},
	"Em":   {"E", "G", "B"},
	"F":    {"F", "A", "C2"},
	"G":    {"G", "B", "D2"},
	"Am":   {"A", "C2", "E2"},
	"Bdim": {"B", "D2", "F"},
}

// ChordNotes returns the note ids of a chord button.
func ChordNotes(name string) ([]string, bool) {
	notes, ok := chordNotes[name]
	if !ok {
		return nil, false
	}
	return append([]string(nil), notes...), true
}

// PlayChord presses every note of a chord button as if played live. Unknown
// names are ignored.
func (in *Instrument) PlayChord(name string) bool {
	notes, ok := chordNotes[name]
	if !ok {
		return false
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	for _, id := range notes {
		in.noteOn(id)
	}
	return true
}

func (in *Instrument) StopChord(name string) bool {
	notes, ok := chordNotes[name]
	if !ok {
		return false
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	for _, id := range notes {
		in.noteOff(id)
	}
	return true
}
