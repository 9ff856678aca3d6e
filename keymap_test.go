package vkeys

import (
	"testing"

	intpitch "github.com/cbegin/vkeys-go/internal/pitch"
)

func TestKeyMapCoversKeyboard(t *testing.T) {
	seen := map[string]string{}
	for k, id := range KeyMap {
		if !intpitch.Valid(id) {
			t.Fatalf("key %q maps to unknown note %q", k, id)
		}
		if prev, ok := seen[id]; ok {
			t.Fatalf("note %s bound to both %q and %q", id, prev, k)
		}
		seen[id] = k
	}
	if len(seen) != len(intpitch.Order) {
		t.Fatalf("%d notes reachable from the keyboard, want %d", len(seen), len(intpitch.Order))
	}
	if id, ok := NoteForKey("H"); !ok || id != "A" {
		t.Fatalf("NoteForKey(H) = %q, %v; want A", id, ok)
	}
	if _, ok := NoteForKey(OctaveUpKey); ok {
		t.Fatalf("octave key must not play a note")
	}
}
