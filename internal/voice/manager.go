// Package voice owns the set of sounding notes: at most one voice per note
// identifier, sustain-pedal hold-over and live pitch bend.
package voice

import (
	"sort"
	"time"

	"github.com/cbegin/vkeys-go/internal/pitch"
)

// Envelope contract shared with renderers.
const (
	AttackTime    = 10 * time.Millisecond
	DecayTime     = 100 * time.Millisecond
	ReleaseTime   = 300 * time.Millisecond
	BendSmoothing = 10 * time.Millisecond
)

// Renderer is the sound-producing collaborator. A Renderer creates one voice
// per call, ramping to peak over AttackTime and decaying to its sustain level
// by DecayTime, and frees the voice once a release completes.
type Renderer interface {
	CreateVoice(freq float64) (int, error)
	Retune(handle int, freq float64, smoothing time.Duration)
	Release(handle int, release time.Duration)
}

// Recorder receives live note events while a performance is being captured.
type Recorder interface {
	RecordNoteOn(id string, octave int)
	RecordNoteOff(id string)
}

// Voice is one sounding note.
type Voice struct {
	ID     string
	Octave int
	// BaseFreq is the octave-shifted frequency before pitch bend.
	BaseFreq float64
	Handle   int
	Serial   uint64
}

// Ref names one voice instance. A later voice for the same id gets a new
// Ref, so holders of an old Ref cannot touch it.
type Ref struct {
	ID     string
	Serial uint64
}

type Manager struct {
	renderer  Renderer
	recorder  Recorder
	active    map[string]*Voice
	sustained map[string]struct{}
	sustain   bool
	octave    int
	bend      int
	bendRange float64
	disabled  bool
	serial    uint64
}

func NewManager(r Renderer) *Manager {
	return &Manager{
		renderer:  r,
		active:    make(map[string]*Voice),
		sustained: make(map[string]struct{}),
		octave:    pitch.ReferenceOctave,
		bendRange: pitch.DefaultBendRange,
	}
}

func (m *Manager) SetRecorder(r Recorder) {
	m.recorder = r
}

// SetDisabled blocks creation of new voices, e.g. while no audio resource is held.
func (m *Manager) SetDisabled(disabled bool) {
	m.disabled = disabled
}

// SetOctave sets the live octave; values outside [1,7] are ignored.
func (m *Manager) SetOctave(octave int) bool {
	if octave < pitch.MinOctave || octave > pitch.MaxOctave {
		return false
	}
	m.octave = octave
	return true
}

func (m *Manager) Octave() int { return m.octave }

func (m *Manager) SetBendRange(semitones float64) {
	if semitones < 0 {
		semitones = 0
	}
	m.bendRange = semitones
}

func (m *Manager) BendRange() float64 { return m.bendRange }

// NoteOn starts a voice for id. octave <= 0 means the live octave. It reports
// whether a new voice was created; a second note-on for a sounding id, an
// unknown id or a renderer failure all leave state untouched.
func (m *Manager) NoteOn(id string, octave int, playback bool) bool {
	_, ok := m.NoteOnRef(id, octave, playback)
	return ok
}

// NoteOnRef is NoteOn returning a Ref to the voice it created.
func (m *Manager) NoteOnRef(id string, octave int, playback bool) (Ref, bool) {
	if _, ok := m.active[id]; ok {
		return Ref{}, false
	}
	if octave <= 0 {
		octave = m.octave
	}
	base, ok := pitch.Unbent(id, octave)
	if !ok || m.disabled {
		return Ref{}, false
	}
	handle, err := m.renderer.CreateVoice(base * pitch.BendFactor(m.bend, m.bendRange))
	if err != nil {
		return Ref{}, false
	}
	if !playback && m.recorder != nil {
		m.recorder.RecordNoteOn(id, octave)
	}
	m.serial++
	m.active[id] = &Voice{ID: id, Octave: octave, BaseFreq: base, Handle: handle, Serial: m.serial}
	return Ref{ID: id, Serial: m.serial}, true
}

// Owns reports whether r still names the sounding voice for its id.
func (m *Manager) Owns(r Ref) bool {
	v, ok := m.active[r.ID]
	return ok && r.Serial != 0 && v.Serial == r.Serial
}

// NoteOffRef is NoteOff limited to the voice r names. Once that voice is
// gone it does nothing, even if the id is sounding again.
func (m *Manager) NoteOffRef(r Ref, playback, force bool) {
	if m.Owns(r) {
		m.NoteOff(r.ID, playback, force)
	}
}

// StopRef is Stop limited to the voice r names.
func (m *Manager) StopRef(r Ref, release time.Duration) {
	if m.Owns(r) {
		m.Stop(r.ID, release)
	}
}

// NoteOff releases id. While the sustain pedal is down, live note-offs move
// the note into the sustained set and it keeps sounding.
func (m *Manager) NoteOff(id string, playback, force bool) {
	v, ok := m.active[id]
	if !ok {
		return
	}
	if m.sustain && !force && !playback {
		m.sustained[id] = struct{}{}
		return
	}
	if !playback && m.recorder != nil {
		m.recorder.RecordNoteOff(id)
	}
	m.release(v, ReleaseTime)
}

// Stop releases a voice with a custom release time, bypassing sustain and
// recording.
func (m *Manager) Stop(id string, release time.Duration) {
	if v, ok := m.active[id]; ok {
		m.release(v, release)
	}
}

func (m *Manager) release(v *Voice, d time.Duration) {
	m.renderer.Release(v.Handle, d)
	delete(m.active, v.ID)
	delete(m.sustained, v.ID)
}

// PressSustain engages the pedal.
func (m *Manager) PressSustain() {
	m.sustain = true
}

// ReleaseSustain lifts the pedal and force-stops every note it was holding.
func (m *Manager) ReleaseSustain() {
	m.sustain = false
	for _, id := range m.sortedKeys(m.sustained) {
		m.NoteOff(id, false, true)
	}
}

func (m *Manager) Sustain() bool { return m.sustain }

// Sustained lists notes held only by the pedal, lowest first.
func (m *Manager) Sustained() []string {
	return m.sortedKeys(m.sustained)
}

// SetPitchBend stores bend and retunes every sounding voice.
func (m *Manager) SetPitchBend(bend int) {
	m.bend = pitch.ClampBend(bend)
	factor := pitch.BendFactor(m.bend, m.bendRange)
	for _, id := range m.Active() {
		v := m.active[id]
		m.renderer.Retune(v.Handle, v.BaseFreq*factor, BendSmoothing)
	}
}

func (m *Manager) PitchBend() int { return m.bend }

// Frequency returns the current target frequency of a sounding voice.
func (m *Manager) Frequency(id string) (float64, bool) {
	v, ok := m.active[id]
	if !ok {
		return 0, false
	}
	return v.BaseFreq * pitch.BendFactor(m.bend, m.bendRange), true
}

// Sounding reports whether id has an active voice.
func (m *Manager) Sounding(id string) bool {
	_, ok := m.active[id]
	return ok
}

// Voice returns a copy of the voice for id.
func (m *Manager) Voice(id string) (Voice, bool) {
	v, ok := m.active[id]
	if !ok {
		return Voice{}, false
	}
	return *v, true
}

// Active lists sounding note identifiers, lowest first.
func (m *Manager) Active() []string {
	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return pitch.Index(ids[i]) < pitch.Index(ids[j]) })
	return ids
}

// StopAll force-releases every voice, bypassing sustain. Nothing is recorded.
func (m *Manager) StopAll() {
	for _, id := range m.Active() {
		m.NoteOff(id, true, true)
	}
}

func (m *Manager) sortedKeys(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return pitch.Index(ids[i]) < pitch.Index(ids[j]) })
	return ids
}
