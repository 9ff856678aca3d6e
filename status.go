package vkeys

import (
	intanalysis "github.com/cbegin/vkeys-go/internal/analysis"
	intarp "github.com/cbegin/vkeys-go/internal/arp"
	intimprov "github.com/cbegin/vkeys-go/internal/improv"
	intseq "github.com/cbegin/vkeys-go/internal/sequencer"
)

// Status is a consistent snapshot of everything a front end displays.
type Status struct {
	State         intseq.State
	Recorded      int
	Iterations    int
	ArpEnabled    bool
	ArpHold       bool
	ArpParams     intarp.Params
	ArpHeld       []string
	ImprovPlaying bool
	ImprovParams  intimprov.Params
	Analysis      intanalysis.Analysis
	Analyzed      bool
	ActiveNotes   []string
	Sustained     []string
	Octave        int
	PitchBend     int
	Sustain       bool
	Tempo         float64
	Volume        float64
	AudioOpen     bool
}

func (in *Instrument) Status() Status {
	in.mu.Lock()
	defer in.mu.Unlock()
	return Status{
		State:         in.seq.State(),
		Recorded:      in.seq.Len(),
		Iterations:    in.seq.Iterations(),
		ArpEnabled:    in.arp.Enabled(),
		ArpHold:       in.arp.Hold(),
		ArpParams:     in.arp.Params(),
		ArpHeld:       in.arp.Held(),
		ImprovPlaying: in.improv.Playing(),
		ImprovParams:  in.improvParams,
		Analysis:      in.analysis,
		Analyzed:      in.analyzed,
		ActiveNotes:   in.voices.Active(),
		Sustained:     in.voices.Sustained(),
		Octave:        in.voices.Octave(),
		PitchBend:     in.voices.PitchBend(),
		Sustain:       in.voices.Sustain(),
		Tempo:         in.tempo,
		Volume:        in.volume,
		AudioOpen:     in.out != nil,
	}
}

func (in *Instrument) IsRecording() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.seq.IsRecording()
}

func (in *Instrument) IsPlaying() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.seq.IsPlaying()
}

func (in *Instrument) ArpEnabled() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.arp.Enabled()
}

func (in *Instrument) ImprovPlaying() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.improv.Playing()
}

// Analysis returns the last analysis and whether one has been made since the
// take was last cleared.
func (in *Instrument) Analysis() (intanalysis.Analysis, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.analysis, in.analyzed
}

// ActiveNotes lists sounding note ids, lowest first.
func (in *Instrument) ActiveNotes() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.voices.Active()
}

// Frequency is the current target frequency of a sounding note, bend included.
func (in *Instrument) Frequency(id string) (float64, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.voices.Frequency(id)
}

func (in *Instrument) Octave() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.voices.Octave()
}

func (in *Instrument) PitchBend() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.voices.PitchBend()
}

func (in *Instrument) Sustain() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.voices.Sustain()
}

func (in *Instrument) Tempo() float64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.tempo
}

func (in *Instrument) Volume() float64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.volume
}
