// Package synth is the default voice renderer: one oscillator and envelope
// per note, mixed to stereo float32 frames.
package synth

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

const twoPi = math.Pi * 2

// silence is where exponential ramps stop; a true zero is unreachable.
const silence = 0.001

type Waveform int

const (
	Triangle Waveform = iota
	Sine
	Square
	Sawtooth
)

var waveNames = map[string]Waveform{
	"triangle": Triangle,
	"sine":     Sine,
	"square":   Square,
	"sawtooth": Sawtooth,
}

// ParseWaveform maps a waveform name to its constant.
func ParseWaveform(name string) (Waveform, bool) {
	w, ok := waveNames[name]
	return w, ok
}

func (w Waveform) String() string {
	for name, v := range waveNames {
		if v == w {
			return name
		}
	}
	return "unknown"
}

type Params struct {
	Waveform   Waveform
	MasterGain float64
	PeakLevel  float64
	SustainLvl float64
	AttackSec  float64
	DecaySec   float64
	// VibratoDepth is in semitones; 0 disables vibrato.
	VibratoDepth float64
	VibratoRate  float64
	// Room is the reverb send in [0,1].
	Room float64
	// LimitDB is the master ceiling in dBFS; 0 disables the limiter.
	LimitDB float64
}

func DefaultParams() Params {
	return Params{
		Waveform:    Triangle,
		MasterGain:  0.75,
		PeakLevel:   0.5,
		SustainLvl:  0.3,
		AttackSec:   0.01,
		DecaySec:    0.1,
		VibratoRate: 5,
		LimitDB:     -1,
	}
}

type envState int

const (
	envAttack envState = iota
	envDecay
	envSustain
	envRelease
	envOff
)

type voice struct {
	active       bool
	handle       int
	freq         float64
	targetFreq   float64
	glide        float64
	phase        float64
	env          float64
	envState     envState
	releaseLeft  int
	releaseCoeff float64
}

type Engine struct {
	sampleRate float64
	params     Params
	voices     []voice
	nextHandle int
	masterGain uint64
	decayCoeff float64
	vibrato    vibrato
	room       *room
	limiter    *limiter
}

func New(sampleRate int, params Params) *Engine {
	def := DefaultParams()
	if params.PeakLevel <= 0 {
		params.PeakLevel = def.PeakLevel
	}
	if params.SustainLvl <= 0 || params.SustainLvl > params.PeakLevel {
		params.SustainLvl = def.SustainLvl
	}
	if params.AttackSec <= 0 {
		params.AttackSec = def.AttackSec
	}
	if params.DecaySec <= params.AttackSec {
		params.DecaySec = def.DecaySec
	}
	e := &Engine{
		sampleRate: float64(sampleRate),
		params:     params,
		voices:     make([]voice, 0, 16),
		masterGain: math.Float64bits(clamp(params.MasterGain, 0, 1)),
	}
	// decay covers the span from the end of the attack to DecaySec
	decayFrames := (params.DecaySec - params.AttackSec) * e.sampleRate
	e.decayCoeff = math.Pow(params.SustainLvl/params.PeakLevel, 1/decayFrames)
	e.vibrato.set(params.VibratoDepth, params.VibratoRate)
	if params.Room > 0 {
		e.room = newRoom(sampleRate, params.Room)
	}
	if params.LimitDB < 0 {
		e.limiter = newLimiter(sampleRate, params.LimitDB)
	}
	return e
}

// CreateVoice starts a note at freq and returns its handle.
func (e *Engine) CreateVoice(freq float64) (int, error) {
	if freq <= 0 || math.IsNaN(freq) || math.IsInf(freq, 0) || freq >= e.sampleRate/2 {
		return 0, fault.New("frequency out of range",
			fmsg.WithDesc("invalid oscillator frequency", "The note is outside the playable range."),
			ftag.With(ftag.InvalidArgument))
	}
	slot := e.freeSlot()
	e.nextHandle++
	e.voices[slot] = voice{
		active:     true,
		handle:     e.nextHandle,
		freq:       freq,
		targetFreq: freq,
		envState:   envAttack,
	}
	return e.nextHandle, nil
}

// Retune glides a voice toward freq with the given time constant.
func (e *Engine) Retune(handle int, freq float64, smoothing time.Duration) {
	v := e.find(handle)
	if v == nil || freq <= 0 {
		return
	}
	v.targetFreq = freq
	if smoothing <= 0 {
		v.freq = freq
		v.glide = 0
		return
	}
	v.glide = 1 - math.Exp(-1/(smoothing.Seconds()*e.sampleRate))
}

// Release fades a voice out exponentially over d and frees it afterwards.
func (e *Engine) Release(handle int, d time.Duration) {
	v := e.find(handle)
	if v == nil || v.envState == envRelease {
		return
	}
	frames := int(d.Seconds() * e.sampleRate)
	if frames <= 0 || v.env <= silence {
		v.active = false
		v.envState = envOff
		return
	}
	v.envState = envRelease
	v.releaseLeft = frames
	v.releaseCoeff = math.Pow(silence/v.env, 1/float64(frames))
}

func (e *Engine) find(handle int) *voice {
	for i := range e.voices {
		if e.voices[i].active && e.voices[i].handle == handle {
			return &e.voices[i]
		}
	}
	return nil
}

// freeSlot reuses a finished slot or grows the pool; notes are never stolen.
func (e *Engine) freeSlot() int {
	for i := range e.voices {
		if !e.voices[i].active {
			return i
		}
	}
	e.voices = append(e.voices, voice{})
	return len(e.voices) - 1
}

func (e *Engine) RenderFrame() (float32, float32) {
	vib := e.vibrato.factor(e.sampleRate)
	var mix float64
	for i := range e.voices {
		v := &e.voices[i]
		if !v.active {
			continue
		}
		if v.glide > 0 {
			v.freq += (v.targetFreq - v.freq) * v.glide
		}
		env := e.advanceEnv(v)
		if !v.active {
			continue
		}
		mix += e.renderWave(v, v.freq*vib) * env
	}
	mix *= e.masterGainValue()
	l, r := mix, mix
	if e.room != nil {
		l, r = e.room.process(l, r)
	}
	if e.limiter != nil {
		l, r = e.limiter.process(l, r)
	}
	return float32(clamp(l, -1, 1)), float32(clamp(r, -1, 1))
}

// Process fills dst with interleaved stereo frames.
func (e *Engine) Process(dst []float32) {
	for f := 0; f+1 < len(dst); f += 2 {
		dst[f], dst[f+1] = e.RenderFrame()
	}
}

func (e *Engine) advanceEnv(v *voice) float64 {
	switch v.envState {
	case envAttack:
		v.env += e.params.PeakLevel / (e.params.AttackSec * e.sampleRate)
		if v.env >= e.params.PeakLevel {
			v.env = e.params.PeakLevel
			v.envState = envDecay
		}
	case envDecay:
		v.env *= e.decayCoeff
		if v.env <= e.params.SustainLvl {
			v.env = e.params.SustainLvl
			v.envState = envSustain
		}
	case envSustain:
	case envRelease:
		v.env *= v.releaseCoeff
		v.releaseLeft--
		if v.releaseLeft <= 0 {
			v.env = 0
			v.envState = envOff
			v.active = false
		}
	case envOff:
		v.active = false
		v.env = 0
	}
	return v.env
}

// polyBLEP reduces aliasing at waveform discontinuities.
func polyBLEP(t, dt float64) float64 {
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

func (e *Engine) renderWave(v *voice, freq float64) float64 {
	dt := freq / e.sampleRate
	v.phase += dt
	if v.phase >= 1 {
		v.phase -= 1
	}
	switch e.params.Waveform {
	case Sine:
		return math.Sin(twoPi * v.phase)
	case Square:
		out := -1.0
		if v.phase < 0.5 {
			out = 1
		}
		out += polyBLEP(v.phase, dt)
		out -= polyBLEP(math.Mod(v.phase+0.5, 1), dt)
		return out
	case Sawtooth:
		return 2*v.phase - 1 - polyBLEP(v.phase, dt)
	default:
		return 2*math.Abs(2*v.phase-1) - 1
	}
}

// Frequency reports the current oscillator frequency of a voice.
func (e *Engine) Frequency(handle int) (float64, bool) {
	v := e.find(handle)
	if v == nil {
		return 0, false
	}
	return v.freq, true
}

func (e *Engine) SetMasterGain(gain float64) {
	atomic.StoreUint64(&e.masterGain, math.Float64bits(clamp(gain, 0, 1)))
}

func (e *Engine) MasterGain() float64 {
	return e.masterGainValue()
}

// ActiveVoiceCount returns the number of voices still sounding, release
// tails included.
func (e *Engine) ActiveVoiceCount() int {
	n := 0
	for i := range e.voices {
		if e.voices[i].active {
			n++
		}
	}
	return n
}

func (e *Engine) masterGainValue() float64 {
	return math.Float64frombits(atomic.LoadUint64(&e.masterGain))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
