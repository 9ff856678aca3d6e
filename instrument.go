package vkeys

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	intanalysis "github.com/cbegin/vkeys-go/internal/analysis"
	intarp "github.com/cbegin/vkeys-go/internal/arp"
	intaudio "github.com/cbegin/vkeys-go/internal/audio"
	intclock "github.com/cbegin/vkeys-go/internal/clock"
	intimprov "github.com/cbegin/vkeys-go/internal/improv"
	intpitch "github.com/cbegin/vkeys-go/internal/pitch"
	intseq "github.com/cbegin/vkeys-go/internal/sequencer"
	intsynth "github.com/cbegin/vkeys-go/internal/synth"
	intvoice "github.com/cbegin/vkeys-go/internal/voice"
)

const (
	DefaultSampleRate = 48000
	DefaultTempo      = 120.0
	DefaultVolume     = 0.75

	// BendReturnStep and BendReturnInterval pace ReturnPitchBend.
	BendReturnStep     = 5
	BendReturnInterval = 16 * time.Millisecond

	eventBuffer = 16
)

type Option func(*config)

type outputOpener func(sampleRate int, src intaudio.SampleSource) (io.Closer, error)

type config struct {
	sampleRate  int
	tempo       float64
	bendRange   float64
	volume      float64
	renderer    intvoice.Renderer
	synthParams intsynth.Params
	logger      *slog.Logger
	rng         *rand.Rand
	open        outputOpener
}

func defaultConfig() config {
	return config{
		sampleRate:  DefaultSampleRate,
		tempo:       DefaultTempo,
		bendRange:   intpitch.DefaultBendRange,
		volume:      DefaultVolume,
		synthParams: intsynth.DefaultParams(),
		open:        openDevice,
	}
}

func openDevice(sampleRate int, src intaudio.SampleSource) (io.Closer, error) {
	out, err := intaudio.Open(sampleRate, src)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func WithSampleRate(rate int) Option {
	return func(cfg *config) { cfg.sampleRate = rate }
}

func WithTempo(bpm float64) Option {
	return func(cfg *config) { cfg.tempo = bpm }
}

// WithPitchBendRange sets how many semitones a full bend reaches.
func WithPitchBendRange(semitones float64) Option {
	return func(cfg *config) { cfg.bendRange = semitones }
}

func WithVolume(volume float64) Option {
	return func(cfg *config) { cfg.volume = volume }
}

// WithRenderer replaces the built-in synth. If r also implements
// Process([]float32) it is rendered by Process; otherwise Process outputs
// silence and only advances time.
func WithRenderer(r intvoice.Renderer) Option {
	return func(cfg *config) { cfg.renderer = r }
}

func WithSynthParams(p intsynth.Params) Option {
	return func(cfg *config) { cfg.synthParams = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) { cfg.logger = l }
}

// WithRand seeds the arpeggiator's random mode and the improviser.
func WithRand(r *rand.Rand) Option {
	return func(cfg *config) { cfg.rng = r }
}

func withOutputOpener(open outputOpener) Option {
	return func(cfg *config) { cfg.open = open }
}

func (cfg config) validate() error {
	switch {
	case cfg.sampleRate < 8000 || cfg.sampleRate > 192000:
		return invalidOption("sample rate must be between 8000 and 192000")
	case cfg.tempo <= 0:
		return invalidOption("tempo must be positive")
	case cfg.bendRange < 0 || cfg.bendRange > 24:
		return invalidOption("pitch bend range must be between 0 and 24 semitones")
	case cfg.volume < 0 || cfg.volume > 1:
		return invalidOption("volume must be between 0 and 1")
	}
	return nil
}

func invalidOption(msg string) error {
	return fault.New(msg, fmsg.WithDesc(msg, "The instrument settings are not valid."), ftag.With(ftag.InvalidArgument))
}

type gainControl interface {
	SetMasterGain(gain float64)
}

// Instrument owns every engine of one playing session. All engines share one
// clock; the clock only moves inside Process, Advance or RunClock, so every
// scheduled callback runs under the instrument lock.
type Instrument struct {
	mu       sync.Mutex
	log      *slog.Logger
	rng      *rand.Rand
	rate     int
	clock    *intclock.Clock
	renderer intvoice.Renderer
	source   intaudio.SampleSource
	voices   *intvoice.Manager
	seq      *intseq.Sequencer
	arp      *intarp.Arpeggiator
	improv   *intimprov.Player
	bendBack *intclock.Task

	tempo        float64
	volume       float64
	improvParams intimprov.Params
	key          int
	scale        intanalysis.Scale
	analysis     intanalysis.Analysis
	analyzed     bool

	open     outputOpener
	out      io.Closer
	frameRem int64

	eventCh   chan Event
	eventChMu sync.Mutex
}

func New(opts ...Option) (*Instrument, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.rng == nil {
		cfg.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.renderer == nil {
		cfg.renderer = intsynth.New(cfg.sampleRate, cfg.synthParams)
	}

	in := &Instrument{
		log:      cfg.logger,
		rng:      cfg.rng,
		rate:     cfg.sampleRate,
		clock:    intclock.New(),
		renderer: cfg.renderer,
		tempo:    cfg.tempo,
		volume:   cfg.volume,
		scale:    intanalysis.Major,
		open:     cfg.open,
	}
	if src, ok := cfg.renderer.(intaudio.SampleSource); ok {
		in.source = src
	}
	in.voices = intvoice.NewManager(cfg.renderer)
	in.voices.SetBendRange(cfg.bendRange)
	in.seq = intseq.NewWithOptions(in.clock, in.voices, intseq.Options{OnEvent: in.onSequencerEvent})
	in.voices.SetRecorder(in.seq)

	arpParams := intarp.DefaultParams()
	arpParams.Tempo = cfg.tempo
	in.arp = intarp.NewWithOptions(in.clock, in.voices, arpParams, intarp.Options{
		OnEvent: in.onArpEvent,
		Rand:    cfg.rng,
	})
	in.improv = intimprov.NewPlayer(in.clock, in.voices, intimprov.PlayerOptions{OnEvent: in.onImprovEvent})
	in.improvParams = intimprov.DefaultParams()
	in.improvParams.Tempo = cfg.tempo
	in.bendBack = intclock.NewTask(in.clock)
	in.applyVolume()
	return in, nil
}

// Event is delivered on the Watch channel.
type Event struct {
	Kind EventKind
	// Iteration counts completed loops for EventLoopCompleted and
	// EventImprovLoopCompleted.
	Iteration int
}

type EventKind int

const (
	EventRecordingStarted EventKind = iota
	EventRecordingStopped
	EventPlaybackStarted
	EventPlaybackStopped
	EventLoopCompleted
	EventArpStarted
	EventArpStopped
	EventAnalysisReady
	EventImprovStarted
	EventImprovStopped
	EventImprovLoopCompleted
	EventAudioFailed
)

var eventNames = [...]string{
	EventRecordingStarted:    "recording started",
	EventRecordingStopped:    "recording stopped",
	EventPlaybackStarted:     "playback started",
	EventPlaybackStopped:     "playback stopped",
	EventLoopCompleted:       "loop completed",
	EventArpStarted:          "arp started",
	EventArpStopped:          "arp stopped",
	EventAnalysisReady:       "analysis ready",
	EventImprovStarted:       "improv started",
	EventImprovStopped:       "improv stopped",
	EventImprovLoopCompleted: "improv loop completed",
	EventAudioFailed:         "audio failed",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[k]
}

// Watch returns a channel that receives instrument events. The channel is
// buffered (cap 16) and events are dropped when it is full. Only the most
// recent Watch channel receives events.
func (in *Instrument) Watch() <-chan Event {
	ch := make(chan Event, eventBuffer)
	in.eventChMu.Lock()
	in.eventCh = ch
	in.eventChMu.Unlock()
	return ch
}

func (in *Instrument) sendEvent(ev Event) {
	in.eventChMu.Lock()
	ch := in.eventCh
	in.eventChMu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}

func (in *Instrument) onSequencerEvent(kind intseq.EventKind) {
	switch kind {
	case intseq.EventRecordingStarted:
		in.log.Debug("recording started")
		in.sendEvent(Event{Kind: EventRecordingStarted})
	case intseq.EventRecordingStopped:
		in.log.Debug("recording stopped", "events", in.seq.Len())
		in.sendEvent(Event{Kind: EventRecordingStopped})
	case intseq.EventPlaybackStarted:
		in.log.Debug("playback started", "loop", in.seq.LoopLength())
		in.sendEvent(Event{Kind: EventPlaybackStarted})
	case intseq.EventPlaybackStopped:
		in.log.Debug("playback stopped", "iterations", in.seq.Iterations())
		in.sendEvent(Event{Kind: EventPlaybackStopped})
	case intseq.EventLoopCompleted:
		in.sendEvent(Event{Kind: EventLoopCompleted, Iteration: in.seq.Iterations()})
	}
}

func (in *Instrument) onArpEvent(kind intarp.EventKind) {
	switch kind {
	case intarp.EventStarted:
		in.log.Debug("arp started", "held", in.arp.Held(), "period", in.arp.Period())
		in.sendEvent(Event{Kind: EventArpStarted})
	case intarp.EventStopped:
		in.log.Debug("arp stopped")
		in.sendEvent(Event{Kind: EventArpStopped})
	}
}

func (in *Instrument) onImprovEvent(kind intimprov.EventKind) {
	switch kind {
	case intimprov.EventStarted:
		in.sendEvent(Event{Kind: EventImprovStarted})
	case intimprov.EventStopped:
		in.log.Debug("improv stopped")
		in.sendEvent(Event{Kind: EventImprovStopped})
	case intimprov.EventLoopCompleted:
		in.sendEvent(Event{Kind: EventImprovLoopCompleted, Iteration: in.improv.Iterations()})
	}
}

// NoteOn is the live key-down entry point. Unknown ids are ignored. While the
// arpeggiator is enabled the note joins its held set instead of sounding.
func (in *Instrument) NoteOn(id string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.noteOn(id)
}

func (in *Instrument) noteOn(id string) {
	if !intpitch.Valid(id) {
		return
	}
	if in.arp.Enabled() {
		in.arp.Add(id)
		in.seq.RecordNoteOn(id, in.voices.Octave())
		return
	}
	in.voices.NoteOn(id, 0, false)
}

// NoteOff is the live key-up entry point.
func (in *Instrument) NoteOff(id string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.noteOff(id)
}

func (in *Instrument) noteOff(id string) {
	if !intpitch.Valid(id) {
		return
	}
	if in.arp.Enabled() {
		held := slices.Contains(in.arp.Held(), id)
		in.arp.Remove(id)
		in.seq.RecordNoteOff(id)
		if !held {
			// a key pressed before the arp was switched on
			in.voices.NoteOff(id, true, false)
		}
		return
	}
	in.voices.NoteOff(id, false, false)
}

// ReleaseAll sends a note-off for every sounding or arp-held note, e.g.
// when the window loses focus.
func (in *Instrument) ReleaseAll() {
	in.mu.Lock()
	defer in.mu.Unlock()
	ids := in.voices.Active()
	for _, id := range in.arp.Held() {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		in.noteOff(id)
	}
}

func (in *Instrument) PressSustain() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.voices.PressSustain()
}

// ReleaseSustain lifts the pedal and stops every note it was holding.
func (in *Instrument) ReleaseSustain() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.voices.ReleaseSustain()
}

// SetPitchBend applies bend in [-100,100] to every sounding voice and cancels
// a running return to center.
func (in *Instrument) SetPitchBend(bend int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.bendBack.Stop()
	in.voices.SetPitchBend(bend)
}

// ReturnPitchBend glides the bend back to 0 in steps of BendReturnStep every
// BendReturnInterval, as a spring-loaded wheel does.
func (in *Instrument) ReturnPitchBend() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.bendBack.Stop()
	if in.voices.PitchBend() == 0 {
		return
	}
	in.bendBack.Start()
	in.stepBendBack()
}

func (in *Instrument) stepBendBack() {
	bend := in.voices.PitchBend()
	step := -BendReturnStep
	if bend < 0 {
		step = BendReturnStep
	}
	next := bend + step
	if (step > 0 && next >= 0) || (step < 0 && next <= 0) {
		in.voices.SetPitchBend(0)
		in.bendBack.Stop()
		return
	}
	in.voices.SetPitchBend(next)
	in.bendBack.After(BendReturnInterval, in.stepBendBack)
}

// SetOctave changes the live octave; values outside [1,7] are rejected.
func (in *Instrument) SetOctave(octave int) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.voices.SetOctave(octave)
}

func (in *Instrument) ShiftOctave(delta int) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.voices.SetOctave(in.voices.Octave() + delta)
}

// SetVolume sets the master volume, clamped to [0,1].
func (in *Instrument) SetVolume(volume float64) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.volume = max(0, min(1, volume))
	in.applyVolume()
}

func (in *Instrument) applyVolume() {
	if g, ok := in.renderer.(gainControl); ok {
		g.SetMasterGain(in.volume)
	}
}

// SetTempo changes the tempo used by the arpeggiator, default analyses and
// the improviser. Non-positive values are ignored.
func (in *Instrument) SetTempo(bpm float64) {
	if bpm <= 0 {
		return
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	in.tempo = bpm
	in.improvParams.Tempo = bpm
	in.arp.SetTempo(bpm)
}

// StartRecording stops playback and begins a new take.
func (in *Instrument) StartRecording() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.seq.StartRecording()
}

func (in *Instrument) StopRecording() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.seq.StopRecording()
}

// ToggleRecording reports whether the instrument is recording afterwards.
func (in *Instrument) ToggleRecording() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.seq.ToggleRecording()
}

// Play loops the recorded take. It reports false when there is nothing to
// play, when already playing, or while recording.
func (in *Instrument) Play() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.seq.Play()
}

// Stop ends playback and releases every sounding voice. It is safe to call
// repeatedly.
func (in *Instrument) Stop() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.seq.Stop()
}

func (in *Instrument) Clear() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.seq.Clear()
	in.analyzed = false
}

func (in *Instrument) Sequence() []intseq.Event {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.seq.Events()
}

func (in *Instrument) SetArpEnabled(enabled bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.arp.SetEnabled(enabled)
}

// ToggleArp reports whether the arpeggiator is enabled afterwards.
func (in *Instrument) ToggleArp() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.arp.SetEnabled(!in.arp.Enabled())
	return in.arp.Enabled()
}

func (in *Instrument) SetArpHold(hold bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.arp.SetHold(hold)
}

func (in *Instrument) SetArpMode(m intarp.Mode) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.arp.SetMode(m)
}

// SetArpRate takes a note division: 4, 8, 16 or 32.
func (in *Instrument) SetArpRate(rate int) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.arp.SetRate(rate)
}

// SetArpGate takes a percentage: 25, 50, 75 or 100.
func (in *Instrument) SetArpGate(gate int) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.arp.SetGate(gate)
}

func (in *Instrument) SetArpOctaves(n int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.arp.SetOctaves(n)
}

// SetKey sets the key used when there is no recording to analyze.
func (in *Instrument) SetKey(root int, scale intanalysis.Scale) bool {
	if root < 0 || root > 11 || !scale.Valid() {
		return false
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	in.key = root
	in.scale = scale
	return true
}

// Analyze infers key, scale and chords from the recorded take, or builds the
// default progression in the manual key when nothing was recorded.
func (in *Instrument) Analyze() intanalysis.Analysis {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.analyze()
}

func (in *Instrument) analyze() intanalysis.Analysis {
	a, ok := intanalysis.Analyze(in.seq.Events())
	if !ok {
		a = intanalysis.Default(in.key, in.scale, in.tempo)
	}
	in.analysis = a
	in.analyzed = true
	in.log.Debug("analysis ready", "key", a.KeyName(), "scale", a.Scale, "chords", len(a.Chords), "recorded", ok)
	in.sendEvent(Event{Kind: EventAnalysisReady})
	return a
}

// SetImprovParams changes the style settings for the next generation. The
// tempo always follows the instrument tempo.
func (in *Instrument) SetImprovParams(p intimprov.Params) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !slices.Contains(intimprov.Styles, p.Style) {
		p.Style = in.improvParams.Style
	}
	p.Tempo = in.tempo
	in.improvParams = p
}

func (in *Instrument) ImprovParams() intimprov.Params {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.improvParams
}

// StartImprov generates a phrase over the current analysis (analyzing first
// if needed) and loops it. It reports false when the phrase came out empty.
func (in *Instrument) StartImprov() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.analyzed {
		in.analyze()
	}
	return in.playImprov()
}

// RegenerateImprov re-analyzes and starts a fresh phrase.
func (in *Instrument) RegenerateImprov() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.analyze()
	return in.playImprov()
}

func (in *Instrument) playImprov() bool {
	events := intimprov.Generate(in.analysis, in.improvParams, in.rng)
	in.log.Debug("improv generated", "style", in.improvParams.Style, "notes", len(events),
		"complexity", in.improvParams.Complexity, "density", in.improvParams.Density)
	return in.improv.Play(events, in.analysis.Duration)
}

func (in *Instrument) StopImprov() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.improv.Stop()
}

func (in *Instrument) ImprovEvents() []intimprov.Event {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.improv.Events()
}

// Open starts streaming to the sound device. A failure is reported once,
// emits EventAudioFailed and blocks new notes until a later Open succeeds.
func (in *Instrument) Open() error {
	in.mu.Lock()
	if in.out != nil {
		in.mu.Unlock()
		return nil
	}
	open := in.open
	in.mu.Unlock()

	out, err := open(in.rate, in)

	in.mu.Lock()
	defer in.mu.Unlock()
	if err != nil {
		in.voices.SetDisabled(true)
		in.log.Warn("audio output unavailable", "err", err)
		in.sendEvent(Event{Kind: EventAudioFailed})
		return fault.Wrap(err, fmsg.WithDesc("open audio output", "No sound device is available; playing is disabled."))
	}
	if in.out != nil {
		// lost a race with another Open
		_ = out.Close()
		return nil
	}
	in.out = out
	in.voices.SetDisabled(false)
	in.log.Debug("audio output opened", "sample_rate", in.rate)
	return nil
}

// Close stops every engine and the sound device.
func (in *Instrument) Close() error {
	in.mu.Lock()
	in.improv.Stop()
	in.arp.Stop()
	in.seq.StopRecording()
	in.seq.Stop()
	in.bendBack.Stop()
	in.voices.StopAll()
	out := in.out
	in.out = nil
	in.mu.Unlock()
	if out == nil {
		return nil
	}
	if err := out.Close(); err != nil {
		return fault.Wrap(err, fmsg.With("close audio output"))
	}
	return nil
}

// Process renders interleaved stereo frames into dst, advancing the
// instrument clock one frame at a time so scheduled notes land on the frame
// they are due.
func (in *Instrument) Process(dst []float32) {
	in.mu.Lock()
	defer in.mu.Unlock()
	for f := 0; f+1 < len(dst); f += 2 {
		in.clock.Advance(in.frameStep())
		if in.source != nil {
			in.source.Process(dst[f : f+2])
		} else {
			dst[f], dst[f+1] = 0, 0
		}
	}
}

// frameStep returns the length of the next frame, carrying the remainder so
// that one second of frames advances the clock by exactly one second.
func (in *Instrument) frameStep() time.Duration {
	rate := int64(in.rate)
	step := time.Second / time.Duration(rate)
	in.frameRem += int64(time.Second) % rate
	if in.frameRem >= rate {
		in.frameRem -= rate
		step++
	}
	return step
}

// Advance moves the instrument clock without rendering audio.
func (in *Instrument) Advance(d time.Duration) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.clock.Advance(d)
}

// RunClock follows wall time every tick until ctx is done. It does nothing
// while an audio output is open, since Process drives the clock then.
func (in *Instrument) RunClock(ctx context.Context, tick time.Duration) error {
	if tick <= 0 {
		tick = BendReturnInterval
	}
	t := time.NewTicker(tick)
	defer t.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			in.mu.Lock()
			if in.out == nil {
				in.clock.Advance(now.Sub(last))
			}
			in.mu.Unlock()
			last = now
		}
	}
}

// Now is the instrument clock's current time.
func (in *Instrument) Now() time.Duration {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.clock.Now()
}

func (in *Instrument) SampleRate() int {
	return in.rate
}
