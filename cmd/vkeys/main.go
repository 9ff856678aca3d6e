package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"slices"
	"strings"
	"time"

	"github.com/cbegin/vkeys-go"
	"github.com/cbegin/vkeys-go/internal/analysis"
	"github.com/cbegin/vkeys-go/internal/improv"
	"github.com/cbegin/vkeys-go/internal/pitch"
	"github.com/cbegin/vkeys-go/internal/synth"
)

var logger *slog.Logger

func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

func main() {
	var (
		sampleRate = flag.Int("sample-rate", vkeys.DefaultSampleRate, "output sample rate")
		style      = flag.String("style", "jazz", "improv style: jazz|blues|classical|pop|ambient|random")
		complexity = flag.Int("complexity", 5, "improv complexity 0-10")
		density    = flag.Int("density", 5, "improv density 0-10")
		tempo      = flag.Float64("tempo", vkeys.DefaultTempo, "tempo in bpm")
		keyName    = flag.String("key", "C", "key root, e.g. C, F#, A#")
		scaleName  = flag.String("scale", "major", "scale: major|minor|pentatonicMajor|pentatonicMinor|dorian|blues")
		octave     = flag.Int("octave", 4, "octave 1-7")
		waveform   = flag.String("waveform", "triangle", "oscillator: triangle|sine|square|sawtooth")
		room       = flag.Float64("room", 0, "reverb send 0-1")
		volume     = flag.Float64("volume", vkeys.DefaultVolume, "master volume 0-1")
		seed       = flag.Int64("seed", 0, "random seed (0 = time based)")
		loops      = flag.Int("loops", 2, "stop after N improv loops (0 = until interrupted)")
		wavPath    = flag.String("wav", "", "render to this WAV file instead of playing")
		seconds    = flag.Float64("seconds", 10, "length rendered with -wav")
		debug      = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()
	initLogger(*debug)

	key := pitch.ClassIndex(*keyName)
	if key < 0 {
		fatal(fmt.Errorf("invalid -key %q (expected one of %s)", *keyName, strings.Join(pitch.ClassNames[:], " ")))
	}
	scale := analysis.Scale(*scaleName)
	if !scale.Valid() {
		fatal(fmt.Errorf("invalid -scale %q", *scaleName))
	}
	params, err := improvParams(*style, *complexity, *density, *tempo)
	if err != nil {
		fatal(err)
	}
	synthParams := synth.DefaultParams()
	if synthParams.Waveform, err = parseWaveform(*waveform); err != nil {
		fatal(err)
	}
	synthParams.Room = *room

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	logger.Debug("seed", "value", *seed)
	opts := []vkeys.Option{
		vkeys.WithSampleRate(*sampleRate),
		vkeys.WithTempo(*tempo),
		vkeys.WithVolume(*volume),
		vkeys.WithSynthParams(synthParams),
		vkeys.WithRand(rand.New(rand.NewSource(*seed))),
		vkeys.WithLogger(logger),
	}

	if *wavPath != "" {
		if err := renderWAV(*wavPath, *seconds, *sampleRate, key, scale, params, *octave, opts); err != nil {
			fatal(err)
		}
		return
	}
	if err := play(key, scale, params, *octave, *loops, opts); err != nil {
		fatal(err)
	}
}

func improvParams(style string, complexity, density int, tempo float64) (improv.Params, error) {
	p := improv.DefaultParams()
	p.Style = improv.Style(strings.ToLower(style))
	if !slices.Contains(improv.Styles, p.Style) {
		return p, fmt.Errorf("invalid -style %q", style)
	}
	if complexity < 0 || complexity > improv.MaxComplexity {
		return p, fmt.Errorf("invalid -complexity %d (expected 0-%d)", complexity, improv.MaxComplexity)
	}
	if density < 0 || density > improv.MaxDensity {
		return p, fmt.Errorf("invalid -density %d (expected 0-%d)", density, improv.MaxDensity)
	}
	p.Complexity = complexity
	p.Density = density
	p.Tempo = tempo
	return p, nil
}

func parseWaveform(name string) (synth.Waveform, error) {
	w, ok := synth.ParseWaveform(strings.ToLower(strings.TrimSpace(name)))
	if !ok {
		return 0, fmt.Errorf("invalid -waveform %q (expected triangle|sine|square|sawtooth)", name)
	}
	return w, nil
}

func renderWAV(path string, seconds float64, sampleRate int, key int, scale analysis.Scale, p improv.Params, octave int, opts []vkeys.Option) error {
	p.Octave = octave
	samples, err := vkeys.RenderImprov(seconds, key, scale, p, opts...)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := vkeys.WriteWAV(f, samples, sampleRate); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("wrote wav", "path", path, "seconds", seconds)
	return nil
}

func play(key int, scale analysis.Scale, p improv.Params, octave, loops int, opts []vkeys.Option) error {
	in, err := vkeys.New(opts...)
	if err != nil {
		return err
	}
	defer in.Close()
	events := in.Watch()
	if err := in.Open(); err != nil {
		return err
	}
	in.SetOctave(octave)
	in.SetKey(key, scale)
	in.SetImprovParams(p)
	if !in.StartImprov() {
		return fmt.Errorf("nothing to play at density %d", p.Density)
	}
	if a, ok := in.Analysis(); ok {
		fmt.Printf("improvising %s over %s\n", p.Style, a)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	for {
		select {
		case <-ctx.Done():
			in.StopImprov()
			return nil
		case ev := <-events:
			switch ev.Kind {
			case vkeys.EventImprovLoopCompleted:
				fmt.Printf("loop %d completed\n", ev.Iteration)
				if loops > 0 && ev.Iteration >= loops {
					in.StopImprov()
				}
			case vkeys.EventImprovStopped:
				fmt.Println("improv stopped")
				// let the last release tails ring out
				time.Sleep(400 * time.Millisecond)
				return nil
			}
		}
	}
}

func fatal(err error) {
	logger.Error(err.Error())
	os.Exit(1)
}
