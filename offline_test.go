package vkeys

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/Southclaws/fault/ftag"

	intanalysis "github.com/cbegin/vkeys-go/internal/analysis"
	intimprov "github.com/cbegin/vkeys-go/internal/improv"
)

func TestEncodeWAVHeader(t *testing.T) {
	samples := []float32{0.5, -0.5, 0.25, -0.25}
	wav := EncodeWAVFloat32LE(samples, 48000, 2)
	if len(wav) != 44+16 {
		t.Fatalf("len = %d, want 60", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Fatalf("bad chunk ids: %q", wav[:40])
	}
	if f := binary.LittleEndian.Uint16(wav[20:]); f != 3 {
		t.Fatalf("format = %d, want IEEE float (3)", f)
	}
	if rate := binary.LittleEndian.Uint32(wav[24:]); rate != 48000 {
		t.Fatalf("sample rate = %d, want 48000", rate)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(wav[48:])); got != -0.5 {
		t.Fatalf("second sample = %f, want -0.5", got)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteWAV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWAV(&buf, []float32{0, 0}, 44100); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	if buf.Len() != 52 {
		t.Fatalf("wrote %d bytes, want 52", buf.Len())
	}
	err := WriteWAV(failingWriter{}, []float32{0, 0}, 44100)
	if err == nil || ftag.Get(err) != ftag.Internal {
		t.Fatalf("err = %v, want an internal fault", err)
	}
}

func TestRenderImprovIsAudibleAndReproducible(t *testing.T) {
	render := func() []float32 {
		p := intimprov.DefaultParams()
		p.Style = intimprov.StyleAmbient
		samples, err := RenderImprov(1, 2, intanalysis.Minor, p,
			WithSampleRate(22050), WithRand(rand.New(rand.NewSource(3))), WithLogger(quietLogger()))
		if err != nil {
			t.Fatalf("RenderImprov: %v", err)
		}
		return samples
	}
	a := render()
	if len(a) != 22050*2 {
		t.Fatalf("len = %d, want one second of stereo", len(a))
	}
	var energy float64
	for _, s := range a {
		energy += float64(s) * float64(s)
	}
	if energy == 0 {
		t.Fatalf("expected audible output")
	}
	if b := render(); !slices.Equal(a, b) {
		t.Fatalf("equal seeds rendered different audio")
	}
}

func TestRenderImprovRejectsBadKey(t *testing.T) {
	_, err := RenderImprov(1, 14, intanalysis.Major, intimprov.DefaultParams(), WithLogger(quietLogger()))
	if ftag.Get(err) != ftag.InvalidArgument {
		t.Fatalf("err = %v, want invalid argument", err)
	}
}
