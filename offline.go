package vkeys

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	intanalysis "github.com/cbegin/vkeys-go/internal/analysis"
	intimprov "github.com/cbegin/vkeys-go/internal/improv"
)

// Render runs the instrument for the given number of seconds without a sound
// device and returns the interleaved stereo output.
func (in *Instrument) Render(seconds float64) []float32 {
	frames := int(float64(in.rate) * seconds)
	if frames <= 0 {
		return nil
	}
	out := make([]float32, frames*2)
	in.Process(out)
	return out
}

// RenderImprov improvises over the default progression of key and scale and
// renders the given number of seconds of it.
func RenderImprov(seconds float64, key int, scale intanalysis.Scale, params intimprov.Params, opts ...Option) ([]float32, error) {
	in, err := New(opts...)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	if !in.SetKey(key, scale) {
		return nil, fault.New("invalid key",
			fmsg.WithDesc("key must be 0-11 with a known scale", "The key or scale is not recognised."),
			ftag.With(ftag.InvalidArgument))
	}
	if params.Tempo > 0 {
		in.SetTempo(params.Tempo)
	}
	in.SetImprovParams(params)
	if !in.StartImprov() {
		return nil, fault.New("empty phrase",
			fmsg.WithDesc("improviser produced no notes", "Nothing to render; raise the density."),
			ftag.With(ftag.InvalidArgument))
	}
	return in.Render(seconds), nil
}

// EncodeWAVFloat32LE wraps samples in a RIFF header using IEEE float format.
func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	out := make([]byte, 44+dataSize)
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(36+dataSize))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}

// WriteWAV encodes stereo samples and writes them to w.
func WriteWAV(w io.Writer, samples []float32, sampleRate int) error {
	if _, err := w.Write(EncodeWAVFloat32LE(samples, sampleRate, 2)); err != nil {
		return fault.Wrap(err, fmsg.WithDesc("write wav", "The recording could not be saved."), ftag.With(ftag.Internal))
	}
	return nil
}
