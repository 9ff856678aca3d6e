// Package audio streams a SampleSource to the system output through ebiten.
package audio

import (
	"encoding/binary"
	"io"
	"math"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// DefaultBufferSize keeps key-to-sound latency low enough for live playing.
const DefaultBufferSize = 40 * time.Millisecond

// SampleSource fills dst with interleaved stereo float32 frames.
type SampleSource interface {
	Process(dst []float32)
}

// StreamReader adapts a SampleSource to the little-endian float32 byte stream
// ebiten expects.
type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
	closed bool
}

func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, io.EOF
	}

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i, s := range r.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	return frames * 8, nil
}

func (r *StreamReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

// Output is a running connection to the sound device.
type Output struct {
	player *ebitaudio.Player
	reader *StreamReader
}

var (
	contextOnce  sync.Once
	audioContext *ebitaudio.Context
	contextRate  int
)

func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	contextOnce.Do(func() {
		contextRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if contextRate != sampleRate {
		return nil, fault.New("audio context sample rate mismatch",
			fmsg.WithDesc("audio context already initialized at a different sample rate",
				"Audio is already running at another sample rate; restart the program to change it."),
			ftag.With(ftag.Internal))
	}
	return audioContext, nil
}

// Open starts streaming source to the default output device.
func Open(sampleRate int, source SampleSource) (*Output, error) {
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, fault.Wrap(err,
			fmsg.WithDesc("create audio player", "The sound device could not be opened."),
			ftag.With(ftag.Internal))
	}
	pl.SetBufferSize(DefaultBufferSize)
	pl.Play()
	return &Output{player: pl, reader: reader}, nil
}

func (o *Output) Playing() bool {
	return o.player.IsPlaying()
}

// Close stops the device stream. The source is no longer read afterwards.
func (o *Output) Close() error {
	o.player.Pause()
	if err := o.player.Close(); err != nil {
		return fault.Wrap(err, fmsg.With("close audio player"), ftag.With(ftag.Internal))
	}
	return o.reader.Close()
}
