package synth

import (
	"math"
	"testing"
	"time"

	"github.com/Southclaws/fault/ftag"
)

const rate = 48000

func TestEngineGeneratesSignal(t *testing.T) {
	for name, w := range waveNames {
		t.Run(name, func(t *testing.T) {
			p := DefaultParams()
			p.Waveform = w
			e := New(rate, p)
			if _, err := e.CreateVoice(440); err != nil {
				t.Fatalf("CreateVoice: %v", err)
			}
			var maxAbs float64
			for i := 0; i < 2000; i++ {
				l, r := e.RenderFrame()
				if l != r {
					t.Fatalf("expected centred mono output, got l=%f r=%f", l, r)
				}
				if a := math.Abs(float64(l)); a > maxAbs {
					maxAbs = a
				}
			}
			if maxAbs < 0.01 {
				t.Fatalf("expected audible output, peak %f", maxAbs)
			}
		})
	}
}

func TestEnvelopeShape(t *testing.T) {
	e := New(rate, DefaultParams())
	h, _ := e.CreateVoice(220)
	v := e.find(h)
	frames := func(d time.Duration) int { return int(d.Seconds() * rate) }

	for i := 0; i < frames(10*time.Millisecond); i++ {
		e.RenderFrame()
	}
	if math.Abs(v.env-0.5) > 1e-3 {
		t.Fatalf("env after attack = %f, want 0.5", v.env)
	}
	for i := 0; i < frames(90*time.Millisecond)+2; i++ {
		e.RenderFrame()
	}
	if v.envState != envSustain || math.Abs(v.env-0.3) > 1e-3 {
		t.Fatalf("env after decay = %f (state %d), want 0.3 sustaining", v.env, v.envState)
	}
}

func TestReleaseFreesVoiceAfterRelease(t *testing.T) {
	e := New(rate, DefaultParams())
	h, _ := e.CreateVoice(330)
	for i := 0; i < rate/10; i++ {
		e.RenderFrame()
	}
	e.Release(h, 300*time.Millisecond)
	e.Release(h, 300*time.Millisecond)
	for i := 0; i < rate*299/1000; i++ {
		e.RenderFrame()
	}
	if e.ActiveVoiceCount() != 1 {
		t.Fatalf("voice freed before its release completed")
	}
	for i := 0; i < rate/100; i++ {
		e.RenderFrame()
	}
	if e.ActiveVoiceCount() != 0 {
		t.Fatalf("ActiveVoiceCount() = %d after release, want 0", e.ActiveVoiceCount())
	}
}

func TestRetuneGlidesWithoutJump(t *testing.T) {
	e := New(rate, DefaultParams())
	h, _ := e.CreateVoice(440)
	e.Retune(h, 880, 10*time.Millisecond)
	e.RenderFrame()
	f, _ := e.Frequency(h)
	if f <= 440 || f > 445 {
		t.Fatalf("first frame after retune at %f Hz, want a small step from 440", f)
	}
	for i := 0; i < rate/5; i++ {
		e.RenderFrame()
	}
	f, _ = e.Frequency(h)
	if math.Abs(f-880) > 0.01 {
		t.Fatalf("frequency settled at %f, want 880", f)
	}
}

func TestPoolGrowsInsteadOfStealing(t *testing.T) {
	e := New(rate, DefaultParams())
	for i := 0; i < 40; i++ {
		if _, err := e.CreateVoice(100 + float64(i)*10); err != nil {
			t.Fatalf("CreateVoice: %v", err)
		}
	}
	e.RenderFrame()
	if e.ActiveVoiceCount() != 40 {
		t.Fatalf("ActiveVoiceCount() = %d, want 40", e.ActiveVoiceCount())
	}
}

func TestInvalidFrequencyIsTagged(t *testing.T) {
	e := New(rate, DefaultParams())
	_, err := e.CreateVoice(-1)
	if err == nil {
		t.Fatalf("expected an error for a negative frequency")
	}
	if ftag.Get(err) != ftag.InvalidArgument {
		t.Fatalf("tag = %q, want %q", ftag.Get(err), ftag.InvalidArgument)
	}
}

func TestMasterGainScalesOutput(t *testing.T) {
	p := DefaultParams()
	p.Waveform = Square
	e := New(rate, p)
	e.SetMasterGain(0)
	e.CreateVoice(440)
	for i := 0; i < 1000; i++ {
		if l, _ := e.RenderFrame(); l != 0 {
			t.Fatalf("expected silence at zero gain, got %f", l)
		}
	}
	e.SetMasterGain(2)
	if e.MasterGain() != 1 {
		t.Fatalf("MasterGain() = %f, want clamp to 1", e.MasterGain())
	}
}

func TestRoomAddsTail(t *testing.T) {
	p := DefaultParams()
	p.Room = 0.5
	e := New(rate, p)
	h, _ := e.CreateVoice(440)
	for i := 0; i < rate/20; i++ {
		e.RenderFrame()
	}
	e.Release(h, 0)
	var tail float64
	for i := 0; i < rate/20; i++ {
		l, _ := e.RenderFrame()
		tail += math.Abs(float64(l))
	}
	if tail == 0 {
		t.Fatalf("expected a reverb tail after the voice stopped")
	}
}

func TestLimiterHoldsCeiling(t *testing.T) {
	peakAfterSettle := func(limitDB float64) float64 {
		p := DefaultParams()
		p.Waveform = Square
		p.LimitDB = limitDB
		e := New(rate, p)
		for i := 0; i < 16; i++ {
			e.CreateVoice(440)
		}
		for i := 0; i < rate/5; i++ {
			e.RenderFrame()
		}
		var peak float64
		for i := 0; i < 2000; i++ {
			l, _ := e.RenderFrame()
			peak = math.Max(peak, math.Abs(float64(l)))
		}
		return peak
	}
	ceiling := math.Pow(10, -1.0/20)
	if got := peakAfterSettle(-1); got > ceiling+1e-3 {
		t.Fatalf("limited peak = %f, want <= %f", got, ceiling)
	}
	if got := peakAfterSettle(0); got != 1 {
		t.Fatalf("unlimited peak = %f, want hard clip at 1", got)
	}
}

func BenchmarkRenderEightVoices(b *testing.B) {
	e := New(rate, DefaultParams())
	for i := 0; i < 8; i++ {
		e.CreateVoice(220 * math.Pow(2, float64(i)/12))
	}
	buf := make([]float32, 1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Process(buf)
	}
}
