package synth

import "math"

// limiter is a stereo-linked peak limiter on the master bus. Live keys, the
// arp and the improviser can all sound at once, so the summed voices are
// pulled back under the ceiling instead of hard clipping.
type limiter struct {
	ceiling float64
	attack  float64
	release float64
	env     float64
}

const (
	limiterAttackMs  = 1
	limiterReleaseMs = 120
)

func newLimiter(sampleRate int, ceilingDB float64) *limiter {
	sr := float64(sampleRate)
	return &limiter{
		ceiling: math.Pow(10, ceilingDB/20),
		attack:  1 - math.Exp(-1/(limiterAttackMs*sr/1000)),
		release: 1 - math.Exp(-1/(limiterReleaseMs*sr/1000)),
	}
}

func (lm *limiter) process(l, r float64) (float64, float64) {
	peak := math.Max(math.Abs(l), math.Abs(r))
	if peak > lm.env {
		lm.env += lm.attack * (peak - lm.env)
	} else {
		lm.env += lm.release * (peak - lm.env)
	}
	if lm.env <= lm.ceiling {
		return l, r
	}
	g := lm.ceiling / lm.env
	return l * g, r * g
}
