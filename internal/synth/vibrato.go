package synth

import "math"

// vibrato is a global triangle LFO applied to every voice's pitch.
type vibrato struct {
	depth  float64 // semitones
	rateHz float64
	phase  float64
}

func (l *vibrato) set(depth, rateHz float64) {
	if depth < 0 {
		depth = 0
	}
	if rateHz < 0 {
		rateHz = 0
	}
	l.depth = depth
	l.rateHz = rateHz
}

// factor advances one frame and returns the frequency multiplier.
func (l *vibrato) factor(sampleRate float64) float64 {
	if l.depth == 0 || l.rateHz == 0 {
		return 1
	}
	tri := 4*l.phase - 1
	if l.phase >= 0.5 {
		tri = 3 - 4*l.phase
	}
	l.phase += l.rateHz / sampleRate
	for l.phase >= 1 {
		l.phase -= 1
	}
	return math.Pow(2, tri*l.depth/12)
}
