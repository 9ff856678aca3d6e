package synth

// room is a small Schroeder reverb on the master bus: four parallel combs
// into two series allpasses, summed to mono and mixed back by the send.
type room struct {
	combs   [4]delayLine
	allpass [2]delayLine
	send    float64
}

type delayLine struct {
	buf      []float64
	pos      int
	feedback float64
}

// comb lengths in milliseconds, mutually prime-ish to avoid stacked resonances
var (
	combMs    = [4]float64{29.7, 37.1, 41.1, 43.7}
	allpassMs = [2]float64{5.0, 1.7}
)

func newRoom(sampleRate int, send float64) *room {
	r := &room{send: clamp(send, 0, 1)}
	for i, ms := range combMs {
		r.combs[i] = newDelayLine(sampleRate, ms, 0.77)
	}
	for i, ms := range allpassMs {
		r.allpass[i] = newDelayLine(sampleRate, ms, 0.5)
	}
	return r
}

func newDelayLine(sampleRate int, ms float64, feedback float64) delayLine {
	n := int(ms * float64(sampleRate) / 1000)
	if n < 1 {
		n = 1
	}
	return delayLine{buf: make([]float64, n), feedback: feedback}
}

func (d *delayLine) comb(in float64) float64 {
	out := d.buf[d.pos]
	d.buf[d.pos] = in + out*d.feedback
	d.advance()
	return out
}

func (d *delayLine) allpassStep(in float64) float64 {
	delayed := d.buf[d.pos]
	d.buf[d.pos] = in + delayed*d.feedback
	d.advance()
	return delayed - in
}

func (d *delayLine) advance() {
	d.pos++
	if d.pos >= len(d.buf) {
		d.pos = 0
	}
}

func (r *room) process(l, rr float64) (float64, float64) {
	mono := (l + rr) / 2
	var wet float64
	for i := range r.combs {
		wet += r.combs[i].comb(mono)
	}
	wet /= 4
	for i := range r.allpass {
		wet = r.allpass[i].allpassStep(wet)
	}
	return l*(1-r.send) + wet*r.send, rr*(1-r.send) + wet*r.send
}
