package device

import (
	"math"

	"github.com/satindergrewal/twindeck/internal/audio"
	"github.com/satindergrewal/twindeck/internal/deck"
)

// butterworthQ gives a maximally flat passband.
const butterworthQ = math.Sqrt2 / 2

// biquad is a stereo second-order IIR in Direct Form I with RBJ cookbook
// low-pass and high-pass designs. Coefficients are only recomputed when the
// type or cutoff changes.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64

	x1, x2 [2]float64
	y1, y2 [2]float64

	kind   deck.FilterType
	cutoff float64
}

func (f *biquad) configure(kind deck.FilterType, cutoff float64) {
	if kind == f.kind && cutoff == f.cutoff {
		return
	}
	if kind != f.kind {
		f.reset()
	}
	f.kind, f.cutoff = kind, cutoff
	if kind == deck.Pass {
		return
	}

	nyquist := audio.SampleRate / 2.0
	cutoff = math.Max(10, math.Min(cutoff, nyquist*0.95))
	omega := 2 * math.Pi * cutoff / audio.SampleRate
	sinOmega, cosOmega := math.Sin(omega), math.Cos(omega)
	alpha := sinOmega / (2 * butterworthQ)

	var b0, b1, b2 float64
	switch kind {
	case deck.LowPass:
		b0 = (1 - cosOmega) / 2
		b1 = 1 - cosOmega
		b2 = (1 - cosOmega) / 2
	case deck.HighPass:
		b0 = (1 + cosOmega) / 2
		b1 = -(1 + cosOmega)
		b2 = (1 + cosOmega) / 2
	}
	a0 := 1 + alpha
	f.b0, f.b1, f.b2 = b0/a0, b1/a0, b2/a0
	f.a1 = -2 * cosOmega / a0
	f.a2 = (1 - alpha) / a0
}

func (f *biquad) reset() {
	f.x1, f.x2 = [2]float64{}, [2]float64{}
	f.y1, f.y2 = [2]float64{}, [2]float64{}
}

func (f *biquad) process(l, r float64) (float64, float64) {
	if f.kind == deck.Pass {
		return l, r
	}
	return f.step(0, l), f.step(1, r)
}

func (f *biquad) step(ch int, x0 float64) float64 {
	y0 := f.b0*x0 + f.b1*f.x1[ch] + f.b2*f.x2[ch] - f.a1*f.y1[ch] - f.a2*f.y2[ch]
	f.x2[ch], f.x1[ch] = f.x1[ch], x0
	f.y2[ch], f.y1[ch] = f.y1[ch], y0
	return y0
}
