package deck

import "math"

// meterDecay is the per-block falloff of the held peak.
const meterDecay = 0.9

// Meter is the deck's analysis tap: peak and RMS of the post-gain signal,
// updated by the renderer once per block.
type Meter struct {
	peak float64
	rms  float64
}

// Observe folds one rendered block into the meter.
func (m *Meter) Observe(left, right []float32) {
	n := len(left)
	if n == 0 {
		return
	}

	var sum, peak float64
	for i := range n {
		l, r := float64(left[i]), float64(right[i])
		sum += l*l + r*r
		peak = math.Max(peak, math.Max(math.Abs(l), math.Abs(r)))
	}

	m.rms = math.Sqrt(sum / float64(2*n))
	m.peak = math.Max(peak, m.peak*meterDecay)
}

// Level returns the current peak and RMS in linear units.
func (m *Meter) Level() (peak, rms float64) { return m.peak, m.rms }
