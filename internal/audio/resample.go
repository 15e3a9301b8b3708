package audio

// Convert maps interleaved samples at any rate and channel count to
// interleaved stereo at SampleRate. Mono is duplicated to both sides; more
// than two channels keep the first two. Rate conversion uses Catmull-Rom
// cubic interpolation.
func Convert(samples []float32, rate, channels int) []float32 {
	if channels <= 0 || rate <= 0 || len(samples) < channels {
		return nil
	}

	frames := len(samples) / channels
	left := make([]float32, frames)
	right := make([]float32, frames)
	for i := range frames {
		base := i * channels
		left[i] = samples[base]
		if channels > 1 {
			right[i] = samples[base+1]
		} else {
			right[i] = samples[base]
		}
	}

	if rate != SampleRate {
		left = resample(left, rate, SampleRate)
		right = resample(right, rate, SampleRate)
	}

	out := make([]float32, len(left)*Channels)
	for i := range left {
		out[i*2] = left[i]
		out[i*2+1] = right[i]
	}
	return out
}

func resample(in []float32, from, to int) []float32 {
	if len(in) == 0 {
		return nil
	}
	ratio := float64(from) / float64(to)
	n := int(float64(len(in)) / ratio)
	out := make([]float32, n)

	at := func(i int) float32 {
		if i < 0 {
			return in[0]
		}
		if i >= len(in) {
			return in[len(in)-1]
		}
		return in[i]
	}

	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))
		out[i] = cubic(at(idx-1), at(idx), at(idx+1), at(idx+2), frac)
	}
	return out
}

// cubic interpolates between y1 and y2 at fractional position x.
func cubic(y0, y1, y2, y3, x float32) float32 {
	a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
	a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	a2 := -0.5*y0 + 0.5*y2
	a3 := y1

	return a0*x*x*x + a1*x*x + a2*x + a3
}
