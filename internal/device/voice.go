package device

import (
	"math"
	"math/rand/v2"

	"github.com/satindergrewal/twindeck/internal/audio"
	"github.com/satindergrewal/twindeck/internal/beat"
)

// voice is one synthesized drum hit.
type voice struct {
	kind   beat.Kind
	offset int // samples to wait before the hit, within the current block
	age    int // samples rendered since the hit
	length int
	phase  float64
	lp     float64 // hat noise low-pass state
}

func newVoice(kind beat.Kind, offset int) *voice {
	seconds := 0.35
	switch kind {
	case beat.Snare:
		seconds = 0.2
	case beat.Hat:
		seconds = 0.06
	}
	return &voice{kind: kind, offset: offset, length: int(seconds * audio.SampleRate)}
}

func (v *voice) done() bool { return v.age >= v.length }

// render adds the voice into the first n frames of the interleaved bus.
func (v *voice) render(bus []float32, n int, gain float64, noise *rand.Rand) {
	for i := v.offset; i < n && !v.done(); i++ {
		s := float32(gain * v.next(noise))
		bus[2*i] += s
		bus[2*i+1] += s
	}
	v.offset = 0
}

func (v *voice) next(noise *rand.Rand) float64 {
	t := float64(v.age) / audio.SampleRate
	v.age++

	switch v.kind {
	case beat.Kick:
		freq := 50 + 100*math.Exp(-t/0.04)
		v.phase += 2 * math.Pi * freq / audio.SampleRate
		return math.Sin(v.phase) * math.Exp(-t/0.12)
	case beat.Snare:
		v.phase += 2 * math.Pi * 185 / audio.SampleRate
		tone := math.Sin(v.phase) * math.Exp(-t/0.05)
		hiss := (noise.Float64()*2 - 1) * math.Exp(-t/0.07)
		return 0.4*tone + 0.6*hiss
	case beat.Hat:
		n := noise.Float64()*2 - 1
		v.lp += 0.3 * (n - v.lp)
		return 0.5 * (n - v.lp) * math.Exp(-t/0.015)
	}
	return 0
}
