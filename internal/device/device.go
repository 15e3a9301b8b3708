// Package device is the output device: it renders both deck graphs and the
// drum voices into 20 ms PCM frames for the broadcaster. Everything the
// decks were told to do is read back as automation at the exact sample it
// was stamped with.
package device

import (
	"log"
	"math"
	"math/rand/v2"

	"github.com/satindergrewal/twindeck/internal/audio"
	"github.com/satindergrewal/twindeck/internal/beat"
	"github.com/satindergrewal/twindeck/internal/deck"
)

const (
	// subBlock is how many samples share one set of filter coefficients.
	subBlock = 32

	// DrumGain is the level of the synthesized drum voices on the bus.
	DrumGain = 0.5

	frameBuffer = 100
)

// Device is driven by the event loop: Trigger and Render are only called
// from the loop goroutine. Frames is read by the broadcaster.
type Device struct {
	decks   []*deck.Deck
	filters []*biquad

	queued []beat.Event
	voices []*voice
	noise  *rand.Rand

	bus         []float32
	left, right []float32

	frames  chan []int16
	dropped int
}

// New creates a device rendering the given decks.
func New(decks ...*deck.Deck) *Device {
	d := &Device{
		decks:  decks,
		noise:  rand.New(rand.NewPCG(0x7477, 0x646b)),
		frames: make(chan []int16, frameBuffer),
	}
	for range decks {
		d.filters = append(d.filters, &biquad{})
	}
	return d
}

// Frames returns the channel of outgoing PCM frames.
func (d *Device) Frames() <-chan []int16 { return d.frames }

// Close ends the frame stream. Call it once the loop has stopped.
func (d *Device) Close() { close(d.frames) }

// Dropped returns how many frames were discarded because nobody was
// reading.
func (d *Device) Dropped() int { return d.dropped }

// Trigger queues a drum hit. It implements beat.Sink.
func (d *Device) Trigger(e beat.Event) {
	d.queued = append(d.queued, e)
}

// Render produces the audio for clock span [start, end) and sends it out.
func (d *Device) Render(start, end float64) {
	n := int(math.Round((end - start) * audio.SampleRate))
	if n <= 0 {
		return
	}
	d.grow(n)
	clear(d.bus[:2*n])

	for i, dk := range d.decks {
		d.renderDeck(dk, d.filters[i], start, n)
	}
	d.renderDrums(start, end, n)

	pcm := make([]int16, 2*n)
	audio.ToInt16(pcm, d.bus[:2*n])
	select {
	case d.frames <- pcm:
	default:
		d.dropped++
		if d.dropped%500 == 1 {
			log.Printf("Output: no reader, %d frames dropped", d.dropped)
		}
	}

	for _, dk := range d.decks {
		dk.Collect(end)
	}
}

func (d *Device) renderDeck(dk *deck.Deck, f *biquad, start float64, n int) {
	left, right := d.left[:n], d.right[:n]
	srcs := dk.Sources()
	if len(srcs) == 0 {
		clear(left)
		clear(right)
		dk.Tap().Observe(left, right)
		return
	}

	for i := range n {
		t := start + float64(i)/audio.SampleRate
		if i%subBlock == 0 {
			f.configure(dk.FilterAt(t))
		}

		var l, r float64
		for _, s := range srcs {
			if pos, ok := s.Position(t); ok {
				sl, sr := s.Buffer.Frame(int(pos * audio.SampleRate))
				l += float64(sl)
				r += float64(sr)
			}
		}
		l, r = f.process(l, r)

		g := dk.GainAt(t)
		left[i] = float32(l * g)
		right[i] = float32(r * g)
		d.bus[2*i] += left[i]
		d.bus[2*i+1] += right[i]
	}
	dk.Tap().Observe(left, right)
}

// renderDrums starts every queued hit due before end. A hit whose time has
// already passed starts at the top of the block.
func (d *Device) renderDrums(start, end float64, n int) {
	kept := d.queued[:0]
	for _, e := range d.queued {
		if e.Time >= end {
			kept = append(kept, e)
			continue
		}
		offset := int(math.Round((e.Time - start) * audio.SampleRate))
		offset = max(0, min(offset, n-1))
		d.voices = append(d.voices, newVoice(e.Kind, offset))
	}
	d.queued = kept

	live := d.voices[:0]
	for _, v := range d.voices {
		v.render(d.bus, n, DrumGain, d.noise)
		if !v.done() {
			live = append(live, v)
		}
	}
	clear(d.voices[len(live):])
	d.voices = live
}

func (d *Device) grow(n int) {
	if len(d.left) >= n {
		return
	}
	d.bus = make([]float32, 2*n)
	d.left = make([]float32, n)
	d.right = make([]float32, n)
}
