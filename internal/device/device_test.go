package device

import (
	"math"
	"testing"

	"github.com/satindergrewal/twindeck/internal/audio"
	"github.com/satindergrewal/twindeck/internal/beat"
	"github.com/satindergrewal/twindeck/internal/deck"
	"github.com/satindergrewal/twindeck/internal/sched"
)

const frame = 0.02

func constant(v float32, seconds float64) *audio.Buffer {
	s := make([]float32, int(seconds*audio.SampleRate)*2)
	for i := range s {
		s[i] = v
	}
	return audio.NewBuffer(s)
}

func sine(freq, seconds float64) *audio.Buffer {
	n := int(seconds * audio.SampleRate)
	s := make([]float32, 2*n)
	for i := range n {
		v := float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/audio.SampleRate))
		s[2*i], s[2*i+1] = v, v
	}
	return audio.NewBuffer(s)
}

// step advances the loop by one frame and renders it.
func step(loop *sched.Loop, dev *Device) []int16 {
	start := loop.Now()
	loop.Advance(frame)
	dev.Render(start, loop.Now())
	return <-dev.Frames()
}

func rms(pcm []int16) float64 {
	var sum float64
	for _, s := range pcm {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(pcm)))
}

func TestRenderSilence(t *testing.T) {
	loop := sched.NewLoop()
	dev := New(deck.New(deck.A, loop), deck.New(deck.B, loop))

	pcm := step(loop, dev)
	if len(pcm) != audio.FrameSamples {
		t.Fatalf("frame length = %d, want %d", len(pcm), audio.FrameSamples)
	}
	for i, s := range pcm {
		if s != 0 {
			t.Fatalf("sample %d = %d, want silence", i, s)
		}
	}
}

func TestRenderPlayingDeck(t *testing.T) {
	loop := sched.NewLoop()
	a := deck.New(deck.A, loop)
	a.Load(constant(0.5, 2), deck.Metadata{})
	dev := New(a)

	a.Play(0)
	pcm := step(loop, dev)
	for i, s := range pcm {
		if s != 16383 {
			t.Fatalf("sample %d = %d, want 16383", i, s)
		}
	}

	peak, _ := a.Tap().Level()
	if math.Abs(peak-0.5) > 1e-6 {
		t.Errorf("meter peak = %v, want 0.5", peak)
	}
}

func TestRenderMixesDecksWithGain(t *testing.T) {
	loop := sched.NewLoop()
	a := deck.New(deck.A, loop)
	b := deck.New(deck.B, loop)
	a.Load(constant(0.25, 2), deck.Metadata{})
	b.Load(constant(0.25, 2), deck.Metadata{})
	a.SetGain(0)
	b.SetGain(1)
	a.Play(0)
	b.Play(0)
	dev := New(a, b)

	pcm := step(loop, dev)
	if pcm[100] != 8191 {
		t.Errorf("mixed sample = %d, want only deck B at 8191", pcm[100])
	}
}

func TestGainRampIsSampleAccurate(t *testing.T) {
	loop := sched.NewLoop()
	a := deck.New(deck.A, loop)
	a.Load(constant(0.5, 2), deck.Metadata{})
	a.Play(0)
	dev := New(a)
	step(loop, dev)

	a.SetGain(0)
	pcm := step(loop, dev)
	first, last := pcm[0], pcm[len(pcm)-2]
	if first != 16383 {
		t.Errorf("first sample after SetGain = %d, want unchanged 16383", first)
	}
	if last >= first || last <= 0 {
		t.Errorf("last sample = %d, want decaying toward 0", last)
	}
	for i := 2; i < len(pcm); i += 2 {
		if pcm[i] > pcm[i-2] {
			t.Fatalf("gain ramp not monotonic at %d: %d > %d", i, pcm[i], pcm[i-2])
		}
	}
}

func TestLowPassAttenuates(t *testing.T) {
	level := func(kind deck.FilterType, cutoff float64) float64 {
		loop := sched.NewLoop()
		a := deck.New(deck.A, loop)
		a.Load(sine(5000, 2), deck.Metadata{})
		a.SetFilter(kind, cutoff)
		a.Play(0)
		dev := New(a)
		step(loop, dev) // settle
		return rms(step(loop, dev))
	}

	open := level(deck.Pass, deck.OpenCutoff)
	closed := level(deck.LowPass, deck.ClosedCutoff)
	if open < 10000 {
		t.Fatalf("open rms = %v, expected the full sine", open)
	}
	if closed > open/100 {
		t.Errorf("lowpass at %v Hz rms = %v, want < 1%% of %v", deck.ClosedCutoff, closed, open)
	}

	hp := level(deck.HighPass, 200)
	if math.Abs(hp-open)/open > 0.05 {
		t.Errorf("highpass at 200 Hz changed a 5 kHz sine: %v vs %v", hp, open)
	}
}

func TestDrumHitLandsOnItsSample(t *testing.T) {
	loop := sched.NewLoop()
	dev := New(deck.New(deck.A, loop))

	dev.Trigger(beat.Event{Time: 0.01, Kind: beat.Kick})
	pcm := step(loop, dev)

	hit := 480 // 10ms at 48kHz
	for i := 0; i < hit; i++ {
		if pcm[2*i] != 0 {
			t.Fatalf("sample %d = %d before the hit", i, pcm[2*i])
		}
	}
	nonzero := false
	for i := hit; i < audio.FrameSize; i++ {
		if pcm[2*i] != 0 {
			nonzero = true
			break
		}
	}
	if !nonzero {
		t.Error("kick not rendered after its timestamp")
	}
}

func TestFutureDrumHitWaits(t *testing.T) {
	loop := sched.NewLoop()
	dev := New(deck.New(deck.A, loop))
	dev.Trigger(beat.Event{Time: 0.05, Kind: beat.Snare})

	if rms(step(loop, dev)) != 0 || rms(step(loop, dev)) != 0 {
		t.Fatal("hit rendered before its frame")
	}
	if rms(step(loop, dev)) == 0 {
		t.Error("hit missing from the frame containing its time")
	}
}

func TestLateDrumHitStartsAtBlock(t *testing.T) {
	loop := sched.NewLoop()
	dev := New(deck.New(deck.A, loop))
	step(loop, dev)

	dev.Trigger(beat.Event{Time: 0.001, Kind: beat.Hat})
	pcm := step(loop, dev)
	if pcm[0] == 0 && pcm[2] == 0 && pcm[4] == 0 {
		t.Error("late hat should start at the top of the block")
	}
}

func TestVoicesFinish(t *testing.T) {
	loop := sched.NewLoop()
	dev := New(deck.New(deck.A, loop))
	dev.Trigger(beat.Event{Time: 0, Kind: beat.Kick})
	for range 30 {
		step(loop, dev)
	}
	if len(dev.voices) != 0 {
		t.Errorf("%d voices still alive after 600ms", len(dev.voices))
	}
}

func TestRenderNeverBlocks(t *testing.T) {
	loop := sched.NewLoop()
	dev := New(deck.New(deck.A, loop))
	for range frameBuffer + 10 {
		start := loop.Now()
		loop.Advance(frame)
		dev.Render(start, loop.Now())
	}
	if dev.Dropped() != 10 {
		t.Errorf("Dropped() = %d, want 10", dev.Dropped())
	}
}

func TestRenderCollectsStoppedSources(t *testing.T) {
	loop := sched.NewLoop()
	a := deck.New(deck.A, loop)
	a.Load(constant(0.5, 2), deck.Metadata{})
	a.Play(0)
	dev := New(a)
	step(loop, dev)

	a.Stop()
	step(loop, dev)
	if n := len(a.Sources()); n != 0 {
		t.Errorf("Sources() = %d after render, want 0", n)
	}
}
