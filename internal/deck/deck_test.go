package deck

import (
	"errors"
	"math"
	"testing"

	"github.com/satindergrewal/twindeck/internal/audio"
	"github.com/satindergrewal/twindeck/internal/sched"
)

func newLoaded(t *testing.T, seconds float64) (*Deck, *sched.Loop) {
	t.Helper()
	loop := sched.NewLoop()
	d := New(A, loop)
	if err := d.Load(audio.Silence(seconds), Metadata{Title: "test", Tempo: 120}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return d, loop
}

func TestIDOther(t *testing.T) {
	if A.Other() != B || B.Other() != A {
		t.Error("Other() should swap A and B")
	}
	if !A.Valid() || !B.Valid() || ID("C").Valid() {
		t.Error("Valid() wrong")
	}
}

func TestLoadRejectsEmpty(t *testing.T) {
	d := New(A, sched.NewLoop())
	if err := d.Load(nil, Metadata{}); !errors.Is(err, ErrEmptyBuffer) {
		t.Errorf("Load(nil) = %v, want ErrEmptyBuffer", err)
	}
	if d.Loaded() {
		t.Error("deck should stay empty after failed load")
	}
}

func TestPlayWithoutBufferIsNoop(t *testing.T) {
	d := New(A, sched.NewLoop())
	d.Play(0)
	if d.IsPlaying() {
		t.Error("Play without buffer should not start playback")
	}
	d.TogglePlay()
	if d.IsPlaying() {
		t.Error("TogglePlay without buffer should not start playback")
	}
}

func TestElapsedTracksClock(t *testing.T) {
	d, loop := newLoaded(t, 60)
	loop.Advance(3)
	d.Play(5)
	loop.Advance(2.5)

	if got := d.ElapsedSeconds(); math.Abs(got-7.5) > 1e-9 {
		t.Errorf("ElapsedSeconds() = %v, want 7.5", got)
	}
}

func TestNaturalEndResetsOffset(t *testing.T) {
	d, loop := newLoaded(t, 10)
	d.Play(0)

	loop.Advance(9.9)
	if !d.IsPlaying() {
		t.Fatal("deck stopped before end of buffer")
	}

	loop.Advance(0.1)
	if d.IsPlaying() {
		t.Error("deck still playing after buffer end")
	}
	if d.PausedOffset() != 0 {
		t.Errorf("PausedOffset() = %v, want 0", d.PausedOffset())
	}
}

func TestNaturalEndNotifies(t *testing.T) {
	d, loop := newLoaded(t, 2)
	var ended []ID
	d.OnEnded(func(id ID) { ended = append(ended, id) })

	d.Play(0)
	loop.Advance(3)
	if len(ended) != 1 || ended[0] != A {
		t.Errorf("ended = %v, want [A]", ended)
	}
}

func TestStopCancelsEndCallback(t *testing.T) {
	d, loop := newLoaded(t, 10)
	d.Play(0)
	loop.Advance(4)
	d.TogglePlay() // pause at 4s

	loop.Advance(20)
	if d.PausedOffset() != 4 {
		t.Errorf("PausedOffset() = %v, want 4 (explicit stop must not look like natural end)", d.PausedOffset())
	}
}

func TestReplayIgnoresStaleEnd(t *testing.T) {
	d, loop := newLoaded(t, 10)
	d.Play(0)
	loop.Advance(5)
	d.Play(0) // restart, old end timer must be dead

	loop.Advance(6) // old source would have ended at 10
	if !d.IsPlaying() {
		t.Fatal("restarted deck stopped by stale end callback")
	}
	loop.Advance(5)
	if d.IsPlaying() {
		t.Error("restarted deck should end at 15s")
	}
}

func TestStopIdempotent(t *testing.T) {
	d, loop := newLoaded(t, 10)
	d.Play(0)
	loop.Advance(3)
	d.TogglePlay()

	before := struct {
		playing bool
		elapsed float64
		sources int
	}{d.IsPlaying(), d.ElapsedSeconds(), len(d.Sources())}

	d.Stop()
	d.Stop()

	if d.IsPlaying() != before.playing || d.ElapsedSeconds() != before.elapsed || len(d.Sources()) != before.sources {
		t.Errorf("Stop on stopped deck changed state: playing=%v elapsed=%v sources=%d",
			d.IsPlaying(), d.ElapsedSeconds(), len(d.Sources()))
	}
}

func TestTogglePlayRoundTrip(t *testing.T) {
	d, loop := newLoaded(t, 30)
	d.Play(0)
	loop.Advance(7.25)
	d.TogglePlay()
	offset := d.PausedOffset()

	d.TogglePlay()
	d.TogglePlay()

	if math.Abs(d.PausedOffset()-offset) > 1e-9 {
		t.Errorf("PausedOffset() = %v after two toggles, want %v", d.PausedOffset(), offset)
	}
	if d.IsPlaying() {
		t.Error("two toggles from paused should end paused")
	}
}

func TestResumeContinuesFromPause(t *testing.T) {
	d, loop := newLoaded(t, 30)
	d.Play(0)
	loop.Advance(4)
	d.TogglePlay()
	loop.Advance(10)
	d.Resume()
	loop.Advance(1)

	if got := d.ElapsedSeconds(); math.Abs(got-5) > 1e-9 {
		t.Errorf("ElapsedSeconds() = %v, want 5", got)
	}
}

func TestLoadStopsAndResets(t *testing.T) {
	d, loop := newLoaded(t, 30)
	d.Play(0)
	d.SetFilter(LowPass, 800)
	loop.Advance(5)
	d.TogglePlay()

	if err := d.Load(audio.Silence(12), Metadata{Title: "next"}); err != nil {
		t.Fatal(err)
	}
	if d.IsPlaying() {
		t.Error("Load should leave the deck stopped")
	}
	if d.PausedOffset() != 0 {
		t.Errorf("PausedOffset() = %v, want 0", d.PausedOffset())
	}
	if fs := d.FilterState(); fs.Type != Pass || fs.Cutoff != OpenCutoff {
		t.Errorf("FilterState() = %+v, want pass at %v", fs, OpenCutoff)
	}
	if d.Duration() != 12 || d.Metadata().Title != "next" {
		t.Errorf("buffer/metadata not replaced: %v %q", d.Duration(), d.Metadata().Title)
	}
}

func TestLoadWhilePlayingStops(t *testing.T) {
	d, loop := newLoaded(t, 30)
	d.Play(0)
	loop.Advance(1)
	if err := d.Load(audio.Silence(5), Metadata{}); err != nil {
		t.Fatal(err)
	}
	if d.IsPlaying() {
		t.Error("Load must force-stop playback")
	}
	srcs := d.Sources()
	if len(srcs) != 1 || srcs[0].StopAt != 1 {
		t.Errorf("old source should be stopped at 1s, got %+v", srcs)
	}
}

func TestEject(t *testing.T) {
	d, _ := newLoaded(t, 5)
	d.Play(0)
	d.Eject()
	if d.Loaded() || d.IsPlaying() {
		t.Error("Eject should stop and unload")
	}
}

func TestSetGainIsSmoothedWhilePlaying(t *testing.T) {
	d, loop := newLoaded(t, 30)
	d.Play(0)
	loop.Advance(1)

	d.SetGain(0)
	if d.GainTarget() != 0 {
		t.Errorf("GainTarget() = %v, want 0", d.GainTarget())
	}
	if d.Gain() != 1 {
		t.Errorf("gain jumped to %v, should ramp from 1", d.Gain())
	}

	mid := d.GainAt(1 + GainTimeConstant)
	if mid <= 0.3 || mid >= 0.4 {
		t.Errorf("gain one time constant in = %v, want ~0.368", mid)
	}
	if v := d.GainAt(1.5); v > 1e-6 {
		t.Errorf("gain after 0.5s = %v, want ~0", v)
	}
}

func TestSetGainOnSilentDeckJumps(t *testing.T) {
	d, loop := newLoaded(t, 30)
	loop.Advance(1)
	d.SetGain(0)
	if d.Gain() != 0 {
		t.Errorf("Gain() = %v, stopped deck should jump to 0", d.Gain())
	}
	d.SetGain(4)
	if d.GainTarget() != 1 {
		t.Errorf("GainTarget() = %v, gain should clamp to 1", d.GainTarget())
	}
}

func TestSetFilterIsTimestamped(t *testing.T) {
	d, loop := newLoaded(t, 30)
	loop.Advance(2)
	d.SetFilter(HighPass, 1200)

	if kind, cutoff := d.FilterAt(1.999); kind != Pass || cutoff != OpenCutoff {
		t.Errorf("before change: %v %v, want pass %v", kind, cutoff, OpenCutoff)
	}
	if kind, cutoff := d.FilterAt(2); kind != HighPass || cutoff != 1200 {
		t.Errorf("at change: %v %v, want highpass 1200", kind, cutoff)
	}
}

func TestSweepFilterIsExponential(t *testing.T) {
	d, loop := newLoaded(t, 30)
	loop.Advance(1)
	d.SweepFilter(LowPass, OpenCutoff, ClosedCutoff, 1, 4)

	_, mid := d.FilterAt(3)
	if want := math.Sqrt(OpenCutoff * ClosedCutoff); math.Abs(mid-want) > 1e-6 {
		t.Errorf("cutoff halfway = %v, want geometric mean %v", mid, want)
	}
	kind, end := d.FilterAt(5)
	if kind != LowPass || math.Abs(end-ClosedCutoff) > 1e-9 {
		t.Errorf("end of sweep = %v %v, want lowpass %v", kind, end, ClosedCutoff)
	}
}

func TestSourcePosition(t *testing.T) {
	s := &Source{Buffer: audio.Silence(10), StartAt: 2, Offset: 3, StopAt: 6}

	tests := []struct {
		at      float64
		pos     float64
		audible bool
	}{
		{1, 0, false},
		{2, 3, true},
		{5, 6, true},
		{6, 0, false},
	}
	for _, tt := range tests {
		pos, ok := s.Position(tt.at)
		if ok != tt.audible || (ok && pos != tt.pos) {
			t.Errorf("Position(%v) = %v,%v want %v,%v", tt.at, pos, ok, tt.pos, tt.audible)
		}
	}
}

func TestCollectDropsSilentSources(t *testing.T) {
	d, loop := newLoaded(t, 30)
	d.Play(0)
	loop.Advance(1)
	d.Stop()
	d.Play(0)
	if len(d.Sources()) != 2 {
		t.Fatalf("Sources() = %d, want 2", len(d.Sources()))
	}
	d.Collect(1)
	if len(d.Sources()) != 1 {
		t.Errorf("Sources() after Collect = %d, want 1", len(d.Sources()))
	}
}

func TestMeterObserve(t *testing.T) {
	var m Meter
	m.Observe([]float32{0.5, -0.5}, []float32{0.5, -0.5})
	peak, rms := m.Level()
	if peak != 0.5 || math.Abs(rms-0.5) > 1e-9 {
		t.Errorf("Level() = %v, %v; want 0.5, 0.5", peak, rms)
	}

	m.Observe([]float32{0, 0}, []float32{0, 0})
	peak, rms = m.Level()
	if peak != 0.5*meterDecay || rms != 0 {
		t.Errorf("after silence Level() = %v, %v; want decayed peak and zero rms", peak, rms)
	}
}

func TestParseFilterType(t *testing.T) {
	for _, k := range []FilterType{Pass, LowPass, HighPass} {
		got, err := ParseFilterType(k.String())
		if err != nil || got != k {
			t.Errorf("ParseFilterType(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseFilterType("reverb"); err == nil {
		t.Error("ParseFilterType(reverb) should fail")
	}
}
