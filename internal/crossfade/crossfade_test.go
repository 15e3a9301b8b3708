package crossfade

import (
	"errors"
	"math"
	"testing"
)

type gainRecorder struct {
	levels []float64
}

func (g *gainRecorder) SetGain(level float64) { g.levels = append(g.levels, level) }

func (g *gainRecorder) last() float64 { return g.levels[len(g.levels)-1] }

func TestEqualPowerEndpoints(t *testing.T) {
	tests := []struct {
		x      float64
		ga, gb float64
	}{
		{0, 1, 0},
		{1, 0, 1},
		{-3, 1, 0},
		{7, 0, 1},
		{0.5, math.Cos(math.Pi / 4), math.Cos(math.Pi / 4)},
	}
	for _, tt := range tests {
		ga, gb := EqualPower(tt.x)
		if math.Abs(ga-tt.ga) > 1e-12 || math.Abs(gb-tt.gb) > 1e-12 {
			t.Errorf("EqualPower(%v) = (%v, %v), want (%v, %v)", tt.x, ga, gb, tt.ga, tt.gb)
		}
	}
}

func TestEqualPowerMonotonic(t *testing.T) {
	prevA, prevB := EqualPower(0)
	for i := 1; i <= 100; i++ {
		ga, gb := EqualPower(float64(i) / 100)
		if ga > prevA {
			t.Fatalf("gainA rose at x=%v: %v > %v", float64(i)/100, ga, prevA)
		}
		if gb < prevB {
			t.Fatalf("gainB fell at x=%v: %v < %v", float64(i)/100, gb, prevB)
		}
		prevA, prevB = ga, gb
	}
}

func TestEqualPowerConstantPower(t *testing.T) {
	for i := 0; i <= 20; i++ {
		ga, gb := EqualPower(float64(i) / 20)
		if p := ga*ga + gb*gb; math.Abs(p-1) > 1e-12 {
			t.Errorf("power at x=%v = %v, want 1", float64(i)/20, p)
		}
	}
}

func TestSetFaderPositionAppliesGains(t *testing.T) {
	a, b := &gainRecorder{}, &gainRecorder{}
	c := NewController(a, b)

	if err := c.SetFaderPosition(1); err != nil {
		t.Fatalf("SetFaderPosition: %v", err)
	}
	if a.last() != 0 || b.last() != 1 {
		t.Errorf("gains = (%v, %v), want (0, 1)", a.last(), b.last())
	}
	if c.Position() != 1 {
		t.Errorf("Position() = %v, want 1", c.Position())
	}
}

func TestLockedFaderRejectsManualMoves(t *testing.T) {
	a, b := &gainRecorder{}, &gainRecorder{}
	c := NewController(a, b)
	c.Apply(0.25)
	c.Lock()

	err := c.SetFaderPosition(0.9)
	if !errors.Is(err, ErrFaderLocked) {
		t.Fatalf("err = %v, want ErrFaderLocked", err)
	}
	if c.Position() != 0.25 || len(a.levels) != 1 {
		t.Error("rejected move must not touch the fader or gains")
	}

	c.Apply(0.5)
	if c.Position() != 0.5 {
		t.Error("Apply should bypass the lock")
	}

	c.Unlock()
	if err := c.SetFaderPosition(0.9); err != nil {
		t.Errorf("after Unlock err = %v", err)
	}
}
