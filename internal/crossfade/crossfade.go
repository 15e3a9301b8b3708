// Package crossfade maps the fader position onto the two deck gains.
package crossfade

import (
	"errors"
	"math"
)

// ErrFaderLocked is returned by SetFaderPosition while an automated
// transition owns the fader.
var ErrFaderLocked = errors.New("fader locked by transition")

// EqualPower returns the gains for fader position x, where 0 is all deck A
// and 1 is all deck B. x is clamped to [0,1].
func EqualPower(x float64) (gainA, gainB float64) {
	x = math.Max(0, math.Min(1, x))
	gainA = math.Cos(x * math.Pi / 2)
	gainB = math.Cos((1 - x) * math.Pi / 2)
	// cos(pi/2) is 6e-17, not 0.
	if x == 0 {
		gainB = 0
	}
	if x == 1 {
		gainA = 0
	}
	return gainA, gainB
}

// GainSetter is the part of a deck the controller drives.
type GainSetter interface {
	SetGain(level float64)
}

// Controller owns the fader. Like the decks it drives, it is confined to
// the event loop.
type Controller struct {
	a, b     GainSetter
	position float64
	locked   bool
}

// NewController creates a controller with the fader fully on deck A. No
// gain is written until the first Apply.
func NewController(a, b GainSetter) *Controller {
	return &Controller{a: a, b: b}
}

// SetFaderPosition is the manual fader move.
func (c *Controller) SetFaderPosition(x float64) error {
	if c.locked {
		return ErrFaderLocked
	}
	c.Apply(x)
	return nil
}

// Apply moves the fader regardless of the lock. Only the holder of the lock
// should call it while locked.
func (c *Controller) Apply(x float64) {
	x = math.Max(0, math.Min(1, x))
	c.position = x
	ga, gb := EqualPower(x)
	c.a.SetGain(ga)
	c.b.SetGain(gb)
}

// Lock disables manual fader moves.
func (c *Controller) Lock() { c.locked = true }

// Unlock re-enables manual fader moves.
func (c *Controller) Unlock() { c.locked = false }

// Locked reports whether a transition holds the fader.
func (c *Controller) Locked() bool { return c.locked }

// Position returns the last applied fader position.
func (c *Controller) Position() float64 { return c.position }
