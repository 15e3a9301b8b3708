// Package transition runs the automated handoff from one deck to the other:
// a timed fader move with an outgoing filter sweep, after which the
// outgoing deck is stopped and reset.
package transition

import (
	"fmt"
	"log"
	"math"

	"github.com/satindergrewal/twindeck/internal/deck"
	"github.com/satindergrewal/twindeck/internal/sched"
)

// TickInterval is how often a running transition re-applies the fader.
const TickInterval = 0.05

// Deck is the part of a deck the orchestrator drives.
type Deck interface {
	ID() deck.ID
	Loaded() bool
	IsPlaying() bool
	Play(offset float64)
	Stop()
	SetGain(level float64)
	SetFilter(kind deck.FilterType, cutoff float64)
	SweepFilter(kind deck.FilterType, from, to, at, duration float64)
	FilterState() deck.FilterState
}

// Fader is the crossfade controller as seen by the orchestrator.
type Fader interface {
	Apply(x float64)
	Lock()
	Unlock()
}

// Status describes the transition in flight, if any.
type Status struct {
	Active    bool    `json:"active"`
	From      deck.ID `json:"from,omitempty"`
	To        deck.ID `json:"to,omitempty"`
	StartedAt float64 `json:"started_at,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
	Progress  float64 `json:"progress"`
}

// Orchestrator is confined to the event loop.
type Orchestrator struct {
	timers sched.Timers
	fader  Fader

	active   bool
	from, to Deck
	start    float64
	duration float64
	progress float64
	tick     *sched.Task

	onError    func(error)
	onComplete func(from, to deck.ID)
}

// New creates an idle orchestrator.
func New(timers sched.Timers, fader Fader) *Orchestrator {
	return &Orchestrator{timers: timers, fader: fader}
}

// OnError registers the observer for transitions that abort mid-flight.
func (o *Orchestrator) OnError(fn func(error)) { o.onError = fn }

// OnComplete registers the observer for finished transitions.
func (o *Orchestrator) OnComplete(fn func(from, to deck.ID)) { o.onComplete = fn }

// IsTransitioning reports whether a transition is in flight.
func (o *Orchestrator) IsTransitioning() bool { return o.active }

// Status returns a snapshot of the running transition.
func (o *Orchestrator) Status() Status {
	if !o.active {
		return Status{}
	}
	return Status{
		Active:    true,
		From:      o.from.ID(),
		To:        o.to.ID(),
		StartedAt: o.start,
		Duration:  o.duration,
		Progress:  o.progress,
	}
}

// Start hands playback from one deck to the other over duration seconds.
// On any error nothing is changed.
func (o *Orchestrator) Start(from, to Deck, duration float64) error {
	if o.active {
		return ErrTransitionInProgress
	}
	if from.ID() == to.ID() || !(duration > 0) {
		return ErrInvalidTransition
	}
	if !to.Loaded() {
		return fmt.Errorf("deck %s: %w", to.ID(), ErrInvalidTarget)
	}

	now := o.timers.Now()
	if !to.IsPlaying() {
		to.SetGain(0)
		to.Play(0)
	}

	o.active = true
	o.from, o.to = from, to
	o.start = now
	o.duration = duration
	o.progress = 0

	o.fader.Lock()
	from.SweepFilter(deck.LowPass, deck.OpenCutoff, deck.ClosedCutoff, now, duration)

	log.Printf("Transition %s -> %s started (%.1fs)", from.ID(), to.ID(), duration)
	o.step()
	return nil
}

// Cancel aborts the running transition where it stands. It reports whether
// there was one.
func (o *Orchestrator) Cancel() bool {
	if !o.active {
		return false
	}
	o.abort(ErrCancelled)
	return true
}

func (o *Orchestrator) step() {
	// Reload, stop or eject of the target all leave it silent.
	if !o.to.Loaded() || !o.to.IsPlaying() {
		err := fmt.Errorf("transition %s -> %s: %w", o.from.ID(), o.to.ID(), ErrTargetLost)
		o.abort(err)
		if o.onError != nil {
			o.onError(err)
		}
		return
	}

	now := o.timers.Now()
	end := o.start + o.duration
	o.progress = math.Min(1, math.Max(0, (now-o.start)/o.duration))
	if now >= end-1e-9 {
		o.progress = 1
	}

	x := o.progress
	if o.from.ID() != deck.A {
		x = 1 - o.progress
	}
	o.fader.Apply(x)

	if o.progress >= 1 {
		o.complete()
		return
	}
	o.tick = o.timers.AfterFunc(math.Min(TickInterval, end-now), o.step)
}

func (o *Orchestrator) complete() {
	from, to := o.from, o.to
	o.reset()

	from.Stop()
	from.SetFilter(deck.Pass, deck.OpenCutoff)
	log.Printf("Transition %s -> %s complete", from.ID(), to.ID())
	if o.onComplete != nil {
		o.onComplete(from.ID(), to.ID())
	}
}

// abort leaves gains where they are and pins the outgoing filter at its
// current cutoff.
func (o *Orchestrator) abort(reason error) {
	from := o.from
	o.reset()

	fs := from.FilterState()
	from.SetFilter(deck.LowPass, fs.Cutoff)
	log.Printf("Transition aborted: %v", reason)
}

func (o *Orchestrator) reset() {
	o.tick.Cancel()
	o.tick = nil
	o.active = false
	o.from, o.to = nil, nil
	o.progress = 0
	o.fader.Unlock()
}
