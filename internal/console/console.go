// Package console wires the mixing core together and is the only way the
// outside world reaches it. Every exported method hands its work to the
// event loop, so callers on any goroutine see a consistent console.
package console

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"

	"github.com/satindergrewal/twindeck/internal/audio"
	"github.com/satindergrewal/twindeck/internal/autodj"
	"github.com/satindergrewal/twindeck/internal/beat"
	"github.com/satindergrewal/twindeck/internal/crossfade"
	"github.com/satindergrewal/twindeck/internal/deck"
	"github.com/satindergrewal/twindeck/internal/device"
	"github.com/satindergrewal/twindeck/internal/playlist"
	"github.com/satindergrewal/twindeck/internal/sched"
	"github.com/satindergrewal/twindeck/internal/transition"
)

// Options configures a console. Times are in seconds.
type Options struct {
	CrossfadeDuration float64
	Tick              float64 // beat scheduler timer period
	Lookahead         float64 // beat scheduler window
	Director          autodj.DirectorConfig
	Rand              *rand.Rand

	// Offline runs every call inline and leaves the clock to Advance,
	// for rendering faster than real time.
	Offline bool
}

// Console owns the loop and everything confined to it.
type Console struct {
	loop  *sched.Loop
	a, b  *deck.Deck
	fader *crossfade.Controller
	orch  *transition.Orchestrator
	beats *beat.Scheduler
	dj    *autodj.Director
	dev   *device.Device
	lib   *playlist.Library
	opts  Options

	lastError string
}

// New builds a console around lib.
func New(lib *playlist.Library, opts Options) *Console {
	if !(opts.CrossfadeDuration > 0) {
		opts.CrossfadeDuration = autodj.DefaultDirectorConfig().TransitionDuration
	}
	opts.Director.TransitionDuration = opts.CrossfadeDuration

	loop := sched.NewLoop()
	c := &Console{
		loop: loop,
		a:    deck.New(deck.A, loop),
		b:    deck.New(deck.B, loop),
		lib:  lib,
		opts: opts,
	}
	c.fader = crossfade.NewController(c.a, c.b)
	c.fader.Apply(0)
	c.orch = transition.New(loop, c.fader)
	c.orch.OnError(func(err error) { c.lastError = err.Error() })
	c.dev = device.New(c.a, c.b)
	c.beats = beat.New(loop, c.dev, opts.Tick, opts.Lookahead)
	c.dj = autodj.NewDirector(loop, c.a, c.b, c.orch, c.beats, c.fader, lib, opts.Rand, opts.Director)
	return c
}

// Run drives the console in real time until ctx is cancelled, then closes
// the frame stream.
func (c *Console) Run(ctx context.Context) {
	defer c.dev.Close()
	log.Printf("Console running")
	c.loop.Run(ctx, audio.FrameDuration, c.dev.Render)
}

// Advance renders seconds of audio as fast as possible. Offline only.
func (c *Console) Advance(seconds float64) {
	frame := audio.FrameDuration.Seconds()
	end := c.loop.Now() + seconds
	for c.loop.Now() < end-1e-9 {
		start := c.loop.Now()
		c.loop.Advance(frame)
		c.dev.Render(start, c.loop.Now())
	}
}

// Frames returns the rendered output.
func (c *Console) Frames() <-chan []int16 { return c.dev.Frames() }

func (c *Console) do(ctx context.Context, fn func() error) error {
	if c.opts.Offline {
		return fn()
	}
	var err error
	if cerr := c.loop.Call(ctx, func() { err = fn() }); cerr != nil {
		return cerr
	}
	return err
}

func (c *Console) deck(id deck.ID) (*deck.Deck, error) {
	switch id {
	case deck.A:
		return c.a, nil
	case deck.B:
		return c.b, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDeck, id)
}

func (c *Console) withDeck(ctx context.Context, id deck.ID, fn func(*deck.Deck) error) error {
	return c.do(ctx, func() error {
		d, err := c.deck(id)
		if err != nil {
			return err
		}
		return fn(d)
	})
}

// Load puts an already decoded buffer on a deck.
func (c *Console) Load(ctx context.Context, id deck.ID, buf *audio.Buffer, meta deck.Metadata) error {
	return c.withDeck(ctx, id, func(d *deck.Deck) error {
		return d.Load(buf, meta)
	})
}

// LoadTrack puts a library track on a deck.
func (c *Console) LoadTrack(ctx context.Context, id deck.ID, trackID string) error {
	tr, err := c.lib.Get(trackID)
	if err != nil {
		return err
	}
	return c.Load(ctx, id, tr.Buffer, deck.Metadata{TrackID: tr.ID, Title: tr.Title, Tempo: tr.Tempo})
}

// Play starts a deck at offset seconds.
func (c *Console) Play(ctx context.Context, id deck.ID, offset float64) error {
	return c.withDeck(ctx, id, func(d *deck.Deck) error {
		d.Play(offset)
		return nil
	})
}

// Resume starts a deck from where it was paused.
func (c *Console) Resume(ctx context.Context, id deck.ID) error {
	return c.withDeck(ctx, id, func(d *deck.Deck) error {
		d.Resume()
		return nil
	})
}

// Stop halts a deck.
func (c *Console) Stop(ctx context.Context, id deck.ID) error {
	return c.withDeck(ctx, id, func(d *deck.Deck) error {
		d.Stop()
		return nil
	})
}

// TogglePlay pauses or resumes a deck.
func (c *Console) TogglePlay(ctx context.Context, id deck.ID) error {
	return c.withDeck(ctx, id, func(d *deck.Deck) error {
		d.TogglePlay()
		return nil
	})
}

// Eject stops a deck and unloads it.
func (c *Console) Eject(ctx context.Context, id deck.ID) error {
	return c.withDeck(ctx, id, func(d *deck.Deck) error {
		d.Eject()
		return nil
	})
}

// SetGain sets one deck's level directly. While a transition runs the
// gains belong to it and the call is rejected.
func (c *Console) SetGain(ctx context.Context, id deck.ID, level float64) error {
	return c.withDeck(ctx, id, func(d *deck.Deck) error {
		if c.orch.IsTransitioning() {
			return ErrGainLocked
		}
		d.SetGain(level)
		return nil
	})
}

// SetFilter switches a deck's filter stage.
func (c *Console) SetFilter(ctx context.Context, id deck.ID, kind deck.FilterType, cutoff float64) error {
	return c.withDeck(ctx, id, func(d *deck.Deck) error {
		d.SetFilter(kind, cutoff)
		return nil
	})
}

// SetFaderPosition moves the crossfader. 0 is deck A, 1 is deck B.
func (c *Console) SetFaderPosition(ctx context.Context, x float64) error {
	return c.do(ctx, func() error {
		return c.fader.SetFaderPosition(x)
	})
}

// StartTransition hands over from one deck to the other. An empty to means
// the other deck; a non-positive duration uses the configured crossfade
// length.
func (c *Console) StartTransition(ctx context.Context, from, to deck.ID, duration float64) error {
	if !(duration > 0) {
		duration = c.opts.CrossfadeDuration
	}
	if to == "" {
		to = from.Other()
	}
	return c.withDeck(ctx, from, func(src *deck.Deck) error {
		dst, err := c.deck(to)
		if err != nil {
			return err
		}
		return c.orch.Start(src, dst, duration)
	})
}

// CancelTransition aborts the running transition, reporting whether there
// was one.
func (c *Console) CancelTransition(ctx context.Context) (bool, error) {
	var cancelled bool
	err := c.do(ctx, func() error {
		cancelled = c.orch.Cancel()
		return nil
	})
	return cancelled, err
}

// IsTransitioning reports whether a transition is in flight.
func (c *Console) IsTransitioning(ctx context.Context) (bool, error) {
	var active bool
	err := c.do(ctx, func() error {
		active = c.orch.IsTransitioning()
		return nil
	})
	return active, err
}

// StartBeat starts the drum scheduler. A zero tempo follows the audible
// deck, or playlist.DefaultTempo with nothing playing.
func (c *Console) StartBeat(ctx context.Context, tempo float64) error {
	return c.do(ctx, func() error {
		if tempo == 0 {
			tempo = c.audibleTempo()
		}
		return c.beats.Start(tempo)
	})
}

// StopBeat stops the drum scheduler after seconds, or at once for zero.
func (c *Console) StopBeat(ctx context.Context, after float64) error {
	return c.do(ctx, func() error {
		if after > 0 {
			c.beats.StopAfter(after)
			return nil
		}
		c.beats.Stop()
		return nil
	})
}

// EnableAutoPilot turns the auto-DJ on.
func (c *Console) EnableAutoPilot(ctx context.Context) error {
	return c.do(ctx, func() error {
		c.dj.Enable()
		return nil
	})
}

// DisableAutoPilot turns the auto-DJ off.
func (c *Console) DisableAutoPilot(ctx context.Context) error {
	return c.do(ctx, func() error {
		c.dj.Disable()
		return nil
	})
}

func (c *Console) audibleTempo() float64 {
	for _, d := range []*deck.Deck{c.a, c.b} {
		if d.IsPlaying() && d.GainTarget() >= 0.5 && beat.ValidTempo(d.Metadata().Tempo) {
			return d.Metadata().Tempo
		}
	}
	return playlist.DefaultTempo
}
