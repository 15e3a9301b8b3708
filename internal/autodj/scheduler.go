// Package autodj is the automation policy: a once-a-second monitor that
// keeps music going by loading the idle deck and starting transitions, and
// now and then drops a short drum pattern over the playing track.
package autodj

import (
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand/v2"

	"github.com/satindergrewal/twindeck/internal/audio"
	"github.com/satindergrewal/twindeck/internal/beat"
	"github.com/satindergrewal/twindeck/internal/deck"
	"github.com/satindergrewal/twindeck/internal/playlist"
	"github.com/satindergrewal/twindeck/internal/sched"
	"github.com/satindergrewal/twindeck/internal/transition"
)

// DirectorConfig holds auto-DJ parameters. Times are in seconds.
type DirectorConfig struct {
	Interval           float64 // policy cadence
	TransitionDuration float64 // crossfade length
	Lead               float64 // extra margin before the window opens
	BeatChance         float64 // per-tick probability of a drum drop mid-track
	BeatDuration       float64 // how long a drum drop lasts
	Debug              bool
}

// DefaultDirectorConfig matches the console defaults.
func DefaultDirectorConfig() DirectorConfig {
	return DirectorConfig{
		Interval:           1,
		TransitionDuration: 8,
		Lead:               2,
		BeatChance:         0.02,
		BeatDuration:       8,
	}
}

// DirectorStatus is the current state of the auto-DJ.
type DirectorStatus struct {
	Enabled     bool    `json:"enabled"`
	ActiveDeck  deck.ID `json:"active_deck,omitempty"`
	Remaining   float64 `json:"remaining"` // seconds left on the active deck
	LastAction  string  `json:"last_action,omitempty"`
	Transitions int     `json:"transitions"`
}

// Deck is what the director reads and drives on each deck.
type Deck interface {
	transition.Deck
	Duration() float64
	ElapsedSeconds() float64
	GainTarget() float64
	Metadata() deck.Metadata
	Load(buf *audio.Buffer, meta deck.Metadata) error
}

// Transitioner starts deck handoffs.
type Transitioner interface {
	Start(from, to transition.Deck, duration float64) error
	IsTransitioning() bool
}

// Beats is the drum scheduler as seen by the director.
type Beats interface {
	Start(tempo float64) error
	StopAfter(seconds float64)
	IsRunning() bool
}

// Fader is the manual fader, moved fully onto deck A at kickoff.
type Fader interface {
	SetFaderPosition(x float64) error
}

// Tracks supplies random tracks.
type Tracks interface {
	Random(r *rand.Rand) (playlist.Track, error)
}

// Director is confined to the event loop.
type Director struct {
	timers sched.Timers
	a, b   Deck
	orch   Transitioner
	beats  Beats
	fader  Fader
	tracks Tracks
	rng    *rand.Rand
	cfg    DirectorConfig

	enabled     bool
	task        *sched.Task
	lastAction  string
	transitions int
}

// NewDirector creates a disabled director. A nil rng gets a randomly
// seeded source.
func NewDirector(timers sched.Timers, a, b Deck, orch Transitioner, beats Beats, fader Fader, tracks Tracks, rng *rand.Rand, cfg DirectorConfig) *Director {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if !(cfg.Interval > 0) {
		cfg.Interval = 1
	}
	return &Director{
		timers: timers,
		a:      a,
		b:      b,
		orch:   orch,
		beats:  beats,
		fader:  fader,
		tracks: tracks,
		rng:    rng,
		cfg:    cfg,
	}
}

// Enable turns the auto-DJ on. With nothing playing it starts a random
// track on deck A right away.
func (d *Director) Enable() {
	if d.enabled {
		return
	}
	d.enabled = true
	log.Printf("Auto-DJ enabled")
	if d.active() == nil && !d.orch.IsTransitioning() {
		d.kickoff()
	}
	d.task = d.timers.AfterFunc(d.cfg.Interval, d.tick)
}

// Disable turns the auto-DJ off. A transition already running finishes.
func (d *Director) Disable() {
	d.task.Cancel()
	d.task = nil
	if d.enabled {
		d.enabled = false
		log.Printf("Auto-DJ disabled")
	}
}

// Enabled reports whether the auto-DJ is on.
func (d *Director) Enabled() bool { return d.enabled }

// Status returns the current DJ state.
func (d *Director) Status() DirectorStatus {
	st := DirectorStatus{
		Enabled:     d.enabled,
		LastAction:  d.lastAction,
		Transitions: d.transitions,
	}
	if act := d.active(); act != nil {
		st.ActiveDeck = act.ID()
		st.Remaining = math.Max(0, act.Duration()-act.ElapsedSeconds())
	}
	return st
}

func (d *Director) tick() {
	if !d.enabled {
		return
	}
	d.task = d.timers.AfterFunc(d.cfg.Interval, d.tick)
	d.step()
}

// step makes one policy decision.
func (d *Director) step() {
	if d.orch.IsTransitioning() {
		return
	}
	act := d.active()
	if act == nil {
		return
	}

	remaining := act.Duration() - act.ElapsedSeconds()
	if remaining <= d.cfg.TransitionDuration+d.cfg.Lead {
		d.handoff(act, remaining)
		return
	}

	if !d.beats.IsRunning() && d.rng.Float64() < d.cfg.BeatChance {
		tempo := act.Metadata().Tempo
		if !beat.ValidTempo(tempo) {
			tempo = playlist.DefaultTempo
		}
		if err := d.beats.Start(tempo); err != nil {
			log.Printf("Auto-DJ beat error: %v", err)
			return
		}
		d.beats.StopAfter(d.cfg.BeatDuration)
		d.record("beat drop at %.0f BPM on deck %s", tempo, act.ID())
	}
}

func (d *Director) handoff(from Deck, remaining float64) {
	to := d.other(from)
	if !to.IsPlaying() {
		tr, err := d.tracks.Random(d.rng)
		if errors.Is(err, playlist.ErrEmptyTrackPool) {
			d.debugf("Auto-DJ: no tracks to load, skipping")
			return
		}
		if err != nil {
			log.Printf("Auto-DJ track error: %v", err)
			return
		}
		if err := to.Load(tr.Buffer, deck.Metadata{TrackID: tr.ID, Title: tr.Title, Tempo: tr.Tempo}); err != nil {
			log.Printf("Auto-DJ load error on deck %s: %v", to.ID(), err)
			return
		}
	}

	// Never run the fade past the end of the outgoing track.
	dur := math.Max(1, math.Min(d.cfg.TransitionDuration, remaining))
	if err := d.orch.Start(from, to, dur); err != nil {
		log.Printf("Auto-DJ transition error: %v", err)
		return
	}
	d.transitions++
	d.record("transition %s -> %s (%s)", from.ID(), to.ID(), to.Metadata().Title)
}

func (d *Director) kickoff() {
	tr, err := d.tracks.Random(d.rng)
	if err != nil {
		d.debugf("Auto-DJ kickoff skipped: %v", err)
		return
	}
	if err := d.a.Load(tr.Buffer, deck.Metadata{TrackID: tr.ID, Title: tr.Title, Tempo: tr.Tempo}); err != nil {
		log.Printf("Auto-DJ load error on deck %s: %v", d.a.ID(), err)
		return
	}
	if err := d.fader.SetFaderPosition(0); err != nil {
		log.Printf("Auto-DJ fader error: %v", err)
	}
	d.a.Play(0)
	d.record("kickoff on deck %s: %s", d.a.ID(), tr.Title)
}

// active returns the audible deck: the playing one, or the louder of two.
func (d *Director) active() Deck {
	switch {
	case d.a.IsPlaying() && d.b.IsPlaying():
		if d.b.GainTarget() > d.a.GainTarget() {
			return d.b
		}
		return d.a
	case d.a.IsPlaying():
		return d.a
	case d.b.IsPlaying():
		return d.b
	}
	return nil
}

func (d *Director) other(x Deck) Deck {
	if x.ID() == d.a.ID() {
		return d.b
	}
	return d.a
}

func (d *Director) record(format string, args ...any) {
	d.lastAction = fmt.Sprintf(format, args...)
	log.Printf("Auto-DJ: %s", d.lastAction)
}

func (d *Director) debugf(format string, args ...any) {
	if d.cfg.Debug {
		log.Printf(format, args...)
	}
}
