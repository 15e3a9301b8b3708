// Package beat is the lookahead event scheduler. A coarse timer wakes every
// few tens of milliseconds and commits every event that falls inside the
// lookahead window, each stamped with its exact clock time, so timer jitter
// never shows up in the rhythm.
package beat

import (
	"errors"
	"fmt"
	"log"

	"github.com/satindergrewal/twindeck/internal/sched"
)

// ErrInvalidTempo rejects a tempo outside (0, MaxTempo].
var ErrInvalidTempo = errors.New("tempo out of range")

// MaxTempo bounds the event rate a single tick can commit.
const MaxTempo = 999.0

// ValidTempo reports whether tempo is in (0, MaxTempo].
func ValidTempo(tempo float64) bool {
	return tempo > 0 && tempo <= MaxTempo
}

const (
	// DefaultTick is the timer period in seconds.
	DefaultTick = 0.025
	// DefaultLookahead is the scheduling window in seconds.
	DefaultLookahead = 0.1
	// StartDelay places the first event slightly after Start so it can
	// still be committed ahead of the renderer.
	StartDelay = 0.05
)

// Kind names a drum voice.
type Kind int

const (
	Kick Kind = iota
	Hat
	Snare
)

func (k Kind) String() string {
	switch k {
	case Kick:
		return "kick"
	case Hat:
		return "hat"
	case Snare:
		return "snare"
	}
	return "unknown"
}

// Pattern is the repeating voice sequence, one entry per beat.
var Pattern = []Kind{Kick, Hat, Snare, Hat}

// Event is one committed trigger.
type Event struct {
	Time float64 // absolute clock time in seconds
	Kind Kind
	Beat int // index since Start
}

// Sink receives committed events. Trigger is called ahead of Time.
type Sink interface {
	Trigger(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Trigger(e Event) { f(e) }

// Status is a snapshot of the scheduler.
type Status struct {
	Running       bool    `json:"running"`
	Tempo         float64 `json:"tempo,omitempty"`
	NextEventTime float64 `json:"next_event_time,omitempty"`
	StopAt        float64 `json:"stop_at,omitempty"`
}

// Scheduler is confined to the event loop.
type Scheduler struct {
	timers    sched.Timers
	sink      Sink
	tick      float64
	lookahead float64

	running bool
	tempo   float64
	origin  float64
	beat    int

	task     *sched.Task
	stopTask *sched.Task
}

// New creates a stopped scheduler. Non-positive tick or lookahead fall back
// to the defaults.
func New(timers sched.Timers, sink Sink, tick, lookahead float64) *Scheduler {
	if !(tick > 0) {
		tick = DefaultTick
	}
	if !(lookahead > 0) {
		lookahead = DefaultLookahead
	}
	if lookahead < tick {
		log.Printf("Beat lookahead %.3fs is shorter than tick %.3fs; events may be late", lookahead, tick)
	}
	return &Scheduler{timers: timers, sink: sink, tick: tick, lookahead: lookahead}
}

// IsRunning reports whether events are being produced.
func (s *Scheduler) IsRunning() bool { return s.running }

// Status returns a snapshot of the scheduler.
func (s *Scheduler) Status() Status {
	if !s.running {
		return Status{}
	}
	st := Status{Running: true, Tempo: s.tempo, NextEventTime: s.next()}
	if s.stopTask.Pending() {
		st.StopAt = s.stopTask.When()
	}
	return st
}

// Start begins producing events at tempo beats per minute, the first one
// StartDelay from now. It does nothing if already running.
func (s *Scheduler) Start(tempo float64) error {
	if !ValidTempo(tempo) {
		return fmt.Errorf("%w: %v BPM", ErrInvalidTempo, tempo)
	}
	if s.running {
		return nil
	}

	s.running = true
	s.tempo = tempo
	s.origin = s.timers.Now() + StartDelay
	s.beat = 0
	log.Printf("Beat scheduler started at %.1f BPM", tempo)
	s.schedule()
	return nil
}

// Stop cancels the pending tick. Events already handed to the sink stay
// committed. Calling Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.task.Cancel()
	s.task = nil
	s.stopTask.Cancel()
	s.stopTask = nil
	if s.running {
		s.running = false
		log.Printf("Beat scheduler stopped after %d events", s.beat)
	}
}

// StopAfter stops the scheduler seconds from now, replacing any earlier
// deferred stop.
func (s *Scheduler) StopAfter(seconds float64) {
	if !s.running {
		return
	}
	if seconds <= 0 {
		s.Stop()
		return
	}
	s.stopTask.Cancel()
	s.stopTask = s.timers.AfterFunc(seconds, s.Stop)
}

func (s *Scheduler) next() float64 {
	return s.origin + float64(s.beat)*60/s.tempo
}

// schedule commits everything before the end of the lookahead window and
// re-arms itself.
func (s *Scheduler) schedule() {
	horizon := s.timers.Now() + s.lookahead
	for t := s.next(); t < horizon; t = s.next() {
		s.sink.Trigger(Event{Time: t, Kind: Pattern[s.beat%len(Pattern)], Beat: s.beat})
		s.beat++
	}
	s.task = s.timers.AfterFunc(s.tick, s.schedule)
}
