// Package deck implements one playback slot of the console: a source, a
// filter stage, a gain stage and a level tap, all driven by timestamped
// automation against the shared audio clock.
package deck

import (
	"errors"
	"log"
	"math"

	"github.com/satindergrewal/twindeck/internal/audio"
	"github.com/satindergrewal/twindeck/internal/param"
	"github.com/satindergrewal/twindeck/internal/sched"
)

// ErrEmptyBuffer is returned by Load for a nil or zero-length buffer.
var ErrEmptyBuffer = errors.New("empty buffer")

// ID labels a deck.
type ID string

const (
	A ID = "A"
	B ID = "B"
)

// Other returns the opposite deck.
func (id ID) Other() ID {
	if id == A {
		return B
	}
	return A
}

// Valid reports whether id names one of the two decks.
func (id ID) Valid() bool { return id == A || id == B }

const (
	// GainTimeConstant is the smoothing applied by SetGain, in seconds.
	GainTimeConstant = 0.015

	// endEpsilon absorbs float rounding when checking for natural end.
	endEpsilon = 1e-9
)

// Metadata is informational track data carried alongside the buffer.
type Metadata struct {
	TrackID string  `json:"track_id,omitempty"`
	Title   string  `json:"title"`
	Tempo   float64 `json:"tempo"`
}

// Source is one started playback of the deck's buffer. A new Source is
// created per Play; stopping sets StopAt and the deck lets go of it.
type Source struct {
	Buffer  *audio.Buffer
	StartAt float64 // clock time at which Offset is heard
	Offset  float64 // buffer position in seconds at StartAt
	StopAt  float64 // clock time the source falls silent
}

// Position returns the buffer position in seconds at clock time t, and
// whether the source is audible then.
func (s *Source) Position(t float64) (float64, bool) {
	if t < s.StartAt || t >= s.StopAt {
		return 0, false
	}
	pos := s.Offset + (t - s.StartAt)
	return pos, pos < s.Buffer.Duration()
}

// Deck is not safe for concurrent use; every call happens on the event loop.
type Deck struct {
	id     ID
	timers sched.Timers

	buffer *audio.Buffer
	meta   Metadata

	gain   *param.Param
	filter *filterStage
	meter  Meter

	playing   bool
	startTime float64 // referenceStartTime: now - startTime = seconds rendered
	paused    float64

	source  *Source
	retired []*Source
	endTask *sched.Task

	onEnded func(ID)
}

// New creates an empty deck at unity gain with the filter open.
func New(id ID, timers sched.Timers) *Deck {
	return &Deck{
		id:     id,
		timers: timers,
		gain:   param.New(1),
		filter: newFilterStage(),
	}
}

func (d *Deck) ID() ID { return d.id }

// OnEnded registers an observer for natural end of track.
func (d *Deck) OnEnded(fn func(ID)) { d.onEnded = fn }

// Load replaces the buffer. A playing deck is stopped first; the filter
// returns to pass-through and the paused offset to zero.
func (d *Deck) Load(buf *audio.Buffer, meta Metadata) error {
	if buf.Frames() == 0 {
		return ErrEmptyBuffer
	}
	d.Stop()
	d.buffer = buf
	d.meta = meta
	d.paused = 0
	d.SetFilter(Pass, OpenCutoff)
	log.Printf("Deck %s loaded: %s (%.1fs)", d.id, meta.Title, buf.Duration())
	return nil
}

// Eject stops the deck and releases its buffer.
func (d *Deck) Eject() {
	d.Stop()
	d.buffer = nil
	d.meta = Metadata{}
	d.paused = 0
}

// Loaded reports whether a buffer is present.
func (d *Deck) Loaded() bool { return d.buffer != nil }

// Metadata returns the loaded track's metadata.
func (d *Deck) Metadata() Metadata { return d.meta }

// Duration returns the loaded buffer's length in seconds.
func (d *Deck) Duration() float64 { return d.buffer.Duration() }

// IsPlaying reports whether a source is running.
func (d *Deck) IsPlaying() bool { return d.playing }

// Play starts the buffer at offset seconds. Without a buffer it does
// nothing. A running source is replaced.
func (d *Deck) Play(offset float64) {
	if d.buffer == nil {
		return
	}
	if d.playing {
		d.Stop()
	}
	if offset < 0 {
		offset = 0
	}

	now := d.timers.Now()
	src := &Source{
		Buffer:  d.buffer,
		StartAt: now,
		Offset:  offset,
		StopAt:  math.Inf(1),
	}
	d.source = src
	d.startTime = now - offset
	d.playing = true

	remaining := d.buffer.Duration() - offset
	d.endTask = d.timers.AfterFunc(remaining, func() { d.finish(src) })
}

// Resume plays from the paused offset.
func (d *Deck) Resume() { d.Play(d.paused) }

// finish runs when src should have reached the end of its buffer. An
// explicit Stop cancels it; a later Play replaces src. Either way a stale
// callback must not touch the deck.
func (d *Deck) finish(src *Source) {
	if !d.playing || d.source != src {
		return
	}
	if d.ElapsedSeconds()+endEpsilon < d.buffer.Duration() {
		return
	}

	d.retire()
	d.playing = false
	d.paused = 0
	log.Printf("Deck %s reached end of track: %s", d.id, d.meta.Title)
	if d.onEnded != nil {
		d.onEnded(d.id)
	}
}

// Stop halts the running source. Calling it on a stopped deck is a no-op.
func (d *Deck) Stop() {
	d.endTask.Cancel()
	d.endTask = nil
	d.retire()
	d.playing = false
}

func (d *Deck) retire() {
	if d.source == nil {
		return
	}
	now := d.timers.Now()
	if d.source.StopAt > now {
		d.source.StopAt = now
	}
	d.retired = append(d.retired, d.source)
	d.source = nil
}

// TogglePlay pauses a playing deck, remembering its position, or resumes a
// stopped one.
func (d *Deck) TogglePlay() {
	if d.playing {
		d.paused = d.timers.Now() - d.startTime
		d.Stop()
		return
	}
	d.Play(d.paused)
}

// ElapsedSeconds returns the playback position: live while playing, the
// paused offset otherwise.
func (d *Deck) ElapsedSeconds() float64 {
	if d.playing {
		return d.timers.Now() - d.startTime
	}
	return d.paused
}

// PausedOffset returns the position Resume would start from.
func (d *Deck) PausedOffset() float64 { return d.paused }

// SetGain moves the gain toward level with a short exponential ramp. A
// silent deck jumps straight to level since no click can be heard.
func (d *Deck) SetGain(level float64) {
	level = clamp(level, 0, 1)
	now := d.timers.Now()
	d.gain.Hold(now)
	if !d.playing {
		d.gain.SetValueAtTime(level, now)
		return
	}
	d.gain.SetTargetAtTime(level, now, GainTimeConstant)
}

// Gain returns the gain at the current clock time.
func (d *Deck) Gain() float64 { return d.gain.ValueAt(d.timers.Now()) }

// GainTarget returns the gain the deck is settling toward.
func (d *Deck) GainTarget() float64 { return d.gain.Target() }

// GainAt evaluates the gain automation at clock time t.
func (d *Deck) GainAt(t float64) float64 { return d.gain.ValueAt(t) }

// Sources lists every source that may still be audible, oldest first.
func (d *Deck) Sources() []*Source {
	if d.source == nil {
		return d.retired
	}
	out := make([]*Source, 0, len(d.retired)+1)
	out = append(out, d.retired...)
	return append(out, d.source)
}

// Collect releases stopped sources that fell silent before t.
func (d *Deck) Collect(t float64) {
	kept := d.retired[:0]
	for _, s := range d.retired {
		if s.StopAt > t {
			kept = append(kept, s)
		}
	}
	for i := len(kept); i < len(d.retired); i++ {
		d.retired[i] = nil
	}
	d.retired = kept
}

// Tap returns the deck's level meter.
func (d *Deck) Tap() *Meter { return &d.meter }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
