package deck

import (
	"fmt"

	"github.com/satindergrewal/twindeck/internal/param"
)

// FilterType selects the deck's filter stage response.
type FilterType int

const (
	Pass FilterType = iota
	LowPass
	HighPass
)

func (f FilterType) String() string {
	switch f {
	case Pass:
		return "pass"
	case LowPass:
		return "lowpass"
	case HighPass:
		return "highpass"
	}
	return fmt.Sprintf("FilterType(%d)", int(f))
}

// ParseFilterType accepts the names produced by String.
func ParseFilterType(s string) (FilterType, error) {
	switch s {
	case "pass", "":
		return Pass, nil
	case "lowpass":
		return LowPass, nil
	case "highpass":
		return HighPass, nil
	}
	return Pass, fmt.Errorf("unknown filter type %q", s)
}

const (
	// OpenCutoff is the fully open cutoff, above anything audible.
	OpenCutoff = 20000.0
	// ClosedCutoff is where a transition leaves the outgoing deck.
	ClosedCutoff = 200.0

	minCutoff = 20.0
)

// FilterState is the filter stage as it sounds at a given instant.
type FilterState struct {
	Type   FilterType `json:"type"`
	Cutoff float64    `json:"cutoff"`
}

type typeChange struct {
	at   float64
	kind FilterType
}

// filterStage keeps the response type as a step timeline next to the
// automated cutoff, so both change at the same clock instant.
type filterStage struct {
	types []typeChange
	freq  *param.Param
}

func newFilterStage() *filterStage {
	return &filterStage{freq: param.New(OpenCutoff)}
}

func (f *filterStage) setType(kind FilterType, at float64) {
	i := len(f.types)
	for i > 0 && f.types[i-1].at >= at {
		i--
	}
	f.types = append(f.types[:i], typeChange{at: at, kind: kind})

	// Keep only the change in force at at and what follows it.
	for len(f.types) > 1 && f.types[1].at <= at-1 {
		f.types = f.types[1:]
	}
}

func (f *filterStage) typeAt(t float64) FilterType {
	kind := Pass
	for _, c := range f.types {
		if c.at > t {
			break
		}
		kind = c.kind
	}
	return kind
}

// SetFilter switches the filter stage now. The change is stamped with the
// current clock time so the renderer applies it at that exact sample.
func (d *Deck) SetFilter(kind FilterType, cutoff float64) {
	now := d.timers.Now()
	cutoff = clamp(cutoff, minCutoff, OpenCutoff)
	d.filter.setType(kind, now)
	d.filter.freq.Hold(now)
	d.filter.freq.SetValueAtTime(cutoff, now)
}

// SweepFilter switches to kind at clock time at and sweeps the cutoff
// exponentially from one value to another over duration seconds.
func (d *Deck) SweepFilter(kind FilterType, from, to, at, duration float64) {
	now := d.timers.Now()
	if at < now {
		at = now
	}
	from = clamp(from, minCutoff, OpenCutoff)
	to = clamp(to, minCutoff, OpenCutoff)

	d.filter.setType(kind, at)
	d.filter.freq.Hold(now)
	d.filter.freq.SetValueAtTime(from, at)
	d.filter.freq.ExponentialRampToValueAtTime(to, at+duration)
}

// FilterState returns the filter stage at the current clock time.
func (d *Deck) FilterState() FilterState {
	kind, cutoff := d.FilterAt(d.timers.Now())
	return FilterState{Type: kind, Cutoff: cutoff}
}

// FilterAt evaluates the filter automation at clock time t.
func (d *Deck) FilterAt(t float64) (FilterType, float64) {
	return d.filter.typeAt(t), d.filter.freq.ValueAt(t)
}
