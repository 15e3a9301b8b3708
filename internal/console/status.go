package console

import (
	"context"

	"github.com/satindergrewal/twindeck/internal/autodj"
	"github.com/satindergrewal/twindeck/internal/beat"
	"github.com/satindergrewal/twindeck/internal/deck"
	"github.com/satindergrewal/twindeck/internal/transition"
)

// DeckStatus is one deck as the API reports it.
type DeckStatus struct {
	ID         deck.ID          `json:"id"`
	Loaded     bool             `json:"loaded"`
	Track      deck.Metadata    `json:"track"`
	Playing    bool             `json:"playing"`
	Elapsed    float64          `json:"elapsed"`
	Paused     float64          `json:"paused_offset"`
	Duration   float64          `json:"duration"`
	Gain       float64          `json:"gain"`
	GainTarget float64          `json:"gain_target"`
	Filter     deck.FilterState `json:"filter"`
	Peak       float64          `json:"peak"`
	RMS        float64          `json:"rms"`
}

// FaderStatus is the crossfader position and lock.
type FaderStatus struct {
	Position float64 `json:"position"`
	Locked   bool    `json:"locked"`
}

// Status is a consistent snapshot of the whole console.
type Status struct {
	Clock      float64               `json:"clock"`
	Decks      []DeckStatus          `json:"decks"`
	Fader      FaderStatus           `json:"fader"`
	Transition transition.Status     `json:"transition"`
	Beat       beat.Status           `json:"beat"`
	AutoPilot  autodj.DirectorStatus `json:"autopilot"`
	Tracks     int                   `json:"tracks"`
	Dropped    int                   `json:"dropped_frames"`
	LastError  string                `json:"last_error,omitempty"`
}

// Status returns a snapshot taken on the loop.
func (c *Console) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.do(ctx, func() error {
		st = c.status()
		return nil
	})
	return st, err
}

func (c *Console) status() Status {
	st := Status{
		Clock:      c.loop.Now(),
		Fader:      FaderStatus{Position: c.fader.Position(), Locked: c.fader.Locked()},
		Transition: c.orch.Status(),
		Beat:       c.beats.Status(),
		AutoPilot:  c.dj.Status(),
		Tracks:     c.lib.Len(),
		Dropped:    c.dev.Dropped(),
		LastError:  c.lastError,
	}
	for _, d := range []*deck.Deck{c.a, c.b} {
		peak, rms := d.Tap().Level()
		ds := DeckStatus{
			ID:         d.ID(),
			Loaded:     d.Loaded(),
			Track:      d.Metadata(),
			Playing:    d.IsPlaying(),
			Elapsed:    d.ElapsedSeconds(),
			Paused:     d.PausedOffset(),
			Gain:       d.Gain(),
			GainTarget: d.GainTarget(),
			Filter:     d.FilterState(),
			Peak:       peak,
			RMS:        rms,
		}
		if d.Loaded() {
			ds.Duration = d.Duration()
		}
		st.Decks = append(st.Decks, ds)
	}
	return st
}
