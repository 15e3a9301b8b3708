package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/satindergrewal/twindeck/internal/audio"
	"github.com/satindergrewal/twindeck/internal/beat"
	"github.com/satindergrewal/twindeck/internal/console"
	"github.com/satindergrewal/twindeck/internal/crossfade"
	"github.com/satindergrewal/twindeck/internal/deck"
	"github.com/satindergrewal/twindeck/internal/playlist"
	"github.com/satindergrewal/twindeck/internal/sched"
	"github.com/satindergrewal/twindeck/internal/transition"
)

// maxUpload caps a track upload body.
const maxUpload = 256 << 20

// api exposes the console over HTTP. Every handler forwards to the console,
// which serializes the work onto its event loop.
type api struct {
	console *console.Console
	library *playlist.Library
	decoder audio.Decoder

	// listeners reports HTTP + WebRTC monitor counts for /api/status.
	listeners func() int
	// sent reports frames fanned out to monitors so far.
	sent func() int64
}

func (a *api) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/status", a.status)

	mux.HandleFunc("POST /api/deck/{id}/load", a.load)
	mux.HandleFunc("POST /api/deck/{id}/play", a.play)
	mux.HandleFunc("POST /api/deck/{id}/stop", a.deckAction((*console.Console).Stop))
	mux.HandleFunc("POST /api/deck/{id}/toggle", a.deckAction((*console.Console).TogglePlay))
	mux.HandleFunc("POST /api/deck/{id}/resume", a.deckAction((*console.Console).Resume))
	mux.HandleFunc("POST /api/deck/{id}/eject", a.deckAction((*console.Console).Eject))
	mux.HandleFunc("POST /api/deck/{id}/gain", a.gain)
	mux.HandleFunc("POST /api/deck/{id}/filter", a.filter)

	mux.HandleFunc("POST /api/fader", a.fader)
	mux.HandleFunc("POST /api/transition", a.startTransition)
	mux.HandleFunc("DELETE /api/transition", a.cancelTransition)
	mux.HandleFunc("POST /api/beat", a.beat)
	mux.HandleFunc("DELETE /api/beat", a.stopBeat)
	mux.HandleFunc("POST /api/autopilot", a.autopilot)

	mux.HandleFunc("GET /api/tracks", a.tracks)
	mux.HandleFunc("POST /api/tracks", a.upload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// writeError maps console errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, console.ErrUnknownDeck), errors.Is(err, playlist.ErrUnknownTrack):
		status = http.StatusNotFound
	case errors.Is(err, transition.ErrTransitionInProgress),
		errors.Is(err, crossfade.ErrFaderLocked),
		errors.Is(err, console.ErrGainLocked):
		status = http.StatusConflict
	case errors.Is(err, transition.ErrInvalidTarget),
		errors.Is(err, transition.ErrInvalidTransition),
		errors.Is(err, beat.ErrInvalidTempo),
		errors.Is(err, deck.ErrEmptyBuffer),
		errors.Is(err, playlist.ErrEmptyTrackPool),
		errors.Is(err, audio.ErrDecode):
		status = http.StatusBadRequest
	case errors.Is(err, sched.ErrLoopStopped):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"ok": false, "error": err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid request"})
		return false
	}
	return true
}

func deckID(r *http.Request) deck.ID { return deck.ID(r.PathValue("id")) }

func (a *api) status(w http.ResponseWriter, r *http.Request) {
	st, err := a.console.Status(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	var listeners int
	var sent int64
	if a.listeners != nil {
		listeners = a.listeners()
	}
	if a.sent != nil {
		sent = a.sent()
	}
	writeJSON(w, http.StatusOK, struct {
		console.Status
		Listeners  int   `json:"listeners"`
		FramesSent int64 `json:"frames_sent"`
	}{st, listeners, sent})
}

func (a *api) deckAction(fn func(*console.Console, context.Context, deck.ID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(a.console, r.Context(), deckID(r)); err != nil {
			writeError(w, err)
			return
		}
		ok(w)
	}
}

func (a *api) load(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrackID string `json:"track_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := a.console.LoadTrack(r.Context(), deckID(r), req.TrackID); err != nil {
		writeError(w, err)
		return
	}
	ok(w)
}

func (a *api) play(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Offset float64 `json:"offset"`
	}
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	if err := a.console.Play(r.Context(), deckID(r), req.Offset); err != nil {
		writeError(w, err)
		return
	}
	ok(w)
}

func (a *api) gain(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Level *float64 `json:"level"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Level == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "level required"})
		return
	}
	if err := a.console.SetGain(r.Context(), deckID(r), *req.Level); err != nil {
		writeError(w, err)
		return
	}
	ok(w)
}

func (a *api) filter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type   string  `json:"type"`
		Cutoff float64 `json:"cutoff"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	kind, err := deck.ParseFilterType(req.Type)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	if req.Cutoff == 0 {
		req.Cutoff = deck.OpenCutoff
	}
	if err := a.console.SetFilter(r.Context(), deckID(r), kind, req.Cutoff); err != nil {
		writeError(w, err)
		return
	}
	ok(w)
}

func (a *api) fader(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Position *float64 `json:"position"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Position == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "position required"})
		return
	}
	if err := a.console.SetFaderPosition(r.Context(), *req.Position); err != nil {
		writeError(w, err)
		return
	}
	ok(w)
}

func (a *api) startTransition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From     deck.ID `json:"from"`
		To       deck.ID `json:"to"`
		Duration float64 `json:"duration"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := a.console.StartTransition(r.Context(), req.From, req.To, req.Duration); err != nil {
		writeError(w, err)
		return
	}
	ok(w)
}

func (a *api) cancelTransition(w http.ResponseWriter, r *http.Request) {
	cancelled, err := a.console.CancelTransition(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "cancelled": cancelled})
}

func (a *api) beat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tempo    float64 `json:"tempo"`
		Duration float64 `json:"duration"`
	}
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	if err := a.console.StartBeat(r.Context(), req.Tempo); err != nil {
		writeError(w, err)
		return
	}
	if req.Duration > 0 {
		if err := a.console.StopBeat(r.Context(), req.Duration); err != nil {
			writeError(w, err)
			return
		}
	}
	ok(w)
}

func (a *api) stopBeat(w http.ResponseWriter, r *http.Request) {
	if err := a.console.StopBeat(r.Context(), 0); err != nil {
		writeError(w, err)
		return
	}
	ok(w)
}

func (a *api) autopilot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	var err error
	if req.Enabled {
		err = a.console.EnableAutoPilot(r.Context())
	} else {
		err = a.console.DisableAutoPilot(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "autopilot": req.Enabled})
}

func (a *api) tracks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.library.Tracks())
}

// upload decodes a posted file on the request goroutine, adds it to the
// library and optionally cues it: POST /api/tracks?name=x[124bpm].mp3&deck=B
func (a *api) upload(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUpload))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"ok": false, "error": "upload too large"})
		return
	}
	buf, err := a.decoder.Decode(raw)
	if err != nil {
		writeError(w, err)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = fmt.Sprintf("upload %d", a.library.Len()+1)
	}
	title, tempo := playlist.ParseName(name)
	tr := a.library.Add(title, tempo, buf)

	if id := r.URL.Query().Get("deck"); id != "" {
		if err := a.console.LoadTrack(r.Context(), deck.ID(id), tr.ID); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, tr)
}
