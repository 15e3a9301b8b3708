package transition

import "errors"

var (
	// ErrTransitionInProgress rejects a start while another transition runs.
	ErrTransitionInProgress = errors.New("transition already in progress")
	// ErrInvalidTarget rejects a target deck with nothing loaded.
	ErrInvalidTarget = errors.New("target deck has no buffer")
	// ErrInvalidTransition rejects a start with the same deck on both ends or
	// a non-positive duration.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrTargetLost aborts a running transition whose target stopped
	// playing: ejected, reloaded, stopped or run out.
	ErrTargetLost = errors.New("target deck stopped")
	// ErrCancelled is reported when a running transition is cancelled.
	ErrCancelled = errors.New("transition cancelled")
)
