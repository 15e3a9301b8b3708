package console

import "errors"

var (
	// ErrUnknownDeck is returned for a deck id other than A or B.
	ErrUnknownDeck = errors.New("unknown deck")
	// ErrGainLocked rejects a manual gain change while a transition owns
	// the deck gains.
	ErrGainLocked = errors.New("deck gain locked by transition")
)
