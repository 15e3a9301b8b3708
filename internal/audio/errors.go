package audio

import "errors"

var (
	// ErrDecode reports unplayable input: unknown format, corrupt data or a
	// stream with no audio.
	ErrDecode = errors.New("decode error")

	ErrUnknownFormat    = errors.New("unknown audio format")
	ErrUnsupportedDepth = errors.New("unsupported bit depth")
	ErrEmptyAudio       = errors.New("no audio samples")
)
