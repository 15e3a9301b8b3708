package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// Format keys used by the registry.
const (
	FormatWAV    = "wav"
	FormatAIFF   = "aiff"
	FormatMP3    = "mp3"
	FormatVorbis = "ogg vorbis"
)

// Decoder turns raw encoded bytes into a Buffer.
type Decoder interface {
	Decode(raw []byte) (*Buffer, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(raw []byte) (*Buffer, error)

func (f DecoderFunc) Decode(raw []byte) (*Buffer, error) { return f(raw) }

// Registry maps format keys to decoders and picks one by sniffing the
// leading bytes of the input.
type Registry struct {
	mu       sync.RWMutex
	codecs   map[string]Decoder
	fallback Decoder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Decoder)}
}

// DefaultRegistry registers the native WAV, AIFF, MP3 and Ogg Vorbis
// decoders.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(FormatWAV, DecoderFunc(decodeWAV))
	r.Register(FormatAIFF, DecoderFunc(decodeAIFF))
	r.Register(FormatMP3, DecoderFunc(decodeMP3))
	r.Register(FormatVorbis, DecoderFunc(decodeVorbis))
	return r
}

func (r *Registry) Register(format string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[format] = d
}

func (r *Registry) Get(format string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.codecs[format]
	return d, ok
}

// SetFallback sets the decoder used when no format is recognised.
func (r *Registry) SetFallback(d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = d
}

// Decode sniffs the format and decodes raw. Every failure wraps ErrDecode.
func (r *Registry) Decode(raw []byte) (*Buffer, error) {
	format := Detect(raw)

	d, ok := r.Get(format)
	if !ok {
		r.mu.RLock()
		d = r.fallback
		r.mu.RUnlock()
	}
	if d == nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, ErrUnknownFormat)
	}
	if format == "" {
		format = "fallback"
	}

	buf, err := d.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, format, err)
	}
	if buf.Frames() == 0 {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, format, ErrEmptyAudio)
	}
	return buf, nil
}

// Detect returns the registry key for raw based on its magic bytes, or ""
// when nothing matches.
func Detect(raw []byte) string {
	switch {
	case len(raw) >= 12 && bytes.Equal(raw[:4], []byte("RIFF")) && bytes.Equal(raw[8:12], []byte("WAVE")):
		return FormatWAV
	case len(raw) >= 12 && bytes.Equal(raw[:4], []byte("FORM")) &&
		(bytes.Equal(raw[8:12], []byte("AIFF")) || bytes.Equal(raw[8:12], []byte("AIFC"))):
		return FormatAIFF
	case len(raw) >= 4 && bytes.Equal(raw[:4], []byte("OggS")):
		return FormatVorbis
	case len(raw) >= 3 && bytes.Equal(raw[:3], []byte("ID3")):
		return FormatMP3
	case len(raw) >= 2 && raw[0] == 0xFF && raw[1]&0xE0 == 0xE0:
		return FormatMP3
	}
	return ""
}

func decodeWAV(raw []byte) (*Buffer, error) {
	d := wav.NewDecoder(bytes.NewReader(raw))
	if !d.IsValidFile() {
		return nil, errors.New("invalid wav file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read wav pcm: %w", err)
	}
	return fromIntBuffer(buf, int(d.BitDepth))
}

func decodeAIFF(raw []byte) (*Buffer, error) {
	d := aiff.NewDecoder(bytes.NewReader(raw))
	if !d.IsValidFile() {
		return nil, errors.New("invalid aiff file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read aiff pcm: %w", err)
	}
	return fromIntBuffer(buf, int(d.BitDepth))
}

func decodeMP3(raw []byte) (*Buffer, error) {
	dec, err := gomp3.NewDecoder(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("open mp3: %w", err)
	}

	// go-mp3 always yields 16-bit little-endian stereo
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("read mp3: %w", err)
	}

	ints := BytesToSamples(pcm)
	samples := make([]float32, len(ints))
	for i, s := range ints {
		samples[i] = float32(s) / 32768
	}
	return NewBuffer(Convert(samples, dec.SampleRate(), 2)), nil
}

func decodeVorbis(raw []byte) (*Buffer, error) {
	samples, format, err := oggvorbis.ReadAll(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("read vorbis: %w", err)
	}
	return NewBuffer(Convert(samples, format.SampleRate, format.Channels)), nil
}

func fromIntBuffer(buf *goaudio.IntBuffer, bitDepth int) (*Buffer, error) {
	if buf == nil || buf.Format == nil {
		return nil, ErrEmptyAudio
	}

	var scale float32
	switch bitDepth {
	case 8:
		scale = 128.0
	case 16:
		scale = 32768.0
	case 24:
		scale = 8388608.0
	case 32:
		scale = 2147483648.0
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedDepth, bitDepth)
	}

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / scale
	}
	return NewBuffer(Convert(samples, buf.Format.SampleRate, buf.Format.NumChannels)), nil
}
