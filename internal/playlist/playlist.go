// Package playlist holds the decoded tracks the console can load.
package playlist

import (
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/satindergrewal/twindeck/internal/audio"
	"github.com/satindergrewal/twindeck/internal/beat"
)

// DefaultTempo is assumed for tracks without a tempo tag.
const DefaultTempo = 120.0

var (
	// ErrEmptyTrackPool is returned by Random on an empty library.
	ErrEmptyTrackPool = errors.New("track pool is empty")
	// ErrUnknownTrack is returned by Get for an id not in the library.
	ErrUnknownTrack = errors.New("unknown track")
)

// Track is a decoded, ready-to-load track.
type Track struct {
	ID     string        `json:"id"`
	Title  string        `json:"title"`
	Tempo  float64       `json:"tempo"`
	Length float64       `json:"length"` // seconds
	Buffer *audio.Buffer `json:"-"`
}

// Library is safe for concurrent use: HTTP uploads add tracks while the
// event loop picks them.
type Library struct {
	mu     sync.RWMutex
	tracks []Track
	byID   map[string]int
}

// New creates an empty library.
func New() *Library {
	return &Library{byID: make(map[string]int)}
}

// Add appends a decoded track and returns it with its assigned id. A
// tempo outside (0, beat.MaxTempo] falls back to DefaultTempo.
func (l *Library) Add(title string, tempo float64, buf *audio.Buffer) Track {
	if !beat.ValidTempo(tempo) {
		tempo = DefaultTempo
	}
	t := Track{
		ID:     uuid.NewString(),
		Title:  title,
		Tempo:  tempo,
		Length: buf.Duration(),
		Buffer: buf,
	}

	l.mu.Lock()
	l.byID[t.ID] = len(l.tracks)
	l.tracks = append(l.tracks, t)
	l.mu.Unlock()

	log.Printf("Track added: %s (%.1fs, %.0f BPM)", title, t.Length, tempo)
	return t
}

// Tracks returns the library in insertion order.
func (l *Library) Tracks() []Track {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Track, len(l.tracks))
	copy(out, l.tracks)
	return out
}

// Get looks a track up by id.
func (l *Library) Get(id string) (Track, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.byID[id]
	if !ok {
		return Track{}, fmt.Errorf("%w: %s", ErrUnknownTrack, id)
	}
	return l.tracks[i], nil
}

// Len returns the number of tracks.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.tracks)
}

// Random picks a track uniformly.
func (l *Library) Random(r *rand.Rand) (Track, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.tracks) == 0 {
		return Track{}, ErrEmptyTrackPool
	}
	return l.tracks[r.IntN(len(l.tracks))], nil
}

var audioExts = map[string]bool{
	".wav": true, ".aif": true, ".aiff": true, ".mp3": true,
	".ogg": true, ".oga": true, ".flac": true, ".m4a": true,
}

// LoadDir decodes every audio file directly inside dir, in name order.
// Files that fail to decode are logged and skipped. It returns the number
// of tracks added.
func (l *Library) LoadDir(dir string, dec audio.Decoder) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read library dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	n := 0
	for _, e := range entries {
		if e.IsDir() || !audioExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		path := filepath.Join(dir, e.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Library: skipping %s: %v", e.Name(), err)
			continue
		}
		buf, err := dec.Decode(raw)
		if err != nil {
			log.Printf("Library: skipping %s: %v", e.Name(), err)
			continue
		}
		title, tempo := ParseName(e.Name())
		l.Add(title, tempo, buf)
		n++
	}
	return n, nil
}

var tempoTag = regexp.MustCompile(`(?i)\s*\[(\d+(?:\.\d+)?)\s*bpm\]\s*`)

// ParseName derives a title and tempo from a file name such as
// "Night Drive [124bpm].mp3". Without a usable tag the tempo is DefaultTempo.
func ParseName(name string) (title string, tempo float64) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	tempo = DefaultTempo
	if m := tempoTag.FindStringSubmatch(base); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && beat.ValidTempo(v) {
			tempo = v
		}
		base = tempoTag.ReplaceAllString(base, " ")
	}
	title = strings.Join(strings.Fields(base), " ")
	if title == "" {
		title = name
	}
	return title, tempo
}
