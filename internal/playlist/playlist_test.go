package playlist

import (
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/satindergrewal/twindeck/internal/audio"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		name  string
		title string
		tempo float64
	}{
		{"Night Drive [124bpm].mp3", "Night Drive", 124},
		{"[90 BPM] intro.wav", "intro", 90},
		{"deep_cut [122.5bpm].ogg", "deep_cut", 122.5},
		{"plain.flac", "plain", DefaultTempo},
		{"zero [0bpm].wav", "zero", DefaultTempo},
		{"[128bpm].wav", "[128bpm].wav", 128},
		{"x [900000000000bpm].wav", "x", DefaultTempo},
		{"edge [999bpm].wav", "edge", 999},
		{"over [1000bpm].wav", "over", DefaultTempo},
	}
	for _, tt := range tests {
		title, tempo := ParseName(tt.name)
		if title != tt.title || tempo != tt.tempo {
			t.Errorf("ParseName(%q) = %q, %v; want %q, %v", tt.name, title, tempo, tt.title, tt.tempo)
		}
	}
}

func TestAddAndGet(t *testing.T) {
	l := New()
	tr := l.Add("one", 0, audio.Silence(3))
	if tr.ID == "" {
		t.Fatal("Add should assign an id")
	}
	if tr.Tempo != DefaultTempo || tr.Length != 3 {
		t.Errorf("track = %+v", tr)
	}

	got, err := l.Get(tr.ID)
	if err != nil || got.Title != "one" {
		t.Errorf("Get = %+v, %v", got, err)
	}
	if _, err := l.Get("nope"); !errors.Is(err, ErrUnknownTrack) {
		t.Errorf("Get(nope) err = %v, want ErrUnknownTrack", err)
	}

	l.Add("two", 100, audio.Silence(1))
	tracks := l.Tracks()
	if len(tracks) != 2 || tracks[0].Title != "one" || tracks[1].Title != "two" {
		t.Errorf("Tracks() = %+v", tracks)
	}
	if tracks[0].ID == tracks[1].ID {
		t.Error("ids should be unique")
	}
}

func TestAddClampsTempo(t *testing.T) {
	l := New()
	for _, tempo := range []float64{-1, 1e12, 1000} {
		if tr := l.Add("t", tempo, audio.Silence(1)); tr.Tempo != DefaultTempo {
			t.Errorf("Add(tempo %v) kept %v, want DefaultTempo", tempo, tr.Tempo)
		}
	}
}

func TestRandomEmpty(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 1))
	if _, err := New().Random(r); !errors.Is(err, ErrEmptyTrackPool) {
		t.Errorf("err = %v, want ErrEmptyTrackPool", err)
	}
}

func TestRandomCoversLibrary(t *testing.T) {
	l := New()
	for _, name := range []string{"a", "b", "c"} {
		l.Add(name, 120, audio.Silence(1))
	}
	r := rand.New(rand.NewPCG(7, 7))
	seen := map[string]int{}
	for range 300 {
		tr, err := l.Random(r)
		if err != nil {
			t.Fatal(err)
		}
		seen[tr.Title]++
	}
	for _, name := range []string{"a", "b", "c"} {
		if seen[name] < 50 {
			t.Errorf("track %q picked %d/300 times", name, seen[name])
		}
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"b [100bpm].wav": "good",
		"a.mp3":          "good",
		"broken.ogg":     "bad",
		"notes.txt":      "good",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.wav"), 0o755); err != nil {
		t.Fatal(err)
	}

	dec := audio.DecoderFunc(func(raw []byte) (*audio.Buffer, error) {
		if string(raw) != "good" {
			return nil, audio.ErrDecode
		}
		return audio.Silence(2), nil
	})

	l := New()
	n, err := l.LoadDir(dir, dec)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if n != 2 {
		t.Fatalf("loaded %d tracks, want 2", n)
	}
	tracks := l.Tracks()
	if tracks[0].Title != "a" || tracks[1].Title != "b" || tracks[1].Tempo != 100 {
		t.Errorf("tracks = %+v", tracks)
	}
}

func TestLoadDirMissing(t *testing.T) {
	if _, err := New().LoadDir(filepath.Join(t.TempDir(), "missing"), audio.DefaultRegistry()); err == nil {
		t.Error("LoadDir on a missing directory should fail")
	}
}
