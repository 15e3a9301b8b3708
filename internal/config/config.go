package config

import (
	"os"
	"strconv"
	"time"
)

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port       int
	FFmpegPath string // fallback decoder and MP3 stream encoder

	// Library
	LibraryDir string // decoded at startup; empty disables

	// Mixing behavior
	CrossfadeDuration time.Duration // automated transition length
	TransitionLead    time.Duration // margin before the transition window
	AutoPilot         bool          // start with the auto-DJ enabled
	BeatChance        float64       // per-second chance of a drum drop mid-track
	BeatDuration      time.Duration // drum drop length

	// Lookahead scheduler
	Lookahead time.Duration
	Tick      time.Duration

	// Output
	RecordPath string // WAV capture of the output bus; empty disables

	Debug bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Port:       envInt("TWINDECK_PORT", 8080),
		FFmpegPath: envStr("TWINDECK_FFMPEG", "ffmpeg"),

		LibraryDir: envStr("TWINDECK_LIBRARY_DIR", "./music"),

		CrossfadeDuration: time.Duration(envFloat("TWINDECK_CROSSFADE_DURATION", 8) * float64(time.Second)),
		TransitionLead:    time.Duration(envFloat("TWINDECK_TRANSITION_LEAD", 2) * float64(time.Second)),
		AutoPilot:         envBool("TWINDECK_AUTOPILOT", false),
		BeatChance:        envFloat("TWINDECK_BEAT_CHANCE", 0.02),
		BeatDuration:      time.Duration(envInt("TWINDECK_BEAT_DURATION", 8)) * time.Second,

		Lookahead: time.Duration(envInt("TWINDECK_LOOKAHEAD_MS", 100)) * time.Millisecond,
		Tick:      time.Duration(envInt("TWINDECK_TICK_MS", 25)) * time.Millisecond,

		RecordPath: envStr("TWINDECK_RECORD_PATH", ""),

		Debug: envBool("TWINDECK_DEBUG", false),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
