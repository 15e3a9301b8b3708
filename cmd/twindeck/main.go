package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/satindergrewal/twindeck/internal/audio"
	"github.com/satindergrewal/twindeck/internal/autodj"
	"github.com/satindergrewal/twindeck/internal/config"
	"github.com/satindergrewal/twindeck/internal/console"
	"github.com/satindergrewal/twindeck/internal/playlist"
	"github.com/satindergrewal/twindeck/internal/stream"
)

func main() {
	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Println("twindeck starting up...")

	// Decoders: native formats first, FFmpeg for the rest
	decoder := audio.DefaultRegistry()
	decoder.SetFallback(audio.FFmpegDecoder{Path: cfg.FFmpegPath})

	lib := playlist.New()
	if cfg.LibraryDir != "" {
		n, err := lib.LoadDir(cfg.LibraryDir, decoder)
		if err != nil {
			log.Printf("Library not loaded: %v", err)
		} else {
			log.Printf("Library: %d tracks from %s", n, cfg.LibraryDir)
		}
	}

	mixer := console.New(lib, console.Options{
		CrossfadeDuration: cfg.CrossfadeDuration.Seconds(),
		Tick:              cfg.Tick.Seconds(),
		Lookahead:         cfg.Lookahead.Seconds(),
		Director: autodj.DirectorConfig{
			Interval:     1,
			Lead:         cfg.TransitionLead.Seconds(),
			BeatChance:   cfg.BeatChance,
			BeatDuration: cfg.BeatDuration.Seconds(),
			Debug:        cfg.Debug,
		},
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		mixer.Run(ctx)
	}()

	// Broadcaster: fan-out the master bus to all listeners
	broadcaster := stream.NewBroadcaster(0)

	if cfg.RecordPath != "" {
		rec := stream.NewRecorder(broadcaster)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rec.RecordFile(ctx, cfg.RecordPath); err != nil {
				log.Printf("Recorder: %v", err)
			}
		}()
		log.Printf("Recording master bus to %s", cfg.RecordPath)
	}
	go broadcaster.Run(ctx, mixer.Frames())

	if cfg.AutoPilot {
		if err := mixer.EnableAutoPilot(ctx); err != nil {
			log.Printf("Auto-pilot not enabled: %v", err)
		}
	}

	webrtcHandler := stream.NewWebRTCHandler(broadcaster, "twindeck")

	mux := http.NewServeMux()
	mux.Handle("/stream", stream.NewHTTPHandler(broadcaster, cfg.FFmpegPath, "twindeck"))
	mux.Handle("/offer", webrtcHandler)

	handlers := &api{
		console: mixer,
		library: lib,
		decoder: decoder,
		listeners: func() int {
			return broadcaster.ListenerCount() + webrtcHandler.PeerCount()
		},
		sent: broadcaster.Sent,
	}
	handlers.routes(mux)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		server.Close()
	}()

	log.Printf("twindeck live on %s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("HTTP server error: %v", err)
	}
	wg.Wait()
}
