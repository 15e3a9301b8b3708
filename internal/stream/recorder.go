package stream

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/satindergrewal/twindeck/internal/audio"
)

// Recorder captures the master bus to a 16-bit stereo WAV file. It
// subscribes when created so no frame broadcast afterwards is missed.
type Recorder struct {
	broadcaster *Broadcaster
	listener    *Listener
	frames      atomic.Int64
}

// NewRecorder subscribes a recorder to b.
func NewRecorder(b *Broadcaster) *Recorder {
	return &Recorder{broadcaster: b, listener: b.Subscribe()}
}

// Seconds returns how much audio has been written so far.
func (r *Recorder) Seconds() float64 {
	return float64(r.frames.Load()) * audio.FrameDuration.Seconds()
}

// RecordFile creates path and records into it until the broadcast ends or
// ctx is cancelled.
func (r *Recorder) RecordFile(ctx context.Context, path string) error {
	f, err := os.Create(path)
	if err != nil {
		r.broadcaster.Unsubscribe(r.listener)
		return fmt.Errorf("create recording: %w", err)
	}
	defer f.Close()
	if err := r.Record(ctx, f); err != nil {
		return err
	}
	log.Printf("Recording saved: %s (%.1fs)", path, r.Seconds())
	return nil
}

// Record writes frames to w until the broadcast ends or ctx is cancelled,
// then finalizes the WAV header. Frames still queued when the broadcast
// ends are written first.
func (r *Recorder) Record(ctx context.Context, w io.WriteSeeker) error {
	defer r.broadcaster.Unsubscribe(r.listener)

	enc := wav.NewEncoder(w, audio.SampleRate, audio.BitDepth, audio.Channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: audio.Channels, SampleRate: audio.SampleRate},
		SourceBitDepth: audio.BitDepth,
	}
	write := func(frame []int16) error {
		if cap(buf.Data) < len(frame) {
			buf.Data = make([]int, len(frame))
		}
		buf.Data = buf.Data[:len(frame)]
		for i, s := range frame {
			buf.Data[i] = int(s)
		}
		if err := enc.Write(buf); err != nil {
			return fmt.Errorf("write recording: %w", err)
		}
		r.frames.Add(1)
		return nil
	}

	var err error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-r.listener.Done():
			break loop
		case frame := <-r.listener.C:
			if err = write(frame); err != nil {
				break loop
			}
		case <-r.broadcaster.Ended():
			for err == nil {
				select {
				case frame := <-r.listener.C:
					err = write(frame)
				default:
					break loop
				}
			}
			break loop
		}
	}

	if cerr := enc.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("finalize recording: %w", cerr)
	}
	return err
}
