package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// FFmpegDecoder runs FFmpeg to decode anything the native decoders do not
// recognise. Output is requested directly as 48kHz interleaved stereo, so no
// resampling is needed afterwards.
type FFmpegDecoder struct {
	// Path to the ffmpeg binary. Empty means "ffmpeg" on $PATH.
	Path string
}

func (d FFmpegDecoder) Decode(raw []byte) (*Buffer, error) {
	bin := d.Path
	if bin == "" {
		bin = "ffmpeg"
	}

	cmd := exec.CommandContext(context.Background(), bin,
		"-i", "pipe:0",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", "48000",
		"-ac", "2",
		"-loglevel", "error",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(raw)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode: %w", err)
	}

	pcm := BytesToSamples(out)
	samples := make([]float32, len(pcm))
	for i, s := range pcm {
		samples[i] = float32(s) / 32768
	}
	return NewBuffer(samples), nil
}
