// Package ffmpeg shells out to ffmpeg/ffprobe for audio decoding and media
// inspection. Implements ports.AudioExtractor.
package ffmpeg

import (
	"context"
	"encoding/binary"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// sampleRate for decoded audio. Silence detection works on amplitude
// envelopes, so mono 16 kHz is plenty.
const sampleRate = 16000

type Adapter struct {
	ffmpeg  string
	ffprobe string
}

func New(ffmpegPath, ffprobePath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

// ExtractSamples decodes the media file's audio track to normalized mono
// samples in [-1, 1]. Raw s16le goes over a pipe so no temp file is needed.
func (a *Adapter) ExtractSamples(ctx context.Context, mediaPath string) ([]float64, int, error) {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-v", "error",
		"-i", mediaPath,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-f", "s16le",
		"-",
	)
	var errBuf strings.Builder
	cmd.Stderr = &errBuf
	raw, err := cmd.Output()
	if err != nil {
		return nil, 0, fmt.Errorf("ffmpeg extract audio: %w\n%s", err, errBuf.String())
	}
	return decodeS16LE(raw), sampleRate, nil
}

// ExtractAudioMono16k writes the audio track as a mono 16 kHz wav file,
// the input format whisper.cpp expects.
func (a *Adapter) ExtractAudioMono16k(ctx context.Context, mediaPath, outWav string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-i", mediaPath,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-f", "wav",
		outWav,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w\n%s", err, string(b))
	}
	return nil
}

// ProbeDuration returns the container duration in seconds.
func (a *Adapter) ProbeDuration(ctx context.Context, mediaPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		mediaPath,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w\n%s", err, string(b))
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return sec, nil
}

func decodeS16LE(raw []byte) []float64 {
	n := len(raw) / 2
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(raw[2*i:]))
		out[i] = float64(v) / 32768.0
	}
	return out
}
