// Package boundaries turns raw audio, transcript text, or both into candidate
// cut timestamps for the clip merger.
package boundaries

import (
	"math"
	"time"

	"github.com/t114/support-clip/internal/types"
)

const (
	DefaultMinSilence       = 800 * time.Millisecond
	DefaultSilenceThreshold = -40.0 // dBFS
	silenceFrame            = 10 * time.Millisecond
)

// SilenceOptions tunes the silence detector. Zero values fall back to the
// defaults above.
type SilenceOptions struct {
	// MinSilence is the shortest pause that counts as a boundary.
	MinSilence time.Duration
	// Threshold is the loudness ceiling in dBFS below which a frame is
	// considered silent.
	Threshold float64
}

func (o SilenceOptions) withDefaults() SilenceOptions {
	if o.MinSilence <= 0 {
		o.MinSilence = DefaultMinSilence
	}
	if o.Threshold >= 0 {
		o.Threshold = DefaultSilenceThreshold
	}
	return o
}

// DetectSilence scans mono samples (normalized to [-1, 1]) for pauses of at
// least MinSilence whose loudness stays under Threshold, and emits one
// boundary at the end of each pause: the end of a silence is where the next
// utterance begins. Output is strictly increasing. Empty or too-short audio
// yields no candidates, never an error.
func DetectSilence(samples []float64, sampleRate int, opts SilenceOptions) []types.Boundary {
	opts = opts.withDefaults()
	if sampleRate <= 0 || len(samples) == 0 {
		return nil
	}

	frameLen := int(float64(sampleRate) * silenceFrame.Seconds())
	if frameLen <= 0 {
		frameLen = 1
	}
	minFrames := int(opts.MinSilence / silenceFrame)
	if minFrames <= 0 {
		minFrames = 1
	}

	var out []types.Boundary
	runStart := -1
	frames := len(samples) / frameLen
	for f := 0; f <= frames; f++ {
		silent := false
		if f < frames {
			off := f * frameLen
			silent = frameDBFS(samples[off:off+frameLen]) <= opts.Threshold
		}
		switch {
		case silent && runStart < 0:
			runStart = f
		case !silent && runStart >= 0:
			if f-runStart >= minFrames {
				endSec := float64(f*frameLen) / float64(sampleRate)
				out = append(out, types.Boundary{Time: endSec, Source: types.SourceSilence})
			}
			runStart = -1
		}
	}
	return out
}

// frameDBFS is the RMS loudness of one frame relative to full scale.
func frameDBFS(frame []float64) float64 {
	if len(frame) == 0 {
		return math.Inf(-1)
	}
	var sum float64
	for _, s := range frame {
		sum += s * s
	}
	rms := math.Sqrt(sum / float64(len(frame)))
	if rms == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms)
}
