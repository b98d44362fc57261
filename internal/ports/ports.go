package ports

import (
	"context"

	"github.com/t114/support-clip/internal/types"
)

// TextCompleter is the synchronous text-completion port. The response is
// free text that is expected, but never guaranteed, to contain a structured
// block. Implementations own their request timeout.
type TextCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// AudioExtractor pulls mono PCM samples out of a media file so the silence
// detector can run over them. Sample values are normalized to [-1, 1].
type AudioExtractor interface {
	ExtractSamples(ctx context.Context, mediaPath string) (samples []float64, sampleRate int, err error)
}

// Transcriber produces timed transcript segments from an audio file, for
// recordings that ship without subtitles.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath, cacheDir string) ([]types.Segment, error)
}
