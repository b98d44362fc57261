// Package analysis drives the external language model: windowed topic
// detection over long transcripts and per-clip quality scoring.
package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"github.com/t114/support-clip/internal/ports"
	"github.com/t114/support-clip/internal/resilience"
	"github.com/t114/support-clip/internal/types"
)

const (
	// DefaultWindowSize is how many segments one paginated call consumes.
	DefaultWindowSize = 200

	// maxPromptSegments caps the transcript lines in one prompt, keeping it
	// inside the model's practical context budget. A window configured
	// larger than this gets thinned by time before prompting.
	maxPromptSegments = 200

	DefaultMaxClips = 5
)

// Request is one paginated topic-analysis call.
type Request struct {
	// Offset is the segment index to resume from.
	Offset int
	// MaxClips caps the clips asked of the model for this window.
	MaxClips int
	// StartTime excludes segments before this time (skip intros).
	StartTime float64
}

// Result is the window's outcome plus the cursor the caller persists.
// Concatenation-safe: successive calls with increasing Offset produce clips
// whose starts keep increasing.
type Result struct {
	Clips            []types.Clip
	TotalSegments    int
	AnalyzedSegments int
	NextOffset       int
	HasMore          bool
}

// Analyzer performs windowed topic detection. It keeps no cross-call state;
// callers persist the returned cursor.
type Analyzer struct {
	completer  ports.TextCompleter
	windowSize int
	retry      resilience.Config
	log        zerolog.Logger
}

func NewAnalyzer(completer ports.TextCompleter, logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		completer:  completer,
		windowSize: DefaultWindowSize,
		retry:      resilience.DefaultConfig(),
		log:        logger,
	}
}

// WithWindowSize overrides the per-call segment budget.
func (a *Analyzer) WithWindowSize(n int) *Analyzer {
	if n > 0 {
		a.windowSize = n
	}
	return a
}

// AnalyzeWindow runs one window of analysis starting at req.Offset. Model
// transport failure (after bounded retries) and unparsable output both
// degrade to zero clips; in the transport case the cursor stays put so the
// caller can retry the same window, in the parse case the window counts as
// consumed.
func (a *Analyzer) AnalyzeWindow(ctx context.Context, segments []types.Segment, req Request) Result {
	total := len(segments)
	if total == 0 {
		return Result{}
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return Result{TotalSegments: total, AnalyzedSegments: total, NextOffset: total}
	}
	maxClips := req.MaxClips
	if maxClips <= 0 {
		maxClips = DefaultMaxClips
	}

	endIndex := offset + a.windowSize
	if endIndex > total {
		endIndex = total
	}
	window := segments[offset:endIndex]
	consumed := Result{
		TotalSegments:    total,
		AnalyzedSegments: endIndex,
		NextOffset:       endIndex,
		HasMore:          endIndex < total,
	}

	if req.StartTime > 0 {
		var kept []types.Segment
		for _, s := range window {
			if s.Start >= req.StartTime {
				kept = append(kept, s)
			}
		}
		window = kept
	}
	if len(window) == 0 {
		a.log.Debug().Int("offset", offset).Float64("start_time", req.StartTime).
			Msg("window empty after start_time filter")
		return consumed
	}

	lo := window[0].Start
	hi := window[len(window)-1].End
	prompt := buildTopicPrompt(sampleEvenly(window, maxPromptSegments), lo, hi, maxClips)

	var content string
	err := resilience.Retry(ctx, a.retry, func() error {
		var callErr error
		content, callErr = a.completer.Complete(ctx, prompt)
		return callErr
	})
	if err != nil {
		// Leave the cursor on this window so a later call can retry it.
		a.log.Warn().Err(err).Int("offset", offset).Msg("model call failed, window kept for retry")
		return Result{
			TotalSegments:    total,
			AnalyzedSegments: offset,
			NextOffset:       offset,
			HasMore:          true,
		}
	}

	clips := parseClips(content, lo, hi)
	if len(clips) > maxClips {
		clips = clips[:maxClips]
	}
	if len(clips) == 0 {
		a.log.Warn().Int("offset", offset).Msg("no clips parsed from model response")
	}
	consumed.Clips = clips
	return consumed
}

// buildTopicPrompt lays the window out as timestamped lines and pins the
// response format down hard; small local models drift otherwise.
func buildTopicPrompt(window []types.Segment, lo, hi float64, maxClips int) string {
	var b strings.Builder
	for _, s := range window {
		fmt.Fprintf(&b, "[%.2f-%.2f] %s\n", s.Start, s.End, s.Text)
	}
	return fmt.Sprintf(`You are a strict JSON array generator. Identify up to %d self-contained clips where a topic begins and ends within this transcript window (%.1fs - %.1fs).

REQUIRED OUTPUT - respond with ONLY a JSON array, starting with [ and ending with ]:
[
  {"start": 50, "end": 95, "title": "topic", "description": "what happens", "reason": "why it works as a clip"}
]

RULES:
1. "start" and "end" are numbers in seconds, %.1f <= start < end <= %.1f
2. Clips must not overlap and must follow transcript order
3. No explanations, no markdown, ONLY the array

Transcript:
%s
Your JSON array (start with [):`, maxClips, lo, hi, lo, hi, b.String())
}

// sampleEvenly thins an oversized window by time so the beginning, middle,
// and end all stay represented in the prompt.
func sampleEvenly(window []types.Segment, maxSegments int) []types.Segment {
	if len(window) <= maxSegments {
		return window
	}
	first := window[0].Start
	span := window[len(window)-1].End - first
	out := make([]types.Segment, 0, maxSegments)
	for i := 0; i < maxSegments; i++ {
		target := first + span*float64(i)/float64(maxSegments)
		best := 0
		bestDist := math.Inf(1)
		for j, s := range window {
			if d := math.Abs(s.Start - target); d < bestDist {
				best, bestDist = j, d
			}
		}
		if len(out) == 0 || out[len(out)-1] != window[best] {
			out = append(out, window[best])
		}
	}
	return out
}
