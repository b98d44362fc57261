package boundaries

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"github.com/t114/support-clip/internal/types"
)

// HybridConfig drives the combined silence + sentence boundary pass.
type HybridConfig struct {
	MaxClips  int
	MinDur    float64 // seconds
	MaxDur    float64 // seconds
	StartTime float64 // segments before this are skipped
}

// matchWindow is how close (seconds) a boundary must be to a detector hit to
// inherit its score.
const matchWindow = 0.5

// Hybrid combines silence and sentence boundary candidates over the segments
// after cfg.StartTime, thins them to roughly MaxClips+1 cut points preferring
// boundaries both detectors agree on, and returns the spans between
// consecutive cut points as raw clips. Spans longer than MaxDur are capped,
// spans shorter than MinDur are skipped; the merger owns final invariants.
func Hybrid(segments []types.Segment, silence, sentence []types.Boundary, cfg HybridConfig, logger zerolog.Logger) []types.Clip {
	if cfg.StartTime > 0 {
		var kept []types.Segment
		for _, s := range segments {
			if s.Start >= cfg.StartTime {
				kept = append(kept, s)
			}
		}
		segments = kept
	}
	if len(segments) == 0 {
		return nil
	}
	firstTime := segments[0].Start
	lastTime := segments[len(segments)-1].End

	all := make([]types.Boundary, 0, len(silence)+len(sentence))
	all = append(all, silence...)
	all = append(all, sentence...)
	types.SortBoundaries(all)

	logger.Debug().Int("silence", len(silence)).Int("sentence", len(sentence)).
		Float64("first", firstTime).Float64("last", lastTime).
		Msg("combining boundary candidates")

	// Thin out candidates: always anchor at the first segment, then keep
	// boundaries at least MinDur apart within the segment range.
	cuts := []float64{firstTime}
	for _, b := range all {
		if b.Time < firstTime || b.Time > lastTime {
			continue
		}
		if b.Time-cuts[len(cuts)-1] >= cfg.MinDur {
			cuts = append(cuts, b.Time)
		}
	}
	if cuts[len(cuts)-1] < lastTime-cfg.MinDur {
		cuts = append(cuts, lastTime)
	}

	target := cfg.MaxClips + 1
	if cfg.MaxClips > 0 && len(cuts) > target {
		cuts = selectByScore(cuts, silence, sentence, target)
	}

	var clips []types.Clip
	for i := 0; i+1 < len(cuts); i++ {
		start := cuts[i]
		end := cuts[i+1]
		if cfg.MaxDur > 0 && end-start > cfg.MaxDur {
			end = start + cfg.MaxDur
		}
		if end-start < cfg.MinDur {
			continue
		}
		clips = append(clips, types.Clip{
			Start:  start,
			End:    end,
			Title:  fmt.Sprintf("区間 %d", i+1),
			Reason: fmt.Sprintf("%.1f秒のクリップ（ハイブリッド検出）", end-start),
		})
	}
	logger.Debug().Int("cuts", len(cuts)).Int("clips", len(clips)).Msg("hybrid detection done")
	return clips
}

// selectByScore keeps the first and last cut points and the interior ones
// with the highest detector agreement: a silence hit weighs 2, a sentence
// hit 1.
func selectByScore(cuts []float64, silence, sentence []types.Boundary, target int) []float64 {
	type scored struct {
		t     float64
		score int
	}
	interior := make([]scored, 0, len(cuts)-2)
	for _, c := range cuts[1 : len(cuts)-1] {
		s := 0
		if nearAny(c, silence) {
			s += 2
		}
		if nearAny(c, sentence) {
			s++
		}
		interior = append(interior, scored{t: c, score: s})
	}
	sort.SliceStable(interior, func(i, j int) bool { return interior[i].score > interior[j].score })

	keep := target - 2
	if keep < 0 {
		keep = 0
	}
	if keep > len(interior) {
		keep = len(interior)
	}
	out := []float64{cuts[0]}
	for _, sc := range interior[:keep] {
		out = append(out, sc.t)
	}
	out = append(out, cuts[len(cuts)-1])
	sort.Float64s(out)
	return out
}

func nearAny(t float64, bs []types.Boundary) bool {
	for _, b := range bs {
		if math.Abs(t-b.Time) < matchWindow {
			return true
		}
	}
	return false
}
