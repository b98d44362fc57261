// Package usecase wires the domain stages into the engine's operations.
package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/t114/support-clip/internal/analysis"
	"github.com/t114/support-clip/internal/domain/boundaries"
	"github.com/t114/support-clip/internal/domain/clips"
	"github.com/t114/support-clip/internal/domain/comments"
	"github.com/t114/support-clip/internal/ports"
	"github.com/t114/support-clip/internal/session"
	"github.com/t114/support-clip/internal/transcript"
	"github.com/t114/support-clip/internal/types"
)

type Deps struct {
	Analyzer  *analysis.Analyzer
	Evaluator *analysis.Evaluator
	Audio     ports.AudioExtractor
	Sessions  *session.Store
	Log       zerolog.Logger
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase { return Usecase{d: d} }

// TopicsInput is one paginated window of LLM topic analysis.
type TopicsInput struct {
	VideoID       string
	Segments      []types.Segment
	Comments      []types.CommentEvent
	VideoDuration float64
	Offset        int
	MaxClips      int
	StartTime     float64
	Bounds        clips.Bounds
}

// TopicsResult carries the window's finalized clips and the updated cursor.
type TopicsResult struct {
	Clips   []types.Clip
	Session types.Session
}

// AnalyzeTopics runs one analysis window: model call, duration enforcement,
// comment annotation, quality scoring, cursor update. The session cursor
// only advances when the window was actually consumed.
func (u Usecase) AnalyzeTopics(ctx context.Context, in TopicsInput) (TopicsResult, error) {
	if len(in.Segments) == 0 {
		return TopicsResult{}, fmt.Errorf("analyze topics: %w", types.ErrNoSegments)
	}

	res := u.d.Analyzer.AnalyzeWindow(ctx, in.Segments, analysis.Request{
		Offset:    in.Offset,
		MaxClips:  in.MaxClips,
		StartTime: in.StartTime,
	})

	dur := in.VideoDuration
	if dur <= 0 {
		dur = types.Transcript{Segments: in.Segments}.Duration()
	}
	merged := clips.Merge(res.Clips, in.Bounds, dur, nil)
	merged = u.annotate(ctx, merged, in.Segments, in.Comments)

	sess := u.d.Sessions.Advance(in.VideoID,
		res.TotalSegments, res.AnalyzedSegments, res.NextOffset, res.HasMore)

	u.d.Log.Info().Str("video_id", in.VideoID).
		Int("clips", len(merged)).Int("next_offset", sess.NextOffset).Bool("has_more", sess.HasMore).
		Msg("analysis window done")
	return TopicsResult{Clips: merged, Session: sess}, nil
}

// HybridInput detects clips from audio silence and subtitle sentence breaks
// without any model call for the boundaries themselves.
type HybridInput struct {
	MediaPath     string
	Segments      []types.Segment
	Comments      []types.CommentEvent
	VideoDuration float64
	MaxClips      int
	StartTime     float64
	Bounds        clips.Bounds
	Silence       boundaries.SilenceOptions
}

// HybridDetect combines both detectors. A failed audio extraction degrades
// to sentence boundaries only; the transcript is required.
func (u Usecase) HybridDetect(ctx context.Context, in HybridInput) ([]types.Clip, error) {
	if len(in.Segments) == 0 {
		return nil, fmt.Errorf("hybrid detect: %w", types.ErrNoSegments)
	}

	var silence []types.Boundary
	if in.MediaPath != "" && u.d.Audio != nil {
		samples, rate, err := u.d.Audio.ExtractSamples(ctx, in.MediaPath)
		if err != nil {
			u.d.Log.Warn().Err(err).Str("media", in.MediaPath).
				Msg("audio extraction failed, using sentence boundaries only")
		} else {
			silence = boundaries.DetectSilence(samples, rate, in.Silence)
		}
	}
	sentence := boundaries.DetectSentences(in.Segments, boundaries.DefaultRules())

	raw := boundaries.Hybrid(in.Segments, silence, sentence, boundaries.HybridConfig{
		MaxClips:  in.MaxClips,
		MinDur:    in.Bounds.Min,
		MaxDur:    in.Bounds.Max,
		StartTime: in.StartTime,
	}, u.d.Log)

	dur := in.VideoDuration
	if dur <= 0 {
		dur = types.Transcript{Segments: in.Segments}.Duration()
	}
	cuts := make([]types.Boundary, 0, len(silence)+len(sentence))
	cuts = append(cuts, silence...)
	cuts = append(cuts, sentence...)
	types.SortBoundaries(cuts)

	merged := clips.Merge(raw, in.Bounds, dur, cuts)
	return u.annotate(ctx, merged, in.Segments, in.Comments), nil
}

// DensityClips ranks the comment-busiest minutes of the stream.
func (u Usecase) DensityClips(events []types.CommentEvent, videoDuration float64) []types.Clip {
	return comments.DensityClips(events, videoDuration, comments.DefaultClipDuration, comments.DefaultTopN)
}

// StampClips ranks the minutes busiest with one particular stamp.
func (u Usecase) StampClips(events []types.CommentEvent, shortcut string, videoDuration float64) []types.Clip {
	return comments.StampClips(events, shortcut, videoDuration, comments.DefaultClipDuration, comments.DefaultTopN)
}

func (u Usecase) annotate(ctx context.Context, cs []types.Clip, segments []types.Segment, events []types.CommentEvent) []types.Clip {
	if len(cs) == 0 {
		return cs
	}
	if len(events) > 0 {
		cs = comments.CountInClips(cs, events)
	}
	if u.d.Evaluator != nil {
		cs = u.d.Evaluator.EvaluateAll(ctx, cs, func(c types.Clip) string {
			return transcript.TextInRange(segments, c.Start, c.End)
		})
	}
	return cs
}
