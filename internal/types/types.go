package types

import (
	"errors"
	"fmt"
	"sort"
)

// Segment is one transcribed span of speech. Times are seconds from the
// start of the video. Segments arrive ordered and non-overlapping from the
// transcription collaborator.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type Transcript struct {
	Segments []Segment `json:"segments"`
}

// Duration returns the end time of the last segment, in seconds.
func (t Transcript) Duration() float64 {
	if len(t.Segments) == 0 {
		return 0
	}
	return t.Segments[len(t.Segments)-1].End
}

// BoundarySource tells which detector produced a boundary candidate.
type BoundarySource string

const (
	SourceSilence  BoundarySource = "silence"
	SourceSentence BoundarySource = "sentence"
)

// Boundary is a candidate cut timestamp. Ephemeral: consumed by the hybrid
// detector and the merger, never persisted.
type Boundary struct {
	Time   float64
	Source BoundarySource
}

// SortBoundaries orders candidates by time, in place.
func SortBoundaries(bs []Boundary) {
	sort.Slice(bs, func(i, j int) bool { return bs[i].Time < bs[j].Time })
}

// Clip is a candidate output time range with metadata. Quality and comment
// fields stay nil until the evaluator / comment counter fill them in.
type Clip struct {
	ID          string  `json:"id,omitempty"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Reason      string  `json:"reason,omitempty"`

	EvaluationScore  *int     `json:"evaluation_score,omitempty"`
	EvaluationReason string   `json:"evaluation_reason,omitempty"`
	CommentCount     *int     `json:"comment_count,omitempty"`
	CommentsPerMin   *float64 `json:"comments_per_minute,omitempty"`
}

// NewClip builds a clip, rejecting impossible time ranges early.
func NewClip(start, end float64, title string) (Clip, error) {
	if start < 0 {
		return Clip{}, fmt.Errorf("clip start %.2f is negative", start)
	}
	if end <= start {
		return Clip{}, fmt.Errorf("clip end %.2f must be after start %.2f", end, start)
	}
	return Clip{Start: start, End: end, Title: title}, nil
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 { return c.End - c.Start }

// SortClips orders clips by start time, in place.
func SortClips(cs []Clip) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Start < cs[j].Start })
}

// CommentEvent is one chat/comment message, timestamped relative to the
// video start. Supplied read-only by an external collaborator.
type CommentEvent struct {
	Timestamp float64 `json:"timestamp"`
	Text      string  `json:"text"`
}

// StampFrequency ranks one chat stamp (emoji shortcut) by how often it
// appears across the whole stream.
type StampFrequency struct {
	Shortcut string `json:"shortcut"`
	Count    int    `json:"count"`
}

// Session is the resumable-analysis cursor for one video. Callers persist it
// between paginated analysis calls; the analyzer itself keeps no cross-call
// state.
type Session struct {
	VideoID          string `json:"video_id"`
	TotalSegments    int    `json:"total_segments"`
	AnalyzedSegments int    `json:"analyzed_segments"`
	NextOffset       int    `json:"next_offset"`
	HasMore          bool   `json:"has_more"`
}

var ErrNoSegments = errors.New("transcript has no segments")
