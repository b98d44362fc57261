package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/t114/support-clip/internal/analysis"
	"github.com/t114/support-clip/internal/domain/clips"
	"github.com/t114/support-clip/internal/session"
	"github.com/t114/support-clip/internal/types"
)

// fakeCompleter answers topic prompts with a fixed array and quality
// prompts with a fixed score object.
type fakeCompleter struct {
	topicResponse string
	err           error
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	// Quality prompts are Japanese and mention a score.
	if strings.Contains(prompt, "スコア") {
		return `{"score": 4, "reason": "盛り上がっている"}`, nil
	}
	return f.topicResponse, nil
}

type fakeAudio struct {
	samples []float64
	rate    int
	err     error
}

func (f *fakeAudio) ExtractSamples(context.Context, string) ([]float64, int, error) {
	return f.samples, f.rate, f.err
}

func newTestUsecase(f *fakeCompleter, audio *fakeAudio) (Usecase, *session.Store) {
	store := session.NewStore()
	d := Deps{
		Analyzer:  analysis.NewAnalyzer(f, zerolog.Nop()),
		Evaluator: analysis.NewEvaluator(f, zerolog.Nop()),
		Sessions:  store,
		Log:       zerolog.Nop(),
	}
	if audio != nil {
		d.Audio = audio
	}
	return New(d), store
}

func speechSegments() []types.Segment {
	return []types.Segment{
		{Start: 0, End: 30, Text: "オープニングの挨拶です。"},
		{Start: 30, End: 70, Text: "ゲームの話をしています。"},
		{Start: 70, End: 120, Text: "面白いハプニングが起きました！"},
		{Start: 120, End: 180, Text: "雑談に戻ります。"},
	}
}

func TestAnalyzeTopics(t *testing.T) {
	t.Parallel()

	f := &fakeCompleter{topicResponse: `[{"start": 10, "end": 55, "title": "ゲーム談義"}, {"start": 70, "end": 115, "title": "ハプニング"}]`}
	u, store := newTestUsecase(f, nil)

	events := []types.CommentEvent{{Timestamp: 12, Text: "www"}, {Timestamp: 80, Text: "草"}}
	got, err := u.AnalyzeTopics(context.Background(), TopicsInput{
		VideoID:  "vid-1",
		Segments: speechSegments(),
		Comments: events,
		MaxClips: 5,
		Bounds:   clips.DefaultBounds(),
	})
	if err != nil {
		t.Fatalf("AnalyzeTopics: %v", err)
	}
	if len(got.Clips) != 2 {
		t.Fatalf("expected 2 clips, got %+v", got.Clips)
	}
	b := clips.DefaultBounds()
	for _, c := range got.Clips {
		if d := c.Duration(); d < b.Min || d > b.Max {
			t.Fatalf("clip duration %v outside bounds: %+v", d, c)
		}
		if c.EvaluationScore == nil || *c.EvaluationScore != 4 {
			t.Fatalf("clip not scored: %+v", c)
		}
		if c.CommentCount == nil || *c.CommentCount != 1 {
			t.Fatalf("comment count wrong: %+v", c)
		}
	}
	if got.Session.VideoID != "vid-1" || got.Session.HasMore {
		t.Fatalf("unexpected session: %+v", got.Session)
	}
	if stored, ok := store.Get("vid-1"); !ok || stored != got.Session {
		t.Fatalf("session not persisted: %+v", stored)
	}
}

func TestAnalyzeTopics_NoSegments(t *testing.T) {
	t.Parallel()

	u, _ := newTestUsecase(&fakeCompleter{topicResponse: `[]`}, nil)
	if _, err := u.AnalyzeTopics(context.Background(), TopicsInput{VideoID: "v"}); !errors.Is(err, types.ErrNoSegments) {
		t.Fatalf("expected ErrNoSegments, got %v", err)
	}
}

func TestHybridDetect_AudioFailureFallsBackToSentences(t *testing.T) {
	t.Parallel()

	f := &fakeCompleter{topicResponse: `[]`}
	u, _ := newTestUsecase(f, &fakeAudio{err: errors.New("no audio track")})

	got, err := u.HybridDetect(context.Background(), HybridInput{
		MediaPath: "/tmp/video.mp4",
		Segments:  speechSegments(),
		MaxClips:  5,
		Bounds:    clips.DefaultBounds(),
	})
	if err != nil {
		t.Fatalf("HybridDetect: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected clips from sentence boundaries alone")
	}
	b := clips.DefaultBounds()
	for i, c := range got {
		if d := c.Duration(); d < b.Min || d > b.Max {
			t.Fatalf("clip duration %v outside bounds: %+v", d, c)
		}
		if i > 0 && c.Start < got[i-1].End {
			t.Fatalf("clips overlap: %+v", got)
		}
	}
}

func TestHybridDetect_NoSegments(t *testing.T) {
	t.Parallel()

	u, _ := newTestUsecase(&fakeCompleter{topicResponse: `[]`}, nil)
	if _, err := u.HybridDetect(context.Background(), HybridInput{}); !errors.Is(err, types.ErrNoSegments) {
		t.Fatalf("expected ErrNoSegments, got %v", err)
	}
}

func TestDensityAndStampClips(t *testing.T) {
	t.Parallel()

	u, _ := newTestUsecase(&fakeCompleter{topicResponse: `[]`}, nil)

	var events []types.CommentEvent
	for i := 0; i < 30; i++ {
		events = append(events, types.CommentEvent{Timestamp: float64(i % 120), Text: "www"})
	}
	events = append(events, types.CommentEvent{Timestamp: 130, Text: ":_kusa:草"})

	dense := u.DensityClips(events, 300)
	if len(dense) == 0 {
		t.Fatal("expected density clips")
	}
	if dense[0].CommentCount == nil {
		t.Fatalf("density clip missing count: %+v", dense[0])
	}

	stamps := u.StampClips(events, "_kusa", 300)
	if len(stamps) == 0 {
		t.Fatal("expected stamp clips")
	}
}
