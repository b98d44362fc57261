// Package pipeline assembles adapters and runs one detection job end to end.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/t114/support-clip/internal/analysis"
	"github.com/t114/support-clip/internal/config"
	"github.com/t114/support-clip/internal/domain/clips"
	"github.com/t114/support-clip/internal/domain/comments"
	"github.com/t114/support-clip/internal/logging"
	"github.com/t114/support-clip/internal/ports"
	"github.com/t114/support-clip/internal/ports/adapters/ffmpeg"
	"github.com/t114/support-clip/internal/ports/adapters/ollama"
	"github.com/t114/support-clip/internal/ports/adapters/openrouter"
	"github.com/t114/support-clip/internal/ports/adapters/whispercpp"
	"github.com/t114/support-clip/internal/session"
	"github.com/t114/support-clip/internal/transcript"
	"github.com/t114/support-clip/internal/types"
	"github.com/t114/support-clip/internal/usecase"
)

type Mode string

const (
	ModeAnalyze Mode = "analyze"
	ModeHybrid  Mode = "hybrid"
	ModeDensity Mode = "density"
	ModeStamps  Mode = "stamps"
)

type Config struct {
	Mode           Mode
	TranscriptPath string
	MediaPath      string
	CommentsPath   string
	OutDir         string

	StartTime float64
	Stamp     string

	Engine config.Config
	Log    zerolog.Logger
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeAnalyze, ModeHybrid:
		if c.TranscriptPath == "" && c.MediaPath == "" {
			return errors.New("a transcript or media path is required")
		}
		if c.TranscriptPath != "" {
			if _, err := os.Stat(c.TranscriptPath); err != nil {
				return fmt.Errorf("stat transcript: %w", err)
			}
		}
	case ModeDensity:
		if c.CommentsPath == "" {
			return errors.New("comments path is required")
		}
	case ModeStamps:
		if c.CommentsPath == "" {
			return errors.New("comments path is required")
		}
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	return c.Engine.Validate()
}

// Manifest is the job's JSON output.
type Manifest struct {
	RunID       string                 `json:"run_id"`
	Mode        Mode                   `json:"mode"`
	Source      string                 `json:"source"`
	GeneratedAt time.Time              `json:"generated_at"`
	Clips       []types.Clip           `json:"clips"`
	Session     *types.Session         `json:"session,omitempty"`
	Stamps      []types.StampFrequency `json:"stamps,omitempty"`
}

func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logging.WithComponent(cfg.Log, "pipeline")

	completer := newCompleter(cfg.Engine)
	audio := ffmpeg.New(cfg.Engine.FFmpegPath, cfg.Engine.FFprobePath)
	uc := usecase.New(usecase.Deps{
		Analyzer:  analysis.NewAnalyzer(completer, log).WithWindowSize(cfg.Engine.WindowSize),
		Evaluator: analysis.NewEvaluator(completer, log),
		Audio:     audio,
		Sessions:  session.NewStore(),
		Log:       log,
	})

	var events []types.CommentEvent
	if cfg.CommentsPath != "" {
		events = comments.Load(cfg.CommentsPath, log)
		log.Info().Int("events", len(events)).Str("path", cfg.CommentsPath).Msg("comments loaded")
	}

	manifest := Manifest{
		RunID:       uuid.NewString(),
		Mode:        cfg.Mode,
		GeneratedAt: time.Now().UTC(),
	}

	bounds := clips.Bounds{Min: cfg.Engine.MinClipDuration, Max: cfg.Engine.MaxClipDuration}

	switch cfg.Mode {
	case ModeAnalyze:
		manifest.Source = sourcePath(cfg)
		segments, dur, err := loadTranscript(ctx, cfg, audio, log)
		if err != nil {
			return err
		}
		cs, sess, err := analyzeAll(ctx, uc, cfg, segments, events, dur, bounds, log)
		if err != nil {
			return err
		}
		manifest.Clips, manifest.Session = cs, &sess

	case ModeHybrid:
		manifest.Source = sourcePath(cfg)
		segments, dur, err := loadTranscript(ctx, cfg, audio, log)
		if err != nil {
			return err
		}
		cs, err := uc.HybridDetect(ctx, usecase.HybridInput{
			MediaPath:     cfg.MediaPath,
			Segments:      segments,
			Comments:      events,
			VideoDuration: dur,
			MaxClips:      cfg.Engine.MaxClips,
			StartTime:     cfg.StartTime,
			Bounds:        bounds,
		})
		if err != nil {
			return err
		}
		manifest.Clips = cs

	case ModeDensity:
		manifest.Source = cfg.CommentsPath
		manifest.Clips = uc.DensityClips(events, commentsDuration(events))

	case ModeStamps:
		manifest.Source = cfg.CommentsPath
		manifest.Stamps = comments.StampRanking(events)
		if cfg.Stamp != "" {
			manifest.Clips = uc.StampClips(events, cfg.Stamp, commentsDuration(events))
		}
	}

	for i := range manifest.Clips {
		manifest.Clips[i].ID = uuid.NewString()
	}

	return writeManifest(cfg, manifest, log)
}

// analyzeAll pages through the transcript until the cursor is done. A window
// that fails to advance twice in a row stops the paging instead of spinning;
// clips collected from earlier windows and the resumable cursor are kept.
func analyzeAll(
	ctx context.Context,
	uc usecase.Usecase,
	cfg Config,
	segments []types.Segment,
	events []types.CommentEvent,
	dur float64,
	bounds clips.Bounds,
	log zerolog.Logger,
) ([]types.Clip, types.Session, error) {
	videoID := videoIDFromPath(sourcePath(cfg))

	var (
		all    []types.Clip
		sess   types.Session
		offset int
		stalls int
	)
	for {
		res, err := uc.AnalyzeTopics(ctx, usecase.TopicsInput{
			VideoID:       videoID,
			Segments:      segments,
			Comments:      events,
			VideoDuration: dur,
			Offset:        offset,
			MaxClips:      cfg.Engine.MaxClips,
			StartTime:     cfg.StartTime,
			Bounds:        bounds,
		})
		if err != nil {
			return nil, types.Session{}, err
		}
		all = append(all, res.Clips...)
		sess = res.Session

		if !sess.HasMore {
			break
		}
		if sess.NextOffset <= offset {
			stalls++
			if stalls >= 2 {
				// The model is not coming back this run. The cursor stays
				// on this window so a later run can resume it.
				log.Warn().Str("video_id", videoID).Int("offset", offset).
					Msg("analysis stalled, stopping with partial results")
				break
			}
			continue
		}
		stalls = 0
		offset = sess.NextOffset
		log.Info().Str("video_id", videoID).Int("offset", offset).
			Int("total", sess.TotalSegments).Msg("continuing with next window")
	}

	// Windows are merged independently; one more pass settles clips that
	// straddle a window seam.
	all = clips.Merge(all, bounds, dur, nil)
	return all, sess, nil
}

func newCompleter(eng config.Config) ports.TextCompleter {
	if eng.TextBackend == "openrouter" {
		return openrouter.New(eng.OpenRouterAPIKey, eng.OpenRouterModel, eng.OpenRouterBaseURL)
	}
	return ollama.New(eng.OllamaHost, eng.OllamaModel)
}

// loadTranscript reads the subtitle file, or transcribes the media with
// whisper.cpp when no subtitles were provided.
func loadTranscript(ctx context.Context, cfg Config, audio *ffmpeg.Adapter, log zerolog.Logger) ([]types.Segment, float64, error) {
	var segments []types.Segment
	var err error
	if cfg.TranscriptPath != "" {
		segments, err = transcript.Load(cfg.TranscriptPath)
	} else {
		segments, err = transcribeMedia(ctx, cfg, audio, log)
	}
	if err != nil {
		return nil, 0, err
	}
	if len(segments) == 0 {
		return nil, 0, types.ErrNoSegments
	}

	dur := types.Transcript{Segments: segments}.Duration()
	if cfg.MediaPath != "" {
		if probed, err := audio.ProbeDuration(ctx, cfg.MediaPath); err == nil && probed > dur {
			dur = probed
		} else if err != nil {
			log.Warn().Err(err).Str("media", cfg.MediaPath).Msg("probe failed, using transcript duration")
		}
	}
	log.Info().Int("segments", len(segments)).Float64("duration", dur).Msg("transcript loaded")
	return segments, dur, nil
}

func transcribeMedia(ctx context.Context, cfg Config, audio *ffmpeg.Adapter, log zerolog.Logger) ([]types.Segment, error) {
	cacheDir, err := os.MkdirTemp("", "support-clip-asr-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(cacheDir)

	wav := filepath.Join(cacheDir, "audio.wav")
	if err := audio.ExtractAudioMono16k(ctx, cfg.MediaPath, wav); err != nil {
		return nil, err
	}

	asr := whispercpp.New(cfg.Engine.WhisperBin, cfg.Engine.WhisperModel)
	log.Info().Str("media", cfg.MediaPath).Msg("no subtitles, transcribing audio")
	return asr.Transcribe(ctx, wav, cacheDir)
}

func writeManifest(cfg Config, m Manifest, log zerolog.Logger) error {
	if m.Clips == nil {
		m.Clips = []types.Clip{}
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	outDir := cfg.OutDir
	if outDir == "" {
		outDir = "out"
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(outDir, fmt.Sprintf("%s-%s.json", m.Mode, m.RunID[:8]))
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return err
	}
	log.Info().Int("clips", len(m.Clips)).Str("path", path).Msg("manifest written")
	return nil
}

func sourcePath(cfg Config) string {
	if cfg.TranscriptPath != "" {
		return cfg.TranscriptPath
	}
	return cfg.MediaPath
}

// videoIDFromPath keys the session on the transcript's base name, so
// "stream.ja.vtt" and "stream.live_chat.json" share the "stream" ID.
func videoIDFromPath(p string) string {
	name := filepath.Base(p)
	if i := strings.Index(name, "."); i > 0 {
		name = name[:i]
	}
	if name == "" {
		return "video"
	}
	return name
}

func commentsDuration(events []types.CommentEvent) float64 {
	var max float64
	for _, e := range events {
		if e.Timestamp > max {
			max = e.Timestamp
		}
	}
	return max + 1
}

var _ ports.TextCompleter = (*ollama.Adapter)(nil)
var _ ports.TextCompleter = (*openrouter.Adapter)(nil)
var _ ports.AudioExtractor = (*ffmpeg.Adapter)(nil)
var _ ports.Transcriber = (*whispercpp.Adapter)(nil)
