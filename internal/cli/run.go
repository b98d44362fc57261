package cli

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/t114/support-clip/internal/config"
	"github.com/t114/support-clip/internal/logging"
	"github.com/t114/support-clip/internal/pipeline"
)

// Long VODs with many windows still finish well inside this.
const runTimeout = 3 * time.Hour

func runAnalyze(cmd *cobra.Command, transcriptPath string) error {
	return runDetection(cmd, pipeline.ModeAnalyze, transcriptPath)
}

func runHybrid(cmd *cobra.Command, transcriptPath string) error {
	return runDetection(cmd, pipeline.ModeHybrid, transcriptPath)
}

func runDetection(cmd *cobra.Command, mode pipeline.Mode, inputPath string) error {
	cfg, err := baseConfig(cmd, mode)
	if err != nil {
		return err
	}
	input, err := filepath.Abs(inputPath)
	if err != nil {
		return err
	}
	// A .vtt input is the transcript; anything else is media, transcribed
	// with whisper.cpp when no subtitle file accompanies it.
	if strings.EqualFold(filepath.Ext(input), ".vtt") {
		cfg.TranscriptPath = input
	} else {
		cfg.MediaPath = input
	}
	if media, _ := cmd.Flags().GetString("media"); media != "" {
		cfg.MediaPath = media
	}
	cfg.CommentsPath, _ = cmd.Flags().GetString("comments")
	cfg.StartTime, _ = cmd.Flags().GetFloat64("start")

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	return pipeline.Run(ctx, cfg)
}

func runDensity(cmd *cobra.Command, commentsPath string) error {
	cfg, err := baseConfig(cmd, pipeline.ModeDensity)
	if err != nil {
		return err
	}
	if cfg.CommentsPath, err = filepath.Abs(commentsPath); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	return pipeline.Run(ctx, cfg)
}

func runStamps(cmd *cobra.Command, commentsPath string) error {
	cfg, err := baseConfig(cmd, pipeline.ModeStamps)
	if err != nil {
		return err
	}
	if cfg.CommentsPath, err = filepath.Abs(commentsPath); err != nil {
		return err
	}
	cfg.Stamp, _ = cmd.Flags().GetString("stamp")

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	return pipeline.Run(ctx, cfg)
}

func baseConfig(cmd *cobra.Command, mode pipeline.Mode) (pipeline.Config, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	outDir, _ := cmd.Flags().GetString("out")

	engine, err := config.FromEnv()
	if err != nil {
		return pipeline.Config{}, err
	}
	engine.Verbose = verbose

	return pipeline.Config{
		Mode:   mode,
		OutDir: outDir,
		Engine: engine,
		Log:    logging.New(verbose),
	}, nil
}
