package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := &cobra.Command{
		Use:          "support-clip",
		Short:        "Detect clip-worthy ranges in long stream recordings",
		SilenceUsage: true,
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	root.PersistentFlags().String("out", "out", "Output directory")
	root.PersistentFlags().Bool("verbose", false, "Debug logging")

	root.AddCommand(
		newAnalyzeCmd(),
		newHybridCmd(),
		newDensityCmd(),
		newStampsCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <transcript.vtt | media file>",
		Short: "Find topic clips with the language model, one window at a time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args[0])
		},
	}
	cmd.Flags().String("comments", "", "Chat replay file (json or live_chat.json)")
	cmd.Flags().String("media", "", "Media file, used to probe the real duration")
	cmd.Flags().Float64("start", 0, "Skip everything before this time in seconds")
	return cmd
}

func newHybridCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hybrid <transcript.vtt | media file>",
		Short: "Find clips from audio silence and sentence boundaries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHybrid(cmd, args[0])
		},
	}
	cmd.Flags().String("comments", "", "Chat replay file (json or live_chat.json)")
	cmd.Flags().String("media", "", "Media file for silence detection")
	cmd.Flags().Float64("start", 0, "Skip everything before this time in seconds")
	return cmd
}

func newDensityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "density <comments.json>",
		Short: "Rank the comment-busiest minutes of the stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDensity(cmd, args[0])
		},
	}
}

func newStampsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stamps <comments.json>",
		Short: "Rank chat stamps, optionally clipping where one spikes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStamps(cmd, args[0])
		},
	}
	cmd.Flags().String("stamp", "", "Shortcut to clip around, e.g. _kusa")
	return cmd
}
