// Package config reads engine settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/t114/support-clip/internal/ports/adapters/openrouter"
)

type Config struct {
	// TextBackend selects the completion provider.
	TextBackend string `validate:"oneof=ollama openrouter"`

	OllamaHost  string `validate:"required,url"`
	OllamaModel string `validate:"required"`

	OpenRouterAPIKey       string
	OpenRouterModel        string
	OpenRouterBaseURL      string
	OpenRouterAllowedHosts []string

	FFmpegPath  string `validate:"required"`
	FFprobePath string `validate:"required"`

	WhisperBin   string
	WhisperModel string

	MinClipDuration float64 `validate:"gt=0"`
	MaxClipDuration float64 `validate:"gtfield=MinClipDuration"`
	MaxClips        int     `validate:"gt=0"`
	WindowSize      int     `validate:"gt=0"`

	Verbose bool
}

var validate = validator.New()

// FromEnv builds a Config from environment variables, falling back to
// defaults for anything unset. Call after godotenv.Load so a .env file
// is honored.
func FromEnv() (Config, error) {
	cfg := Config{
		TextBackend:       getenvDefault("TEXT_BACKEND", "ollama"),
		OllamaHost:        getenvDefault("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:       getenvDefault("OLLAMA_MODEL", "qwen2.5"),
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:   getenvDefault("OPENROUTER_MODEL", "anthropic/claude-3.5-sonnet"),
		OpenRouterBaseURL: getenvDefault("OPENROUTER_BASE_URL", "https://openrouter.ai"),
		FFmpegPath:        getenvDefault("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:       getenvDefault("FFPROBE_PATH", "ffprobe"),
		WhisperBin:        getenvDefault("WHISPER_BIN", ".cache/bin/whisper.cpp"),
		WhisperModel:      getenvDefault("WHISPER_MODEL", ".cache/models/ggml-base.bin"),
		MinClipDuration:   10,
		MaxClipDuration:   60,
		MaxClips:          5,
		WindowSize:        200,
	}
	if hosts := os.Getenv("OPENROUTER_ALLOWED_HOSTS"); hosts != "" {
		cfg.OpenRouterAllowedHosts = strings.Split(hosts, ",")
	}

	var err error
	if cfg.MinClipDuration, err = getenvFloat("MIN_CLIP_DURATION", cfg.MinClipDuration); err != nil {
		return Config{}, err
	}
	if cfg.MaxClipDuration, err = getenvFloat("MAX_CLIP_DURATION", cfg.MaxClipDuration); err != nil {
		return Config{}, err
	}
	if cfg.MaxClips, err = getenvInt("MAX_CLIPS", cfg.MaxClips); err != nil {
		return Config{}, err
	}
	if cfg.WindowSize, err = getenvInt("ANALYSIS_WINDOW_SIZE", cfg.WindowSize); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and reports the first violation.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			v := verrs[0]
			return fmt.Errorf("config: field %s failed %q validation", v.Field(), v.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}
	if c.TextBackend == "openrouter" {
		if c.OpenRouterAPIKey == "" {
			return errors.New("config: OPENROUTER_API_KEY is required for the openrouter backend")
		}
		if err := openrouter.ValidateBaseURL(c.OpenRouterBaseURL, c.OpenRouterAllowedHosts); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvFloat(k string, def float64) (float64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not a number: %w", k, v, err)
	}
	return f, nil
}

func getenvInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not an integer: %w", k, v, err)
	}
	return n, nil
}
