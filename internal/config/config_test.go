package config

import (
	"strings"
	"testing"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.OllamaHost != "http://localhost:11434" || cfg.OllamaModel != "qwen2.5" {
		t.Fatalf("unexpected model defaults: %+v", cfg)
	}
	if cfg.MinClipDuration != 10 || cfg.MaxClipDuration != 60 || cfg.MaxClips != 5 || cfg.WindowSize != 200 {
		t.Fatalf("unexpected tuning defaults: %+v", cfg)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("OLLAMA_MODEL", "llama3")
	t.Setenv("MIN_CLIP_DURATION", "15")
	t.Setenv("MAX_CLIPS", "8")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.OllamaModel != "llama3" || cfg.MinClipDuration != 15 || cfg.MaxClips != 8 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestFromEnvBadNumber(t *testing.T) {
	t.Setenv("MAX_CLIPS", "many")

	if _, err := FromEnv(); err == nil || !strings.Contains(err.Error(), "MAX_CLIPS") {
		t.Fatalf("expected MAX_CLIPS parse error, got %v", err)
	}
}

func TestFromEnvOpenRouterBackend(t *testing.T) {
	t.Setenv("TEXT_BACKEND", "openrouter")

	if _, err := FromEnv(); err == nil || !strings.Contains(err.Error(), "OPENROUTER_API_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}

	t.Setenv("OPENROUTER_API_KEY", "sk-test")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.TextBackend != "openrouter" || cfg.OpenRouterBaseURL != "https://openrouter.ai" {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	t.Setenv("OPENROUTER_BASE_URL", "https://evil.example")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected base URL host rejection")
	}

	t.Setenv("OPENROUTER_ALLOWED_HOSTS", "evil.example")
	if _, err := FromEnv(); err != nil {
		t.Fatalf("allow-listed host rejected: %v", err)
	}
}

func TestFromEnvUnknownBackend(t *testing.T) {
	t.Setenv("TEXT_BACKEND", "gpt4all")

	if _, err := FromEnv(); err == nil || !strings.Contains(err.Error(), "TextBackend") {
		t.Fatalf("expected TextBackend violation, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mut    func(*Config)
		wantIn string
	}{
		{"max below min", func(c *Config) { c.MaxClipDuration = 5 }, "MaxClipDuration"},
		{"zero max clips", func(c *Config) { c.MaxClips = 0 }, "MaxClips"},
		{"bad host", func(c *Config) { c.OllamaHost = "not a url" }, "OllamaHost"},
		{"missing model", func(c *Config) { c.OllamaModel = "" }, "OllamaModel"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := FromEnv()
			if err != nil {
				t.Fatalf("FromEnv: %v", err)
			}
			tt.mut(&cfg)
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantIn) {
				t.Fatalf("expected %s violation, got %v", tt.wantIn, err)
			}
		})
	}
}
