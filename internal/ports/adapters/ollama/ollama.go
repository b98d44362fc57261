// Package ollama implements ports.TextCompleter against a local Ollama
// server's /api/chat endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultHost  = "http://localhost:11434"
	DefaultModel = "qwen2.5"

	requestTimeout = 90 * time.Second

	// Enough tokens for a full clip array; small local models ramble
	// without a cap.
	numPredict = 1000
)

const systemPrompt = "You are a strict JSON generator. Respond with valid JSON only. " +
	"No explanations, no markdown, no text outside the JSON."

// temperatures stepped through when the model returns an empty message.
// Low first for determinism, warmer on retry for diversity.
var temperatureLadder = []float64{0.1, 0.3, 0.5}

type Adapter struct {
	host   string
	model  string
	client *http.Client
}

func New(host, model string) *Adapter {
	if host == "" {
		host = DefaultHost
	}
	if model == "" {
		model = DefaultModel
	}
	host = strings.TrimRight(host, "/")
	return &Adapter{host: host, model: model, client: &http.Client{Timeout: 5 * time.Minute}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format"`
	Options  map[string]any `json:"options"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error"`
}

// Complete sends the prompt and returns the model's message content. An
// empty message steps up the temperature ladder before giving up; transport
// and HTTP errors return immediately so the caller's retry policy applies.
func (a *Adapter) Complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for _, temp := range temperatureLadder {
		content, err := a.chat(ctx, prompt, temp)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(content) != "" {
			return content, nil
		}
		lastErr = fmt.Errorf("ollama: empty response at temperature %.1f", temp)
	}
	return "", lastErr
}

func (a *Adapter) chat(ctx context.Context, prompt string, temperature float64) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: a.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Stream: false,
		Format: "json",
		Options: map[string]any{
			"temperature": temperature,
			"num_predict": numPredict,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "POST", a.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("ollama timeout after %s (model=%s)", requestTimeout, a.model)
		}
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return "", fmt.Errorf("ollama status %d and read body failed: %v", resp.StatusCode, readErr)
		}
		return "", fmt.Errorf("ollama status %d: %s", resp.StatusCode, truncate(string(rb), 400))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama: %s", out.Error)
	}
	return out.Message.Content, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
