// Package openrouter implements ports.TextCompleter against the OpenRouter
// chat completions API, as a hosted alternative to a local Ollama.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	completionsPath = "/api/v1/chat/completions"
	requestTimeout  = 90 * time.Second
	maxErrBodyRunes = 400
)

type Adapter struct {
	key     string
	model   string
	baseURL string
	client  *http.Client
}

func New(apiKey, model, baseURL string) *Adapter {
	if model == "" {
		model = "anthropic/claude-3.5-sonnet"
	}
	return &Adapter{
		key:     apiKey,
		model:   model,
		baseURL: normalizeBaseURL(baseURL),
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Stream   bool          `json:"stream"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			// Content is a string for most models, but some providers
			// deliver an array of {type,text} parts instead.
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the prompt as a single user message and returns the raw
// assistant content. Error bodies are redacted before they reach logs.
func (a *Adapter) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    a.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var reply chatResponse
	if err := a.post(ctx, body, &reply); err != nil {
		return "", err
	}
	if len(reply.Choices) == 0 {
		return "", errors.New("openrouter: no choices in response")
	}
	return flattenContent(reply.Choices[0].Message.Content)
}

func (a *Adapter) post(ctx context.Context, body []byte, out *chatResponse) error {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, a.baseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("openrouter timeout after %s (model=%s)", requestTimeout, a.model)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return a.statusError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// statusError surfaces a trimmed, secret-free slice of the error body.
func (a *Adapter) statusError(resp *http.Response) error {
	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("openrouter status %d and read body failed: %v", resp.StatusCode, err)
	}
	detail := redactSecrets(string(rb), a.key)
	if r := []rune(detail); len(r) > maxErrBodyRunes {
		detail = string(r[:maxErrBodyRunes])
	}
	return fmt.Errorf("openrouter status %d: %s", resp.StatusCode, detail)
}

func flattenContent(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var parts []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", fmt.Errorf("openrouter: unexpected content shape: %s", raw)
	}
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Text)
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", errors.New("openrouter: empty content")
	}
	return b.String(), nil
}

// Upstream error payloads echo request headers back on auth failures, so
// every credential-shaped token gets masked before the body is surfaced.
var secretPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`), "Bearer [REDACTED]"},
	{regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)([^\n\r,;]+)`), "${1}[REDACTED]"},
	{regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\n\r,;]+)`), "${1}[REDACTED]"},
}

func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	if apiKey != "" {
		s = strings.ReplaceAll(s, apiKey, "[REDACTED]")
	}
	for _, p := range secretPatterns {
		s = p.re.ReplaceAllString(s, p.repl)
	}
	return s
}
