package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/t114/support-clip/internal/config"
)

const testVTT = `WEBVTT

00:00:00.000 --> 00:00:30.000
オープニングの挨拶です。

00:00:30.000 --> 00:01:10.000
ゲームの話をしています。

00:01:10.000 --> 00:02:00.000
面白いハプニングが起きました！

00:02:00.000 --> 00:03:00.000
雑談に戻ります。
`

// fakeOllama answers topic prompts with a clip array and everything else
// with a score object.
func fakeOllama(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode chat request: %v", err)
		}
		content := `{"score": 4, "reason": "楽しい場面"}`
		if len(req.Messages) > 0 && strings.Contains(req.Messages[len(req.Messages)-1].Content, "JSON array") {
			content = `[{"start": 5, "end": 55, "title": "ゲーム談義", "reason": "盛り上がり"}]`
		}
		json.NewEncoder(w).Encode(map[string]any{"message": map[string]any{"content": content}})
	}))
}

func testEngine(t *testing.T, host string) config.Config {
	t.Helper()
	t.Setenv("OLLAMA_HOST", host)
	cfg, err := config.FromEnv()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readManifest(t *testing.T, outDir string) Manifest {
	t.Helper()
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one manifest, got %d", len(entries))
	}
	b, err := os.ReadFile(filepath.Join(outDir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}
	return m
}

func TestRun_Analyze(t *testing.T) {
	srv := fakeOllama(t)
	defer srv.Close()

	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	vtt := writeTempFile(t, dir, "stream.ja.vtt", testVTT)
	chat := writeTempFile(t, dir, "stream.json",
		`[{"timestamp": 10, "text": "www"}, {"timestamp": 40, "text": "草"}]`)

	err := Run(context.Background(), Config{
		Mode:           ModeAnalyze,
		TranscriptPath: vtt,
		CommentsPath:   chat,
		OutDir:         outDir,
		Engine:         testEngine(t, srv.URL),
		Log:            zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	m := readManifest(t, outDir)
	if m.Mode != ModeAnalyze || m.RunID == "" {
		t.Fatalf("unexpected manifest header: %+v", m)
	}
	if len(m.Clips) != 1 {
		t.Fatalf("expected 1 clip, got %+v", m.Clips)
	}
	c := m.Clips[0]
	if c.Title != "ゲーム談義" || c.ID == "" {
		t.Fatalf("unexpected clip: %+v", c)
	}
	if c.EvaluationScore == nil || *c.EvaluationScore != 4 {
		t.Fatalf("clip not scored: %+v", c)
	}
	if c.CommentCount == nil || *c.CommentCount != 2 {
		t.Fatalf("comment count wrong: %+v", c)
	}
	if m.Session == nil || m.Session.HasMore || m.Session.TotalSegments != 4 {
		t.Fatalf("unexpected session: %+v", m.Session)
	}
	if m.Session.VideoID != "stream" {
		t.Fatalf("video id = %q, want stream", m.Session.VideoID)
	}
}

func TestRun_AnalyzeKeepsPartialResultsWhenModelGoesDown(t *testing.T) {
	// First topic window succeeds, every later one gets a 502. The run must
	// still write a manifest carrying the first window's clips and a cursor
	// parked on the failed window.
	var topicCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode chat request: %v", err)
		}
		last := ""
		if len(req.Messages) > 0 {
			last = req.Messages[len(req.Messages)-1].Content
		}
		if strings.Contains(last, "JSON array") {
			topicCalls++
			if topicCalls > 1 {
				http.Error(w, "bad gateway", http.StatusBadGateway)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"message": map[string]any{
				"content": `[{"start": 5, "end": 55, "title": "序盤"}]`,
			}})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"message": map[string]any{
			"content": `{"score": 4, "reason": "良い"}`,
		}})
	}))
	defer srv.Close()

	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	vtt := writeTempFile(t, dir, "stream.ja.vtt", testVTT)

	t.Setenv("ANALYSIS_WINDOW_SIZE", "2")
	err := Run(context.Background(), Config{
		Mode:           ModeAnalyze,
		TranscriptPath: vtt,
		OutDir:         outDir,
		Engine:         testEngine(t, srv.URL),
		Log:            zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	m := readManifest(t, outDir)
	if len(m.Clips) != 1 || m.Clips[0].Title != "序盤" {
		t.Fatalf("expected the first window's clip to survive, got %+v", m.Clips)
	}
	if m.Session == nil || !m.Session.HasMore || m.Session.NextOffset != 2 {
		t.Fatalf("expected a resumable cursor on the failed window, got %+v", m.Session)
	}
}

func TestRun_HybridWithoutMedia(t *testing.T) {
	srv := fakeOllama(t)
	defer srv.Close()

	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	vtt := writeTempFile(t, dir, "stream.ja.vtt", testVTT)

	err := Run(context.Background(), Config{
		Mode:           ModeHybrid,
		TranscriptPath: vtt,
		OutDir:         outDir,
		Engine:         testEngine(t, srv.URL),
		Log:            zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	m := readManifest(t, outDir)
	if len(m.Clips) == 0 {
		t.Fatal("expected clips from sentence boundaries")
	}
	eng := testEngine(t, srv.URL)
	for i, c := range m.Clips {
		if d := c.Duration(); d < eng.MinClipDuration || d > eng.MaxClipDuration {
			t.Fatalf("clip duration %v outside bounds: %+v", d, c)
		}
		if i > 0 && c.Start < m.Clips[i-1].End {
			t.Fatalf("clips overlap: %+v", m.Clips)
		}
	}
}

func TestRun_DensityAndStamps(t *testing.T) {
	srv := fakeOllama(t)
	defer srv.Close()

	dir := t.TempDir()
	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < 40; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		text := "www"
		if i%4 == 0 {
			text = ":_kusa:"
		}
		sb.WriteString(`{"timestamp": ` + jsonNum(float64(i*3)) + `, "text": "` + text + `"}`)
	}
	sb.WriteString("]")
	chat := writeTempFile(t, dir, "stream.json", sb.String())

	densityOut := filepath.Join(dir, "density")
	err := Run(context.Background(), Config{
		Mode:         ModeDensity,
		CommentsPath: chat,
		OutDir:       densityOut,
		Engine:       testEngine(t, srv.URL),
		Log:          zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("density run: %v", err)
	}
	dm := readManifest(t, densityOut)
	if len(dm.Clips) == 0 || dm.Clips[0].CommentCount == nil {
		t.Fatalf("unexpected density manifest: %+v", dm.Clips)
	}

	stampsOut := filepath.Join(dir, "stamps")
	err = Run(context.Background(), Config{
		Mode:         ModeStamps,
		CommentsPath: chat,
		Stamp:        "_kusa",
		OutDir:       stampsOut,
		Engine:       testEngine(t, srv.URL),
		Log:          zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("stamps run: %v", err)
	}
	sm := readManifest(t, stampsOut)
	if len(sm.Stamps) == 0 || sm.Stamps[0].Shortcut != ":_kusa:" {
		t.Fatalf("unexpected stamp ranking: %+v", sm.Stamps)
	}
	if len(sm.Clips) == 0 {
		t.Fatal("expected stamp clips when a shortcut is given")
	}
}

func TestConfigValidate(t *testing.T) {
	srv := fakeOllama(t)
	defer srv.Close()
	eng := testEngine(t, srv.URL)

	tests := []struct {
		name string
		cfg  Config
	}{
		{"unknown mode", Config{Mode: "bogus", Engine: eng}},
		{"analyze without transcript", Config{Mode: ModeAnalyze, Engine: eng}},
		{"missing transcript file", Config{Mode: ModeAnalyze, TranscriptPath: "/definitely/missing.vtt", Engine: eng}},
		{"density without comments", Config{Mode: ModeDensity, Engine: eng}},
		{"stamps without comments", Config{Mode: ModeStamps, Engine: eng}},
	}
	for _, tt := range tests {
		if err := tt.cfg.Validate(); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestVideoIDFromPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"/data/stream.ja.vtt", "stream"},
		{"stream.live_chat.json", "stream"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := videoIDFromPath(tt.in); got != tt.want {
			t.Errorf("videoIDFromPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func jsonNum(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}
