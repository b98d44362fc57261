package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"github.com/t114/support-clip/internal/ports"
	"github.com/t114/support-clip/internal/resilience"
	"github.com/t114/support-clip/internal/types"
)

const (
	// NeutralScore is stored when the model gives nothing usable.
	NeutralScore = 3

	// DefaultEvaluateWorkers caps concurrent model calls per video so the
	// endpoint's rate limits are respected.
	DefaultEvaluateWorkers = 3
)

var integerRE = regexp.MustCompile(`\d+`)

// Evaluator scores finalized clips with the external model. Every call is
// independent and idempotent; clips of one video may be scored concurrently.
type Evaluator struct {
	completer ports.TextCompleter
	retry     resilience.Config
	workers   int
	log       zerolog.Logger
}

func NewEvaluator(completer ports.TextCompleter, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		completer: completer,
		retry:     resilience.DefaultConfig(),
		workers:   DefaultEvaluateWorkers,
		log:       logger,
	}
}

// WithWorkers overrides the concurrency cap.
func (e *Evaluator) WithWorkers(n int) *Evaluator {
	if n > 0 {
		e.workers = n
	}
	return e
}

// Evaluate scores one clip given the transcript text spanning its range.
// The score is always in [1,5]: malformed output clamps or falls back to
// the neutral default, and transport failure after retries does the same.
func (e *Evaluator) Evaluate(ctx context.Context, clip types.Clip, clipText string) (int, string) {
	if clipText == "" {
		return NeutralScore, "字幕テキストが見つかりませんでした"
	}

	prompt := buildQualityPrompt(clip, clipText)
	var content string
	err := resilience.Retry(ctx, e.retry, func() error {
		var callErr error
		content, callErr = e.completer.Complete(ctx, prompt)
		return callErr
	})
	if err != nil {
		e.log.Warn().Err(err).Float64("start", clip.Start).Float64("end", clip.End).
			Msg("quality evaluation failed")
		return NeutralScore, "評価に失敗しました"
	}
	return parseScore(content)
}

// EvaluateAll annotates every clip with a score, running at most e.workers
// model calls at once. Order is preserved; inputs are not mutated.
func (e *Evaluator) EvaluateAll(ctx context.Context, in []types.Clip, textFor func(types.Clip) string) []types.Clip {
	out := make([]types.Clip, len(in))
	copy(out, in)

	sem := make(chan struct{}, e.workers)
	var wg sync.WaitGroup
	for i := range out {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			score, reason := e.Evaluate(ctx, out[i], textFor(out[i]))
			out[i].EvaluationScore = &score
			out[i].EvaluationReason = reason
		}(i)
	}
	wg.Wait()
	return out
}

func buildQualityPrompt(clip types.Clip, clipText string) string {
	return fmt.Sprintf(`あなたはJSON専用のAPIです。必ず有効なJSONのみで応答してください。

この動画クリップの面白さを評価して、スコア（1-5つ星）を推奨してください。

応答フォーマットの例（これが応答全体の形式です）:
{"score": 4, "reason": "面白い会話で視聴者を引き込む内容"}

スコアリング基準:
1: つまらない、繰り返しで価値なし
2: やや興味深いがインパクト不足
3: まあまあの内容、見る価値あり
4: とても面白い、魅力的な内容
5: 傑出した、必見の瞬間

クリップ時間: %.1f秒
クリップの文字起こし:
%s

スコア（1-5）とreason（理由）を含むJSONオブジェクトのみで応答:`, clip.Duration(), clipText)
}

// parseScore extracts {"score": n, "reason": ...} from free text. Fallbacks,
// in order: clamp an out-of-range numeric score, take the first in-range
// digit anywhere in the response, neutral default.
func parseScore(content string) (int, string) {
	if obj, ok := firstJSONObject(content); ok {
		var parsed struct {
			Score  json.Number `json:"score"`
			Reason string      `json:"reason"`
		}
		if err := json.Unmarshal([]byte(obj), &parsed); err == nil && parsed.Score != "" {
			if f, err := parsed.Score.Float64(); err == nil {
				score := clampScore(int(f))
				reason := parsed.Reason
				if reason == "" {
					reason = "評価理由が取得できませんでした"
				}
				return score, reason
			}
		}
	}
	if m := integerRE.FindString(content); m != "" {
		n, _ := strconv.Atoi(m)
		return clampScore(n), "評価理由が取得できませんでした"
	}
	return NeutralScore, "評価結果を解析できませんでした"
}

func clampScore(n int) int {
	if n < 1 {
		return 1
	}
	if n > 5 {
		return 5
	}
	return n
}
