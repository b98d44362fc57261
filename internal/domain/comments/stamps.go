package comments

import (
	"regexp"
	"sort"

	"github.com/t114/support-clip/internal/types"
)

// Stamps look like :_mioハトタウロス: or :smile: in extracted chat text.
var stampRE = regexp.MustCompile(`:([^:\s]+):`)

// StampRanking counts every stamp shortcut across the stream and returns
// them ranked by frequency, most common first. Ties break alphabetically so
// the ranking is deterministic.
func StampRanking(events []types.CommentEvent) []types.StampFrequency {
	if len(events) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, e := range events {
		for _, m := range stampRE.FindAllStringSubmatch(e.Text, -1) {
			counts[":"+m[1]+":"]++
		}
	}
	out := make([]types.StampFrequency, 0, len(counts))
	for shortcut, count := range counts {
		out = append(out, types.StampFrequency{Shortcut: shortcut, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Shortcut < out[j].Shortcut
	})
	return out
}
