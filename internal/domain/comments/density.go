// Package comments ranks live-chat activity into clip candidates and stamp
// frequency tables.
package comments

import (
	"fmt"
	"sort"
	"strings"

	"github.com/t114/support-clip/internal/types"
)

const (
	// DefaultClipDuration is the density bucket width in seconds.
	DefaultClipDuration = 60.0
	// DefaultTopN caps how many density windows become clip candidates.
	DefaultTopN = 10
)

type bucket struct {
	index int
	count int
}

// DensityClips buckets the comment stream into fixed clipDuration windows
// and returns the busiest ones as candidate clips, ordered by start time,
// with comment_count and comments_per_minute filled in. Empty input yields
// an empty list, not an error.
func DensityClips(events []types.CommentEvent, videoDuration, clipDuration float64, topN int) []types.Clip {
	return rankBuckets(events, videoDuration, clipDuration, topN, func(types.CommentEvent) bool { return true },
		func(i, count int) (string, string) {
			return fmt.Sprintf("コメント密集区間 %d", i+1),
				fmt.Sprintf("%d件のコメント", count)
		})
}

// StampClips is DensityClips restricted to comments containing the given
// stamp shortcut, so callers can target "clips where :stamp: is frequent".
func StampClips(events []types.CommentEvent, shortcut string, videoDuration, clipDuration float64, topN int) []types.Clip {
	if shortcut == "" {
		return nil
	}
	token := shortcut
	if !strings.HasPrefix(token, ":") {
		token = ":" + token + ":"
	}
	return rankBuckets(events, videoDuration, clipDuration, topN,
		func(e types.CommentEvent) bool { return strings.Contains(e.Text, token) },
		func(i, count int) (string, string) {
			return fmt.Sprintf("%s 盛り上がり %d", token, i+1),
				fmt.Sprintf("%s が%d回", token, count)
		})
}

func rankBuckets(
	events []types.CommentEvent,
	videoDuration, clipDuration float64,
	topN int,
	match func(types.CommentEvent) bool,
	label func(rank, count int) (title, reason string),
) []types.Clip {
	if len(events) == 0 || videoDuration <= 0 {
		return nil
	}
	if clipDuration <= 0 {
		clipDuration = DefaultClipDuration
	}
	if topN <= 0 {
		topN = DefaultTopN
	}

	n := int(videoDuration/clipDuration) + 1
	counts := make([]int, n)
	for _, e := range events {
		if e.Timestamp < 0 || e.Timestamp > videoDuration {
			continue
		}
		i := int(e.Timestamp / clipDuration)
		if i >= n {
			i = n - 1
		}
		if match(e) {
			counts[i]++
		}
	}

	ranked := make([]bucket, 0, n)
	for i, c := range counts {
		if c > 0 {
			ranked = append(ranked, bucket{index: i, count: c})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].count > ranked[j].count })
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	out := make([]types.Clip, 0, len(ranked))
	for rank, bk := range ranked {
		start := float64(bk.index) * clipDuration
		end := start + clipDuration
		if end > videoDuration {
			end = videoDuration
		}
		if end <= start {
			continue
		}
		title, reason := label(rank, bk.count)
		count := bk.count
		perMin := float64(count) / ((end - start) / 60.0)
		out = append(out, types.Clip{
			Start:          start,
			End:            end,
			Title:          title,
			Reason:         reason,
			CommentCount:   &count,
			CommentsPerMin: &perMin,
		})
	}
	types.SortClips(out)
	return out
}

// CountInClips annotates clips with how many comments land inside each range
// and the per-minute rate. Clips come back in the same order.
func CountInClips(clips []types.Clip, events []types.CommentEvent) []types.Clip {
	out := make([]types.Clip, len(clips))
	copy(out, clips)
	for i := range out {
		count := 0
		for _, e := range events {
			if e.Timestamp >= out[i].Start && e.Timestamp <= out[i].End {
				count++
			}
		}
		c := count
		out[i].CommentCount = &c
		if d := out[i].Duration(); d > 0 {
			perMin := float64(c) / (d / 60.0)
			out[i].CommentsPerMin = &perMin
		}
	}
	return out
}
