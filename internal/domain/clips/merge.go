// Package clips enforces the duration and ordering invariants on candidate
// clips coming out of any detector.
package clips

import (
	"math"

	"github.com/t114/support-clip/internal/types"
)

// Bounds is the allowed clip duration range, in seconds.
type Bounds struct {
	Min float64
	Max float64
}

// DefaultBounds mirrors the service configuration: 10s to 60s.
func DefaultBounds() Bounds { return Bounds{Min: 10, Max: 60} }

// gapTolerance is the largest gap (seconds) between adjacent clips that
// merging may swallow.
const gapTolerance = 1.0

// Merge normalizes raw candidate clips into a list satisfying
// Min <= duration <= Max, ordered by start and non-overlapping within
// [0, videoDuration]. cuts, when provided, are boundary candidates used to
// truncate over-long clips at a natural point.
//
// Overlaps between candidates (for example, clips from two pagination
// windows) resolve deterministically: the earlier clip wins and the later
// one is trimmed to start at its end, then dropped if that leaves it under
// Min with no room to grow.
//
// Merge is idempotent: it repeats its normalization pass until a pass
// changes nothing, so running it on its own output is a no-op.
func Merge(in []types.Clip, b Bounds, videoDuration float64, cuts []types.Boundary) []types.Clip {
	cur := sanitize(in, videoDuration)
	// Each pass shrinks the list or grows clip durations toward the bounds,
	// so the fixpoint arrives quickly; the cap is a safety net.
	for i := 0; i < len(in)+2; i++ {
		next := pass(cur, b, videoDuration, cuts)
		if equal(cur, next) {
			break
		}
		cur = next
	}
	return cur
}

func pass(in []types.Clip, b Bounds, videoDuration float64, cuts []types.Boundary) []types.Clip {
	out := trimOverlaps(in, b)
	out = mergeAdjacent(out, b)
	out = truncateLong(out, b, cuts)
	out = extendShort(out, b, videoDuration)
	return out
}

func sanitize(in []types.Clip, videoDuration float64) []types.Clip {
	out := make([]types.Clip, 0, len(in))
	for _, c := range in {
		if c.Start < 0 {
			c.Start = 0
		}
		if videoDuration > 0 && c.End > videoDuration {
			c.End = videoDuration
		}
		if c.End <= c.Start {
			continue
		}
		out = append(out, c)
	}
	types.SortClips(out)
	return out
}

// trimOverlaps makes starts strictly positional: the earlier clip keeps its
// range, the later clip starts where the earlier ends. Later clips squeezed
// to nothing are dropped.
func trimOverlaps(in []types.Clip, b Bounds) []types.Clip {
	out := make([]types.Clip, 0, len(in))
	prevEnd := math.Inf(-1)
	for _, c := range in {
		if c.Start < prevEnd {
			c.Start = prevEnd
		}
		if c.End-c.Start <= 0 {
			continue
		}
		out = append(out, c)
		prevEnd = c.End
	}
	return out
}

// mergeAdjacent joins neighbors whose combined span stays inside Max and
// whose gap is within tolerance. Metadata comes from the first clip; titles
// are joined when they differ so nothing a model labeled gets lost.
func mergeAdjacent(in []types.Clip, b Bounds) []types.Clip {
	if len(in) == 0 {
		return in
	}
	out := make([]types.Clip, 0, len(in))
	cur := in[0]
	for _, next := range in[1:] {
		gap := next.Start - cur.End
		combined := next.End - cur.Start
		needsMerge := cur.Duration() < b.Min || next.Duration() < b.Min
		if needsMerge && gap <= gapTolerance && combined <= b.Max {
			if next.Title != "" && next.Title != cur.Title {
				if cur.Title == "" {
					cur.Title = next.Title
				} else {
					cur.Title = cur.Title + " → " + next.Title
				}
			}
			cur.End = next.End
			continue
		}
		out = append(out, cur)
		cur = next
	}
	out = append(out, cur)
	return out
}

// truncateLong caps clips over Max, preferring the latest boundary candidate
// that still fits.
func truncateLong(in []types.Clip, b Bounds, cuts []types.Boundary) []types.Clip {
	out := make([]types.Clip, 0, len(in))
	for _, c := range in {
		if c.Duration() > b.Max {
			limit := c.Start + b.Max
			// Latest boundary candidate that keeps the clip inside bounds.
			best := 0.0
			for _, cut := range cuts {
				if cut.Time >= c.Start+b.Min && cut.Time <= limit && cut.Time > best {
					best = cut.Time
				}
			}
			if best > c.Start {
				c.End = best
			} else {
				// No usable candidate: the hard limit applies.
				c.End = limit
			}
		}
		out = append(out, c)
	}
	return out
}

// extendShort grows sub-Min clips evenly on both sides, clamped to the video
// edges and to the neighboring clips so ordering survives. Clips that still
// cannot reach Min are dropped.
func extendShort(in []types.Clip, b Bounds, videoDuration float64) []types.Clip {
	out := make([]types.Clip, 0, len(in))
	for i, c := range in {
		if c.Duration() >= b.Min {
			out = append(out, c)
			continue
		}

		lo := 0.0
		if len(out) > 0 {
			lo = out[len(out)-1].End
		}
		hi := videoDuration
		if i+1 < len(in) && in[i+1].Start < hi {
			hi = in[i+1].Start
		}
		if hi-lo < b.Min {
			// No room between neighbors / video edges: unmergeable, drop.
			continue
		}

		need := b.Min - c.Duration()
		start := c.Start - need/2
		end := c.End + need/2
		if start < lo {
			end += lo - start
			start = lo
		}
		if end > hi {
			start -= end - hi
			end = hi
		}
		if start < lo {
			start = lo
		}
		c.Start = start
		c.End = end
		out = append(out, c)
	}
	return out
}

func equal(a, b []types.Clip) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Start != b[i].Start || a[i].End != b[i].End || a[i].Title != b[i].Title {
			return false
		}
	}
	return true
}
