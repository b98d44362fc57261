package analysis

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/t114/support-clip/internal/types"
)

// The model is asked for a bare JSON array but routinely wraps it in prose,
// code fences, or an envelope object. Extraction is best-effort: individual
// malformed entries are discarded, and a completely unusable response just
// means zero clips for the window.

// flexFloat accepts a JSON number or a numeric string.
type flexFloat struct {
	value float64
	set   bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil // leave unset; entry is dropped during validation
	}
	f.value = v
	f.set = true
	return nil
}

// flexString accepts a JSON string and stringifies other scalars; objects,
// arrays, and null are treated as absent.
type flexString struct {
	value string
}

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		f.value = s
		return nil
	}
	t := strings.TrimSpace(string(b))
	if t == "" || t == "null" || strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[") {
		return nil
	}
	f.value = t
	return nil
}

type rawClip struct {
	Start       flexFloat  `json:"start"`
	StartTime   flexFloat  `json:"start_time"`
	Timestamp   flexFloat  `json:"timestamp"`
	End         flexFloat  `json:"end"`
	EndTime     flexFloat  `json:"end_time"`
	Title       flexString `json:"title"`
	Topic       flexString `json:"topic"`
	Description flexString `json:"description"`
	Reason      flexString `json:"reason"`
}

func (r rawClip) start() (float64, bool) {
	switch {
	case r.Start.set:
		return r.Start.value, true
	case r.StartTime.set:
		return r.StartTime.value, true
	case r.Timestamp.set:
		return r.Timestamp.value, true
	}
	return 0, false
}

func (r rawClip) end() (float64, bool) {
	switch {
	case r.End.set:
		return r.End.value, true
	case r.EndTime.set:
		return r.EndTime.value, true
	}
	return 0, false
}

func (r rawClip) title() string {
	if r.Title.value != "" {
		return r.Title.value
	}
	if r.Topic.value != "" {
		return r.Topic.value
	}
	return "トピック"
}

// Envelope keys models commonly wrap arrays in.
var envelopeKeys = []string{"clips", "boundaries", "segments", "data", "results", "topics"}

var arrayRE = regexp.MustCompile(`(?s)\[.*\]`)

// parseClips pulls clip entries out of a free-text model response and keeps
// the ones whose times are numeric, ordered, and inside [lo, hi] (with a
// little slack, clamped back into range).
func parseClips(content string, lo, hi float64) []types.Clip {
	raws, err := extractEntries(content)
	if err != nil {
		return nil
	}
	const slack = 2.0
	var out []types.Clip
	for _, r := range raws {
		start, okS := r.start()
		end, okE := r.end()
		if !okS || !okE || end <= start {
			continue
		}
		if start < lo-slack || end > hi+slack {
			continue
		}
		if start < lo {
			start = lo
		}
		if end > hi {
			end = hi
		}
		if end <= start {
			continue
		}
		out = append(out, types.Clip{
			Start:       start,
			End:         end,
			Title:       r.title(),
			Description: r.Description.value,
			Reason:      r.Reason.value,
		})
	}
	types.SortClips(out)
	return out
}

// extractEntries tries, in order: the whole body as an array, an envelope
// object holding one, a single bare object, and finally the first
// bracketed block anywhere in the text.
func extractEntries(content string) ([]rawClip, error) {
	t := stripFences(content)
	if t == "" {
		return nil, errors.New("empty response")
	}

	if arr, ok := decodeEntries([]byte(t)); ok {
		return arr, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(t), &envelope); err == nil {
		for _, key := range envelopeKeys {
			raw, ok := envelope[key]
			if !ok {
				continue
			}
			if arr, ok := decodeEntries(raw); ok {
				return arr, nil
			}
		}
		var single rawClip
		if err := json.Unmarshal([]byte(t), &single); err == nil {
			if _, ok := single.start(); ok {
				return []rawClip{single}, nil
			}
		}
	}

	if m := arrayRE.FindString(t); m != "" {
		if arr, ok := decodeEntries([]byte(m)); ok {
			return arr, nil
		}
	}
	return nil, errors.New("no structured block found")
}

// decodeEntries unmarshals array elements one at a time, so a single entry
// of the wrong shape is dropped without sinking its siblings.
func decodeEntries(b []byte) ([]rawClip, bool) {
	var elems []json.RawMessage
	if err := json.Unmarshal(b, &elems); err != nil {
		return nil, false
	}
	out := make([]rawClip, 0, len(elems))
	for _, e := range elems {
		var r rawClip
		if err := json.Unmarshal(e, &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, true
}

func stripFences(s string) string {
	t := strings.TrimSpace(s)
	if strings.HasPrefix(t, "```") {
		if i := strings.Index(t, "\n"); i >= 0 {
			t = t[i+1:]
		}
		if j := strings.LastIndex(t, "```"); j >= 0 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}
	return t
}

// firstJSONObject finds the outermost {...} block in free text; used by the
// quality evaluator whose responses are single objects.
func firstJSONObject(s string) (string, bool) {
	t := stripFences(s)
	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return t[start : end+1], true
}
