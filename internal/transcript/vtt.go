// Package transcript loads WebVTT subtitle files into timed segments.
package transcript

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/t114/support-clip/internal/types"
)

// Parse reads WebVTT content line by line. Cue numbers and the WEBVTT
// header are skipped; a cue with an unparsable timing line is dropped
// rather than failing the whole file.
func Parse(content string) []types.Segment {
	var (
		segments  []types.Segment
		start     float64
		end       float64
		inCue     bool
		textLines []string
	)

	flush := func() {
		if inCue && len(textLines) > 0 {
			segments = append(segments, types.Segment{
				Start: start,
				End:   end,
				Text:  strings.TrimSpace(strings.Join(textLines, "\n")),
			})
		}
		textLines = textLines[:0]
	}

	sc := bufio.NewScanner(strings.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		switch {
		case strings.Contains(line, "-->"):
			flush()
			s, e, err := parseTimingLine(line)
			if err != nil {
				inCue = false
				continue
			}
			start, end = s, e
			inCue = true
		case line == "":
			flush()
			inCue = false
		case inCue && !strings.Contains(line, "WEBVTT"):
			// A short all-digit line between cues is a cue number.
			if len(line) < 6 && isDigits(line) {
				continue
			}
			textLines = append(textLines, line)
		}
	}
	flush()
	return segments
}

// Load parses the VTT file at path.
func Load(path string) ([]types.Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	return Parse(string(data)), nil
}

// TextInRange concatenates the text of segments overlapping [start, end].
// The quality evaluator feeds this to the model as the clip's transcript.
func TextInRange(segments []types.Segment, start, end float64) string {
	var parts []string
	for _, s := range segments {
		if s.End <= start || s.Start >= end {
			continue
		}
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func parseTimingLine(line string) (float64, float64, error) {
	parts := strings.Split(line, "-->")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed timing line %q", line)
	}
	// Trailing cue settings like "align:start" follow the end time.
	endField := strings.Fields(strings.TrimSpace(parts[1]))
	if len(endField) == 0 {
		return 0, 0, fmt.Errorf("malformed timing line %q", line)
	}
	start, err := parseTime(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	end, err := parseTime(endField[0])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// parseTime accepts HH:MM:SS.mmm, MM:SS.mmm, or bare seconds. A comma
// decimal separator (SRT style) is tolerated.
func parseTime(t string) (float64, error) {
	t = strings.ReplaceAll(t, ",", ".")
	parts := strings.Split(t, ":")

	seconds, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil {
		return 0, fmt.Errorf("parse time %q: %w", t, err)
	}
	if len(parts) > 1 {
		m, err := strconv.Atoi(parts[len(parts)-2])
		if err != nil {
			return 0, fmt.Errorf("parse time %q: %w", t, err)
		}
		seconds += float64(m) * 60
	}
	if len(parts) > 2 {
		h, err := strconv.Atoi(parts[len(parts)-3])
		if err != nil {
			return 0, fmt.Errorf("parse time %q: %w", t, err)
		}
		seconds += float64(h) * 3600
	}
	return seconds, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
