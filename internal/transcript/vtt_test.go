package transcript

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

const sampleVTT = `WEBVTT

00:00:01.000 --> 00:00:04.500
最初のセグメントです

2
00:00:05.000 --> 00:00:09.250
two lines of
cue text

01:02:03.000 --> 01:02:10.000 align:start position:10%
an hour in
`

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestParse(t *testing.T) {
	t.Parallel()

	segs := Parse(sampleVTT)
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d: %+v", len(segs), segs)
	}
	if !almostEqual(segs[0].Start, 1.0) || !almostEqual(segs[0].End, 4.5) {
		t.Fatalf("unexpected first segment times: %+v", segs[0])
	}
	if segs[0].Text != "最初のセグメントです" {
		t.Fatalf("unexpected first segment text: %q", segs[0].Text)
	}
	if segs[1].Text != "two lines of\ncue text" {
		t.Fatalf("multi-line cue not joined: %q", segs[1].Text)
	}
	if !almostEqual(segs[2].Start, 3723.0) {
		t.Fatalf("hour timestamp not parsed: %+v", segs[2])
	}
}

func TestParse_MinutesOnlyAndComma(t *testing.T) {
	t.Parallel()

	segs := Parse("WEBVTT\n\n01:30,500 --> 01:35,000\nshort form\n")
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %+v", segs)
	}
	if !almostEqual(segs[0].Start, 90.5) || !almostEqual(segs[0].End, 95.0) {
		t.Fatalf("unexpected times: %+v", segs[0])
	}
}

func TestParse_MalformedCueSkipped(t *testing.T) {
	t.Parallel()

	vtt := `WEBVTT

garbage --> more garbage
this text must not appear

00:00:10.000 --> 00:00:12.000
kept
`
	segs := Parse(vtt)
	if len(segs) != 1 || segs[0].Text != "kept" {
		t.Fatalf("malformed cue should be dropped: %+v", segs)
	}
}

func TestParse_NoTrailingBlankLine(t *testing.T) {
	t.Parallel()

	segs := Parse("WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nlast cue")
	if len(segs) != 1 || segs[0].Text != "last cue" {
		t.Fatalf("final cue lost without trailing newline: %+v", segs)
	}
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()

	if segs := Parse(""); len(segs) != 0 {
		t.Fatalf("expected no segments, got %+v", segs)
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "video.ja.vtt")
	if err := os.WriteFile(path, []byte(sampleVTT), 0o644); err != nil {
		t.Fatal(err)
	}
	segs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segs))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.vtt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestTextInRange(t *testing.T) {
	t.Parallel()

	segs := Parse(sampleVTT)
	got := TextInRange(segs, 0, 10)
	want := "最初のセグメントです two lines of\ncue text"
	if got != want {
		t.Fatalf("TextInRange = %q, want %q", got, want)
	}
	if TextInRange(segs, 2000, 3000) != "" {
		t.Fatal("expected empty text for uncovered range")
	}
}
