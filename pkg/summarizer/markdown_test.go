package summarizer

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/user/vidsync/pkg/mocks"
)

func sampleSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		Session: SessionInfo{
			QueueSize:   16,
			Speed:       "1/1",
			Direction:   "forward",
			Position:    61500 * time.Millisecond,
			Duration:    10 * time.Minute,
			TotalFrames: 15000,
		},
		Streams: []StreamInfo{
			{Index: 0, Path: "a.mp4", Width: 1280, Height: 720, FrameRate: 25, Frames: 15000, LastShown: 1537, Presented: 1538, Stalls: 2},
			{Index: 1, Path: "b.mp4", Width: 640, Height: 360, FrameRate: 29.97, Frames: 17982, LastShown: 1843, Presented: 1844, DecodeFailures: 1},
		},
	}
}

func TestMarkdownFormatter_Format_Basic(t *testing.T) {
	result := NewMarkdownFormatter().Format(sampleSummary())

	checks := []string{
		"# Playback Summary",
		"01:01.500 / 10:00.000",
		"| 0 | a.mp4 | 1280x720 | 25 | 1537 / 15000 | 1538 | 2 | 0 | 0 |",
		"| 1 | b.mp4 | 640x360 | 30 | 1843 / 17982 | 1844 | 0 | 1 | 0 |",
		"2024-01-15T10:30:00Z",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected output to contain %q\n%s", check, result)
		}
	}
	if strings.Contains(result, "## Diff") {
		t.Error("diff section without diff data")
	}
}

func TestMarkdownFormatter_Diff(t *testing.T) {
	tests := []struct {
		name string
		diff DiffInfo
		want []string
	}{
		{
			name: "measured",
			diff: DiffInfo{A: 0, B: 1, Count: 4, Min: 31.5, Avg: 35.25, Max: 40},
			want: []string{"## Diff", "| Comparisons | 4 |", "31.50 dB", "35.25 dB", "40.00 dB"},
		},
		{
			name: "identical",
			diff: DiffInfo{A: 0, B: 1, Count: 2, Min: math.Inf(1), Avg: math.Inf(1), Max: math.Inf(1)},
			want: []string{"| PSNR | Identical |"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sampleSummary()
			s.Diff = &tt.diff
			result := NewMarkdownFormatter().Format(s)
			for _, want := range tt.want {
				if !strings.Contains(result, want) {
					t.Errorf("expected output to contain %q\n%s", want, result)
				}
			}
		})
	}
}

func TestMarkdownFormatter_NoStreams(t *testing.T) {
	result := NewMarkdownFormatter().Format(&Summary{GeneratedAt: time.Now()})
	if !strings.Contains(result, "No streams") {
		t.Error("expected 'No streams'")
	}
}

func TestMarkdownFormatter_WithTranslator(t *testing.T) {
	translator := func(key string) string {
		translations := map[string]string{
			"Playback Summary": "再生サマリー",
			"Stalls":           "停止",
			"forward":          "順方向",
		}
		if v, ok := translations[key]; ok {
			return v
		}
		return key
	}

	result := NewMarkdownFormatter(WithTranslator(translator)).Format(sampleSummary())

	for _, want := range []string{"再生サマリー", "停止", "順方向"} {
		if !strings.Contains(result, want) {
			t.Errorf("expected translated %q", want)
		}
	}
}

func TestMarkdownFormatter_WithVersion(t *testing.T) {
	result := NewMarkdownFormatter(WithVersion("v1.2.0")).Format(sampleSummary())
	if !strings.Contains(result, "v1.2.0") {
		t.Error("expected output to contain version 'v1.2.0'")
	}
}

func TestWriter_Write(t *testing.T) {
	fs := mocks.NewFileSystem()
	w := NewWriter(FormatFunc(func(s *Summary) string { return "summary" }), fs)

	if err := w.Write("out/summary.md", sampleSummary()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, ok := fs.GetFile("out/summary.md")
	if !ok || string(data) != "summary" {
		t.Errorf("file = %q, %v", data, ok)
	}
}
