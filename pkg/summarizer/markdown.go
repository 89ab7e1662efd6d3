package summarizer

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// MarkdownFormatter formats a Summary as Markdown.
type MarkdownFormatter struct {
	translate func(string) string
	version   string
}

// MarkdownOption configures a MarkdownFormatter.
type MarkdownOption func(*MarkdownFormatter)

// WithTranslator translates headings and labels.
func WithTranslator(translate func(string) string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.translate = translate
	}
}

// WithVersion adds the program version to the footer.
func WithVersion(version string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.version = version
	}
}

// NewMarkdownFormatter creates a MarkdownFormatter.
func NewMarkdownFormatter(opts ...MarkdownOption) *MarkdownFormatter {
	f := &MarkdownFormatter{
		translate: func(s string) string { return s },
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format implements Formatter.
func (f *MarkdownFormatter) Format(summary *Summary) string {
	t := f.translate
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", t("Playback Summary"))

	s := summary.Session
	fmt.Fprintf(&b, "## %s\n\n", t("Session"))
	fmt.Fprintf(&b, "| %s | %s |\n|---|---|\n", t("Item"), t("Value"))
	fmt.Fprintf(&b, "| %s | %s |\n", t("Speed"), s.Speed)
	fmt.Fprintf(&b, "| %s | %s |\n", t("Direction"), t(s.Direction))
	fmt.Fprintf(&b, "| %s | %d |\n", t("Queue Size"), s.QueueSize)
	fmt.Fprintf(&b, "| %s | %s / %s |\n", t("Position"), formatDuration(s.Position), formatDuration(s.Duration))
	fmt.Fprintf(&b, "| %s | %d |\n", t("Total Frames"), s.TotalFrames)
	if s.Elapsed > 0 {
		fmt.Fprintf(&b, "| %s | %s |\n", t("Elapsed"), s.Elapsed.Round(time.Millisecond))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## %s\n\n", t("Streams"))
	if len(summary.Streams) == 0 {
		fmt.Fprintf(&b, "%s\n\n", t("No streams"))
	} else {
		fmt.Fprintf(&b, "| # | %s | %s | %s | %s | %s | %s | %s | %s |\n",
			t("File"), t("Size"), t("FPS"), t("Last Frame"),
			t("Presented"), t("Stalls"), t("Decode Failures"), t("Render Failures"))
		b.WriteString("|---|---|---|---|---|---|---|---|---|\n")
		for _, st := range summary.Streams {
			fmt.Fprintf(&b, "| %d | %s | %dx%d | %.3g | %d / %d | %d | %d | %d | %d |\n",
				st.Index, st.Path, st.Width, st.Height, st.FrameRate,
				st.LastShown, st.Frames, st.Presented, st.Stalls, st.DecodeFailures, st.RenderFailures)
		}
		b.WriteString("\n")
	}

	if d := summary.Diff; d != nil {
		fmt.Fprintf(&b, "## %s\n\n", t("Diff"))
		fmt.Fprintf(&b, "| %s | %s |\n|---|---|\n", t("Item"), t("Value"))
		fmt.Fprintf(&b, "| %s | #%d / #%d |\n", t("Streams"), d.A, d.B)
		fmt.Fprintf(&b, "| %s | %d |\n", t("Comparisons"), d.Count)
		if d.Identical() {
			fmt.Fprintf(&b, "| PSNR | %s |\n", t("Identical"))
		} else {
			fmt.Fprintf(&b, "| PSNR (%s) | %s dB |\n", t("min"), formatPSNR(d.Min))
			fmt.Fprintf(&b, "| PSNR (%s) | %s dB |\n", t("avg"), formatPSNR(d.Avg))
			fmt.Fprintf(&b, "| PSNR (%s) | %s dB |\n", t("max"), formatPSNR(d.Max))
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n")
	footer := fmt.Sprintf("%s %s", t("Generated at"), summary.GeneratedAt.Format(time.RFC3339))
	if f.version != "" {
		footer += fmt.Sprintf(" (vidsync %s)", f.version)
	}
	b.WriteString(footer + "\n")
	return b.String()
}

func formatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d.%03d", ms/60000, ms/1000%60, ms%1000)
}

func formatPSNR(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", v)
}
