package summarizer

// Formatter renders a playback Summary for a Writer.
type Formatter interface {
	Format(summary *Summary) string
}

// FormatFunc lets a plain function render summaries, e.g. a one-line
// format for scripts.
type FormatFunc func(summary *Summary) string

// Format calls f.
func (f FormatFunc) Format(summary *Summary) string {
	return f(summary)
}
