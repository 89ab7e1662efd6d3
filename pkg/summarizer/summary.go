// Package summarizer provides the end-of-session playback report.
package summarizer

import (
	"math"
	"time"

	"github.com/user/vidsync/pkg/videocontroller"
)

// Summary contains all data collected during a playback session.
type Summary struct {
	// Metadata
	GeneratedAt time.Time

	// Session settings and final clock state
	Session SessionInfo

	// Per-stream results, in stream order
	Streams []StreamInfo

	// Diff mode measurements, nil when diff mode was off
	Diff *DiffInfo
}

// SessionInfo describes the session as a whole.
type SessionInfo struct {
	QueueSize   int
	Speed       string
	Direction   string
	Elapsed     time.Duration
	Position    time.Duration
	Duration    time.Duration
	TotalFrames int64
}

// StreamInfo contains the results of one stream.
type StreamInfo struct {
	Index          int
	Path           string
	Width          int
	Height         int
	FrameRate      float64
	Frames         int64
	LastShown      int64
	Presented      int64
	Stalls         int64
	DecodeFailures int64
	RenderFailures int64
}

// DiffInfo contains the PSNR statistics of diff mode.
type DiffInfo struct {
	A, B  int
	Count int
	Min   float64
	Avg   float64
	Max   float64
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithSession sets session information.
func (b *Builder) WithSession(session SessionInfo) *Builder {
	b.summary.Session = session
	return b
}

// AddStream appends a stream result.
func (b *Builder) AddStream(stream StreamInfo) *Builder {
	b.summary.Streams = append(b.summary.Streams, stream)
	return b
}

// WithDiff sets diff mode measurements.
func (b *Builder) WithDiff(diff DiffInfo) *Builder {
	b.summary.Diff = &diff
	return b
}

// WithStatus fills session clock state, streams and diff statistics from a
// controller snapshot. Session settings set by WithSession are kept.
func (b *Builder) WithStatus(st videocontroller.Status) *Builder {
	s := &b.summary.Session
	s.Speed = st.Speed.String()
	s.Direction = st.Direction.String()
	s.Position = st.CurrentTime
	s.Duration = st.Duration
	s.TotalFrames = st.TotalFrames

	for _, stream := range st.Streams {
		meta := stream.Metadata
		b.AddStream(StreamInfo{
			Index:          stream.Index,
			Path:           stream.Path,
			Width:          meta.YWidth,
			Height:         meta.YHeight,
			FrameRate:      meta.Timebase.Inverse().Float64(),
			Frames:         meta.TotalFrames,
			LastShown:      stream.Shown,
			Presented:      stream.Stats.Presented,
			Stalls:         stream.Stats.Stalls,
			DecodeFailures: stream.Stats.DecodeFailures,
			RenderFailures: stream.Stats.RenderFailures,
		})
	}

	if st.PSNR.Count > 0 {
		b.WithDiff(DiffInfo{
			A:     st.DiffA,
			B:     st.DiffB,
			Count: st.PSNR.Count,
			Min:   st.PSNR.Min,
			Avg:   st.PSNR.Avg(),
			Max:   st.PSNR.Max,
		})
	}
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}

// TotalStalls sums the stalls of every stream.
func (s *Summary) TotalStalls() int64 {
	var n int64
	for _, st := range s.Streams {
		n += st.Stalls
	}
	return n
}

// Identical reports whether every compared pair was bit-identical.
func (d *DiffInfo) Identical() bool {
	return d != nil && d.Count > 0 && math.IsInf(d.Min, 1)
}
