package videocontroller

import (
	"math"
	"time"

	"github.com/user/vidsync/pkg/media"
)

// StreamStats counts what happened to one stream.
type StreamStats struct {
	Presented      int64
	Stalls         int64
	DecodeFailures int64
	RenderFailures int64
}

// PSNRStats aggregates diff-mode measurements.
type PSNRStats struct {
	Count int
	Min   float64
	Max   float64
	Sum   float64
}

func (p *PSNRStats) add(v float64) {
	if p.Count == 0 || v < p.Min {
		p.Min = v
	}
	if p.Count == 0 || v > p.Max {
		p.Max = v
	}
	p.Count++
	p.Sum += v
}

// Avg returns the mean PSNR, NaN without measurements. Identical frames
// measure +Inf, which makes the mean +Inf as well.
func (p PSNRStats) Avg() float64 {
	if p.Count == 0 {
		return math.NaN()
	}
	return p.Sum / float64(p.Count)
}

// StreamStatus is the state of one live stream.
type StreamStatus struct {
	Index      int
	ID         uint64
	Path       string
	Metadata   media.Metadata
	Shown      int64
	Ready      bool
	Stalled    bool
	ReachedEnd bool
	Stats      StreamStats
}

// Status is a snapshot of the aggregate.
type Status struct {
	Streams     []StreamStatus
	Ready       bool
	Playing     bool
	Seeking     bool
	Buffering   bool
	ReachedEnd  bool
	// AtStart is set when the clock and every stream show the first frame.
	AtStart     bool
	Direction   media.Direction
	Speed       media.Rational
	CurrentTime time.Duration
	Duration    time.Duration
	TotalFrames int64

	DiffEnabled bool
	DiffA       int
	DiffB       int
	PSNR        PSNRStats
}

func (c *Controller) status() Status {
	st := Status{
		Ready:       c.allReady,
		Playing:     c.playing,
		Seeking:     c.seeking,
		Buffering:   c.buffering(),
		ReachedEnd:  c.reachedEnd,
		AtStart:     len(c.streams) > 0 && c.atFirstFrame(),
		Direction:   c.dir,
		Speed:       c.speed,
		CurrentTime: c.currentTime(),
		DiffA:       -1,
		DiffB:       -1,
		PSNR:        c.psnr,
	}
	for i, s := range c.streams {
		meta := s.fc.Metadata()
		st.Streams = append(st.Streams, StreamStatus{
			Index:      i,
			ID:         s.id,
			Path:       s.info.Path,
			Metadata:   meta,
			Shown:      s.fc.Shown(),
			Ready:      c.ready[s.id],
			Stalled:    c.stalled[s.id],
			ReachedEnd: c.atEnd[s.id],
			Stats:      s.stats,
		})
		if s.fc.Shown() != 0 {
			st.AtStart = false
		}
		st.Duration = max(st.Duration, meta.Duration)
		st.TotalFrames = max(st.TotalFrames, meta.TotalFrames)
		if c.diff.enabled {
			switch s.id {
			case c.diff.a:
				st.DiffA = i
			case c.diff.b:
				st.DiffB = i
			}
		}
	}
	st.DiffEnabled = c.diff.enabled
	return st
}
