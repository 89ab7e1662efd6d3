package media

import "time"

// Direction is the playback direction.
type Direction int

const (
	Forward  Direction = 1
	Backward Direction = -1
)

// String returns "forward" or "backward".
func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	if d == Backward {
		return Forward
	}
	return Backward
}

// Step returns +1 or -1.
func (d Direction) Step() int64 {
	if d == Backward {
		return -1
	}
	return 1
}

// PixelFormat names the planar layout of decoded frames.
type PixelFormat string

const (
	PixelFormatYUV420P PixelFormat = "yuv420p"
	PixelFormatYUV422P PixelFormat = "yuv422p"
	PixelFormatYUV444P PixelFormat = "yuv444p"
)

// ChromaShift returns the horizontal and vertical chroma subsampling shifts.
func (f PixelFormat) ChromaShift() (x, y uint) {
	switch f {
	case PixelFormatYUV444P:
		return 0, 0
	case PixelFormatYUV422P:
		return 1, 0
	default:
		return 1, 1
	}
}

// StreamInfo describes a stream to open.
type StreamInfo struct {
	Path        string
	Width       int         // 0 keeps the source width
	Height      int         // 0 keeps the source height
	FrameRate   Rational    // zero value keeps the source rate
	PixelFormat PixelFormat // empty means yuv420p
}

// Metadata is what the decoder reports once a stream is open.
type Metadata struct {
	YWidth      int
	YHeight     int
	UVWidth     int
	UVHeight    int
	PixelFormat PixelFormat
	Timebase    Rational // seconds per PTS unit
	TotalFrames int64
	Duration    time.Duration
}

// PlaneSizes returns the byte sizes of the Y, U and V planes.
func (m Metadata) PlaneSizes() PlaneSizes {
	return PlaneSizes{
		Y:  m.YWidth * m.YHeight,
		UV: m.UVWidth * m.UVHeight,
	}
}

// TimeAt returns the presentation time of pts.
func (m Metadata) TimeAt(pts int64) time.Duration {
	return time.Duration(m.Timebase.ScaleNanos(pts))
}

// PTSAt returns the frame covering t, clamped to [0, TotalFrames-1].
// Frame boundaries are those of TimeAt, so PTSAt(TimeAt(p)) == p.
func (m Metadata) PTSAt(t time.Duration) int64 {
	pts := m.Timebase.UnitsAt(int64(t))
	if m.TimeAt(pts+1) <= t {
		pts++
	}
	if pts < 0 {
		pts = 0
	}
	if m.TotalFrames > 0 && pts >= m.TotalFrames {
		pts = m.TotalFrames - 1
	}
	return pts
}

// PlaneSizes holds the luma plane size and the size of each chroma plane.
type PlaneSizes struct {
	Y  int
	UV int
}

// NewMetadata derives chroma geometry from luma geometry and pixel format.
func NewMetadata(width, height int, format PixelFormat, timebase Rational, totalFrames int64) Metadata {
	if format == "" {
		format = PixelFormatYUV420P
	}
	sx, sy := format.ChromaShift()
	m := Metadata{
		YWidth:      width,
		YHeight:     height,
		UVWidth:     (width + (1 << sx) - 1) >> sx,
		UVHeight:    (height + (1 << sy) - 1) >> sy,
		PixelFormat: format,
		Timebase:    timebase,
		TotalFrames: totalFrames,
	}
	m.Duration = m.TimeAt(totalFrames)
	return m
}

// Planes references the three planes of one frame. The slices alias the
// owner's buffers.
type Planes struct {
	Y []byte
	U []byte
	V []byte
}
