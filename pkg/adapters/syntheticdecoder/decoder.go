// Package syntheticdecoder provides a deterministic in-memory decoder that
// generates test-pattern frames. It stands in for a real decoder in tests
// and in the demo command.
package syntheticdecoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/user/vidsync/pkg/media"
	"github.com/user/vidsync/pkg/ports"
)

// ErrNotOpen is returned when frames are requested before Open.
var ErrNotOpen = errors.New("syntheticdecoder: not open")

// Options configures the generated stream.
type Options struct {
	Width     int
	Height    int
	FrameRate media.Rational // frames per second
	Frames    int64
	// Announced is the frame count reported by Open when it differs from
	// the frames actually produced.
	Announced int64
	// GOP makes Seek land on the previous multiple of GOP, like a decoder
	// that can only start at key frames. 0 or 1 seeks exactly.
	GOP int64
	// Offset shifts the pattern so two streams can differ by a known amount.
	Offset byte
	// Latency is slept before every frame.
	Latency time.Duration
	// FailFunc, when set, can fail the decode of a frame.
	FailFunc func(pts int64) error
}

// DefaultOptions returns a small 25 fps stream of 250 frames.
func DefaultOptions() Options {
	return Options{
		Width:     64,
		Height:    36,
		FrameRate: media.R(25, 1),
		Frames:    250,
	}
}

// Decoder generates frames on demand.
type Decoder struct {
	opts Options

	mu     sync.Mutex
	meta   media.Metadata
	pos    int64
	opened bool
	reads  int64
	seeks  int64
}

// New creates a decoder with the given options.
func New(opts Options) *Decoder {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 64, 36
	}
	if !opts.FrameRate.Positive() {
		opts.FrameRate = media.R(25, 1)
	}
	return &Decoder{opts: opts}
}

// Factory returns a ports.DecoderFactory that creates decoders with opts.
// Open applies the width, height and frame rate of the stream info over
// opts.
func Factory(opts Options) ports.DecoderFactory {
	return func(info media.StreamInfo) (ports.Decoder, error) {
		return New(opts), nil
	}
}

// Open reports the stream metadata.
func (d *Decoder) Open(ctx context.Context, info media.StreamInfo) (media.Metadata, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	width, height := d.opts.Width, d.opts.Height
	if info.Width > 0 && info.Height > 0 {
		width, height = info.Width, info.Height
	}
	rate := d.opts.FrameRate
	if info.FrameRate.Positive() {
		rate = info.FrameRate
	}

	total := d.opts.Frames
	if d.opts.Announced > 0 {
		total = d.opts.Announced
	}
	d.meta = media.NewMetadata(width, height, info.PixelFormat, rate.Inverse(), total)
	d.pos = 0
	d.opened = true
	return d.meta, nil
}

// Seek moves to pts, or to the key frame before it when GOP is set.
func (d *Decoder) Seek(ctx context.Context, pts int64) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return 0, ErrNotOpen
	}

	pts = min(max(pts, 0), d.opts.Frames)
	if d.opts.GOP > 1 {
		pts -= pts % d.opts.GOP
	}
	d.pos = pts
	d.seeks++
	return pts, nil
}

// ReadFrame fills dst with the pattern of the current frame.
func (d *Decoder) ReadFrame(ctx context.Context, dst media.Planes) error {
	d.mu.Lock()
	if !d.opened {
		d.mu.Unlock()
		return ErrNotOpen
	}
	pts := d.pos
	d.mu.Unlock()

	if pts >= d.opts.Frames {
		return io.EOF
	}
	if d.opts.Latency > 0 {
		timer := time.NewTimer(d.opts.Latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	if d.opts.FailFunc != nil {
		if err := d.opts.FailFunc(pts); err != nil {
			return fmt.Errorf("frame %d: %w", pts, err)
		}
	}

	Fill(dst, pts, d.opts.Offset)

	d.mu.Lock()
	d.pos = pts + 1
	d.reads++
	d.mu.Unlock()
	return nil
}

// Close marks the decoder closed.
func (d *Decoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened = false
	return nil
}

// Stats returns how many frames were decoded and how many seeks were made.
func (d *Decoder) Stats() (reads, seeks int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads, d.seeks
}

// Fill writes the test pattern of pts into dst. The first two luma bytes
// carry the PTS so tests can verify which frame a buffer holds.
func Fill(dst media.Planes, pts int64, offset byte) {
	for i := range dst.Y {
		dst.Y[i] = byte(int64(i) + pts*3 + int64(offset))
	}
	if len(dst.Y) >= 2 {
		dst.Y[0] = byte(pts)
		dst.Y[1] = byte(pts >> 8)
	}
	for i := range dst.U {
		dst.U[i] = 128 + byte(pts%16)
	}
	for i := range dst.V {
		dst.V[i] = 128 - byte(pts%16)
	}
}

// PTSOf returns the PTS stamped into a buffer filled by Fill.
func PTSOf(planes media.Planes) int64 {
	if len(planes.Y) < 2 {
		return -1
	}
	return int64(planes.Y[0]) | int64(planes.Y[1])<<8
}

var _ ports.Decoder = (*Decoder)(nil)
