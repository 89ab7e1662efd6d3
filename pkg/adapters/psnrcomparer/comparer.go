// Package psnrcomparer measures the luma PSNR between two streams.
package psnrcomparer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/user/vidsync/pkg/media"
	"github.com/user/vidsync/pkg/ports"
)

var (
	// ErrMissingFrame is returned by Compare before both sides were uploaded.
	ErrMissingFrame = errors.New("psnrcomparer: frame missing")

	// ErrGeometryMismatch is returned when the two sides differ in size.
	ErrGeometryMismatch = errors.New("psnrcomparer: geometry mismatch")
)

type side struct {
	luma   []byte
	width  int
	height int
	pts    int64
	valid  bool
}

// Comparer keeps a copy of the last luma plane of each side.
type Comparer struct {
	mu    sync.Mutex
	sides [2]side
}

// New creates a Comparer.
func New() *Comparer {
	return &Comparer{}
}

// Upload copies the luma plane of side 0 or 1.
func (c *Comparer) Upload(ctx context.Context, index int, pts int64, planes media.Planes, meta media.Metadata) error {
	if index < 0 || index > 1 {
		return fmt.Errorf("psnrcomparer: side %d out of range", index)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &c.sides[index]
	s.luma = append(s.luma[:0], planes.Y...)
	s.width, s.height = meta.YWidth, meta.YHeight
	s.pts = pts
	s.valid = true
	return nil
}

// Compare returns the PSNR in dB of the two luma planes. Identical planes
// yield +Inf.
func (c *Comparer) Compare(ctx context.Context) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, b := &c.sides[0], &c.sides[1]
	if !a.valid || !b.valid {
		return 0, ErrMissingFrame
	}
	if a.width != b.width || a.height != b.height || len(a.luma) != len(b.luma) {
		return 0, fmt.Errorf("%w: %dx%d vs %dx%d", ErrGeometryMismatch, a.width, a.height, b.width, b.height)
	}
	return PSNR(a.luma, b.luma), nil
}

// PSNR computes the peak signal-to-noise ratio of two 8-bit planes of equal
// length.
func PSNR(a, b []byte) float64 {
	if len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	mse := sum / float64(len(a))
	if mse == 0 {
		return math.Inf(1)
	}
	return 10 * math.Log10(255*255/mse)
}

// Ensure Comparer implements ports.Comparer
var _ ports.Comparer = (*Comparer)(nil)
