package psnrcomparer

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/user/vidsync/pkg/adapters/syntheticdecoder"
	"github.com/user/vidsync/pkg/media"
)

func frame(width, height int, pts int64, offset byte) (media.Planes, media.Metadata) {
	meta := media.NewMetadata(width, height, media.PixelFormatYUV420P, media.R(1, 25), 10)
	sizes := meta.PlaneSizes()
	planes := media.Planes{
		Y: make([]byte, sizes.Y),
		U: make([]byte, sizes.UV),
		V: make([]byte, sizes.UV),
	}
	syntheticdecoder.Fill(planes, pts, offset)
	return planes, meta
}

func TestPSNR(t *testing.T) {
	tests := []struct {
		name string
		a, b []byte
		want float64
	}{
		{"identical", []byte{1, 2, 3}, []byte{1, 2, 3}, math.Inf(1)},
		{"empty", nil, nil, math.Inf(1)},
		// MSE 1 gives 20*log10(255).
		{"off by one", []byte{10, 10}, []byte{11, 9}, 10 * math.Log10(255*255)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PSNR(tt.a, tt.b)
			if math.IsInf(tt.want, 1) {
				if !math.IsInf(got, 1) {
					t.Errorf("PSNR = %v, want +Inf", got)
				}
				return
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("PSNR = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompareRequiresBothSides(t *testing.T) {
	c := New()
	ctx := context.Background()
	planes, meta := frame(16, 16, 0, 0)

	if _, err := c.Compare(ctx); !errors.Is(err, ErrMissingFrame) {
		t.Errorf("err = %v, want ErrMissingFrame", err)
	}
	if err := c.Upload(ctx, 0, 0, planes, meta); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Compare(ctx); !errors.Is(err, ErrMissingFrame) {
		t.Errorf("err = %v, want ErrMissingFrame", err)
	}
	if err := c.Upload(ctx, 2, 0, planes, meta); err == nil {
		t.Error("expected error for side 2")
	}
}

func TestCompareCopiesPlanes(t *testing.T) {
	c := New()
	ctx := context.Background()
	a, meta := frame(16, 16, 4, 0)
	b, _ := frame(16, 16, 4, 0)

	if err := c.Upload(ctx, 0, 4, a, meta); err != nil {
		t.Fatal(err)
	}
	if err := c.Upload(ctx, 1, 4, b, meta); err != nil {
		t.Fatal(err)
	}
	// Reusing the caller's buffers must not change the stored frames.
	syntheticdecoder.Fill(a, 9, 50)

	got, err := c.Compare(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsInf(got, 1) {
		t.Errorf("PSNR = %v, want +Inf for identical frames", got)
	}
}

func TestCompareDifferentFrames(t *testing.T) {
	c := New()
	ctx := context.Background()
	a, meta := frame(16, 16, 4, 0)
	b, _ := frame(16, 16, 4, 2)

	_ = c.Upload(ctx, 0, 4, a, meta)
	_ = c.Upload(ctx, 1, 4, b, meta)

	got, err := c.Compare(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if math.IsInf(got, 0) || got <= 0 {
		t.Errorf("PSNR = %v, want a finite positive value", got)
	}
}

func TestCompareGeometryMismatch(t *testing.T) {
	c := New()
	ctx := context.Background()
	a, metaA := frame(16, 16, 0, 0)
	b, metaB := frame(32, 16, 0, 0)

	_ = c.Upload(ctx, 0, 0, a, metaA)
	_ = c.Upload(ctx, 1, 0, b, metaB)

	if _, err := c.Compare(ctx); !errors.Is(err, ErrGeometryMismatch) {
		t.Errorf("err = %v, want ErrGeometryMismatch", err)
	}
}
