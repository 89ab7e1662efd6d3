package ports

import (
	"context"

	"github.com/user/vidsync/pkg/media"
)

// Presenter receives decoded frames for display.
// Calls are made from a single goroutine, one frame at a time.
type Presenter interface {
	// Upload copies the frame planes of a stream. The planes are only valid
	// for the duration of the call.
	Upload(ctx context.Context, stream int, pts int64, planes media.Planes, meta media.Metadata) error

	// Render displays the last uploaded frame of a stream.
	Render(ctx context.Context, stream int) error
}

// Comparer measures the difference between two streams in diff mode.
type Comparer interface {
	// Upload stores the frame for one side (0 or 1) of the comparison.
	Upload(ctx context.Context, side int, pts int64, planes media.Planes, meta media.Metadata) error

	// Compare returns the PSNR in dB between the last uploaded frames of
	// both sides.
	Compare(ctx context.Context) (float64, error)
}
