package ports

import (
	"context"

	"github.com/user/vidsync/pkg/media"
)

// Decoder abstracts sequential access to one video stream.
// A decoder is owned by a single decode goroutine and is never called
// concurrently.
type Decoder interface {
	// Open opens the stream and reports its geometry and timebase.
	// Frames are produced in the geometry and pixel format of the returned
	// metadata.
	Open(ctx context.Context, info media.StreamInfo) (media.Metadata, error)

	// Seek positions the decoder so the next ReadFrame returns the frame at
	// the returned PTS, which is pts or the closest earlier frame the decoder
	// can start from.
	Seek(ctx context.Context, pts int64) (int64, error)

	// ReadFrame decodes the next frame into dst.
	// It returns io.EOF after the last frame.
	ReadFrame(ctx context.Context, dst media.Planes) error

	// Close releases decoder resources.
	Close() error
}

// DecoderFactory creates a decoder for each opened stream.
type DecoderFactory func(info media.StreamInfo) (Decoder, error)
