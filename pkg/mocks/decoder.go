package mocks

import (
	"context"
	"io"
	"sync"

	"github.com/user/vidsync/pkg/media"
	"github.com/user/vidsync/pkg/ports"
)

// Decoder is a mock implementation of ports.Decoder. Without hooks it
// reports Metadata from Open and returns io.EOF from ReadFrame.
type Decoder struct {
	Metadata media.Metadata

	OpenFunc      func(ctx context.Context, info media.StreamInfo) (media.Metadata, error)
	SeekFunc      func(ctx context.Context, pts int64) (int64, error)
	ReadFrameFunc func(ctx context.Context, dst media.Planes) error
	CloseFunc     func() error

	mu     sync.Mutex
	opened []media.StreamInfo
	closed int
}

func (m *Decoder) Open(ctx context.Context, info media.StreamInfo) (media.Metadata, error) {
	m.mu.Lock()
	m.opened = append(m.opened, info)
	m.mu.Unlock()
	if m.OpenFunc != nil {
		return m.OpenFunc(ctx, info)
	}
	return m.Metadata, nil
}

func (m *Decoder) Seek(ctx context.Context, pts int64) (int64, error) {
	if m.SeekFunc != nil {
		return m.SeekFunc(ctx, pts)
	}
	return pts, nil
}

func (m *Decoder) ReadFrame(ctx context.Context, dst media.Planes) error {
	if m.ReadFrameFunc != nil {
		return m.ReadFrameFunc(ctx, dst)
	}
	return io.EOF
}

func (m *Decoder) Close() error {
	m.mu.Lock()
	m.closed++
	m.mu.Unlock()
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Opened returns the stream infos passed to Open.
func (m *Decoder) Opened() []media.StreamInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]media.StreamInfo(nil), m.opened...)
}

// Closed returns how many times Close was called.
func (m *Decoder) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ ports.Decoder = (*Decoder)(nil)
