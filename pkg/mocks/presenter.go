package mocks

import (
	"context"
	"sync"

	"github.com/user/vidsync/pkg/media"
	"github.com/user/vidsync/pkg/ports"
)

// Upload records one Presenter.Upload or Comparer.Upload call.
type Upload struct {
	Stream int
	PTS    int64
}

// Presenter is a mock implementation of ports.Presenter.
type Presenter struct {
	UploadFunc func(ctx context.Context, stream int, pts int64, planes media.Planes, meta media.Metadata) error
	RenderFunc func(ctx context.Context, stream int) error

	mu      sync.Mutex
	uploads []Upload
	renders map[int]int
}

// NewPresenter creates a new mock Presenter.
func NewPresenter() *Presenter {
	return &Presenter{renders: make(map[int]int)}
}

func (m *Presenter) Upload(ctx context.Context, stream int, pts int64, planes media.Planes, meta media.Metadata) error {
	if m.UploadFunc != nil {
		if err := m.UploadFunc(ctx, stream, pts, planes, meta); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, Upload{Stream: stream, PTS: pts})
	return nil
}

func (m *Presenter) Render(ctx context.Context, stream int) error {
	if m.RenderFunc != nil {
		if err := m.RenderFunc(ctx, stream); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.renders == nil {
		m.renders = make(map[int]int)
	}
	m.renders[stream]++
	return nil
}

// Uploads returns the recorded uploads (for test verification).
func (m *Presenter) Uploads() []Upload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Upload(nil), m.uploads...)
}

// UploadsOf returns the PTS uploaded for one stream.
func (m *Presenter) UploadsOf(stream int) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pts []int64
	for _, u := range m.uploads {
		if u.Stream == stream {
			pts = append(pts, u.PTS)
		}
	}
	return pts
}

// Renders returns how many renders a stream received.
func (m *Presenter) Renders(stream int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.renders[stream]
}

var _ ports.Presenter = (*Presenter)(nil)

// Comparer is a mock implementation of ports.Comparer.
type Comparer struct {
	UploadFunc  func(ctx context.Context, side int, pts int64, planes media.Planes, meta media.Metadata) error
	CompareFunc func(ctx context.Context) (float64, error)

	mu       sync.Mutex
	uploads  []Upload
	compares int
}

func (m *Comparer) Upload(ctx context.Context, side int, pts int64, planes media.Planes, meta media.Metadata) error {
	if m.UploadFunc != nil {
		if err := m.UploadFunc(ctx, side, pts, planes, meta); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, Upload{Stream: side, PTS: pts})
	return nil
}

func (m *Comparer) Compare(ctx context.Context) (float64, error) {
	m.mu.Lock()
	m.compares++
	m.mu.Unlock()
	if m.CompareFunc != nil {
		return m.CompareFunc(ctx)
	}
	return 42, nil
}

// Uploads returns the recorded uploads; Stream holds the side.
func (m *Comparer) Uploads() []Upload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Upload(nil), m.uploads...)
}

// Compares returns how many comparisons were requested.
func (m *Comparer) Compares() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.compares
}

var _ ports.Comparer = (*Comparer)(nil)
