// Package nullpresenter provides a headless presenter that only counts
// frames.
package nullpresenter

import (
	"context"
	"sync"

	"github.com/user/vidsync/pkg/media"
	"github.com/user/vidsync/pkg/ports"
)

// Counts is what one stream received.
type Counts struct {
	Uploads int64
	Renders int64
	LastPTS int64
}

// Presenter is a no-op implementation of ports.Presenter.
// It discards frames and keeps per-stream counters.
type Presenter struct {
	mu     sync.Mutex
	counts map[int]*Counts
}

// New creates a new Presenter.
func New() *Presenter {
	return &Presenter{counts: make(map[int]*Counts)}
}

// Upload records the frame without copying it.
func (p *Presenter) Upload(ctx context.Context, stream int, pts int64, planes media.Planes, meta media.Metadata) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.entry(stream)
	c.Uploads++
	c.LastPTS = pts
	return nil
}

// Render records the render.
func (p *Presenter) Render(ctx context.Context, stream int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entry(stream).Renders++
	return nil
}

// Counts returns the counters of a stream.
func (p *Presenter) Counts(stream int) Counts {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.counts[stream]; ok {
		return *c
	}
	return Counts{LastPTS: -1}
}

func (p *Presenter) entry(stream int) *Counts {
	c, ok := p.counts[stream]
	if !ok {
		c = &Counts{LastPTS: -1}
		p.counts[stream] = c
	}
	return c
}

// Ensure Presenter implements ports.Presenter
var _ ports.Presenter = (*Presenter)(nil)
