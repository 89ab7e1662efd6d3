package videocontroller

import (
	"context"

	"github.com/user/vidsync/pkg/media"
)

// presentJob is one upload or render handed to the presenter goroutine.
type presentJob struct {
	id     uint64
	index  int
	render bool

	pts    int64
	planes media.Planes
	meta   media.Metadata

	side    int // comparer side of an upload, -1 when not compared
	compare bool
}

type presentResult struct {
	id     uint64
	render bool
	err    error

	psnr       float64
	compared   bool
	compareErr error
}

// presentLoop performs presenter calls one at a time, off the loop.
func (c *Controller) presentLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case job := <-c.presentIn:
			res := c.runJob(ctx, job)
			select {
			case c.presentOut <- res:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (c *Controller) runJob(ctx context.Context, job presentJob) presentResult {
	res := presentResult{id: job.id, render: job.render}

	if !job.render {
		res.err = c.presenter.Upload(ctx, job.index, job.pts, job.planes, job.meta)
		if res.err == nil && job.side >= 0 && c.comparer != nil {
			res.compareErr = c.comparer.Upload(ctx, job.side, job.pts, job.planes, job.meta)
		}
		return res
	}

	res.err = c.presenter.Render(ctx, job.index)
	if res.err == nil && job.compare && c.comparer != nil {
		res.psnr, res.compareErr = c.comparer.Compare(ctx)
		res.compared = res.compareErr == nil
	}
	return res
}
