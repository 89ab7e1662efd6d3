package videocontroller

import (
	"github.com/user/vidsync/pkg/framecontroller"
	"github.com/user/vidsync/pkg/framequeue"
)

// streamSink receives the requests and events of the FrameControllers. It
// runs on the loop.
type streamSink struct {
	c *Controller
}

func (k *streamSink) RequestUpload(id uint64, pts int64, slot *framequeue.Slot) {
	c := k.c
	_, s := c.find(id)
	if s == nil {
		return
	}
	side := -1
	if c.diff.enabled {
		switch id {
		case c.diff.a:
			side = 0
		case c.diff.b:
			side = 1
		}
	}
	c.jobs = append(c.jobs, presentJob{
		id:     id,
		pts:    pts,
		planes: slot.Planes,
		meta:   s.fc.Metadata(),
		side:   side,
	})
}

func (k *streamSink) RequestRender(id uint64) {
	c := k.c
	c.jobs = append(c.jobs, presentJob{
		id:      id,
		render:  true,
		side:    -1,
		compare: c.diff.enabled && id == c.diff.b,
	})
}

func (k *streamSink) Ready(id uint64) {
	c := k.c
	index, s := c.find(id)
	if s == nil {
		return
	}
	c.ready[id] = true
	c.emit(Event{Kind: EventReady, Index: index})
	c.updateReady()
}

func (k *streamSink) StartOfVideo(id uint64) {
	c := k.c
	if index, s := c.find(id); s != nil {
		c.emit(Event{Kind: EventStartOfVideo, Index: index})
	}
}

func (k *streamSink) EndOfVideo(id uint64, reached bool) {
	c := k.c
	index, s := c.find(id)
	if s == nil {
		return
	}
	if reached {
		c.atEnd[id] = true
	} else {
		delete(c.atEnd, id)
	}
	c.emit(Event{Kind: EventEndOfVideo, Index: index, Flag: reached})
	c.updateEnd()
}

func (k *streamSink) SeekCompleted(id uint64) {
	c := k.c
	index, s := c.find(id)
	if s == nil {
		return
	}
	c.emit(Event{Kind: EventSeekCompleted, Index: index})
	if !c.seeking {
		return
	}
	c.seekDone[id] = true
	if c.allSeekDone() {
		c.finishSeek()
	}
}

func (k *streamSink) DecoderStalled(id uint64, stalled bool) {
	c := k.c
	index, s := c.find(id)
	if s == nil {
		return
	}
	was := c.buffering()
	if stalled {
		c.stalled[id] = true
		s.stats.Stalls++
	} else {
		delete(c.stalled, id)
	}
	c.emit(Event{Kind: EventDecoderStalled, Index: index, Flag: stalled})

	switch now := c.buffering(); {
	case now && !was:
		c.logger.Info("Buffering on stream %d", index)
		if c.playing {
			c.stopClock()
			c.resumeAfterStall = true
		}
	case !now && was:
		c.logger.Info("Buffering finished")
		want := c.resumeAfterStall
		c.resumeAfterStall = false
		c.resume(want)
	}
}

func (k *streamSink) DecodeFailed(id uint64, err error) {
	c := k.c
	if index, s := c.find(id); s != nil {
		s.stats.DecodeFailures++
		c.emit(Event{Kind: EventDecodeFailed, Index: index, Err: err})
	}
}

func (k *streamSink) RenderFailed(id uint64, err error) {
	c := k.c
	if index, s := c.find(id); s != nil {
		s.stats.RenderFailures++
		c.logger.Warn("Render failed on stream %d: %v", index, err)
		c.emit(Event{Kind: EventRenderFailed, Index: index, Err: err})
	}
}

func (k *streamSink) Presented(id uint64, pts int64) {
	if _, s := k.c.find(id); s != nil {
		s.stats.Presented++
	}
}

var (
	_ framecontroller.PresentRequester = (*streamSink)(nil)
	_ framecontroller.EventSink        = (*streamSink)(nil)
)
