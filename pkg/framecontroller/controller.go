// Package framecontroller bridges one stream's decode worker and the
// presenter. A FrameController lives on the presentation goroutine and is
// driven by clock ticks, control calls and completion messages; it never
// blocks.
package framecontroller

import (
	"github.com/user/vidsync/pkg/framequeue"
	"github.com/user/vidsync/pkg/media"
	"github.com/user/vidsync/pkg/ports"
)

// DecodeRequester accepts decode requests for one stream. *Worker
// implements it.
type DecodeRequester interface {
	Request(req DecodeRequest) bool
}

// PresentRequester forwards frames to the presenter. Completions come back
// through OnUploaded and OnRendered.
type PresentRequester interface {
	RequestUpload(id uint64, pts int64, slot *framequeue.Slot)
	RequestRender(id uint64)
}

// EventSink receives the stream-local events of a FrameController.
type EventSink interface {
	Ready(id uint64)
	StartOfVideo(id uint64)
	EndOfVideo(id uint64, reached bool)
	SeekCompleted(id uint64)
	DecoderStalled(id uint64, stalled bool)
	DecodeFailed(id uint64, err error)
	RenderFailed(id uint64, err error)
	Presented(id uint64, pts int64)
}

// Config holds the collaborators of a FrameController.
type Config struct {
	ID        uint64
	Metadata  media.Metadata
	Queue     *framequeue.Queue
	Decoder   DecodeRequester
	Presenter PresentRequester
	Events    EventSink
	Logger    ports.Logger
}

// FrameController orchestrates decoding and presentation of one stream.
//
// A presented slot is borrowed until the render completes. A decoder seek
// can write any slot, so a presentation never overlaps one: refills wait for
// the presentation to finish and frames are not presented while a refill is
// outstanding. A seek into the queue also waits for every outstanding decode.
type FrameController struct {
	id        uint64
	meta      media.Metadata
	queue     *framequeue.Queue
	decoder   DecodeRequester
	presenter PresentRequester
	events    EventSink
	logger    ports.Logger

	dir        media.Direction
	prefilling bool
	stalled    bool
	awaited    int64
	seekTarget int64
	stepTarget int64
	tickTarget int64
	pending    int
	refills    int // outstanding DecodeSeek requests
	generation uint64
	reachedEnd bool
	retried    bool

	presenting bool
	presentPTS int64
	presentEOS bool
	shown      int64

	lo, hi    int64
	lastCount int
}

// New creates a FrameController. Call Start to begin prefilling.
func New(cfg Config) *FrameController {
	return &FrameController{
		id:         cfg.ID,
		meta:       cfg.Metadata,
		queue:      cfg.Queue,
		decoder:    cfg.Decoder,
		presenter:  cfg.Presenter,
		events:     cfg.Events,
		logger:     cfg.Logger,
		dir:        media.Forward,
		awaited:    -1,
		seekTarget: -1,
		stepTarget: -1,
		tickTarget: -1,
		shown:      -1,
		lo:         -1,
		hi:         -1,
	}
}

// ID returns the stable identifier of the stream.
func (c *FrameController) ID() uint64 { return c.id }

// Metadata returns the stream metadata. TotalFrames is lowered if the
// decoder ended before the announced frame count.
func (c *FrameController) Metadata() media.Metadata { return c.meta }

// Queue returns the frame queue of the stream.
func (c *FrameController) Queue() *framequeue.Queue { return c.queue }

// Shown returns the last rendered PTS, -1 before the first frame.
func (c *FrameController) Shown() int64 { return c.shown }

// Prefilling reports whether the first frame has not been rendered yet.
func (c *FrameController) Prefilling() bool { return c.prefilling }

// Stalled reports whether presentation waits on the decoder.
func (c *FrameController) Stalled() bool { return c.stalled }

// ReachedEnd reports whether the last frame was presented moving forward.
func (c *FrameController) ReachedEnd() bool { return c.reachedEnd }

// Direction returns the playback direction.
func (c *FrameController) Direction() media.Direction { return c.dir }

// DecodeInFlight reports whether a decode request is outstanding.
func (c *FrameController) DecodeInFlight() bool { return c.pending > 0 }

// Start requests the initial decode of half the queue and enters prefill.
func (c *FrameController) Start() {
	c.prefilling = true
	c.logger.Debug("Prefilling %d frames", c.queue.Capacity()/2)
	c.request(DecodeRequest{Kind: DecodeForward, Count: c.queue.Capacity() / 2})
}

// OnTick presents pts for a clock tick that advanced this stream.
func (c *FrameController) OnTick(pts int64) {
	if c.prefilling || c.seekTarget >= 0 {
		return
	}
	if c.presenting {
		c.tickTarget = pts
		return
	}
	c.show(pts)
}

// Step presents pts for a single step.
func (c *FrameController) Step(pts int64) {
	if c.prefilling || pts < 0 || pts >= c.meta.TotalFrames {
		return
	}
	c.stepTarget = pts
	c.tickTarget = -1
	if !c.presenting {
		c.advance(false)
	}
}

// SeekFrame presents pts, refilling the queue around it when the frame is
// not buffered. Completion is reported with SeekCompleted once pts is
// rendered. While a frame is being presented the refill waits for it.
func (c *FrameController) SeekFrame(pts int64) {
	c.generation++
	if c.stalled {
		c.clearStall()
	}
	c.tickTarget, c.stepTarget = -1, -1
	c.retried = false

	pts = min(max(pts, 0), c.meta.TotalFrames-1)
	c.seekTarget = pts
	if c.reachedEnd && pts != c.meta.TotalFrames-1 {
		c.setEnd(false)
	}

	buffered := c.pending == 0 && c.queue.Peek(pts) != nil
	if buffered {
		c.logger.Debug("Seek to %d served from queue", pts)
	} else {
		c.logger.Debug("Seek to %d requires decoder seek", pts)
	}
	switch {
	case c.presenting:
		// finishPresentation runs advance, which serves or refills the target.
	case buffered:
		c.advance(false)
	default:
		c.refill(pts)
	}
}

// SetDirection changes the playback direction and the backfill direction.
func (c *FrameController) SetDirection(dir media.Direction) {
	if c.dir == dir {
		return
	}
	c.dir = dir
	if !c.presenting {
		c.backfill(true)
	}
}

// OnDecodeDone consumes a decode completion.
func (c *FrameController) OnDecodeDone(res DecodeResult) {
	if c.pending > 0 {
		c.pending--
	}
	if res.Kind == DecodeSeek && c.refills > 0 {
		c.refills--
	}
	c.lo, c.hi = res.Lo, res.Hi
	if res.Total > 0 && res.Total < c.meta.TotalFrames {
		c.logger.Info("Stream ended early at frame %d", res.Total)
		c.meta.TotalFrames = res.Total
	}
	current := res.Generation == c.generation

	if res.Err != nil {
		if current {
			c.events.DecodeFailed(c.id, res.Err)
		}
		c.retry()
		return
	}

	c.lastCount = res.Count
	if current && res.Kind == DecodeSeek && c.seekTarget >= 0 && res.SeekedPTS >= 0 {
		c.seekTarget = res.SeekedPTS
	}
	if !c.presenting {
		c.advance(false)
	}
}

// OnUploaded consumes an upload completion and requests the render.
func (c *FrameController) OnUploaded(err error) {
	if err != nil {
		c.events.RenderFailed(c.id, err)
		c.finishPresentation(false)
		return
	}
	c.presenter.RequestRender(c.id)
}

// OnRendered consumes a render completion.
func (c *FrameController) OnRendered(err error) {
	if err != nil {
		c.events.RenderFailed(c.id, err)
	}
	c.finishPresentation(err == nil)
}

func (c *FrameController) finishPresentation(ok bool) {
	c.presenting = false
	pts := c.presentPTS

	if ok {
		c.shown = pts
		c.events.Presented(c.id, pts)
		switch {
		case c.presentEOS && c.dir == media.Forward && !c.reachedEnd:
			c.setEnd(true)
		case c.reachedEnd && !c.presentEOS:
			c.setEnd(false)
		}
		if pts == 0 && c.dir == media.Backward {
			c.events.StartOfVideo(c.id)
		}
	}

	if c.prefilling {
		c.prefilling = false
		c.logger.Info("Stream ready")
		c.events.Ready(c.id)
	}
	if c.seekTarget == pts {
		c.seekTarget = -1
		c.events.SeekCompleted(c.id)
	}
	if c.stepTarget == pts {
		c.stepTarget = -1
	}
	c.advance(true)
}

// advance presents the most urgent pending frame, or refills the queue when
// nothing is waiting. It must only run while nothing is being presented.
func (c *FrameController) advance(rendered bool) {
	switch {
	case c.prefilling:
		c.present(0)
		return
	case c.seekTarget >= 0:
		if c.pending > 0 {
			return
		}
		if !c.present(c.seekTarget) {
			c.refill(c.seekTarget)
		}
		return
	case c.stepTarget >= 0:
		c.show(c.stepTarget)
		return
	case c.stalled:
		if c.present(c.awaited) {
			c.clearStall()
			return
		}
		if c.awaited >= c.meta.TotalFrames {
			c.clearStall()
		} else if c.pending == 0 {
			c.retry()
		}
		return
	case c.tickTarget >= 0:
		pts := c.tickTarget
		c.tickTarget = -1
		c.show(pts)
		return
	}
	c.backfill(rendered)
}

// show presents pts or stalls on it.
func (c *FrameController) show(pts int64) bool {
	if c.present(pts) {
		if c.stalled {
			c.clearStall()
		}
		return true
	}
	c.miss(pts)
	return false
}

func (c *FrameController) present(pts int64) bool {
	if c.refills > 0 {
		return false
	}
	slot := c.queue.ReadAt(pts)
	if slot == nil {
		return false
	}
	c.presenting = true
	c.presentPTS = pts
	c.presentEOS = slot.EOS()
	c.presenter.RequestUpload(c.id, pts, slot)
	return true
}

func (c *FrameController) miss(pts int64) {
	if pts < 0 || pts >= c.meta.TotalFrames {
		return
	}
	if c.reachedEnd && c.dir == media.Forward {
		return
	}
	c.awaited = pts
	if !c.stalled {
		c.stalled = true
		c.logger.Info("Frame %d not decoded yet, stalling", pts)
		c.events.DecoderStalled(c.id, true)
	}
	if c.pending == 0 {
		c.refill(pts)
	}
}

func (c *FrameController) clearStall() {
	c.stalled = false
	c.awaited = -1
	c.retried = false
	c.logger.Info("Stall cleared")
	c.events.DecoderStalled(c.id, false)
}

func (c *FrameController) setEnd(reached bool) {
	c.reachedEnd = reached
	c.events.EndOfVideo(c.id, reached)
}

// retry issues the single recovery refill for a stalled stream, a prefill
// or a seek whose decode failed. Further failures leave the stream stalled.
// It is deferred to the end of an ongoing presentation.
func (c *FrameController) retry() {
	if c.pending > 0 || c.retried || c.presenting {
		return
	}
	var target int64
	switch {
	case c.stalled:
		target = c.awaited
	case c.prefilling:
		target = 0
	default:
		target = c.seekTarget
	}
	if target < 0 {
		return
	}
	c.retried = true
	c.logger.Info("Retrying decode at frame %d", target)
	c.refill(target)
}

// refill asks the decoder to seek to pts and decode half a queue in the
// current direction. Completions of earlier requests become stale. It must
// only run while nothing is being presented.
func (c *FrameController) refill(pts int64) {
	c.generation++
	c.request(DecodeRequest{
		Kind:      DecodeSeek,
		PTS:       pts,
		Count:     c.queue.Capacity() / 2,
		Direction: c.dir,
	})
}

// backfill requests more frames in the playback direction while the queue
// has headroom. After a decode that produced nothing it waits for the next
// render to free space.
func (c *FrameController) backfill(rendered bool) {
	if c.pending > 0 || c.prefilling || c.stalled {
		return
	}
	if !rendered && c.lastCount == 0 {
		return
	}

	kind := DecodeForward
	if c.dir == media.Backward {
		if c.lo <= 0 {
			return
		}
		kind = DecodeBackward
	} else if c.hi < 0 || c.hi >= c.meta.TotalFrames-1 {
		return
	}

	n := c.queue.EmptyCount(c.dir)
	if n == 0 {
		return
	}
	c.request(DecodeRequest{Kind: kind, Count: n})
}

func (c *FrameController) request(req DecodeRequest) {
	req.Generation = c.generation
	if !c.decoder.Request(req) {
		c.logger.Warn("Decode request dropped, worker busy")
		return
	}
	c.pending++
	if req.Kind == DecodeSeek {
		c.refills++
	}
}
