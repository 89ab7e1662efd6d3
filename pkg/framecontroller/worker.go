package framecontroller

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/user/vidsync/pkg/framequeue"
	"github.com/user/vidsync/pkg/media"
	"github.com/user/vidsync/pkg/ports"
)

// skipLimit is how far ahead of the decoder position a forward target may be
// before the worker seeks instead of decoding and discarding frames.
const skipLimit = 32

// DecodeKind identifies a decode request.
type DecodeKind int

const (
	DecodeForward DecodeKind = iota
	DecodeBackward
	DecodeSeek
)

// String returns the kind name.
func (k DecodeKind) String() string {
	switch k {
	case DecodeBackward:
		return "backward"
	case DecodeSeek:
		return "seek"
	default:
		return "forward"
	}
}

// DecodeRequest is sent from a FrameController to its decode worker.
type DecodeRequest struct {
	Kind       DecodeKind
	Count      int
	PTS        int64           // seek target
	Direction  media.Direction // refill direction after a seek
	Generation uint64
}

// DecodeResult is delivered back to the presentation loop when a request
// has been handled.
type DecodeResult struct {
	ID         uint64
	Kind       DecodeKind
	Generation uint64
	Count      int   // frames published
	SeekedPTS  int64 // frame the seek landed on
	Lo, Hi     int64 // decoded range now held by the queue, -1 when empty
	Total      int64 // frame count, lowered when the stream ended early
	Err        error
}

// Worker is the decode context of one stream. It is the only producer of
// its queue.
type Worker struct {
	id       uint64
	decoder  ports.Decoder
	queue    *framequeue.Queue
	total    int64
	requests chan DecodeRequest
	results  chan<- DecodeResult
	scratch  media.Planes
	logger   ports.Logger

	pos    int64 // PTS the decoder returns next, -1 when unknown
	lo, hi int64
}

// NewWorker creates a worker that fills queue from decoder and reports to
// results.
func NewWorker(id uint64, decoder ports.Decoder, queue *framequeue.Queue, meta media.Metadata, results chan<- DecodeResult, logger ports.Logger) *Worker {
	sizes := queue.PlaneSizes()
	return &Worker{
		id:       id,
		decoder:  decoder,
		queue:    queue,
		total:    meta.TotalFrames,
		requests: make(chan DecodeRequest, 8),
		results:  results,
		scratch: media.Planes{
			Y: make([]byte, sizes.Y),
			U: make([]byte, sizes.UV),
			V: make([]byte, sizes.UV),
		},
		logger: logger,
		pos:    0,
		lo:     -1,
		hi:     -1,
	}
}

// Request queues a decode request. It never blocks; it returns false when
// the worker is too far behind to accept more work.
func (w *Worker) Request(req DecodeRequest) bool {
	select {
	case w.requests <- req:
		return true
	default:
		return false
	}
}

// Run handles requests until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-w.requests:
			res := w.handle(ctx, req)
			select {
			case w.results <- res:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, req DecodeRequest) DecodeResult {
	res := DecodeResult{
		ID:         w.id,
		Kind:       req.Kind,
		Generation: req.Generation,
		SeekedPTS:  -1,
	}

	var err error
	switch req.Kind {
	case DecodeForward:
		res.Count, err = w.forward(ctx, req.Count)
	case DecodeBackward:
		res.Count, err = w.backward(ctx, req.Count)
	case DecodeSeek:
		res.SeekedPTS, res.Count, err = w.seek(ctx, req.PTS, req.Count, req.Direction)
	}
	if err != nil {
		// The decoder position is unknown after a failure.
		w.pos = -1
		res.Err = fmt.Errorf("%s decode: %w", req.Kind, err)
		w.logger.Warn("Decode failed: %v", err)
	} else {
		w.logger.Debug("Decoded %d frames (%s), range %d-%d", res.Count, req.Kind, w.lo, w.hi)
	}
	res.Lo, res.Hi, res.Total = w.lo, w.hi, w.total
	return res
}

// forward decodes up to n frames after the decoded range, starting at 0 on
// an empty queue.
func (w *Worker) forward(ctx context.Context, n int) (int, error) {
	if w.hi >= 0 && w.queue.ProducerDirection() != media.Forward {
		w.queue.PublishDirection(w.hi, media.Forward)
	}
	n = min(n, w.queue.EmptyCount(media.Forward))
	start := w.hi + 1
	if rest := w.total - start; int64(n) > rest {
		n = int(max(rest, 0))
	}
	if n == 0 {
		return 0, nil
	}
	if err := w.position(ctx, start); err != nil {
		return 0, err
	}
	return w.decodeAscending(ctx, start, n)
}

// backward decodes up to n frames before the decoded range. Frames are
// decoded in ascending order and published together at the lowest PTS.
func (w *Worker) backward(ctx context.Context, n int) (int, error) {
	if w.lo <= 0 {
		return 0, nil
	}
	if w.queue.ProducerDirection() != media.Backward {
		w.queue.PublishDirection(w.lo, media.Backward)
	}
	n = min(n, w.queue.EmptyCount(media.Backward))
	low := max(w.lo-int64(n), 0)
	if low >= w.lo {
		return 0, nil
	}

	end := w.lo
	if err := w.position(ctx, low); err != nil {
		return 0, err
	}
	// Every slot claimed below lo evicts the frame C above it.
	w.hi = min(w.hi, low+int64(w.queue.Capacity())-1)
	for pts := low; pts < end; pts++ {
		if err := w.decodeInto(ctx, pts); err != nil {
			return 0, err
		}
	}
	w.queue.Publish(low)
	w.lo = low
	return int(end - low), nil
}

// seek drops the decoded range and refills n frames around pts: pts and
// the frames after it when dir is forward, pts and the frames before it
// when dir is backward.
func (w *Worker) seek(ctx context.Context, pts int64, n int, dir media.Direction) (int64, int, error) {
	if w.total > 0 && pts >= w.total {
		pts = w.total - 1
	}
	pts = max(pts, 0)
	n = min(max(n, 1), w.queue.Capacity())

	w.queue.SetProducerDirection(dir)
	w.queue.Realign(pts)
	w.lo, w.hi = -1, -1

	if dir == media.Backward {
		low := max(pts-int64(n)+1, 0)
		if err := w.position(ctx, low); err != nil {
			return -1, 0, err
		}
		ended := false
		for p := low; p <= pts; p++ {
			if err := w.decodeInto(ctx, p); err != nil {
				if errors.Is(err, io.EOF) && p > low {
					w.total = p
					pts = p - 1
					ended = true
					break
				}
				return -1, 0, err
			}
		}
		w.queue.Publish(low)
		if ended {
			w.markLast(pts)
		}
		w.lo, w.hi = low, pts
		return pts, int(pts - low + 1), nil
	}

	if err := w.position(ctx, pts); err != nil {
		return -1, 0, err
	}
	count, err := w.decodeAscending(ctx, pts, n)
	if err != nil {
		return -1, count, err
	}
	if count == 0 {
		return -1, 0, fmt.Errorf("no frame at %d: %w", pts, io.ErrUnexpectedEOF)
	}
	return pts, count, nil
}

// decodeAscending decodes n frames from start, publishing each one.
func (w *Worker) decodeAscending(ctx context.Context, start int64, n int) (int, error) {
	capacity := int64(w.queue.Capacity())

	count := 0
	for pts := start; pts < start+int64(n); pts++ {
		if w.total > 0 && pts >= w.total {
			break
		}
		if err := w.decodeInto(ctx, pts); err != nil {
			if errors.Is(err, io.EOF) {
				w.total = pts
				w.markLast(pts - 1)
				break
			}
			return count, err
		}
		w.queue.Publish(pts)
		if w.lo < 0 {
			w.lo = pts
		}
		w.hi = pts
		w.lo = max(w.lo, w.hi-capacity+1)
		count++
	}
	return count, nil
}

// position moves the decoder to target, decoding and discarding frames
// when the target is a short distance ahead.
func (w *Worker) position(ctx context.Context, target int64) error {
	if w.pos < 0 || target < w.pos || target-w.pos > skipLimit {
		landed, err := w.decoder.Seek(ctx, target)
		if err != nil {
			return fmt.Errorf("seek to %d: %w", target, err)
		}
		w.pos = landed
	}
	for w.pos < target {
		if err := w.decoder.ReadFrame(ctx, w.scratch); err != nil {
			return fmt.Errorf("skip to %d: %w", target, err)
		}
		w.pos++
	}
	return nil
}

func (w *Worker) decodeInto(ctx context.Context, pts int64) error {
	slot := w.queue.WriteSlotAt(pts)
	if err := w.decoder.ReadFrame(ctx, slot.Planes); err != nil {
		return err
	}
	w.pos = pts + 1
	if w.total > 0 && pts == w.total-1 {
		slot.SetEOS(true)
	}
	return nil
}

// markLast flags pts as the final frame after the decoder ended early.
func (w *Worker) markLast(pts int64) {
	if pts < 0 {
		return
	}
	if s := w.queue.Peek(pts); s != nil {
		s.SetEOS(true)
	}
}
