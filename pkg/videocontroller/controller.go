// Package videocontroller keeps several streams in lock-step on one clock.
//
// A Controller owns the shared Timer and one FrameController per stream.
// All of that state lives on the goroutine running Run, the presentation
// context: clock ticks, decode completions, presenter completions and
// control calls are all delivered to it as messages. The exported control
// methods are safe for concurrent use; each one runs its work on the loop
// and returns once it has been applied.
package videocontroller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/user/vidsync/pkg/framecontroller"
	"github.com/user/vidsync/pkg/framequeue"
	"github.com/user/vidsync/pkg/media"
	"github.com/user/vidsync/pkg/ports"
	"github.com/user/vidsync/pkg/timer"
)

var (
	// ErrClosed is returned by control calls once Run has returned.
	ErrClosed = errors.New("videocontroller: closed")
	// ErrInvalidStream is returned when an opened stream has no usable
	// timebase or frames.
	ErrInvalidStream = errors.New("videocontroller: invalid stream")
	// ErrInvalidConfig is returned by New for missing collaborators.
	ErrInvalidConfig = errors.New("videocontroller: invalid config")
)

// Config holds the collaborators and settings of a Controller.
type Config struct {
	// QueueSize is the number of frame slots per stream.
	QueueSize int
	// Speed is the initial playback speed, 1/1 when zero.
	Speed          media.Rational
	DecoderFactory ports.DecoderFactory
	Presenter      ports.Presenter
	// Comparer is optional; diff mode is unavailable without it.
	Comparer ports.Comparer
	Logger   ports.Logger
}

type stream struct {
	id      uint64
	info    media.StreamInfo
	decoder ports.Decoder
	worker  *framecontroller.Worker
	fc      *framecontroller.FrameController
	cancel  context.CancelFunc
	group   errgroup.Group
	stats   StreamStats
}

type diffState struct {
	enabled bool
	a, b    uint64
}

// Controller is the aggregate of all live streams.
type Controller struct {
	queueSize int
	factory   ports.DecoderFactory
	presenter ports.Presenter
	comparer  ports.Comparer
	logger    ports.Logger

	cmds       chan func()
	results    chan framecontroller.DecodeResult
	presentIn  chan presentJob
	presentOut chan presentResult
	closed     chan struct{}
	events     broker

	// Everything below is owned by the loop.
	ctx     context.Context
	nextID  uint64
	streams []*stream
	retired []*stream
	timer   *timer.Timer
	jobs    []presentJob
	sink    *streamSink

	dir              media.Direction
	speed            media.Rational
	playing          bool
	seeking          bool
	reachedEnd       bool
	allReady         bool
	playAfterSeek    bool
	resumeAfterStall bool
	alignAfterReady  bool
	resumeAfterReady bool

	ready    map[uint64]bool
	atEnd    map[uint64]bool
	seekDone map[uint64]bool
	stalled  map[uint64]bool

	diff diffState
	psnr PSNRStats
	last props
}

// New creates a Controller. Call Run to start it.
func New(cfg Config) (*Controller, error) {
	if cfg.QueueSize < 2 {
		return nil, fmt.Errorf("%w: queue size %d", framequeue.ErrCapacity, cfg.QueueSize)
	}
	if cfg.DecoderFactory == nil || cfg.Presenter == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("%w: decoder factory, presenter and logger are required", ErrInvalidConfig)
	}
	speed := cfg.Speed
	if speed == (media.Rational{}) {
		speed = media.R(1, 1)
	}
	if !speed.Positive() {
		return nil, fmt.Errorf("%w: %s", timer.ErrInvalidSpeed, speed)
	}

	c := &Controller{
		queueSize:  cfg.QueueSize,
		factory:    cfg.DecoderFactory,
		presenter:  cfg.Presenter,
		comparer:   cfg.Comparer,
		logger:     cfg.Logger,
		cmds:       make(chan func()),
		results:    make(chan framecontroller.DecodeResult, 16),
		presentIn:  make(chan presentJob),
		presentOut: make(chan presentResult),
		closed:     make(chan struct{}),
		nextID:     1,
		dir:        media.Forward,
		speed:      speed,
		ready:      make(map[uint64]bool),
		atEnd:      make(map[uint64]bool),
		seekDone:   make(map[uint64]bool),
		stalled:    make(map[uint64]bool),
		last:       props{direction: media.Forward},
	}
	c.sink = &streamSink{c: c}
	return c, nil
}

// Run is the presentation loop. It returns when ctx is cancelled, after
// stopping the clock and every decode worker and closing the decoders.
func (c *Controller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.ctx = ctx

	var g errgroup.Group
	g.Go(func() error { return c.presentLoop(ctx) })

	for {
		var ticks <-chan timer.Tick
		if c.timer != nil {
			ticks = c.timer.Ticks()
		}
		var jobs chan<- presentJob
		var next presentJob
		if len(c.jobs) > 0 {
			jobs, next = c.presentIn, c.jobs[0]
			next.index, _ = c.find(next.id)
		}

		select {
		case <-ctx.Done():
			cancel()
			_ = g.Wait()
			return c.shutdown()
		case fn := <-c.cmds:
			fn()
		case tick := <-ticks:
			c.onTick(tick)
		case res := <-c.results:
			c.onDecodeDone(res)
		case res := <-c.presentOut:
			c.onPresented(res)
		case jobs <- next:
			c.jobs = c.jobs[1:]
		}
		c.publishProps()
	}
}

// shutdown stops every stream and closes the decoders.
func (c *Controller) shutdown() error {
	if c.timer != nil {
		c.timer.Close()
		c.timer = nil
	}
	all := append(c.retired, c.streams...)
	for _, s := range all {
		s.cancel()
	}
	var result *multierror.Error
	for _, s := range all {
		_ = s.group.Wait()
		if err := s.decoder.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close %s: %w", s.info.Path, err))
		}
	}
	c.streams, c.retired = nil, nil
	close(c.closed)
	c.events.close()
	return result.ErrorOrNil()
}

// Do runs fn on the loop and waits for it to finish. It fails only if fn
// could not be submitted.
func (c *Controller) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case c.cmds <- func() { fn(); close(done) }:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return ErrClosed
	}
	// Once the loop accepted fn it runs to completion.
	<-done
	return nil
}

// Subscribe returns a channel receiving every event published from now on.
// Events that do not fit in buffer are dropped. The channel is closed when
// Run returns.
func (c *Controller) Subscribe(buffer int) <-chan Event {
	return c.events.subscribe(buffer)
}

// Play starts playback in the current direction.
func (c *Controller) Play(ctx context.Context) error {
	return c.Do(ctx, c.play)
}

// Pause stops playback.
func (c *Controller) Pause(ctx context.Context) error {
	return c.Do(ctx, c.pause)
}

// TogglePlayPause pauses when playing or about to play, plays otherwise.
func (c *Controller) TogglePlayPause(ctx context.Context) error {
	return c.Do(ctx, c.togglePlayPause)
}

// StepForward pauses and advances by one clock tick.
func (c *Controller) StepForward(ctx context.Context) error {
	return c.Do(ctx, func() { c.step(media.Forward) })
}

// StepBackward pauses and moves back by one clock tick.
func (c *Controller) StepBackward(ctx context.Context) error {
	return c.Do(ctx, func() { c.step(media.Backward) })
}

// SeekTo moves every stream to the frame covering t.
func (c *Controller) SeekTo(ctx context.Context, t time.Duration) error {
	return c.Do(ctx, func() { c.seekTo(t) })
}

// JumpToFrame seeks to pts in the timebase of the first stream.
func (c *Controller) JumpToFrame(ctx context.Context, pts int64) error {
	return c.Do(ctx, func() { c.jumpToFrame(pts) })
}

// SetSpeed changes the playback speed multiplier.
func (c *Controller) SetSpeed(ctx context.Context, speed media.Rational) error {
	if !speed.Positive() {
		return fmt.Errorf("%w: %s", timer.ErrInvalidSpeed, speed)
	}
	return c.Do(ctx, func() { c.setSpeed(speed) })
}

// ToggleDirection reverses the playback direction.
func (c *Controller) ToggleDirection(ctx context.Context) error {
	return c.Do(ctx, c.toggleDirection)
}

// AddVideo opens a stream and adds it to the aggregate. It returns the
// index of the new stream. Opening happens on the calling goroutine.
func (c *Controller) AddVideo(ctx context.Context, info media.StreamInfo) (int, error) {
	dec, err := c.factory(info)
	if err != nil {
		return -1, fmt.Errorf("create decoder for %s: %w", info.Path, err)
	}
	meta, err := dec.Open(ctx, info)
	if err != nil {
		_ = dec.Close()
		return -1, fmt.Errorf("open %s: %w", info.Path, err)
	}
	if !meta.Timebase.Positive() || meta.TotalFrames <= 0 {
		_ = dec.Close()
		return -1, fmt.Errorf("%w: %s has timebase %s and %d frames", ErrInvalidStream, info.Path, meta.Timebase, meta.TotalFrames)
	}
	queue, err := framequeue.New(c.queueSize, meta.PlaneSizes())
	if err != nil {
		_ = dec.Close()
		return -1, err
	}

	index := -1
	if err := c.Do(ctx, func() { index = c.addVideo(info, dec, meta, queue) }); err != nil {
		_ = dec.Close()
		return -1, err
	}
	return index, nil
}

// RemoveVideo drops the stream at index. An invalid index is ignored.
func (c *Controller) RemoveVideo(ctx context.Context, index int) error {
	return c.Do(ctx, func() { c.removeVideo(index) })
}

// SetDiffMode routes the frames of streams a and b to the comparer. The
// comparison runs each time b renders.
func (c *Controller) SetDiffMode(ctx context.Context, enabled bool, a, b int) error {
	return c.Do(ctx, func() { c.setDiffMode(enabled, a, b) })
}

// Status returns a snapshot of the aggregate and per-stream state.
func (c *Controller) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.Do(ctx, func() { st = c.status() })
	return st, err
}
