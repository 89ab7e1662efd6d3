package videocontroller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/vidsync/pkg/adapters/logger"
	"github.com/user/vidsync/pkg/adapters/syntheticdecoder"
	"github.com/user/vidsync/pkg/media"
	"github.com/user/vidsync/pkg/mocks"
	"github.com/user/vidsync/pkg/ports"
)

const (
	waitFor = 5 * time.Second
	tick    = 5 * time.Millisecond
)

type fixture struct {
	t         *testing.T
	ctx       context.Context
	c         *Controller
	presenter *mocks.Presenter
	comparer  *mocks.Comparer
}

func newFixture(t *testing.T, factory ports.DecoderFactory) *fixture {
	t.Helper()
	f := &fixture{
		t:         t,
		presenter: mocks.NewPresenter(),
		comparer:  &mocks.Comparer{},
	}
	c, err := New(Config{
		QueueSize:      8,
		DecoderFactory: factory,
		Presenter:      f.presenter,
		Comparer:       f.comparer,
		Logger:         logger.NewNoop(),
	})
	require.NoError(t, err)
	f.c = c

	ctx, cancel := context.WithCancel(context.Background())
	f.ctx = ctx
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return f
}

func (f *fixture) add(fps int64) int {
	f.t.Helper()
	index, err := f.c.AddVideo(f.ctx, media.StreamInfo{
		Path:      "synthetic",
		FrameRate: media.R(fps, 1),
	})
	require.NoError(f.t, err)
	return index
}

func (f *fixture) status() Status {
	st, err := f.c.Status(f.ctx)
	if err != nil {
		return Status{}
	}
	return st
}

func (f *fixture) waitReady() {
	f.t.Helper()
	require.Eventually(f.t, func() bool { return f.status().Ready }, waitFor, tick)
}

func (f *fixture) shown() []int64 {
	var pts []int64
	for _, s := range f.status().Streams {
		pts = append(pts, s.Shown)
	}
	return pts
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{QueueSize: 1})
	assert.Error(t, err)

	_, err = New(Config{QueueSize: 8})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Config{
		QueueSize:      8,
		Speed:          media.R(-1, 1),
		DecoderFactory: syntheticdecoder.Factory(syntheticdecoder.DefaultOptions()),
		Presenter:      mocks.NewPresenter(),
		Logger:         logger.NewNoop(),
	})
	assert.Error(t, err)
}

func TestController_AddVideoClosesRejectedDecoders(t *testing.T) {
	openErr := errors.New("unsupported codec")
	failing := &mocks.Decoder{
		OpenFunc: func(context.Context, media.StreamInfo) (media.Metadata, error) {
			return media.Metadata{}, openErr
		},
	}
	empty := &mocks.Decoder{Metadata: media.Metadata{Timebase: media.R(1, 25)}}
	decoders := []*mocks.Decoder{failing, empty}

	next := 0
	f := newFixture(t, func(media.StreamInfo) (ports.Decoder, error) {
		dec := decoders[next]
		next++
		return dec, nil
	})

	_, err := f.c.AddVideo(f.ctx, media.StreamInfo{Path: "broken.mp4"})
	assert.ErrorIs(t, err, openErr)
	assert.Equal(t, 1, failing.Closed())
	require.Len(t, failing.Opened(), 1)
	assert.Equal(t, "broken.mp4", failing.Opened()[0].Path)

	_, err = f.c.AddVideo(f.ctx, media.StreamInfo{Path: "empty.mp4"})
	assert.ErrorIs(t, err, ErrInvalidStream)
	assert.Equal(t, 1, empty.Closed())

	assert.Empty(t, f.status().Streams)
}

func TestController_ReadyAfterEveryStreamPrefilled(t *testing.T) {
	f := newFixture(t, syntheticdecoder.Factory(syntheticdecoder.DefaultOptions()))
	events := f.c.Subscribe(256)

	assert.Equal(t, 0, f.add(25))
	assert.Equal(t, 1, f.add(30))
	f.waitReady()

	st := f.status()
	require.Len(t, st.Streams, 2)
	assert.Equal(t, media.R(1, 30), st.Streams[1].Metadata.Timebase)
	assert.Equal(t, []int64{0}, f.presenter.UploadsOf(0))
	assert.Equal(t, []int64{0}, f.presenter.UploadsOf(1))
	assert.Equal(t, 10*time.Second, st.Duration)

	sawAggregate := false
	for !sawAggregate {
		select {
		case ev := <-events:
			sawAggregate = ev.Kind == EventReady && ev.Index == -1
		case <-time.After(waitFor):
			t.Fatal("no aggregate ready event")
		}
	}
}

func TestController_ReadyIsIdempotentAndRestoredAfterReAdd(t *testing.T) {
	f := newFixture(t, syntheticdecoder.Factory(syntheticdecoder.DefaultOptions()))
	f.add(25)
	f.add(25)
	f.waitReady()

	var size int
	var ready bool
	require.NoError(t, f.c.Do(f.ctx, func() {
		id := f.c.streams[0].id
		f.c.sink.Ready(id)
		f.c.sink.Ready(id)
		size, ready = len(f.c.ready), f.c.allReady
	}))
	assert.Equal(t, 2, size)
	assert.True(t, ready)

	require.NoError(t, f.c.RemoveVideo(f.ctx, 1))
	st := f.status()
	assert.Len(t, st.Streams, 1)
	assert.True(t, st.Ready)

	f.add(25)
	f.waitReady()
	assert.Len(t, f.status().Streams, 2)
}

func TestController_RemoveInvalidIndexIsIgnored(t *testing.T) {
	f := newFixture(t, syntheticdecoder.Factory(syntheticdecoder.DefaultOptions()))
	f.add(25)
	f.waitReady()

	assert.NoError(t, f.c.RemoveVideo(f.ctx, 3))
	assert.NoError(t, f.c.RemoveVideo(f.ctx, -1))
	assert.Len(t, f.status().Streams, 1)
}

func TestController_ControlsIgnoredUntilReady(t *testing.T) {
	f := newFixture(t, syntheticdecoder.Factory(syntheticdecoder.DefaultOptions()))

	require.NoError(t, f.c.Play(f.ctx))
	require.NoError(t, f.c.StepForward(f.ctx))
	require.NoError(t, f.c.SeekTo(f.ctx, time.Second))

	st := f.status()
	assert.False(t, st.Playing)
	assert.False(t, st.Seeking)
}

func TestController_SeekAlignsStreams(t *testing.T) {
	f := newFixture(t, syntheticdecoder.Factory(syntheticdecoder.DefaultOptions()))
	events := f.c.Subscribe(256)
	f.add(25)
	f.add(30)
	f.waitReady()

	require.NoError(t, f.c.SeekTo(f.ctx, time.Second))
	assert.True(t, f.status().Seeking)

	require.Eventually(t, func() bool {
		st := f.status()
		return !st.Seeking && assert.ObjectsAreEqual([]int64{25, 30}, f.shown())
	}, waitFor, tick)
	assert.Equal(t, time.Second, f.status().CurrentTime)

	completed := false
	for !completed {
		select {
		case ev := <-events:
			completed = ev.Kind == EventSeekCompleted && ev.Index == -1
		case <-time.After(waitFor):
			t.Fatal("no aggregate seek-completed event")
		}
	}
}

func TestController_JumpToFrameUsesFirstTimebase(t *testing.T) {
	f := newFixture(t, syntheticdecoder.Factory(syntheticdecoder.DefaultOptions()))
	f.add(30)
	f.add(25)
	f.waitReady()

	require.NoError(t, f.c.JumpToFrame(f.ctx, 31))
	require.Eventually(t, func() bool {
		return !f.status().Seeking && assert.ObjectsAreEqual([]int64{31, 25}, f.shown())
	}, waitFor, tick)
}

func TestController_PlayKeepsStreamsInStep(t *testing.T) {
	f := newFixture(t, syntheticdecoder.Factory(syntheticdecoder.DefaultOptions()))
	f.add(25)
	f.add(30)
	f.waitReady()

	require.NoError(t, f.c.SetSpeed(f.ctx, media.R(4, 1)))
	require.NoError(t, f.c.Play(f.ctx))
	require.Eventually(t, func() bool {
		pts := f.shown()
		return len(pts) == 2 && pts[0] >= 10 && pts[1] >= 10
	}, waitFor, tick)
	require.NoError(t, f.c.Pause(f.ctx))

	require.Eventually(t, func() bool {
		st := f.status()
		for _, s := range st.Streams {
			if s.Shown != s.Metadata.PTSAt(st.CurrentTime) {
				return false
			}
		}
		return !st.Playing
	}, waitFor, tick, "every stream shows the frame of the clock time")
}

func TestController_StepForwardAndBackward(t *testing.T) {
	f := newFixture(t, syntheticdecoder.Factory(syntheticdecoder.DefaultOptions()))
	f.add(25)
	f.waitReady()

	require.NoError(t, f.c.StepForward(f.ctx))
	require.NoError(t, f.c.StepForward(f.ctx))
	require.Eventually(t, func() bool { return assert.ObjectsAreEqual([]int64{2}, f.shown()) }, waitFor, tick)

	require.NoError(t, f.c.StepBackward(f.ctx))
	require.Eventually(t, func() bool { return assert.ObjectsAreEqual([]int64{1}, f.shown()) }, waitFor, tick)
}

func TestController_PlayAtEndRestartsFromFirstFrame(t *testing.T) {
	opts := syntheticdecoder.DefaultOptions()
	opts.Frames = 20
	f := newFixture(t, syntheticdecoder.Factory(opts))
	f.add(25)
	f.add(25)
	f.waitReady()

	require.NoError(t, f.c.SetSpeed(f.ctx, media.R(8, 1)))
	require.NoError(t, f.c.Play(f.ctx))
	require.Eventually(t, func() bool {
		st := f.status()
		return st.ReachedEnd && !st.Playing
	}, waitFor, tick)
	assert.Equal(t, []int64{19, 19}, f.shown())

	require.NoError(t, f.c.SetSpeed(f.ctx, media.R(1, 1)))
	require.NoError(t, f.c.Play(f.ctx))
	require.Eventually(t, func() bool {
		st := f.status()
		return st.Playing && !st.ReachedEnd
	}, waitFor, tick)
	pts := f.shown()
	assert.Less(t, pts[0], int64(19))
	require.NoError(t, f.c.Pause(f.ctx))
}

func TestController_BackwardPlaybackAutoPausesAtFirstFrame(t *testing.T) {
	f := newFixture(t, syntheticdecoder.Factory(syntheticdecoder.DefaultOptions()))
	f.add(25)
	f.waitReady()

	require.NoError(t, f.c.SeekTo(f.ctx, 200*time.Millisecond))
	require.Eventually(t, func() bool { return !f.status().Seeking }, waitFor, tick)

	require.NoError(t, f.c.ToggleDirection(f.ctx))
	st := f.status()
	assert.Equal(t, media.Backward, st.Direction)
	assert.False(t, st.Playing, "toggling while paused only changes the direction")

	require.NoError(t, f.c.SetSpeed(f.ctx, media.R(4, 1)))
	require.NoError(t, f.c.Play(f.ctx))
	require.Eventually(t, func() bool {
		st := f.status()
		return !st.Playing && st.Direction == media.Forward && st.CurrentTime == 0 && st.AtStart &&
			assert.ObjectsAreEqual([]int64{0}, f.shown())
	}, waitFor, tick)
}

func TestController_StepBackwardKeepsTimeOnShownFrames(t *testing.T) {
	f := newFixture(t, syntheticdecoder.Factory(syntheticdecoder.DefaultOptions()))
	f.add(25)
	f.add(30)
	f.waitReady()

	require.NoError(t, f.c.SeekTo(f.ctx, 400*time.Millisecond))
	require.Eventually(t, func() bool { return !f.status().Seeking }, waitFor, tick)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.c.StepBackward(f.ctx))
		st := f.status()
		for _, s := range st.Streams {
			assert.Equal(t, s.Metadata.PTSAt(st.CurrentTime), f.timerPTS(s.Index), "stream %d at %v", s.Index, st.CurrentTime)
		}
	}
}

func (f *fixture) timerPTS(index int) int64 {
	var pts int64
	require.NoError(f.t, f.c.Do(f.ctx, func() { pts = f.c.positions()[index] }))
	return pts
}

// gatedFactory blocks decoding of frames at or after from until release is
// closed.
func gatedFactory(from int64, release <-chan struct{}) ports.DecoderFactory {
	opts := syntheticdecoder.DefaultOptions()
	opts.FailFunc = func(pts int64) error {
		if pts >= from {
			<-release
		}
		return nil
	}
	return syntheticdecoder.Factory(opts)
}

func TestController_StallPausesAndResumesPlayback(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }

	f := newFixture(t, gatedFactory(30, release))
	// Runs before the fixture shuts down, which waits for the decoder.
	t.Cleanup(unblock)
	f.add(25)
	f.waitReady()

	require.NoError(t, f.c.SetSpeed(f.ctx, media.R(4, 1)))
	require.NoError(t, f.c.Play(f.ctx))
	require.Eventually(t, func() bool { return f.status().Buffering }, waitFor, tick)
	st := f.status()
	assert.False(t, st.Playing, "the clock stops while a stream is stalled")
	assert.Equal(t, int64(1), st.Streams[0].Stats.Stalls)

	unblock()
	require.Eventually(t, func() bool {
		st := f.status()
		return !st.Buffering && st.Playing && st.Streams[0].Shown >= 30
	}, waitFor, tick)
	require.NoError(t, f.c.Pause(f.ctx))
}

func TestController_StallDoesNotResumeAfterPause(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }

	f := newFixture(t, gatedFactory(30, release))
	// Runs before the fixture shuts down, which waits for the decoder.
	t.Cleanup(unblock)
	f.add(25)
	f.waitReady()

	require.NoError(t, f.c.SetSpeed(f.ctx, media.R(4, 1)))
	require.NoError(t, f.c.Play(f.ctx))
	require.Eventually(t, func() bool { return f.status().Buffering }, waitFor, tick)
	require.NoError(t, f.c.Pause(f.ctx))

	unblock()
	require.Eventually(t, func() bool { return !f.status().Buffering }, waitFor, tick)
	assert.Never(t, func() bool { return f.status().Playing }, 100*time.Millisecond, tick)
}

func TestController_DiffModeComparesRenderedPairs(t *testing.T) {
	f := newFixture(t, syntheticdecoder.Factory(syntheticdecoder.DefaultOptions()))
	events := f.c.Subscribe(256)
	f.add(25)
	f.add(25)
	f.waitReady()

	require.NoError(t, f.c.SetDiffMode(f.ctx, true, 0, 0))
	assert.False(t, f.status().DiffEnabled, "a stream cannot be compared with itself")

	require.NoError(t, f.c.SetDiffMode(f.ctx, true, 0, 1))
	require.NoError(t, f.c.StepForward(f.ctx))
	require.Eventually(t, func() bool { return f.status().PSNR.Count == 1 }, waitFor, tick)

	st := f.status()
	assert.True(t, st.DiffEnabled)
	assert.Equal(t, 0, st.DiffA)
	assert.Equal(t, 1, st.DiffB)
	assert.Equal(t, 42.0, st.PSNR.Avg())
	assert.ElementsMatch(t, []mocks.Upload{{Stream: 0, PTS: 1}, {Stream: 1, PTS: 1}}, f.comparer.Uploads())

	for {
		select {
		case ev := <-events:
			if ev.Kind == EventPSNR {
				assert.Equal(t, 42.0, ev.PSNR)
				require.NoError(t, f.c.RemoveVideo(f.ctx, 1))
				assert.False(t, f.status().DiffEnabled, "removing a compared stream ends diff mode")
				return
			}
		case <-time.After(waitFor):
			t.Fatal("no PSNR event")
		}
	}
}

func TestController_RenderFailuresAreCounted(t *testing.T) {
	f := newFixture(t, syntheticdecoder.Factory(syntheticdecoder.DefaultOptions()))
	f.presenter.RenderFunc = func(ctx context.Context, stream int) error {
		return errors.New("device lost")
	}
	f.add(25)
	f.waitReady()

	assert.Equal(t, int64(1), f.status().Streams[0].Stats.RenderFailures)
	assert.Equal(t, int64(-1), f.status().Streams[0].Shown)
}

type closeFailing struct {
	*syntheticdecoder.Decoder
	err error
}

func (d closeFailing) Close() error {
	_ = d.Decoder.Close()
	return d.err
}

func TestController_RunAggregatesCloseErrors(t *testing.T) {
	factory := func(info media.StreamInfo) (ports.Decoder, error) {
		return closeFailing{
			Decoder: syntheticdecoder.New(syntheticdecoder.DefaultOptions()),
			err:     errors.New("busy"),
		}, nil
	}
	c, err := New(Config{
		QueueSize:      8,
		DecoderFactory: factory,
		Presenter:      mocks.NewPresenter(),
		Logger:         logger.NewNoop(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	_, err = c.AddVideo(ctx, media.StreamInfo{Path: "a.mp4"})
	require.NoError(t, err)
	_, err = c.AddVideo(ctx, media.StreamInfo{Path: "b.mp4"})
	require.NoError(t, err)
	cancel()

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "close a.mp4: busy")
		assert.ErrorContains(t, err, "close b.mp4: busy")
	case <-time.After(waitFor):
		t.Fatal("Run did not return")
	}

	assert.ErrorIs(t, c.Play(context.Background()), ErrClosed)
}
