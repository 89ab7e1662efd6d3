// Package timer provides the shared playback clock for N streams with
// independent timebases.
//
// The clock keeps, for each stream, the next frame it will move to and the
// wall time at which that happens. A tick is emitted at the earliest of
// those times when playing forward and at the latest when playing backward;
// every stream sitting exactly at that time advances in the same tick.
package timer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/user/vidsync/pkg/media"
	"github.com/user/vidsync/pkg/ports"
)

var (
	// ErrNoStreams is returned when a timer is built without timebases.
	ErrNoStreams = errors.New("timer: no streams")
	// ErrInvalidTimebase is returned for a zero or negative timebase.
	ErrInvalidTimebase = errors.New("timer: invalid timebase")
	// ErrInvalidSpeed is returned for a zero or negative speed.
	ErrInvalidSpeed = errors.New("timer: invalid speed")
	// ErrStreamCount is returned when a per-stream vector has the wrong length.
	ErrStreamCount = errors.New("timer: stream count mismatch")
)

// State is the run state of the clock.
type State int

const (
	Paused State = iota
	Playing
	Seeking
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Seeking:
		return "seeking"
	default:
		return "paused"
	}
}

// Tick is one clock event. PTS holds the frame every stream should show at
// CurrentTime; Update marks the streams that moved in this tick. Backward,
// CurrentTime is the latest start among the shown frames, so it always maps
// back onto them.
type Tick struct {
	PTS         []int64
	Update      []bool
	CurrentTime time.Duration
	Direction   media.Direction
	// AutoPause is set on the last tick of a backward run that reached the
	// first frame of every stream. The timer is paused and faces forward
	// once this tick has been delivered.
	AutoPause bool

	wake int64 // ns the tick was scheduled for
}

// CurrentTimeMs returns CurrentTime in whole milliseconds.
func (t Tick) CurrentTimeMs() int64 {
	return t.CurrentTime.Milliseconds()
}

type stream struct {
	tb   media.Rational
	pts  int64 // next frame
	wall int64 // ns at which pts becomes due
	due  bool
}

// Timer is the multi-timebase playback clock. All methods are safe for
// concurrent use.
type Timer struct {
	ctl sync.Mutex // serializes control operations

	mu      sync.Mutex
	streams []stream
	shown   []int64 // last emitted frame per stream
	current int64   // ns of the shown position
	clock   int64   // ns the last emission was scheduled for
	wake    int64   // ns of the next emission
	dir     media.Direction
	speed   media.Rational
	state   State

	ticks chan Tick
	stop  chan struct{}
	done  chan struct{}

	logger ports.Logger
}

// New creates a paused, forward-facing timer positioned at frame 0 of every
// stream.
func New(timebases []media.Rational, logger ports.Logger) (*Timer, error) {
	if len(timebases) == 0 {
		return nil, ErrNoStreams
	}
	for i, tb := range timebases {
		if !tb.Positive() {
			return nil, fmt.Errorf("%w: stream %d has %s", ErrInvalidTimebase, i, tb)
		}
	}

	t := &Timer{
		streams: make([]stream, len(timebases)),
		shown:   make([]int64, len(timebases)),
		dir:     media.Forward,
		speed:   media.R(1, 1),
		state:   Paused,
		ticks:   make(chan Tick),
		logger:  logger,
	}
	for i, tb := range timebases {
		t.streams[i].tb = tb
	}
	t.rebuildLocked()
	return t, nil
}

// Ticks returns the channel on which ticks are delivered while playing.
func (t *Timer) Ticks() <-chan Tick {
	return t.ticks
}

// NumStreams returns the number of clocked streams.
func (t *Timer) NumStreams() int {
	return len(t.streams)
}

// State returns the current run state.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Direction returns the direction of the next tick.
func (t *Timer) Direction() media.Direction {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dir
}

// Speed returns the playback speed multiplier.
func (t *Timer) Speed() media.Rational {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.speed
}

// CurrentTime returns the position of the last emitted tick or seek.
func (t *Timer) CurrentTime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Duration(t.current)
}

// Position returns the last emitted frame of every stream.
func (t *Timer) Position() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int64(nil), t.shown...)
}

// Play starts the tick loop in the current direction.
func (t *Timer) Play() {
	t.ctl.Lock()
	defer t.ctl.Unlock()
	t.startLoop()
}

// Pause stops the tick loop. A tick that was computed but not delivered is
// discarded, so the position stays at the last delivered tick.
func (t *Timer) Pause() {
	t.ctl.Lock()
	defer t.ctl.Unlock()
	t.stopLoop()
}

// PlayForward faces forward and starts playing.
func (t *Timer) PlayForward() {
	t.playIn(media.Forward)
}

// PlayBackward faces backward and starts playing.
func (t *Timer) PlayBackward() {
	t.playIn(media.Backward)
}

func (t *Timer) playIn(dir media.Direction) {
	t.ctl.Lock()
	defer t.ctl.Unlock()
	t.stopLoop()
	t.mu.Lock()
	t.setDirectionLocked(dir)
	t.mu.Unlock()
	t.startLoop()
}

// SetDirection changes the direction of the next tick, keeping the run
// state.
func (t *Timer) SetDirection(dir media.Direction) {
	t.ctl.Lock()
	defer t.ctl.Unlock()
	running := t.stopLoop()
	t.mu.Lock()
	t.setDirectionLocked(dir)
	t.mu.Unlock()
	if running {
		t.startLoop()
	}
}

// SetSpeed changes the delay between ticks. Frame advance is unaffected.
func (t *Timer) SetSpeed(speed media.Rational) error {
	if !speed.Positive() {
		return fmt.Errorf("%w: %s", ErrInvalidSpeed, speed)
	}

	t.ctl.Lock()
	defer t.ctl.Unlock()
	running := t.stopLoop()
	t.mu.Lock()
	t.speed = speed
	t.mu.Unlock()
	if running {
		t.startLoop()
	}
	return nil
}

// StepForward emits one forward tick synchronously. It returns false if
// the timer is playing.
func (t *Timer) StepForward() (Tick, bool) {
	return t.step(media.Forward)
}

// StepBackward emits one backward tick synchronously. It returns false if
// the timer is playing or every stream already shows its first frame.
func (t *Timer) StepBackward() (Tick, bool) {
	return t.step(media.Backward)
}

func (t *Timer) step(dir media.Direction) (Tick, bool) {
	t.ctl.Lock()
	defer t.ctl.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Paused {
		return Tick{}, false
	}
	t.setDirectionLocked(dir)
	tick, ok := t.peekLocked()
	if !ok {
		// Only a backward timer at the first frame has nothing to emit.
		t.setDirectionLocked(media.Forward)
		return Tick{}, false
	}
	t.commitLocked(tick)
	return tick, true
}

// Seek moves every stream to the given frame. The current time becomes the
// latest of the target times so no stream is left ahead of the clock. The
// run state is restored afterwards.
func (t *Timer) Seek(pts []int64) error {
	if len(pts) != len(t.streams) {
		return fmt.Errorf("%w: got %d, want %d", ErrStreamCount, len(pts), len(t.streams))
	}

	t.ctl.Lock()
	defer t.ctl.Unlock()

	running := t.stopLoop()
	t.mu.Lock()
	t.state = Seeking

	var latest int64
	for i, p := range pts {
		if p < 0 {
			p = 0
		}
		t.shown[i] = p
		if w := t.streams[i].tb.ScaleNanos(p); w > latest {
			latest = w
		}
	}
	t.current, t.clock = latest, latest
	t.rebuildLocked()
	t.state = Paused
	t.mu.Unlock()

	if t.logger != nil {
		t.logger.Debug("Clock seeked to %d ms", time.Duration(latest).Milliseconds())
	}

	if running {
		t.startLoop()
	}
	return nil
}

// Close stops the tick loop.
func (t *Timer) Close() {
	t.Pause()
}

// startLoop requires ctl.
func (t *Timer) startLoop() {
	t.reapLoop()
	if t.done != nil {
		return
	}
	t.mu.Lock()
	t.state = Playing
	t.mu.Unlock()

	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.run(t.stop, t.done)
}

// stopLoop requires ctl and reports whether a loop was running.
func (t *Timer) stopLoop() bool {
	t.reapLoop()
	if t.done == nil {
		return false
	}
	close(t.stop)
	<-t.done
	t.stop, t.done = nil, nil

	t.mu.Lock()
	t.state = Paused
	t.mu.Unlock()
	return true
}

// reapLoop forgets a loop that paused itself. Such a loop sets Paused as its
// last state change, so it only has to be waited for.
func (t *Timer) reapLoop() {
	if t.done == nil {
		return
	}
	t.mu.Lock()
	ending := t.state != Playing
	t.mu.Unlock()
	if ending {
		<-t.done
		t.stop, t.done = nil, nil
	}
}

func (t *Timer) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	start := time.Now()
	for {
		t.mu.Lock()
		tick, ok := t.peekLocked()
		delay := t.delayLocked()
		t.mu.Unlock()
		if !ok {
			t.mu.Lock()
			t.state = Paused
			t.setDirectionLocked(media.Forward)
			t.mu.Unlock()
			return
		}

		if wait := delay - time.Since(start); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-stop:
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		start = time.Now()

		select {
		case <-stop:
			return
		case t.ticks <- tick:
		}

		t.mu.Lock()
		t.commitLocked(tick)
		t.mu.Unlock()

		if tick.AutoPause {
			if t.logger != nil {
				t.logger.Info("Reached the first frame, pausing")
			}
			return
		}
	}
}

// delayLocked returns the speed-scaled time from the current emission to the
// next one.
func (t *Timer) delayLocked() time.Duration {
	d := t.wake - t.clock
	if d < 0 {
		d = -d
	}
	return t.speed.DivDuration(time.Duration(d))
}

// setDirectionLocked rebuilds the next-frame state from the shown frames when
// the direction changes, so reversing keeps the position.
func (t *Timer) setDirectionLocked(dir media.Direction) {
	if t.dir == dir {
		return
	}
	t.dir = dir
	t.rebuildLocked()
}

// rebuildLocked derives the next frame of every stream from the shown frame.
// Backward, the next frame d-1 is due when the clock falls below the start
// of d, so its wall time is that of d.
func (t *Timer) rebuildLocked() {
	for i := range t.streams {
		s := &t.streams[i]
		d := t.shown[i]
		switch {
		case t.dir == media.Forward:
			s.pts = d + 1
			s.wall = s.tb.ScaleNanos(d + 1)
		case d > 0:
			s.pts = d - 1
			s.wall = s.tb.ScaleNanos(d)
		default:
			s.pts, s.wall = 0, 0
		}
	}
	t.markDueLocked()
}

func (t *Timer) markDueLocked() {
	wake := t.streams[0].wall
	for _, s := range t.streams[1:] {
		if t.dir == media.Forward && s.wall < wake {
			wake = s.wall
		}
		if t.dir == media.Backward && s.wall > wake {
			wake = s.wall
		}
	}
	t.wake = wake
	for i := range t.streams {
		s := &t.streams[i]
		s.due = s.wall == wake && !t.exhaustedLocked(s)
	}
}

// exhaustedLocked reports whether a backward stream has no earlier frame.
func (t *Timer) exhaustedLocked(s *stream) bool {
	return t.dir == media.Backward && s.wall == 0
}

// peekLocked computes the next tick without changing state. It returns false
// when there is nothing left to emit.
func (t *Timer) peekLocked() (Tick, bool) {
	n := len(t.streams)
	tick := Tick{
		PTS:         make([]int64, n),
		Update:      make([]bool, n),
		CurrentTime: time.Duration(t.wake),
		Direction:   t.dir,
	}

	emit := false
	lastBackward := t.dir == media.Backward
	for i := range t.streams {
		s := &t.streams[i]
		if s.due {
			emit = true
			tick.PTS[i] = s.pts
			tick.Update[i] = true
			if s.pts > 0 {
				lastBackward = false
			}
		} else {
			tick.PTS[i] = t.shown[i]
			if s.wall != 0 {
				lastBackward = false
			}
		}
	}
	if !emit {
		return Tick{}, false
	}
	tick.wake = t.wake
	tick.AutoPause = lastBackward
	if t.dir == media.Backward {
		var at int64
		for i, p := range tick.PTS {
			if w := t.streams[i].tb.ScaleNanos(p); w > at {
				at = w
			}
		}
		tick.CurrentTime = time.Duration(at)
	}
	return tick, true
}

// commitLocked records tick as shown and moves every advanced stream to its
// following frame.
func (t *Timer) commitLocked(tick Tick) {
	t.current = int64(tick.CurrentTime)
	t.clock = tick.wake
	copy(t.shown, tick.PTS)

	for i := range t.streams {
		s := &t.streams[i]
		if !tick.Update[i] {
			continue
		}
		if t.dir == media.Forward {
			s.pts++
			s.wall = s.tb.ScaleNanos(s.pts)
			continue
		}
		if s.pts > 0 {
			s.wall = s.tb.ScaleNanos(s.pts)
			s.pts--
		} else {
			s.wall = 0
		}
	}
	t.markDueLocked()

	if tick.AutoPause {
		t.state = Paused
		t.dir = media.Forward
		t.current, t.clock = 0, 0
		t.rebuildLocked()
	}
}
