package videocontroller

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/user/vidsync/pkg/framecontroller"
	"github.com/user/vidsync/pkg/framequeue"
	"github.com/user/vidsync/pkg/media"
	"github.com/user/vidsync/pkg/ports"
	"github.com/user/vidsync/pkg/timer"
)

// Loop-confined control operations.

func (c *Controller) find(id uint64) (int, *stream) {
	for i, s := range c.streams {
		if s.id == id {
			return i, s
		}
	}
	return -1, nil
}

// gate reports whether op may run now: every stream ready and no seek in
// flight.
func (c *Controller) gate(op string) bool {
	switch {
	case len(c.streams) == 0:
		c.logger.Info("Ignoring %s: no streams", op)
	case !c.allReady:
		c.logger.Info("Ignoring %s: streams not ready", op)
	case c.seeking:
		c.logger.Info("Ignoring %s: seek in progress", op)
	default:
		return true
	}
	return false
}

func (c *Controller) buffering() bool {
	return len(c.stalled) > 0
}

// wantsPlay reports whether playback is active or has been requested.
func (c *Controller) wantsPlay() bool {
	return c.playing || c.playAfterSeek || c.resumeAfterStall || c.resumeAfterReady
}

func (c *Controller) play() {
	if !c.gate("play") {
		return
	}
	if c.buffering() {
		c.resumeAfterStall = true
		return
	}
	switch {
	case c.dir == media.Forward && c.reachedEnd:
		c.logger.Info("At the last frame, restarting from the first frame")
		c.seekFrames(c.sameTargets(0), true)
	case c.dir == media.Backward && c.atFirstFrame():
		c.logger.Info("At the first frame, restarting from the last frame")
		c.seekFrames(c.lastFrames(), true)
	default:
		c.startPlaying()
	}
}

func (c *Controller) startPlaying() {
	if c.timer == nil {
		return
	}
	if c.dir == media.Backward && c.atFirstFrame() {
		c.stopClock()
		return
	}
	c.setStreamDirection(c.dir)
	if c.dir == media.Backward {
		c.timer.PlayBackward()
	} else {
		c.timer.PlayForward()
	}
	c.playing = true
	c.resumeAfterStall = false
}

// stopClock pauses the timer without forgetting pending play requests.
func (c *Controller) stopClock() {
	if c.timer != nil {
		c.timer.Pause()
	}
	c.playing = false
}

func (c *Controller) pause() {
	c.playAfterSeek = false
	c.resumeAfterStall = false
	c.resumeAfterReady = false
	c.stopClock()
}

func (c *Controller) togglePlayPause() {
	if c.wantsPlay() {
		c.pause()
		return
	}
	c.play()
}

// resume restarts playback if want is set and nothing holds it back. A
// gate that is still closed keeps the request pending.
func (c *Controller) resume(want bool) {
	switch {
	case !want || len(c.streams) == 0:
	case c.seeking:
		c.playAfterSeek = true
	case !c.allReady:
		c.resumeAfterReady = true
	case c.buffering():
		c.resumeAfterStall = true
	case c.dir == media.Forward && c.reachedEnd:
	default:
		c.startPlaying()
	}
}

func (c *Controller) step(dir media.Direction) {
	op := "step " + dir.String()
	if !c.gate(op) {
		return
	}
	if c.buffering() {
		c.logger.Info("Ignoring %s: buffering", op)
		return
	}
	if dir == media.Forward && c.reachedEnd {
		return
	}
	c.pause()

	var (
		tick timer.Tick
		ok   bool
	)
	if dir == media.Forward {
		tick, ok = c.timer.StepForward()
	} else {
		tick, ok = c.timer.StepBackward()
	}
	if !ok {
		return
	}
	c.setStreamDirection(dir)
	for i, s := range c.streams {
		if tick.Update[i] {
			s.fc.Step(tick.PTS[i])
		}
	}
	c.emitTime(tick.CurrentTime)
}

func (c *Controller) seekTo(t time.Duration) {
	if len(c.streams) == 0 || !c.allReady {
		c.gate("seek")
		return
	}
	targets := make([]int64, len(c.streams))
	for i, s := range c.streams {
		targets[i] = s.fc.Metadata().PTSAt(t)
	}
	c.seekFrames(targets, c.wantsPlay())
}

func (c *Controller) jumpToFrame(pts int64) {
	if len(c.streams) == 0 || !c.allReady {
		c.gate("jump")
		return
	}
	first := c.streams[0].fc.Metadata()
	pts = min(max(pts, 0), first.TotalFrames-1)
	t := first.TimeAt(pts)

	targets := make([]int64, len(c.streams))
	targets[0] = pts
	for i, s := range c.streams[1:] {
		targets[i+1] = s.fc.Metadata().PTSAt(t)
	}
	c.seekFrames(targets, c.wantsPlay())
}

// seekFrames moves the clock and every stream to targets. Playback resumes
// once every stream completed the seek if resume is set.
func (c *Controller) seekFrames(targets []int64, resume bool) {
	c.stopClock()
	c.resumeAfterStall = false
	c.playAfterSeek = resume
	c.seeking = true
	clear(c.seekDone)

	if err := c.timer.Seek(targets); err != nil {
		c.logger.Error("Failed to seek clock: %v", err)
	}
	c.logger.Info("Seeking to %d ms", c.timer.CurrentTime().Milliseconds())
	for i, s := range c.streams {
		s.fc.SeekFrame(targets[i])
	}
	c.emitTime(c.timer.CurrentTime())
}

func (c *Controller) finishSeek() {
	c.seeking = false
	c.logger.Info("Seek completed")
	c.emit(Event{Kind: EventSeekCompleted, Index: -1})
	want := c.playAfterSeek
	c.playAfterSeek = false
	c.resume(want)
}

func (c *Controller) allSeekDone() bool {
	for _, s := range c.streams {
		if !c.seekDone[s.id] {
			return false
		}
	}
	return true
}

func (c *Controller) setSpeed(speed media.Rational) {
	c.speed = speed
	if c.timer != nil {
		if err := c.timer.SetSpeed(speed); err != nil {
			c.logger.Warn("Failed to set speed: %v", err)
			return
		}
	}
	c.logger.Info("Speed set to %s", speed)
}

func (c *Controller) toggleDirection() {
	c.dir = c.dir.Reverse()
	c.logger.Info("Direction set to %s", c.dir)
	if c.playing {
		c.startPlaying()
	}
}

func (c *Controller) setStreamDirection(dir media.Direction) {
	for _, s := range c.streams {
		s.fc.SetDirection(dir)
	}
}

func (c *Controller) addVideo(info media.StreamInfo, dec ports.Decoder, meta media.Metadata, queue *framequeue.Queue) int {
	id := c.nextID
	c.nextID++
	index := len(c.streams)

	ctx, cancel := context.WithCancel(c.ctx)
	s := &stream{id: id, info: info, decoder: dec, cancel: cancel}
	s.worker = framecontroller.NewWorker(id, dec, queue, meta, c.results, c.logger.WithComponent(fmt.Sprintf("decoder-%d", id)))
	s.fc = framecontroller.New(framecontroller.Config{
		ID:        id,
		Metadata:  meta,
		Queue:     queue,
		Decoder:   s.worker,
		Presenter: c.sink,
		Events:    c.sink,
		Logger:    c.logger.WithComponent(fmt.Sprintf("stream-%d", id)),
	})
	s.group.Go(func() error {
		s.worker.Run(ctx)
		return nil
	})

	resume := c.wantsPlay()
	current := c.currentTime()
	positions := append(c.positions(), meta.PTSAt(current))
	c.stopClock()
	c.playAfterSeek, c.resumeAfterStall = false, false

	c.streams = append(c.streams, s)
	if c.seeking {
		c.seekDone[id] = true
	}
	c.rebuildTimer(positions)
	c.allReady = false
	c.alignAfterReady = index > 0 && current > 0
	c.resumeAfterReady = resume
	c.updateEnd()

	c.logger.Info("Added stream %d: %s (%dx%d, %s, %d frames)",
		index, info.Path, meta.YWidth, meta.YHeight, meta.Timebase.Inverse(), meta.TotalFrames)
	c.emit(Event{Kind: EventStreamAdded, Index: index})
	s.fc.Start()
	return index
}

func (c *Controller) removeVideo(index int) {
	if index < 0 || index >= len(c.streams) {
		c.logger.Warn("Ignoring remove of stream %d: %d streams loaded", index, len(c.streams))
		return
	}
	s := c.streams[index]
	resume := c.wantsPlay()
	positions := c.positions()
	if len(positions) == len(c.streams) {
		positions = slices.Delete(positions, index, index+1)
	}
	c.stopClock()
	c.resumeAfterStall, c.resumeAfterReady = false, false

	s.cancel()
	c.streams = slices.Delete(c.streams, index, index+1)
	c.retired = append(c.retired, s)
	for _, set := range []map[uint64]bool{c.ready, c.atEnd, c.seekDone, c.stalled} {
		delete(set, s.id)
	}
	c.jobs = slices.DeleteFunc(c.jobs, func(j presentJob) bool { return j.id == s.id })
	if c.diff.enabled && (s.id == c.diff.a || s.id == c.diff.b) {
		c.diff = diffState{}
		c.logger.Info("Diff mode disabled")
	}
	c.rebuildTimer(positions)

	c.logger.Info("Removed stream %d: %s", index, s.info.Path)
	c.emit(Event{Kind: EventStreamRemoved, Index: index})

	if len(c.streams) == 0 {
		c.allReady, c.seeking, c.reachedEnd = false, false, false
		c.playAfterSeek, c.alignAfterReady = false, false
		return
	}
	c.updateEnd()
	if c.seeking {
		if c.allSeekDone() {
			c.finishSeek()
		}
		return
	}
	if !c.allReady {
		// Removing the last stream that was not ready opens the gate.
		c.resumeAfterReady = resume
		c.updateReady()
		return
	}
	c.resume(resume)
}

// rebuildTimer replaces the clock with one over the current streams,
// positioned at positions.
func (c *Controller) rebuildTimer(positions []int64) {
	if c.timer != nil {
		c.timer.Close()
		c.timer = nil
	}
	if len(c.streams) == 0 {
		return
	}
	timebases := make([]media.Rational, len(c.streams))
	for i, s := range c.streams {
		timebases[i] = s.fc.Metadata().Timebase
	}
	t, err := timer.New(timebases, c.logger.WithComponent("timer"))
	if err != nil {
		c.logger.Error("Failed to build clock: %v", err)
		return
	}
	if err := t.SetSpeed(c.speed); err != nil {
		c.logger.Warn("Failed to set speed: %v", err)
	}
	if len(positions) == len(c.streams) {
		if err := t.Seek(positions); err != nil {
			c.logger.Warn("Failed to position clock: %v", err)
		}
	}
	c.timer = t
}

// updateReady recomputes the readiness gate and applies the requests that
// waited for it.
func (c *Controller) updateReady() {
	was := c.allReady
	c.allReady = len(c.streams) > 0
	for _, s := range c.streams {
		if !c.ready[s.id] {
			c.allReady = false
			break
		}
	}
	if !c.allReady || was {
		return
	}

	c.logger.Info("All %d streams ready", len(c.streams))
	c.emit(Event{Kind: EventReady, Index: -1})
	resume := c.resumeAfterReady
	c.resumeAfterReady = false
	if c.alignAfterReady {
		c.alignAfterReady = false
		current := c.currentTime()
		targets := make([]int64, len(c.streams))
		for i, s := range c.streams {
			targets[i] = s.fc.Metadata().PTSAt(current)
		}
		c.seekFrames(targets, resume)
		return
	}
	c.resume(resume)
}

// updateEnd recomputes the end-of-video gate and stops the clock when
// every stream reached its last frame.
func (c *Controller) updateEnd() {
	was := c.reachedEnd
	c.reachedEnd = len(c.streams) > 0
	for _, s := range c.streams {
		if !c.atEnd[s.id] {
			c.reachedEnd = false
			break
		}
	}
	if c.reachedEnd == was {
		return
	}
	c.emit(Event{Kind: EventEndOfVideo, Index: -1, Flag: c.reachedEnd})
	if c.reachedEnd {
		c.logger.Info("Reached the end of every stream")
		if c.playing && c.dir == media.Forward {
			c.stopClock()
		}
	}
}

func (c *Controller) setDiffMode(enabled bool, a, b int) {
	if !enabled {
		if c.diff.enabled {
			c.logger.Info("Diff mode disabled")
		}
		c.diff = diffState{}
		return
	}
	if c.comparer == nil {
		c.logger.Warn("Ignoring diff mode: no comparer configured")
		return
	}
	n := len(c.streams)
	if a == b || a < 0 || b < 0 || a >= n || b >= n {
		c.logger.Warn("Ignoring diff mode for streams %d and %d: %d streams loaded", a, b, n)
		return
	}
	c.diff = diffState{enabled: true, a: c.streams[a].id, b: c.streams[b].id}
	c.psnr = PSNRStats{}
	c.logger.Info("Diff mode enabled for streams %d and %d", a, b)
}

func (c *Controller) onTick(tick timer.Tick) {
	if len(tick.Update) != len(c.streams) {
		return
	}
	for i, s := range c.streams {
		if tick.Update[i] {
			s.fc.OnTick(tick.PTS[i])
		}
	}
	c.emitTime(tick.CurrentTime)
	if tick.AutoPause {
		c.logger.Info("Reached the first frame of every stream")
		c.playing = false
		c.dir = media.Forward
		c.setStreamDirection(media.Forward)
	}
}

func (c *Controller) onDecodeDone(res framecontroller.DecodeResult) {
	if _, s := c.find(res.ID); s != nil {
		s.fc.OnDecodeDone(res)
	}
}

func (c *Controller) onPresented(res presentResult) {
	index, s := c.find(res.id)
	if s == nil {
		return
	}
	if res.compareErr != nil {
		c.logger.Warn("Compare failed: %v", res.compareErr)
	}
	if !res.render {
		s.fc.OnUploaded(res.err)
		return
	}
	if res.compared {
		c.psnr.add(res.psnr)
		c.logger.Debug("PSNR %.2f dB at stream %d", res.psnr, index)
		c.emit(Event{Kind: EventPSNR, Index: -1, PSNR: res.psnr})
	}
	s.fc.OnRendered(res.err)
}

func (c *Controller) positions() []int64 {
	if c.timer == nil {
		return nil
	}
	return c.timer.Position()
}

func (c *Controller) currentTime() time.Duration {
	if c.timer == nil {
		return 0
	}
	return c.timer.CurrentTime()
}

func (c *Controller) atFirstFrame() bool {
	for _, p := range c.positions() {
		if p > 0 {
			return false
		}
	}
	return true
}

func (c *Controller) sameTargets(pts int64) []int64 {
	targets := make([]int64, len(c.streams))
	for i := range targets {
		targets[i] = pts
	}
	return targets
}

func (c *Controller) lastFrames() []int64 {
	targets := make([]int64, len(c.streams))
	for i, s := range c.streams {
		targets[i] = s.fc.Metadata().TotalFrames - 1
	}
	return targets
}

func (c *Controller) emit(ev Event) {
	if dropped := c.events.publish(ev); dropped > 0 {
		c.logger.Debug("Dropped %s event for %d subscribers", ev.Kind, dropped)
	}
}

func (c *Controller) emitTime(t time.Duration) {
	c.emit(Event{Kind: EventCurrentTime, Index: -1, Time: t})
}

// publishProps emits a change event for every aggregate property that
// changed since the last call.
func (c *Controller) publishProps() {
	var now props
	for _, s := range c.streams {
		meta := s.fc.Metadata()
		now.duration = max(now.duration, meta.Duration)
		now.totalFrames = max(now.totalFrames, meta.TotalFrames)
	}
	now.playing = c.playing
	now.seeking = c.seeking
	now.buffering = c.buffering()
	now.direction = c.dir

	if now.duration != c.last.duration {
		c.emit(Event{Kind: EventDuration, Index: -1, Time: now.duration})
	}
	if now.totalFrames != c.last.totalFrames {
		c.emit(Event{Kind: EventTotalFrames, Index: -1, Frames: now.totalFrames})
	}
	if now.playing != c.last.playing {
		c.emit(Event{Kind: EventPlaying, Index: -1, Flag: now.playing})
	}
	if now.seeking != c.last.seeking {
		c.emit(Event{Kind: EventSeeking, Index: -1, Flag: now.seeking})
	}
	if now.buffering != c.last.buffering {
		c.emit(Event{Kind: EventBuffering, Index: -1, Flag: now.buffering})
	}
	if now.direction != c.last.direction {
		c.emit(Event{Kind: EventDirection, Index: -1, Direction: now.direction})
	}
	c.last = now
}
