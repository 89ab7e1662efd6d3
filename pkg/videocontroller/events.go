package videocontroller

import (
	"sync"
	"time"

	"github.com/user/vidsync/pkg/media"
)

// EventKind identifies an observable event.
type EventKind int

const (
	// EventReady: a stream finished prefilling. Index -1 means every live
	// stream is ready.
	EventReady EventKind = iota
	EventStartOfVideo
	// EventEndOfVideo: Flag reports whether the end was reached or left.
	// Index -1 is the aggregate end of every live stream.
	EventEndOfVideo
	// EventSeekCompleted: Index -1 once every live stream completed the seek.
	EventSeekCompleted
	// EventDecoderStalled: Flag reports whether the stream is stalled.
	EventDecoderStalled
	EventDecodeFailed
	EventRenderFailed
	EventStreamAdded
	EventStreamRemoved
	// EventPSNR carries the diff-mode comparison of the last rendered pair.
	EventPSNR

	// Aggregate property changes. Index is always -1.
	EventDuration
	EventTotalFrames
	EventCurrentTime
	EventPlaying
	EventSeeking
	EventBuffering
	EventDirection
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventStartOfVideo:
		return "start-of-video"
	case EventEndOfVideo:
		return "end-of-video"
	case EventSeekCompleted:
		return "seek-completed"
	case EventDecoderStalled:
		return "decoder-stalled"
	case EventDecodeFailed:
		return "decode-failed"
	case EventRenderFailed:
		return "render-failed"
	case EventStreamAdded:
		return "stream-added"
	case EventStreamRemoved:
		return "stream-removed"
	case EventPSNR:
		return "psnr"
	case EventDuration:
		return "duration"
	case EventTotalFrames:
		return "total-frames"
	case EventCurrentTime:
		return "current-time"
	case EventPlaying:
		return "playing"
	case EventSeeking:
		return "seeking"
	case EventBuffering:
		return "buffering"
	case EventDirection:
		return "direction"
	default:
		return "unknown"
	}
}

// Event is published to subscribers. Only the fields relevant to Kind are
// set.
type Event struct {
	Kind      EventKind
	Index     int
	Flag      bool
	Time      time.Duration
	Frames    int64
	Direction media.Direction
	PSNR      float64
	Err       error
}

// CurrentTimeMs returns Time in whole milliseconds.
func (e Event) CurrentTimeMs() int64 {
	return e.Time.Milliseconds()
}

type broker struct {
	mu     sync.Mutex
	subs   []chan Event
	closed bool
}

func (b *broker) subscribe(buffer int) <-chan Event {
	ch := make(chan Event, max(buffer, 0))
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// publish delivers ev to every subscriber with room for it and returns how
// many subscribers dropped it.
func (b *broker) publish(ev Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	dropped := 0
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			dropped++
		}
	}
	return dropped
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}

// props holds the last published aggregate properties.
type props struct {
	duration    time.Duration
	totalFrames int64
	playing     bool
	seeking     bool
	buffering   bool
	direction   media.Direction
}
