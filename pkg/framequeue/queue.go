// Package framequeue provides the per-stream frame buffer shared between one
// decode goroutine (producer) and the presentation loop (consumer).
//
// Slots are addressed by pts modulo capacity. The two cursors are atomics:
// the producer publishes with Publish after it has filled a slot, and the
// consumer only trusts a slot whose stored PTS matches and whose PTS lies in
// the live window.
package framequeue

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/user/vidsync/pkg/media"
)

// ErrCapacity is returned when a queue would hold fewer than two slots.
var ErrCapacity = errors.New("framequeue: capacity must be at least 2")

// Slot holds one decoded frame. The plane slices are allocated once and
// reused for every PTS that maps onto this slot.
type Slot struct {
	media.Planes

	pts atomic.Int64
	eos atomic.Bool
}

// PTS returns the presentation timestamp currently stored in the slot, or -1
// if the slot has never been written.
func (s *Slot) PTS() int64 {
	return s.pts.Load()
}

// EOS reports whether the slot holds the last frame of the stream.
func (s *Slot) EOS() bool {
	return s.eos.Load()
}

// SetEOS marks the slot as holding the last frame.
func (s *Slot) SetEOS(eos bool) {
	s.eos.Store(eos)
}

// Queue is a fixed-capacity ring of frame slots.
type Queue struct {
	slots []Slot
	cap   int64
	sizes media.PlaneSizes

	head atomic.Int64 // consumer-owned
	// tail<<1 | backward, producer-owned. Packing the producer direction
	// with the tail lets a reader see both from one load.
	pub atomic.Int64

	backward bool // producer's view of the direction bit
}

// New allocates a queue of capacity slots with planes sized for one frame.
func New(capacity int, sizes media.PlaneSizes) (*Queue, error) {
	if capacity < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrCapacity, capacity)
	}

	q := &Queue{
		slots: make([]Slot, capacity),
		cap:   int64(capacity),
		sizes: sizes,
	}
	for i := range q.slots {
		q.slots[i].Y = make([]byte, sizes.Y)
		q.slots[i].U = make([]byte, sizes.UV)
		q.slots[i].V = make([]byte, sizes.UV)
		q.slots[i].pts.Store(-1)
	}
	q.head.Store(-1)
	q.pub.Store(pack(-1, false))
	return q, nil
}

// Capacity returns the number of slots.
func (q *Queue) Capacity() int {
	return int(q.cap)
}

// PlaneSizes returns the per-slot plane sizes.
func (q *Queue) PlaneSizes() media.PlaneSizes {
	return q.sizes
}

// Head returns the last PTS handed to the consumer, -1 if none.
func (q *Queue) Head() int64 {
	return q.head.Load()
}

// Tail returns the last PTS published by the producer, -1 if none.
func (q *Queue) Tail() int64 {
	tail, _ := unpack(q.pub.Load())
	return tail
}

func pack(tail int64, backward bool) int64 {
	v := tail << 1
	if backward {
		v |= 1
	}
	return v
}

func unpack(v int64) (tail int64, backward bool) {
	return v >> 1, v&1 == 1
}

func (q *Queue) index(pts int64) int64 {
	i := pts % q.cap
	if i < 0 {
		i += q.cap
	}
	return i
}

// SetProducerDirection declares the order in which the producer publishes.
// A backward producer publishes the lowest PTS of each decoded run, so its
// live window extends upward from the tail. Only the producer may call it.
func (q *Queue) SetProducerDirection(dir media.Direction) {
	q.PublishDirection(q.Tail(), dir)
}

// PublishDirection publishes pts and switches the producer direction in a
// single store.
func (q *Queue) PublishDirection(pts int64, dir media.Direction) {
	q.backward = dir == media.Backward
	q.pub.Store(pack(pts, q.backward))
}

// ProducerDirection returns the direction last published by the producer.
func (q *Queue) ProducerDirection() media.Direction {
	if _, backward := unpack(q.pub.Load()); backward {
		return media.Backward
	}
	return media.Forward
}

// WriteSlotAt claims the slot for pts. The slot is stamped with pts before
// the caller fills it so a concurrent reader expecting the previous occupant
// sees a mismatch. The frame becomes readable after Publish.
func (q *Queue) WriteSlotAt(pts int64) *Slot {
	s := &q.slots[q.index(pts)]
	s.pts.Store(pts)
	s.eos.Store(false)
	return s
}

// Publish makes every slot written up to pts visible to the consumer.
func (q *Queue) Publish(pts int64) {
	q.pub.Store(pack(pts, q.backward))
}

// IsStale reports whether pts lies outside the live window. Nothing is live
// before the first Publish.
func (q *Queue) IsStale(pts int64) bool {
	tail, backward := unpack(q.pub.Load())
	if tail < 0 || pts < 0 {
		return true
	}
	if backward {
		return pts < tail || pts > tail+q.cap-1
	}
	return pts < tail-q.cap+1 || pts > tail
}

// Peek returns the slot for pts if it is live, without moving the head.
func (q *Queue) Peek(pts int64) *Slot {
	if q.IsStale(pts) {
		return nil
	}
	s := &q.slots[q.index(pts)]
	if s.pts.Load() != pts {
		return nil
	}
	return s
}

// ReadAt returns the slot for pts and advances the head to it, or nil if
// the frame is not available. The returned slot stays valid until the
// producer claims the same index again.
func (q *Queue) ReadAt(pts int64) *Slot {
	s := q.Peek(pts)
	if s == nil {
		return nil
	}
	q.head.Store(pts)
	return s
}

// EmptyCount estimates how many frames can be decoded in dir before the
// producer would start overwriting frames near the head.
func (q *Queue) EmptyCount(dir media.Direction) int {
	head, tail := q.head.Load(), q.Tail()
	half := q.cap / 2

	var n int64
	if dir == media.Backward {
		n = (tail + half) - head
	} else {
		n = (head + half) - tail
	}
	if n < 0 {
		return 0
	}
	return int(n)
}

// Realign forces both cursors to pts, typically after a seek.
func (q *Queue) Realign(pts int64) {
	q.head.Store(pts)
	q.pub.Store(pack(pts, q.backward))
}
