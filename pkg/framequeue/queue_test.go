package framequeue

import (
	"errors"
	"sync"
	"testing"

	"github.com/user/vidsync/pkg/media"
)

func newTestQueue(t *testing.T, capacity int) *Queue {
	t.Helper()
	q, err := New(capacity, media.PlaneSizes{Y: 16, UV: 4})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return q
}

func publish(q *Queue, pts int64) {
	s := q.WriteSlotAt(pts)
	s.Y[0] = byte(pts)
	q.Publish(pts)
}

func TestNew_RejectsSmallCapacity(t *testing.T) {
	for _, c := range []int{-1, 0, 1} {
		if _, err := New(c, media.PlaneSizes{Y: 1, UV: 1}); !errors.Is(err, ErrCapacity) {
			t.Errorf("New(%d) error = %v, want ErrCapacity", c, err)
		}
	}
}

func TestNew_AllocatesPlanes(t *testing.T) {
	q := newTestQueue(t, 3)
	if q.Capacity() != 3 {
		t.Errorf("Capacity() = %d, want 3", q.Capacity())
	}
	for i := range q.slots {
		s := &q.slots[i]
		if len(s.Y) != 16 || len(s.U) != 4 || len(s.V) != 4 {
			t.Errorf("slot %d planes = %d/%d/%d", i, len(s.Y), len(s.U), len(s.V))
		}
		if s.PTS() != -1 {
			t.Errorf("slot %d pts = %d, want -1", i, s.PTS())
		}
	}
	if q.Head() != -1 || q.Tail() != -1 {
		t.Errorf("cursors = %d/%d, want -1/-1", q.Head(), q.Tail())
	}
}

func TestQueue_EmptyQueueIsStale(t *testing.T) {
	q := newTestQueue(t, 4)
	if !q.IsStale(0) {
		t.Error("IsStale(0) on empty queue should be true")
	}
	if q.ReadAt(0) != nil {
		t.Error("ReadAt(0) on empty queue should be nil")
	}
}

func TestQueue_CapacityFourScenario(t *testing.T) {
	q := newTestQueue(t, 4)
	for pts := int64(0); pts <= 3; pts++ {
		publish(q, pts)
	}

	if q.IsStale(0) {
		t.Fatal("IsStale(0) = true after publishing 0..3, want false")
	}

	publish(q, 4)

	if !q.IsStale(0) {
		t.Error("IsStale(0) = false after publishing 4, want true")
	}
	if s := q.ReadAt(0); s != nil {
		t.Errorf("ReadAt(0) = slot with pts %d, want nil", s.PTS())
	}
	s := q.ReadAt(4)
	if s == nil {
		t.Fatal("ReadAt(4) = nil, want slot")
	}
	if s.PTS() != 4 || s.Y[0] != 4 {
		t.Errorf("ReadAt(4) pts=%d data=%d", s.PTS(), s.Y[0])
	}
	if q.Head() != 4 {
		t.Errorf("Head() = %d, want 4", q.Head())
	}
}

func TestQueue_RingInvariant(t *testing.T) {
	const capacity = 5
	q := newTestQueue(t, capacity)

	for tail := int64(0); tail < 20; tail++ {
		publish(q, tail)

		for p := int64(-2); p < 25; p++ {
			want := p >= 0 && p <= tail && p >= tail-capacity+1
			if got := q.Peek(p) != nil; got != want {
				t.Fatalf("tail=%d: Peek(%d) available=%v, want %v", tail, p, got, want)
			}
			if q.IsStale(p) == want {
				t.Fatalf("tail=%d: IsStale(%d)=%v inconsistent", tail, p, q.IsStale(p))
			}
		}
	}
}

func TestQueue_ClaimedButUnpublishedIsNotReadable(t *testing.T) {
	q := newTestQueue(t, 4)
	publish(q, 0)
	publish(q, 1)

	q.WriteSlotAt(2)
	if q.ReadAt(2) != nil {
		t.Error("ReadAt(2) before Publish should be nil")
	}

	// Claiming 5 reuses the slot of 1.
	q.WriteSlotAt(5)
	if q.ReadAt(1) != nil {
		t.Error("ReadAt(1) after its slot was reclaimed should be nil")
	}
	if q.ReadAt(0) == nil {
		t.Error("ReadAt(0) should still succeed")
	}
}

func TestQueue_PeekDoesNotMoveHead(t *testing.T) {
	q := newTestQueue(t, 4)
	publish(q, 0)
	publish(q, 1)

	if q.Peek(1) == nil {
		t.Fatal("Peek(1) = nil")
	}
	if q.Head() != -1 {
		t.Errorf("Head() = %d after Peek, want -1", q.Head())
	}
}

func TestQueue_CursorMonotonicityForward(t *testing.T) {
	q := newTestQueue(t, 8)

	lastHead, lastTail := q.Head(), q.Tail()
	next := int64(0)
	for frame := int64(0); frame < 50; frame++ {
		for q.EmptyCount(media.Forward) > 0 {
			publish(q, next)
			next++
		}
		q.ReadAt(frame)

		if q.Head() < lastHead {
			t.Fatalf("head regressed: %d -> %d", lastHead, q.Head())
		}
		if q.Tail() < lastTail {
			t.Fatalf("tail regressed: %d -> %d", lastTail, q.Tail())
		}
		lastHead, lastTail = q.Head(), q.Tail()
	}
	if q.Head() != 49 {
		t.Errorf("Head() = %d, want 49", q.Head())
	}
}

func TestQueue_EmptyCount(t *testing.T) {
	tests := []struct {
		name string
		head int64
		tail int64
		dir  media.Direction
		want int
	}{
		{"forward headroom", 0, 2, media.Forward, 3},
		{"forward saturated", 0, 5, media.Forward, 0},
		{"forward clamped", 0, 9, media.Forward, 0},
		{"backward headroom", 20, 18, media.Backward, 3},
		{"backward saturated", 30, 18, media.Backward, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newTestQueue(t, 10)
			q.head.Store(tt.head)
			q.pub.Store(pack(tt.tail, false))
			if got := q.EmptyCount(tt.dir); got != tt.want {
				t.Errorf("EmptyCount = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestQueue_BackwardWindow(t *testing.T) {
	q := newTestQueue(t, 4)
	q.SetProducerDirection(media.Backward)

	// A backward producer decodes 6..9 in ascending order and publishes the
	// lowest PTS of the run.
	for pts := int64(6); pts <= 9; pts++ {
		q.WriteSlotAt(pts)
	}
	q.Publish(6)

	for pts := int64(6); pts <= 9; pts++ {
		if q.IsStale(pts) {
			t.Errorf("IsStale(%d) = true in backward window", pts)
		}
	}
	if !q.IsStale(5) || !q.IsStale(10) {
		t.Error("5 and 10 should be outside the backward window")
	}
	if q.ReadAt(9) == nil {
		t.Error("ReadAt(9) = nil")
	}
	if q.ProducerDirection() != media.Backward {
		t.Error("ProducerDirection() should be backward")
	}
}

func TestQueue_Realign(t *testing.T) {
	q := newTestQueue(t, 4)
	publish(q, 0)
	publish(q, 1)
	q.Realign(100)

	if q.Head() != 100 || q.Tail() != 100 {
		t.Errorf("cursors = %d/%d, want 100/100", q.Head(), q.Tail())
	}
	if q.ReadAt(1) != nil {
		t.Error("old frames must be stale after Realign")
	}
}

func TestQueue_EOSFlag(t *testing.T) {
	q := newTestQueue(t, 4)
	s := q.WriteSlotAt(3)
	s.SetEOS(true)
	q.Publish(3)
	if got := q.ReadAt(3); got == nil || !got.EOS() {
		t.Error("EOS flag lost")
	}

	// Reclaiming the slot clears the flag.
	s = q.WriteSlotAt(7)
	if s.EOS() {
		t.Error("WriteSlotAt should clear EOS")
	}
}

func TestQueue_ConcurrentProducerConsumer(t *testing.T) {
	const frames = 2000
	q := newTestQueue(t, 6)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for pts := int64(0); pts < frames; {
			if q.EmptyCount(media.Forward) == 0 {
				continue
			}
			s := q.WriteSlotAt(pts)
			s.Y[0] = byte(pts)
			s.Y[1] = byte(pts >> 8)
			q.Publish(pts)
			pts++
		}
	}()

	for pts := int64(0); pts < frames; {
		s := q.ReadAt(pts)
		if s == nil {
			continue
		}
		got := int64(s.Y[0]) | int64(s.Y[1])<<8
		if got != pts&0xffff {
			t.Fatalf("frame %d carried data of %d", pts, got)
		}
		pts++
	}
	wg.Wait()
}

func TestQueue_PublishDirectionSwitchesWindow(t *testing.T) {
	q := newTestQueue(t, 6)
	for pts := int64(10); pts <= 15; pts++ {
		publish(q, pts)
	}
	if q.IsStale(10) || !q.IsStale(16) {
		t.Fatal("forward window should be [10, 15]")
	}

	// Switching to backward at the lowest decoded frame keeps the same
	// frames live.
	q.PublishDirection(10, media.Backward)
	for pts := int64(10); pts <= 15; pts++ {
		if q.ReadAt(pts) == nil {
			t.Errorf("ReadAt(%d) = nil after switching direction", pts)
		}
	}
	if q.Tail() != 10 {
		t.Errorf("Tail() = %d, want 10", q.Tail())
	}

	q.PublishDirection(15, media.Forward)
	if q.ProducerDirection() != media.Forward || q.IsStale(10) {
		t.Error("switching back to forward should keep [10, 15] live")
	}
}
