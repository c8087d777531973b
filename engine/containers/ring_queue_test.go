package containers

import (
	"errors"
	"testing"
)

func TestRingQueueFIFOAndWrap(t *testing.T) {
	q := NewRingQueue[int](3)
	if _, err := q.Dequeue(); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("dequeue on empty queue: %v", err)
	}

	for round := 0; round < 4; round++ {
		for i := 0; i < 3; i++ {
			if err := q.Enqueue(round*10 + i); err != nil {
				t.Fatalf("enqueue: %v", err)
			}
		}
		if err := q.Enqueue(99); !errors.Is(err, ErrQueueFull) {
			t.Fatalf("enqueue on full queue: %v", err)
		}
		if v, _ := q.Peek(); v != round*10 {
			t.Fatalf("peek = %d, want %d", v, round*10)
		}
		for i := 0; i < 3; i++ {
			v, err := q.Dequeue()
			if err != nil || v != round*10+i {
				t.Fatalf("dequeue = %d, %v; want %d", v, err, round*10+i)
			}
		}
		if !q.IsEmpty() || q.Len() != 0 {
			t.Fatalf("queue not empty after draining")
		}
	}
}

func TestRingQueueMinimumSize(t *testing.T) {
	q := NewRingQueue[string](0)
	if q.Cap() != 1 {
		t.Fatalf("cap = %d, want 1", q.Cap())
	}
}
