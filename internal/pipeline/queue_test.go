package pipeline

import (
	"testing"
	"time"
)

func TestExtractionQueueStashAndDrainPreservesOrder(t *testing.T) {
	q := NewExtractionQueue()
	first := NewStoryChunk(1, time.Unix(0, 0), time.Unix(10, 0))
	second := NewStoryChunk(1, time.Unix(10, 0), time.Unix(20, 0))

	q.Stash(first)
	q.Stash(second)

	//1.- Size reflects stashed chunks before any drain.
	if q.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", q.Size())
	}

	drained := q.Drain()
	if len(drained) != 2 || drained[0] != first || drained[1] != second {
		t.Fatalf("Drain() = %v, want [first second] in stash order", drained)
	}

	//2.- Draining empties the queue.
	if q.Size() != 0 {
		t.Fatalf("Size() after drain = %d, want 0", q.Size())
	}
	if drained := q.Drain(); drained != nil {
		t.Fatalf("second Drain() = %v, want nil", drained)
	}
}
