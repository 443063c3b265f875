package pipeline

import (
	"testing"
	"time"
)

func TestStoryChunkInsertEventRejectsOutOfRange(t *testing.T) {
	start := time.Unix(100, 0)
	end := time.Unix(110, 0)
	chunk := NewStoryChunk(1, start, end)

	//1.- An event at or after end_time must be rejected without modifying state.
	if chunk.InsertEvent(Event{Time: end}) {
		t.Fatalf("InsertEvent accepted an event at end_time")
	}
	//2.- An event before start_time must also be rejected.
	if chunk.InsertEvent(Event{Time: start.Add(-time.Second)}) {
		t.Fatalf("InsertEvent accepted an event before start_time")
	}
	if chunk.Size() != 0 {
		t.Fatalf("chunk size = %d, want 0", chunk.Size())
	}
}

func TestStoryChunkInsertEventKeepsSortedOrder(t *testing.T) {
	start := time.Unix(100, 0)
	end := time.Unix(110, 0)
	chunk := NewStoryChunk(1, start, end)

	//1.- Insert out of order and verify iteration yields the total order.
	times := []int64{108, 102, 105}
	for _, ts := range times {
		if !chunk.InsertEvent(Event{Time: time.Unix(ts, 0), ClientID: "c"}) {
			t.Fatalf("InsertEvent rejected in-range time %d", ts)
		}
	}
	events := chunk.Events()
	want := []int64{102, 105, 108}
	for i, e := range events {
		if e.Time.Unix() != want[i] {
			t.Errorf("events[%d].Time = %d, want %d", i, e.Time.Unix(), want[i])
		}
	}
}

func TestStoryChunkMergeEventsMovesOnlyInRangeEvents(t *testing.T) {
	target := NewStoryChunk(1, time.Unix(100, 0), time.Unix(110, 0))
	other := NewStoryChunk(1, time.Unix(90, 0), time.Unix(120, 0))
	other.InsertEvent(Event{Time: time.Unix(95, 0)})
	other.InsertEvent(Event{Time: time.Unix(103, 0)})
	other.InsertEvent(Event{Time: time.Unix(115, 0)})

	//1.- Only the event inside [100,110) should migrate to target.
	target.MergeEvents(other)

	if target.Size() != 1 || target.Events()[0].Time.Unix() != 103 {
		t.Fatalf("target events = %v, want single event at 103", target.Events())
	}
	remaining := other.Events()
	if len(remaining) != 2 {
		t.Fatalf("other retained %d events, want 2", len(remaining))
	}
}

func TestStoryChunkEraseEvents(t *testing.T) {
	chunk := NewStoryChunk(1, time.Unix(0, 0), time.Unix(1000, 0))
	chunk.InsertEvent(Event{Time: time.Unix(10, 0)})
	chunk.InsertEvent(Event{Time: time.Unix(20, 0)})
	chunk.InsertEvent(Event{Time: time.Unix(30, 0)})

	//1.- Erase the middle window and confirm only the outside events survive.
	chunk.EraseEvents(time.Unix(15, 0), time.Unix(25, 0))
	events := chunk.Events()
	if len(events) != 2 {
		t.Fatalf("events = %v, want 2 remaining", events)
	}
	if events[0].Time.Unix() != 10 || events[1].Time.Unix() != 30 {
		t.Fatalf("unexpected survivors: %v", events)
	}
}

func TestStoryChunkEmpty(t *testing.T) {
	chunk := NewStoryChunk(1, time.Unix(0, 0), time.Unix(10, 0))
	//1.- A freshly constructed chunk has no events.
	if !chunk.Empty() {
		t.Fatalf("new chunk reported non-empty")
	}
	chunk.InsertEvent(Event{Time: time.Unix(5, 0)})
	if chunk.Empty() {
		t.Fatalf("chunk with one event reported empty")
	}
}
