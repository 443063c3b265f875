package pipeline

import (
	"sort"
	"time"
)

// StoryChunk is a time-bounded, ordered container of events. Every event it
// holds satisfies StartTime <= event.Time < EndTime. A chunk is owned by
// exactly one of: a pipeline's timeline, the extraction queue, or the
// persistence worker that dequeued it — never two at once.
type StoryChunk struct {
	StoryID   uint64
	StartTime time.Time
	EndTime   time.Time
	events    []Event
}

// NewStoryChunk constructs an empty chunk spanning [start, end).
func NewStoryChunk(storyID uint64, start, end time.Time) *StoryChunk {
	return &StoryChunk{StoryID: storyID, StartTime: start, EndTime: end}
}

// InsertEvent inserts e in sorted order if its time falls within the
// chunk's half-open interval. It returns false without modifying the chunk
// otherwise.
func (c *StoryChunk) InsertEvent(e Event) bool {
	if c == nil || e.Time.Before(c.StartTime) || !e.Time.Before(c.EndTime) {
		return false
	}
	//1.- Locate the insertion point that preserves total-order iteration.
	idx := sort.Search(len(c.events), func(i int) bool {
		return e.Less(c.events[i])
	})
	c.events = append(c.events, Event{})
	copy(c.events[idx+1:], c.events[idx:])
	c.events[idx] = e
	return true
}

// MergeEvents moves every event of other whose time lies in this chunk's
// interval out of other and into this chunk, leaving other holding only
// events outside the interval.
func (c *StoryChunk) MergeEvents(other *StoryChunk) {
	if c == nil || other == nil || len(other.events) == 0 {
		return
	}
	remaining := other.events[:0:0]
	for _, e := range other.events {
		if !e.Time.Before(c.StartTime) && e.Time.Before(c.EndTime) {
			//1.- Fold events inside the target window directly into sorted position.
			c.InsertEvent(e)
			continue
		}
		remaining = append(remaining, e)
	}
	other.events = remaining
}

// EraseEvents removes every event with from <= Time < to.
func (c *StoryChunk) EraseEvents(from, to time.Time) {
	if c == nil || len(c.events) == 0 {
		return
	}
	kept := c.events[:0:0]
	for _, e := range c.events {
		if !e.Time.Before(from) && e.Time.Before(to) {
			continue
		}
		kept = append(kept, e)
	}
	c.events = kept
}

// Empty reports whether the chunk holds zero events.
func (c *StoryChunk) Empty() bool {
	return c == nil || len(c.events) == 0
}

// Size returns the number of events the chunk holds.
func (c *StoryChunk) Size() int {
	if c == nil {
		return 0
	}
	return len(c.events)
}

// Events returns a defensive copy of the chunk's events in total order.
func (c *StoryChunk) Events() []Event {
	if c == nil {
		return nil
	}
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}
