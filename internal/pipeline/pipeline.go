package pipeline

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"chronolog/internal/logging"
	"chronolog/internal/metrics"
)

// StoryPipeline owns a story's timeline of chunks and the ingestion handle
// producers feed. It is the time-indexed map of spec §3/§4.3: ingest, then
// periodically merge and age chunks out to the extraction queue.
//
// Construction pre-seeds three chunks so the timeline never drops below
// the required minimum of two. Every mutating operation checks the
// poisoned flag first; once an invariant violation is detected the
// pipeline never recovers and every subsequent call returns ErrPoisoned.
type StoryPipeline struct {
	storyID          uint64
	chunkGranularity time.Duration
	acceptanceWindow time.Duration

	seqMu         sync.Mutex
	timeline      []*StoryChunk
	timelineStart time.Time
	timelineEnd   time.Time
	poisoned      bool
	finalized     bool
	discarded     uint64

	handle  *IngestionHandle
	queue   *ExtractionQueue
	logger  *logging.Logger
	metrics *metrics.Collector
}

// NewStoryPipeline constructs a pipeline for storyID, floor-aligning the
// timeline start to a chunk-granularity boundary and pre-seeding three
// chunks, per spec §4.3's construction algorithm.
func NewStoryPipeline(storyID uint64, startTimeHint time.Time, chunkGranularity, acceptanceWindow time.Duration, queue *ExtractionQueue, logger *logging.Logger, collector *metrics.Collector) (*StoryPipeline, error) {
	if chunkGranularity <= 0 {
		return nil, fmt.Errorf("pipeline: chunk granularity must be positive")
	}
	if acceptanceWindow < 0 {
		return nil, fmt.Errorf("pipeline: acceptance window must be non-negative")
	}
	if queue == nil {
		return nil, fmt.Errorf("pipeline: extraction queue must be provided")
	}
	if logger == nil {
		logger = logging.L()
	}
	p := &StoryPipeline{
		storyID:          storyID,
		chunkGranularity: chunkGranularity,
		acceptanceWindow: acceptanceWindow,
		handle:           NewIngestionHandle(),
		queue:            queue,
		logger:           logger,
		metrics:          collector,
	}
	//1.- Floor-align the timeline start to a chunk-granularity boundary.
	p.timelineStart = startTimeHint.Truncate(chunkGranularity)
	p.timelineEnd = p.timelineStart
	//2.- Pre-seed three chunks so the >=2 invariant holds from the start.
	for p.timelineEnd.Before(p.timelineStart.Add(3 * chunkGranularity)) {
		if _, err := p.appendChunkLocked(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// StoryID returns the story this pipeline serves.
func (p *StoryPipeline) StoryID() uint64 { return p.storyID }

// Poisoned reports whether a fatal invariant violation has halted the
// pipeline.
func (p *StoryPipeline) Poisoned() bool {
	p.seqMu.Lock()
	defer p.seqMu.Unlock()
	return p.poisoned
}

// DiscardedCount returns the number of events dropped by merge failures
// since construction.
func (p *StoryPipeline) DiscardedCount() uint64 {
	p.seqMu.Lock()
	defer p.seqMu.Unlock()
	return p.discarded
}

// ChunkCount returns the current number of chunks in the timeline.
func (p *StoryPipeline) ChunkCount() int {
	p.seqMu.Lock()
	defer p.seqMu.Unlock()
	return len(p.timeline)
}

// TimelineBounds returns the current [timelineStart, timelineEnd) cursors.
func (p *StoryPipeline) TimelineBounds() (start, end time.Time) {
	p.seqMu.Lock()
	defer p.seqMu.Unlock()
	return p.timelineStart, p.timelineEnd
}

// Chunks returns a snapshot of the timeline's chunks in ascending order.
// The returned chunks are still owned by the pipeline; callers must not
// mutate them.
func (p *StoryPipeline) Chunks() []*StoryChunk {
	p.seqMu.Lock()
	defer p.seqMu.Unlock()
	out := make([]*StoryChunk, len(p.timeline))
	copy(out, p.timeline)
	return out
}

// Ingest hands e to the ingestion handle. Non-blocking except for the
// handle's brief intake mutex.
func (p *StoryPipeline) Ingest(e Event) error {
	if p.Poisoned() {
		return ErrPoisoned
	}
	p.handle.IngestEvent(e)
	if p.metrics != nil {
		p.metrics.IncEventsIngested(p.storyIDString())
	}
	return nil
}

// Collect runs one collection cycle: swap the ingestion handle's buffers
// and merge the drained passive deque into the timeline. Idempotent when
// no events are pending.
func (p *StoryPipeline) Collect() error {
	if p.Poisoned() {
		return ErrPoisoned
	}
	//1.- Swap then drain outside the sequencing lock, per the handle's contract.
	p.handle.SwapActive()
	drained := p.handle.DrainPassive()
	if len(drained) == 0 {
		return nil
	}
	p.seqMu.Lock()
	defer p.seqMu.Unlock()
	if p.poisoned {
		return ErrPoisoned
	}
	p.mergeFromDequeLocked(drained)
	return nil
}

// ExtractDecayed pops every chunk whose right edge has aged past the
// acceptance window relative to currentTime and stashes non-empty ones to
// the extraction queue.
func (p *StoryPipeline) ExtractDecayed(currentTime time.Time) error {
	if p.Poisoned() {
		return ErrPoisoned
	}
	for {
		chunk, ok := p.tryPopDecayed(currentTime)
		if !ok {
			return nil
		}
		if chunk.Empty() {
			//1.- Empty chunks are simply discarded, no counters per spec §4.3.
			continue
		}
		p.queue.Stash(chunk)
		if p.metrics != nil {
			p.metrics.IncChunksExtracted(p.storyIDString())
		}
	}
}

// Finalize disengages the pipeline: drains both ingestion deques, merges
// whatever was pending, then unconditionally drains the timeline map to
// the extraction queue regardless of decay. Safe to call once; subsequent
// calls are no-ops.
func (p *StoryPipeline) Finalize() {
	p.seqMu.Lock()
	if p.finalized {
		p.seqMu.Unlock()
		return
	}
	p.seqMu.Unlock()

	//1.- Drain whatever is currently passive, then swap once more to pull the
	// remainder out of what was still active; producers are expected to have
	// already stopped at this layer.
	first := p.handle.DrainPassive()
	p.handle.SwapActive()
	second := p.handle.DrainPassive()
	pending := append(first, second...)

	p.seqMu.Lock()
	defer p.seqMu.Unlock()
	if p.finalized {
		return
	}
	if !p.poisoned && len(pending) > 0 {
		p.mergeFromDequeLocked(pending)
	}
	//2.- Drain the timeline unconditionally: empty chunks vanish, the rest stash.
	for _, chunk := range p.timeline {
		if chunk.Empty() {
			continue
		}
		p.queue.Stash(chunk)
		if p.metrics != nil {
			p.metrics.IncChunksFinalized(p.storyIDString())
		}
	}
	p.timeline = nil
	p.finalized = true
}

// MergeFromChunk merges an externally sourced chunk (possibly built under
// a different granularity) into the timeline, per spec §4.3's
// merge-from-chunk algorithm.
func (p *StoryPipeline) MergeFromChunk(other *StoryChunk) error {
	if other == nil {
		return nil
	}
	if p.Poisoned() {
		return ErrPoisoned
	}
	p.seqMu.Lock()
	defer p.seqMu.Unlock()
	if p.poisoned {
		return ErrPoisoned
	}
	p.mergeFromChunkLocked(other)
	return nil
}

func (p *StoryPipeline) mergeFromChunkLocked(other *StoryChunk) {
	var idx int
	if !other.StartTime.Before(p.timelineStart) {
		//1.- Position at the chunk that would contain other's start time.
		idx = p.upperBoundIndexLocked(other.StartTime) - 1
		if idx < 0 {
			idx = 0
		}
	} else {
		for p.timelineStart.After(other.StartTime) {
			if _, err := p.prependChunkLocked(); err != nil {
				//2.- Prepend failed: drop the non-mergeable prefix and start at chunk zero.
				other.EraseEvents(time.Time{}, p.timelineStart)
				break
			}
		}
		idx = 0
	}
	for idx < len(p.timeline) && !other.Empty() {
		p.timeline[idx].MergeEvents(other)
		idx++
	}
	for !other.Empty() {
		//3.- Extend the timeline forward until other is fully drained or a
		// fatal append failure halts the pipeline.
		if _, err := p.appendChunkLocked(); err != nil {
			return
		}
		idx = len(p.timeline) - 1
		p.timeline[idx].MergeEvents(other)
	}
}

func (p *StoryPipeline) mergeFromDequeLocked(events []Event) {
	if len(events) == 0 {
		return
	}
	cur := len(p.timeline) - 1
	for _, e := range events {
		if p.poisoned {
			return
		}
		switch {
		case !e.Time.Before(p.timelineStart) && e.Time.Before(p.timelineEnd):
			if cur < 0 || cur >= len(p.timeline) {
				cur = len(p.timeline) - 1
			}
			if p.timeline[cur].InsertEvent(e) {
				continue
			}
			//1.- Fall back to a direct lookup when the cached chunk rejects the event.
			idx := p.upperBoundIndexLocked(e.Time) - 1
			if idx >= 0 && idx < len(p.timeline) && p.timeline[idx].InsertEvent(e) {
				cur = idx
				continue
			}
			p.discardEventLocked(e)

		case !e.Time.Before(p.timelineEnd):
			//2.- Extend forward until the event falls inside the timeline.
			for !e.Time.Before(p.timelineEnd) {
				if _, err := p.appendChunkLocked(); err != nil {
					return
				}
			}
			cur = len(p.timeline) - 1
			if !p.timeline[cur].InsertEvent(e) {
				p.discardEventLocked(e)
			}

		default:
			//3.- Extend backward; a failed prepend discards the event (counted and logged).
			failed := false
			for e.Time.Before(p.timelineStart) {
				if _, err := p.prependChunkLocked(); err != nil {
					failed = true
					break
				}
			}
			if failed {
				p.discardEventLocked(e)
				continue
			}
			if !p.timeline[0].InsertEvent(e) {
				p.discardEventLocked(e)
				continue
			}
			cur = 0
		}
	}
}

// appendChunkLocked creates [timelineEnd, timelineEnd+granularity), inserts
// it at the tail, and advances timelineEnd. Caller must hold seqMu.
func (p *StoryPipeline) appendChunkLocked() (*StoryChunk, error) {
	if p.poisoned {
		return nil, ErrPoisoned
	}
	start := p.timelineEnd
	end := start.Add(p.chunkGranularity)
	if n := len(p.timeline); n > 0 && !p.timeline[n-1].EndTime.Equal(start) {
		p.poisonLocked()
		return nil, ErrChunkCollision
	}
	chunk := NewStoryChunk(p.storyID, start, end)
	p.timeline = append(p.timeline, chunk)
	p.timelineEnd = end
	return chunk, nil
}

// prependChunkLocked creates [timelineStart-granularity, timelineStart),
// inserts it at the head, and retreats timelineStart. Caller must hold
// seqMu.
func (p *StoryPipeline) prependChunkLocked() (*StoryChunk, error) {
	if p.poisoned {
		return nil, ErrPoisoned
	}
	end := p.timelineStart
	start := end.Add(-p.chunkGranularity)
	if n := len(p.timeline); n > 0 && !p.timeline[0].StartTime.Equal(end) {
		p.poisonLocked()
		return nil, ErrChunkCollision
	}
	chunk := NewStoryChunk(p.storyID, start, end)
	p.timeline = append([]*StoryChunk{chunk}, p.timeline...)
	p.timelineStart = start
	return chunk, nil
}

// upperBoundIndexLocked returns the index of the first chunk whose
// StartTime is strictly after t (the std::upper_bound equivalent over
// chunk start-time keys). Caller must hold seqMu.
func (p *StoryPipeline) upperBoundIndexLocked(t time.Time) int {
	return sort.Search(len(p.timeline), func(i int) bool {
		return p.timeline[i].StartTime.After(t)
	})
}

// tryPopDecayed re-verifies the decay condition under the sequencing lock,
// pops the first chunk if it still qualifies (appending a fresh tail chunk
// first if the pop would violate the >=2 invariant), and releases the lock
// before returning.
func (p *StoryPipeline) tryPopDecayed(currentTime time.Time) (*StoryChunk, bool) {
	p.seqMu.Lock()
	defer p.seqMu.Unlock()
	if p.poisoned || len(p.timeline) == 0 {
		return nil, false
	}
	first := p.timeline[0]
	if currentTime.Before(first.EndTime.Add(p.acceptanceWindow)) {
		return nil, false
	}
	if len(p.timeline) <= 2 {
		//1.- Preserve the >=2 chunk invariant by appending before popping.
		if _, err := p.appendChunkLocked(); err != nil {
			return nil, false
		}
	}
	popped := p.timeline[0]
	p.timeline = p.timeline[1:]
	p.timelineStart = p.timeline[0].StartTime
	return popped, true
}

func (p *StoryPipeline) poisonLocked() {
	if p.poisoned {
		return
	}
	p.poisoned = true
	if p.metrics != nil {
		p.metrics.IncInvariantViolation(p.storyIDString())
	}
	if p.logger != nil {
		p.logger.Error("pipeline poisoned by invariant violation",
			logging.String("story_id", p.storyIDString()))
	}
}

func (p *StoryPipeline) discardEventLocked(e Event) {
	p.discarded++
	if p.metrics != nil {
		p.metrics.IncEventsDiscarded(p.storyIDString())
	}
	if p.logger != nil {
		p.logger.Warn("discarded event during merge",
			logging.String("story_id", p.storyIDString()),
			logging.Int64("event_time_ns", e.Time.UnixNano()))
	}
}

func (p *StoryPipeline) storyIDString() string {
	return strconv.FormatUint(p.storyID, 10)
}
