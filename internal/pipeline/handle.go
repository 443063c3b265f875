package pipeline

import "sync"

// IngestionHandle is the per-story double-buffered intake queue. Any number
// of producer goroutines may call IngestEvent concurrently; a single
// sequencer goroutine periodically calls SwapActive followed by
// DrainPassive to pull events out for merging. The ingestion mutex's
// critical sections are O(1): append under lock, or flip an index under
// lock. Nothing resembling a merge ever runs while holding it.
type IngestionHandle struct {
	mu       sync.Mutex
	active   int
	buffers  [2][]Event
}

// NewIngestionHandle returns an empty, ready-to-use handle.
func NewIngestionHandle() *IngestionHandle {
	return &IngestionHandle{}
}

// IngestEvent appends e to the active buffer. Non-blocking except for the
// brief intake mutex acquisition; cancellation is not supported.
func (h *IngestionHandle) IngestEvent(e Event) {
	h.mu.Lock()
	h.buffers[h.active] = append(h.buffers[h.active], e)
	h.mu.Unlock()
}

// SwapActive atomically exchanges the active and passive buffer roles.
// Producers calling IngestEvent after this returns land in what was the
// passive buffer; the previously active buffer becomes passive and is safe
// for the sole sequencer to drain without holding the mutex.
func (h *IngestionHandle) SwapActive() {
	h.mu.Lock()
	h.active = 1 - h.active
	h.mu.Unlock()
}

// DrainPassive removes and returns every event buffered in the passive
// slot, resetting it to empty. Must only be called by the single sequencer
// goroutine for this handle; concurrent drains are not safe.
func (h *IngestionHandle) DrainPassive() []Event {
	h.mu.Lock()
	passiveIdx := 1 - h.active
	h.mu.Unlock()

	drained := h.buffers[passiveIdx]
	h.buffers[passiveIdx] = nil
	return drained
}
