package pipeline

import "sync"

// Engine dispatches events to the per-story pipeline registered for their
// story id, implementing spec §6's ingestion contract
// (`ingest(story_id, event) -> Ok | UnknownStory`) at the process level.
// StoryPipeline itself has no notion of other stories; Engine is the
// lookup layer a directory-aware caller drives.
type Engine struct {
	mu        sync.RWMutex
	pipelines map[uint64]*StoryPipeline
}

// NewEngine returns an Engine with no registered pipelines.
func NewEngine() *Engine {
	return &Engine{pipelines: make(map[uint64]*StoryPipeline)}
}

// Register makes p reachable by Ingest under storyID, replacing any
// previously registered pipeline for that id.
func (eng *Engine) Register(storyID uint64, p *StoryPipeline) {
	if eng == nil || p == nil {
		return
	}
	eng.mu.Lock()
	defer eng.mu.Unlock()
	eng.pipelines[storyID] = p
}

// Unregister removes storyID's pipeline. Callers should finalize the
// pipeline before or after unregistering; Engine itself does not.
func (eng *Engine) Unregister(storyID uint64) {
	if eng == nil {
		return
	}
	eng.mu.Lock()
	defer eng.mu.Unlock()
	delete(eng.pipelines, storyID)
}

// Lookup returns the pipeline registered for storyID, if any.
func (eng *Engine) Lookup(storyID uint64) (*StoryPipeline, bool) {
	if eng == nil {
		return nil, false
	}
	eng.mu.RLock()
	defer eng.mu.RUnlock()
	p, ok := eng.pipelines[storyID]
	return p, ok
}

// Ingest routes e to storyID's registered pipeline, returning
// ErrUnknownStory when no pipeline answers for that id.
func (eng *Engine) Ingest(storyID uint64, e Event) error {
	p, ok := eng.Lookup(storyID)
	if !ok {
		return ErrUnknownStory
	}
	return p.Ingest(e)
}
