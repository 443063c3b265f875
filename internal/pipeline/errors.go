package pipeline

import "errors"

// ErrUnknownStory is returned by the ingestion engine when an event targets
// a story that has no registered pipeline.
var ErrUnknownStory = errors.New("pipeline: unknown story")

// ErrPoisoned is returned by every mutating operation on a pipeline once an
// invariant violation has halted it. A poisoned pipeline never recovers;
// the embedding service is expected to tear it down and, if appropriate,
// rebuild it from scratch.
var ErrPoisoned = errors.New("pipeline: poisoned by invariant violation")

// ErrChunkCollision is the InvariantViolation kind of spec §7: inserting a
// freshly minted chunk key collided with an existing one. It always
// precedes a pipeline being poisoned.
var ErrChunkCollision = errors.New("pipeline: chunk key collision")
