// Package persistence drains extracted story chunks to disk, encoding and
// compressing them for later retrieval by a playback system out of scope
// here (see the query/playback Non-goal).
package persistence

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"chronolog/internal/logging"
	"chronolog/internal/metrics"
	"chronolog/internal/pipeline"
)

// DefaultCodecThreshold is the encoded-byte size above which Sink switches
// from snappy to zstd, mirroring the teacher's dual-codec split between its
// high-frequency snappy stream and its bulk zstd stream.
const DefaultCodecThreshold = 64 * 1024

// wireEvent is the gob-encodable projection of pipeline.Event.
type wireEvent struct {
	TimeNS   int64
	ClientID string
	Index    uint64
	Payload  []byte
}

// wireChunk is the on-disk encoding of a StoryChunk per the wire schema.
type wireChunk struct {
	StoryID     uint64
	StartTimeNS int64
	EndTimeNS   int64
	Events      []wireEvent
}

// Sink drains one or more ExtractionQueues on an interval, persisting every
// chunk it finds to dir as a single compressed file.
type Sink struct {
	mu             sync.Mutex
	dir            string
	codecThreshold int
	queues         map[uint64]*pipeline.ExtractionQueue
	log            *logging.Logger
	metrics        *metrics.Collector
}

// NewSink prepares a persistence worker writing under dir, creating it if
// necessary. A codecThreshold <= 0 falls back to DefaultCodecThreshold.
func NewSink(dir string, codecThreshold int, logger *logging.Logger, collector *metrics.Collector) (*Sink, error) {
	if logger == nil {
		logger = logging.L()
	}
	if codecThreshold <= 0 {
		codecThreshold = DefaultCodecThreshold
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("persistence: create directory: %w", err)
	}
	return &Sink{
		dir:            dir,
		codecThreshold: codecThreshold,
		queues:         make(map[uint64]*pipeline.ExtractionQueue),
		log:            logger,
		metrics:        collector,
	}, nil
}

// Watch registers queue so subsequent DrainAll calls also drain it for
// storyID.
func (s *Sink) Watch(storyID uint64, queue *pipeline.ExtractionQueue) {
	if s == nil || queue == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[storyID] = queue
}

// Unwatch stops draining storyID's queue.
func (s *Sink) Unwatch(storyID uint64) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queues, storyID)
}

// Run drains every watched queue on interval until ctx is cancelled.
func (s *Sink) Run(ctx context.Context, interval time.Duration) {
	if s == nil || ctx == nil {
		return
	}
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.DrainAll()
			return
		case <-ticker.C:
			s.DrainAll()
		}
	}
}

// DrainAll drains every watched queue once, persisting whatever chunks it
// finds.
func (s *Sink) DrainAll() {
	if s == nil {
		return
	}
	s.mu.Lock()
	queues := make([]*pipeline.ExtractionQueue, 0, len(s.queues))
	for _, q := range s.queues {
		queues = append(queues, q)
	}
	s.mu.Unlock()

	for _, q := range queues {
		for _, chunk := range q.Drain() {
			if err := s.persist(chunk); err != nil {
				s.log.Warn("chunk persistence failed", logging.Error(err))
			}
		}
	}
}

// persist encodes and compresses chunk, writing it to a single file. chunk
// is never mutated; only its exported accessors are read.
func (s *Sink) persist(chunk *pipeline.StoryChunk) error {
	if chunk == nil || chunk.Empty() {
		return nil
	}

	events := chunk.Events()
	wire := wireChunk{
		StoryID:     chunk.StoryID,
		StartTimeNS: chunk.StartTime.UnixNano(),
		EndTimeNS:   chunk.EndTime.UnixNano(),
		Events:      make([]wireEvent, len(events)),
	}
	for i, e := range events {
		wire.Events[i] = wireEvent{
			TimeNS:   e.Time.UnixNano(),
			ClientID: e.ClientID,
			Index:    e.Index,
			Payload:  e.Payload,
		}
	}

	var encoded bytes.Buffer
	if err := gob.NewEncoder(&encoded).Encode(&wire); err != nil {
		return fmt.Errorf("persistence: encode chunk: %w", err)
	}

	codec := "snappy"
	var compressed []byte
	if encoded.Len() > s.codecThreshold {
		//1.- Larger chunks favour zstd's better ratio over snappy's speed.
		codec = "zstd"
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return fmt.Errorf("persistence: new zstd writer: %w", err)
		}
		compressed = enc.EncodeAll(encoded.Bytes(), nil)
		enc.Close()
	} else {
		compressed = snappy.Encode(nil, encoded.Bytes())
	}

	name := fmt.Sprintf("%d-%d.chunk.%s", wire.StoryID, wire.StartTimeNS, codec)
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, compressed, 0o644); err != nil {
		return fmt.Errorf("persistence: write chunk file: %w", err)
	}

	if s.metrics != nil {
		s.metrics.AddPersistedBytes(codec, len(compressed))
	}
	s.log.Debug("chunk persisted",
		logging.String("path", path),
		logging.String("codec", codec),
		logging.Int("events", len(events)),
		logging.Bool("zstd", codec == "zstd"),
	)
	return nil
}
