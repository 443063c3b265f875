package persistence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"chronolog/internal/pipeline"
)

func TestPersistWritesSnappyFileForSmallChunk(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir, 0, nil, nil)
	if err != nil {
		t.Fatalf("NewSink() error = %v", err)
	}

	start := time.Unix(0, 0).UTC()
	chunk := pipeline.NewStoryChunk(42, start, start.Add(10*time.Second))
	chunk.InsertEvent(pipeline.Event{Time: start.Add(time.Second), ClientID: "c1", Index: 1, Payload: []byte("hello")})

	//1.- A small chunk must round-trip through the snappy path.
	if err := sink.persist(chunk); err != nil {
		t.Fatalf("persist() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("ReadDir() = %d entries, want 1", len(entries))
	}
	if filepath.Ext(entries[0].Name()) != ".snappy" {
		t.Fatalf("file name = %q, want .snappy suffix", entries[0].Name())
	}
}

func TestPersistWritesZstdFileForLargeChunk(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir, 0, nil, nil)
	if err != nil {
		t.Fatalf("NewSink() error = %v", err)
	}

	start := time.Unix(0, 0).UTC()
	chunk := pipeline.NewStoryChunk(7, start, start.Add(time.Minute))
	big := make([]byte, DefaultCodecThreshold+1)
	chunk.InsertEvent(pipeline.Event{Time: start.Add(time.Second), ClientID: "c1", Index: 1, Payload: big})

	//1.- A chunk above the codec threshold must round-trip through zstd.
	if err := sink.persist(chunk); err != nil {
		t.Fatalf("persist() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("ReadDir() = %d entries, want 1", len(entries))
	}
	if filepath.Ext(entries[0].Name()) != ".zstd" {
		t.Fatalf("file name = %q, want .zstd suffix", entries[0].Name())
	}
}

func TestPersistSkipsEmptyChunk(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir, 0, nil, nil)
	if err != nil {
		t.Fatalf("NewSink() error = %v", err)
	}

	chunk := pipeline.NewStoryChunk(1, time.Unix(0, 0), time.Unix(10, 0))
	//1.- An empty chunk must not produce a file.
	if err := sink.persist(chunk); err != nil {
		t.Fatalf("persist() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("ReadDir() = %d entries, want 0", len(entries))
	}
}

func TestWatchUnwatchAndDrainAll(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir, 0, nil, nil)
	if err != nil {
		t.Fatalf("NewSink() error = %v", err)
	}

	queue := pipeline.NewExtractionQueue()
	start := time.Unix(0, 0).UTC()
	chunk := pipeline.NewStoryChunk(9, start, start.Add(time.Second))
	chunk.InsertEvent(pipeline.Event{Time: start, ClientID: "c1", Index: 0, Payload: []byte("x")})
	queue.Stash(chunk)

	sink.Watch(9, queue)
	//1.- Draining must persist whatever the watched queue currently holds.
	sink.DrainAll()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("ReadDir() = %d entries, want 1", len(entries))
	}

	//2.- Unwatching must stop further drains from touching the queue.
	sink.Unwatch(9)
	chunk2 := pipeline.NewStoryChunk(9, start, start.Add(time.Second))
	chunk2.InsertEvent(pipeline.Event{Time: start, ClientID: "c1", Index: 1, Payload: []byte("y")})
	queue.Stash(chunk2)
	sink.DrainAll()

	entries, err = os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("ReadDir() after unwatch = %d entries, want still 1", len(entries))
	}
}
