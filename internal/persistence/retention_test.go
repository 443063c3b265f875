package persistence

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeChunkFile(t *testing.T, dir, name string, size int, mod time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("WriteFile(%q) error = %v", name, err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatalf("Chtimes(%q) error = %v", name, err)
	}
}

func TestCleanerEnforcesMaxChunks(t *testing.T) {
	dir := t.TempDir()
	base := time.Now()
	writeChunkFile(t, dir, "1-100.chunk.snappy", 10, base.Add(-3*time.Minute))
	writeChunkFile(t, dir, "1-200.chunk.snappy", 10, base.Add(-2*time.Minute))
	writeChunkFile(t, dir, "1-300.chunk.snappy", 10, base.Add(-1*time.Minute))

	c := NewCleaner(dir, RetentionPolicy{MaxChunks: 2}, nil)
	c.RunOnce()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	//1.- Only the two newest chunk files should survive.
	if len(entries) != 2 {
		t.Fatalf("ReadDir() = %d entries, want 2", len(entries))
	}
	if _, err := os.Stat(filepath.Join(dir, "1-100.chunk.snappy")); !os.IsNotExist(err) {
		t.Fatalf("expected oldest chunk file to be removed")
	}
}

func TestCleanerEnforcesMaxAge(t *testing.T) {
	dir := t.TempDir()
	base := time.Now()
	writeChunkFile(t, dir, "1-100.chunk.snappy", 10, base.Add(-time.Hour))
	writeChunkFile(t, dir, "1-200.chunk.snappy", 10, base)

	c := NewCleaner(dir, RetentionPolicy{MaxAge: time.Minute}, nil)
	c.RunOnce()

	if _, err := os.Stat(filepath.Join(dir, "1-100.chunk.snappy")); !os.IsNotExist(err) {
		t.Fatalf("expected aged-out chunk file to be removed")
	}
	if _, err := os.Stat(filepath.Join(dir, "1-200.chunk.snappy")); err != nil {
		t.Fatalf("expected recent chunk file to survive, stat error = %v", err)
	}
}

func TestCleanerIgnoresNonChunkFiles(t *testing.T) {
	dir := t.TempDir()
	writeChunkFile(t, dir, "readme.txt", 10, time.Now())

	c := NewCleaner(dir, RetentionPolicy{MaxChunks: 0}, nil)
	c.RunOnce()

	if _, err := os.Stat(filepath.Join(dir, "readme.txt")); err != nil {
		t.Fatalf("expected non-chunk file to survive untouched, stat error = %v", err)
	}
}

func TestCleanerStatsReflectLastSweep(t *testing.T) {
	dir := t.TempDir()
	writeChunkFile(t, dir, "1-100.chunk.zstd", 20, time.Now())

	c := NewCleaner(dir, RetentionPolicy{}, nil)
	c.RunOnce()

	stats := c.Stats()
	//1.- With no limits configured, the sole chunk file must be counted and kept.
	if stats.Chunks != 1 {
		t.Fatalf("Stats().Chunks = %d, want 1", stats.Chunks)
	}
	if stats.Bytes != 20 {
		t.Fatalf("Stats().Bytes = %d, want 20", stats.Bytes)
	}
}
