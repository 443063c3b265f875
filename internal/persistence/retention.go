package persistence

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"chronolog/internal/logging"
)

// RetentionPolicy bounds how many persisted chunk files, and for how long,
// a sink's directory retains on disk.
type RetentionPolicy struct {
	MaxChunks int
	MaxAge    time.Duration
}

// StorageStats summarises the disk footprint of persisted chunk files.
type StorageStats struct {
	Chunks    int
	Bytes     int64
	LastSweep time.Time
}

// Cleaner periodically prunes persisted chunk files according to a
// retention policy.
type Cleaner struct {
	mu     sync.RWMutex
	dir    string
	policy RetentionPolicy
	log    *logging.Logger
	now    func() time.Time
	stats  StorageStats
}

// NewCleaner constructs a cleaner for the provided persistence directory.
func NewCleaner(dir string, policy RetentionPolicy, logger *logging.Logger) *Cleaner {
	if logger == nil {
		logger = logging.L()
	}
	return &Cleaner{dir: dir, policy: policy, log: logger, now: time.Now}
}

// Run executes retention sweeps until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context, interval time.Duration) {
	if c == nil || ctx == nil {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	//1.- Perform an eager sweep so retention applies immediately on startup.
	c.sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			//2.- Trigger periodic sweeps while the context remains active.
			c.sweep()
		}
	}
}

// RunOnce performs a single retention sweep, primarily used for tests.
func (c *Cleaner) RunOnce() {
	if c == nil {
		return
	}
	c.sweep()
}

// Stats returns the last recorded storage statistics.
func (c *Cleaner) Stats() StorageStats {
	if c == nil {
		return StorageStats{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	//1.- Return a copy so callers cannot mutate internal state.
	return c.stats
}

type chunkFile struct {
	path    string
	size    int64
	modTime time.Time
}

func (c *Cleaner) sweep() {
	if c == nil || strings.TrimSpace(c.dir) == "" {
		return
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.log.Warn("persistence retention scan failed", logging.Error(err), logging.String("directory", c.dir))
		return
	}
	//1.- Collapse the directory contents into chunk files before sorting.
	files := c.collect(entries)
	now := c.now()
	kept := 0
	stats := StorageStats{LastSweep: now}
	for _, f := range files {
		shouldRemove, reason := c.shouldRemove(f, now, kept)
		if shouldRemove {
			if err := c.remove(f); err != nil {
				c.log.Warn("persistence retention removal failed", logging.Error(err), logging.String("file", f.path))
				stats.Chunks++
				stats.Bytes += f.size
				kept++
			} else {
				c.log.Info("persistence retention removed chunk", logging.String("file", f.path), logging.String("reason", reason))
			}
			continue
		}
		kept++
		stats.Chunks++
		stats.Bytes += f.size
	}
	c.mu.Lock()
	//2.- Publish the refreshed statistics so metrics handlers can report storage usage.
	c.stats = stats
	c.mu.Unlock()
}

func (c *Cleaner) collect(entries []os.DirEntry) []*chunkFile {
	files := make([]*chunkFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.Contains(entry.Name(), ".chunk.") {
			continue
		}
		path := filepath.Join(c.dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			c.log.Warn("persistence retention stat failed", logging.Error(err), logging.String("path", path))
			continue
		}
		files = append(files, &chunkFile{path: path, size: info.Size(), modTime: info.ModTime()})
	}
	//1.- Sort newest-first so retention limits favour recently persisted chunks.
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })
	return files
}

func (c *Cleaner) shouldRemove(f *chunkFile, now time.Time, kept int) (bool, string) {
	reasons := make([]string, 0, 2)
	if c.policy.MaxAge > 0 && now.Sub(f.modTime) > c.policy.MaxAge {
		//1.- Flag chunk files that exceeded the configured age budget.
		reasons = append(reasons, fmt.Sprintf("age>%s", c.policy.MaxAge))
	}
	if c.policy.MaxChunks > 0 && kept >= c.policy.MaxChunks {
		//2.- Enforce the maximum retained chunk count after accounting for age removals.
		reasons = append(reasons, fmt.Sprintf(">=%d chunks", c.policy.MaxChunks))
	}
	return len(reasons) > 0, strings.Join(reasons, ", ")
}

func (c *Cleaner) remove(f *chunkFile) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		//1.- Ignore already-missing files so repeated sweeps stay idempotent.
		return err
	}
	return nil
}
