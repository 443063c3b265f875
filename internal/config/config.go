package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultChunkGranularity is the default width of a story chunk's time window.
	DefaultChunkGranularity = 10 * time.Second
	// DefaultAcceptanceWindow bounds how far behind the timeline an event may still land.
	DefaultAcceptanceWindow = 5 * time.Second
	// DefaultCollectInterval controls how often a pipeline drains its ingestion handle.
	DefaultCollectInterval = 100 * time.Millisecond
	// DefaultExtractInterval controls how often a pipeline sweeps for decayed chunks.
	DefaultExtractInterval = time.Second

	// DefaultPersistenceDir is where extracted chunk artifacts are written.
	DefaultPersistenceDir = "chronolog-data"
	// DefaultPersistenceCodecThreshold is the encoded-byte size above which zstd
	// replaces snappy as the extraction codec.
	DefaultPersistenceCodecThreshold = 64 * 1024
	// DefaultRetentionMaxArtifacts bounds how many extracted chunk files are kept in the
	// persistence directory, counted across all stories; 0 disables the limit.
	DefaultRetentionMaxArtifacts = 0
	// DefaultRetentionMaxAge bounds how long an extracted chunk file is kept on disk.
	DefaultRetentionMaxAge = 0

	// DefaultLogLevel controls verbosity for chronologd logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "chronologd.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true

	// DefaultMetricsAddr is the address the /healthz and /metrics endpoints bind to.
	DefaultMetricsAddr = ":9090"
)

// Config captures all runtime tunables for the chronologd service.
type Config struct {
	ChunkGranularity time.Duration
	AcceptanceWindow time.Duration
	CollectInterval  time.Duration
	ExtractInterval  time.Duration
	PersistenceDir   string
	CodecThreshold   int
	RetentionMax     int
	RetentionMaxAge  time.Duration
	MetricsAddr      string
	Logging          LoggingConfig
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load reads the chronologd configuration from environment variables, applying sane
// defaults and returning descriptive errors for invalid overrides.
func Load() (*Config, error) {
	cfg := &Config{
		ChunkGranularity: DefaultChunkGranularity,
		AcceptanceWindow: DefaultAcceptanceWindow,
		CollectInterval:  DefaultCollectInterval,
		ExtractInterval:  DefaultExtractInterval,
		PersistenceDir:   getString("CHRONOLOG_PERSISTENCE_DIR", DefaultPersistenceDir),
		CodecThreshold:   DefaultPersistenceCodecThreshold,
		RetentionMax:     DefaultRetentionMaxArtifacts,
		RetentionMaxAge:  DefaultRetentionMaxAge,
		MetricsAddr:      getString("CHRONOLOG_METRICS_ADDR", DefaultMetricsAddr),
		Logging: LoggingConfig{
			Level:      strings.TrimSpace(getString("CHRONOLOG_LOG_LEVEL", DefaultLogLevel)),
			Path:       strings.TrimSpace(getString("CHRONOLOG_LOG_PATH", DefaultLogPath)),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
	}

	var problems []string

	if raw := strings.TrimSpace(os.Getenv("CHRONOLOG_CHUNK_GRANULARITY")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("CHRONOLOG_CHUNK_GRANULARITY must be a positive duration, got %q", raw))
		} else {
			cfg.ChunkGranularity = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CHRONOLOG_ACCEPTANCE_WINDOW")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration < 0 {
			problems = append(problems, fmt.Sprintf("CHRONOLOG_ACCEPTANCE_WINDOW must be a non-negative duration, got %q", raw))
		} else {
			cfg.AcceptanceWindow = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CHRONOLOG_COLLECT_INTERVAL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("CHRONOLOG_COLLECT_INTERVAL must be a positive duration, got %q", raw))
		} else {
			cfg.CollectInterval = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CHRONOLOG_EXTRACT_INTERVAL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("CHRONOLOG_EXTRACT_INTERVAL must be a positive duration, got %q", raw))
		} else {
			cfg.ExtractInterval = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CHRONOLOG_CODEC_THRESHOLD_BYTES")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("CHRONOLOG_CODEC_THRESHOLD_BYTES must be a positive integer, got %q", raw))
		} else {
			cfg.CodecThreshold = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CHRONOLOG_RETENTION_MAX_ARTIFACTS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("CHRONOLOG_RETENTION_MAX_ARTIFACTS must be a non-negative integer, got %q", raw))
		} else {
			cfg.RetentionMax = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CHRONOLOG_RETENTION_MAX_AGE")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration < 0 {
			problems = append(problems, fmt.Sprintf("CHRONOLOG_RETENTION_MAX_AGE must be a non-negative duration, got %q", raw))
		} else {
			cfg.RetentionMaxAge = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CHRONOLOG_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("CHRONOLOG_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CHRONOLOG_LOG_MAX_BACKUPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("CHRONOLOG_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxBackups = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CHRONOLOG_LOG_MAX_AGE_DAYS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("CHRONOLOG_LOG_MAX_AGE_DAYS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxAgeDays = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CHRONOLOG_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("CHRONOLOG_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "; "))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
