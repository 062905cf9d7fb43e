// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - Defaults live in New; Load layers a YAML file and TOPICPERF_* env vars on top.
//   - Every key is flat and matches the koanf tag on the struct field.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// ShutdownTimeout bounds graceful HTTP and worker shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// StoreDriver selects the aggregate store backend: memory, sqlite or postgres.
	StoreDriver string `koanf:"store_driver"`
	SQLitePath  string `koanf:"sqlite_path"`
	PostgresDSN string `koanf:"postgres_dsn"`

	// RedisAddr enables the distributed rollup lock when set.
	RedisAddr string        `koanf:"redis_addr"`
	LockTTL   time.Duration `koanf:"lock_ttl"`

	// CatalogPath overrides the embedded topic catalog with a YAML file.
	CatalogPath string `koanf:"catalog_path"`

	// Fuzzy keyword matching, applied only when no exact keyword matches.
	FuzzyEnabled     bool    `koanf:"fuzzy_enabled"`
	FuzzyMaxDistance int     `koanf:"fuzzy_max_distance"`
	FuzzyMinCoverage float64 `koanf:"fuzzy_min_coverage"`

	// Timezone decides which calendar day an activity belongs to.
	Timezone string `koanf:"timezone"`

	// SecondsPerQuestion feeds the study time estimate of timeline rows.
	SecondsPerQuestion int `koanf:"seconds_per_question"`

	// RollupWindowDays is the rolling window rebuilt by scheduled rollups.
	RollupWindowDays int `koanf:"rollup_window_days"`

	// RollupSchedule is a cron spec for scheduled rollups. Empty disables them.
	RollupSchedule string `koanf:"rollup_schedule"`

	// MaxRebuildDays caps the days one timeline rebuild or query may span.
	MaxRebuildDays int `koanf:"max_rebuild_days"`

	// RollupParallelism caps concurrent per-subject rebuilds.
	RollupParallelism int `koanf:"rollup_parallelism"`

	// ActiveWindowDays and DifficultMinQuestions shape system statistics.
	ActiveWindowDays      int    `koanf:"active_window_days"`
	DifficultMinQuestions uint64 `koanf:"difficult_min_questions"`

	// Retry policy for recordOutcome on transient store errors.
	RetryMaxTries        uint          `koanf:"retry_max_tries"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval"`

	// EventQueueSize bounds the in-memory outcome queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of ingestion workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the event id deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxRankingLimit caps GET /ranking?limit.
	MaxRankingLimit int `koanf:"max_ranking_limit"`
}

// New returns a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":9080",
		ShutdownTimeout:       10 * time.Second,
		StoreDriver:           DriverMemory,
		SQLitePath:            "topicperf.db",
		LockTTL:               30 * time.Second,
		FuzzyMaxDistance:      2,
		FuzzyMinCoverage:      0.7,
		Timezone:              "UTC",
		SecondsPerQuestion:    120,
		RollupWindowDays:      28,
		RollupSchedule:        "@every 1h",
		MaxRebuildDays:        366,
		RollupParallelism:     4,
		ActiveWindowDays:      7,
		DifficultMinQuestions: 10,
		RetryMaxTries:         5,
		RetryInitialInterval:  10 * time.Millisecond,
		RetryMaxInterval:      500 * time.Millisecond,
		EventQueueSize:        10_000,
		WorkerCount:           runtime.NumCPU() * 2,
		DedupeSize:            100_000,
		MaxRankingLimit:       500,
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidTimezone, c.Timezone, err)
	}
	return loc, nil
}

// Validate checks the invariants the rest of the process relies on.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch strings.ToLower(c.StoreDriver) {
	case DriverMemory:
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite_path is required for the sqlite driver", ErrInvalidConfig)
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres_dsn is required for the postgres driver", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w %q", ErrUnknownDriver, c.StoreDriver)
	}
	if c.SecondsPerQuestion <= 0 {
		return fmt.Errorf("%w: seconds_per_question must be positive", ErrInvalidConfig)
	}
	if c.RollupWindowDays <= 0 || c.ActiveWindowDays <= 0 {
		return fmt.Errorf("%w: rollup_window_days and active_window_days must be positive", ErrInvalidConfig)
	}
	if c.MaxRebuildDays <= 0 || c.RollupWindowDays > c.MaxRebuildDays {
		return fmt.Errorf("%w: max_rebuild_days must be positive and at least rollup_window_days", ErrInvalidConfig)
	}
	if c.FuzzyMinCoverage <= 0 || c.FuzzyMinCoverage > 1 {
		return fmt.Errorf("%w: fuzzy_min_coverage must be in (0, 1]", ErrInvalidConfig)
	}
	if c.RetryMaxTries == 0 {
		return fmt.Errorf("%w: retry_max_tries must be at least 1", ErrInvalidConfig)
	}
	if c.EventQueueSize <= 0 || c.WorkerCount <= 0 {
		return fmt.Errorf("%w: queue_size and worker_count must be positive", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
