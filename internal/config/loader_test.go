package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arxon-dev/topicperf/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	config.EnvConfigPath,
	"TOPICPERF_ADDR",
	"TOPICPERF_STORE_DRIVER",
	"TOPICPERF_SQLITE_PATH",
	"TOPICPERF_POSTGRES_DSN",
	"TOPICPERF_WORKER_COUNT",
	"TOPICPERF_QUEUE_SIZE",
	"TOPICPERF_SECONDS_PER_QUESTION",
	"TOPICPERF_RETRY_MAX_INTERVAL",
	"TOPICPERF_FUZZY_ENABLED",
	"TOPICPERF_FUZZY_MIN_COVERAGE",
	"TOPICPERF_TIMEZONE",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "topicperf.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConfigDefaults(t *testing.T) {
	convey.Convey("Given a new config", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it carries the documented defaults and validates", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverMemory)
			convey.So(cfg.SecondsPerQuestion, convey.ShouldEqual, 120)
			convey.So(cfg.RollupWindowDays, convey.ShouldEqual, 28)
			convey.So(cfg.ActiveWindowDays, convey.ShouldEqual, 7)
			convey.So(cfg.DifficultMinQuestions, convey.ShouldEqual, 10)
			convey.So(cfg.FuzzyEnabled, convey.ShouldBeFalse)
			convey.So(cfg.MaxRebuildDays, convey.ShouldEqual, 366)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then validation rejects broken settings", func() {
			cfg.StoreDriver = "mongo"
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(errors.Is(cfg.Validate(), config.ErrUnknownDriver), convey.ShouldBeTrue)

			cfg.StoreDriver = config.DriverPostgres
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)

			cfg.StoreDriver = config.DriverMemory
			cfg.MaxRebuildDays = cfg.RollupWindowDays - 1
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)

			cfg.MaxRebuildDays = 366
			cfg.Timezone = "Mars/Olympus"
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidTimezone), convey.ShouldBeTrue)
		})
	})
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		convey.Reset(clearConfigEnvVars)

		convey.Convey("When loading with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.RollupSchedule, convey.ShouldEqual, "@every 1h")
		})

		convey.Convey("When environment variables are set", func() {
			_ = os.Setenv("TOPICPERF_ADDR", ":8080")
			_ = os.Setenv("TOPICPERF_WORKER_COUNT", "16")
			_ = os.Setenv("TOPICPERF_RETRY_MAX_INTERVAL", "2s")
			_ = os.Setenv("TOPICPERF_FUZZY_ENABLED", "true")
			_ = os.Setenv("TOPICPERF_FUZZY_MIN_COVERAGE", "0.5")

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
			convey.So(cfg.RetryMaxInterval, convey.ShouldEqual, 2*time.Second)
			convey.So(cfg.FuzzyEnabled, convey.ShouldBeTrue)
			convey.So(cfg.FuzzyMinCoverage, convey.ShouldEqual, 0.5)
		})

		convey.Convey("When a YAML file is named by TOPICPERF_CONFIG", func() {
			path := writeConfigFile(t, `
addr: ":9090"
store_driver: sqlite
sqlite_path: /tmp/perf.db
seconds_per_question: 90
timezone: Europe/Madrid
`)
			_ = os.Setenv(config.EnvConfigPath, path)

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
			convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverSQLite)
			convey.So(cfg.SQLitePath, convey.ShouldEqual, "/tmp/perf.db")
			convey.So(cfg.SecondsPerQuestion, convey.ShouldEqual, 90)
			convey.So(cfg.RollupWindowDays, convey.ShouldEqual, 28)

			loc, err := cfg.Location()
			convey.So(err, convey.ShouldBeNil)
			convey.So(loc.String(), convey.ShouldEqual, "Europe/Madrid")
		})

		convey.Convey("When both file and env set a key, env wins", func() {
			path := writeConfigFile(t, "addr: \":9090\"\nqueue_size: 500\n")
			_ = os.Setenv("TOPICPERF_ADDR", ":7070")

			cfg, err := config.LoadFile(ctx, path)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
			convey.So(cfg.EventQueueSize, convey.ShouldEqual, 500)
		})

		convey.Convey("When the file is invalid or missing", func() {
			bad := writeConfigFile(t, "invalid: yaml: content: [")

			cfg, err := config.LoadFile(ctx, bad)
			convey.So(cfg, convey.ShouldBeNil)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)

			cfg, err = config.LoadFile(ctx, "/non/existent/file.yaml")
			convey.So(cfg, convey.ShouldBeNil)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When addr is blanked by env", func() {
			_ = os.Setenv("TOPICPERF_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.So(cfg, convey.ShouldBeNil)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
		})
	})
}
