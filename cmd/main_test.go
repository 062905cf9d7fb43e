package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	service "github.com/arxon-dev/topicperf/internal/app"
	"github.com/arxon-dev/topicperf/internal/config"
	"github.com/arxon-dev/topicperf/internal/domain/dedupe"
	"github.com/arxon-dev/topicperf/internal/domain/model"
	"github.com/arxon-dev/topicperf/pkg/logger"
)

// resetFlags restores every flag to its default; cobra commands are globals
// and keep parsed values between executions.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(args ...string) (string, error) {
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands(t *testing.T) {
	convey.Convey("Given the CLI on a SQLite store", t, func() {
		dir := t.TempDir()
		t.Setenv(config.EnvPrefix+"STORE_DRIVER", config.DriverSQLite)
		t.Setenv(config.EnvPrefix+"SQLITE_PATH", filepath.Join(dir, "cli.db"))

		convey.Convey("classify prints topics in argument order", func() {
			out, err := run("classify", "ORGANIZACIÓN DEL TRATADO DEL ATLÁNTICO NORTE (OTAN)", "Quiz de repaso general")
			convey.So(err, convey.ShouldBeNil)
			convey.So(strings.Fields(out), convey.ShouldResemble, []string{"OTAN", "general"})
		})

		convey.Convey("classify --explain prints the match", func() {
			out, err := run("classify", "--explain", "Test OTAN")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, `"kind": "exact"`)
		})

		convey.Convey("record accumulates and persists across invocations", func() {
			_, err := run("record", "user1", "Test OTAN", "--correct")
			convey.So(err, convey.ShouldBeNil)
			out, err := run("record", "user1", "Test OTAN")
			convey.So(err, convey.ShouldBeNil)

			var rec model.PerformanceRecord
			convey.So(json.Unmarshal([]byte(out), &rec), convey.ShouldBeNil)
			convey.So(rec.Topic, convey.ShouldEqual, "OTAN")
			convey.So(rec.TotalQuestions, convey.ShouldEqual, 2)
			convey.So(rec.CorrectAnswers, convey.ShouldEqual, 1)
			convey.So(rec.IncorrectAnswers, convey.ShouldEqual, 1)
			convey.So(rec.Accuracy, convey.ShouldEqual, 50.0)

			convey.Convey("and the ranking and stats see it", func() {
				out, err := run("ranking")
				convey.So(err, convey.ShouldBeNil)
				var entries []model.RankingEntry
				convey.So(json.Unmarshal([]byte(out), &entries), convey.ShouldBeNil)
				convey.So(len(entries), convey.ShouldEqual, 1)
				convey.So(entries[0].SubjectID, convey.ShouldEqual, "user1")

				out, err = run("stats")
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, `"total_questions": 2`)
			})

			convey.Convey("and the timeline can be rebuilt and shown", func() {
				out, err := run("timeline", "rebuild", "user1", "--days", "1")
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldStartWith, "rebuilt user1")

				out, err = run("timeline", "show", "user1", "--days", "1")
				convey.So(err, convey.ShouldBeNil)
				var rows []model.DailyTimelineEntry
				convey.So(json.Unmarshal([]byte(out), &rows), convey.ShouldBeNil)
				convey.So(len(rows), convey.ShouldEqual, 1)
				convey.So(rows[0].PointsEarned, convey.ShouldEqual, 2)
				convey.So(rows[0].PointsLost, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("reconcile overwrites with absolute counts", func() {
			out, err := run("reconcile", "user2", "UE", "10", "4")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, `"accuracy": 40`)

			_, err = run("reconcile", "user2", "UE", "1", "x")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("replay reconciles a JSONL history and is repeatable", func() {
			path := filepath.Join(dir, "history.jsonl")
			history := `{"id":"1","subject_id":"user3","title":"Test OTAN","correct":true}
{"id":"2","subject_id":"user3","title":"Test OTAN","correct":false}

{"id":"3","subject_id":"user3","title":"Quiz de repaso general","correct":true}
{"id":"4","subject_id":""}
`
			convey.So(os.WriteFile(path, []byte(history), 0o600), convey.ShouldBeNil)

			for i := 0; i < 2; i++ {
				out, err := run("replay", "--file", path)
				convey.So(err, convey.ShouldBeNil)
				var report service.ReplayReport
				convey.So(json.Unmarshal([]byte(out), &report), convey.ShouldBeNil)
				convey.So(report.Outcomes, convey.ShouldEqual, 3)
				convey.So(report.Skipped, convey.ShouldEqual, 1)
				convey.So(report.Keys, convey.ShouldEqual, 2)
				convey.So(report.ByTopic["OTAN"], convey.ShouldEqual, 2)
			}
		})

		convey.Convey("timeline rebuild needs a subject or --all", func() {
			_, err := run("timeline", "rebuild")
			convey.So(err, convey.ShouldNotBeNil)
			out, err := run("timeline", "rebuild", "--all", "--days", "2")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldStartWith, "rebuilt")
		})

		convey.Convey("catalog prints the entries in match order", func() {
			out, err := run("catalog")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldStartWith, "topics:")
			convey.So(out, convey.ShouldContainSubstring, "OTAN")
		})

		convey.Convey("an invalid config is reported", func() {
			t.Setenv(config.EnvPrefix+"STORE_DRIVER", "cassandra")
			_, err := run("stats")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestServe(t *testing.T) {
	convey.Convey("serve runs until its context is cancelled and shuts down cleanly", t, func() {
		convey.So(logger.Init(), convey.ShouldBeNil)
		_ = logger.SetLevelString("error")

		cfg := config.New(context.Background())
		cfg.Addr = "127.0.0.1:0"
		cfg.RollupSchedule = ""
		cfg.WorkerCount = 2
		cfg.ShutdownTimeout = 5 * time.Second

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(200 * time.Millisecond)
			cancel()
		}()
		convey.So(serve(ctx, cfg), convey.ShouldBeNil)
	})
}

type sizeCounter struct {
	dedupe.Deduper
	calls atomic.Int64
}

func (c *sizeCounter) Size() int64 {
	c.calls.Add(1)
	return c.Deduper.Size()
}

func TestUpdateServiceMetrics(t *testing.T) {
	convey.Convey("The periodic metrics update never asks the deduper for its size", t, func() {
		ctx := context.Background()
		d := &sizeCounter{Deduper: dedupe.NewInMemoryDeduper()}
		svc := service.New(service.WithDeduper(d), service.WithWorkerCount(2))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		for i := 0; i < 5; i++ {
			updateServiceMetrics(svc)
		}
		convey.So(d.calls.Load(), convey.ShouldEqual, 0)
	})
}

func TestReadOutcomes(t *testing.T) {
	convey.Convey("readOutcomes reports the bad line", t, func() {
		_, err := readOutcomes(strings.NewReader("{\"subject_id\":\"a\"}\nnot json\n"), "-")
		convey.So(err, convey.ShouldNotBeNil)
		convey.So(err.Error(), convey.ShouldContainSubstring, "-:2")

		outcomes, err := readOutcomes(strings.NewReader("{\"subject_id\":\"a\",\"topic\":\"OTAN\"}\n"), "-")
		convey.So(err, convey.ShouldBeNil)
		convey.So(len(outcomes), convey.ShouldEqual, 1)
	})
}
