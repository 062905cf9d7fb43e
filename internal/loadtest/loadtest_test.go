package loadtest_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/arxon-dev/topicperf/internal/adapters/http/api"
	service "github.com/arxon-dev/topicperf/internal/app"
	"github.com/arxon-dev/topicperf/internal/domain/model"
	"github.com/arxon-dev/topicperf/internal/loadtest"
	"github.com/arxon-dev/topicperf/pkg/logger"
)

func init() {
	_ = logger.Init()
	_ = logger.SetLevelString("error")
}

func TestGenerate(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		ctx := context.Background()
		cfg := &loadtest.Config{NumOutcomes: 300, NumSubjects: 7, Seed: 42}

		a, err := loadtest.Generate(ctx, cfg, &loadtest.Stats{})
		So(err, ShouldBeNil)
		b, err := loadtest.Generate(ctx, cfg, &loadtest.Stats{})
		So(err, ShouldBeNil)

		Convey("equal seeds give equal histories apart from ids", func() {
			So(len(a.Outcomes), ShouldEqual, 300)
			for i := range a.Outcomes {
				So(a.Outcomes[i].SubjectID, ShouldEqual, b.Outcomes[i].SubjectID)
				So(a.Outcomes[i].Title, ShouldEqual, b.Outcomes[i].Title)
				So(a.Outcomes[i].Correct, ShouldEqual, b.Outcomes[i].Correct)
				So(a.Topics[i], ShouldEqual, b.Topics[i])
			}
			So(a.Outcomes[0].ID, ShouldNotEqual, b.Outcomes[0].ID)
		})

		Convey("the tally accounts for every kept outcome", func() {
			var total uint64
			for _, e := range a.Tally(nil) {
				So(e.Correct, ShouldBeLessThanOrEqualTo, e.Total)
				total += e.Total
			}
			So(total, ShouldEqual, 300)

			keep := make([]bool, len(a.Outcomes))
			keep[0] = true
			only := a.Tally(keep)
			So(len(only), ShouldEqual, 1)
			So(only[model.Key{SubjectID: a.Outcomes[0].SubjectID, Topic: a.Topics[0]}].Total, ShouldEqual, 1)
		})

		Convey("some titles fall back to general", func() {
			general := 0
			for _, topic := range a.Topics {
				if topic == "general" {
					general++
				}
			}
			So(general, ShouldBeGreaterThan, 0)
			So(general, ShouldBeLessThan, 300)
		})

		Convey("an empty run is a config error", func() {
			_, err := loadtest.Generate(ctx, &loadtest.Config{}, &loadtest.Stats{})
			So(errors.Is(err, loadtest.ErrConfig), ShouldBeTrue)
		})
	})
}

func TestSaveHistory(t *testing.T) {
	Convey("SaveHistory writes one JSON outcome per line", t, func() {
		path := filepath.Join(t.TempDir(), "out", "history.jsonl")
		outcomes := []model.Outcome{
			{ID: "a", SubjectID: "user1", Title: "Test OTAN", Correct: true},
			{ID: "b", SubjectID: "user1", Title: "Test OTAN"},
		}
		So(loadtest.SaveHistory(path, outcomes), ShouldBeNil)

		f, err := os.Open(path)
		So(err, ShouldBeNil)
		defer f.Close()
		var got []model.Outcome
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			var o model.Outcome
			So(json.Unmarshal(sc.Bytes(), &o), ShouldBeNil)
			got = append(got, o)
		}
		So(got, ShouldResemble, outcomes)
	})
}

func TestRunAgainstServer(t *testing.T) {
	Convey("Given a running topicperf server", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		svc := service.New(service.WithWorkerCount(4), service.WithQueueSize(64))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(context.Background()) })

		mux := http.NewServeMux()
		api.NewServer(svc).Register(mux)
		srv := httptest.NewServer(mux)
		Reset(srv.Close)

		Convey("a full run verifies every aggregate and the ranking", func() {
			stats, err := loadtest.Run(ctx, &loadtest.Config{
				BaseURL:      srv.URL,
				NumOutcomes:  500,
				NumSubjects:  12,
				TopN:         10,
				Workers:      8,
				Timeout:      5 * time.Second,
				DrainTimeout: 10 * time.Second,
				Seed:         7,
			})
			So(err, ShouldBeNil)
			So(stats.Generated, ShouldEqual, 500)
			So(stats.Accepted+stats.Throttled, ShouldEqual, 500)
			So(stats.Failed, ShouldEqual, 0)
			So(stats.Mismatched, ShouldEqual, 0)
			So(stats.Ranked, ShouldEqual, 10)
		})

		Convey("an unreachable server fails the health check", func() {
			_, err := loadtest.Run(ctx, &loadtest.Config{
				BaseURL:     "http://127.0.0.1:1",
				NumOutcomes: 1, NumSubjects: 1, TopN: 1, Workers: 1,
				Timeout: time.Second,
			})
			So(errors.Is(err, loadtest.ErrUnhealthy), ShouldBeTrue)
		})
	})
}
