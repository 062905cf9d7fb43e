package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/arxon-dev/topicperf/internal/adapters/http/api"
	"github.com/arxon-dev/topicperf/internal/adapters/repository/memory"
	service "github.com/arxon-dev/topicperf/internal/app"
	"github.com/arxon-dev/topicperf/internal/domain/model"
	"github.com/arxon-dev/topicperf/internal/domain/rollup"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func newMux(svc *service.Service, opts ...api.Option) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(svc, append([]api.Option{api.WithClock(clock)}, opts...)...).Register(mux)
	return mux
}

func do(mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder, v any) {
	So(json.Unmarshal(w.Body.Bytes(), v), ShouldBeNil)
}

type perf struct {
	SubjectID      string  `json:"subject_id"`
	Topic          string  `json:"topic"`
	TotalQuestions uint64  `json:"total_questions"`
	CorrectAnswers uint64  `json:"correct_answers"`
	Accuracy       float64 `json:"accuracy"`
	Found          bool    `json:"found"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func TestClassifyAndHealth(t *testing.T) {
	Convey("Given an API over a fresh service", t, func() {
		mux := newMux(service.New())

		Convey("healthz answers ok", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"ok"`)
		})

		Convey("metrics are exposed", func() {
			w := do(mux, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("a titled quiz is classified with its matching keyword", func() {
			w := do(mux, http.MethodPost, "/classify", `{"title":"ORGANIZACIÓN DEL TRATADO DEL ATLÁNTICO NORTE (OTAN)"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			var m struct {
				Topic string `json:"topic"`
				Kind  string `json:"kind"`
			}
			decode(w, &m)
			So(m.Topic, ShouldEqual, "OTAN")
			So(m.Kind, ShouldEqual, "exact")
		})

		Convey("an unmatched title falls back to general", func() {
			w := do(mux, http.MethodPost, "/classify", `{"title":"Quiz de repaso general"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"topic":"general"`)
		})

		Convey("unknown fields are rejected", func() {
			w := do(mux, http.MethodPost, "/classify", `{"name":"x"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("unknown routes get a JSON 404", func() {
			w := do(mux, http.MethodGet, "/nope", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			var e apiError
			decode(w, &e)
			So(e.Code, ShouldEqual, "not_found")
		})

		Convey("a wrong method on a known route is refused", func() {
			w := do(mux, http.MethodGet, "/classify", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestOutcomes(t *testing.T) {
	Convey("Given an API over a service", t, func() {
		svc := service.New(service.WithWorkerCount(2), service.WithQueueSize(16))
		mux := newMux(svc)

		Convey("outcomes are refused before the workers start", func() {
			w := do(mux, http.MethodPost, "/outcomes", `{"subject_id":"user1","title":"OTAN"}`)
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("once started", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			So(svc.Start(ctx), ShouldBeNil)
			Reset(func() { _ = svc.Stop(context.Background()) })

			Convey("an outcome is accepted and recorded", func() {
				w := do(mux, http.MethodPost, "/outcomes", `{"id":"e1","subject_id":"user1","title":"Test OTAN","correct":true}`)
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Body.String(), ShouldContainSubstring, `"id":"e1"`)

				var p perf
				for ctx.Err() == nil && !p.Found {
					decode(do(mux, http.MethodGet, "/performance/user1/OTAN", ""), &p)
					time.Sleep(5 * time.Millisecond)
				}
				So(p.TotalQuestions, ShouldEqual, 1)
				So(p.Accuracy, ShouldEqual, 100)
			})

			Convey("a repeated id is a conflict", func() {
				So(do(mux, http.MethodPost, "/outcomes", `{"id":"e2","subject_id":"user1","topic":"OTAN"}`).Code, ShouldEqual, http.StatusAccepted)
				So(do(mux, http.MethodPost, "/outcomes", `{"id":"e2","subject_id":"user1","topic":"OTAN"}`).Code, ShouldEqual, http.StatusConflict)
			})

			Convey("an outcome without title or topic is a bad request", func() {
				w := do(mux, http.MethodPost, "/outcomes", `{"subject_id":"user1"}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestPerformance(t *testing.T) {
	Convey("Given an API over a service", t, func() {
		svc := service.New()
		mux := newMux(svc)
		ctx := context.Background()

		Convey("an unseen key is a zeroed record, not an error", func() {
			w := do(mux, http.MethodGet, "/performance/nobody/OTAN", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var p perf
			decode(w, &p)
			So(p.Found, ShouldBeFalse)
			So(p.SubjectID, ShouldEqual, "nobody")
			So(p.TotalQuestions, ShouldEqual, 0)
		})

		Convey("one correct and one incorrect outcome give 50%", func() {
			_, err := svc.RecordOutcome(ctx, "user1", "OTAN", true)
			So(err, ShouldBeNil)
			_, err = svc.RecordOutcome(ctx, "user1", "OTAN", false)
			So(err, ShouldBeNil)

			var p perf
			decode(do(mux, http.MethodGet, "/performance/user1/OTAN", ""), &p)
			So(p.Found, ShouldBeTrue)
			So(p.TotalQuestions, ShouldEqual, 2)
			So(p.CorrectAnswers, ShouldEqual, 1)
			So(p.Accuracy, ShouldEqual, 50.0)
		})

		Convey("reconcile overwrites counts with absolute values", func() {
			w := do(mux, http.MethodPut, "/performance/user1/UE", `{"total":8,"correct":6}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			var p perf
			decode(w, &p)
			So(p.TotalQuestions, ShouldEqual, 8)
			So(p.Accuracy, ShouldEqual, 75.0)

			Convey("and rejects correct above total", func() {
				So(do(mux, http.MethodPut, "/performance/user1/UE", `{"total":1,"correct":2}`).Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("and requires both counts", func() {
				So(do(mux, http.MethodPut, "/performance/user1/UE", `{"total":1}`).Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("listing a subject returns its topics, and weak_below filters them", func() {
			_, err := svc.BulkReconcile(ctx, "user2", "OTAN", 10, 9)
			So(err, ShouldBeNil)
			_, err = svc.BulkReconcile(ctx, "user2", "UE", 10, 3)
			So(err, ShouldBeNil)

			var all []perf
			decode(do(mux, http.MethodGet, "/performance/user2", ""), &all)
			So(len(all), ShouldEqual, 2)

			var weak []perf
			decode(do(mux, http.MethodGet, "/performance/user2?weak_below=50&min=5", ""), &weak)
			So(len(weak), ShouldEqual, 1)
			So(weak[0].Topic, ShouldEqual, "UE")

			So(do(mux, http.MethodGet, "/performance/user2?weak_below=abc", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("deleting a subject drops its records", func() {
			_, err := svc.BulkReconcile(ctx, "user3", "OTAN", 2, 1)
			So(err, ShouldBeNil)
			w := do(mux, http.MethodDelete, "/performance/user3", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"deleted":1`)

			var p perf
			decode(do(mux, http.MethodGet, "/performance/user3/OTAN", ""), &p)
			So(p.Found, ShouldBeFalse)
		})
	})
}

func TestTimelineAndRanking(t *testing.T) {
	Convey("Given an API over a service on a fixed clock", t, func() {
		svc := service.New(
			service.WithStore(memory.New(memory.WithClock(clock))),
			service.WithClock(clock),
			service.WithRollupOptions(rollup.WithClock(clock)),
		)
		mux := newMux(svc, api.WithMaxRankingLimit(2))
		ctx := context.Background()

		for _, r := range []struct {
			subject        string
			total, correct uint64
		}{{"alice", 10, 9}, {"bob", 10, 5}, {"carol", 4, 4}} {
			_, err := svc.BulkReconcile(ctx, r.subject, "OTAN", r.total, r.correct)
			So(err, ShouldBeNil)
		}

		Convey("a rebuild writes today's row and the timeline reads it back", func() {
			w := do(mux, http.MethodPost, "/timeline/alice/rebuild?days=1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"from":"2025-03-10"`)

			w = do(mux, http.MethodGet, "/timeline/alice?from=2025-03-10&to=2025-03-10", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var rows []model.DailyTimelineEntry
			decode(w, &rows)
			So(len(rows), ShouldEqual, 1)
			So(rows[0].QuestionsAnswered, ShouldEqual, 10)
			So(rows[0].PointsEarned, ShouldEqual, 18)
			So(rows[0].PointsLost, ShouldEqual, 1)
			So(rows[0].StudyTimeSeconds, ShouldEqual, 1200)
		})

		Convey("an explicit body range is honoured and bad ranges are rejected", func() {
			So(do(mux, http.MethodPost, "/timeline/alice/rebuild", `{"from":"2025-03-09","to":"2025-03-10"}`).Code, ShouldEqual, http.StatusOK)
			So(do(mux, http.MethodPost, "/timeline/alice/rebuild", `{"from":"2025-03-10","to":"2025-03-01"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/timeline/alice?days=0", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("ranges longer than a year are rejected before any day is walked", func() {
			w := do(mux, http.MethodPost, "/timeline/alice/rebuild", `{"from":"0001-01-01","to":"9999-12-31"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			var e apiError
			decode(w, &e)
			So(e.Code, ShouldEqual, "bad_request")

			So(do(mux, http.MethodPost, "/timeline/alice/rebuild?days=367", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/timeline/alice?days=1000000", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/timeline/alice?days=366", "").Code, ShouldEqual, http.StatusOK)

			narrow := newMux(svc, api.WithMaxRangeDays(7))
			So(do(narrow, http.MethodPost, "/timeline/alice/rebuild?days=8", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(narrow, http.MethodPost, "/timeline/alice/rebuild?days=7", "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("the engine limit applies even when the HTTP limit is wider", func() {
			wide := newMux(svc, api.WithMaxRangeDays(5000))
			w := do(wide, http.MethodPost, "/timeline/alice/rebuild", `{"from":"2024-01-01","to":"2025-03-10"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("the ranking is clamped to the configured maximum", func() {
			w := do(mux, http.MethodGet, "/ranking?limit=50", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var entries []model.RankingEntry
			decode(w, &entries)
			So(len(entries), ShouldEqual, 2)
			So(entries[0].SubjectID, ShouldEqual, "carol")
			So(entries[0].Rank, ShouldEqual, 1)
			So(entries[1].SubjectID, ShouldEqual, "alice")
		})

		Convey("the points view and filters are passed through", func() {
			var entries []model.RankingEntry
			decode(do(mux, http.MethodGet, "/ranking?view=points&min=5&topic=OTAN", ""), &entries)
			So(len(entries), ShouldEqual, 2)
			So(entries[0].SubjectID, ShouldEqual, "alice")
			So(entries[1].SubjectID, ShouldEqual, "bob")

			So(do(mux, http.MethodGet, "/ranking?view=speed", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/ranking?limit=-1", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("stats combine system aggregates and service state", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var body struct {
				System  model.SystemStats      `json:"system"`
				Service map[string]interface{} `json:"service"`
			}
			decode(w, &body)
			So(body.System.TotalSubjects, ShouldEqual, 3)
			So(body.System.TotalQuestions, ShouldEqual, 24)
			So(body.Service["started"], ShouldEqual, false)
		})
	})
}
