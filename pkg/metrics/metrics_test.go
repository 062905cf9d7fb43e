package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithRegistry(registry))

			Convey("Then every collector is registered under the default namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.recordRetries.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				found := false
				for _, f := range families {
					if f.GetName() == "topicperf_core_record_retries_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("sub"),
				WithMetricPrefix("pfx"),
				WithLatencyBuckets([]float64{0.1, 0.5, 1.0}),
				WithRollupBuckets([]float64{100, 1000}),
				WithOutcomeCounting(false),
				WithConstLabels(map[string]string{"env": "test"}),
				WithRegistry(registry),
			)

			Convey("Then names carry the prefix and constant labels", func() {
				manager.reconciles.Inc()
				expected := `
# HELP test_sub_pfx_reconciles_total Absolute counter overwrites applied by reconciliation
# TYPE test_sub_pfx_reconciles_total counter
test_sub_pfx_reconciles_total{env="test"} 1
`
				So(testutil.GatherAndCompare(registry, strings.NewReader(expected), "test_sub_pfx_reconciles_total"), ShouldBeNil)
			})
		})
	})
}

func TestGlobalRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("Outcome counters split by result", func() {
			before := testutil.ToFloat64(globalManager.outcomesRecorded.WithLabelValues("correct"))
			RecordOutcome(true)
			RecordOutcome(false)
			So(testutil.ToFloat64(globalManager.outcomesRecorded.WithLabelValues("correct")), ShouldEqual, before+1)
		})

		Convey("Classification counters carry topic and match kind", func() {
			RecordClassification("OTAN", "exact")
			So(testutil.ToFloat64(globalManager.classifications.WithLabelValues("OTAN", "exact")), ShouldBeGreaterThanOrEqualTo, 1)
		})

		Convey("Gauges and histograms accept values", func() {
			So(func() {
				UpdateQueueSize(3)
				UpdateQueueCapacity(10)
				UpdateWorkerCount(2)
				RecordStoreLatency("memory", "record", 0.2)
				RecordRollup("timeline", 12)
				RecordRollupDateFailure()
				RecordLockFailure("redis")
				RecordHTTPRequest("/stats", "GET", "200")
				RecordHTTPRequestDuration("/stats", "GET", "200", 1.5)
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(8)
			}, ShouldNotPanic)
			So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 3)
		})

		Convey("GetRegistry returns the custom registry", func() {
			So(GetRegistry(), ShouldEqual, customRegistry)
		})
	})
}
