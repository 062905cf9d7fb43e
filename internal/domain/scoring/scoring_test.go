package scoring_test

import (
	"testing"

	"github.com/arxon-dev/topicperf/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPolicy(t *testing.T) {
	Convey("Given the timeline policy", t, func() {
		p := scoring.Timeline()

		Convey("correct answers earn 2 and incorrect ones lose 1", func() {
			So(p.Earned(7), ShouldEqual, 14)
			So(p.Lost(3), ShouldEqual, 3)
			c, i := p.Weights()
			So(c, ShouldEqual, 2)
			So(i, ShouldEqual, 1)
		})
	})

	Convey("Given the ranking policy", t, func() {
		p := scoring.Ranking()

		Convey("net points are +10/-2", func() {
			So(p.Net(3, 5), ShouldEqual, 20)
		})

		Convey("net points never go below zero", func() {
			So(p.Net(1, 5), ShouldEqual, 0)
			So(p.Net(0, 0), ShouldEqual, 0)
			So(p.Net(1, 10), ShouldEqual, 0)
		})
	})

	Convey("Given custom weights", t, func() {
		p := scoring.NewPolicy(scoring.WithWeights(3, 0))

		Convey("they replace the defaults", func() {
			So(p.Earned(2), ShouldEqual, 6)
			So(p.Lost(100), ShouldEqual, 0)
			So(p.Net(2, 100), ShouldEqual, 6)
		})
	})

	Convey("The zero policy scores nothing", t, func() {
		var p scoring.Policy
		So(p.Net(5, 1), ShouldEqual, 0)
	})
}
