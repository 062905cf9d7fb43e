package catalog_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/arxon-dev/topicperf/internal/domain/catalog"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDefault(t *testing.T) {
	Convey("Given the embedded catalog", t, func() {
		c := catalog.Default()

		Convey("It loads every topic in declaration order", func() {
			topics := c.Topics()
			So(c.Len(), ShouldEqual, 26)
			So(topics[0], ShouldEqual, "Constitución Española")
			So(topics, ShouldContain, "OTAN")
			So(topics[len(topics)-1], ShouldEqual, "España y su Participación en Misiones")
		})

		Convey("Keywords are stored normalized", func() {
			for _, e := range c.Entries() {
				for _, kw := range e.Keywords {
					So(kw, ShouldNotBeBlank)
					So(kw, ShouldNotContainSubstring, "á")
				}
			}
		})
	})
}

func TestNew(t *testing.T) {
	Convey("Given hand-built entries", t, func() {
		Convey("keywords are normalized and order is kept", func() {
			c, err := catalog.New(
				catalog.Entry{Topic: "B", Keywords: []string{"  Régimen  JURÍDICO "}},
				catalog.Entry{Topic: "A", Keywords: []string{"otan"}},
			)
			So(err, ShouldBeNil)
			So(c.Topics(), ShouldResemble, []string{"B", "A"})
			So(c.Entries()[0].Keywords, ShouldResemble, []string{"regimen juridico"})
		})

		Convey("Entries returns a copy", func() {
			c, _ := catalog.New(catalog.Entry{Topic: "A", Keywords: []string{"a"}})
			entries := c.Entries()
			entries[0].Keywords[0] = "mutated"
			So(c.Entries()[0].Keywords[0], ShouldEqual, "a")
		})

		Convey("invalid tables are rejected", func() {
			cases := [][]catalog.Entry{
				nil,
				{{Topic: "", Keywords: []string{"x"}}},
				{{Topic: "general", Keywords: []string{"x"}}},
				{{Topic: "A", Keywords: nil}},
				{{Topic: "A", Keywords: []string{"  "}}},
				{{Topic: "A", Keywords: []string{"x"}}, {Topic: "A", Keywords: []string{"y"}}},
			}
			for _, entries := range cases {
				_, err := catalog.New(entries...)
				So(errors.Is(err, catalog.ErrInvalidCatalog), ShouldBeTrue)
			}
		})
	})
}

func TestLoad(t *testing.T) {
	Convey("Given a catalog file", t, func() {
		dir := t.TempDir()

		Convey("a valid file loads", func() {
			path := filepath.Join(dir, "catalog.yaml")
			So(os.WriteFile(path, []byte("topics:\n  - topic: OTAN\n    keywords: [OTAN, Atlántico Norte]\n"), 0o600), ShouldBeNil)
			c, err := catalog.Load(path)
			So(err, ShouldBeNil)
			So(c.Entries()[0].Keywords, ShouldResemble, []string{"otan", "atlantico norte"})
		})

		Convey("a missing or malformed file fails with ErrLoadCatalog", func() {
			_, err := catalog.Load(filepath.Join(dir, "missing.yaml"))
			So(errors.Is(err, catalog.ErrLoadCatalog), ShouldBeTrue)

			_, err = catalog.Parse([]byte("topics: [::"))
			So(errors.Is(err, catalog.ErrLoadCatalog), ShouldBeTrue)
		})
	})
}
