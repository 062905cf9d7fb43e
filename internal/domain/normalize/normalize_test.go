package normalize_test

import (
	"fmt"
	"testing"
	"unicode"

	"github.com/arxon-dev/topicperf/internal/domain/normalize"
	. "github.com/smartystreets/goconvey/convey"
)

func TestString(t *testing.T) {
	Convey("Given raw quiz titles", t, func() {
		Convey("accents and case are folded", func() {
			So(normalize.String("ORGANIZACIÓN DEL TRATADO DEL ATLÁNTICO NORTE (OTAN)"),
				ShouldEqual, "organizacion del tratado del atlantico norte (otan)")
			So(normalize.String("Constitución Española"), ShouldEqual, "constitucion espanola")
			So(normalize.String("PINGÜINO Ñandú"), ShouldEqual, "pinguino nandu")
		})

		Convey("decomposed accents are handled like precomposed ones", func() {
			So(normalize.String("Constitución"), ShouldEqual, "constitucion")
		})

		Convey("whitespace runs collapse and ends are trimmed", func() {
			So(normalize.String("  Ley \t de\n\nla   Carrera  "), ShouldEqual, "ley de la carrera")
			So(normalize.String(" Tropa y Marinería"), ShouldEqual, "tropa y marineria")
		})

		Convey("punctuation is preserved", func() {
			So(normalize.String("Tema 3: OTAN, OSCE."), ShouldEqual, "tema 3: otan, osce.")
		})

		Convey("empty in, empty out", func() {
			So(normalize.String(""), ShouldEqual, "")
			So(normalize.String("   "), ShouldEqual, "")
		})
	})
}

// markAlphabet mixes bases, combining marks and runes that only compose once
// the marks between them are gone (Hangul jamo, Tamil vowel signs).
var markAlphabet = []string{
	"a", "E", "ñ", "İ", "Σ", " ", "\t",
	"\u0301", "\u0308", "\u0303", "\u0327",
	"\u1100", "\u1161", "\u11a8",
	"\u0bc6", "\u0bbe",
}

// sequences returns every string of up to n runes drawn from alphabet.
func sequences(alphabet []string, n int) []string {
	out := []string{""}
	prev := []string{""}
	for i := 0; i < n; i++ {
		var next []string
		for _, p := range prev {
			for _, r := range alphabet {
				next = append(next, p+r)
			}
		}
		out = append(out, next...)
		prev = next
	}
	return out
}

func TestStringIdempotent(t *testing.T) {
	Convey("normalize(normalize(x)) == normalize(x)", t, func() {
		Convey("for titles seen in practice", func() {
			inputs := []string{
				"OTAN",
				"ORGANIZACIÓN DEL TRATADO DEL ATLÁNTICO NORTE (OTAN)",
				"  Régimen   Disciplinario de las FAS ",
				"Unión Europea\t\tÚLTIMO test",
				"İstanbul ẞ straße",
				"Ley 39/2015 — Procedimiento Administrativo Común",
				"emoji 🚀 and 中文",
			}
			for _, in := range inputs {
				once := normalize.String(in)
				So(normalize.String(once), ShouldEqual, once)
			}
		})

		Convey("for every short sequence of bases and combining marks", func() {
			var broken []string
			for _, in := range sequences(markAlphabet, 4) {
				once := normalize.String(in)
				if twice := normalize.String(once); twice != once {
					broken = append(broken, fmt.Sprintf("%+q -> %+q -> %+q", in, once, twice))
				}
			}
			So(broken, ShouldBeEmpty)
		})

		Convey("when a dropped mark sat between jamo that compose", func() {
			once := normalize.String("\u1100\u0301\u1161")
			So(once, ShouldEqual, "\uac00")
			So(normalize.String(once), ShouldEqual, once)
		})
	})
}

func FuzzStringIdempotent(f *testing.F) {
	for _, seed := range []string{
		"", "OTAN", "Constitución Española", "o\u0301\u0301 stacked",
		"\u1100\u0301\u1161", "\u0bc6\u0301\u0bbe", "ΑΣ\u0301 Β", "\xff\xfe",
	} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, in string) {
		once := normalize.String(in)
		if twice := normalize.String(once); twice != once {
			t.Fatalf("not idempotent: %+q -> %+q -> %+q", in, once, twice)
		}
		for _, r := range once {
			if unicode.Is(unicode.Mn, r) {
				t.Fatalf("combining mark %U left in %+q", r, once)
			}
		}
	})
}

func TestWords(t *testing.T) {
	Convey("Words splits the normalized form", t, func() {
		So(normalize.Words(" Carrera  MILITAR "), ShouldResemble, []string{"carrera", "militar"})
		So(normalize.Words(""), ShouldBeEmpty)
	})
}
