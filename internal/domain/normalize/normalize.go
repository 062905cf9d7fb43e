// Package normalize turns free-text Spanish titles into a canonical comparable form.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// accents maps accented vowels, ü and ñ to ASCII. Upper-case forms are listed
// so the table is correct on its own, independent of the case folding step.
var accents = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
	"Á", "a", "É", "e", "Í", "i", "Ó", "o", "Ú", "u", "Ü", "u", "Ñ", "n",
	"à", "a", "è", "e", "ì", "i", "ò", "o", "ù", "u",
	"À", "a", "È", "e", "Ì", "i", "Ò", "o", "Ù", "u",
)

// Combining marks left after the table (stacked accents, the dot Spanish
// folding leaves on İ) are dropped. Removing a mark can make two runes
// adjacent that compose, so the result is decomposed, stripped and composed
// again; otherwise a second pass would still find something to change.
var nonSpacingMark = runes.In(unicode.Mn)

func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(nonSpacingMark), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// String lowercases s, strips accents and collapses whitespace runs into a
// single space. It never fails and is idempotent.
func String(s string) string {
	if s == "" {
		return ""
	}
	// Invalid bytes become U+FFFD up front so dropping a mark can never splice
	// two stray bytes into a valid rune.
	s = strings.ToValidUTF8(s, "\uFFFD")
	// NFC first so decomposed input ("o" + U+0301) hits the substitution table.
	s = norm.NFC.String(s)
	// A Caser keeps state, so each call gets its own.
	s = cases.Lower(language.Spanish).String(s)
	s = accents.Replace(s)
	s = stripMarks(s)
	return strings.Join(strings.Fields(s), " ")
}

// Words returns the normalized words of s.
func Words(s string) []string {
	return strings.Fields(String(s))
}
