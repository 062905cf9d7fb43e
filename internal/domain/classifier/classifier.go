// Package classifier assigns a topic label to a raw activity title.
//
// Matching is substring based and first-match-wins over the catalog's
// declaration order. A title that matches nothing gets Fallback.
package classifier

import (
	"strings"

	"github.com/agext/levenshtein"

	"github.com/arxon-dev/topicperf/internal/domain/catalog"
	"github.com/arxon-dev/topicperf/internal/domain/normalize"
)

// Fallback is returned for titles no catalog entry matches.
const Fallback = catalog.Reserved

// Kind reports how a title was matched.
type Kind string

const (
	KindExact    Kind = "exact"
	KindFuzzy    Kind = "fuzzy"
	KindFallback Kind = "fallback"
)

// minFuzzyWordLen keeps short keyword words (onu, ea, et) exact-only; at
// distance 1 they collide with too many ordinary words.
const minFuzzyWordLen = 4

// Match is the outcome of classifying one title.
type Match struct {
	Topic   string `json:"topic"`
	Keyword string `json:"keyword,omitempty"`
	Kind    Kind   `json:"kind"`
}

// Classifier is immutable and safe for concurrent use.
type Classifier struct {
	catalog *catalog.Catalog

	fuzzy       bool
	maxDistance int
	minCoverage float64
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithFuzzy enables a second, typo tolerant pass that only runs when no
// keyword matched exactly. A keyword matches when at least minCoverage of
// its words are within maxDistance-1 edits of some title word.
func WithFuzzy(maxDistance int, minCoverage float64) Option {
	return func(c *Classifier) {
		if maxDistance > 0 && minCoverage > 0 && minCoverage <= 1 {
			c.fuzzy = true
			c.maxDistance = maxDistance
			c.minCoverage = minCoverage
		}
	}
}

// New returns a Classifier over cat.
func New(cat *catalog.Catalog, opts ...Option) *Classifier {
	c := &Classifier{catalog: cat}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Catalog returns the catalog the classifier was built with.
func (c *Classifier) Catalog() *catalog.Catalog { return c.catalog }

// Classify returns the topic label for rawTitle, or Fallback.
func (c *Classifier) Classify(rawTitle string) string {
	return c.Explain(rawTitle).Topic
}

// Explain is Classify plus the keyword that decided the label.
func (c *Classifier) Explain(rawTitle string) Match {
	title := normalize.String(rawTitle)
	if title == "" {
		return Match{Topic: Fallback, Kind: KindFallback}
	}

	if m, ok := c.exact(title); ok {
		return m
	}
	if c.fuzzy {
		if m, ok := c.approximate(strings.Fields(title)); ok {
			return m
		}
	}
	return Match{Topic: Fallback, Kind: KindFallback}
}

func (c *Classifier) exact(title string) (Match, bool) {
	var (
		m     Match
		found bool
	)
	c.catalog.Each(func(_ int, e catalog.Entry) bool {
		for _, kw := range e.Keywords {
			if strings.Contains(title, kw) {
				m, found = Match{Topic: e.Topic, Keyword: kw, Kind: KindExact}, true
				return false
			}
		}
		return true
	})
	return m, found
}

func (c *Classifier) approximate(words []string) (Match, bool) {
	var (
		m     Match
		found bool
	)
	c.catalog.Each(func(_ int, e catalog.Entry) bool {
		for _, kw := range e.Keywords {
			if c.covers(words, strings.Fields(kw)) {
				m, found = Match{Topic: e.Topic, Keyword: kw, Kind: KindFuzzy}, true
				return false
			}
		}
		return true
	})
	return m, found
}

func (c *Classifier) covers(titleWords, kwWords []string) bool {
	if len(kwWords) == 0 {
		return false
	}
	matched := 0
	for _, kw := range kwWords {
		for _, tw := range titleWords {
			if c.near(kw, tw) {
				matched++
				break
			}
		}
	}
	return float64(matched)/float64(len(kwWords)) >= c.minCoverage
}

func (c *Classifier) near(kw, word string) bool {
	if kw == word {
		return true
	}
	if len([]rune(kw)) < minFuzzyWordLen {
		return false
	}
	return levenshtein.Distance(kw, word, nil) < c.maxDistance
}
