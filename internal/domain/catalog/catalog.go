// Package catalog holds the ordered topic -> keywords table used by the classifier.
//
// A Catalog is immutable once built. Entry order is part of the contract:
// the classifier returns the first entry that matches.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/arxon-dev/topicperf/internal/domain/normalize"
)

// Reserved is the label the classifier falls back to. No entry may use it.
const Reserved = "general"

//go:embed catalog.yaml
var defaultYAML []byte

// Entry maps a canonical topic label to the keywords that select it.
type Entry struct {
	Topic    string   `yaml:"topic" json:"topic"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// Catalog is an immutable ordered list of entries.
type Catalog struct {
	entries []Entry
}

type file struct {
	Topics []Entry `yaml:"topics"`
}

// New validates entries, normalizes their keywords and returns a Catalog that
// preserves the given order.
func New(entries ...Entry) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries", ErrInvalidCatalog)
	}
	seen := make(map[string]struct{}, len(entries))
	out := make([]Entry, 0, len(entries))
	for i, e := range entries {
		topic := strings.TrimSpace(e.Topic)
		if topic == "" {
			return nil, fmt.Errorf("%w: entry %d has an empty topic", ErrInvalidCatalog, i)
		}
		if strings.EqualFold(topic, Reserved) {
			return nil, fmt.Errorf("%w: %q is reserved for the fallback", ErrInvalidCatalog, Reserved)
		}
		if _, dup := seen[topic]; dup {
			return nil, fmt.Errorf("%w: duplicate topic %q", ErrInvalidCatalog, topic)
		}
		seen[topic] = struct{}{}
		if len(e.Keywords) == 0 {
			return nil, fmt.Errorf("%w: topic %q has no keywords", ErrInvalidCatalog, topic)
		}
		kws := make([]string, 0, len(e.Keywords))
		for _, kw := range e.Keywords {
			n := normalize.String(kw)
			if n == "" {
				return nil, fmt.Errorf("%w: topic %q has a blank keyword", ErrInvalidCatalog, topic)
			}
			kws = append(kws, n)
		}
		out = append(out, Entry{Topic: topic, Keywords: kws})
	}
	return &Catalog{entries: out}, nil
}

// Parse builds a Catalog from YAML of the form `topics: [{topic, keywords}]`.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadCatalog, err)
	}
	return New(f.Topics...)
}

// Load reads and parses a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadCatalog, err)
	}
	return Parse(data)
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// Entries returns a copy of the entries in declaration order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	for i, e := range c.entries {
		out[i] = Entry{Topic: e.Topic, Keywords: append([]string(nil), e.Keywords...)}
	}
	return out
}

// Topics returns the topic labels in declaration order.
func (c *Catalog) Topics() []string {
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Topic
	}
	return out
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }

// Each calls fn for every entry in order until fn returns false. Keywords
// passed to fn must not be modified.
func (c *Catalog) Each(fn func(i int, e Entry) bool) {
	for i, e := range c.entries {
		if !fn(i, e) {
			return
		}
	}
}
