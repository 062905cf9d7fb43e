// Package loadtest drives a running topicperf server over HTTP: it submits
// a generated outcome history concurrently, waits for the workers to drain
// it, then checks the stored aggregates and the ranking against tallies
// computed locally.
package loadtest

import (
	"time"

	"github.com/arxon-dev/topicperf/internal/domain/model"
)

// Config holds configuration for a load test run.
type Config struct {
	BaseURL      string        // Base URL of the service
	NumOutcomes  int           // Number of outcomes to generate
	NumSubjects  int           // Number of distinct subjects they are spread over
	TopN         int           // Ranking entries to fetch
	Workers      int           // Concurrent submitters
	Timeout      time.Duration // HTTP request timeout
	DrainTimeout time.Duration // How long to wait for the server to record everything
	OutputFile   string        // JSONL file for the generated history; empty skips it
	Seed         uint64        // Generator seed; equal seeds give equal histories
	Verbose      bool
}

// Expected is the locally computed aggregate of one (subject, topic) key.
type Expected struct {
	Total   uint64
	Correct uint64
}

// History is a generated outcome stream. Topics[i] is the topic the
// server's default classifier assigns to Outcomes[i].
type History struct {
	Outcomes []model.Outcome
	Topics   []string
}

// Tally sums the outcomes marked in keep per (subject, topic). A nil keep
// counts every outcome.
func (h History) Tally(keep []bool) map[model.Key]Expected {
	out := make(map[model.Key]Expected)
	for i, o := range h.Outcomes {
		if keep != nil && !keep[i] {
			continue
		}
		k := model.Key{SubjectID: o.SubjectID, Topic: h.Topics[i]}
		e := out[k]
		e.Total++
		if o.Correct {
			e.Correct++
		}
		out[k] = e
	}
	return out
}

// Stats holds run statistics.
type Stats struct {
	Generated  int
	Submitted  int
	Accepted   int
	Duplicate  int
	Throttled  int
	Failed     int
	Verified   int
	Mismatched int
	Ranked     int
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}
