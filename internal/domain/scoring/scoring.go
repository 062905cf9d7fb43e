// Package scoring turns answer counts into points.
package scoring

// Default weights. Timeline rows earn 2 points per correct answer and lose 1
// per incorrect one; the ranking view uses +10/-2 and never goes below zero.
const (
	TimelineCorrectWeight   = 2
	TimelineIncorrectWeight = 1
	RankingCorrectWeight    = 10
	RankingIncorrectWeight  = 2
)

// Option applies a configuration option to a Policy.
type Option func(*Policy)

// WithWeights overrides the per-answer weights.
func WithWeights(correct, incorrect uint64) Option {
	return func(p *Policy) {
		p.correct = correct
		p.incorrect = incorrect
	}
}

// Policy weighs correct and incorrect answers. The zero value scores nothing.
type Policy struct {
	correct   uint64
	incorrect uint64
}

// NewPolicy returns a Policy with the timeline weights unless overridden.
func NewPolicy(opts ...Option) Policy {
	p := Policy{correct: TimelineCorrectWeight, incorrect: TimelineIncorrectWeight}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Timeline returns the policy used for daily timeline rows.
func Timeline() Policy { return NewPolicy() }

// Ranking returns the policy used for the points ranking view.
func Ranking() Policy {
	return NewPolicy(WithWeights(RankingCorrectWeight, RankingIncorrectWeight))
}

// Earned returns the points gained from correct answers.
func (p Policy) Earned(correct uint64) uint64 { return correct * p.correct }

// Lost returns the points lost to incorrect answers.
func (p Policy) Lost(incorrect uint64) uint64 { return incorrect * p.incorrect }

// Net returns earned minus lost, floored at zero.
func (p Policy) Net(correct, incorrect uint64) uint64 {
	earned, lost := p.Earned(correct), p.Lost(incorrect)
	if lost >= earned {
		return 0
	}
	return earned - lost
}

// Weights reports the configured weights.
func (p Policy) Weights() (correct, incorrect uint64) { return p.correct, p.incorrect }
