package loadtest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"

	"github.com/arxon-dev/topicperf/internal/domain/catalog"
	"github.com/arxon-dev/topicperf/internal/domain/classifier"
	"github.com/arxon-dev/topicperf/internal/domain/model"
	"github.com/arxon-dev/topicperf/pkg/logger"
)

// Title shapes. Keywords are embedded in quiz-like titles, upper-cased or
// accented now and then so the server's normalization is exercised.
var titleTemplates = []string{
	"Test %s",
	"TEST DE %s",
	"Examen: %s (bloque %d)",
	"Repaso %s - parte %d",
	"  Cuestionario   sobre %s ",
}

// Titles that match nothing in the default catalog.
var generalTitles = []string{
	"Quiz de repaso general",
	"Simulacro final",
	"Preguntas variadas",
}

// subjectAccuracy is a subject's chance of answering correctly. Spreading it
// keeps the ranking meaningful.
func subjectAccuracy(i, n int) float64 {
	if n <= 1 {
		return 0.5
	}
	return 0.2 + 0.75*float64(i)/float64(n-1)
}

// Generate builds a reproducible outcome history over the embedded catalog
// and classifies each title locally with the classifier the server uses by
// default. A server running a custom catalog or fuzzy matching will not
// verify.
func Generate(ctx context.Context, config *Config, stats *Stats) (History, error) {
	if config.NumOutcomes <= 0 || config.NumSubjects <= 0 {
		return History{}, fmt.Errorf("%w: outcomes and subjects must be positive", ErrConfig)
	}
	logger.Get().Info(ctx, "generating outcomes",
		logger.Int("outcomes", config.NumOutcomes),
		logger.Int("subjects", config.NumSubjects))

	cat := catalog.Default()
	cls := classifier.New(cat)

	var keywords []string
	for _, e := range cat.Entries() {
		keywords = append(keywords, e.Keywords...)
	}

	rng := rand.New(rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15))
	subjects := make([]string, config.NumSubjects)
	for i := range subjects {
		subjects[i] = fmt.Sprintf("subject-%04d", i)
	}

	h := History{
		Outcomes: make([]model.Outcome, 0, config.NumOutcomes),
		Topics:   make([]string, 0, config.NumOutcomes),
	}
	for i := 0; i < config.NumOutcomes; i++ {
		if i%1000 == 0 && ctx.Err() != nil {
			return History{}, ctx.Err()
		}
		si := rng.IntN(len(subjects))
		title := generateTitle(rng, keywords)
		o := model.Outcome{
			ID:        uuid.NewString(),
			SubjectID: subjects[si],
			Title:     title,
			Correct:   rng.Float64() < subjectAccuracy(si, len(subjects)),
		}
		h.Outcomes = append(h.Outcomes, o)
		h.Topics = append(h.Topics, cls.Classify(title))
	}
	stats.Generated = len(h.Outcomes)
	return h, nil
}

func generateTitle(rng *rand.Rand, keywords []string) string {
	if rng.IntN(10) == 0 {
		return generalTitles[rng.IntN(len(generalTitles))]
	}
	kw := keywords[rng.IntN(len(keywords))]
	if rng.IntN(3) == 0 {
		kw = strings.ToUpper(kw)
	}
	tpl := titleTemplates[rng.IntN(len(titleTemplates))]
	if strings.Count(tpl, "%") == 2 {
		return fmt.Sprintf(tpl, kw, rng.IntN(20)+1)
	}
	return fmt.Sprintf(tpl, kw)
}
