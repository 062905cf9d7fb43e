package model

import (
	"fmt"
	"strings"
	"time"
)

// Outcome is one answered question reported by an ingestion source. An empty
// Topic means Title still has to be classified.
type Outcome struct {
	ID         string    `json:"id"`
	SubjectID  string    `json:"subject_id"`
	Title      string    `json:"title,omitempty"`
	Topic      string    `json:"topic,omitempty"`
	Correct    bool      `json:"correct"`
	OccurredAt time.Time `json:"occurred_at,omitempty"`
}

// Validate requires a subject and either a title or a topic.
func (o Outcome) Validate() error {
	if strings.TrimSpace(o.SubjectID) == "" {
		return fmt.Errorf("%w: subject_id is required", ErrInvalidOutcome)
	}
	if strings.TrimSpace(o.Title) == "" && strings.TrimSpace(o.Topic) == "" {
		return fmt.Errorf("%w: title or topic is required", ErrInvalidOutcome)
	}
	return nil
}
