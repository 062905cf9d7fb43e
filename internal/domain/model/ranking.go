package model

import "time"

// RankingEntry is one subject's position in a computed ranking.
type RankingEntry struct {
	Rank           int     `json:"rank"`
	SubjectID      string  `json:"subject_id"`
	TotalCorrect   uint64  `json:"total_correct"`
	TotalQuestions uint64  `json:"total_questions"`
	Accuracy       float64 `json:"accuracy"`
	Points         uint64  `json:"points"`
	Percentile     float64 `json:"percentile"`
}

// TopicStat summarizes one topic across subjects.
type TopicStat struct {
	Topic          string  `json:"topic"`
	Subjects       int     `json:"subjects"`
	TotalQuestions uint64  `json:"total_questions"`
	TotalCorrect   uint64  `json:"total_correct"`
	Accuracy       float64 `json:"accuracy"`
}

// SystemStats aggregates every performance record.
type SystemStats struct {
	TotalSubjects   int         `json:"total_subjects"`
	TotalTopics     int         `json:"total_topics"`
	ActiveMappings  int         `json:"active_mappings"`
	TotalQuestions  uint64      `json:"total_questions"`
	TotalCorrect    uint64      `json:"total_correct"`
	GlobalAccuracy  float64     `json:"global_accuracy"`
	ActiveSubjects  int         `json:"active_subjects"`
	ActiveSince     time.Time   `json:"active_since"`
	PopularTopics   []TopicStat `json:"popular_topics"`
	DifficultTopics []TopicStat `json:"difficult_topics"`
}
