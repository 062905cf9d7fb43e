package postgres

import (
	"time"

	"github.com/arxon-dev/topicperf/internal/domain/model"
)

// performanceRow is the gorm model of the performance table. Timestamps are
// written explicitly from the store clock, never by gorm.
type performanceRow struct {
	SubjectID        string    `gorm:"column:subject_id;primaryKey;index:idx_performance_subject_activity,priority:1"`
	Topic            string    `gorm:"column:topic;primaryKey;index:idx_performance_topic"`
	TotalQuestions   int64     `gorm:"column:total_questions;not null;default:0;check:chk_performance_counts,correct_answers + incorrect_answers = total_questions"`
	CorrectAnswers   int64     `gorm:"column:correct_answers;not null;default:0;check:chk_performance_correct,correct_answers >= 0"`
	IncorrectAnswers int64     `gorm:"column:incorrect_answers;not null;default:0;check:chk_performance_incorrect,incorrect_answers >= 0"`
	Accuracy         float64   `gorm:"column:accuracy;type:double precision;not null;default:0"`
	LastActivity     time.Time `gorm:"column:last_activity;not null;index:idx_performance_subject_activity,priority:2"`
	CreatedAt        time.Time `gorm:"column:created_at;not null;autoCreateTime:false"`
	UpdatedAt        time.Time `gorm:"column:updated_at;not null;autoUpdateTime:false"`
}

func (performanceRow) TableName() string { return "performance" }

func (r performanceRow) toModel() model.PerformanceRecord {
	return model.PerformanceRecord{
		SubjectID:        r.SubjectID,
		Topic:            r.Topic,
		TotalQuestions:   uint64(r.TotalQuestions),
		CorrectAnswers:   uint64(r.CorrectAnswers),
		IncorrectAnswers: uint64(r.IncorrectAnswers),
		Accuracy:         r.Accuracy,
		LastActivity:     model.Timestamp(r.LastActivity),
		CreatedAt:        model.Timestamp(r.CreatedAt),
		UpdatedAt:        model.Timestamp(r.UpdatedAt),
	}
}

func fromModel(rec model.PerformanceRecord) performanceRow {
	return performanceRow{
		SubjectID:        rec.SubjectID,
		Topic:            rec.Topic,
		TotalQuestions:   int64(rec.TotalQuestions),
		CorrectAnswers:   int64(rec.CorrectAnswers),
		IncorrectAnswers: int64(rec.IncorrectAnswers),
		Accuracy:         rec.Accuracy,
		LastActivity:     model.Timestamp(rec.LastActivity),
		CreatedAt:        model.Timestamp(rec.CreatedAt),
		UpdatedAt:        model.Timestamp(rec.UpdatedAt),
	}
}

// timelineRow is the gorm model of the daily_timeline table.
type timelineRow struct {
	SubjectID         string  `gorm:"column:subject_id;primaryKey"`
	Date              string  `gorm:"column:date;primaryKey;type:char(10)"`
	QuestionsAnswered int64   `gorm:"column:questions_answered;not null"`
	CorrectAnswers    int64   `gorm:"column:correct_answers;not null"`
	IncorrectAnswers  int64   `gorm:"column:incorrect_answers;not null"`
	PointsEarned      int64   `gorm:"column:points_earned;not null"`
	PointsLost        int64   `gorm:"column:points_lost;not null"`
	Accuracy          float64 `gorm:"column:accuracy;type:double precision;not null"`
	StudyTimeSeconds  int64   `gorm:"column:study_time_seconds;not null"`
}

func (timelineRow) TableName() string { return "daily_timeline" }

func (r timelineRow) toModel() model.DailyTimelineEntry {
	return model.DailyTimelineEntry{
		SubjectID:         r.SubjectID,
		Date:              r.Date,
		QuestionsAnswered: uint64(r.QuestionsAnswered),
		CorrectAnswers:    uint64(r.CorrectAnswers),
		IncorrectAnswers:  uint64(r.IncorrectAnswers),
		PointsEarned:      uint64(r.PointsEarned),
		PointsLost:        uint64(r.PointsLost),
		Accuracy:          r.Accuracy,
		StudyTimeSeconds:  uint64(r.StudyTimeSeconds),
	}
}

func timelineFromModel(subjectID, date string, e model.DailyTimelineEntry) timelineRow {
	return timelineRow{
		SubjectID:         subjectID,
		Date:              date,
		QuestionsAnswered: int64(e.QuestionsAnswered),
		CorrectAnswers:    int64(e.CorrectAnswers),
		IncorrectAnswers:  int64(e.IncorrectAnswers),
		PointsEarned:      int64(e.PointsEarned),
		PointsLost:        int64(e.PointsLost),
		Accuracy:          e.Accuracy,
		StudyTimeSeconds:  int64(e.StudyTimeSeconds),
	}
}
