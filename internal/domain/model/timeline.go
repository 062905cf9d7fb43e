package model

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used for timeline keys.
const DateLayout = "2006-01-02"

// DailyTimelineEntry is one subject's activity summary for one calendar day.
// It has no generation timestamp so identical rebuilds yield identical rows.
type DailyTimelineEntry struct {
	SubjectID         string  `json:"subject_id"`
	Date              string  `json:"date"`
	QuestionsAnswered uint64  `json:"questions_answered"`
	CorrectAnswers    uint64  `json:"correct_answers"`
	IncorrectAnswers  uint64  `json:"incorrect_answers"`
	PointsEarned      uint64  `json:"points_earned"`
	PointsLost        uint64  `json:"points_lost"`
	Accuracy          float64 `json:"accuracy"`
	StudyTimeSeconds  uint64  `json:"study_time_seconds"`
}

// DateRange is an inclusive range of calendar days in Location.
type DateRange struct {
	From     time.Time
	To       time.Time
	Location *time.Location
}

// ParseDateRange parses two YYYY-MM-DD dates in loc.
func ParseDateRange(from, to string, loc *time.Location) (DateRange, error) {
	if loc == nil {
		loc = time.UTC
	}
	f, err := time.ParseInLocation(DateLayout, from, loc)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: from %q", ErrInvalidRange, from)
	}
	t, err := time.ParseInLocation(DateLayout, to, loc)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: to %q", ErrInvalidRange, to)
	}
	r := DateRange{From: f, To: t, Location: loc}
	return r, r.Validate()
}

// LastDays returns the n calendar days ending on now's day in loc.
func LastDays(now time.Time, n int, loc *time.Location) DateRange {
	if loc == nil {
		loc = time.UTC
	}
	if n < 1 {
		n = 1
	}
	local := now.In(loc)
	end := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return DateRange{From: end.AddDate(0, 0, -(n - 1)), To: end, Location: loc}
}

// Validate rejects reversed ranges.
func (r DateRange) Validate() error {
	if r.To.Before(r.From) {
		return fmt.Errorf("%w: %s after %s", ErrInvalidRange, r.From.Format(DateLayout), r.To.Format(DateLayout))
	}
	return nil
}

// DayCount returns the number of calendar days in the range, 0 when reversed.
func (r DateRange) DayCount() int {
	if r.To.Before(r.From) {
		return 0
	}
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	return int(civilDay(r.To.In(loc))-civilDay(r.From.In(loc))) + 1
}

// WithinDays rejects ranges longer than maxDays. maxDays <= 0 means no limit.
func (r DateRange) WithinDays(maxDays int) error {
	if maxDays <= 0 {
		return nil
	}
	if n := r.DayCount(); n > maxDays {
		return fmt.Errorf("%w: %d days exceeds the limit of %d", ErrInvalidRange, n, maxDays)
	}
	return nil
}

// civilDay numbers t's calendar date as days since the Unix epoch.
func civilDay(t time.Time) int64 {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// Day is one calendar day with its [Start, End) instants.
type Day struct {
	Date  string
	Start time.Time
	End   time.Time
}

// Days expands the range into calendar days, oldest first.
func (r DateRange) Days() []Day {
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	from := r.From.In(loc)
	to := r.To.In(loc)
	cur := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	last := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, loc)

	var days []Day
	for !cur.After(last) {
		next := cur.AddDate(0, 0, 1)
		days = append(days, Day{Date: cur.Format(DateLayout), Start: cur, End: next})
		cur = next
	}
	return days
}
