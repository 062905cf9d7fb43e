package sqlite

// Idempotent DDL applied on Open. Timestamps are Unix microseconds (UTC).
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS performance (
		subject_id        TEXT    NOT NULL,
		topic             TEXT    NOT NULL,
		total_questions   INTEGER NOT NULL DEFAULT 0 CHECK (total_questions >= 0),
		correct_answers   INTEGER NOT NULL DEFAULT 0 CHECK (correct_answers >= 0),
		incorrect_answers INTEGER NOT NULL DEFAULT 0 CHECK (incorrect_answers >= 0),
		accuracy          REAL    NOT NULL DEFAULT 0,
		last_activity     INTEGER NOT NULL,
		created_at        INTEGER NOT NULL,
		updated_at        INTEGER NOT NULL,
		PRIMARY KEY (subject_id, topic),
		CHECK (correct_answers + incorrect_answers = total_questions)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_performance_subject_activity ON performance (subject_id, last_activity)`,
	`CREATE INDEX IF NOT EXISTS idx_performance_topic ON performance (topic)`,
	`CREATE TABLE IF NOT EXISTS daily_timeline (
		subject_id         TEXT    NOT NULL,
		date               TEXT    NOT NULL,
		questions_answered INTEGER NOT NULL,
		correct_answers    INTEGER NOT NULL,
		incorrect_answers  INTEGER NOT NULL,
		points_earned      INTEGER NOT NULL,
		points_lost        INTEGER NOT NULL,
		accuracy           REAL    NOT NULL,
		study_time_seconds INTEGER NOT NULL,
		PRIMARY KEY (subject_id, date)
	)`,
}

const recordColumns = `subject_id, topic, total_questions, correct_answers, incorrect_answers,
	accuracy, last_activity, created_at, updated_at`

const timelineColumns = `subject_id, date, questions_answered, correct_answers, incorrect_answers,
	points_earned, points_lost, accuracy, study_time_seconds`
