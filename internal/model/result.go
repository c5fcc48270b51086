package model

import "time"

// DeadlineStatus classifies today against the configured deadline.
type DeadlineStatus string

const (
	DeadlineUpcoming DeadlineStatus = "upcoming"
	DeadlineToday    DeadlineStatus = "today"
	DeadlineOverdue  DeadlineStatus = "overdue"
)

// DeadlineInfo is the outcome of classifying a deadline at a given moment.
type DeadlineInfo struct {
	Status      DeadlineStatus `json:"status"`
	Label       string         `json:"label"`
	Date        time.Time      `json:"-"`
	DateStr     string         `json:"dateStr"`
	DaysLeft    int            `json:"daysLeft,omitempty"`
	OverdueDays int            `json:"overdueDays,omitempty"`
}

// Overdue reports whether info is non-nil and past the deadline.
func (d *DeadlineInfo) Overdue() bool {
	return d != nil && d.Status == DeadlineOverdue
}

// QuestionStatus is the colour band of a graded question.
type QuestionStatus string

const (
	StatusCorrect QuestionStatus = "correct"
	StatusPartial QuestionStatus = "partial"
	StatusWrong   QuestionStatus = "wrong"
)

// QuestionResult is the grade of a single question.
type QuestionResult struct {
	QuestionID string         `json:"question_id"`
	DisplayID  string         `json:"display_id"`
	Text       string         `json:"text"`
	Earned     int            `json:"earned"`
	Max        int            `json:"max"`
	Answer     string         `json:"answer"`
	Hint       string         `json:"hint,omitempty"`
	Status     QuestionStatus `json:"status"`
}

// Result is the ephemeral outcome of grading one assessment.
type Result struct {
	AssessmentID string           `json:"assessment_id"`
	Questions    []QuestionResult `json:"questions"`
	Total        int              `json:"total"`
	TotalPoints  int              `json:"total_points"`
	Pct          int              `json:"pct"`
}
