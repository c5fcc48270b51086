package model

import "time"

// Submission is the final snapshot handed to renderers and exporters.
type Submission struct {
	AppTitle           string           `json:"app_title"`
	AppSubtitle        string           `json:"app_subtitle,omitempty"`
	StudentName        string           `json:"student_name"`
	StudentID          string           `json:"student_id"`
	TeacherName        string           `json:"teacher_name"`
	AssessmentID       string           `json:"assessment_id"`
	AssessmentTitle    string           `json:"assessment_title"`
	AssessmentSubtitle string           `json:"assessment_subtitle,omitempty"`
	Points             int              `json:"points"`
	TotalPoints        int              `json:"total_points"`
	Pct                int              `json:"pct"`
	Deadline           *DeadlineInfo    `json:"deadline,omitempty"`
	Questions          []QuestionResult `json:"questions"`
	GradedAt           time.Time        `json:"graded_at"`
}
