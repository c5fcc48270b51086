// Package grading scores answers against rubric rules.
package grading

import (
	"log/slog"
	"strings"

	"github.com/pavelanni/selfcheck/internal/model"
)

// Answers provides the current raw value of each question's input.
type Answers interface {
	Answer(questionID string) string
}

// Recorder persists an answer before it is scored.
type Recorder interface {
	Record(questionID, value string) error
}

// AnswerMap is an Answers backed by a plain map.
type AnswerMap map[string]string

func (m AnswerMap) Answer(questionID string) string { return m[questionID] }

// Evaluate grades every question of a in order. Each raw answer is handed to
// rec (if non-nil) before it is scored, so a failure later in grading does not
// lose input. Recording failures are logged and do not stop grading.
func Evaluate(a *model.Assessment, answers Answers, rec Recorder) *model.Result {
	res := &model.Result{AssessmentID: a.ID}
	for _, q := range a.Questions {
		raw := answers.Answer(q.ID)
		if rec != nil {
			if err := rec.Record(q.ID, raw); err != nil {
				slog.Warn("persist answer failed", "assessment", a.ID, "question", q.ID, "error", err)
			}
		}
		qr := Question(q, strings.TrimSpace(raw))
		res.Total += qr.Earned
		res.TotalPoints += qr.Max
		res.Questions = append(res.Questions, qr)
	}
	res.Pct = Percent(res.Total, res.TotalPoints)
	return res
}

// Question scores a single, already trimmed answer.
//
// Single-point questions take the best matching rule (each capped at the
// maximum); multi-point questions add up all matching rules and clamp the sum
// to [0, MaxPoints]. The last matching rule with a hint replaces the
// question's default hint. Blank answers are matched like any other.
func Question(q model.Question, answer string) model.QuestionResult {
	earned := 0
	hint := q.Hint
	for _, rule := range q.Rubric {
		if !rule.Matches(answer) {
			continue
		}
		if q.MaxPoints == 1 {
			earned = max(earned, min(rule.Points, q.MaxPoints))
		} else {
			earned += rule.Points
		}
		if rule.Hint != "" {
			hint = rule.Hint
		}
	}
	earned = min(max(earned, 0), q.MaxPoints)

	return model.QuestionResult{
		QuestionID: q.ID,
		DisplayID:  q.DisplayID(),
		Text:       q.Text,
		Earned:     earned,
		Max:        q.MaxPoints,
		Answer:     answer,
		Hint:       hint,
		Status:     Status(earned, q.MaxPoints),
	}
}

// Status bands a score: full marks, some marks, or none.
func Status(earned, maxPoints int) model.QuestionStatus {
	switch {
	case earned == maxPoints:
		return model.StatusCorrect
	case earned > 0:
		return model.StatusPartial
	default:
		return model.StatusWrong
	}
}

// Percent returns round(100*earned/possible) with halves rounded up, and 0
// when nothing is possible.
func Percent(earned, possible int) int {
	if possible <= 0 {
		return 0
	}
	return (200*earned + possible) / (2 * possible)
}
