package model

import (
	"regexp"
	"strings"
)

// QuestionType is the input widget a question is answered with.
type QuestionType string

const (
	// TypeMultipleChoice is answered by picking one of the question's options.
	TypeMultipleChoice QuestionType = "multiple-choice"
	// TypeShortAnswer is a single-line free-text answer.
	TypeShortAnswer QuestionType = "short-answer"
	// TypeExtendedAnswer is a multi-line free-text answer.
	TypeExtendedAnswer QuestionType = "extended-answer"
)

// Rule is one compiled rubric rule. Rules are evaluated in declaration order.
type Rule struct {
	Pattern *regexp.Regexp
	Points  int
	Hint    string
}

// Matches reports whether the rule fires for the given (already trimmed) answer.
func (r Rule) Matches(answer string) bool {
	return r.Pattern != nil && r.Pattern.MatchString(answer)
}

// Question is a single question of an assessment.
type Question struct {
	ID        string
	Type      QuestionType
	MaxPoints int
	Text      string
	Image     string
	Options   []string
	Rubric    []Rule
	Hint      string
}

var simpleQuestionID = regexp.MustCompile(`(?i)^q(\d+)$`)

// DisplayID returns the label shown to students: "q5" becomes "Q5", anything
// else is upper-cased.
func (q Question) DisplayID() string {
	if m := simpleQuestionID.FindStringSubmatch(q.ID); m != nil {
		return "Q" + m[1]
	}
	return strings.ToUpper(q.ID)
}

// Assessment is an immutable, ordered set of questions.
type Assessment struct {
	ID        string
	Title     string
	Subtitle  string
	Questions []Question
}

// Question looks up a question by ID.
func (a *Assessment) Question(id string) (*Question, bool) {
	for i := range a.Questions {
		if a.Questions[i].ID == id {
			return &a.Questions[i], true
		}
	}
	return nil, false
}

// TotalPoints is the sum of MaxPoints over all questions.
func (a *Assessment) TotalPoints() int {
	total := 0
	for _, q := range a.Questions {
		total += q.MaxPoints
	}
	return total
}

// Teacher is an entry of the teacher selector.
type Teacher struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// DeadlineConfig is the configured submission deadline. Year is optional;
// zero means the current year at evaluation time.
type DeadlineConfig struct {
	Day   int
	Month int
	Year  int
	Label string
}

// Catalog is the loaded question bank.
type Catalog struct {
	AppID       string
	Version     string
	Title       string
	Subtitle    string
	Teachers    []Teacher
	Deadline    *DeadlineConfig
	Assessments []Assessment
	// Fingerprint is the SHA-256 of the source document.
	Fingerprint string
}

// Assessment looks up an assessment by ID.
func (c *Catalog) Assessment(id string) (*Assessment, bool) {
	for i := range c.Assessments {
		if c.Assessments[i].ID == id {
			return &c.Assessments[i], true
		}
	}
	return nil, false
}

// TeacherName returns the display name for a teacher ID, or "" if unknown.
func (c *Catalog) TeacherName(id string) string {
	for _, t := range c.Teachers {
		if t.ID == id {
			return t.Name
		}
	}
	return ""
}
