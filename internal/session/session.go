// Package session drives one student's way through identity entry,
// assessment selection, grading and export.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/pavelanni/selfcheck/internal/deadline"
	"github.com/pavelanni/selfcheck/internal/export"
	"github.com/pavelanni/selfcheck/internal/grading"
	"github.com/pavelanni/selfcheck/internal/model"
	"github.com/pavelanni/selfcheck/internal/store"
)

// DefaultMinPct is the score needed to export when none is configured.
const DefaultMinPct = 100

// State is the position of the controller in the assessment lifecycle.
type State int

// StateGraded is passed through while grading; State reports the gate
// outcome instead.
const (
	StateNoIdentity State = iota
	StateIdentityEntered
	StateAssessmentLoaded
	StateGraded
	StateExportable
	StateExportBlocked
)

var stateNames = map[State]string{
	StateNoIdentity:       "no_identity",
	StateIdentityEntered:  "identity_entered",
	StateAssessmentLoaded: "assessment_loaded",
	StateGraded:           "graded",
	StateExportable:       "exportable",
	StateExportBlocked:    "export_blocked",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(text []byte) error {
	for st, name := range stateNames {
		if name == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// Config holds the controller settings.
type Config struct {
	// MinPctForSubmit is the score needed to export. Zero or less means
	// DefaultMinPct.
	MinPctForSubmit int
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Graded is the retained outcome of grading one assessment.
type Graded struct {
	Submission model.Submission `json:"submission"`
	Gate       Gate             `json:"gate"`
}

// Controller is the single-writer session context. It is not safe for
// concurrent use.
type Controller struct {
	cat   *model.Catalog
	store *store.Store
	cfg   Config

	name    string
	id      string
	teacher string

	idLocked       bool
	deadlineLocked bool
	deadline       *model.DeadlineInfo
	firstSeen      time.Time

	current *model.Assessment
	drafts  map[string]string
	graded  map[string]*Graded
}

// New restores the stored identity, records the first visit and checks the
// deadline.
func New(cat *model.Catalog, st *store.Store, cfg Config) *Controller {
	if cfg.MinPctForSubmit <= 0 {
		cfg.MinPctForSubmit = DefaultMinPct
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	c := &Controller{
		cat:    cat,
		store:  st,
		cfg:    cfg,
		graded: make(map[string]*Graded),
	}

	doc := st.Load()
	c.name, c.id, c.teacher = doc.Name, doc.ID, doc.Teacher
	if doc.IDLocked && doc.ID != "" {
		c.idLocked = true
	}

	now := cfg.Now()
	seen, err := st.FirstSeen(now)
	if err != nil {
		slog.Warn("record first visit failed", "error", err)
	}
	c.firstSeen = seen
	c.checkDeadline(now)
	return c
}

// checkDeadline re-classifies the deadline and latches the deadline lock when
// it has passed.
func (c *Controller) checkDeadline(now time.Time) *model.DeadlineInfo {
	c.deadline = deadline.Classify(c.cat.Deadline, now)
	if c.deadline.Overdue() && !c.deadlineLocked {
		c.deadlineLocked = true
		slog.Info("deadline passed, locking input", "deadline", c.deadline.DateStr, "overdue_days", c.deadline.OverdueDays)
	}
	return c.deadline
}

// EnterIdentity records the student's details. A change of a locked id is
// ignored and reported with store.ErrIDLocked while the other fields are
// still saved.
func (c *Controller) EnterIdentity(name, id, teacher string) error {
	if c.deadlineLocked {
		return ErrDeadlineLocked
	}
	name, id, teacher = strings.TrimSpace(name), strings.TrimSpace(id), strings.TrimSpace(teacher)
	if id == "" {
		return ErrIDRequired
	}
	if teacher != "" && c.cat.TeacherName(teacher) == "" {
		return ErrUnknownTeacher
	}

	err := c.store.SetIdentity(name, id, teacher)
	if err != nil && !errors.Is(err, store.ErrIDLocked) {
		return fmt.Errorf("save identity: %w", err)
	}
	c.name, c.teacher = name, teacher
	if err == nil {
		c.id = id
	}
	return err
}

// SelectAssessment makes id the current assessment and restores its stored
// answers. The first successful selection locks the student id to the
// device; locked reports whether this call set the latch. After the deadline
// an assessment can still be opened for review, but the selection is then
// fixed for the rest of the session.
func (c *Controller) SelectAssessment(id string) (locked bool, err error) {
	if id == "" {
		return false, ErrAssessmentRequired
	}
	if c.id == "" {
		return false, ErrIDRequiredFirst
	}
	a, ok := c.cat.Assessment(id)
	if !ok {
		return false, ErrUnknownAssessment
	}
	if c.deadlineLocked && c.current != nil && c.current.ID != id {
		return false, ErrDeadlineLocked
	}

	if !c.idLocked {
		locked, err = c.store.LockID()
		if err != nil {
			return false, fmt.Errorf("select assessment: %w", err)
		}
		c.idLocked = true
	}

	c.current = a
	c.drafts = c.store.Answers(a.ID)
	slog.Debug("assessment loaded", "assessment", a.ID, "restored_answers", len(c.drafts))
	return locked, nil
}

// SetAnswer updates and persists the answer to a question of the current
// assessment. Editing a graded assessment discards its grade.
func (c *Controller) SetAnswer(questionID, value string) error {
	if c.current == nil {
		return ErrAssessmentRequired
	}
	if c.deadlineLocked {
		return ErrDeadlineLocked
	}
	if _, ok := c.current.Question(questionID); !ok {
		return ErrUnknownQuestion
	}
	if err := c.store.SetAnswer(c.current.ID, questionID, value); err != nil {
		return fmt.Errorf("set answer: %w", err)
	}
	c.drafts[questionID] = value
	delete(c.graded, c.current.ID)
	return nil
}

// recorder writes answers back to the store while grading.
type recorder struct {
	st           *store.Store
	assessmentID string
}

func (r recorder) Record(questionID, value string) error {
	return r.st.SetAnswer(r.assessmentID, questionID, value)
}

// Grade scores the current assessment and decides the export gate. Grading
// also happens after the deadline; only export is blocked then.
func (c *Controller) Grade() (*Graded, error) {
	switch {
	case c.name == "":
		return nil, ErrNameRequired
	case c.id == "":
		return nil, ErrIDRequired
	case c.teacher == "":
		return nil, ErrTeacherRequired
	case c.current == nil:
		return nil, ErrAssessmentRequired
	}

	now := c.cfg.Now()
	info := c.checkDeadline(now)
	res := grading.Evaluate(c.current, grading.AnswerMap(c.drafts), recorder{st: c.store, assessmentID: c.current.ID})

	g := &Graded{
		Submission: model.Submission{
			AppTitle:           c.cat.Title,
			AppSubtitle:        c.cat.Subtitle,
			StudentName:        c.name,
			StudentID:          c.id,
			TeacherName:        c.cat.TeacherName(c.teacher),
			AssessmentID:       c.current.ID,
			AssessmentTitle:    c.current.Title,
			AssessmentSubtitle: c.current.Subtitle,
			Points:             res.Total,
			TotalPoints:        res.TotalPoints,
			Pct:                res.Pct,
			Deadline:           info,
			Questions:          res.Questions,
			GradedAt:           now,
		},
		Gate: evaluateGate(res.Pct, c.cfg.MinPctForSubmit, info, c.deadlineLocked),
	}
	c.graded[c.current.ID] = g
	slog.Info("assessment graded",
		"assessment", c.current.ID,
		"points", res.Total,
		"total", res.TotalPoints,
		"pct", res.Pct,
		"exportable", g.Gate.Exportable,
		"reason", g.Gate.Reason,
	)
	return g, nil
}

// Export delivers the graded current assessment after checking the gate
// again against the deadline as it stands now.
func (c *Controller) Export(ctx context.Context, r export.Renderer, primary, fallback export.Exporter) (export.Delivery, error) {
	if c.current == nil {
		return export.Delivery{}, ErrAssessmentRequired
	}
	g, ok := c.graded[c.current.ID]
	if !ok {
		return export.Delivery{}, ErrNotGraded
	}
	info := c.checkDeadline(c.cfg.Now())
	gate := evaluateGate(g.Submission.Pct, c.cfg.MinPctForSubmit, info, c.deadlineLocked)
	if !gate.Exportable {
		return export.Delivery{}, &BlockedError{Gate: gate}
	}
	return export.Deliver(ctx, r, g.Submission, primary, fallback)
}

// Banner renders the deadline banner for now, or nil without a deadline.
func (c *Controller) Banner(ctx context.Context) *deadline.Banner {
	now := c.cfg.Now()
	return deadline.RenderBanner(ctx, c.checkDeadline(now), c.firstSeen, now)
}

// State reports the lifecycle state.
func (c *Controller) State() State {
	switch {
	case c.id == "":
		return StateNoIdentity
	case c.current == nil:
		return StateIdentityEntered
	}
	g, ok := c.graded[c.current.ID]
	switch {
	case !ok:
		return StateAssessmentLoaded
	case g.Gate.Exportable:
		return StateExportable
	default:
		return StateExportBlocked
	}
}

// IDLocked reports whether the student id is bound to the device.
func (c *Controller) IDLocked() bool { return c.idLocked }

// DeadlineLocked reports whether the deadline has locked all input.
func (c *Controller) DeadlineLocked() bool { return c.deadlineLocked }

// Deadline returns the latest deadline classification.
func (c *Controller) Deadline() *model.DeadlineInfo { return c.deadline }

// Identity returns the entered name, id and teacher id.
func (c *Controller) Identity() (name, id, teacher string) { return c.name, c.id, c.teacher }

// Current returns the selected assessment, or nil.
func (c *Controller) Current() *model.Assessment { return c.current }

// Answers returns a copy of the current assessment's working answers.
func (c *Controller) Answers() map[string]string { return maps.Clone(c.drafts) }

// Result returns the retained grade of an assessment.
func (c *Controller) Result(assessmentID string) (*Graded, bool) {
	g, ok := c.graded[assessmentID]
	return g, ok
}
