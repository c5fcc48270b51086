package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/pavelanni/selfcheck/internal/export"
	appI18n "github.com/pavelanni/selfcheck/internal/i18n"
	"github.com/pavelanni/selfcheck/internal/store"
)

// Validation errors. The controller state is unchanged when one is returned.
var (
	ErrIDRequiredFirst    = errors.New("student id required before loading an assessment")
	ErrNameRequired       = errors.New("name required")
	ErrIDRequired         = errors.New("student id required")
	ErrTeacherRequired    = errors.New("teacher required")
	ErrAssessmentRequired = errors.New("assessment required")
	ErrUnknownAssessment  = errors.New("unknown assessment")
	ErrUnknownQuestion    = errors.New("unknown question")
	ErrUnknownTeacher     = errors.New("unknown teacher")
	ErrDeadlineLocked     = errors.New("deadline passed, input is locked")
	ErrNotGraded          = errors.New("assessment not graded")
	ErrExportBlocked      = errors.New("export blocked")
)

// BlockedError reports why the export gate is closed.
type BlockedError struct {
	Gate Gate
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("export blocked: %s (pct %d, min %d)", e.Gate.Reason, e.Gate.Pct, e.Gate.MinPct)
}

func (e *BlockedError) Unwrap() error { return ErrExportBlocked }

// Message returns the localized text shown to the student for err.
func Message(ctx context.Context, err error) string {
	var blocked *BlockedError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &blocked):
		return GateMessage(ctx, blocked.Gate)
	case errors.Is(err, ErrIDRequiredFirst):
		return appI18n.T(ctx, "IDRequiredFirst")
	case errors.Is(err, ErrNameRequired):
		return appI18n.T(ctx, "NameRequired")
	case errors.Is(err, ErrIDRequired):
		return appI18n.T(ctx, "IDRequired")
	case errors.Is(err, ErrTeacherRequired):
		return appI18n.T(ctx, "TeacherRequired")
	case errors.Is(err, ErrAssessmentRequired):
		return appI18n.T(ctx, "AssessmentRequired")
	case errors.Is(err, ErrUnknownAssessment):
		return appI18n.T(ctx, "UnknownAssessment")
	case errors.Is(err, ErrUnknownQuestion):
		return appI18n.T(ctx, "UnknownQuestion")
	case errors.Is(err, ErrUnknownTeacher):
		return appI18n.T(ctx, "UnknownTeacher")
	case errors.Is(err, ErrDeadlineLocked):
		return appI18n.T(ctx, "DeadlineLocked")
	case errors.Is(err, ErrNotGraded):
		return appI18n.T(ctx, "NotGraded")
	case errors.Is(err, store.ErrIDLocked):
		return appI18n.T(ctx, "IDLocked")
	case errors.Is(err, export.ErrUnavailable):
		return appI18n.T(ctx, "ExportUnavailable")
	}
	return appI18n.T(ctx, "InternalError")
}

// IsUserError reports whether err is a validation or gate error as opposed to
// a storage or export failure.
func IsUserError(err error) bool {
	for _, target := range []error{
		ErrIDRequiredFirst, ErrNameRequired, ErrIDRequired, ErrTeacherRequired,
		ErrAssessmentRequired, ErrUnknownAssessment, ErrUnknownQuestion, ErrUnknownTeacher,
		ErrDeadlineLocked, ErrNotGraded, ErrExportBlocked, store.ErrIDLocked,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
