package session

import (
	"context"

	appI18n "github.com/pavelanni/selfcheck/internal/i18n"
	"github.com/pavelanni/selfcheck/internal/model"
)

// BlockReason names the failed export condition.
type BlockReason string

const (
	ReasonNone     BlockReason = ""
	ReasonScore    BlockReason = "score"
	ReasonDeadline BlockReason = "deadline"
)

// Gate is the export decision for a graded assessment.
type Gate struct {
	Exportable bool        `json:"exportable"`
	Reason     BlockReason `json:"reason,omitempty"`
	Pct        int         `json:"pct"`
	MinPct     int         `json:"min_pct"`
}

// evaluateGate opens the gate when the score reaches minPct and the deadline
// has not passed. The score is checked first. Once the deadline latch is set
// the gate stays shut whatever the current classification says.
func evaluateGate(pct, minPct int, info *model.DeadlineInfo, deadlineLocked bool) Gate {
	g := Gate{Pct: pct, MinPct: minPct}
	switch {
	case pct < minPct:
		g.Reason = ReasonScore
	case deadlineLocked || info.Overdue():
		g.Reason = ReasonDeadline
	default:
		g.Exportable = true
	}
	return g
}

// GateMessage returns the localized notice for a gate decision.
func GateMessage(ctx context.Context, g Gate) string {
	switch g.Reason {
	case ReasonScore:
		return appI18n.Td(ctx, "ScoreTooLow", map[string]any{"Pct": g.Pct, "Min": g.MinPct})
	case ReasonDeadline:
		return appI18n.T(ctx, "DeadlinePassed")
	}
	return appI18n.T(ctx, "ExportReady")
}
