// Package deadline classifies the current day against the configured
// submission deadline.
package deadline

import (
	"math"
	"time"

	"github.com/pavelanni/selfcheck/internal/model"
)

// DefaultLabel names a deadline that has no label of its own.
const DefaultLabel = "Assessment deadline"

// DateLayout formats DeadlineInfo.DateStr.
const DateLayout = "2006-01-02"

// Severity is the presentation band of a deadline banner.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warn"
	SeverityUrgent  Severity = "hot"
	SeverityOver    Severity = "over"
)

// Classify compares the calendar day of now with the deadline, both in now's
// location. It returns nil when no deadline is configured.
//
// Without an explicit year the deadline falls in now's year, so a January
// deadline evaluated in December is overdue rather than upcoming.
//
// Classify is pure: the result depends only on cfg and now.
func Classify(cfg *model.DeadlineConfig, now time.Time) *model.DeadlineInfo {
	if cfg == nil {
		return nil
	}
	year := cfg.Year
	if year == 0 {
		year = now.Year()
	}
	due := time.Date(year, time.Month(cfg.Month), cfg.Day, 0, 0, 0, 0, now.Location())

	label := cfg.Label
	if label == "" {
		label = DefaultLabel
	}
	info := &model.DeadlineInfo{
		Label:   label,
		Date:    due,
		DateStr: due.Format(DateLayout),
	}

	diff := daysBetween(now, due)
	switch {
	case diff > 0:
		info.Status = model.DeadlineUpcoming
		info.DaysLeft = diff
	case diff == 0:
		info.Status = model.DeadlineToday
	default:
		info.Status = model.DeadlineOverdue
		info.OverdueDays = -diff
	}
	return info
}

// daysBetween counts calendar days from from's date to to's date. Working on
// the dates alone keeps DST changes out of the count.
func daysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// SeverityOf bands a classification. Upcoming deadlines are urgent within a
// week and a warning within four weeks.
func SeverityOf(info *model.DeadlineInfo) Severity {
	if info == nil {
		return SeverityInfo
	}
	switch info.Status {
	case model.DeadlineOverdue:
		return SeverityOver
	case model.DeadlineToday:
		return SeverityUrgent
	}
	switch {
	case info.DaysLeft <= 7:
		return SeverityUrgent
	case info.DaysLeft <= 28:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// DaysSince returns the number of whole days elapsed since firstSeen.
func DaysSince(firstSeen, now time.Time) int {
	return int(math.Floor(now.Sub(firstSeen).Hours() / 24))
}
