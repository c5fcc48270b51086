package deadline

import (
	"context"
	"time"

	appI18n "github.com/pavelanni/selfcheck/internal/i18n"
	"github.com/pavelanni/selfcheck/internal/model"
)

// Banner is the localized deadline banner plus an optional one-off notice.
type Banner struct {
	Text     string   `json:"text"`
	Severity Severity `json:"severity"`
	Notice   string   `json:"notice,omitempty"`
}

// RenderBanner builds the banner for info. It returns nil when there is no
// deadline to show.
func RenderBanner(ctx context.Context, info *model.DeadlineInfo, firstSeen, now time.Time) *Banner {
	if info == nil {
		return nil
	}
	data := map[string]any{
		"Label": info.Label,
		"Date":  FormatDate(ctx, info.Date),
	}
	b := &Banner{Severity: SeverityOf(info)}

	switch info.Status {
	case model.DeadlineUpcoming:
		b.Text = appI18n.Tpd(ctx, "DeadlineUpcoming", info.DaysLeft, data)
		if since := DaysSince(firstSeen, now); !firstSeen.IsZero() && since >= 0 {
			b.Text += " " + appI18n.Tp(ctx, "DeadlineStarted", since)
		}
		if info.DaysLeft <= 7 {
			b.Notice = appI18n.Tp(ctx, "DeadlineSoonNotice", info.DaysLeft)
		}
	case model.DeadlineToday:
		b.Text = appI18n.Td(ctx, "DeadlineToday", data)
		b.Notice = appI18n.T(ctx, "DeadlineTodayNotice")
	case model.DeadlineOverdue:
		b.Text = appI18n.Tpd(ctx, "DeadlineOverdue", info.OverdueDays, data)
	}
	return b
}

// FormatDate formats a deadline date with the locale's date layout.
func FormatDate(ctx context.Context, t time.Time) string {
	layout := appI18n.T(ctx, "DateLayout")
	if layout == "DateLayout" {
		layout = DateLayout
	}
	return t.Format(layout)
}
