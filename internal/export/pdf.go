package export

import (
	"context"
	"fmt"
	"html"
	"io"
	"regexp"

	"github.com/go-pdf/fpdf"

	"github.com/pavelanni/selfcheck/internal/deadline"
	appI18n "github.com/pavelanni/selfcheck/internal/i18n"
	"github.com/pavelanni/selfcheck/internal/model"
)

const (
	pdfMarginLeft   = 10.0
	pdfMarginRight  = 10.0
	pdfMarginBottom = 15.0
	// Content must start below the header block of each page.
	pdfFirstPageTop = 80.0
	pdfNextPageTop  = 62.0
)

// PDFRenderer renders an A4 report: a header bar with the app title, the
// student block and submission line on the first page, then one block per
// question.
//
// Core PDF fonts cover Windows-1252 only; other characters are replaced.
type PDFRenderer struct{}

func (PDFRenderer) ContentType() string { return "application/pdf" }
func (PDFRenderer) Extension() string   { return ".pdf" }

func (PDFRenderer) Render(ctx context.Context, w io.Writer, sub model.Submission) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, _ := pdf.GetPageSize()

	pdf.SetMargins(pdfMarginLeft, pdfFirstPageTop, pdfMarginRight)
	pdf.SetAutoPageBreak(true, pdfMarginBottom)
	pdf.AliasNbPages("{nb}")

	pdf.SetHeaderFunc(func() {
		first := pdf.PageNo() == 1
		drawHeader(ctx, pdf, tr, pageW, sub, first)
		if first {
			pdf.SetY(pdfFirstPageTop)
		} else {
			pdf.SetY(pdfNextPageTop)
		}
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(120, 130, 140)
		page := appI18n.Td(ctx, "PDFPage", map[string]any{"Page": pdf.PageNo(), "Total": "{nb}"})
		pdf.CellFormat(0, 6, tr(page), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	for _, qr := range sub.Questions {
		drawQuestion(ctx, pdf, tr, qr)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func drawHeader(ctx context.Context, pdf *fpdf.Fpdf, tr func(string) string, pageW float64, sub model.Submission, first bool) {
	pdf.SetFillColor(110, 24, 24)
	pdf.Rect(0, 0, pageW, 30, "F")

	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Text(12, 15, tr(sub.AppTitle))
	pdf.SetFont("Helvetica", "", 12)
	pdf.Text(12, 22, tr(sub.AppSubtitle))

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 12)
	const y = 40.0

	if !first {
		pdf.Text(10, y, tr(appI18n.Td(ctx, "PDFStudentShort", map[string]any{"Name": sub.StudentName, "ID": sub.StudentID})))
		pdf.Text(10, y+7, tr(appI18n.Td(ctx, "PDFAssessment", map[string]any{"Title": sub.AssessmentTitle})))
		if sub.AssessmentSubtitle != "" {
			pdf.SetFont("Helvetica", "", 11)
			pdf.Text(10, y+14, tr(appI18n.Td(ctx, "PDFPart", map[string]any{"Subtitle": sub.AssessmentSubtitle})))
		}
		return
	}

	pdf.Text(10, y, tr(appI18n.Td(ctx, "PDFStudent", map[string]any{"Name": sub.StudentName})))
	pdf.Text(10, y+7, tr(appI18n.Td(ctx, "PDFID", map[string]any{"ID": sub.StudentID})))
	pdf.Text(110, y, tr(appI18n.Td(ctx, "PDFTeacher", map[string]any{"Name": sub.TeacherName})))
	pdf.Text(10, y+15, tr(appI18n.Td(ctx, "PDFAssessment", map[string]any{"Title": sub.AssessmentTitle})))
	if sub.AssessmentSubtitle != "" {
		pdf.Text(10, y+22, tr(appI18n.Td(ctx, "PDFPart", map[string]any{"Subtitle": sub.AssessmentSubtitle})))
	}
	pdf.Text(10, y+29, tr(appI18n.Td(ctx, "PDFScore", map[string]any{
		"Points": sub.Points, "Total": sub.TotalPoints, "Pct": sub.Pct,
	})))

	if line := SubmissionLine(ctx, sub.Deadline); line != "" {
		pdf.SetFont("Helvetica", "", 11)
		pdf.Text(10, y+38, tr(line))
	}
}

func drawQuestion(ctx context.Context, pdf *fpdf.Fpdf, tr func(string) string, qr model.QuestionResult) {
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.MultiCell(0, 6, tr(qr.DisplayID+": "+plainText(qr.Text)), "", "L", false)

	answer := qr.Answer
	if answer == "" {
		answer = appI18n.T(ctx, "NoAnswer")
	}
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, tr(appI18n.T(ctx, "YourAnswer")+" "+answer), "", "L", false)

	r, g, b := statusColour(qr.Status)
	pdf.SetTextColor(r, g, b)
	result := fmt.Sprintf("%s %s (%s)", appI18n.T(ctx, "ResultLabel"), StatusLabel(ctx, qr.Status),
		appI18n.Tpd(ctx, "Marks", qr.Max, map[string]any{"Earned": qr.Earned}))
	pdf.MultiCell(0, 6, tr(result), "", "L", false)
	pdf.SetTextColor(0, 0, 0)

	if qr.Earned < qr.Max && qr.Hint != "" {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(0, 5, tr(appI18n.T(ctx, "HintLabel")+" "+qr.Hint), "", "L", false)
	}
	pdf.Ln(4)
}

func statusColour(s model.QuestionStatus) (int, int, int) {
	switch s {
	case model.StatusCorrect:
		return 30, 120, 50
	case model.StatusPartial:
		return 180, 110, 0
	default:
		return 180, 30, 30
	}
}

// StatusLabel is the localized word for a question status.
func StatusLabel(ctx context.Context, s model.QuestionStatus) string {
	switch s {
	case model.StatusCorrect:
		return appI18n.T(ctx, "ResultCorrect")
	case model.StatusPartial:
		return appI18n.T(ctx, "ResultPartial")
	default:
		return appI18n.T(ctx, "ResultWrong")
	}
}

// SubmissionLine describes when the work was submitted relative to the
// deadline, or "" without a deadline.
func SubmissionLine(ctx context.Context, info *model.DeadlineInfo) string {
	if info == nil {
		return ""
	}
	data := map[string]any{"Date": deadline.FormatDate(ctx, info.Date)}
	switch info.Status {
	case model.DeadlineUpcoming:
		return appI18n.Tpd(ctx, "SubmittedEarly", info.DaysLeft, data)
	case model.DeadlineToday:
		return appI18n.Td(ctx, "SubmittedToday", data)
	case model.DeadlineOverdue:
		return appI18n.Tpd(ctx, "SubmittedLate", info.OverdueDays, data)
	}
	return ""
}

var tags = regexp.MustCompile(`<[^>]*>`)

// plainText drops markup from question texts written as HTML fragments.
func plainText(s string) string {
	return html.UnescapeString(tags.ReplaceAllString(s, ""))
}
