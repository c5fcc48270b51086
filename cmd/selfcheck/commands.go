package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pavelanni/selfcheck/internal/export"
	appI18n "github.com/pavelanni/selfcheck/internal/i18n"
	"github.com/pavelanni/selfcheck/internal/session"
)

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the student, the deadline and progress per assessment",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
	addCommonFlags(cmd)
	return cmd
}

func identityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Enter the student's name, ID and teacher",
		Args:  cobra.NoArgs,
		RunE:  runIdentity,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.String("name", "", "Student name")
	f.String("student-id", "", "Student ID (locked to this device after the first assessment)")
	f.String("teacher", "", "Teacher ID from the catalog")
	_ = cmd.MarkFlagRequired("student-id")
	return cmd
}

func answerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "answer QUESTION-ID ANSWER",
		Short: "Save the answer to one question",
		Args:  cobra.ExactArgs(2),
		RunE:  runAnswer,
	}
	addCommonFlags(cmd)
	cmd.Flags().StringP("assessment", "s", "", "Assessment ID (required)")
	_ = cmd.MarkFlagRequired("assessment")
	return cmd
}

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade an assessment and show whether it can be exported",
		Args:  cobra.NoArgs,
		RunE:  runGrade,
	}
	addCommonFlags(cmd)
	cmd.Flags().StringP("assessment", "s", "", "Assessment ID (required)")
	_ = cmd.MarkFlagRequired("assessment")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Grade an assessment and export the result",
		Args:  cobra.NoArgs,
		RunE:  runExport,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.StringP("assessment", "s", "", "Assessment ID (required)")
	f.String("format", "pdf", "Export format (pdf, json)")
	f.StringP("out-dir", "o", ".", "Directory for downloaded files")
	f.Bool("share", false, "Share to the redis inbox before falling back to download")
	_ = cmd.MarkFlagRequired("assessment")
	return cmd
}

// start sets up logging, opens the app and returns a localized context.
func start(cmd *cobra.Command) (*app, context.Context, error) {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	a, err := openApp(cmd.Context(), v)
	if err != nil {
		return nil, nil, err
	}
	ctx := appI18n.WithLocalizer(cmd.Context(), appI18n.NewLocalizer(a.lang))
	return a, ctx, nil
}

// userError replaces validation and gate errors with their localized text.
func userError(ctx context.Context, err error) error {
	if session.IsUserError(err) || errors.Is(err, export.ErrUnavailable) {
		return errors.New(session.Message(ctx, err))
	}
	return err
}

func (a *app) load(ctx context.Context, w io.Writer, assessmentID string) error {
	locked, err := a.ctrl.SelectAssessment(assessmentID)
	if err != nil {
		return userError(ctx, err)
	}
	if locked {
		fmt.Fprintln(w, appI18n.T(ctx, "IDLockedNow"))
	}
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, ctx, err := start(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	w := cmd.OutOrStdout()

	fmt.Fprintln(w, a.cat.Title)
	if a.cat.Subtitle != "" {
		fmt.Fprintln(w, a.cat.Subtitle)
	}
	name, id, teacher := a.ctrl.Identity()
	fmt.Fprintf(w, "\n%s\n%s\n%s\n",
		appI18n.Td(ctx, "PDFStudent", map[string]any{"Name": name}),
		appI18n.Td(ctx, "PDFID", map[string]any{"ID": id}),
		appI18n.Td(ctx, "PDFTeacher", map[string]any{"Name": a.cat.TeacherName(teacher)}),
	)
	if a.ctrl.IDLocked() {
		fmt.Fprintln(w, appI18n.T(ctx, "IDLocked"))
	}
	if b := a.ctrl.Banner(ctx); b != nil {
		fmt.Fprintf(w, "\n[%s] %s\n", b.Severity, b.Text)
		if b.Notice != "" {
			fmt.Fprintln(w, b.Notice)
		}
	}

	fmt.Fprintln(w)
	for _, as := range a.cat.Assessments {
		stored := a.store.Answers(as.ID)
		answered := 0
		for _, q := range as.Questions {
			if stored[q.ID] != "" {
				answered++
			}
		}
		fmt.Fprintf(w, "%-12s %-32s %d/%d\n", as.ID, as.Title, answered, len(as.Questions))
	}
	return nil
}

func runIdentity(cmd *cobra.Command, _ []string) error {
	a, ctx, err := start(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	v := viperForCmd(cmd)
	if err := a.ctrl.EnterIdentity(v.GetString("name"), v.GetString("student-id"), v.GetString("teacher")); err != nil {
		return userError(ctx, err)
	}
	return nil
}

func runAnswer(cmd *cobra.Command, args []string) error {
	a, ctx, err := start(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	w := cmd.OutOrStdout()
	if err := a.load(ctx, w, viperForCmd(cmd).GetString("assessment")); err != nil {
		return err
	}
	if err := a.ctrl.SetAnswer(args[0], args[1]); err != nil {
		return userError(ctx, err)
	}
	return nil
}

func runGrade(cmd *cobra.Command, _ []string) error {
	a, ctx, err := start(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	w := cmd.OutOrStdout()
	if err := a.load(ctx, w, viperForCmd(cmd).GetString("assessment")); err != nil {
		return err
	}
	g, err := a.ctrl.Grade()
	if err != nil {
		return userError(ctx, err)
	}
	printReport(ctx, w, g)
	return nil
}

func printReport(ctx context.Context, w io.Writer, g *session.Graded) {
	sub := g.Submission
	for _, qr := range sub.Questions {
		fmt.Fprintf(w, "%s: %s (%s)\n", qr.DisplayID, export.StatusLabel(ctx, qr.Status),
			appI18n.Tpd(ctx, "Marks", qr.Max, map[string]any{"Earned": qr.Earned}))
		answer := qr.Answer
		if answer == "" {
			answer = appI18n.T(ctx, "NoAnswer")
		}
		fmt.Fprintf(w, "  %s %s\n", appI18n.T(ctx, "YourAnswer"), answer)
		if qr.Earned < qr.Max && qr.Hint != "" {
			fmt.Fprintf(w, "  %s %s\n", appI18n.T(ctx, "HintLabel"), qr.Hint)
		}
	}
	fmt.Fprintf(w, "\n%s\n%s\n",
		appI18n.Td(ctx, "ScoreLine", map[string]any{"Points": sub.Points, "Total": sub.TotalPoints, "Pct": sub.Pct}),
		session.GateMessage(ctx, g.Gate),
	)
}

func runExport(cmd *cobra.Command, _ []string) error {
	a, ctx, err := start(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	v := viperForCmd(cmd)
	w := cmd.OutOrStdout()
	if err := a.load(ctx, w, v.GetString("assessment")); err != nil {
		return err
	}
	if _, err := a.ctrl.Grade(); err != nil {
		return userError(ctx, err)
	}

	renderer, err := a.exports.Renderer(v.GetString("format"))
	if err != nil {
		return userError(ctx, err)
	}
	var primary export.Exporter
	if v.GetBool("share") {
		if primary, err = a.exports.Exporter("share"); err != nil {
			return userError(ctx, err)
		}
	}

	outDir := v.GetString("out-dir")
	d, err := a.ctrl.Export(ctx, renderer, primary, export.DirExporter{Dir: outDir})
	if err != nil {
		if session.IsUserError(err) {
			return userError(ctx, err)
		}
		return fmt.Errorf("%s: %w", appI18n.T(ctx, "ExportFailed"), err)
	}
	if d.Via == "share" {
		fmt.Fprintln(w, appI18n.T(ctx, "Shared"))
	} else {
		fmt.Fprintln(w, appI18n.Td(ctx, "Downloaded", map[string]any{"File": filepath.Join(outDir, d.FileName)}))
	}
	return nil
}
