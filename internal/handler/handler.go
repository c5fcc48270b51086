package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/selfcheck/internal/deadline"
	"github.com/pavelanni/selfcheck/internal/export"
	appI18n "github.com/pavelanni/selfcheck/internal/i18n"
	"github.com/pavelanni/selfcheck/internal/model"
	"github.com/pavelanni/selfcheck/internal/session"
	"github.com/pavelanni/selfcheck/internal/store"
)

// Config selects the export capabilities used by the handler.
type Config struct {
	// Format is the renderer name, "pdf" unless set.
	Format string
	// Share enables the share exporter as the primary delivery when registered.
	Share bool
}

// Handler serves the JSON API of one student session.
type Handler struct {
	mu      sync.Mutex
	cat     *model.Catalog
	ctrl    *session.Controller
	exports *export.Registry
	config  Config
}

// New creates a new Handler.
func New(cat *model.Catalog, ctrl *session.Controller, exports *export.Registry, cfg Config) *Handler {
	if cfg.Format == "" {
		cfg.Format = "pdf"
	}
	return &Handler{cat: cat, ctrl: ctrl, exports: exports, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Post("/identity", h.handleIdentity)
	r.Post("/assessments/{assessmentID}", h.handleSelectAssessment)
	r.Put("/answers/{questionID}", h.handleAnswer)
	r.Post("/grade", h.handleGrade)
	r.Get("/export", h.handleExport)
}

type assessmentSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle,omitempty"`
	TotalPoints int    `json:"total_points"`
}

type questionView struct {
	ID      string   `json:"id"`
	Label   string   `json:"label"`
	Type    string   `json:"type"`
	Text    string   `json:"text"`
	Image   string   `json:"image,omitempty"`
	Options []string `json:"options,omitempty"`
}

type assessmentView struct {
	assessmentSummary
	Questions []questionView `json:"questions"`
}

type statusView struct {
	Title          string              `json:"title"`
	Subtitle       string              `json:"subtitle,omitempty"`
	Teachers       []model.Teacher     `json:"teachers"`
	Assessments    []assessmentSummary `json:"assessments"`
	State          session.State       `json:"state"`
	Name           string              `json:"name"`
	ID             string              `json:"id"`
	Teacher        string              `json:"teacher"`
	IDLocked       bool                `json:"id_locked"`
	DeadlineLocked bool                `json:"deadline_locked"`
	Banner         *deadline.Banner    `json:"banner,omitempty"`
	Current        *assessmentView     `json:"current,omitempty"`
	Answers        map[string]string   `json:"answers,omitempty"`
	Result         *session.Graded     `json:"result,omitempty"`
}

type messageView struct {
	Message  string           `json:"message,omitempty"`
	Messages []string         `json:"messages,omitempty"`
	Status   *statusView      `json:"status,omitempty"`
	Result   *session.Graded  `json:"result,omitempty"`
	Delivery *export.Delivery `json:"delivery,omitempty"`
}

func summarize(a *model.Assessment) assessmentSummary {
	return assessmentSummary{ID: a.ID, Title: a.Title, Subtitle: a.Subtitle, TotalPoints: a.TotalPoints()}
}

var typeMessages = map[model.QuestionType]string{
	model.TypeMultipleChoice: "TypeMultipleChoice",
	model.TypeShortAnswer:    "TypeShortAnswer",
	model.TypeExtendedAnswer: "TypeExtendedAnswer",
}

// status builds the full view. The caller holds h.mu.
func (h *Handler) status(r *http.Request) *statusView {
	ctx := r.Context()
	name, id, teacher := h.ctrl.Identity()
	v := &statusView{
		Title:          h.cat.Title,
		Subtitle:       h.cat.Subtitle,
		Teachers:       h.cat.Teachers,
		State:          h.ctrl.State(),
		Name:           name,
		ID:             id,
		Teacher:        teacher,
		IDLocked:       h.ctrl.IDLocked(),
		Banner:         h.ctrl.Banner(ctx),
		DeadlineLocked: h.ctrl.DeadlineLocked(),
	}
	for i := range h.cat.Assessments {
		v.Assessments = append(v.Assessments, summarize(&h.cat.Assessments[i]))
	}
	if a := h.ctrl.Current(); a != nil {
		av := &assessmentView{assessmentSummary: summarize(a)}
		for _, q := range a.Questions {
			av.Questions = append(av.Questions, questionView{
				ID:      q.ID,
				Label:   appI18n.Tpd(ctx, "QuestionMarks", q.MaxPoints, map[string]any{"ID": q.DisplayID()}),
				Type:    appI18n.T(ctx, typeMessages[q.Type]),
				Text:    q.Text,
				Image:   q.Image,
				Options: q.Options,
			})
		}
		v.Current = av
		v.Answers = h.ctrl.Answers()
		if g, ok := h.ctrl.Result(a.ID); ok {
			v.Result = g
		}
	}
	return v
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	writeJSON(w, http.StatusOK, h.status(r))
}

func (h *Handler) handleIdentity(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	err := h.ctrl.EnterIdentity(r.FormValue("name"), r.FormValue("id"), r.FormValue("teacher"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageView{Status: h.status(r)})
}

func (h *Handler) handleSelectAssessment(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	locked, err := h.ctrl.SelectAssessment(chi.URLParam(r, "assessmentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := messageView{Message: appI18n.T(r.Context(), "AssessmentLoaded"), Status: h.status(r)}
	if locked {
		resp.Messages = append(resp.Messages, appI18n.T(r.Context(), "IDLockedNow"))
	}
	if b := resp.Status.Banner; b != nil && b.Notice != "" {
		resp.Messages = append(resp.Messages, b.Notice)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.ctrl.SetAnswer(chi.URLParam(r, "questionID"), r.FormValue("answer")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGrade(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	g, err := h.ctrl.Grade()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageView{
		Message: session.GateMessage(r.Context(), g.Gate),
		Result:  g,
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	format := r.URL.Query().Get("format")
	if format == "" {
		format = h.config.Format
	}
	renderer, err := h.exports.Renderer(format)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var primary export.Exporter
	if h.config.Share && r.URL.Query().Get("share") != "false" {
		if e, err := h.exports.Exporter("share"); err == nil {
			primary = e
		}
	}

	d, err := h.ctrl.Export(r.Context(), renderer, primary, export.ResponseExporter{W: w})
	switch {
	case err == nil:
	case session.IsUserError(err), errors.Is(err, export.ErrUnavailable):
		writeError(w, r, err)
		return
	case errors.Is(err, export.ErrResponseStarted):
		slog.Error("download interrupted", "error", err)
		return
	default:
		slog.Error("export failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": appI18n.T(r.Context(), "ExportFailed")})
		return
	}
	if d.Via != "download" {
		writeJSON(w, http.StatusOK, messageView{Message: appI18n.T(r.Context(), "Shared"), Delivery: &d})
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrUnknownAssessment), errors.Is(err, session.ErrUnknownQuestion):
		return http.StatusNotFound
	case errors.Is(err, session.ErrDeadlineLocked), errors.Is(err, store.ErrIDLocked):
		return http.StatusConflict
	case errors.Is(err, session.ErrExportBlocked):
		return http.StatusForbidden
	case errors.Is(err, export.ErrUnavailable):
		return http.StatusNotImplemented
	case session.IsUserError(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, code, map[string]string{"error": session.Message(r.Context(), err)})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
