// Package export turns a graded submission into a document and hands it to
// whichever delivery mechanisms are available.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/pavelanni/selfcheck/internal/model"
)

// ErrUnavailable is returned when a renderer or exporter is not available.
var ErrUnavailable = errors.New("export capability unavailable")

// ErrResponseStarted marks a download that failed after the response was
// committed. Nothing more may be written to that response.
var ErrResponseStarted = errors.New("response already started")

// Renderer produces a document from a submission.
type Renderer interface {
	Render(ctx context.Context, w io.Writer, sub model.Submission) error
	ContentType() string
	Extension() string
}

// Document is a rendered submission ready for delivery.
type Document struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Exporter delivers a rendered document somewhere.
type Exporter interface {
	Name() string
	Export(ctx context.Context, doc Document) error
}

// Delivery reports how a document was delivered.
type Delivery struct {
	FileName string `json:"file_name"`
	Via      string `json:"via"`
}

// Registry maps names to renderers and exporters. A missing entry is the
// "unavailable" state rather than an error at construction time.
type Registry struct {
	renderers map[string]Renderer
	exporters map[string]Exporter
}

func NewRegistry() *Registry {
	return &Registry{
		renderers: make(map[string]Renderer),
		exporters: make(map[string]Exporter),
	}
}

// RegisterRenderer adds a renderer under name, replacing any previous one.
func (r *Registry) RegisterRenderer(name string, rr Renderer) { r.renderers[name] = rr }

// RegisterExporter adds an exporter under its name, replacing any previous one.
func (r *Registry) RegisterExporter(e Exporter) { r.exporters[e.Name()] = e }

// Renderer looks up a renderer.
func (r *Registry) Renderer(name string) (Renderer, error) {
	rr, ok := r.renderers[name]
	if !ok {
		return nil, fmt.Errorf("renderer %q: %w", name, ErrUnavailable)
	}
	return rr, nil
}

// Exporter looks up an exporter.
func (r *Registry) Exporter(name string) (Exporter, error) {
	e, ok := r.exporters[name]
	if !ok {
		return nil, fmt.Errorf("exporter %q: %w", name, ErrUnavailable)
	}
	return e, nil
}

// Deliver renders sub once and tries primary, falling back to fallback when
// primary is nil or fails. Either exporter may be nil; if both are, or both
// fail, an error is returned.
func Deliver(ctx context.Context, r Renderer, sub model.Submission, primary, fallback Exporter) (Delivery, error) {
	if r == nil {
		return Delivery{}, fmt.Errorf("render: %w", ErrUnavailable)
	}
	var buf bytes.Buffer
	if err := r.Render(ctx, &buf, sub); err != nil {
		return Delivery{}, fmt.Errorf("render: %w", err)
	}
	doc := Document{
		FileName:    FileName(sub.StudentID, sub.StudentName, sub.AssessmentTitle, r.Extension()),
		ContentType: r.ContentType(),
		Data:        buf.Bytes(),
	}

	var errs []error
	for _, e := range []Exporter{primary, fallback} {
		if e == nil {
			continue
		}
		err := e.Export(ctx, doc)
		if err == nil {
			slog.Info("submission exported", "via", e.Name(), "file", doc.FileName, "bytes", len(doc.Data))
			return Delivery{FileName: doc.FileName, Via: e.Name()}, nil
		}
		slog.Warn("export failed, trying fallback", "via", e.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
	}
	if len(errs) == 0 {
		return Delivery{}, fmt.Errorf("deliver: %w", ErrUnavailable)
	}
	return Delivery{}, fmt.Errorf("deliver: %w", errors.Join(errs...))
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	unsafeChars   = regexp.MustCompile(`[^a-zA-Z0-9_\-]`)
)

func safePart(s, fallback string) string {
	s = whitespaceRun.ReplaceAllString(strings.TrimSpace(s), "_")
	s = unsafeChars.ReplaceAllString(s, "")
	if s == "" {
		return fallback
	}
	return s
}

// FileName builds "<id>_<name>_<title><ext>" keeping only letters, digits,
// underscores and dashes in each part.
func FileName(studentID, studentName, title, ext string) string {
	return safePart(studentID, "student") + "_" +
		safePart(studentName, "name") + "_" +
		safePart(title, "assessment") + ext
}
