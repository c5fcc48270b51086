// Package catalog loads question banks and compiles their rubric rules.
package catalog

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pavelanni/selfcheck/internal/model"
)

// DefaultVersion is used when the question bank carries no VERSION.
const DefaultVersion = "noversion"

// DefaultFlags apply to rules that carry no flags of their own.
const DefaultFlags = "i"

// ErrMissingAppID is returned for a question bank without APP_ID.
var ErrMissingAppID = errors.New("catalog missing APP_ID")

// Format selects the question bank decoder.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Load reads a question bank from a file path or an http(s) URL and parses it.
// Any error is fatal for the session: no assessment can be graded without a catalog.
func Load(ctx context.Context, source string) (*model.Catalog, error) {
	data, format, err := read(ctx, source)
	if err != nil {
		return nil, err
	}
	cat, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", source, err)
	}
	slog.Info("loaded catalog",
		"source", source,
		"app_id", cat.AppID,
		"version", cat.Version,
		"assessments", len(cat.Assessments),
	)
	return cat, nil
}

func read(ctx context.Context, source string) ([]byte, Format, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, FormatJSON, fmt.Errorf("read %s: %w", source, err)
		}
		return data, formatFor(source, ""), nil
	}

	u, err := url.Parse(source)
	if err != nil {
		return nil, FormatJSON, fmt.Errorf("parse url %s: %w", source, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, FormatJSON, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, FormatJSON, fmt.Errorf("fetch %s: %w", source, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, FormatJSON, fmt.Errorf("fetch %s: HTTP %d", source, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, FormatJSON, fmt.Errorf("read body of %s: %w", source, err)
	}
	return data, formatFor(u.Path, resp.Header.Get("Content-Type")), nil
}

func formatFor(name, contentType string) Format {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	if strings.Contains(contentType, "yaml") {
		return FormatYAML
	}
	return FormatJSON
}

// Parse decodes and validates a question bank, compiling every rubric rule.
func Parse(data []byte, format Format) (*model.Catalog, error) {
	var fi fileImport
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &fi); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&fi); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	}
	fi.merge()
	cat, err := build(fi)
	if err != nil {
		return nil, err
	}
	cat.Fingerprint = sha256sum(data)
	return cat, nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func build(fi fileImport) (*model.Catalog, error) {
	if strings.TrimSpace(fi.AppID) == "" {
		return nil, ErrMissingAppID
	}
	cat := &model.Catalog{
		AppID:    fi.AppID,
		Version:  fi.Version,
		Title:    fi.Title,
		Subtitle: fi.Subtitle,
	}
	if cat.Version == "" {
		cat.Version = DefaultVersion
	}
	for _, t := range fi.Teachers {
		cat.Teachers = append(cat.Teachers, model.Teacher{ID: t.ID, Name: t.Name})
	}

	if d := fi.Deadline; d != nil {
		if d.Month < 1 || d.Month > 12 || d.Day < 1 || d.Day > 31 {
			return nil, fmt.Errorf("deadline: invalid day %d / month %d", d.Day, d.Month)
		}
		cat.Deadline = &model.DeadlineConfig{
			Day:   int(d.Day),
			Month: int(d.Month),
			Year:  int(d.Year),
			Label: d.Label,
		}
	}

	seen := make(map[string]bool)
	for i, ai := range fi.Assessments {
		if ai.ID == "" {
			return nil, fmt.Errorf("assessment %d: missing id", i)
		}
		if seen[ai.ID] {
			return nil, fmt.Errorf("assessment %q: duplicate id", ai.ID)
		}
		seen[ai.ID] = true
		a, err := buildAssessment(ai)
		if err != nil {
			return nil, fmt.Errorf("assessment %q: %w", ai.ID, err)
		}
		cat.Assessments = append(cat.Assessments, a)
	}
	return cat, nil
}

func buildAssessment(ai assessmentImport) (model.Assessment, error) {
	a := model.Assessment{ID: ai.ID, Title: ai.Title, Subtitle: ai.Subtitle}
	seen := make(map[string]bool)
	for i, qi := range ai.Questions {
		if qi.ID == "" {
			return a, fmt.Errorf("question %d: missing id", i)
		}
		if seen[qi.ID] {
			return a, fmt.Errorf("question %q: duplicate id", qi.ID)
		}
		seen[qi.ID] = true
		if qi.MaxPoints <= 0 {
			return a, fmt.Errorf("question %q: maxPoints must be positive, got %d", qi.ID, qi.MaxPoints)
		}

		q := model.Question{
			ID:        qi.ID,
			Type:      parseType(qi.Type),
			MaxPoints: qi.MaxPoints,
			Text:      qi.Text,
			Image:     qi.Image,
			Hint:      qi.Hint,
		}
		if q.Type == model.TypeMultipleChoice {
			q.Options = append([]string(nil), qi.Options...)
		}
		for j, ri := range qi.Rubric {
			expr := ri.Check
			if expr == "" {
				expr = ri.Pattern
			}
			re, err := CompilePattern(expr, ri.Flags)
			if err != nil {
				return a, fmt.Errorf("question %q rule %d: %w", qi.ID, j, err)
			}
			q.Rubric = append(q.Rubric, model.Rule{Pattern: re, Points: ri.Points, Hint: ri.Hint})
		}
		a.Questions = append(a.Questions, q)
	}
	return a, nil
}

func parseType(s string) model.QuestionType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mc", "multiple-choice", "multiple_choice":
		return model.TypeMultipleChoice
	case "short", "short-answer", "short_answer":
		return model.TypeShortAnswer
	default:
		return model.TypeExtendedAnswer
	}
}

// CompilePattern compiles a rubric pattern written with JavaScript-style
// flags. i, m and s map to RE2 inline flags; g, u, y and d change nothing for
// a single match test and are ignored. An empty flag string means DefaultFlags.
func CompilePattern(expr, flags string) (*regexp.Regexp, error) {
	if flags == "" {
		flags = DefaultFlags
	}
	var inline []rune
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			if !containsRune(inline, f) {
				inline = append(inline, f)
			}
		case 'g', 'u', 'y', 'd':
		default:
			return nil, fmt.Errorf("unsupported flag %q in %q", f, flags)
		}
	}
	if len(inline) > 0 {
		expr = "(?" + string(inline) + ")" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile pattern: %w", err)
	}
	return re, nil
}

func containsRune(rs []rune, r rune) bool {
	for _, x := range rs {
		if x == r {
			return true
		}
	}
	return false
}
