package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pavelanni/selfcheck/internal/model"
)

const sampleJSON = `{
  "APP_ID": "US24355",
  "VERSION": "v2",
  "APP_TITLE": "Pukekohe High School",
  "APP_SUBTITLE": "Technology Assessment",
  "TEACHERS": [{"id": "abc", "name": "Ms Smith"}],
  "DEADLINE": {"day": "25", "month": 12, "label": "Safety deadline"},
  "ASSESSMENTS": [
    {
      "id": "safety1",
      "title": "Workshop Safety",
      "subtitle": "Part 1",
      "questions": [
        {
          "id": "q1",
          "type": "mc",
          "maxPoints": 1,
          "text": "Which colour are emergency stops?",
          "options": ["Red", "Green"],
          "rubric": [{"check": "^red$", "points": 1}],
          "hint": "Think of warning colours."
        },
        {
          "id": "q2",
          "type": "extended",
          "maxPoints": 3,
          "text": "List PPE.",
          "rubric": [
            {"check": "goggles", "points": 1, "hint": "Eyes?"},
            {"pattern": "Apron", "flags": "g", "points": 1}
          ]
        }
      ]
    }
  ]
}`

const sampleYAML = `
APP_ID: US24355
VERSION: v2
APP_TITLE: Pukekohe High School
TEACHERS:
  - id: abc
    name: Ms Smith
DEADLINE:
  day: 25
  month: "12"
ASSESSMENTS:
  - id: safety1
    title: Workshop Safety
    questions:
      - id: q1
        type: multiple-choice
        maxPoints: 1
        text: Which colour are emergency stops?
        options: [Red, Green]
        rubric:
          - check: ^red$
            points: 1
`

func TestParseJSON(t *testing.T) {
	cat, err := Parse([]byte(sampleJSON), FormatJSON)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cat.AppID != "US24355" || cat.Version != "v2" {
		t.Errorf("unexpected app id/version %q/%q", cat.AppID, cat.Version)
	}
	if cat.Deadline == nil || cat.Deadline.Day != 25 || cat.Deadline.Month != 12 {
		t.Fatalf("unexpected deadline %+v", cat.Deadline)
	}
	if cat.TeacherName("abc") != "Ms Smith" {
		t.Errorf("TeacherName(abc) = %q", cat.TeacherName("abc"))
	}

	a, ok := cat.Assessment("safety1")
	if !ok {
		t.Fatal("assessment safety1 not found")
	}
	if len(a.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(a.Questions))
	}
	q1 := a.Questions[0]
	if q1.Type != model.TypeMultipleChoice || len(q1.Options) != 2 {
		t.Errorf("q1 type/options = %q/%v", q1.Type, q1.Options)
	}
	if !q1.Rubric[0].Matches("RED") {
		t.Error("default flags should match case-insensitively")
	}
	q2 := a.Questions[1]
	if q2.Type != model.TypeExtendedAnswer {
		t.Errorf("q2 type = %q, want extended", q2.Type)
	}
	if !q2.Rubric[1].Matches("an Apron") {
		t.Error("rule read from the pattern key should match")
	}
	if q2.Rubric[1].Matches("apron") {
		t.Error("explicit flags without i should be case-sensitive")
	}
	if q2.Rubric[0].Hint != "Eyes?" {
		t.Errorf("rule hint = %q", q2.Rubric[0].Hint)
	}

	again, err := Parse([]byte(sampleJSON), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	if cat.Fingerprint == "" || cat.Fingerprint != again.Fingerprint {
		t.Errorf("fingerprint = %q vs %q", cat.Fingerprint, again.Fingerprint)
	}
}

func TestParseYAMLMatchesJSON(t *testing.T) {
	cat, err := Parse([]byte(sampleYAML), FormatYAML)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cat.Deadline == nil || cat.Deadline.Month != 12 {
		t.Fatalf("unexpected deadline %+v", cat.Deadline)
	}
	a, ok := cat.Assessment("safety1")
	if !ok {
		t.Fatal("assessment safety1 not found")
	}
	if a.Questions[0].Type != model.TypeMultipleChoice {
		t.Errorf("type = %q", a.Questions[0].Type)
	}
	if !a.Questions[0].Rubric[0].Matches("Red") {
		t.Error("rule should match")
	}
}

func TestParseCamelCaseKeys(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		data   string
	}{
		{"json", FormatJSON, `{
  "appId": "a",
  "version": "v1",
  "title": "T",
  "subtitle": "S",
  "teachers": [{"id": "smi", "name": "Ms Smith"}],
  "deadline": {"day": 3, "month": 4},
  "assessments": [{"id": "tools", "title": "Tools", "questions": [
    {"id": "q1", "type": "short", "maxPoints": 1, "text": "Cuts wood?",
     "rubric": [{"pattern": "saw", "points": 1}]}
  ]}]
}`},
		{"yaml", FormatYAML, `
appId: a
version: v1
title: T
subtitle: S
teachers:
  - id: smi
    name: Ms Smith
deadline:
  day: 3
  month: 4
assessments:
  - id: tools
    title: Tools
    questions:
      - id: q1
        type: short
        maxPoints: 1
        text: Cuts wood?
        rubric:
          - pattern: saw
            points: 1
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, err := Parse([]byte(tt.data), tt.format)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if cat.AppID != "a" || cat.Version != "v1" || cat.Title != "T" || cat.Subtitle != "S" {
				t.Errorf("header = %q %q %q %q", cat.AppID, cat.Version, cat.Title, cat.Subtitle)
			}
			if cat.TeacherName("smi") != "Ms Smith" {
				t.Errorf("teacher = %q", cat.TeacherName("smi"))
			}
			if cat.Deadline == nil || cat.Deadline.Day != 3 || cat.Deadline.Month != 4 {
				t.Errorf("deadline = %+v", cat.Deadline)
			}
			a, ok := cat.Assessment("tools")
			if !ok {
				t.Fatal("assessment tools not found")
			}
			if !a.Questions[0].Rubric[0].Matches("a saw") {
				t.Error("rule should match")
			}
		})
	}
}

func TestParseDefaults(t *testing.T) {
	cat, err := Parse([]byte(`{"APP_ID":"x","ASSESSMENTS":[]}`), FormatJSON)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cat.Version != DefaultVersion {
		t.Errorf("version = %q, want %q", cat.Version, DefaultVersion)
	}
	if cat.Deadline != nil {
		t.Errorf("expected no deadline, got %+v", cat.Deadline)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantSub string
	}{
		{"not json", `{`, "decode json"},
		{"missing app id", `{"ASSESSMENTS":[]}`, "APP_ID"},
		{"invalid pattern", `{"APP_ID":"x","ASSESSMENTS":[{"id":"a","questions":[{"id":"q1","maxPoints":1,"rubric":[{"check":"(unclosed","points":1}]}]}]}`, `question "q1" rule 0`},
		{"lookahead unsupported", `{"APP_ID":"x","ASSESSMENTS":[{"id":"a","questions":[{"id":"q1","maxPoints":1,"rubric":[{"check":"(?=a)","points":1}]}]}]}`, "compile pattern"},
		{"bad flag", `{"APP_ID":"x","ASSESSMENTS":[{"id":"a","questions":[{"id":"q1","maxPoints":1,"rubric":[{"check":"a","flags":"x","points":1}]}]}]}`, "unsupported flag"},
		{"zero max points", `{"APP_ID":"x","ASSESSMENTS":[{"id":"a","questions":[{"id":"q1","maxPoints":0}]}]}`, "maxPoints must be positive"},
		{"duplicate question", `{"APP_ID":"x","ASSESSMENTS":[{"id":"a","questions":[{"id":"q1","maxPoints":1},{"id":"q1","maxPoints":1}]}]}`, "duplicate id"},
		{"duplicate assessment", `{"APP_ID":"x","ASSESSMENTS":[{"id":"a"},{"id":"a"}]}`, "duplicate id"},
		{"bad deadline", `{"APP_ID":"x","DEADLINE":{"day":"soon","month":1}}`, "not an integer"},
		{"deadline out of range", `{"APP_ID":"x","DEADLINE":{"day":1,"month":13}}`, "invalid day"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), FormatJSON)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}

	_, err := Parse([]byte(`{"VERSION":"v1"}`), FormatJSON)
	if !errors.Is(err, ErrMissingAppID) {
		t.Errorf("expected ErrMissingAppID, got %v", err)
	}
}

func TestCompilePattern(t *testing.T) {
	tests := []struct {
		name  string
		expr  string
		flags string
		input string
		want  bool
	}{
		{"default case-insensitive", "hello", "", "HELLO", true},
		{"explicit i", "hello", "i", "Hello", true},
		{"multiline only is case-sensitive", "hello", "m", "HELLO", false},
		{"multiline anchors", "^b$", "m", "a\nb", true},
		{"dot all", "a.b", "s", "a\nb", true},
		{"empty pattern matches blank", "", "i", "", true},
		{"blank anchor", `^\s*$`, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re, err := CompilePattern(tt.expr, tt.flags)
			if err != nil {
				t.Fatalf("CompilePattern: %v", err)
			}
			if got := re.MatchString(tt.input); got != tt.want {
				t.Errorf("match(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadFromFileAndURL(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "questions.json")
	if err := os.WriteFile(jsonPath, []byte(sampleJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	yamlPath := filepath.Join(dir, "questions.yaml")
	if err := os.WriteFile(yamlPath, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, p := range []string{jsonPath, yamlPath} {
		cat, err := Load(context.Background(), p)
		if err != nil {
			t.Fatalf("Load(%s): %v", p, err)
		}
		if cat.AppID != "US24355" {
			t.Errorf("Load(%s) app id = %q", p, cat.AppID)
		}
	}

	if _, err := Load(context.Background(), filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/questions.json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(sampleJSON))
		case "/bank":
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write([]byte(sampleYAML))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	for _, p := range []string{"/questions.json", "/bank"} {
		cat, err := Load(context.Background(), srv.URL+p)
		if err != nil {
			t.Fatalf("Load(%s): %v", p, err)
		}
		if len(cat.Assessments) != 1 {
			t.Errorf("Load(%s): expected 1 assessment, got %d", p, len(cat.Assessments))
		}
	}

	_, err := Load(context.Background(), srv.URL+"/nope.json")
	if err == nil || !strings.Contains(err.Error(), "HTTP 404") {
		t.Errorf("expected HTTP 404 error, got %v", err)
	}
}
