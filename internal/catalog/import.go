package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// fileImport mirrors the question bank file. Keys follow the format of the
// existing questions.json files; the lower-camel spellings are accepted too.
type fileImport struct {
	AppID       string             `json:"APP_ID" yaml:"APP_ID"`
	Version     string             `json:"VERSION" yaml:"VERSION"`
	Title       string             `json:"APP_TITLE" yaml:"APP_TITLE"`
	Subtitle    string             `json:"APP_SUBTITLE" yaml:"APP_SUBTITLE"`
	Teachers    []teacherImport    `json:"TEACHERS" yaml:"TEACHERS"`
	Deadline    *deadlineImport    `json:"DEADLINE" yaml:"DEADLINE"`
	Assessments []assessmentImport `json:"ASSESSMENTS" yaml:"ASSESSMENTS"`

	CamelAppID       string             `json:"appId" yaml:"appId"`
	CamelVersion     string             `json:"version" yaml:"version"`
	CamelTitle       string             `json:"title" yaml:"title"`
	CamelSubtitle    string             `json:"subtitle" yaml:"subtitle"`
	CamelTeachers    []teacherImport    `json:"teachers" yaml:"teachers"`
	CamelDeadline    *deadlineImport    `json:"deadline" yaml:"deadline"`
	CamelAssessments []assessmentImport `json:"assessments" yaml:"assessments"`
}

// merge fills every field left empty by the upper-case keys from its
// lower-camel spelling.
func (fi *fileImport) merge() {
	if fi.AppID == "" {
		fi.AppID = fi.CamelAppID
	}
	if fi.Version == "" {
		fi.Version = fi.CamelVersion
	}
	if fi.Title == "" {
		fi.Title = fi.CamelTitle
	}
	if fi.Subtitle == "" {
		fi.Subtitle = fi.CamelSubtitle
	}
	if len(fi.Teachers) == 0 {
		fi.Teachers = fi.CamelTeachers
	}
	if fi.Deadline == nil {
		fi.Deadline = fi.CamelDeadline
	}
	if len(fi.Assessments) == 0 {
		fi.Assessments = fi.CamelAssessments
	}
}

type teacherImport struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

type deadlineImport struct {
	Day   flexInt `json:"day" yaml:"day"`
	Month flexInt `json:"month" yaml:"month"`
	Year  flexInt `json:"year" yaml:"year"`
	Label string  `json:"label" yaml:"label"`
}

type assessmentImport struct {
	ID        string           `json:"id" yaml:"id"`
	Title     string           `json:"title" yaml:"title"`
	Subtitle  string           `json:"subtitle" yaml:"subtitle"`
	Questions []questionImport `json:"questions" yaml:"questions"`
}

type questionImport struct {
	ID        string       `json:"id" yaml:"id"`
	Type      string       `json:"type" yaml:"type"`
	MaxPoints int          `json:"maxPoints" yaml:"maxPoints"`
	Text      string       `json:"text" yaml:"text"`
	Image     string       `json:"image" yaml:"image"`
	Options   []string     `json:"options" yaml:"options"`
	Rubric    []ruleImport `json:"rubric" yaml:"rubric"`
	Hint      string       `json:"hint" yaml:"hint"`
}

type ruleImport struct {
	Check   string `json:"check" yaml:"check"`
	Pattern string `json:"pattern" yaml:"pattern"`
	Flags   string `json:"flags" yaml:"flags"`
	Points  int    `json:"points" yaml:"points"`
	Hint    string `json:"hint" yaml:"hint"`
}

// flexInt accepts 12 as well as "12"; deadline days and months appear both ways.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("not an integer: %s", data)
	}
	*n = flexInt(v)
	return nil
}

func (n *flexInt) UnmarshalYAML(node *yaml.Node) error {
	if node.Value == "" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: not an integer: %q", node.Line, node.Value)
	}
	*n = flexInt(v)
	return nil
}

var _ json.Unmarshaler = (*flexInt)(nil)
