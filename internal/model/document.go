package model

// Document is the single persisted record of a device: the student profile,
// every assessment's obfuscated answers and deadline bookkeeping.
//
// A missing question key in Answers means unanswered. An answered but blank
// field is stored as an (obfuscated) empty string.
type Document struct {
	Name         string                       `json:"name,omitempty"`
	ID           string                       `json:"id,omitempty"`
	Teacher      string                       `json:"teacher,omitempty"`
	IDLocked     bool                         `json:"idLocked,omitempty"`
	Answers      map[string]map[string]string `json:"answers"`
	DeadlineInfo *DeadlineRecord              `json:"deadlineInfo,omitempty"`
}

// DeadlineRecord holds deadline bookkeeping persisted with the document.
type DeadlineRecord struct {
	FirstSeen string `json:"firstSeen,omitempty"`
}

// NewDocument returns the empty default document.
func NewDocument() Document {
	return Document{Answers: make(map[string]map[string]string)}
}
