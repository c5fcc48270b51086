// Package store persists the student's document: profile, obfuscated answers
// and deadline bookkeeping, under a key versioned by application and catalog
// version.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pavelanni/selfcheck/internal/model"
)

// LegacyKey is the unversioned key used before storage keys carried the
// application id and version.
const LegacyKey = "TECH_DATA"

const defaultVersion = "noversion"

const firstSeenLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	// ErrIDLocked is returned when a locked student id would change.
	ErrIDLocked = errors.New("student id is locked to this device")
	// ErrNotInitialized is returned when the store is used before Initialize.
	ErrNotInitialized = errors.New("store not initialized")
)

// Store owns the persisted document. It assumes a single writer and always
// reads, modifies and overwrites the whole document.
type Store struct {
	kv  Backend
	key string
}

// New returns a store on top of kv. Call Initialize before use.
func New(kv Backend) *Store {
	return &Store{kv: kv}
}

// Close closes the underlying backend.
func (s *Store) Close() error {
	return s.kv.Close()
}

// Key derives the storage key for an application id and catalog version.
// Underscores and percent signs inside either part are escaped so that two
// different (appID, version) pairs never share a key.
func Key(appID, version string) string {
	if version == "" {
		version = defaultVersion
	}
	return escapeKeyPart(appID) + "_" + escapeKeyPart(version) + "_DATA"
}

var keyEscaper = strings.NewReplacer("%", "%25", "_", "%5F")

func escapeKeyPart(s string) string {
	return keyEscaper.Replace(s)
}

// Key returns the storage key in use, or "" before Initialize.
func (s *Store) Key() string {
	return s.key
}

// Initialize selects the storage key and performs the one-time migration
// from the legacy key: if a legacy record exists and nothing is stored under
// the new key yet, a legacy document with answers is copied verbatim and the
// legacy key is removed. Running it again is a no-op.
func (s *Store) Initialize(appID, version string) error {
	if appID == "" {
		return errors.New("initialize store: empty app id")
	}
	s.key = Key(appID, version)

	legacy, found, err := s.kv.Get(LegacyKey)
	if err != nil {
		return fmt.Errorf("read legacy record: %w", err)
	}
	if !found {
		return nil
	}
	_, exists, err := s.kv.Get(s.key)
	if err != nil {
		return fmt.Errorf("read %s: %w", s.key, err)
	}
	if exists {
		return nil
	}
	return s.migrateLegacy(legacy)
}

func (s *Store) migrateLegacy(legacy string) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(legacy), &probe); err != nil {
		slog.Warn("legacy record unreadable, leaving it in place", "key", LegacyKey, "error", err)
		return nil
	}
	if _, ok := probe["answers"]; ok {
		if err := s.kv.Set(s.key, legacy); err != nil {
			return fmt.Errorf("copy legacy record: %w", err)
		}
		slog.Info("migrated legacy record", "from", LegacyKey, "to", s.key)
	}
	if err := s.kv.Delete(LegacyKey); err != nil {
		return fmt.Errorf("delete legacy record: %w", err)
	}
	return nil
}

// Load returns the stored document, or the empty default when nothing is
// stored, the stored value is corrupt, or the backend cannot be read.
func (s *Store) Load() model.Document {
	doc, err := s.load()
	if err != nil {
		slog.Warn("load document failed, using default", "key", s.key, "error", err)
		return model.NewDocument()
	}
	return doc
}

// load only fails on backend errors; corrupt content yields the default.
func (s *Store) load() (model.Document, error) {
	if s.key == "" {
		return model.Document{}, ErrNotInitialized
	}
	raw, found, err := s.kv.Get(s.key)
	if err != nil {
		return model.Document{}, err
	}
	if !found {
		return model.NewDocument(), nil
	}
	doc, err := decodeDocument(raw)
	if err != nil {
		slog.Warn("stored document corrupt, using default", "key", s.key, "error", err)
		return model.NewDocument(), nil
	}
	return doc, nil
}

func decodeDocument(raw string) (model.Document, error) {
	if !strings.HasPrefix(strings.TrimSpace(raw), "{") {
		return model.Document{}, errors.New("not a JSON object")
	}
	var doc model.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return model.Document{}, err
	}
	if doc.Answers == nil {
		doc.Answers = make(map[string]map[string]string)
	}
	return doc, nil
}

// Save overwrites the stored document. Once the stored document has its id
// locked, the latch stays set and the id cannot change.
func (s *Store) Save(doc model.Document) error {
	cur, err := s.load()
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	if cur.IDLocked {
		if doc.ID != cur.ID {
			slog.Warn("ignoring change of locked student id", "locked_id", cur.ID)
		}
		doc.IDLocked = true
		doc.ID = cur.ID
	}
	return s.write(doc)
}

func (s *Store) write(doc model.Document) error {
	if doc.Answers == nil {
		doc.Answers = make(map[string]map[string]string)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if err := s.kv.Set(s.key, string(data)); err != nil {
		return fmt.Errorf("write %s: %w", s.key, err)
	}
	return nil
}

// SetAnswer stores the obfuscated answer for one question.
func (s *Store) SetAnswer(assessmentID, questionID, plaintext string) error {
	doc, err := s.load()
	if err != nil {
		return fmt.Errorf("set answer: %w", err)
	}
	answers := doc.Answers[assessmentID]
	if answers == nil {
		answers = make(map[string]string)
		doc.Answers[assessmentID] = answers
	}
	answers[questionID] = Encode(plaintext)
	return s.write(doc)
}

// Answer returns the decoded answer, or "" if it is missing or unreadable.
func (s *Store) Answer(assessmentID, questionID string) string {
	doc := s.Load()
	return Decode(doc.Answers[assessmentID][questionID])
}

// HasAnswer reports whether a question has a stored answer (possibly blank).
func (s *Store) HasAnswer(assessmentID, questionID string) bool {
	doc := s.Load()
	_, ok := doc.Answers[assessmentID][questionID]
	return ok
}

// Answers returns every stored answer of an assessment, decoded.
func (s *Store) Answers(assessmentID string) map[string]string {
	doc := s.Load()
	out := make(map[string]string, len(doc.Answers[assessmentID]))
	for qid, enc := range doc.Answers[assessmentID] {
		out[qid] = Decode(enc)
	}
	return out
}

// SetIdentity stores the student's name, id and teacher. If the id is
// locked and differs from the stored one, the id is left unchanged, the
// other fields are still saved and ErrIDLocked is returned.
func (s *Store) SetIdentity(name, id, teacher string) error {
	doc, err := s.load()
	if err != nil {
		return fmt.Errorf("set identity: %w", err)
	}
	doc.Name = name
	doc.Teacher = teacher
	var locked error
	if doc.IDLocked && id != doc.ID {
		locked = ErrIDLocked
	} else {
		doc.ID = id
	}
	if err := s.write(doc); err != nil {
		return err
	}
	return locked
}

// LockID sets the id latch if an id is stored. It reports whether the latch
// was set by this call.
func (s *Store) LockID() (bool, error) {
	doc, err := s.load()
	if err != nil {
		return false, fmt.Errorf("lock id: %w", err)
	}
	if doc.ID == "" || doc.IDLocked {
		return false, nil
	}
	doc.IDLocked = true
	if err := s.write(doc); err != nil {
		return false, err
	}
	slog.Info("student id locked", "id", doc.ID)
	return true, nil
}

// FirstSeen returns when this device first evaluated the deadline, recording
// now if nothing (or nothing readable) is stored yet.
func (s *Store) FirstSeen(now time.Time) (time.Time, error) {
	doc, err := s.load()
	if err != nil {
		return now, fmt.Errorf("first seen: %w", err)
	}
	if doc.DeadlineInfo != nil && doc.DeadlineInfo.FirstSeen != "" {
		if t, err := time.Parse(time.RFC3339, doc.DeadlineInfo.FirstSeen); err == nil {
			return t, nil
		}
	}
	if doc.DeadlineInfo == nil {
		doc.DeadlineInfo = &model.DeadlineRecord{}
	}
	seen := now.UTC().Truncate(time.Millisecond)
	doc.DeadlineInfo.FirstSeen = seen.Format(firstSeenLayout)
	if err := s.write(doc); err != nil {
		return now, err
	}
	return seen, nil
}
