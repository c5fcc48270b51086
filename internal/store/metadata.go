package store

import (
	"fmt"
	"strings"
)

// catalogMetaKey names the catalog fingerprint entry.
const catalogMetaKey = "CATALOG"

// metaKey places a metadata entry beside the document under a "_META_"
// segment. Escaped document keys hold exactly two underscores, so no metadata
// name can produce a document key.
func (s *Store) metaKey(name string) string {
	return strings.TrimSuffix(s.key, "_DATA") + "_META_" + name
}

// SetMetadata upserts a value stored next to the document.
func (s *Store) SetMetadata(name, value string) error {
	if s.key == "" {
		return ErrNotInitialized
	}
	if err := s.kv.Set(s.metaKey(name), value); err != nil {
		return fmt.Errorf("write metadata %s: %w", name, err)
	}
	return nil
}

// GetMetadata returns the value for a metadata name.
// Returns empty string and nil error if the entry is missing.
func (s *Store) GetMetadata(name string) (string, error) {
	if s.key == "" {
		return "", ErrNotInitialized
	}
	v, _, err := s.kv.Get(s.metaKey(name))
	if err != nil {
		return "", fmt.Errorf("read metadata %s: %w", name, err)
	}
	return v, nil
}

// RecordCatalog stores the fingerprint of the loaded catalog and reports
// whether a different catalog was recorded for the same app id and version.
func (s *Store) RecordCatalog(fingerprint string) (changed bool, err error) {
	prev, err := s.GetMetadata(catalogMetaKey)
	if err != nil {
		return false, err
	}
	if prev == fingerprint {
		return false, nil
	}
	if err := s.SetMetadata(catalogMetaKey, fingerprint); err != nil {
		return false, err
	}
	return prev != "", nil
}
