package store

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/pavelanni/selfcheck/internal/model"
)

func newTestBackends(t *testing.T) map[string]Backend {
	t.Helper()

	sqlite, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "selfcheck:")
	t.Cleanup(func() { rdb.Close() })

	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"sqlite": sqlite,
		"redis":  rdb,
	}
}

func newTestStore(t *testing.T, kv Backend) *Store {
	t.Helper()
	s := New(kv)
	if err := s.Initialize("US24355", "v1"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return s
}

func TestKeyDerivation(t *testing.T) {
	if got := Key("US24355", "v1"); got != "US24355_v1_DATA" {
		t.Errorf("Key = %q", got)
	}
	if got := Key("US24355", ""); got != "US24355_noversion_DATA" {
		t.Errorf("Key with empty version = %q", got)
	}

	pairs := [][2]string{
		{"a", "v1"}, {"a", "v2"}, {"b", "v1"},
		{"a_b", "c"}, {"a", "b_c"}, {"a%5Fb", "c"},
	}
	seen := make(map[string][2]string)
	for _, p := range pairs {
		k := Key(p[0], p[1])
		if prev, ok := seen[k]; ok {
			t.Errorf("Key collision: %v and %v both map to %q", prev, p, k)
		}
		seen[k] = p
	}
}

func TestInitializeRequiresAppID(t *testing.T) {
	s := New(NewMemoryBackend())
	if err := s.Initialize("", "v1"); err == nil {
		t.Fatal("expected error for empty app id")
	}
	if err := s.SetAnswer("a", "q1", "x"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
}

func TestLegacyMigration(t *testing.T) {
	for name, kv := range newTestBackends(t) {
		t.Run(name, func(t *testing.T) {
			legacy := `{"name":"Ana","id":"123","answers":{"safety1":{"q1":"` + Encode("red") + `"}}}`
			if err := kv.Set(LegacyKey, legacy); err != nil {
				t.Fatal(err)
			}

			s := newTestStore(t, kv)
			got, found, err := kv.Get(s.Key())
			if err != nil || !found {
				t.Fatalf("expected migrated record, found=%v err=%v", found, err)
			}
			if got != legacy {
				t.Errorf("migration not verbatim:\n got %s\nwant %s", got, legacy)
			}
			if _, found, _ := kv.Get(LegacyKey); found {
				t.Error("legacy record should be deleted")
			}
			if s.Answer("safety1", "q1") != "red" {
				t.Errorf("Answer = %q, want red", s.Answer("safety1", "q1"))
			}

			// A second initialization is a no-op.
			if err := s.SetAnswer("safety1", "q1", "blue"); err != nil {
				t.Fatal(err)
			}
			if err := s.Initialize("US24355", "v1"); err != nil {
				t.Fatalf("re-Initialize: %v", err)
			}
			if s.Answer("safety1", "q1") != "blue" {
				t.Error("re-initialization must not touch stored answers")
			}
		})
	}
}

func TestLegacyMigrationSkipped(t *testing.T) {
	t.Run("new key already present", func(t *testing.T) {
		kv := NewMemoryBackend()
		_ = kv.Set(LegacyKey, `{"answers":{"a":{"q1":"`+Encode("old")+`"}}}`)
		_ = kv.Set(Key("US24355", "v1"), `{"answers":{"a":{"q1":"`+Encode("new")+`"}}}`)
		s := newTestStore(t, kv)
		if s.Answer("a", "q1") != "new" {
			t.Error("existing record must win over legacy")
		}
		if _, found, _ := kv.Get(LegacyKey); !found {
			t.Error("legacy record should be left alone when nothing was migrated")
		}
	})

	t.Run("legacy without answers", func(t *testing.T) {
		kv := NewMemoryBackend()
		_ = kv.Set(LegacyKey, `{"name":"Ana"}`)
		s := newTestStore(t, kv)
		if _, found, _ := kv.Get(s.Key()); found {
			t.Error("legacy record without answers should not be copied")
		}
		if _, found, _ := kv.Get(LegacyKey); found {
			t.Error("legacy record should be deleted")
		}
	})

	t.Run("unreadable legacy", func(t *testing.T) {
		kv := NewMemoryBackend()
		_ = kv.Set(LegacyKey, `not json`)
		s := newTestStore(t, kv)
		if _, found, _ := kv.Get(s.Key()); found {
			t.Error("unreadable legacy record should not be copied")
		}
		if _, found, _ := kv.Get(LegacyKey); !found {
			t.Error("unreadable legacy record should be left in place")
		}
	})
}

func TestLoadCorruptDocument(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{{{"},
		{"null", "null"},
		{"array", `[1,2,3]`},
		{"number", `42`},
		{"string", `"hello"`},
		{"wrong field type", `{"answers": 5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := NewMemoryBackend()
			s := newTestStore(t, kv)
			_ = kv.Set(s.Key(), tt.raw)

			doc := s.Load()
			if doc.Name != "" || doc.ID != "" || doc.IDLocked {
				t.Errorf("expected default document, got %+v", doc)
			}
			if doc.Answers == nil {
				t.Error("default document must have an answers map")
			}
			if got := s.Answer("a", "q1"); got != "" {
				t.Errorf("Answer on corrupt document = %q", got)
			}

			// Writing after corruption replaces it with a valid document.
			if err := s.SetAnswer("a", "q1", "x"); err != nil {
				t.Fatalf("SetAnswer: %v", err)
			}
			if s.Answer("a", "q1") != "x" {
				t.Error("answer not stored after corruption")
			}
		})
	}
}

func TestAnswersRoundTrip(t *testing.T) {
	for name, kv := range newTestBackends(t) {
		t.Run(name, func(t *testing.T) {
			s := newTestStore(t, kv)

			if s.HasAnswer("safety1", "q1") {
				t.Error("fresh store should have no answers")
			}
			if err := s.SetAnswer("safety1", "q1", "Goggles and apron"); err != nil {
				t.Fatal(err)
			}
			if err := s.SetAnswer("safety1", "q2", ""); err != nil {
				t.Fatal(err)
			}
			if err := s.SetAnswer("safety2", "q1", "other"); err != nil {
				t.Fatal(err)
			}

			if got := s.Answer("safety1", "q1"); got != "Goggles and apron" {
				t.Errorf("Answer = %q", got)
			}
			if !s.HasAnswer("safety1", "q2") || s.Answer("safety1", "q2") != "" {
				t.Error("blank answer should be stored and distinguishable from unanswered")
			}
			if s.HasAnswer("safety1", "q3") {
				t.Error("unanswered question reported as answered")
			}

			all := s.Answers("safety1")
			if len(all) != 2 || all["q1"] != "Goggles and apron" {
				t.Errorf("Answers = %v", all)
			}

			raw, _, _ := kv.Get(s.Key())
			var doc model.Document
			if err := json.Unmarshal([]byte(raw), &doc); err != nil {
				t.Fatalf("stored document is not JSON: %v", err)
			}
			if doc.Answers["safety1"]["q1"] == "Goggles and apron" {
				t.Error("answers must not be stored in plain text")
			}
		})
	}
}

func TestObfuscationRoundTrip(t *testing.T) {
	inputs := []string{"", "a", "/", "///", string([]byte{mask}), "hello world", "Kia ora, ngā mihi", "émoji 🎉", "line\nbreak\t"}
	for _, in := range inputs {
		if got := Decode(Encode(in)); got != in {
			t.Errorf("Decode(Encode(%q)) = %q", in, got)
		}
	}
	if Encode("") != "" {
		t.Error("empty string should encode to empty string")
	}
	if Decode("!!not base64!!") != "" {
		t.Error("malformed input should decode to empty string")
	}
}

func TestIDLatch(t *testing.T) {
	for name, kv := range newTestBackends(t) {
		t.Run(name, func(t *testing.T) {
			s := newTestStore(t, kv)

			locked, err := s.LockID()
			if err != nil || locked {
				t.Fatalf("LockID without id = %v, %v; want false, nil", locked, err)
			}

			if err := s.SetIdentity("Ana", "123", "abc"); err != nil {
				t.Fatal(err)
			}
			if err := s.SetIdentity("Ana", "124", "abc"); err != nil {
				t.Fatalf("id change before lock should succeed: %v", err)
			}

			locked, err = s.LockID()
			if err != nil || !locked {
				t.Fatalf("LockID = %v, %v; want true, nil", locked, err)
			}
			if locked, _ = s.LockID(); locked {
				t.Error("second LockID should report already locked")
			}

			err = s.SetIdentity("Ana Maria", "999", "def")
			if !errors.Is(err, ErrIDLocked) {
				t.Fatalf("expected ErrIDLocked, got %v", err)
			}
			doc := s.Load()
			if doc.ID != "124" || doc.Name != "Ana Maria" || doc.Teacher != "def" {
				t.Errorf("unexpected profile after locked change: %+v", doc)
			}

			// Whole-document saves cannot bypass the latch either.
			doc.ID = "555"
			doc.IDLocked = false
			if err := s.Save(doc); err != nil {
				t.Fatal(err)
			}
			doc = s.Load()
			if doc.ID != "124" || !doc.IDLocked {
				t.Errorf("Save bypassed id latch: %+v", doc)
			}

			if err := s.SetIdentity("Ana", "124", "abc"); err != nil {
				t.Errorf("re-saving the locked id should succeed: %v", err)
			}
		})
	}
}

func TestFirstSeen(t *testing.T) {
	s := newTestStore(t, NewMemoryBackend())
	first := time.Date(2025, 12, 1, 9, 30, 0, 0, time.UTC)

	got, err := s.FirstSeen(first)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(first) {
		t.Errorf("FirstSeen = %v, want %v", got, first)
	}

	got, err = s.FirstSeen(first.Add(72 * time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(first) {
		t.Errorf("FirstSeen should keep the first value, got %v", got)
	}

	doc := s.Load()
	if doc.DeadlineInfo == nil || doc.DeadlineInfo.FirstSeen != "2025-12-01T09:30:00.000Z" {
		t.Errorf("stored firstSeen = %+v", doc.DeadlineInfo)
	}
}

func TestSQLiteBackend(t *testing.T) {
	b, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer b.Close()

	if _, found, err := b.Get("missing"); err != nil || found {
		t.Fatalf("Get(missing) = found %v, err %v", found, err)
	}
	if err := b.Set("k", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := b.Set("k", "v2"); err != nil {
		t.Fatal(err)
	}
	v, found, err := b.Get("k")
	if err != nil || !found || v != "v2" {
		t.Fatalf("Get(k) = %q, %v, %v", v, found, err)
	}
	if err := b.Delete("k"); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := b.Get("k"); found {
		t.Error("key should be deleted")
	}
}

func TestRedisBackendUsesPrefix(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	b := NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "selfcheck:")
	defer b.Close()

	if err := b.Set("US_v1_DATA", "{}"); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("selfcheck:US_v1_DATA") {
		t.Fatal("expected prefixed redis key to be set")
	}
	if err := b.Delete("US_v1_DATA"); err != nil {
		t.Fatal(err)
	}
	if mr.Exists("selfcheck:US_v1_DATA") {
		t.Fatal("expected redis key to be removed")
	}
}

func TestRecordCatalog(t *testing.T) {
	for name, kv := range newTestBackends(t) {
		t.Run(name, func(t *testing.T) {
			s := newTestStore(t, kv)

			steps := []struct {
				fingerprint string
				wantChanged bool
			}{
				{"aaa", false},
				{"aaa", false},
				{"bbb", true},
				{"bbb", false},
			}
			for i, st := range steps {
				changed, err := s.RecordCatalog(st.fingerprint)
				if err != nil {
					t.Fatalf("step %d: %v", i, err)
				}
				if changed != st.wantChanged {
					t.Errorf("step %d: changed = %v, want %v", i, changed, st.wantChanged)
				}
			}

			if got := s.Load(); len(got.Answers) != 0 || got.ID != "" {
				t.Errorf("metadata leaked into the document: %+v", got)
			}
			if v, _ := s.GetMetadata("CATALOG"); v != "bbb" {
				t.Errorf("GetMetadata = %q", v)
			}
		})
	}
}

func TestMetadataKeepsDocument(t *testing.T) {
	for _, name := range []string{"DATA", "CATALOG", "x_DATA"} {
		t.Run(name, func(t *testing.T) {
			s := newTestStore(t, NewMemoryBackend())
			if err := s.SetAnswer("safety", "q1", "red"); err != nil {
				t.Fatalf("SetAnswer: %v", err)
			}
			if err := s.SetMetadata(name, "not a document"); err != nil {
				t.Fatalf("SetMetadata: %v", err)
			}
			if got := s.Answer("safety", "q1"); got != "red" {
				t.Errorf("answer = %q after SetMetadata(%q)", got, name)
			}
			if v, _ := s.GetMetadata(name); v != "not a document" {
				t.Errorf("GetMetadata = %q", v)
			}
		})
	}
}

func TestMetadataRequiresInitialize(t *testing.T) {
	s := New(NewMemoryBackend())
	if err := s.SetMetadata("x", "y"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("SetMetadata err = %v", err)
	}
	if _, err := s.RecordCatalog("abc"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("RecordCatalog err = %v", err)
	}
}
