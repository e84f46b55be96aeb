package storage

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"grovia-client/pkg/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMemoryStore(prefix string) *Store {
	return &Store{
		prefix: prefix,
		sealer: newSealer("test-secret"),
		logger: discardLogger(),
		memory: make(map[string]*models.StorageEntry),
		now:    time.Now,
	}
}

func TestMemoryStoreCRUD(t *testing.T) {
	s := newMemoryStore("test_")
	ctx := context.Background()

	if s.Persistent() {
		t.Fatal("Persistent() = true for a memory-only store")
	}

	if err := s.Set(ctx, "greeting", "hello"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var got string
	ok, err := s.Get(ctx, "greeting", &got)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v, want true, nil", ok, err)
	}
	if got != "hello" {
		t.Errorf("Get() value = %q, want %q", got, "hello")
	}

	if err := s.Delete(ctx, "greeting"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	ok, err = s.Get(ctx, "greeting", &got)
	if err != nil {
		t.Fatalf("Get() after delete error = %v", err)
	}
	if ok {
		t.Error("Get() after delete = true, want false")
	}
}

func TestGetAbsentKey(t *testing.T) {
	s := newMemoryStore("test_")

	var got string
	ok, err := s.Get(context.Background(), "missing", &got)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() = true for an absent key")
	}
}

func TestEncryptedRoundTrip(t *testing.T) {
	s := newMemoryStore("test_")
	ctx := context.Background()

	type profile struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	original := profile{Name: "Farmer", Email: "farmer@example.com"}

	if err := s.SetEncrypted(ctx, "profile", original); err != nil {
		t.Fatalf("SetEncrypted() error = %v", err)
	}

	// The stored bytes must not contain the plaintext.
	entry := s.memory["test_profile"]
	if entry == nil {
		t.Fatal("entry not stored")
	}
	if !entry.Encrypted {
		t.Error("entry not marked encrypted")
	}
	if bytes.Contains(entry.Value, []byte("farmer@example.com")) {
		t.Error("stored value contains plaintext")
	}

	var got profile
	ok, err := s.Get(ctx, "profile", &got)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v, want true, nil", ok, err)
	}
	if got != original {
		t.Errorf("Get() = %+v, want %+v", got, original)
	}
}

func TestEncryptedTamperDetected(t *testing.T) {
	s := newMemoryStore("test_")
	ctx := context.Background()

	if err := s.SetEncrypted(ctx, "secret", "value"); err != nil {
		t.Fatalf("SetEncrypted() error = %v", err)
	}

	entry := s.memory["test_secret"]
	entry.Value[len(entry.Value)-1] ^= 0xff

	var got string
	if _, err := s.Get(ctx, "secret", &got); err == nil {
		t.Error("Get() error = nil for tampered ciphertext, want failure")
	}
}

func TestWrongSecretCannotRead(t *testing.T) {
	s := newMemoryStore("test_")
	ctx := context.Background()

	if err := s.SetEncrypted(ctx, "secret", "value"); err != nil {
		t.Fatalf("SetEncrypted() error = %v", err)
	}

	other := newMemoryStore("test_")
	other.sealer = newSealer("different-secret")
	other.memory = s.memory

	var got string
	if _, err := other.Get(ctx, "secret", &got); err == nil {
		t.Error("Get() error = nil under a different secret, want failure")
	}
}

func TestCacheExpiryEvictsLazily(t *testing.T) {
	s := newMemoryStore("test_")
	ctx := context.Background()

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return current }

	if err := s.SetCache(ctx, "cached", "value", time.Minute); err != nil {
		t.Fatalf("SetCache() error = %v", err)
	}

	var got string
	ok, err := s.GetCache(ctx, "cached", &got)
	if err != nil || !ok {
		t.Fatalf("GetCache() before expiry = %v, %v, want true, nil", ok, err)
	}

	current = current.Add(2 * time.Minute)
	ok, err = s.GetCache(ctx, "cached", &got)
	if err != nil {
		t.Fatalf("GetCache() after expiry error = %v", err)
	}
	if ok {
		t.Error("GetCache() after expiry = true, want false")
	}
	if _, present := s.memory["test_cached"]; present {
		t.Error("expired entry was not evicted")
	}
}

func TestNonTTLEntriesNeverExpire(t *testing.T) {
	s := newMemoryStore("test_")
	ctx := context.Background()

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return current }

	if err := s.Set(ctx, "durable", "value"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	current = current.Add(1000 * time.Hour)
	var got string
	ok, err := s.Get(ctx, "durable", &got)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v, want true, nil", ok, err)
	}
}

func TestNamespaceIsolation(t *testing.T) {
	shared := make(map[string]*models.StorageEntry)

	a := newMemoryStore("a_")
	a.memory = shared
	b := newMemoryStore("b_")
	b.memory = shared

	ctx := context.Background()
	if err := a.Set(ctx, "key", "from-a"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var got string
	ok, err := b.Get(ctx, "key", &got)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("namespace b can read namespace a's entry")
	}
}

func TestOpenFallsBackToMemory(t *testing.T) {
	// A directory is not a usable database file.
	s := Open(t.TempDir(), "test_", "secret", discardLogger())
	defer s.Close()

	if s.Persistent() {
		t.Error("Persistent() = true, want memory fallback")
	}

	ctx := context.Background()
	if err := s.Set(ctx, "key", "value"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	var got string
	ok, err := s.Get(ctx, "key", &got)
	if err != nil || !ok || got != "value" {
		t.Errorf("Get() = %q, %v, %v, want value, true, nil", got, ok, err)
	}
}

func TestPersistentStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	ctx := context.Background()

	s := Open(path, "test_", "secret", discardLogger())
	if !s.Persistent() {
		t.Fatal("Persistent() = false for a file-backed store")
	}
	if err := s.Set(ctx, "key", "value"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened := Open(path, "test_", "secret", discardLogger())
	defer reopened.Close()

	var got string
	ok, err := reopened.Get(ctx, "key", &got)
	if err != nil || !ok {
		t.Fatalf("Get() after reopen = %v, %v, want true, nil", ok, err)
	}
	if got != "value" {
		t.Errorf("Get() after reopen = %q, want %q", got, "value")
	}
}

func TestPersistentUpsertAndKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	ctx := context.Background()

	s := Open(path, "test_", "secret", discardLogger())
	defer s.Close()

	if err := s.Set(ctx, "key", "first"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set(ctx, "key", "second"); err != nil {
		t.Fatalf("Set() upsert error = %v", err)
	}
	if err := s.Set(ctx, "other", "x"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var got string
	ok, err := s.Get(ctx, "key", &got)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v, want true, nil", ok, err)
	}
	if got != "second" {
		t.Errorf("Get() = %q, want the upserted value", got)
	}

	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "key" || keys[1] != "other" {
		t.Errorf("Keys() = %v, want [key other]", keys)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	keys, err = s.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys() after Clear error = %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Keys() after Clear = %v, want empty", keys)
	}
}

func TestSettings(t *testing.T) {
	settings := NewSettings(newMemoryStore("test_"))
	ctx := context.Background()

	if got := settings.GetString(ctx, "sort", "newest"); got != "newest" {
		t.Errorf("GetString() fallback = %q, want %q", got, "newest")
	}
	if err := settings.SetString(ctx, "sort", "oldest"); err != nil {
		t.Fatalf("SetString() error = %v", err)
	}
	if got := settings.GetString(ctx, "sort", "newest"); got != "oldest" {
		t.Errorf("GetString() = %q, want %q", got, "oldest")
	}

	if got := settings.GetBool(ctx, "notify", true); !got {
		t.Error("GetBool() fallback = false, want true")
	}
	if err := settings.SetBool(ctx, "notify", false); err != nil {
		t.Fatalf("SetBool() error = %v", err)
	}
	if got := settings.GetBool(ctx, "notify", true); got {
		t.Error("GetBool() = true, want the stored false")
	}
}

func TestSealerRoundTrip(t *testing.T) {
	s := newSealer("secret")

	sealed, err := s.seal([]byte("plaintext"))
	if err != nil {
		t.Fatalf("seal() error = %v", err)
	}
	opened, err := s.open(sealed)
	if err != nil {
		t.Fatalf("open() error = %v", err)
	}
	if string(opened) != "plaintext" {
		t.Errorf("open() = %q, want %q", opened, "plaintext")
	}

	if _, err := s.open([]byte("short")); err == nil {
		t.Error("open() error = nil for a truncated ciphertext")
	}
}
