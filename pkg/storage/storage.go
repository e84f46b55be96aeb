// Package storage is the client's persistent key-value store. Entries are
// namespaced, JSON-serialized rows in a local database; sensitive values are
// sealed with an AEAD before they touch disk. When the database cannot be
// opened the store degrades to a process-lifetime in-memory map so the rest
// of the client keeps working without persistence.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"grovia-client/pkg/models"
)

// Store is a namespaced key-value store backed by a local database file.
type Store struct {
	db     *bun.DB
	prefix string
	sealer *sealer
	logger *slog.Logger

	mu     sync.Mutex
	memory map[string]*models.StorageEntry

	now func() time.Time
}

// Open creates a Store at the given database path. The namespace prefixes
// every key; the secret keys the AEAD for encrypted entries. Open never
// fails: when the database is unavailable it logs the cause and returns a
// memory-only store.
func Open(path, namespace, secret string, logger *slog.Logger) *Store {
	s := &Store{
		prefix: namespace,
		sealer: newSealer(secret),
		logger: logger,
		memory: make(map[string]*models.StorageEntry),
		now:    time.Now,
	}

	db, err := openDB(path)
	if err != nil {
		logger.Warn("persistent storage unavailable, falling back to memory", "path", path, "error", err)
		return s
	}

	s.db = db
	return s
}

func openDB(path string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	_, err = db.NewCreateTable().
		Model((*models.StorageEntry)(nil)).
		IfNotExists().
		Exec(context.Background())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return db, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Persistent reports whether writes survive process restarts.
func (s *Store) Persistent() bool {
	return s.db != nil
}

func (s *Store) key(key string) string {
	return s.prefix + key
}

// Set stores a JSON-serializable value under key.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	return s.put(ctx, key, value, false, 0)
}

// SetEncrypted stores a value sealed with the store's AEAD. The ciphertext
// is useless without the configured storage secret.
func (s *Store) SetEncrypted(ctx context.Context, key string, value any) error {
	return s.put(ctx, key, value, true, 0)
}

// SetCache stores a value that expires after ttl. Expired entries are
// evicted lazily on the next read of their key; there is no sweeper.
func (s *Store) SetCache(ctx context.Context, key string, value any, ttl time.Duration) error {
	return s.put(ctx, key, value, false, ttl.Milliseconds())
}

func (s *Store) put(ctx context.Context, key string, value any, encrypted bool, ttlMillis int64) error {
	raw, err := marshalValue(value)
	if err != nil {
		return err
	}

	if encrypted {
		raw, err = s.sealer.seal(raw)
		if err != nil {
			return fmt.Errorf("error sealing value: %w", err)
		}
	}

	entry := &models.StorageEntry{
		Key:       s.key(key),
		Value:     raw,
		Encrypted: encrypted,
		WrittenAt: s.now().UnixMilli(),
		TTLMillis: ttlMillis,
	}

	if s.db == nil {
		s.mu.Lock()
		s.memory[entry.Key] = entry
		s.mu.Unlock()
		return nil
	}

	_, err = s.db.NewInsert().
		Model(entry).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("encrypted = EXCLUDED.encrypted").
		Set("written_at = EXCLUDED.written_at").
		Set("ttl_millis = EXCLUDED.ttl_millis").
		Set("updated_at = CURRENT_TIMESTAMP").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("error storing entry: %w", err)
	}
	return nil
}

// Get loads the value stored under key into dst. It returns false when the
// key is absent or its TTL has elapsed; expired entries are deleted on the
// spot.
func (s *Store) Get(ctx context.Context, key string, dst any) (bool, error) {
	entry, err := s.load(ctx, key)
	if err != nil || entry == nil {
		return false, err
	}

	raw := entry.Value
	if entry.Encrypted {
		raw, err = s.sealer.open(raw)
		if err != nil {
			return false, fmt.Errorf("error unsealing value: %w", err)
		}
	}

	if err := unmarshalValue(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

// GetCache behaves like Get; it exists so call sites read naturally when the
// entry was written with SetCache.
func (s *Store) GetCache(ctx context.Context, key string, dst any) (bool, error) {
	return s.Get(ctx, key, dst)
}

func (s *Store) load(ctx context.Context, key string) (*models.StorageEntry, error) {
	full := s.key(key)

	var entry *models.StorageEntry
	if s.db == nil {
		s.mu.Lock()
		entry = s.memory[full]
		s.mu.Unlock()
	} else {
		stored := new(models.StorageEntry)
		err := s.db.NewSelect().
			Model(stored).
			Where("key = ?", full).
			Scan(ctx)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, nil
			}
			return nil, fmt.Errorf("error loading entry: %w", err)
		}
		entry = stored
	}

	if entry == nil {
		return nil, nil
	}

	if entry.Expired(s.now()) {
		if err := s.Delete(ctx, key); err != nil {
			s.logger.Debug("failed to evict expired entry", "key", full, "error", err)
		}
		return nil, nil
	}

	return entry, nil
}

// Has reports whether a live (non-expired) entry exists for key.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	entry, err := s.load(ctx, key)
	return entry != nil, err
}

// Delete removes the entry for key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	full := s.key(key)

	if s.db == nil {
		s.mu.Lock()
		delete(s.memory, full)
		s.mu.Unlock()
		return nil
	}

	_, err := s.db.NewDelete().
		Model((*models.StorageEntry)(nil)).
		Where("key = ?", full).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("error deleting entry: %w", err)
	}
	return nil
}

// Keys lists every stored key in this store's namespace, prefix stripped.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		keys := make([]string, 0, len(s.memory))
		for k := range s.memory {
			keys = append(keys, strings.TrimPrefix(k, s.prefix))
		}
		return keys, nil
	}

	var entries []models.StorageEntry
	err := s.db.NewSelect().
		Model(&entries).
		Column("key").
		Where("key LIKE ?", s.prefix+"%").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing keys: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, strings.TrimPrefix(e.Key, s.prefix))
	}
	return keys, nil
}

// Clear removes every entry in this store's namespace.
func (s *Store) Clear(ctx context.Context) error {
	if s.db == nil {
		s.mu.Lock()
		for k := range s.memory {
			delete(s.memory, k)
		}
		s.mu.Unlock()
		return nil
	}

	_, err := s.db.NewDelete().
		Model((*models.StorageEntry)(nil)).
		Where("key LIKE ?", s.prefix+"%").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("error clearing entries: %w", err)
	}
	return nil
}
