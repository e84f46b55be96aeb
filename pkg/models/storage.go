package models

import (
	"time"

	"github.com/uptrace/bun"
)

// StorageEntry is a row in the local key-value store. Value holds the JSON
// serialization of whatever was stored, optionally sealed with an AEAD when
// Encrypted is set. TTLMillis of zero means the entry never expires.
type StorageEntry struct {
	bun.BaseModel `bun:"table:kv_entries,alias:kv"`

	Key       string    `bun:",pk"`
	Value     []byte    `bun:",notnull"`
	Encrypted bool      `bun:",notnull,default:false"`
	WrittenAt int64     `bun:",notnull"`
	TTLMillis int64     `bun:",notnull,default:0"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

// Expired reports whether the entry's TTL has elapsed at the given time.
func (e *StorageEntry) Expired(now time.Time) bool {
	if e.TTLMillis <= 0 {
		return false
	}
	return now.UnixMilli()-e.WrittenAt > e.TTLMillis
}
