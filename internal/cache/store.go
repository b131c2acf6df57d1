package cache

import (
	"context"
	"time"
)

// Entry is one stored cache entry: a key, an opaque blob, and the time it
// was written. Entries are immutable once stored.
type Entry struct {
	Key       string
	Blob      []byte
	WrittenAt time.Time
}

// Store is the persistence contract for cache entries. Writes are
// append-only per distinct key: PutIfAbsent never overwrites, so concurrent
// writers under the same key race harmlessly and the first one wins.
type Store interface {
	// Get returns the entry stored under exactly key, or nil on a miss.
	Get(ctx context.Context, key string) (*Entry, error)

	// PutIfAbsent stores blob under key unless an entry already exists.
	// It reports whether this call performed the write.
	PutIfAbsent(ctx context.Context, key string, blob []byte) (bool, error)

	// FindByPrefix returns the most recently written entry whose key starts
	// with prefix, or nil when none match.
	FindByPrefix(ctx context.Context, prefix string) (*Entry, error)
}
