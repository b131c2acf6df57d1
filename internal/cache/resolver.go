package cache

import (
	"context"

	"github.com/vk/conveyor/internal/ctxlog"
)

// Resolver resolves the best available cache entry for a job instance via
// an ordered fallback chain, and stores new entries after successful runs.
type Resolver struct {
	store Store
}

// NewResolver creates a resolver backed by the given store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve attempts an exact match on the primary key, then tries each
// restore-key prefix in declared order, returning the first match. The
// prefixes are tried strictly in caller order; a longer prefix later in the
// list never beats an earlier match. A miss returns (nil, nil).
func (r *Resolver) Resolve(ctx context.Context, primaryKey string, restoreKeys []string) (*Entry, error) {
	logger := ctxlog.FromContext(ctx)

	entry, err := r.store.Get(ctx, primaryKey)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		logger.Debug("Cache hit on primary key.", "key", primaryKey)
		return entry, nil
	}

	for _, prefix := range restoreKeys {
		entry, err := r.store.FindByPrefix(ctx, prefix)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			logger.Debug("Cache hit on restore key.", "prefix", prefix, "key", entry.Key)
			return entry, nil
		}
	}

	logger.Debug("Cache miss.", "key", primaryKey)
	return nil, nil
}

// Store writes blob under the primary key. A second store under the same
// key is a silent no-op, which keeps concurrent matrix legs that compute
// identical keys from racing.
func (r *Resolver) Store(ctx context.Context, primaryKey string, blob []byte) error {
	wrote, err := r.store.PutIfAbsent(ctx, primaryKey, blob)
	if err != nil {
		return err
	}
	if !wrote {
		ctxlog.FromContext(ctx).Debug("Cache entry already present, keeping first write.", "key", primaryKey)
	}
	return nil
}
