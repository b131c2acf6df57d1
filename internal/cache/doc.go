// Package cache implements dependency-cache resolution for job instances:
// key template expansion, an ordered restore-key fallback chain, and
// append-only entry stores (in-memory, BoltDB, S3-compatible object
// storage) behind a common Store interface.
package cache
