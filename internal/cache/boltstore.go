package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
)

// entriesBucket holds all cache entries, keyed by cache key.
var entriesBucket = []byte("entries")

// boltEntry is the persisted form of an Entry.
type boltEntry struct {
	Blob      []byte    `json:"blob"`
	WrittenAt time.Time `json:"written_at"`
}

// BoltStore is a Store backed by a BoltDB file, giving cache entries a
// lifetime beyond a single run on the same host.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database file at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "opening cache database")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(entriesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating cache bucket")
	}
	return &BoltStore{db: db}, nil
}

// Close releases the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Get(ctx context.Context, key string) (*Entry, error) {
	var entry *Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(entriesBucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		decoded, err := decodeEntry(key, raw)
		if err != nil {
			return err
		}
		entry = decoded
		return nil
	})
	return entry, err
}

func (s *BoltStore) PutIfAbsent(ctx context.Context, key string, blob []byte) (bool, error) {
	wrote := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(entriesBucket)
		if bkt.Get([]byte(key)) != nil {
			return nil
		}
		raw, err := json.Marshal(boltEntry{Blob: blob, WrittenAt: time.Now()})
		if err != nil {
			return errors.Wrap(err, "could not marshal cache entry")
		}
		if err := bkt.Put([]byte(key), raw); err != nil {
			return err
		}
		wrote = true
		return nil
	})
	return wrote, err
}

func (s *BoltStore) FindByPrefix(ctx context.Context, prefix string) (*Entry, error) {
	var best *Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(entriesBucket).Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			entry, err := decodeEntry(string(k), v)
			if err != nil {
				return err
			}
			if best == nil || entry.WrittenAt.After(best.WrittenAt) {
				best = entry
			}
		}
		return nil
	})
	return best, err
}

func decodeEntry(key string, raw []byte) (*Entry, error) {
	var persisted boltEntry
	if err := json.Unmarshal(raw, &persisted); err != nil {
		return nil, errors.Wrapf(err, "could not unmarshal cache entry %q", key)
	}
	return &Entry{Key: key, Blob: persisted.Blob, WrittenAt: persisted.WrittenAt}, nil
}
