// Package kvstore wraps go.etcd.io/bbolt into the ordered key-value
// sidecar used for the timetable's stop/trip/route-shape metadata (§3.3)
// and the transfer graph's edge-shape and edge-length tables (§3.4).
// bbolt gives byte-ordered, single-file, mmap-backed storage that a
// read-only query path can open in parallel with the packed columns
// without a relational engine's query planner getting in the way.
package kvstore

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// Store wraps a bbolt database with typed get/put helpers over
// gob-encoded values, keyed by big-endian uint64 (the gtfsparser/valinor
// corpus reaches for messagepack on the Rust side; no messagepack
// library ships in this module's reference corpus, so gob is used
// instead — see DESIGN.md).
type Store struct {
	db *bolt.DB
}

// Open opens or creates the bbolt file at path, readOnly governing
// whether callers may write.
func Open(path string, readOnly bool) (*Store, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{ReadOnly: readOnly})
	if err != nil {
		return nil, errors.Wrap(err, "opening kvstore")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying file handle.
func (s *Store) Close() error { return s.db.Close() }

// EnsureBucket creates the named bucket if it does not already exist.
// Must be called against a writable store.
func (s *Store) EnsureBucket(bucket string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
}

func keyBytes(key uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], key)
	return b[:]
}

// Put gob-encodes value and stores it under key in bucket.
func Put[V any](s *Store, bucket string, key uint64, value V) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return errors.Wrap(err, "encoding kvstore value")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return errors.Errorf("bucket %q does not exist", bucket)
		}
		return b.Put(keyBytes(key), buf.Bytes())
	})
}

// Get decodes the value stored under key in bucket into a V. Returns the
// zero value and ok=false if the key is absent.
func Get[V any](s *Store, bucket string, key uint64) (value V, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		raw := b.Get(keyBytes(key))
		if raw == nil {
			return nil
		}
		ok = true
		return gob.NewDecoder(bytes.NewReader(raw)).Decode(&value)
	})
	return value, ok, err
}

// PutPair stores a value keyed by an (from,to) edge pair, used by the
// transfer graph's edge-shape and edge-length tables.
func PutPair[V any](s *Store, bucket string, from, to uint64, value V) error {
	return Put(s, bucket, pairKey(from, to), value)
}

// GetPair retrieves a value stored by PutPair.
func GetPair[V any](s *Store, bucket string, from, to uint64) (V, bool, error) {
	return Get[V](s, bucket, pairKey(from, to))
}

// pairKey folds two node ids into one lookup key. Node ids are dense
// uint32-range values in practice, so the high/low 32 bits never
// collide across direction.
func pairKey(from, to uint64) uint64 {
	return (from << 32) | (to & 0xffffffff)
}
