package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("storefront")

// BoltStore keeps keys in a single bbolt file. Each value is prefixed with its
// expiry as unix nanoseconds, zero meaning no expiry.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt file: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(boltBucket)
		return e
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db, now: time.Now}, nil
}

func (s *BoltStore) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(boltBucket).Get([]byte(key))
		value, ok := s.decode(raw)
		if !ok {
			return ErrNotFound
		}
		out = make([]byte, len(value))
		copy(out, value)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), s.encode(value, ttl))
	})
	if err != nil {
		return fmt.Errorf("bolt put failed: %w", err)
	}
	return nil
}

func (s *BoltStore) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	stored := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltBucket)
		if _, ok := s.decode(b.Get([]byte(key))); ok {
			return nil
		}
		stored = true
		return b.Put([]byte(key), s.encode(value, ttl))
	})
	if err != nil {
		return false, fmt.Errorf("bolt setnx failed: %w", err)
	}
	return stored, nil
}

func (s *BoltStore) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("bolt delete failed: %w", err)
	}
	return nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) encode(value []byte, ttl time.Duration) []byte {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.now().Add(ttl).UnixNano()
	}
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf, uint64(expiresAt))
	copy(buf[8:], value)
	return buf
}

func (s *BoltStore) decode(raw []byte) ([]byte, bool) {
	if len(raw) < 8 {
		return nil, false
	}
	expiresAt := int64(binary.BigEndian.Uint64(raw[:8]))
	if expiresAt != 0 && s.now().UnixNano() > expiresAt {
		return nil, false
	}
	return raw[8:], true
}
