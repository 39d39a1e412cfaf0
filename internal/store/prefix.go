package store

import (
	"context"
	"time"
)

// prefixedStore namespaces the keys of a store that has no prefix of its own.
type prefixedStore struct {
	Store
	prefix string
}

// WithPrefix puts prefix in front of every key s sees. An empty prefix
// returns s unchanged.
func WithPrefix(s Store, prefix string) Store {
	if prefix == "" {
		return s
	}
	return &prefixedStore{Store: s, prefix: prefix}
}

func (p *prefixedStore) Get(ctx context.Context, key string) ([]byte, error) {
	return p.Store.Get(ctx, p.prefix+key)
}

func (p *prefixedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.Store.Set(ctx, p.prefix+key, value, ttl)
}

func (p *prefixedStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return p.Store.SetNX(ctx, p.prefix+key, value, ttl)
}

func (p *prefixedStore) Delete(ctx context.Context, key string) error {
	return p.Store.Delete(ctx, p.prefix+key)
}
