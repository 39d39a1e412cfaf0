package store

import (
	"context"
	"fmt"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverMongo  = "mongo"
	DriverBolt   = "bolt"
)

type Options struct {
	Driver        string
	Prefix        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	MongoURI      string
	MongoDatabase string
	BoltPath      string
}

// Open builds the store selected by opts.Driver. Every driver keeps its keys
// under opts.Prefix.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverMemory:
		return WithPrefix(NewMemoryStore(), opts.Prefix), nil
	case DriverRedis:
		client, err := ConnectRedis(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(client, opts.Prefix), nil
	case DriverMongo:
		db, err := ConnectMongoDB(ctx, opts.MongoURI, opts.MongoDatabase)
		if err != nil {
			return nil, err
		}
		s := NewMongoStore(db)
		if err := s.CreateIndexes(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return WithPrefix(s, opts.Prefix), nil
	case DriverBolt:
		s, err := OpenBoltStore(opts.BoltPath)
		if err != nil {
			return nil, err
		}
		return WithPrefix(s, opts.Prefix), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}
