// Package redis wraps the shared redis client.
package redis

import (
	"context"
	"time"

	errors "github.com/Laisky/errors/v2"
	gredis "github.com/Laisky/go-redis/v2"
	"github.com/redis/go-redis/v9"
)

// DialInfo redis dial info
type DialInfo struct {
	Addr string
	Pwd  string
	DB   int
}

// DB is a wrapper for go-redis
type DB struct {
	*gredis.Utils
}

// NewDB connects to redis and verifies the connection with a ping.
func NewDB(ctx context.Context, dialInfo DialInfo) (*DB, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     dialInfo.Addr,
		Password: dialInfo.Pwd,
		DB:       dialInfo.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrapf(err, "ping redis %s", dialInfo.Addr)
	}

	return &DB{Utils: gredis.NewRedisUtils(rdb)}, nil
}

// KV is the string key/value subset of redis the stores rely on.
type KV interface {
	GetItem(ctx context.Context, key string) (string, error)
	SetItem(ctx context.Context, key, val string, exp time.Duration) error
	DelItem(ctx context.Context, key string) error
}

// DelItem deletes key.
func (db *DB) DelItem(ctx context.Context, key string) error {
	return db.Del(ctx, key).Err()
}

// IsNil reports whether err means the key does not exist.
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
