package database

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// NewRedis connects to the redis used for revision signals and fails fast
// when it is unreachable.
func NewRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}
