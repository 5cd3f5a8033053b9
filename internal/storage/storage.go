// Package storage открывает общие подключения к внешним хранилищам,
// которые разделяют кэш выдачи и лимитер.
package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// OpenRedis создаёт клиент Redis из URL (например, redis://:pass@host:6379/0)
// и проверяет соединение на старте.
func OpenRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	const op = "storage/OpenRedis"

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: parse url: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	return rdb, nil
}
