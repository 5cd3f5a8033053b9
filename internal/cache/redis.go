package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pribylovaa/go-offers-aggregator/internal/models"
)

// maxWatchRetries — сколько раз повторять транзакцию при конкурентной записи.
const maxWatchRetries = 5

// Redis — кэш в Redis: запись хранится JSON-строкой по ключу prefix+"box-offers".
type Redis struct {
	rdb       *redis.Client
	prefix    string
	retention time.Duration
}

// NewRedis создаёт кэш поверх готового клиента. Если prefix пустой —
// используется "offers:". retention = 0 — ключи без TTL.
func NewRedis(rdb *redis.Client, prefix string, retention time.Duration) *Redis {
	if prefix == "" {
		prefix = "offers:"
	}

	return &Redis{rdb: rdb, prefix: prefix, retention: retention}
}

func (r *Redis) key(c models.Category) string { return r.prefix + c.CacheKey() }

func (r *Redis) Get(ctx context.Context, c models.Category) (*Entry, bool, error) {
	const op = "cache/redis/Get"

	raw, err := r.rdb.Get(ctx, r.key(c)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false, fmt.Errorf("%s: decode: %w", op, err)
	}

	return &e, true, nil
}

// Put пишет запись в WATCH-транзакции: если между чтением и записью ключ
// изменился, попытка повторяется; более старая запись не перетирает новую.
func (r *Redis) Put(ctx context.Context, c models.Category, p *models.Payload, fetchedAt time.Time) error {
	const op = "cache/redis/Put"

	raw, err := json.Marshal(Entry{Payload: p, FetchedAt: fetchedAt})
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}

	key := r.key(c)
	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var prev Entry
			if json.Unmarshal(cur, &prev) == nil && fetchedAt.Before(prev.FetchedAt) {
				return nil
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, r.retention)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err = r.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}

	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
