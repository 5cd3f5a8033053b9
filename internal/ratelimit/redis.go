package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pribylovaa/go-offers-aggregator/pkg/log"
)

// slidingWindow атомарно очищает окно, считает отметки и при допуске
// добавляет новую. Возвращает {allowed, count, oldest_ms}.
var slidingWindow = redis.NewScript(`
local key    = KEYS[1]
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit  = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, member)
  allowed = 1
end
redis.call('PEXPIRE', key, window)

local oldest = 0
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if first[2] then
  oldest = tonumber(first[2])
end
return {allowed, count, oldest}
`)

// Redis — распределённый лимитер: sorted set на ключ клиента,
// score и член — время запроса в миллисекундах и uuid.
type Redis struct {
	rdb    redis.Scripter
	prefix string
	opts   Options
	now    func() time.Time
}

// NewRedis создаёт лимитер поверх готового клиента. Если prefix пустой —
// используется "offers:rl:".
func NewRedis(rdb redis.Scripter, prefix string, opts Options) *Redis {
	if prefix == "" {
		prefix = "offers:rl:"
	}

	return &Redis{rdb: rdb, prefix: prefix, opts: opts, now: time.Now}
}

func (r *Redis) key(client string) string { return r.prefix + client }

// Admit выполняет скрипт окна. Ошибка Redis — допуск с полным остатком.
func (r *Redis) Admit(ctx context.Context, key string) Decision {
	const op = "ratelimit/redis/Admit"

	now := r.now()
	nowMS := now.UnixMilli()

	res, err := slidingWindow.Run(ctx, r.rdb, []string{r.key(key)},
		nowMS,
		r.opts.Window.Milliseconds(),
		r.opts.Requests,
		uuid.NewString(),
	).Int64Slice()
	if err != nil || len(res) != 3 {
		log.From(ctx).Warn("ratelimit_store_failed",
			slog.String("op", op),
			slog.String("key", key),
			slog.Any("err", err),
		)

		return Decision{
			Allowed:   true,
			Limit:     r.opts.Requests,
			Remaining: r.opts.Requests - 1,
			ResetAt:   now.Add(r.opts.Window),
		}
	}

	var oldest time.Time
	if res[2] > 0 {
		oldest = time.UnixMilli(res[2])
	}

	// res[1] — число отметок до записи текущего запроса.
	d, _ := decide(r.opts, now, int(res[1]), oldest)

	return d
}
