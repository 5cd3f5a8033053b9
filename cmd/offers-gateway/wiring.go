package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pribylovaa/go-offers-aggregator/internal/cache"
	"github.com/pribylovaa/go-offers-aggregator/internal/config"
	"github.com/pribylovaa/go-offers-aggregator/internal/ratelimit"
	"github.com/pribylovaa/go-offers-aggregator/internal/storage"
	"github.com/pribylovaa/go-offers-aggregator/internal/upstream"
	"github.com/pribylovaa/go-offers-aggregator/pkg/redact"
)

// backends — хранилище кэша и лимитер, собранные по storage.driver.
type backends struct {
	store   cache.Store
	limiter ratelimit.Limiter
	rdb     *redis.Client
}

// Close освобождает соединение с Redis, если оно было открыто.
func (b *backends) Close() error {
	if b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

// buildBackends собирает кэш и лимитер. Для memory-драйвера в фоне
// запускается очистка окон лимитера, останавливаемая ctx.
func buildBackends(ctx context.Context, cfg *config.Config, log *slog.Logger) (*backends, error) {
	rlOpts := ratelimit.Options{Requests: cfg.RateLimit.Requests, Window: cfg.RateLimit.Window}

	switch cfg.Storage.Driver {
	case config.DriverRedis:
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		rdb, err := storage.OpenRedis(dialCtx, cfg.Storage.Redis.URL)
		cancel()
		if err != nil {
			return nil, err
		}
		log.Info("redis_connected", slog.String("url", redact.URL(cfg.Storage.Redis.URL)))

		b := &backends{
			store:   cache.NewRedis(rdb, cfg.Storage.Redis.Prefix, cfg.Storage.Redis.Retention),
			limiter: ratelimit.Unlimited{},
			rdb:     rdb,
		}
		if cfg.RateLimit.Enabled {
			b.limiter = ratelimit.NewRedis(rdb, cfg.Storage.Redis.Prefix+"rl:", rlOpts)
		}
		return b, nil

	default:
		b := &backends{store: cache.NewMemory(), limiter: ratelimit.Unlimited{}}
		if cfg.RateLimit.Enabled {
			m := ratelimit.NewMemory(rlOpts, ratelimit.WithCleanupEvery(cfg.RateLimit.JanitorEvery))
			m.StartJanitor(ctx)
			b.limiter = m
		}
		return b, nil
	}
}

// newUpstream — клиент фида из секции upstream.
func newUpstream(cfg *config.Config) *upstream.Client {
	return upstream.New(&http.Client{}, upstream.Options{
		BaseURL:         cfg.Upstream.BaseURL,
		Partner:         cfg.Upstream.Partner,
		UserAgent:       cfg.Upstream.UserAgent,
		Timeout:         cfg.Upstream.Timeout,
		MobilePath:      cfg.Upstream.MobilePath,
		BoxPath:         cfg.Upstream.BoxPath,
		BoxFallbackPath: cfg.Upstream.BoxFallbackPath,
		RPS:             cfg.Upstream.RPS,
		Burst:           cfg.Upstream.Burst,
		CacheTTL:        cfg.Cache.TTL,
	})
}
