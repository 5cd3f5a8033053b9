package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pribylovaa/go-offers-aggregator/internal/models"
	"github.com/pribylovaa/go-offers-aggregator/internal/ratelimit"
	"github.com/pribylovaa/go-offers-aggregator/pkg/log"
)

// State — откуда взята выдача; уходит клиенту в X-Cache.
type State string

const (
	StateHit   State = "HIT"
	StateMiss  State = "MISS"
	StateStale State = "STALE"
)

// Result — выдача категории и решение лимитера.
type Result struct {
	Payload  *models.Payload
	State    State
	Decision ratelimit.Decision
}

// Offers проводит запрос через лимит, кэш и апстрим.
//
// Порядок:
//   - лимит исчерпан -> *RateLimitError (ErrRateLimited), кэш и апстрим не трогаются;
//   - свежая запись -> HIT без обращения к апстриму;
//   - иначе выборка (одна на категорию для конкурентных промахов) -> MISS
//     и запись в кэш; ошибка записи только логируется;
//   - выборка не удалась, но запись есть -> STALE;
//   - записи нет -> ErrUnavailable.
//
// Ошибка чтения кэша трактуется как промах.
func (s *Service) Offers(ctx context.Context, c models.Category, clientKey string) (*Result, error) {
	const op = "service/gateway/Offers"

	if _, err := models.ParseCategory(string(c)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUnknownCategory)
	}

	lg := log.From(ctx)

	d := s.limiter.Admit(ctx, clientKey)
	if !d.Allowed {
		s.recorder.RateLimited(c)
		lg.Info("rate_limited",
			slog.String("op", op),
			slog.String("category", c.String()),
			slog.String("client", clientKey),
		)

		return nil, &RateLimitError{Decision: d}
	}

	res, err := s.load(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res.Decision = d
	s.recorder.CacheResult(c, res.State)

	return res, nil
}

// load — ветка CHECK_CACHE -> HIT | MISS | SERVE_STALE_OR_FAIL.
func (s *Service) load(ctx context.Context, c models.Category) (*Result, error) {
	const op = "service/gateway/load"

	lg := log.From(ctx)

	entry, ok, err := s.store.Get(ctx, c)
	if err != nil {
		lg.Warn("cache_read_failed",
			slog.String("op", op),
			slog.String("category", c.String()),
			slog.String("err", err.Error()),
		)
		ok = false
	}

	if ok && entry.IsFresh(s.now(), s.cfg.Cache.TTL) {
		return &Result{Payload: entry.Payload, State: StateHit}, nil
	}

	p, ferr := s.refresh(ctx, c)
	if ferr == nil {
		return &Result{Payload: p, State: StateMiss}, nil
	}

	if ok {
		lg.Warn("cache_stale_served",
			slog.String("op", op),
			slog.String("category", c.String()),
			slog.Time("fetched_at", entry.FetchedAt),
			slog.String("err", ferr.Error()),
		)

		return &Result{Payload: entry.Payload, State: StateStale}, nil
	}

	lg.Error("offers_unavailable",
		slog.String("op", op),
		slog.String("category", c.String()),
		slog.String("err", ferr.Error()),
	)

	return nil, fmt.Errorf("%w: %w", ErrUnavailable, ferr)
}

// refresh выбирает категорию у апстрима и пишет её в кэш. Конкурентные
// вызовы для одной категории разделяют одну выборку.
func (s *Service) refresh(ctx context.Context, c models.Category) (*models.Payload, error) {
	const op = "service/gateway/refresh"

	v, err, shared := s.group.Do(c.CacheKey(), func() (any, error) {
		// Общая выборка не должна обрываться отменой запроса одного клиента;
		// её ограничивает таймаут попытки апстрима.
		fctx := context.WithoutCancel(ctx)

		start := time.Now()
		p, err := s.fetcher.FetchCategory(fctx, c)
		s.recorder.UpstreamFetch(c, err == nil, time.Since(start))
		if err != nil {
			return nil, err
		}

		if err := s.store.Put(fctx, c, p, p.Meta.FetchedAt); err != nil {
			log.From(ctx).Error("cache_write_failed",
				slog.String("op", op),
				slog.String("category", c.String()),
				slog.String("err", err.Error()),
			)
		}

		return p, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		log.From(ctx).Debug("upstream_fetch_shared",
			slog.String("op", op),
			slog.String("category", c.String()),
		)
	}

	return v.(*models.Payload), nil
}
