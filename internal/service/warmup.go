package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/pribylovaa/go-offers-aggregator/internal/models"
	"github.com/pribylovaa/go-offers-aggregator/pkg/log"
)

// StartWarmup периодически обновляет кэш всех категорий в обход лимитера.
//
// Особенности:
//   - интервал 0 — прогрев выключен, возврат сразу;
//   - первый проход выполняется немедленно;
//   - ошибки выборки логируются, цикл продолжается;
//   - останавливается по ctx.
func (s *Service) StartWarmup(ctx context.Context) {
	const op = "service/warmup/StartWarmup"

	interval := s.cfg.Warmup.Interval
	if interval <= 0 {
		return
	}

	lg := log.From(ctx)
	lg.Info("warmup_start",
		slog.String("op", op),
		slog.Duration("interval", interval),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.warmOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			lg.Info("warmup_stop", slog.String("op", op))
			return
		case <-ticker.C:
			s.warmOnce(ctx)
		}
	}
}

// warmOnce — один проход по всем категориям.
func (s *Service) warmOnce(ctx context.Context) {
	const op = "service/warmup/warmOnce"

	lg := log.From(ctx)

	for _, c := range models.Categories {
		if ctx.Err() != nil {
			return
		}

		p, err := s.refresh(ctx, c)
		if err != nil {
			lg.Warn("warmup_fetch_failed",
				slog.String("op", op),
				slog.String("category", c.String()),
				slog.String("err", err.Error()),
			)
			continue
		}

		lg.Info("warmup_refreshed",
			slog.String("op", op),
			slog.String("category", c.String()),
			slog.Int("offers", p.Meta.TotalOffers),
		)
	}
}
