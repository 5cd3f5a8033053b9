package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pribylovaa/go-offers-aggregator/internal/models"
	"github.com/pribylovaa/go-offers-aggregator/internal/query"
	"github.com/pribylovaa/go-offers-aggregator/internal/ratelimit"
	"github.com/pribylovaa/go-offers-aggregator/pkg/log"
)

// QueryResult — страница отфильтрованной выдачи и фасеты исходной.
type QueryResult struct {
	Page     query.Page
	Filters  json.RawMessage
	State    State
	Decision ratelimit.Decision
}

// StatsResult — сводка по выдаче категории.
type StatsResult struct {
	Stats    query.Stats
	State    State
	Decision ratelimit.Decision
}

// Query получает выдачу через Offers и применяет к ней фильтры, сортировку
// и пагинацию с лимитами из конфига.
//
// Ошибки:
//   - ErrNoOffers — выдачи нет (апстрим недоступен, кэш пуст);
//   - query.ErrInvalidRequest — page/limit < 1;
//   - ErrRateLimited, ErrUnknownCategory — как у Offers.
func (s *Service) Query(ctx context.Context, c models.Category, clientKey string, req query.Request) (*QueryResult, error) {
	const op = "service/queries/Query"

	res, err := s.Offers(ctx, c, clientKey)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return nil, fmt.Errorf("%s: %w", op, ErrNoOffers)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	page, err := query.RunWithLimits(res.Payload.Commercial.Offers, req, s.limits())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Debug("offers_query_ok",
		slog.String("op", op),
		slog.String("category", c.String()),
		slog.String("sort", req.Sort),
		slog.Int("total", page.Total),
		slog.Int("page", page.Page),
	)

	return &QueryResult{
		Page:     page,
		Filters:  res.Payload.Commercial.Filters,
		State:    res.State,
		Decision: res.Decision,
	}, nil
}

// Stats получает выдачу через Offers и считает сводку.
func (s *Service) Stats(ctx context.Context, c models.Category, clientKey string) (*StatsResult, error) {
	const op = "service/queries/Stats"

	res, err := s.Offers(ctx, c, clientKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &StatsResult{
		Stats:    query.Summarize(res.Payload.Commercial.Offers),
		State:    res.State,
		Decision: res.Decision,
	}, nil
}
