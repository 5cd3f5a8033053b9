// service содержит бизнес-логику шлюза предложений: лимит запросов,
// кэш с отдачей устаревших данных и запросы к выдаче.
package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pribylovaa/go-offers-aggregator/internal/cache"
	"github.com/pribylovaa/go-offers-aggregator/internal/config"
	"github.com/pribylovaa/go-offers-aggregator/internal/models"
	"github.com/pribylovaa/go-offers-aggregator/internal/query"
	"github.com/pribylovaa/go-offers-aggregator/internal/ratelimit"
)

var (
	// ErrRateLimited — клиент исчерпал окно.
	// Транспорт: 429 + Retry-After.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrUnavailable — апстрим недоступен и в кэше ничего нет.
	// Транспорт: 503 + Retry-After.
	ErrUnavailable = errors.New("offers temporarily unavailable")
	// ErrNoOffers — для запроса с фильтрами нет исходной выдачи.
	// Транспорт: 404.
	ErrNoOffers = errors.New("no offers available")
	// ErrUnknownCategory — категория вне mobile/box.
	// Транспорт: 404.
	ErrUnknownCategory = errors.New("unknown category")
)

// RateLimitError несёт решение лимитера для заголовков ответа.
type RateLimitError struct {
	Decision ratelimit.Decision
}

func (e *RateLimitError) Error() string { return ErrRateLimited.Error() }

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// Fetcher — источник свежей выдачи (upstream.Client).
type Fetcher interface {
	FetchCategory(ctx context.Context, c models.Category) (*models.Payload, error)
}

// Recorder — метрики шлюза. Реализуется internal/metrics.
type Recorder interface {
	CacheResult(c models.Category, state State)
	RateLimited(c models.Category)
	UpstreamFetch(c models.Category, ok bool, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) CacheResult(models.Category, State) {}
func (nopRecorder) RateLimited(models.Category) {}
func (nopRecorder) UpstreamFetch(models.Category, bool, time.Duration) {}

// Service — описывает бизнес-логику шлюза.
type Service struct {
	fetcher  Fetcher
	store    cache.Store
	limiter  ratelimit.Limiter
	recorder Recorder
	cfg      config.Config
	group    singleflight.Group
	now      func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithRecorder подключает метрики.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New создает новый экземпляр Service.
func New(fetcher Fetcher, store cache.Store, limiter ratelimit.Limiter, cfg config.Config, opts ...Option) *Service {
	s := &Service{
		fetcher:  fetcher,
		store:    store,
		limiter:  limiter,
		recorder: nopRecorder{},
		cfg:      cfg,
		now:      time.Now,
	}

	for _, o := range opts {
		o(s)
	}

	return s
}

func (s *Service) limits() query.Limits {
	return query.Limits{Default: s.cfg.Limits.Default, Max: s.cfg.Limits.Max}
}
