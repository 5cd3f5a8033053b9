package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/pribylovaa/go-offers-aggregator/internal/http/handlers"
	"github.com/pribylovaa/go-offers-aggregator/internal/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration
	// AllowedOrigins — источники для CORS; пустой список отключает CORS.
	AllowedOrigins  []string
	Metrics         middleware.HTTPObserver
	AnonymousPolicy string
	RetryAfter      time.Duration
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc handlers.OffersService, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),            // безопасно ловим паники
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
		middleware.Metrics(opts.Metrics),
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	h := handlers.New(svc, opts.AnonymousPolicy, opts.RetryAfter)
	registerRoutes(root, h)

	if len(opts.AllowedOrigins) == 0 {
		return root
	}

	return corsHandler(opts.AllowedOrigins).Handler(root)
}

// registerRoutes — единая точка регистрации REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers) {
	r.Get("/api/offers/{category}", h.GetOffers)
	r.Post("/api/offers/{category}", h.QueryOffers)
	r.Get("/api/offers/{category}/stats", h.OfferStats)
}

func corsHandler(origins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{
			"X-Cache",
			"X-Request-Id",
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
			"Retry-After",
			"X-Total-Offers",
			"X-Total-Results",
		},
		MaxAge: 600,
	})
}
