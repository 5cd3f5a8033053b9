package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// HTTPObserver принимает итог запроса (реализуется internal/metrics).
type HTTPObserver interface {
	ObserveHTTP(route, method string, code int, d time.Duration)
}

// Metrics отдаёт в obs шаблон маршрута chi, метод, статус и длительность.
// Запросы вне маршрутов помечаются route="unmatched", чтобы не плодить метки.
func Metrics(obs HTTPObserver) Middleware {
	return func(next http.Handler) http.Handler {
		if obs == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)
			start := time.Now()
			next.ServeHTTP(sw, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if p := rc.RoutePattern(); p != "" {
					route = p
				}
			}

			obs.ObserveHTTP(route, r.Method, sw.code(), time.Since(start))
		})
	}
}
