package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pribylovaa/go-offers-aggregator/internal/config"
	apierrors "github.com/pribylovaa/go-offers-aggregator/internal/errors"
	"github.com/pribylovaa/go-offers-aggregator/internal/models"
	"github.com/pribylovaa/go-offers-aggregator/internal/query"
	"github.com/pribylovaa/go-offers-aggregator/internal/ratelimit"
	"github.com/pribylovaa/go-offers-aggregator/internal/service"
)

// maxBodyBytes — потолок тела POST-запроса.
const maxBodyBytes = 1 << 20

// DefaultRetryAfter — подсказка клиенту для 429 и 503.
const DefaultRetryAfter = 60 * time.Second

// OffersService — то, что хендлерам нужно от сервисного слоя.
type OffersService interface {
	Offers(ctx context.Context, c models.Category, clientKey string) (*service.Result, error)
	Query(ctx context.Context, c models.Category, clientKey string, req query.Request) (*service.QueryResult, error)
	Stats(ctx context.Context, c models.Category, clientKey string) (*service.StatsResult, error)
}

// Handlers агрегирует зависимости REST-слоя.
type Handlers struct {
	Service OffersService
	// AnonymousPolicy — config.AnonymousShared или config.AnonymousRemoteAddr.
	AnonymousPolicy string
	RetryAfter      time.Duration
}

func New(svc OffersService, anonymousPolicy string, retryAfter time.Duration) *Handlers {
	if anonymousPolicy == "" {
		anonymousPolicy = config.AnonymousShared
	}
	if retryAfter <= 0 {
		retryAfter = DefaultRetryAfter
	}

	return &Handlers{
		Service:         svc,
		AnonymousPolicy: anonymousPolicy,
		RetryAfter:      retryAfter,
	}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля и хвосты
// после объекта. Пустое тело допустимо и означает запрос по умолчанию.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(value); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.Join(apierrors.ErrInvalidBody, err)
	}

	if dec.More() {
		return apierrors.ErrInvalidBody
	}

	return nil
}

// clientKey определяет ключ лимитера: первый адрес X-Forwarded-For,
// затем X-Real-IP, иначе — по AnonymousPolicy.
func (h *Handlers) clientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	if h.AnonymousPolicy == config.AnonymousRemoteAddr && r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}

	return ratelimit.AnonymousKey
}

// setRateLimitHeaders — X-RateLimit-*; Reset в миллисекундах Unix.
// Выключенный лимитер (Limit == 0) заголовков не даёт.
func setRateLimitHeaders(w http.ResponseWriter, d ratelimit.Decision) {
	if d.Limit <= 0 {
		return
	}

	hdr := w.Header()
	hdr.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	hdr.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if !d.ResetAt.IsZero() {
		hdr.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.UnixMilli(), 10))
	}
}

// writeServiceError дополняет ответ об ошибке заголовками повтора
// и делегирует тело apierrors.WriteError.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	retry := strconv.Itoa(int(h.RetryAfter / time.Second))

	var rl *service.RateLimitError
	switch {
	case errors.As(err, &rl):
		w.Header().Set("Retry-After", retry)
		d := rl.Decision
		d.Remaining = 0
		setRateLimitHeaders(w, d)
	case errors.Is(err, service.ErrUnavailable):
		w.Header().Set("Retry-After", retry)
	}

	apierrors.WriteError(w, r, err)
}
