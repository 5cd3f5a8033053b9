// errors стандартизирует ответы об ошибках HTTP-слоя шлюза.
// На вход он принимает доменную ошибку сервисного слоя,
// а на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей апстрима.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/pribylovaa/go-offers-aggregator/internal/query"
	"github.com/pribylovaa/go-offers-aggregator/internal/service"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// ErrInvalidBody — тело запроса не разобрано (битый JSON, неизвестные поля).
var ErrInvalidBody = stderrors.New("invalid request body")

// APIError — единый формат для фронта.
// Code — короткий стабильный код для машиночитаемой обработки на FE.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует ошибку сервисного слоя в HTTP-статус и ответ для фронта.
//
// Таблица:
//   - service.ErrRateLimited -> 429
//   - service.ErrUnavailable -> 503
//   - service.ErrNoOffers, service.ErrUnknownCategory -> 404
//   - query.ErrInvalidRequest, ErrInvalidBody -> 400
//   - context.Canceled -> 499, context.DeadlineExceeded -> 504
//   - err == nil и прочее -> 500/internal
func ToHTTP(err error) (int, ErrorResponse) {
	httpStatus, code, msg := classify(err)

	return httpStatus, ErrorResponse{
		Error: APIError{
			Code:    code,
			Message: msg,
		},
	}
}

func classify(err error) (int, string, string) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, "internal", "internal error"
	case stderrors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited", "too many requests"
	case stderrors.Is(err, service.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable", "offers temporarily unavailable"
	case stderrors.Is(err, service.ErrNoOffers):
		return http.StatusNotFound, "no_offers", "no offers available"
	case stderrors.Is(err, service.ErrUnknownCategory):
		return http.StatusNotFound, "not_found", "unknown category"
	case stderrors.Is(err, query.ErrInvalidRequest), stderrors.Is(err, ErrInvalidBody):
		return http.StatusBadRequest, "invalid_argument", "invalid request"
	case stderrors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "canceled", "canceled"
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
