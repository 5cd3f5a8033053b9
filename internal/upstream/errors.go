package upstream

import (
	"fmt"
	"net/http"
)

// Kind — класс отказа апстрима.
type Kind int

const (
	// KindStatus — апстрим ответил не-2xx.
	KindStatus Kind = iota + 1
	// KindTimeout — попытка не уложилась в таймаут.
	KindTimeout
	// KindTransport — сеть, DNS, обрыв соединения.
	KindTransport
	// KindMalformed — тело не распознано ни как массив, ни как объект с offres/filtres.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindTimeout:
		return "timeout"
	case KindTransport:
		return "transport"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// UpstreamError описывает неудачную выборку. Status — HTTP-код,
// который шлюз сообщил бы клиенту, если бы не было устаревшего кэша.
type UpstreamError struct {
	Op      string
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (status=%d): %v", e.Op, e.Message, e.Status, e.Err)
	}

	return fmt.Sprintf("%s: %s (status=%d)", e.Op, e.Message, e.Status)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// retryable — стоит ли пробовать резервный адрес после такой ошибки.
func (e *UpstreamError) retryable() bool { return e.Kind != KindMalformed }

func statusError(op string, code int) *UpstreamError {
	return &UpstreamError{
		Op:      op,
		Kind:    KindStatus,
		Status:  code,
		Message: fmt.Sprintf("upstream responded %d %s", code, http.StatusText(code)),
	}
}

func timeoutError(op string, err error) *UpstreamError {
	return &UpstreamError{Op: op, Kind: KindTimeout, Status: http.StatusGatewayTimeout, Message: "upstream timeout", Err: err}
}

func transportError(op string, err error) *UpstreamError {
	return &UpstreamError{Op: op, Kind: KindTransport, Status: http.StatusBadGateway, Message: "upstream unreachable", Err: err}
}

func malformedError(op, msg string) *UpstreamError {
	return &UpstreamError{Op: op, Kind: KindMalformed, Status: http.StatusBadGateway, Message: msg}
}
