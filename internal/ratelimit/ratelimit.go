// Package ratelimit реализует скользящее окно запросов на клиента.
//
// Лимитер никогда не возвращает ошибку вызывающему: отказ хранилища
// трактуется как допуск (fail-open) и только логируется.
package ratelimit

import (
	"context"
	"time"
)

// AnonymousKey — общий bucket для клиентов без определяемого адреса.
const AnonymousKey = "anonymous"

// Decision — результат проверки лимита для одного запроса.
type Decision struct {
	Allowed bool
	// Limit — потолок запросов в окне.
	Limit int
	// Remaining — сколько запросов ещё допустимо в текущем окне.
	Remaining int
	// ResetAt — момент, когда самая старая отметка покинет окно.
	ResetAt time.Time
}

// RetryAfter возвращает паузу до освобождения слота, не меньше секунды.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait < time.Second {
		return time.Second
	}

	return wait.Round(time.Second)
}

// Limiter — контракт допуска запроса по ключу клиента.
type Limiter interface {
	Admit(ctx context.Context, key string) Decision
}

// Options — параметры окна.
type Options struct {
	Requests int
	Window   time.Duration
}

// Unlimited — лимитер для выключенного ограничения: допускает всё.
type Unlimited struct{}

func (Unlimited) Admit(_ context.Context, _ string) Decision {
	return Decision{Allowed: true, Limit: 0, Remaining: 0}
}

// decide — общая арифметика окна: count — число отметок после очистки,
// oldest — самая старая из оставшихся (нулевая, если окно пусто).
func decide(o Options, now time.Time, count int, oldest time.Time) (Decision, bool) {
	d := Decision{Limit: o.Requests}

	if count >= o.Requests {
		d.ResetAt = oldest.Add(o.Window)
		return d, false
	}

	d.Allowed = true
	d.Remaining = o.Requests - count - 1
	if oldest.IsZero() {
		d.ResetAt = now.Add(o.Window)
	} else {
		d.ResetAt = oldest.Add(o.Window)
	}

	return d, true
}
