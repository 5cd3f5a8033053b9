// Package cache хранит последнюю удачную нормализованную выдачу по категории.
//
// Запись не удаляется по истечении свежести: устаревшая запись нужна,
// чтобы отдать STALE при недоступности апстрима.
package cache

import (
	"context"
	"time"

	"github.com/pribylovaa/go-offers-aggregator/internal/models"
)

// Entry — снимок выдачи и момент её получения.
type Entry struct {
	Payload   *models.Payload `json:"payload"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// IsFresh — запись свежая, если с момента получения прошло меньше ttl.
func (e *Entry) IsFresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) < ttl
}

// Store — контракт хранилища записей кэша.
type Store interface {
	// Get возвращает запись и признак её наличия.
	Get(ctx context.Context, c models.Category) (*Entry, bool, error)
	// Put заменяет запись целиком. Запись с fetchedAt старше текущей игнорируется.
	Put(ctx context.Context, c models.Category, p *models.Payload, fetchedAt time.Time) error
}
