package cache

import (
	"context"
	"sync"
	"time"

	"github.com/pribylovaa/go-offers-aggregator/internal/models"
)

// Memory — кэш в памяти процесса.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemory создаёт пустой кэш.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*Entry)}
}

// Get возвращает запись категории; ok == false, если её нет.
func (m *Memory) Get(_ context.Context, c models.Category) (*Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[c.CacheKey()]
	return e, ok, nil
}

// Put сохраняет выдачу, если fetchedAt не старше текущей записи.
func (m *Memory) Put(_ context.Context, c models.Category, p *models.Payload, fetchedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := c.CacheKey()
	if cur, ok := m.entries[key]; ok && fetchedAt.Before(cur.FetchedAt) {
		return nil
	}

	m.entries[key] = &Entry{Payload: p, FetchedAt: fetchedAt}
	return nil
}
