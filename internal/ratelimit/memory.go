package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory — лимитер в памяти процесса. Отметки каждого ключа хранятся
// по возрастанию; ключи без активности удаляются janitor'ом.
type Memory struct {
	mu           sync.Mutex
	windows      map[string][]time.Time
	opts         Options
	cleanupEvery time.Duration
	now          func() time.Time
}

// MemoryOption настраивает Memory.
type MemoryOption func(*Memory)

// WithCleanupEvery задаёт период janitor'а; 0 — janitor не запускается.
func WithCleanupEvery(d time.Duration) MemoryOption {
	return func(m *Memory) { m.cleanupEvery = d }
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory создаёт лимитер с окном opts.Window и потолком opts.Requests.
func NewMemory(opts Options, options ...MemoryOption) *Memory {
	m := &Memory{
		windows:      make(map[string][]time.Time),
		opts:         opts,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}

	for _, o := range options {
		o(m)
	}

	return m
}

// Admit проверяет и, при допуске, фиксирует запрос. Отклонённый запрос
// в окно не записывается.
func (m *Memory) Admit(_ context.Context, key string) Decision {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	ts := prune(m.windows[key], now.Add(-m.opts.Window))

	var oldest time.Time
	if len(ts) > 0 {
		oldest = ts[0]
	}

	d, ok := decide(m.opts, now, len(ts), oldest)
	if ok {
		ts = append(ts, now)
	}

	if len(ts) == 0 {
		delete(m.windows, key)
	} else {
		m.windows[key] = ts
	}

	return d
}

// Cleanup удаляет ключи, у которых не осталось отметок внутри окна.
func (m *Memory) Cleanup() {
	cutoff := m.now().Add(-m.opts.Window)

	m.mu.Lock()
	defer m.mu.Unlock()

	for k, ts := range m.windows {
		ts = prune(ts, cutoff)
		if len(ts) == 0 {
			delete(m.windows, k)
			continue
		}
		m.windows[k] = ts
	}
}

// Len — число отслеживаемых ключей.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.windows)
}

// StartJanitor запускает периодическую очистку. Останавливается по ctx.
func (m *Memory) StartJanitor(ctx context.Context) {
	if m.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(m.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.Cleanup()
			}
		}
	}()
}

// prune отбрасывает отметки не позже cutoff. Срез отсортирован по возрастанию.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}

	if i == 0 {
		return ts
	}

	return append(ts[:0:0], ts[i:]...)
}
