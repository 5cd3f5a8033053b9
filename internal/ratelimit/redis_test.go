package ratelimit

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Интеграционные тесты Redis-лимитера поднимают redis:7-alpine через testcontainers-go.
//
// Запуск локально:
//   GO_TEST_INTEGRATION=1 go test ./internal/ratelimit -v -race -count=1

// startRedis — поднимает временный Redis и возвращает клиент.
// Если переменная окружения GO_TEST_INTEGRATION не установлена — тест пропускается.
func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, _ := c.Host(ctx)
	port, _ := c.MappedPort(ctx, "6379/tcp")

	rdb := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(ctx).Err())

	return rdb
}

func TestRedis_SlidingWindow(t *testing.T) {
	rdb := startRedis(t)
	ctx := context.Background()

	clk := newClock()
	l := NewRedis(rdb, "test:rl:", Options{Requests: 3, Window: time.Minute})
	l.now = clk.Now

	for i := 0; i < 3; i++ {
		d := l.Admit(ctx, "10.0.0.1")
		require.True(t, d.Allowed, "request %d", i+1)
		require.Equal(t, 3-i-1, d.Remaining)
		clk.Advance(time.Second)
	}

	d := l.Admit(ctx, "10.0.0.1")
	require.False(t, d.Allowed)
	require.Equal(t, time.Date(2025, 1, 1, 12, 1, 0, 0, time.UTC), d.ResetAt.UTC())

	// Отклонённые запросы не пишутся в окно.
	n, err := rdb.ZCard(ctx, "test:rl:10.0.0.1").Result()
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	// Ключ живёт не дольше окна.
	ttl, err := rdb.PTTL(ctx, "test:rl:10.0.0.1").Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
	require.LessOrEqual(t, ttl, time.Minute)

	clk.Advance(time.Minute)
	require.True(t, l.Admit(ctx, "10.0.0.1").Allowed)
}

func TestRedis_FailOpen(t *testing.T) {
	t.Parallel()

	// Клиент к закрытому порту: любая команда вернёт ошибку.
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	l := NewRedis(rdb, "", Options{Requests: 30, Window: time.Minute})
	d := l.Admit(context.Background(), "k")

	require.True(t, d.Allowed)
	require.Equal(t, 30, d.Limit)
	require.Equal(t, 29, d.Remaining)
	require.Equal(t, "offers:rl:k", l.key("k"))
}
