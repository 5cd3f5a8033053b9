package cache

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

	"github.com/pribylovaa/go-offers-aggregator/internal/models"
)

// Интеграционные тесты Redis-кэша (redis:7-alpine через testcontainers-go).
//
// Запуск локально:
//   GO_TEST_INTEGRATION=1 go test ./internal/cache -v -race -count=1

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

func TestRedis_GetPut(t *testing.T) {
	rdb := startRedis(t)
	ctx := context.Background()
	s := NewRedis(rdb, "test:", 0)

	_, ok, err := s.Get(ctx, models.CategoryBox)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Put(ctx, models.CategoryBox, payload(3), t0))

	e, ok, err := s.Get(ctx, models.CategoryBox)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, t0.Equal(e.FetchedAt))
	require.Len(t, e.Payload.Commercial.Offers, 3)
	require.JSONEq(t, string(models.EmptyFilters(models.CategoryBox, 3)), string(e.Payload.Commercial.Filters))

	// Без retention ключ бессрочный.
	ttl, err := rdb.TTL(ctx, "test:box-offers").Result()
	require.NoError(t, err)
	require.Equal(t, time.Duration(-1), ttl)
}

func TestRedis_MonotonicAndRetention(t *testing.T) {
	rdb := startRedis(t)
	ctx := context.Background()
	s := NewRedis(rdb, "", time.Hour)

	require.NoError(t, s.Put(ctx, models.CategoryMobile, payload(2), t0.Add(time.Minute)))
	require.NoError(t, s.Put(ctx, models.CategoryMobile, payload(7), t0))

	e, ok, err := s.Get(ctx, models.CategoryMobile)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, e.Payload.Commercial.Offers, 2)

	ttl, err := rdb.TTL(ctx, "offers:mobile-offers").Result()
	require.NoError(t, err)
	require.Greater(t, ttl, 59*time.Minute)
}

func TestRedis_CorruptedValue(t *testing.T) {
	rdb := startRedis(t)
	ctx := context.Background()
	s := NewRedis(rdb, "test:", 0)

	require.NoError(t, rdb.Set(ctx, "test:mobile-offers", "{broken", 0).Err())

	_, _, err := s.Get(ctx, models.CategoryMobile)
	require.Error(t, err)

	// Повреждённое значение перезаписывается следующей удачной выборкой.
	require.NoError(t, s.Put(ctx, models.CategoryMobile, payload(1), t0))
	_, ok, err := s.Get(ctx, models.CategoryMobile)
	require.NoError(t, err)
	require.True(t, ok)
}
