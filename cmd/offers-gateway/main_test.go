package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-offers-aggregator/internal/cache"
	"github.com/pribylovaa/go-offers-aggregator/internal/config"
	"github.com/pribylovaa/go-offers-aggregator/internal/ratelimit"
)

func TestSetupLogger_ByEnv(t *testing.T) {
	tcs := []struct {
		env       string
		json      bool
		debugSeen bool
	}{
		{envLocal, false, true},
		{envDev, true, true},
		{envProd, true, false},
		{"unknown", false, true},
	}

	for _, tc := range tcs {
		t.Run(tc.env, func(t *testing.T) {
			var buf bytes.Buffer
			log, closer := setupLogger(tc.env, config.LogConfig{}, &buf)
			defer closer.Close()

			log.Debug("dbg")
			log.Info("info_event")

			out := buf.String()
			require.Contains(t, out, "info_event")
			require.Equal(t, tc.debugSeen, strings.Contains(out, "dbg"))
			require.Equal(t, tc.json, strings.HasPrefix(out, "{"))
		})
	}
}

func TestSetupLogger_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.log")

	var buf bytes.Buffer
	log, closer := setupLogger(envProd, config.LogConfig{File: path, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1}, &buf)
	log.Info("to_both")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "to_both")
	require.Contains(t, buf.String(), "to_both")
}

func TestBuildBackends_Memory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := &config.Config{
		Storage:   config.StorageConfig{Driver: config.DriverMemory},
		RateLimit: config.RateLimitConfig{Enabled: true, Requests: 2, Window: time.Minute},
	}

	log, _ := setupLogger(envProd, config.LogConfig{}, &bytes.Buffer{})
	be, err := buildBackends(ctx, cfg, log)
	require.NoError(t, err)
	defer be.Close()

	require.IsType(t, &cache.Memory{}, be.store)
	require.IsType(t, &ratelimit.Memory{}, be.limiter)
	require.True(t, be.limiter.Admit(ctx, "k").Allowed)
	require.True(t, be.limiter.Admit(ctx, "k").Allowed)
	require.False(t, be.limiter.Admit(ctx, "k").Allowed)

	cfg.RateLimit.Enabled = false
	be, err = buildBackends(ctx, cfg, log)
	require.NoError(t, err)
	require.IsType(t, ratelimit.Unlimited{}, be.limiter)
}

func TestBuildBackends_RedisUnreachable(t *testing.T) {
	cfg := &config.Config{
		Storage: config.StorageConfig{
			Driver: config.DriverRedis,
			Redis:  config.RedisConfig{URL: "redis://127.0.0.1:1/0"},
		},
	}

	log, _ := setupLogger(envProd, config.LogConfig{}, &bytes.Buffer{})
	_, err := buildBackends(context.Background(), cfg, log)
	require.Error(t, err)
}
