package main

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pribylovaa/go-offers-aggregator/internal/config"
)

// Константы для определения окружения.
const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// setupLogger настраивает slog по окружению. Если задан log.file,
// записи дублируются в файл с ротацией; возвращаемый io.Closer закрывает его.
func setupLogger(env string, lc config.LogConfig, stdout io.Writer) (*slog.Logger, io.Closer) {
	out := stdout
	var closer io.Closer = nopCloser{}

	if lc.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   lc.File,
			MaxSize:    lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAge:     lc.MaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(stdout, rotator)
		closer = rotator
	}

	switch env {
	case envDev:
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug})), closer
	case envProd:
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo})), closer
	default:
		return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug})), closer
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
