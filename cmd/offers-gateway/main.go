package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	health "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/pribylovaa/go-offers-aggregator/internal/config"
	gwhttp "github.com/pribylovaa/go-offers-aggregator/internal/http"
	"github.com/pribylovaa/go-offers-aggregator/internal/http/handlers"
	"github.com/pribylovaa/go-offers-aggregator/internal/metrics"
	"github.com/pribylovaa/go-offers-aggregator/internal/service"
	"github.com/pribylovaa/go-offers-aggregator/pkg/interceptors"
	"github.com/pribylovaa/go-offers-aggregator/pkg/redact"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	// .env необязателен; переменные окружения процесса имеют приоритет.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("dotenv_load_failed", slog.String("err", err.Error()))
	}

	cfg := config.MustLoad(configPath)

	log, logCloser := setupLogger(cfg.Env, cfg.Log, os.Stdout)
	slog.SetDefault(log)
	log.Info("starting offers-gateway",
		slog.String("env", cfg.Env),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("upstream", redact.URL(cfg.Upstream.BaseURL)),
	)

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	be, err := buildBackends(rootCtx, cfg, log)
	if err != nil {
		log.Error("backends_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	defer func() {
		if cerr := be.Close(); cerr != nil {
			log.Warn("backends_close_failed", slog.String("err", cerr.Error()))
		}
	}()

	m := metrics.New(prometheus.DefaultRegisterer)
	svc := service.New(newUpstream(cfg), be.store, be.limiter, *cfg, service.WithRecorder(m))
	log.Info("service_initialized")

	go svc.StartWarmup(rootCtx)

	apiHandler := gwhttp.NewRouter(svc, gwhttp.Options{
		Logger:          log,
		Timeout:         cfg.Timeouts.Service,
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		Metrics:         m,
		AnonymousPolicy: cfg.RateLimit.AnonymousPolicy,
		RetryAfter:      handlers.DefaultRetryAfter,
	})

	var ready atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if ready.Load() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}

		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})

	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", apiHandler)

	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", httpAddr)
	if err != nil {
		log.Error("http_listen_failed", slog.String("addr", httpAddr), slog.String("err", err.Error()))
		os.Exit(1)
	}

	log.Info("http_listen_start", slog.String("addr", httpAddr))

	serveErrCh := make(chan error, 2)
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
	}()

	// gRPC health-эндпойнт для оркестратора.
	var (
		grpcServer *grpc.Server
		hs         *health.Server
	)
	if cfg.GRPC.Enabled() {
		grpcServer, hs, err = startGRPC(cfg, log, serveErrCh)
		if err != nil {
			log.Error("grpc_listen_failed", slog.String("addr", cfg.GRPC.Addr()), slog.String("err", err.Error()))
			os.Exit(1)
		}
	}

	ready.Store(true)
	log.Info("gateway_ready")

	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		log.Error("serve_failed", slog.String("err", err.Error()))
	}

	ready.Store(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		hs.Shutdown()
		stopGRPC(shutdownCtx, grpcServer, log)
	}

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_incomplete", slog.String("err", err.Error()))
	} else {
		log.Info("http_stopped")
	}

	log.Info("service_stopped")
	_ = logCloser.Close()
}

// startGRPC поднимает gRPC-сервер с health и интерсепторами. Ошибки Serve
// уходят в errCh.
func startGRPC(cfg *config.Config, log *slog.Logger, errCh chan<- error) (*grpc.Server, *health.Server, error) {
	grpc_prometheus.EnableHandlingTimeHistogram()

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptors.Recover(log),
			interceptors.Logging(log),
			interceptors.WithTimeout(cfg.Timeouts.Service),
			grpc_prometheus.UnaryServerInterceptor,
		),
		grpc.ChainStreamInterceptor(
			grpc_prometheus.StreamServerInterceptor,
		),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	// Рефлексия — только в local/dev.
	if cfg.Env == envLocal || cfg.Env == envDev {
		reflection.Register(srv)
	}

	addr := cfg.GRPC.Addr()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	log.Info("grpc_listen_start", slog.String("addr", addr))

	grpc_prometheus.Register(srv)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
	}()

	return srv, hs, nil
}

// stopGRPC — GracefulStop с принудительной остановкой по ctx.
func stopGRPC(ctx context.Context, srv *grpc.Server, log *slog.Logger) {
	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc_stopped")
	case <-ctx.Done():
		log.Warn("grpc_force_stop")
		srv.Stop()
	}
}
