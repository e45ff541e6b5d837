package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/vigil/internal/adapters/cache"
	"github.com/okian/vigil/internal/adapters/http/api"
	"github.com/okian/vigil/internal/adapters/http/site"
	"github.com/okian/vigil/internal/adapters/http/swagger"
	"github.com/okian/vigil/internal/adapters/mq/audit"
	"github.com/okian/vigil/internal/adapters/repository"
	"github.com/okian/vigil/internal/adapters/transport"
	"github.com/okian/vigil/internal/adapters/ws"
	service "github.com/okian/vigil/internal/app"
	"github.com/okian/vigil/internal/auth"
	"github.com/okian/vigil/internal/config"
	"github.com/okian/vigil/pkg/clock"
	"github.com/okian/vigil/pkg/logger"
	"github.com/okian/vigil/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
	scoreCacheTTL             = 10 * time.Minute
	ephemeralSecretBytes      = 32
)

func main() {
	// Our own system metrics replace the default Go collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	a, err := build(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "failed to start", logger.Error(err))
		return
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, a.svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("public_url", cfg.PublicURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	a.shutdown(shutdownCtx)

	log.Info(shutdownCtx, "server stopped")
}

// application is the wired process: the HTTP handler and everything it
// owns that needs stopping.
type application struct {
	handler http.Handler
	svc     *service.Service
	hub     *transport.Hub
	store   repository.Store
	scores  cache.Store

	exporter    *audit.Exporter
	stopExports context.CancelFunc

	logger logger.Logger
}

// build wires configuration into a started service and its routes.
func build(ctx context.Context, cfg *config.Config, log logger.Logger) (*application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := repository.New(cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init store: %w", err)
	}

	a := &application{store: store, logger: log}
	opts := []service.Option{
		service.WithLogger(log),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithPublicURL(cfg.PublicURL),
		service.WithMaxSessionDuration(cfg.MaxSessionDuration),
		service.WithReaperSchedule(cfg.ReaperSchedule),
	}

	if cfg.CacheDriver != config.CacheNone {
		scores, err := cache.New(cfg.CacheDriver, cfg.RedisAddr)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("open cache: %w", err)
		}
		a.scores = scores
		opts = append(opts, service.WithScoreCache(cache.NewScoreCache(scores, scoreCacheTTL)))
	}

	if len(cfg.KafkaBrokers) > 0 {
		a.exporter = audit.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, audit.WithLogger(log))
		exportCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		a.stopExports = cancel
		go a.exporter.Run(exportCtx)
		opts = append(opts, service.WithAudit(a.exporter))
	}

	secret := cfg.TokenSecret
	if secret == "" {
		if secret, err = ephemeralSecret(); err != nil {
			a.close()
			return nil, err
		}
		log.Warn(ctx, "token_secret not set; using an ephemeral secret, tokens will not survive a restart")
	}
	signer, err := auth.NewSigner(secret, cfg.TokenTTL, clock.Real())
	if err != nil {
		a.close()
		return nil, fmt.Errorf("token signer: %w", err)
	}
	opts = append(opts, service.WithTokens(signer))

	a.hub = transport.NewHub(transport.WithBuffer(cfg.SubscriberBuffer), transport.WithLogger(log))
	a.svc = service.New(store, a.hub, opts...)
	if err := a.svc.Start(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("start service: %w", err)
	}

	mux := http.NewServeMux()
	wsHandler := ws.NewHandler(signer, a.svc, a.hub, ws.WithLogger(log))
	api.NewServer(a.svc, a.svc, wsHandler).Register(ctx, mux)
	swagger.Register(ctx, mux)
	site.Register(ctx, mux)
	a.handler = mux

	return a, nil
}

// shutdown drains the service before flushing exports and closing stores.
func (a *application) shutdown(ctx context.Context) {
	if a.svc != nil {
		a.svc.Stop(ctx)
	}
	a.close()
	if a.exporter != nil {
		select {
		case <-a.exporter.Done():
		case <-ctx.Done():
			a.logger.Warn(ctx, "audit export did not flush before shutdown deadline")
		}
	}
}

func (a *application) close() {
	if a.stopExports != nil {
		a.stopExports()
	}
	if a.scores != nil {
		_ = a.scores.Close()
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn(context.Background(), "store close failed", logger.Error(err))
	}
}

func ephemeralSecret() (string, error) {
	b := make([]byte, ephemeralSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics. GetStats refreshes
// the session and dedupe gauges itself.
func updateServiceMetrics(ctx context.Context, svc *service.Service) {
	stats := svc.GetStats(ctx)

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}
