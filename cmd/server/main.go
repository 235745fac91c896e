// Package main runs the work-report submission server.
//
// It wires the submission queue to its storage and backup mirror, serves the
// submission API and Prometheus metrics, and drains the queue on SIGINT/SIGTERM.
//
// Usage:
//
//	go run ./cmd/server -config config.yaml
//
// By default the API listens on :8081, metrics on :8080, and reports are kept in memory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/api"
	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/backup"
	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/config"
	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/logger"
	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/queue"
	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/ratelimit"
	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/shutdown"
	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/storage"
	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/tracing"
)

// store is what the server needs from a storage driver.
type store interface {
	queue.Storage
	Close()
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger.Configure(cfg.LogLevel, cfg.LogFormat)

	if err := run(context.Background(), cfg); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server failed")
	}
}

// run starts every component and blocks until a shutdown signal arrives or ctx is done.
func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Component("server")
	sm := shutdown.NewManager(cfg.ShutdownTimeout, logger.Log)

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.TracerConfig{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: "work-report-queue",
		Environment: "production",
	})
	if err != nil {
		return err
	}
	sm.Add("tracer", tracerShutdown)

	st, err := buildStorage(ctx, cfg.Storage)
	if err != nil {
		_ = sm.Shutdown()
		return err
	}
	sm.Add("storage", func(context.Context) error {
		st.Close()
		return nil
	})

	sink, err := buildBackup(ctx, cfg.Backup)
	if err != nil {
		_ = sm.Shutdown()
		return err
	}
	var notifier *queue.BackupNotifier
	if sink != nil {
		notifier = queue.NewBackupNotifier(sink, cfg.Backup.Timeout, logger.Log)
		sm.Add("backup", func(context.Context) error { return sink.Close() })
	}

	qcfg, err := queueConfig(cfg.Queue)
	if err != nil {
		_ = sm.Shutdown()
		return err
	}
	q := queue.New(st, notifier, qcfg)
	// Detached from ctx; the queue stops in Shutdown after draining.
	q.Start(context.Background())
	sm.Add("queue", q.Shutdown)

	maint, err := newMaintenance(q, cfg.Maintenance)
	if err != nil {
		_ = sm.Shutdown()
		return err
	}
	maint.Start()
	sm.Add("maintenance", maint.Stop)

	var limiter api.Limiter
	if cfg.RateLimit.Enabled {
		var rdb *redis.Client
		if sink != nil {
			rdb = sink.Client()
		} else {
			rdb = redis.NewClient(&redis.Options{Addr: cfg.Backup.RedisAddr})
			sm.Add("ratelimit", func(context.Context) error { return rdb.Close() })
		}
		limiter = ratelimit.New(rdb, cfg.RateLimit.Rate, cfg.RateLimit.Burst)
		log.Info().Float64("rate", cfg.RateLimit.Rate).Int("burst", cfg.RateLimit.Burst).Msg("Submission rate limit enabled")
	}

	if cfg.APIKey == "" {
		log.Warn().Msg("API_KEY not set. Authentication disabled.")
	} else {
		log.Info().Msg("API Authentication enabled.")
	}

	router := api.NewRouter(q, api.Options{
		APIKey:     cfg.APIKey,
		Limiter:    limiter,
		TrustProxy: cfg.RateLimit.TrustProxy,
		Logger:     logger.Log,
	})
	apiSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsSrv := newMetricsServer(cfg.MetricsAddr)
	sm.Add("api", apiSrv.Shutdown)
	sm.Add("metrics", metricsSrv.Shutdown)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.ListenAddr).Msg("API server listening")
		return serve(apiSrv)
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("Metrics server listening")
		return serve(metricsSrv)
	})
	g.Go(func() error {
		return sm.Wait(gctx)
	})
	return g.Wait()
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server on %s failed: %w", srv.Addr, err)
	}
	return nil
}

func newMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
}

func buildStorage(ctx context.Context, cfg config.StorageConfig) (store, error) {
	switch cfg.Driver {
	case "postgres":
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		pg, err := storage.NewPostgres(connectCtx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(connectCtx); err != nil {
			pg.Close()
			return nil, err
		}
		logger.Log.Info().Msg("Using postgres storage")
		return pg, nil
	case "memory", "":
		logger.Log.Warn().Msg("Using in-memory storage. Reports are lost on restart.")
		return storage.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// buildBackup returns nil when no backup mirror is configured.
func buildBackup(ctx context.Context, cfg config.BackupConfig) (*backup.RedisSink, error) {
	switch cfg.Driver {
	case "redis":
		sink := backup.NewRedisSink(backup.Options{
			Addr:       cfg.RedisAddr,
			ListKey:    cfg.ListKey,
			MaxEntries: cfg.MaxEntries,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := sink.Ping(pingCtx); err != nil {
			logger.Log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Backup redis not reachable")
		}
		return sink, nil
	case "none", "":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown backup driver %q", cfg.Driver)
}

func queueConfig(cfg config.QueueConfig) (queue.Config, error) {
	order, err := queue.ParseRetryOrder(cfg.RetryOrder)
	if err != nil {
		return queue.Config{}, err
	}

	qcfg := queue.DefaultConfig()
	qcfg.MaxAttempts = cfg.MaxAttempts
	qcfg.Retry.MaxAttempts = cfg.MaxStorageRetries
	qcfg.Retry.BackoffBase = cfg.BackoffBase
	qcfg.InterItemDelay = cfg.InterItemDelay
	qcfg.HistoryLimit = cfg.HistoryLimit
	qcfg.DurationWindow = cfg.DurationWindow
	qcfg.HealthyThreshold = cfg.HealthyThreshold
	qcfg.RetryOrder = order
	return qcfg, nil
}

func newMaintenance(q *queue.Queue, cfg config.MaintenanceConfig) (*queue.Maintenance, error) {
	m := queue.NewMaintenance(q, logger.Log)
	if cfg.MetricsSpec != "" {
		if _, err := m.ScheduleMetrics(cfg.MetricsSpec); err != nil {
			return nil, fmt.Errorf("invalid maintenance.metrics_spec: %w", err)
		}
	}
	if cfg.HistoryClearSpec != "" {
		if _, err := m.ScheduleHistoryClear(cfg.HistoryClearSpec); err != nil {
			return nil, fmt.Errorf("invalid maintenance.history_clear_spec: %w", err)
		}
	}
	return m, nil
}
