package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/config"
	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/queue"
	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/storage"
)

func TestQueueConfig(t *testing.T) {
	cfg := config.Default().Queue
	cfg.MaxAttempts = 4
	cfg.MaxStorageRetries = 2
	cfg.RetryOrder = "tail"

	qcfg, err := queueConfig(cfg)
	if err != nil {
		t.Fatalf("queueConfig failed: %v", err)
	}
	if qcfg.MaxAttempts != 4 || qcfg.Retry.MaxAttempts != 2 {
		t.Errorf("unexpected attempts: outer=%d inner=%d", qcfg.MaxAttempts, qcfg.Retry.MaxAttempts)
	}
	if qcfg.RetryOrder != queue.RetryAtTail {
		t.Errorf("expected RetryAtTail, got %v", qcfg.RetryOrder)
	}
	if qcfg.Retry.BackoffBase != 50*time.Millisecond || qcfg.HealthyThreshold != 50 {
		t.Errorf("unexpected defaults carried over: %+v", qcfg)
	}

	cfg.RetryOrder = "sideways"
	if _, err := queueConfig(cfg); err == nil {
		t.Error("expected an error for an unknown retry order")
	}
}

func TestBuildStorage(t *testing.T) {
	st, err := buildStorage(context.Background(), config.StorageConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("buildStorage failed: %v", err)
	}
	if _, ok := st.(*storage.Memory); !ok {
		t.Errorf("expected *storage.Memory, got %T", st)
	}

	if _, err := buildStorage(context.Background(), config.StorageConfig{Driver: "sqlite"}); err == nil {
		t.Error("expected an error for an unknown driver")
	}
}

func TestBuildBackup(t *testing.T) {
	sink, err := buildBackup(context.Background(), config.BackupConfig{Driver: "none"})
	if err != nil || sink != nil {
		t.Fatalf("expected no sink, got %v / %v", sink, err)
	}

	s := miniredis.RunT(t)
	sink, err = buildBackup(context.Background(), config.BackupConfig{Driver: "redis", RedisAddr: s.Addr()})
	if err != nil {
		t.Fatalf("buildBackup failed: %v", err)
	}
	defer sink.Close()
	if err := sink.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewMaintenance(t *testing.T) {
	q := queue.New(storage.NewMemory(), nil, queue.DefaultConfig())

	m, err := newMaintenance(q, config.MaintenanceConfig{MetricsSpec: "@every 5s", HistoryClearSpec: "@daily"})
	if err != nil {
		t.Fatalf("newMaintenance failed: %v", err)
	}
	if len(m.Entries()) != 2 {
		t.Errorf("expected 2 jobs, got %d", len(m.Entries()))
	}

	if _, err := newMaintenance(q, config.MaintenanceConfig{MetricsSpec: "every now and then"}); err == nil {
		t.Error("expected an error for an invalid spec")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s := miniredis.RunT(t)

	cfg := config.Default()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.ShutdownTimeout = 5 * time.Second
	cfg.Backup.Driver = "redis"
	cfg.Backup.RedisAddr = s.Addr()
	cfg.RateLimit.Enabled = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
