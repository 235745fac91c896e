package queue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/reports"
)

// BackupSink is a secondary, non-authoritative copy of persisted reports.
type BackupSink interface {
	Mirror(ctx context.Context, rec reports.Record) error
}

// BackupSinkFunc adapts a function to BackupSink.
type BackupSinkFunc func(ctx context.Context, rec reports.Record) error

func (f BackupSinkFunc) Mirror(ctx context.Context, rec reports.Record) error {
	return f(ctx, rec)
}

const defaultBackupTimeout = 10 * time.Second

// BackupNotifier mirrors completed records to a BackupSink in the background.
// Errors and panics from the sink are logged and dropped.
type BackupNotifier struct {
	sink    BackupSink
	timeout time.Duration
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewBackupNotifier creates a notifier. A zero timeout means 10s.
func NewBackupNotifier(sink BackupSink, timeout time.Duration, log zerolog.Logger) *BackupNotifier {
	if timeout <= 0 {
		timeout = defaultBackupTimeout
	}
	return &BackupNotifier{
		sink:    sink,
		timeout: timeout,
		log:     log.With().Str("component", "backup").Logger(),
	}
}

// Notify starts a detached mirror of rec and returns immediately.
func (n *BackupNotifier) Notify(rec reports.Record) {
	if n == nil || n.sink == nil {
		return
	}
	n.wg.Add(1)
	go n.mirror(rec)
}

func (n *BackupNotifier) mirror(rec reports.Record) {
	defer n.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			backupMirrors.WithLabelValues("error").Inc()
			n.log.Error().
				Str("record_id", rec.ID).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("backup sink panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	if err := n.sink.Mirror(ctx, rec); err != nil {
		backupMirrors.WithLabelValues("error").Inc()
		n.log.Warn().Err(err).Str("record_id", rec.ID).Str("natural_key", rec.Key().String()).Msg("backup mirror failed")
		return
	}
	backupMirrors.WithLabelValues("success").Inc()
	n.log.Debug().Str("record_id", rec.ID).Msg("record mirrored to backup sink")
}

// Wait blocks until in-flight mirrors finish or ctx is done.
func (n *BackupNotifier) Wait(ctx context.Context) error {
	if n == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
