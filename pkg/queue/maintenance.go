package queue

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Maintenance runs periodic housekeeping for a Queue on a cron scheduler.
// Specs accept an optional seconds field and descriptors such as "@every 5s".
type Maintenance struct {
	q    *Queue
	cron *cron.Cron
	log  zerolog.Logger
}

// NewMaintenance creates a stopped scheduler for q.
func NewMaintenance(q *Queue, log zerolog.Logger) *Maintenance {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Maintenance{
		q:    q,
		cron: cron.New(cron.WithParser(parser)),
		log:  log.With().Str("component", "maintenance").Logger(),
	}
}

// ScheduleMetrics refreshes the Prometheus depth gauges on spec.
func (m *Maintenance) ScheduleMetrics(spec string) (cron.EntryID, error) {
	return m.cron.AddFunc(spec, m.q.PublishMetrics)
}

// ScheduleHistoryClear clears terminal history on spec.
func (m *Maintenance) ScheduleHistoryClear(spec string) (cron.EntryID, error) {
	return m.cron.AddFunc(spec, func() {
		n := m.q.ClearHistory()
		m.log.Info().Str("spec", spec).Int("cleared", n).Msg("scheduled history clear ran")
	})
}

// Entries returns the registered jobs.
func (m *Maintenance) Entries() []cron.Entry {
	return m.cron.Entries()
}

// Start runs the scheduler in its own goroutine.
func (m *Maintenance) Start() {
	m.cron.Start()
}

// Stop stops the scheduler and waits for running jobs or ctx.
func (m *Maintenance) Stop(ctx context.Context) error {
	done := m.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
