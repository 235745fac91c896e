// Package storage holds the authoritative work-report stores used by the
// submission queue: an in-memory store for development and tests, and a
// PostgreSQL store for production.
package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/reports"
)

// Memory is a map-backed store that enforces the natural-key unique constraint.
// It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	records map[reports.Key]reports.Record
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{records: make(map[reports.Key]reports.Record)}
}

// FindByNaturalKey returns nil, nil when no report exists for the key.
func (m *Memory) FindByNaturalKey(ctx context.Context, employeeID, date string) (*reports.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[reports.Key{EmployeeID: employeeID, Date: date}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Create stores a new record. A second create for the same key fails with reports.ErrDuplicate.
func (m *Memory) Create(ctx context.Context, p reports.Payload) (*reports.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := p.Key()
	if _, ok := m.records[key]; ok {
		return nil, reports.DuplicateError(key)
	}
	rec := reports.Record{
		ID:        uuid.New().String(),
		Payload:   p,
		CreatedAt: time.Now().UTC(),
	}
	m.records[key] = rec
	return &rec, nil
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// List returns all records ordered by creation time.
func (m *Memory) List() []reports.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]reports.Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Close is a no-op so Memory can stand in for Postgres.
func (m *Memory) Close() {}
