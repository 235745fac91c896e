package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/reports"
)

func payload(employee, date string) reports.Payload {
	return reports.Payload{EmployeeID: employee, Date: date, Tasks: "on-call", HoursWorked: 6}
}

func TestMemory_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	rec, err := m.FindByNaturalKey(ctx, "E1", "2024-01-01")
	require.NoError(t, err)
	assert.Nil(t, rec, "missing key returns nil, nil")

	created, err := m.Create(ctx, payload("E1", "2024-01-01"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	found, err := m.FindByNaturalKey(ctx, "E1", "2024-01-01")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	other, err := m.FindByNaturalKey(ctx, "E1", "2024-01-02")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestMemory_UniqueNaturalKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Create(ctx, payload("E1", "2024-01-01"))
	require.NoError(t, err)

	_, err = m.Create(ctx, payload("E1", "2024-01-01"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, reports.ErrDuplicate))
	assert.Equal(t, 1, m.Len())
}

func TestMemory_ConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Create(ctx, payload("E1", "2024-01-01")); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Len(t, m.List(), 1)
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMemory()

	_, err := m.Create(ctx, payload("E1", "2024-01-01"))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = m.FindByNaturalKey(ctx, "E1", "2024-01-01")
	assert.ErrorIs(t, err, context.Canceled)
}
