package shutdown

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewManager(t *testing.T) {
	t.Run("with custom timeout", func(t *testing.T) {
		sm := NewManager(10*time.Second, zerolog.Nop())
		if sm.timeout != 10*time.Second {
			t.Errorf("expected timeout 10s, got %v", sm.timeout)
		}
	})

	t.Run("with zero timeout uses default", func(t *testing.T) {
		sm := NewManager(0, zerolog.Nop())
		if sm.timeout != 30*time.Second {
			t.Errorf("expected default timeout 30s, got %v", sm.timeout)
		}
	})
}

func TestClosersCalledInReverseOrder(t *testing.T) {
	sm := NewManager(5*time.Second, zerolog.Nop())

	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		sm.Add("closer", func(ctx context.Context) error {
			order = append(order, i)
			return nil
		})
	}

	if err := sm.Shutdown(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 3 || order[0] != 3 || order[1] != 2 || order[2] != 1 {
		t.Errorf("expected reverse order [3 2 1], got %v", order)
	}
}

func TestCloserErrorHandling(t *testing.T) {
	sm := NewManager(5*time.Second, zerolog.Nop())
	boom := errors.New("test error")

	var called atomic.Bool
	sm.Add("first", func(ctx context.Context) error {
		called.Store(true)
		return nil
	})
	sm.Add("second", func(ctx context.Context) error {
		return boom
	})

	err := sm.Shutdown()
	if !errors.Is(err, boom) {
		t.Errorf("expected joined error to contain boom, got %v", err)
	}
	if !called.Load() {
		t.Error("expected first closer to be called despite the error")
	}
}

func TestClosersShareDeadline(t *testing.T) {
	sm := NewManager(50*time.Millisecond, zerolog.Nop())
	sm.Add("slow", func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected a deadline on the shutdown context")
		}
		<-ctx.Done()
		return ctx.Err()
	})

	if err := sm.Shutdown(); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestWaitReturnsOnContextDone(t *testing.T) {
	sm := NewManager(time.Second, zerolog.Nop())
	var closed atomic.Bool
	sm.Add("c", func(ctx context.Context) error {
		closed.Store(true)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sm.Wait(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !closed.Load() {
		t.Error("expected closers to run")
	}
}
