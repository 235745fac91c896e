package backup

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/reports"
)

func setupTestRedis(t *testing.T, opts Options) (*miniredis.Miniredis, *RedisSink) {
	t.Helper()
	s := miniredis.RunT(t)
	opts.Addr = s.Addr()
	sink := NewRedisSink(opts)
	t.Cleanup(func() { sink.Close() })
	return s, sink
}

func record(id string) reports.Record {
	return reports.Record{
		ID: id,
		Payload: reports.Payload{
			EmployeeID: "E1",
			Date:       "2024-01-01",
			Tasks:      "migrated billing jobs",
		},
		CreatedAt: time.Date(2024, 1, 1, 17, 0, 0, 0, time.UTC),
	}
}

func TestMirror(t *testing.T) {
	s, sink := setupTestRedis(t, Options{})
	ctx := context.Background()

	if err := sink.Mirror(ctx, record("r1")); err != nil {
		t.Fatalf("Mirror failed: %v", err)
	}

	if !s.Exists("report:r1") {
		t.Error("expected report:r1 key")
	}
	list, err := s.List("reports:mirror")
	if err != nil {
		t.Fatalf("mirror list missing: %v", err)
	}
	if len(list) != 1 || list[0] != "r1" {
		t.Errorf("unexpected mirror list: %v", list)
	}

	got, err := sink.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.EmployeeID != "E1" || got.Tasks != "migrated billing jobs" {
		t.Errorf("unexpected record: %+v", got)
	}
}

func TestMirror_TrimsToMaxEntries(t *testing.T) {
	_, sink := setupTestRedis(t, Options{ListKey: "mirror", MaxEntries: 3})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := sink.Mirror(ctx, record(fmt.Sprintf("r%d", i))); err != nil {
			t.Fatalf("Mirror %d failed: %v", i, err)
		}
	}

	n, err := sink.Len(ctx)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 entries after trim, got %d", n)
	}

	recent, err := sink.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 3 || recent[0].ID != "r4" || recent[2].ID != "r2" {
		t.Errorf("unexpected recent records: %+v", recent)
	}
}

func TestGet_NotFound(t *testing.T) {
	_, sink := setupTestRedis(t, Options{})

	_, err := sink.Get(context.Background(), "missing")
	if !errors.Is(err, reports.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMirror_ServerDown(t *testing.T) {
	s, sink := setupTestRedis(t, Options{})
	s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sink.Mirror(ctx, record("r1")); err == nil {
		t.Error("expected an error when redis is down")
	}
}

func TestNewRedisSinkFromClient(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	sink := NewRedisSinkFromClient(rdb, Options{})
	defer sink.Close()

	if sink.Client() != rdb {
		t.Error("expected the shared client")
	}
	if err := sink.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
