// Package backup mirrors persisted work reports into Redis.
// The mirror is a secondary copy for operators; the primary store stays authoritative.
//
// Key layout:
//   - report:{id}: the record as JSON
//   - {list key}: record ids in completion order, trimmed to the newest MaxEntries
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/reports"
)

// Options configures a RedisSink.
type Options struct {
	Addr       string // host:port
	ListKey    string // Mirror list (default: "reports:mirror")
	MaxEntries int64  // Ids kept in the mirror list (default: 1000)
}

// RedisSink writes completed records to Redis. It implements queue.BackupSink.
type RedisSink struct {
	rdb        *redis.Client
	listKey    string
	maxEntries int64
}

// NewRedisSink creates a sink connected to opts.Addr.
func NewRedisSink(opts Options) *RedisSink {
	return NewRedisSinkFromClient(redis.NewClient(&redis.Options{Addr: opts.Addr}), opts)
}

// NewRedisSinkFromClient wraps an existing client. opts.Addr is ignored.
func NewRedisSinkFromClient(rdb *redis.Client, opts Options) *RedisSink {
	if opts.ListKey == "" {
		opts.ListKey = "reports:mirror"
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 1000
	}
	return &RedisSink{
		rdb:        rdb,
		listKey:    opts.ListKey,
		maxEntries: opts.MaxEntries,
	}
}

// Client exposes the underlying Redis client so other components can share it.
func (s *RedisSink) Client() *redis.Client {
	return s.rdb
}

func recordKey(id string) string {
	return fmt.Sprintf("report:%s", id)
}

// Mirror stores rec and appends its id to the mirror list in one transaction.
func (s *RedisSink) Mirror(ctx context.Context, rec reports.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, recordKey(rec.ID), data, 0)
	pipe.RPush(ctx, s.listKey, rec.ID)
	// Keep the newest entries (tail)
	pipe.LTrim(ctx, s.listKey, -s.maxEntries, -1)
	_, err = pipe.Exec(ctx)
	return err
}

// Get returns the mirrored record with the given id, or reports.ErrNotFound.
func (s *RedisSink) Get(ctx context.Context, id string) (*reports.Record, error) {
	data, err := s.rdb.Get(ctx, recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: mirrored report %s", reports.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var rec reports.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Recent returns up to n mirrored records, newest first.
// Ids whose record key has gone missing are skipped.
func (s *RedisSink) Recent(ctx context.Context, n int64) ([]reports.Record, error) {
	if n <= 0 {
		return nil, nil
	}
	ids, err := s.rdb.LRange(ctx, s.listKey, -n, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]reports.Record, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		rec, err := s.Get(ctx, ids[i])
		if errors.Is(err, reports.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

// Len returns the length of the mirror list.
func (s *RedisSink) Len(ctx context.Context) (int64, error) {
	return s.rdb.LLen(ctx, s.listKey).Result()
}

// Ping checks connectivity.
func (s *RedisSink) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *RedisSink) Close() error {
	return s.rdb.Close()
}
