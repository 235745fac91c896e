// Package main is a load generator for the submission server. It submits many
// work reports concurrently, waits for every one to resolve, and prints
// throughput plus the completed/failed split.
//
// Usage:
//
//	go run ./benchmark -reports 1000 -concurrency 20 -duplicates
//
// With -duplicates every report is submitted twice, so exactly half should fail.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/client"
	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/queue"
	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/reports"
)

// Result summarizes one benchmark run.
type Result struct {
	Submitted  int64
	Completed  int64
	Failed     int64
	Duplicates int64
	Unresolved int64
	SubmitTime time.Duration
	TotalTime  time.Duration
}

// Options configures a run.
type Options struct {
	Reports     int
	Concurrency int
	Duplicates  bool
	RunID       string
}

func main() {
	baseURL := flag.String("url", "http://localhost:8081", "Submission server URL")
	apiKey := flag.String("api-key", os.Getenv("API_KEY"), "API key")
	numReports := flag.Int("reports", 1000, "Number of distinct reports to submit")
	concurrency := flag.Int("concurrency", 10, "Number of concurrent submitters")
	duplicates := flag.Bool("duplicates", false, "Submit every report twice")
	pollInterval := flag.Duration("poll-interval", 200*time.Millisecond, "Status poll interval")
	pollAttempts := flag.Int("poll-attempts", 3000, "Status polls per report before giving up")
	flag.Parse()

	poller := &client.Poller{
		Client:      client.New(*baseURL, *apiKey),
		Interval:    *pollInterval,
		MaxAttempts: *pollAttempts,
	}

	fmt.Printf("Work Report Queue Benchmark\n")
	fmt.Printf("===========================\n")
	fmt.Printf("Reports: %d (duplicates: %v)\n", *numReports, *duplicates)
	fmt.Printf("Concurrent submitters: %d\n\n", *concurrency)

	res, err := Run(context.Background(), poller, Options{
		Reports:     *numReports,
		Concurrency: *concurrency,
		Duplicates:  *duplicates,
		RunID:       time.Now().Format("150405"),
	})
	if err != nil {
		fmt.Printf("Benchmark failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Submitted %d reports in %s\n", res.Submitted, res.SubmitTime)
	fmt.Printf("  Throughput: %.2f submissions/sec\n\n", float64(res.Submitted)/res.SubmitTime.Seconds())
	fmt.Printf("✓ Resolved in %s\n", res.TotalTime)
	fmt.Printf("  Completed: %d\n", res.Completed)
	fmt.Printf("  Failed: %d (duplicates: %d)\n", res.Failed, res.Duplicates)
	if res.Unresolved > 0 {
		fmt.Printf("  Unresolved: %d\n", res.Unresolved)
	}
	fmt.Printf("Overall throughput: %.2f reports/sec\n", float64(res.Completed+res.Failed)/res.TotalTime.Seconds())
}

// Run submits the reports, then polls every id until it resolves.
func Run(ctx context.Context, poller *client.Poller, opts Options) (Result, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	copies := 1
	if opts.Duplicates {
		copies = 2
	}

	start := time.Now()
	ids := make([]string, opts.Reports*copies)
	var res Result

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i := range ids {
		i := i
		g.Go(func() error {
			p := reports.Payload{
				EmployeeID:  fmt.Sprintf("bench-%s-%d", opts.RunID, i%opts.Reports),
				Date:        "2024-01-01",
				Tasks:       "benchmark submission",
				HoursWorked: 8,
			}
			id, err := poller.Client.Submit(gctx, p)
			if err != nil {
				return fmt.Errorf("submit %d: %w", i, err)
			}
			ids[i] = id
			atomic.AddInt64(&res.Submitted, 1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	res.SubmitTime = time.Since(start)

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			resp, err := poller.Wait(gctx, id)
			switch {
			case err != nil:
				atomic.AddInt64(&res.Unresolved, 1)
			case resp.Status == queue.StatusCompleted:
				atomic.AddInt64(&res.Completed, 1)
			case resp.Status == queue.StatusFailed:
				atomic.AddInt64(&res.Failed, 1)
				if strings.Contains(resp.Error, "already exists") {
					atomic.AddInt64(&res.Duplicates, 1)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	res.TotalTime = time.Since(start)
	return res, nil
}
