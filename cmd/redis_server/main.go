// Package main starts an in-memory Redis for local development, so the backup
// mirror and the submission rate limit can run without a real Redis.
//
// Usage:
//
//	go run ./cmd/redis_server -addr 127.0.0.1:6379
//
// Then start the server with BACKUP_DRIVER=redis REDIS_ADDR=127.0.0.1:6379.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/logger"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:6379", "Address to listen on")
	flag.Parse()

	log := logger.Component("redis_server")

	s := miniredis.NewMiniRedis()
	if err := s.StartAddr(*addr); err != nil {
		log.Fatal().Err(err).Msg("Failed to start miniredis")
	}
	defer s.Close()

	log.Info().Str("addr", s.Addr()).Msg("MiniRedis server started")

	// miniredis only expires keys when told time has passed
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			s.FastForward(time.Second)
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("Shutting down MiniRedis...")
			return
		}
	}
}
