package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"rollbook/internal/config"
	"rollbook/internal/metrics"
	"rollbook/internal/queue"
	"rollbook/internal/record"
	"rollbook/internal/store"
	"rollbook/internal/summary"
)

// Worker consumes attendance-change notices and refreshes cached daily
// summaries so dashboard reads never compute rollups inline.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)
	records := record.NewRedisStore(redisClient.Client)
	summaries := summary.NewCache(redisClient.Client)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "rollbook:attendance")
	}

	notices, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for notices...")
	for n := range notices {
		class := record.Class{Grade: n.Grade, Name: n.Class}
		log.Printf("refreshing summary for %s %s", class.Key(), n.Date)

		day, err := records.Day(ctx, class, n.Date)
		if err != nil {
			log.Printf("load day %s %s failed: %v", class.Key(), n.Date, err)
			continue
		}

		if err := summaries.Put(ctx, class, summary.Compute(n.Date, day)); err != nil {
			log.Printf("cache summary %s %s failed: %v", class.Key(), n.Date, err)
			continue
		}
		metrics.SummaryRefreshes.Inc()
	}

	log.Println("worker stopped")
}
