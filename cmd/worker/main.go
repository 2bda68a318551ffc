package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"statusgate/internal/config"
	"statusgate/internal/queue"
	"statusgate/internal/store"
	"statusgate/internal/worker"
)

func main() {
	log.Println("🚀 Starting statusgate audit worker...")
	config.LoadDotEnv()

	cfg, err := config.LoadWorker(os.Getenv)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	// 1. Initialize Redis
	if err := queue.Init(cfg.RedisAddr); err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	defer queue.Client.Close()
	log.Println("✅ Connected to Redis")

	// 2. Initialize Database
	if err := store.Init(cfg.DBURL); err != nil {
		log.Fatalf("❌ Failed to connect to DB: %v", err)
	}
	defer store.DB.Close()
	log.Println("✅ Connected to PostgreSQL & Migrations Applied")

	// 3. Start the processing loop until SIGTERM / SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	runner := &worker.Runner{
		Source: queue.NewConsumer(queue.Client, 5*time.Second),
		Sink:   &store.EventStore{Pool: store.DB},
	}
	runner.Run(ctx)
	log.Println("✅ Worker shut down cleanly.")
}
