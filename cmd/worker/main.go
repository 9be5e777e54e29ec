package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"attendancecontrol/internal/attendance"
	"attendancecontrol/internal/config"
	"attendancecontrol/internal/queue"
	"attendancecontrol/internal/store"
	"attendancecontrol/internal/sweeper"
)

// Worker records course events from the queue and closes expired sessions.
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

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := store.Migrate(db.SQL); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	q := queue.New(cfg.QueueBackend, redisClient.Client)
	svc := attendance.NewService(attendance.NewRepository(db.Client), q, cfg.TokenValidMinutes)

	sw := sweeper.New(svc, cfg.SweepSchedule)
	if n, err := sw.RunOnce(ctx); err != nil {
		log.Printf("initial sweep failed: %v", err)
	} else if n > 0 {
		log.Printf("initial sweep closed %d session(s)", n)
	}
	if err := sw.Start(ctx); err != nil {
		log.Fatalf("sweeper schedule %q invalid: %v", cfg.SweepSchedule, err)
	}
	defer sw.Stop()

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	svc.RecordEvents(ctx, messages)

	log.Println("worker stopped")
}
