// Command worker consumes queued notification tasks and delivers email.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	goredis "github.com/redis/go-redis/v9"

	"visaflow/internal/notification"
	"visaflow/internal/platform/config"
	"visaflow/internal/platform/logger"
)

const workerConcurrency = 10

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	log := logger.New()

	if cfg.RedisURL == "" {
		log.Error("REDIS_URL is required for the notification worker")
		os.Exit(1)
	}
	opts, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Error("failed to parse redis URL", "error", err)
		os.Exit(1)
	}

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}, asynq.Config{
		Concurrency: workerConcurrency,
	})

	mailer := notification.NewSMTPMailer(cfg.SMTP)
	processor := notification.NewProcessor(mailer, cfg.BaseURL, log)

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	log.Info("starting notification worker")
	if err := server.Run(processor.Handler()); err != nil {
		log.Error("worker stopped with error", "error", err)
		os.Exit(1)
	}
}
