// Command notifier consumes notification events from RabbitMQ, renders
// them and hands them to the mailer.
package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/iliyamo/football-squares/internal/config"
	"github.com/iliyamo/football-squares/internal/logger"
	"github.com/iliyamo/football-squares/internal/queue"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()
	lg := logger.Must(cfg.Env)
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := queue.NewConsumer(cfg.RabbitURL, queue.NewFileMailer(cfg.NotificationLog), lg)
	lg.Info("notifier started", zap.String("log", cfg.NotificationLog))
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		lg.Fatal("consumer stopped", zap.Error(err))
	}
	lg.Info("notifier stopped")
}
