package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/football-squares/internal/broker"
	"github.com/iliyamo/football-squares/internal/config"
	"github.com/iliyamo/football-squares/internal/database"
	"github.com/iliyamo/football-squares/internal/grid"
	"github.com/iliyamo/football-squares/internal/handler"
	"github.com/iliyamo/football-squares/internal/logger"
	"github.com/iliyamo/football-squares/internal/metrics"
	"github.com/iliyamo/football-squares/internal/middleware"
	"github.com/iliyamo/football-squares/internal/repository"
	"github.com/iliyamo/football-squares/internal/router"
	"github.com/iliyamo/football-squares/internal/service"
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

	db, err := database.Open(ctx, cfg)
	if err != nil {
		lg.Fatal("database open failed", zap.Error(err))
	}
	defer db.Close()

	rec := metrics.New()

	// Redis backs the feed fan-out, reminder dedupe, rate limits and the
	// join-code cache.  Without it everything degrades to process-local.
	var (
		brk    grid.Broker
		ledger grid.ReminderLedger
	)
	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		lg.Warn("redis unavailable, using in-process broker", zap.Error(err))
		rdb = nil
		brk = broker.NewLocal()
		ledger = grid.NewMemoryLedger()
	} else {
		defer rdb.Close()
		brk = broker.NewRedis(rdb, lg)
		ledger = broker.NewLedger(rdb, "squares:reminder")
	}

	var notifier grid.Notifier
	pub, err := service.NewPublisher(cfg.RabbitURL, lg)
	if err != nil {
		lg.Warn("rabbitmq unavailable, notifications will only be logged", zap.Error(err))
		notifier = service.LogNotifier{Logger: lg}
	} else {
		defer pub.Close()
		notifier = pub
	}

	engine := grid.NewEngine(repository.NewGridStore(db), grid.Settings{
		RequireActivation: cfg.RequireActivation,
		AccessSecret:      []byte(cfg.GameAccessSecret),
		AccessTTL:         cfg.GameAccessTTL,
		BcryptCost:        cfg.BcryptCost,
		AppURL:            cfg.AppURL,
	},
		grid.WithNotifier(notifier),
		grid.WithBroker(brk),
		grid.WithMetrics(rec),
		grid.WithLogger(lg),
	)
	feed := grid.NewFeed(engine, cfg.Feed.Interval)
	sweeper := grid.NewSweeper(engine, ledger, cfg.Sweep.Interval)
	if cfg.Sweep.Enabled {
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(lg))
	e.Use(middleware.Metrics(rec))

	rl := router.Limits(config.LoadRateLimitConfig(), rdb)
	authRL := router.Limits(config.LoadAuthRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e, db, rec)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret, authRL)
	router.RegisterGames(e,
		handler.NewGameHandler(engine),
		handler.NewFeedHandler(engine, feed, cfg.Feed.PingInterval, lg),
		cfg.JWTSecret, rl, cache)
	router.RegisterCron(e, handler.NewCronHandler(sweeper, tokens), cfg.CronSecret)
	router.RegisterBilling(e, handler.NewBillingHandler(engine), cfg.BillingSecret)

	addr := ":" + cfg.Port
	go func() {
		lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.Error("shutdown failed", zap.Error(err))
	}
}
