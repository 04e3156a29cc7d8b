package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/rueidis"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/shinobicompass/bot/internal/auth"
	"github.com/shinobicompass/bot/internal/bot"
	"github.com/shinobicompass/bot/internal/chat"
	"github.com/shinobicompass/bot/internal/config"
	"github.com/shinobicompass/bot/internal/dashboard"
	"github.com/shinobicompass/bot/internal/flood"
	"github.com/shinobicompass/bot/internal/repository"
	"github.com/shinobicompass/bot/internal/tasks"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL; ensure it is running and DATABASE_URL is right", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL")

	// River migrations (job queue tables only; the app schema is applied
	// separately from db/schema.sql).
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	redisClient, err := rueidis.NewClient(rueidis.ClientOption{InitAddress: []string{cfg.RedisAddr}})
	if err != nil {
		slog.Error("Cannot reach Redis; ensure it is running and REDIS_ADDR is right", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.Info("Connected to Redis")

	taskRepo := repository.NewTaskRepo(pool)
	subRepo := repository.NewSubmissionRepo(pool)
	userRepo := repository.NewUserRepo(pool)
	groupRepo := repository.NewGroupRepo(pool)
	clanRepo := repository.NewClanRepo(pool)
	sudoRepo := repository.NewSudoRepo(pool)

	messenger := chat.NewBotAPI(cfg.BotAPIURL, cfg.BotToken)

	// Job-insert closures are filled in after the River client exists
	// (the client needs the workers, the workers need the service).
	var insertMu sync.Mutex
	var endFn tasks.ScheduleEndFunc
	var cleanupFn tasks.ScheduleCleanupFunc
	scheduleEnd := func(ctx context.Context, tx pgx.Tx, args tasks.EndJobArgs, at time.Time) error {
		insertMu.Lock()
		fn := endFn
		insertMu.Unlock()
		if fn == nil {
			panic("river insert not wired")
		}
		return fn(ctx, tx, args, at)
	}
	scheduleCleanup := func(ctx context.Context, args tasks.CleanupJobArgs, at time.Time) error {
		insertMu.Lock()
		fn := cleanupFn
		insertMu.Unlock()
		if fn == nil {
			panic("river insert not wired")
		}
		return fn(ctx, args, at)
	}

	taskSvc := tasks.NewService(taskRepo, subRepo, userRepo, messenger,
		scheduleEnd, scheduleCleanup, cfg.Timezone, logger)

	workers := river.NewWorkers()
	river.AddWorker(workers, tasks.NewEndWorker(taskSvc))
	river.AddWorker(workers, tasks.NewCleanupWorker(taskSvc))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	insertMu.Lock()
	endFn = func(ctx context.Context, tx pgx.Tx, args tasks.EndJobArgs, at time.Time) error {
		_, err := riverClient.InsertTx(ctx, tx, args, &river.InsertOpts{ScheduledAt: at})
		return err
	}
	cleanupFn = func(ctx context.Context, args tasks.CleanupJobArgs, at time.Time) error {
		_, err := riverClient.Insert(ctx, args, &river.InsertOpts{ScheduledAt: at})
		return err
	}
	insertMu.Unlock()

	roleGate := auth.NewGate(cfg.OwnerID, sudoRepo, messenger)
	floodGate := flood.NewGate(flood.DefaultConfig(), flood.NewRedisStore(redisClient))

	b := bot.New(messenger, floodGate, roleGate, taskSvc,
		userRepo, groupRepo, clanRepo, sudoRepo, cfg.LogChannelID, logger)

	authSvc := auth.NewService(cfg.OwnerPasswordHash, cfg.JWTSecret)
	dashHandler := dashboard.NewHandler(authSvc, taskRepo, userRepo, sudoRepo, logger)

	mux := newMux(b, dashHandler, logger)
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(mux)

	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	addr := "0.0.0.0:" + cfg.Port
	slog.Info("Starting HTTP server", "addr", addr)
	if err := http.ListenAndServe(addr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
