package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/browningluke/FruitTycoon/internal/config"
	"github.com/browningluke/FruitTycoon/internal/db"
	"github.com/browningluke/FruitTycoon/internal/game"
	"github.com/browningluke/FruitTycoon/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	records := store.NewPostgres(pool)
	if err := records.Migrate(ctx); err != nil {
		logger.Error("migrate failed", "err", err)
		os.Exit(1)
	}
	svc := game.NewService(records, logger)

	runOnce := strings.EqualFold(strings.TrimSpace(os.Getenv("TYCOON_WORKER_RUN_ONCE")), "true")
	if runOnce {
		n, err := svc.SettleDue(ctx)
		if err != nil {
			logger.Error("settle failed", "err", err)
			os.Exit(1)
		}
		if _, err := svc.SnapshotLeaderboard(ctx); err != nil {
			logger.Error("snapshot failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed", "settled", n)
		return
	}

	logger.Info("worker started", "settle_every", cfg.SettleEvery.String())
	game.NewScheduler(svc, logger, cfg.SettleEvery).Run(ctx)
}
