package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/browningluke/FruitTycoon/internal/bot"
	"github.com/browningluke/FruitTycoon/internal/config"
	"github.com/browningluke/FruitTycoon/internal/db"
	"github.com/browningluke/FruitTycoon/internal/game"
	"github.com/browningluke/FruitTycoon/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadBotFromEnv()
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
	gameSvc := game.NewService(records, logger)

	b, err := bot.New(cfg, logger, gameSvc)
	if err != nil {
		logger.Error("bot init failed", "err", err)
		os.Exit(1)
	}
	if err := b.Run(ctx); err != nil {
		logger.Error("bot stopped", "err", err)
		os.Exit(1)
	}
}
