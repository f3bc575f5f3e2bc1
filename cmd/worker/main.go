package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/ismafavesco/Esifi/internal/config"
	"github.com/ismafavesco/Esifi/internal/database"
	"github.com/ismafavesco/Esifi/internal/queue"
	"github.com/ismafavesco/Esifi/internal/queue/workers"
	"github.com/ismafavesco/Esifi/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.NewPool(context.Background(), cfg.Database)
	if err != nil {
		slog.Error("database required for worker", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
		},
	)

	conversationWorker := workers.NewConversationWorker(store.NewPostgres(db))
	mux := queue.NewMux(map[string]asynq.Handler{
		queue.TypeConversationArchive: asynq.HandlerFunc(conversationWorker.ProcessTask),
	})

	slog.Info("starting worker", "concurrency", 10)
	if err := srv.Run(mux); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
