package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"cvCanvas/internal/config"
	"cvCanvas/internal/database"
	"cvCanvas/internal/editor"
	"cvCanvas/internal/layout"
	"cvCanvas/internal/metrics"
	"cvCanvas/internal/pdf"
	"cvCanvas/internal/storage"
	"cvCanvas/internal/tasks"
	"cvCanvas/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	log.Println("database connection ready for worker")

	ctx := context.Background()
	storageClient, err := storage.NewClient(ctx, cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	log.Printf("storage client ready, bucket=%s", cfg.MinIO.Bucket)

	redisAddr := cfg.Redis.Addr()
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	renderer, err := pdf.New(cfg.Export.Renderer, cfg.Export.RenderWait)
	if err != nil {
		log.Fatalf("init pdf renderer: %v", err)
	}

	server := asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues:      map[string]int{tasks.QueueExport: 1},
	})

	exportHandler := worker.NewExportHandler(
		editor.NewGormStore(db),
		storageClient,
		redisClient,
		layout.NewEngine(),
		renderer,
		logger,
	)

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeExportPDF, exportHandler)

	logger.Info("worker service started",
		slog.String("redis_addr", redisAddr),
		slog.String("renderer", cfg.Export.Renderer),
		slog.Int("concurrency", cfg.Worker.Concurrency),
	)
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
