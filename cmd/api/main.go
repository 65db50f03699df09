package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"cvCanvas/internal/api"
	"cvCanvas/internal/auth"
	"cvCanvas/internal/config"
	"cvCanvas/internal/database"
	"cvCanvas/internal/editor"
	"cvCanvas/internal/layout"
	"cvCanvas/internal/storage"
	"cvCanvas/internal/templates"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	log.Printf("api bootstrapped with db host=%s port=%d db=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
	log.Printf("database migrated")

	ctx := context.Background()
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	storageClient, err := storage.NewClient(ctx, cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}

	issuer, err := auth.LoadIssuer(cfg.Auth.PrivateKeyPath, cfg.Auth.PublicKeyPath, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	if err != nil {
		log.Fatalf("load jwt keys: %v", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
	defer asynqClient.Close()

	catalog, err := templates.Builtin()
	if err != nil {
		log.Fatalf("load template catalog: %v", err)
	}

	store := editor.NewGormStore(db)
	svc := editor.NewService(store, layout.NewEngine(), catalog,
		editor.WithHistory(editor.NewRedisHistory(redisClient, cfg.Editor.HistoryDepth)),
		editor.WithLogger(logger),
		editor.WithMaxDocuments(cfg.API.MaxDocuments),
	)

	router := api.NewRouter(logger)
	api.RegisterRoutes(router, api.Handlers{
		Auth: api.NewAuthHandler(
			auth.NewAccounts(db, !cfg.Auth.DisableRegistration),
			issuer,
			auth.NewGuard(redisClient, cfg.Auth.LoginRatePerHour),
			cfg.Auth.CookieDomain,
		),
		Documents: api.NewDocumentHandler(svc, storageClient, logger),
		Templates: api.NewTemplateHandler(catalog),
		Exports:   api.NewExportHandler(svc, store, asynqClient, storageClient, cfg.Export.LinkTTL, cfg.Worker.MaxRetry, logger),
		Assets:    api.NewAssetHandler(db, storageClient, api.NewClamdScanner(cfg.API.ClamdAddr), redisClient, logger),
		Ws:        api.NewWsHandler(redisClient, issuer, logger, cfg.API.Origins()),
		Tokens:    issuer,
	})

	address := fmt.Sprintf(":%d", cfg.API.Port)
	logger.Info("api listening", slog.String("address", address))
	if err := router.Run(address); err != nil {
		log.Fatalf("failed to start api server: %v", err)
	}
}
