package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"anoa.com/schoolportal/internal/bootstrap"
	"anoa.com/schoolportal/internal/config"
	"anoa.com/schoolportal/internal/migrations"
	searchService "anoa.com/schoolportal/internal/modules/search/service"
	"anoa.com/schoolportal/internal/server"
	"anoa.com/schoolportal/pkg/database"
	"anoa.com/schoolportal/pkg/logging"
	"anoa.com/schoolportal/pkg/mailer"
	"anoa.com/schoolportal/pkg/observability"
	"anoa.com/schoolportal/pkg/storage"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logs, err := logging.Init(cfg.LogLevel, cfg.AppEnv)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logs.Closer()
	zap.ReplaceGlobals(logs.Base)
	logger := logs.Base

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv, cfg.Release)
	if err != nil {
		logger.Warn("sentry disabled", zap.Error(err))
	}
	defer flush()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DSN(), !cfg.IsProduction())
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("database handle", zap.Error(err))
	}

	ctx := context.Background()
	if err := migrations.Up(ctx, sqlDB, logger); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
	if err := bootstrap.SeedClasses(ctx, db); err != nil {
		logger.Fatal("failed to seed classes", zap.Error(err))
	}
	if err := bootstrap.SeedAdminUser(ctx, db, bootstrap.AdminSeed{
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
		Always:   cfg.AppEnv == "development",
	}, logger); err != nil {
		logger.Fatal("failed to seed admin user", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, rate limits and live notifications are degraded", zap.Error(err))
		}
		defer rdb.Close()
	} else {
		logger.Warn("REDIS_URL not set, rate limiting and live notifications disabled")
	}

	images, err := storage.NewCloudinaryStorage(cfg.CloudinaryURL, cfg.CloudinaryUploadFolder)
	if err != nil {
		logger.Warn("image uploads disabled", zap.Error(err))
	}

	index := searchService.NewMeiliSearchService(cfg.MeiliSearchHost, cfg.MeiliMasterKey, logger.Named("search"))
	if index == nil {
		logger.Info("MEILISEARCH_HOST not set, search falls back to SQL")
	}

	srv, err := server.NewServer(cfg, server.Dependencies{
		DB:     db,
		Redis:  rdb,
		Index:  index,
		Images: images,
		Mailer: mailer.New(cfg.SendgridAPIKey, cfg.AppName, cfg.MailFrom, logger.Named("mail")),
		Log:    logger,
	})
	if err != nil {
		logger.Fatal("build server", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server exited with error", zap.Error(err))
		}
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
		}
	}
}
