// Package main runs the slice-merge HTTP server with the background merge
// worker and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vodstitch/backend/config"
	"github.com/vodstitch/backend/internal/jobs"
	"github.com/vodstitch/backend/internal/merge"
	"github.com/vodstitch/backend/internal/middleware"
	"github.com/vodstitch/backend/internal/worker"
	"github.com/vodstitch/backend/pkg/database"
	"github.com/vodstitch/backend/pkg/metrics"
	"github.com/vodstitch/backend/pkg/queue"
	"github.com/vodstitch/backend/pkg/redis"
	"github.com/vodstitch/backend/pkg/response"
	"github.com/vodstitch/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		DestinationBucket:    cfg.AWS.DestinationBucket,
		CDNEndpoint:          cfg.AWS.CDNEndpoint,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	met := metrics.New()
	jobRepo := jobs.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	jobHandler := jobs.NewHandler(jobRepo, jobQueue, s3Client, met, cfg.Webhook.Secret, logger)

	fetcher := merge.NewHTTPFetcher(time.Duration(cfg.Merge.FetchTimeoutSec) * time.Second)
	merger := merge.NewMerger(fetcher, s3Client, met, logger)
	processor := worker.NewMergeProcessor(jobRepo, merger, jobQueue, met, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(met.Handler()))

	// Harvester webhook (signature-validated when WEBHOOK_SECRET is set)
	router.POST("/webhooks/slices-harvested", jobHandler.SlicesHarvested)

	// Merge job status
	router.GET("/jobs/:id", jobHandler.GetJob)
	router.GET("/jobs/:id/download-url", jobHandler.GenerateDownloadURL)
	router.GET("/videos/:id/jobs", jobHandler.ListByVideo)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background merge worker
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go processor.Run(workerCtx)
	logger.Info("merge worker started")

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
