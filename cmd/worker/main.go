// Package main runs the standalone merge worker (queue consumer).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vodstitch/backend/config"
	"github.com/vodstitch/backend/internal/jobs"
	"github.com/vodstitch/backend/internal/merge"
	"github.com/vodstitch/backend/internal/worker"
	"github.com/vodstitch/backend/pkg/database"
	"github.com/vodstitch/backend/pkg/metrics"
	"github.com/vodstitch/backend/pkg/queue"
	"github.com/vodstitch/backend/pkg/redis"
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
	fetcher := merge.NewHTTPFetcher(time.Duration(cfg.Merge.FetchTimeoutSec) * time.Second)
	merger := merge.NewMerger(fetcher, s3Client, met, logger)
	processor := worker.NewMergeProcessor(jobRepo, merger, jobQueue, met, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
