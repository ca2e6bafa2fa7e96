package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hastebucket/hastebucket/internal/bucket"
	"github.com/hastebucket/hastebucket/internal/config"
	"github.com/hastebucket/hastebucket/internal/logger"
	"github.com/hastebucket/hastebucket/internal/metrics"
	"github.com/hastebucket/hastebucket/internal/reaper"
	"github.com/hastebucket/hastebucket/internal/server"
	"github.com/hastebucket/hastebucket/internal/storage"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.Init()
	if err != nil {
		panic("init logger: " + err.Error())
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	metrics.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer dbPool.Close()

	minioClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		log.Fatal("connect minio", zap.Error(err))
	}

	if err := storage.EnsureBucket(ctx, minioClient, cfg.MinIO.Bucket, cfg.MinIO.Region); err != nil {
		log.Fatal("ensure bucket", zap.Error(err))
	}

	redisClient, err := storage.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("connect redis", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	repo := bucket.NewRepository(dbPool)
	alloc := bucket.NewAllocator(repo, cfg.Bucket.IDLength, cfg.Bucket.IDMaxAttempts)
	objectStore := bucket.NewMinIOStore(minioClient)
	viewCache := bucket.NewViewCache(redisClient, cfg.Redis.TTL)
	bucketService := bucket.NewService(repo, objectStore, viewCache, alloc, cfg.MinIO.Bucket, cfg.Bucket, log)

	if cfg.Reaper.Enabled {
		sweep := reaper.New(bucketService, cfg.Reaper.Interval, log)
		go sweep.Run(ctx)
	}

	router := server.NewRouter(server.Dependencies{
		Config:        cfg,
		DB:            dbPool,
		ObjectStore:   minioClient,
		Cache:         redisClient,
		BucketService: bucketService,
		Logger:        log,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("Hastebucket API listening", zap.String("address", cfg.Server.Address()))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
}
