package server

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hastebucket/hastebucket/internal/bucket"
	"github.com/hastebucket/hastebucket/internal/config"
	"github.com/hastebucket/hastebucket/internal/logger"
	"github.com/hastebucket/hastebucket/internal/metrics"
	"github.com/hastebucket/hastebucket/internal/reaper"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config        config.Config
	DB            *pgxpool.Pool
	ObjectStore   *minio.Client
	Cache         *redis.Client
	BucketService *bucket.Service
	Logger        *zap.Logger
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware())
	if deps.Logger != nil {
		router.Use(logger.RequestLogger(deps.Logger))
	}
	router.Use(metrics.Middleware())

	registerHealthRoutes(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	api := router.Group("/v1")
	if deps.BucketService != nil {
		bucket.RegisterRoutes(api, deps.BucketService)
		reaper.RegisterRoutes(router, deps.BucketService, deps.Config.Reaper, deps.Logger)
	}

	return router
}
