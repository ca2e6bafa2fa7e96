// Package reaper drives the retention sweep that purges buckets older than
// the configured window, both on a timer and via an HTTP trigger.
package reaper

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hastebucket/hastebucket/internal/bucket"
	"github.com/hastebucket/hastebucket/internal/config"
	"github.com/hastebucket/hastebucket/internal/metrics"
	"go.uber.org/zap"
)

// TriggerTokenHeader authenticates external sweep triggers when a token is
// configured.
const TriggerTokenHeader = "X-Reaper-Token"

type sweeper interface {
	Reap(ctx context.Context, now time.Time) (bucket.ReapResult, error)
}

// Reaper runs the expiry sweep on a fixed cadence.
type Reaper struct {
	svc      sweeper
	interval time.Duration
	log      *zap.Logger
}

// New builds a reaper. Interval must be positive.
func New(svc sweeper, interval time.Duration, log *zap.Logger) *Reaper {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Reaper{svc: svc, interval: interval, log: log}
}

// Run sweeps until the context is cancelled. Every sweep is independent;
// overlapping or repeated invocations converge because deletes are idempotent.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	result, err := r.svc.Reap(ctx, time.Now())
	metrics.BucketsReaped(result.Reaped)
	if err != nil {
		r.log.Error("retention sweep finished with failures",
			zap.Int("reaped", result.Reaped),
			zap.Int("failures", result.Failures),
			zap.Error(err),
		)
		return
	}
	if result.Reaped > 0 {
		r.log.Info("retention sweep", zap.Int("reaped", result.Reaped))
	}
}

// RegisterRoutes mounts the HTTP trigger used by external schedulers.
func RegisterRoutes(router *gin.Engine, svc sweeper, cfg config.ReaperConfig, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}

	router.POST("/internal/cleaner", func(c *gin.Context) {
		if cfg.TriggerToken != "" && c.GetHeader(TriggerTokenHeader) != cfg.TriggerToken {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid reaper token"})
			return
		}

		result, err := svc.Reap(c.Request.Context(), time.Now())
		metrics.BucketsReaped(result.Reaped)
		if err != nil {
			log.Error("triggered sweep finished with failures",
				zap.Int("reaped", result.Reaped),
				zap.Int("failures", result.Failures),
				zap.Error(err),
			)
			// Partial failure still reports what was purged.
			c.JSON(http.StatusOK, gin.H{"reaped": result.Reaped, "failures": result.Failures})
			return
		}

		c.JSON(http.StatusOK, gin.H{"reaped": result.Reaped, "failures": 0})
	})
}
