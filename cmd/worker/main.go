// Package main is the entry point for the medistock maintenance worker:
// periodic idempotency-record cleanup, pool stats logging and medicine
// cache refresh.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"medistock/internal/infrastructure/cache"
	"medistock/internal/infrastructure/storage/postgres"
	"medistock/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithLogger(ctx, log)

	log.Info("starting medistock worker")

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv(log, "DATABASE_URL")))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)
	idemTTL := getDurationEnv("IDEMPOTENCY_TTL", 24*time.Hour)
	idemStore := postgres.NewIdempotencyStore(txManager, idemTTL)

	medicineCache := cache.NewMedicineCache(pool.Unwrap())
	if err := medicineCache.Start(ctx); err != nil {
		log.Fatalw("failed to start medicine cache", "error", err)
	}
	defer medicineCache.Stop()

	worker := &Worker{
		pool:          pool,
		idemStore:     idemStore,
		medicineCache: medicineCache,
		cleanupEvery:  getDurationEnv("CLEANUP_INTERVAL", 10*time.Minute),
		refreshEvery:  getDurationEnv("CACHE_REFRESH_INTERVAL", time.Hour),
		statsEvery:    getDurationEnv("POOL_STATS_INTERVAL", time.Minute),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker runs the periodic maintenance tasks.
type Worker struct {
	pool          *postgres.Pool
	idemStore     *postgres.IdempotencyStore
	medicineCache *cache.MedicineCache

	cleanupEvery time.Duration
	refreshEvery time.Duration
	statsEvery   time.Duration
}

// Run loops until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	cleanup := time.NewTicker(w.cleanupEvery)
	defer cleanup.Stop()
	refresh := time.NewTicker(w.refreshEvery)
	defer refresh.Stop()
	stats := time.NewTicker(w.statsEvery)
	defer stats.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-cleanup.C:
			removed, err := w.idemStore.CleanupExpired(ctx)
			if err != nil {
				logger.Error(ctx, "idempotency cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				logger.Info(ctx, "cleaned up expired idempotency records", "removed", removed)
			}

		case <-refresh.C:
			// LISTEN/NOTIFY covers incremental changes; the periodic full
			// reload repairs any notification missed during reconnects.
			if err := w.medicineCache.Reload(ctx); err != nil {
				logger.Error(ctx, "medicine cache refresh failed", "error", err)
			}

		case <-stats.C:
			postgres.LogPoolStats(ctx, w.pool.Unwrap())
		}
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func mustEnv(log *logger.Logger, key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalw("required environment variable is not set", "key", key)
	}
	return v
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
