// Command gofire-scheduler is the process entrypoint: it wires the Job
// Store, Dispatch Queue, Delivery Worker, Engine Coordinator and REST
// adapter together and runs them until an interrupt or termination signal
// arrives. Grounded on GoFire's cmd/scheduler/main.go (config building,
// handler registration before blocking forever) and on
// client.JobManager.GracefulExit's shutdown sequence (signal.NotifyContext,
// cancel, WaitGroup, then close resources in dependency order).
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gofire/internal/config"
	"gofire/internal/constants"
	"gofire/internal/coordinator"
	"gofire/internal/httpapi"
	"gofire/internal/lock"
	"gofire/internal/logging"
	"gofire/internal/queue"
	"gofire/internal/store"
	"gofire/internal/worker"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("gofire-scheduler: config: %v", err)
	}

	logger, err := logging.New(cfg.Production)
	if err != nil {
		log.Fatalf("gofire-scheduler: logger: %v", err)
	}
	defer logger.Sync()

	st, err := store.Open(cfg.PostgresURL)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr()})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}

	locker := lock.NewPostgresDistributedLockManager(st.DB())
	q := queue.NewRedisQueue(redisClient, logger)
	deliverer := worker.New(st, q, cfg.TargetAllowed, logger)
	engine := coordinator.New(st, q, logger)
	reconciler := coordinator.NewReconciler(engine, locker, logger)
	api := httpapi.New(engine, cfg.AllowedOrigins, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := q.Consume(ctx, deliverer.Handle); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("dispatch queue consumer stopped", zap.Error(err))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := reconciler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("reconciler stopped", zap.Error(err))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := q.RunRepeatingArmer(ctx, locker); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("repeating armer stopped", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("gofire-scheduler listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("gofire-scheduler shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	wg.Wait()

	if err := st.Close(); err != nil {
		logger.Error("failed to close postgres store", zap.Error(err))
	}
	if err := redisClient.Close(); err != nil {
		logger.Error("failed to close redis client", zap.Error(err))
	}
	for _, lockID := range constants.Locks {
		_ = locker.Release(lockID)
	}

	logger.Info("gofire-scheduler shutdown complete")
}
