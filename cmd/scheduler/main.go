package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"localpros_backend/internal/adapters"
	"localpros_backend/internal/email"
	providersrepo "localpros_backend/internal/providers/repository"
	"localpros_backend/internal/scheduler"
	"localpros_backend/platform/config"
	"localpros_backend/platform/db"
	"localpros_backend/platform/logger"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// digestCron is when the pending-delivery digest runs (server local time).
const defaultDigestCron = "0 8 * * *"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	if cfg.GetRedisURL() == "" {
		panic("REDIS_URL is required for the scheduler")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	directory := adapters.NewProviderDirectoryAdapter(providersrepo.New(pool))

	worker, err := scheduler.NewWorker(cfg, pool, directory, sender, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	periodic, err := newPeriodicScheduler(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		go func() {
			<-gctx.Done()
			periodic.Shutdown()
		}()
		return periodic.Run()
	})

	if err := g.Wait(); err != nil {
		log.Error("scheduler stopped", "error", err)
	}
}

// newPeriodicScheduler registers the recurring digest task with asynq's
// cron-style scheduler.
func newPeriodicScheduler(cfg *config.Config, log *logger.Logger) (*asynq.Scheduler, error) {
	opt, err := redisConnOpt(cfg)
	if err != nil {
		return nil, err
	}

	periodic := asynq.NewScheduler(opt, nil)

	task, err := scheduler.NewPendingDeliveryDigestTask(scheduler.PendingDeliveryDigestPayload{
		OlderThanMinutes: getPositiveIntEnv("DIGEST_OLDER_THAN_MINUTES", scheduler.DefaultOlderThanMinutes),
	})
	if err != nil {
		return nil, err
	}

	cron := os.Getenv("DIGEST_CRON")
	if cron == "" {
		cron = defaultDigestCron
	}

	if _, err := periodic.Register(cron, task, asynq.Queue(cfg.GetAsynqQueueName())); err != nil {
		return nil, err
	}
	log.Info("pending delivery digest scheduled", "cron", cron)

	return periodic, nil
}

func redisConnOpt(cfg config.SchedulerConfig) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}
	return opt, nil
}

func getPositiveIntEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
