package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"localpros_backend/internal/email"
	"localpros_backend/internal/leads/ports"
	"localpros_backend/internal/leads/repository"
	"localpros_backend/platform/config"
	"localpros_backend/platform/logger"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const defaultDigestOlderThanMinutes = 30

// WorkerConfig combines the config interfaces the worker needs.
type WorkerConfig interface {
	config.SchedulerConfig
	config.EmailConfig
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	repo      *repository.Repository
	providers ports.ProviderDirectory
	sender    email.Sender
	cfg       WorkerConfig
	log       *logger.Logger
}

func NewWorker(cfg WorkerConfig, pool *pgxpool.Pool, providers ports.ProviderDirectory, sender email.Sender, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		repo:      repository.New(pool),
		providers: providers,
		sender:    sender,
		cfg:       cfg,
		log:       log,
	}

	mux.HandleFunc(TaskPendingDeliveryDigest, w.handlePendingDeliveryDigest)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handlePendingDeliveryDigest emails the ops address a report of leads whose
// delivery is still pending or failed. The digest only reports; re-triggering
// delivery stays a manual admin action.
func (w *Worker) handlePendingDeliveryDigest(ctx context.Context, task *asynq.Task) error {
	payload, err := ParsePendingDeliveryDigestPayload(task)
	if err != nil {
		return err
	}

	olderThan := payload.OlderThanMinutes
	if olderThan <= 0 {
		olderThan = defaultDigestOlderThanMinutes
	}

	opsAddress := w.cfg.GetOpsAddress()
	if opsAddress == "" {
		w.log.Warn("OPS_ADDRESS not configured; skipping pending delivery digest")
		return nil
	}

	cutoff := time.Now().Add(-time.Duration(olderThan) * time.Minute)
	stuck, err := w.repo.ListUndelivered(ctx, cutoff)
	if err != nil {
		return err
	}
	if len(stuck) == 0 {
		return nil
	}

	items, err := w.buildDigestItems(ctx, stuck)
	if err != nil {
		return err
	}

	if err := w.sender.SendPendingDeliveryDigest(ctx, opsAddress, items); err != nil {
		return err
	}

	w.log.Info("pending delivery digest sent", "leads", len(items), "to", opsAddress)
	return nil
}

// buildDigestItems hydrates the stuck leads with provider and metro names.
// Lookups fan out concurrently; a missing provider degrades to a blank name
// rather than failing the digest.
func (w *Worker) buildDigestItems(ctx context.Context, stuck []repository.Lead) ([]email.DigestItem, error) {
	items := make([]email.DigestItem, len(stuck))

	var mu sync.Mutex
	metroNames := make(map[string]string)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for i, lead := range stuck {
		i, lead := i, lead
		g.Go(func() error {
			item := email.DigestItem{
				LeadID:         lead.ID.String(),
				DeliveryStatus: lead.DeliveryStatus,
				CreatedAt:      lead.CreatedAt,
			}
			if lead.DeliveryError != nil {
				item.DeliveryError = *lead.DeliveryError
			}

			if lead.ProviderID != nil {
				provider, err := w.providers.GetProvider(gctx, *lead.ProviderID)
				if err != nil && !errors.Is(err, ports.ErrProviderNotFound) {
					return err
				}
				item.BusinessName = provider.BusinessName
			}

			metroKey := lead.MetroID.String()
			mu.Lock()
			name, cached := metroNames[metroKey]
			mu.Unlock()
			if !cached {
				name, err := w.repo.GetMetroName(gctx, lead.MetroID)
				if err == nil {
					mu.Lock()
					metroNames[metroKey] = name
					mu.Unlock()
				}
				item.MetroName = name
			} else {
				item.MetroName = name
			}

			items[i] = item
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}
