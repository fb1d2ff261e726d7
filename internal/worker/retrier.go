// Package worker runs background jobs next to the HTTP server.
package worker

import (
	"context"
	"log/slog"
	"marketplace-handoff/internal/config"
	"marketplace-handoff/internal/model"
	"marketplace-handoff/internal/service"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type RetrySummary struct {
	Attempted int
	Succeeded int
	Failed    int
	Voided    int
}

// PayoutRetrier re-attempts failed payouts whose handoff stands.
type PayoutRetrier struct {
	payouts service.PayoutService
	cfg     config.Worker
	logger  *slog.Logger
}

func NewPayoutRetrier(payouts service.PayoutService, cfg config.Worker, logger *slog.Logger) *PayoutRetrier {
	return &PayoutRetrier{
		payouts: payouts,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run retries on every tick until ctx is done.
func (r *PayoutRetrier) Run(ctx context.Context) {
	interval := r.cfg.RetryInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary, err := r.RunOnce(ctx)
			if err != nil {
				r.logger.ErrorContext(ctx, "payout retry pass", "error", err)
				continue
			}
			if summary.Attempted > 0 {
				r.logger.InfoContext(ctx, "payout retry pass",
					"attempted", summary.Attempted,
					"succeeded", summary.Succeeded,
					"failed", summary.Failed,
					"voided", summary.Voided,
				)
			}
		}
	}
}

// RunOnce retries one batch. A payout that fails again is counted, not
// returned as an error.
func (r *PayoutRetrier) RunOnce(ctx context.Context) (RetrySummary, error) {
	failed, err := r.payouts.ListRetryable(ctx, r.cfg.MaxAttempts, r.cfg.RetryBatch)
	if err != nil {
		return RetrySummary{}, err
	}

	var (
		mu      sync.Mutex
		summary = RetrySummary{Attempted: len(failed)}
	)
	g := new(errgroup.Group)
	g.SetLimit(max(r.cfg.RetryConcurrency, 1))

	for _, p := range failed {
		p := p
		g.Go(func() error {
			next, err := r.payouts.Retry(ctx, p)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				summary.Failed++
				r.logger.WarnContext(ctx, "payout retry failed",
					"payout_id", p.ID,
					"source", p.Source,
					"source_id", p.SourceID,
					"attempt", p.Attempt+1,
					"error", err,
				)
			case next.Status == model.PayoutStatusVoided:
				summary.Voided++
			default:
				summary.Succeeded++
			}
			return nil
		})
	}
	_ = g.Wait()

	return summary, ctx.Err()
}
