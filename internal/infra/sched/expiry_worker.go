package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"captive-portal/internal/infra/metrics"
	red "captive-portal/internal/infra/redis"
	"captive-portal/internal/usecase"
)

const expiryLockKey = "lock:expiry-sweep"

// Sweeper is the expiry half of a use case.
type Sweeper interface {
	SweepExpired(ctx context.Context, r usecase.Runner) (usecase.SweepResult, error)
}

// ExpiryWorker periodically expires lapsed paid sessions and access codes.
type ExpiryWorker struct {
	interval     time.Duration
	transactions Sweeper
	codes        Sweeper
	runner       usecase.Runner
	locker       red.Locker // nil sweeps on every replica
	log          *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, transactions, codes Sweeper, runner usecase.Runner, locker red.Locker, logger *zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval:     interval,
		transactions: transactions,
		codes:        codes,
		runner:       runner,
		locker:       locker,
		log:          &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs one sweep of both session kinds. A failing kind does not stop the other.
func (w *ExpiryWorker) RunOnce(ctx context.Context) {
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, expiryLockKey, w.interval)
		if errors.Is(err, red.ErrLockHeld) {
			w.log.Debug().Msg("another instance holds the sweep lock")
			return
		}
		if err != nil {
			w.log.Warn().Err(err).Msg("sweep lock unavailable, sweeping anyway")
		} else {
			defer func() {
				if err := w.locker.Unlock(context.WithoutCancel(ctx), expiryLockKey, token); err != nil {
					w.log.Warn().Err(err).Msg("failed to release sweep lock")
				}
			}()
		}
	}

	w.sweep(ctx, "transaction", w.transactions)
	w.sweep(ctx, "access_code", w.codes)
}

func (w *ExpiryWorker) sweep(ctx context.Context, kind string, s Sweeper) {
	if s == nil {
		return
	}
	res, err := s.SweepExpired(ctx, w.runner)
	if err != nil {
		w.log.Error().Err(err).Str("kind", kind).Msg("expiry sweep failed")
		return
	}
	metrics.AddSessionsExpired(kind, res.Expired)
	metrics.AddDisconnectFailures(kind, res.HookFailures)
	if res.Scanned > 0 {
		w.log.Info().Str("kind", kind).Int("scanned", res.Scanned).Int("expired", res.Expired).
			Int("hook_failures", res.HookFailures).Msg("expired sessions finished")
	}
}
