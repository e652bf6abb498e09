package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"captive-portal/internal/domain/model"
	"captive-portal/internal/domain/ports/repository"
	"captive-portal/internal/infra/metrics"
	"captive-portal/internal/usecase"
)

// Reconciler is the subset of TransactionUseCase the reconciler drives.
type Reconciler interface {
	Reconcile(ctx context.Context, transactionID string) (*model.Transaction, error)
	RetryRefund(ctx context.Context, transactionID string) (*model.Transaction, error)
}

// PaymentReconciler periodically re-verifies stale PENDING transactions and retries
// refunds of provider-declined ones. This covers a lost callback, a crash between
// initiate and verify, and a refund that failed inline.
type PaymentReconciler struct {
	uc           Reconciler
	transactions repository.TransactionRepository
	interval     time.Duration // how often to scan
	staleAfter   time.Duration // how old a row must be to be retried
	batch        int
	log          *zerolog.Logger
}

func NewPaymentReconciler(uc Reconciler, transactions repository.TransactionRepository, interval, staleAfter time.Duration, batch int, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	if batch <= 0 {
		batch = 200
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{uc: uc, transactions: transactions, interval: interval, staleAfter: staleAfter, batch: batch, log: &l}
}

func (w *PaymentReconciler) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Dur("stale_after", w.staleAfter).Msg("Starting payment reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

func (w *PaymentReconciler) Tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)

	pending, err := w.transactions.ListPendingOlderThan(ctx, repository.NoTX, cutoff, w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("list pending failed")
	}
	for _, t := range pending {
		out, err := w.uc.Reconcile(ctx, t.TransactionID)
		if err != nil {
			metrics.IncReconcilerOutcome("reconcile", "error")
			w.log.Warn().Err(err).Str("transaction_id", t.TransactionID).Msg("reconcile failed")
			continue
		}
		metrics.IncReconcilerOutcome("reconcile", string(out.Status))
	}

	refundable, err := w.transactions.ListRefundable(ctx, repository.NoTX, cutoff, w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("list refundable failed")
		return
	}
	for _, t := range refundable {
		out, err := w.uc.RetryRefund(ctx, t.TransactionID)
		if err != nil {
			metrics.IncReconcilerOutcome("refund", "error")
			w.log.Warn().Err(err).Str("transaction_id", t.TransactionID).Msg("refund retry failed")
			continue
		}
		metrics.IncReconcilerOutcome("refund", string(out.Status))
		w.log.Info().Str("transaction_id", t.TransactionID).Str("status", string(out.Status)).Msg("refund retried")
	}
}

var _ Reconciler = (usecase.TransactionUseCase)(nil)
