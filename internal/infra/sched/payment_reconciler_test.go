//go:build !integration

package sched

import (
	"context"
	"errors"
	"testing"
	"time"

	"captive-portal/internal/domain"
	"captive-portal/internal/domain/model"
)

func TestPaymentReconciler_Tick(t *testing.T) {
	ctx := context.Background()

	t.Run("should reconcile stale pending rows and retry refunds", func(t *testing.T) {
		// --- Arrange ---
		repo := &stubTransactionRepo{
			pending:    []*model.Transaction{{TransactionID: "p1"}, {TransactionID: "p2"}},
			refundable: []*model.Transaction{{TransactionID: "f1"}},
		}
		uc := &mockReconciler{
			ReconcileFunc: func(id string) (*model.Transaction, error) {
				if id == "p1" {
					return nil, domain.ErrGateway
				}
				return &model.Transaction{TransactionID: id, Status: model.TransactionStatusSuccessful}, nil
			},
			RefundFunc: func(id string) (*model.Transaction, error) {
				return &model.Transaction{TransactionID: id, Status: model.TransactionStatusRefunded}, nil
			},
		}
		w := NewPaymentReconciler(uc, repo, time.Minute, 5*time.Minute, 10, newTestLogger())

		// --- Act ---
		before := time.Now()
		w.Tick(ctx)

		// --- Assert ---
		if len(uc.reconciled) != 2 {
			t.Errorf("a failing row must not stop the batch, reconciled %v", uc.reconciled)
		}
		if len(uc.refunded) != 1 || uc.refunded[0] != "f1" {
			t.Errorf("expected refund retry of f1, got %v", uc.refunded)
		}
		if len(repo.cutoffs) != 1 {
			t.Fatalf("expected one pending scan, got %d", len(repo.cutoffs))
		}
		if c := repo.cutoffs[0]; c.Before(before.Add(-5*time.Minute)) || c.After(time.Now().Add(-5*time.Minute)) {
			t.Errorf("cutoff should be stale_after in the past, got %v", repo.cutoffs)
		}
	})

	t.Run("should carry on when a refund retry fails", func(t *testing.T) {
		repo := &stubTransactionRepo{refundable: []*model.Transaction{{TransactionID: "f1"}, {TransactionID: "f2"}}}
		uc := &mockReconciler{
			RefundFunc: func(id string) (*model.Transaction, error) { return nil, errors.New("declined") },
		}
		NewPaymentReconciler(uc, repo, 0, 0, 0, newTestLogger()).Tick(ctx)
		if len(uc.refunded) != 2 {
			t.Errorf("expected both rows attempted, got %v", uc.refunded)
		}
	})

	t.Run("should reach rows beyond the batch once failed refunds rotate back", func(t *testing.T) {
		// --- Arrange ---
		repo := &stubTransactionRepo{refundable: []*model.Transaction{
			{TransactionID: "f1"}, {TransactionID: "f2"}, {TransactionID: "f3"},
		}}
		uc := &mockReconciler{}
		uc.RefundFunc = func(id string) (*model.Transaction, error) {
			repo.touch(id)
			return nil, domain.ErrGateway
		}
		w := NewPaymentReconciler(uc, repo, time.Minute, time.Minute, 2, newTestLogger())

		// --- Act ---
		w.Tick(ctx)
		w.Tick(ctx)

		// --- Assert ---
		seen := map[string]bool{}
		for _, id := range uc.refunded {
			seen[id] = true
		}
		if len(uc.refunded) != 4 || !seen["f3"] {
			t.Errorf("expected the third row retried on the second tick, got %v", uc.refunded)
		}
	})
}
