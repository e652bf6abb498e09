//go:build !integration

package sched

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"captive-portal/internal/domain/model"
	"captive-portal/internal/domain/ports/repository"
	"captive-portal/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

type mockSweeper struct {
	calls int
	res   usecase.SweepResult
	err   error
}

func (m *mockSweeper) SweepExpired(ctx context.Context, r usecase.Runner) (usecase.SweepResult, error) {
	m.calls++
	return m.res, m.err
}

type mockLocker struct {
	mu       sync.Mutex
	held     map[string]string
	err      error
	unlocked int
}

func (m *mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if _, ok := m.held[key]; ok {
		return "", errLockHeld
	}
	m.held[key] = "token"
	return "token", nil
}

func (m *mockLocker) Unlock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, key)
	m.unlocked++
	return nil
}

type mockReconciler struct {
	reconciled    []string
	refunded      []string
	ReconcileFunc func(id string) (*model.Transaction, error)
	RefundFunc    func(id string) (*model.Transaction, error)
}

func (m *mockReconciler) Reconcile(ctx context.Context, id string) (*model.Transaction, error) {
	m.reconciled = append(m.reconciled, id)
	return m.ReconcileFunc(id)
}

func (m *mockReconciler) RetryRefund(ctx context.Context, id string) (*model.Transaction, error) {
	m.refunded = append(m.refunded, id)
	return m.RefundFunc(id)
}

// stubTransactionRepo answers only the two listing queries the reconciler uses.
type stubTransactionRepo struct {
	repository.TransactionRepository
	pending    []*model.Transaction
	refundable []*model.Transaction
	cutoffs    []time.Time
}

func (s *stubTransactionRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	s.cutoffs = append(s.cutoffs, olderThan)
	return s.pending, nil
}

// ListRefundable returns the head of the queue, least recently touched first.
func (s *stubTransactionRepo) ListRefundable(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	if limit > 0 && len(s.refundable) > limit {
		return s.refundable[:limit], nil
	}
	return s.refundable, nil
}

// touch moves id to the back of the refund queue, as a recorded refund attempt does.
func (s *stubTransactionRepo) touch(id string) {
	for i, t := range s.refundable {
		if t.TransactionID == id {
			rest := append(append([]*model.Transaction{}, s.refundable[:i]...), s.refundable[i+1:]...)
			s.refundable = append(rest, t)
			return
		}
	}
}
