//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"captive-portal/internal/domain"
	"captive-portal/internal/domain/model"
	"captive-portal/internal/domain/ports/repository"
	"captive-portal/internal/usecase"
)

func TestAccessUseCase_Decide(t *testing.T) {
	ctx := context.Background()

	paid := func(repo *MockTransactionRepo, id, phone string, expiry time.Time) {
		now := time.Now()
		_ = repo.Save(ctx, repository.NoTX, &model.Transaction{
			TransactionID: id, PhoneNumber: phone, PackageID: "1", Status: model.TransactionStatusPending, CreatedAt: now,
		})
		_, _ = repo.MarkSuccessful(ctx, repository.NoTX, id, expiry, now)
	}
	exclude := func(repo *MockExclusionRepo, typ model.IdentifierType, value string, fromConnection bool) {
		e, err := model.NewExclusion(typ, value, "", false, fromConnection)
		if err != nil {
			t.Fatalf("exclusion: %v", err)
		}
		_ = repo.Save(ctx, repository.NoTX, e)
	}

	tests := []struct {
		name    string
		arrange func(txs *MockTransactionRepo, exs *MockExclusionRepo)
		phone   string
		mac     string
		granted bool
		reason  string
	}{
		{
			name: "should grant an unexpired paid session",
			arrange: func(txs *MockTransactionRepo, exs *MockExclusionRepo) {
				paid(txs, "t1", "+1", time.Now().Add(time.Hour))
			},
			phone: "+1", granted: true, reason: usecase.ReasonPaid,
		},
		{
			name: "should deny a connection-excluded phone despite a paid session",
			arrange: func(txs *MockTransactionRepo, exs *MockExclusionRepo) {
				paid(txs, "t1", "+1", time.Now().Add(time.Hour))
				exclude(exs, model.IdentifierPhone, "+1", true)
			},
			phone: "+1", reason: usecase.ReasonExcluded,
		},
		{
			name: "should deny a connection-excluded mac despite a paid session",
			arrange: func(txs *MockTransactionRepo, exs *MockExclusionRepo) {
				paid(txs, "t1", "+1", time.Now().Add(time.Hour))
				exclude(exs, model.IdentifierMAC, "AA:BB:CC:DD:EE:FF", true)
			},
			phone: "+1", mac: "aa-bb-cc-dd-ee-ff", reason: usecase.ReasonExcluded,
		},
		{
			name: "should ignore payment-only exclusions",
			arrange: func(txs *MockTransactionRepo, exs *MockExclusionRepo) {
				paid(txs, "t1", "+1", time.Now().Add(time.Hour))
				exclude(exs, model.IdentifierPhone, "+1", false)
			},
			phone: "+1", granted: true, reason: usecase.ReasonPaid,
		},
		{
			name: "should deny a lapsed session",
			arrange: func(txs *MockTransactionRepo, exs *MockExclusionRepo) {
				paid(txs, "t1", "+1", time.Now().Add(-time.Second))
			},
			phone: "+1", reason: usecase.ReasonNoActivePackage,
		},
		{
			name: "should match phones across formatting differences",
			arrange: func(txs *MockTransactionRepo, exs *MockExclusionRepo) {
				paid(txs, "t1", "+256770000001", time.Now().Add(time.Hour))
			},
			phone: "256 770 000 001", granted: true, reason: usecase.ReasonPaid,
		},
		{
			name: "should deny a phone excluded in another format",
			arrange: func(txs *MockTransactionRepo, exs *MockExclusionRepo) {
				paid(txs, "t1", "+256770000001", time.Now().Add(time.Hour))
				exclude(exs, model.IdentifierPhone, "256770000001", true)
			},
			phone: "+256770000001", reason: usecase.ReasonExcluded,
		},
		{
			name:    "should deny without any transaction",
			arrange: func(txs *MockTransactionRepo, exs *MockExclusionRepo) {},
			phone:   "+1", reason: usecase.ReasonNoActivePackage,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// --- Arrange ---
			txs, exs := NewMockTransactionRepo(), NewMockExclusionRepo()
			tc.arrange(txs, exs)
			uc := usecase.NewAccessUseCase(exs, txs, newTestLogger())

			// --- Act ---
			d, err := uc.Decide(ctx, tc.phone, tc.mac)
			granted, herr := uc.HasAccess(ctx, tc.phone, tc.mac)

			// --- Assert ---
			if err != nil || herr != nil {
				t.Fatalf("unexpected errors: %v %v", err, herr)
			}
			if d.Granted != tc.granted || granted != tc.granted {
				t.Errorf("expected granted=%v, got decide=%v has=%v", tc.granted, d.Granted, granted)
			}
			if d.Reason != tc.reason {
				t.Errorf("expected reason %q, got %q", tc.reason, d.Reason)
			}
			if d.Granted && d.Expiry == nil {
				t.Error("granted decisions carry the expiry")
			}
		})
	}

	t.Run("should surface storage errors", func(t *testing.T) {
		exs := NewMockExclusionRepo()
		exs.FindByValueFunc = func(ctx context.Context, tx repository.Tx, typ model.IdentifierType, value string) (*model.Exclusion, error) {
			return nil, domain.Storage("find exclusion", errors.New("timeout"))
		}
		uc := usecase.NewAccessUseCase(exs, NewMockTransactionRepo(), newTestLogger())
		if _, err := uc.Decide(ctx, "+1", ""); !errors.Is(err, domain.ErrStorage) {
			t.Fatalf("expected ErrStorage, got %v", err)
		}
	})
}
