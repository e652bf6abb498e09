//go:build !integration

package api

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"captive-portal/internal/domain"
	"captive-portal/internal/domain/model"
	"captive-portal/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

type MockTransactionUC struct {
	InitiateFunc  func(ctx context.Context, identifier, packageID string) (*model.Transaction, error)
	ReconcileFunc func(ctx context.Context, id string) (*model.Transaction, error)
	HistoryFunc   func(ctx context.Context, identifier string) ([]*model.Transaction, error)
	ListFunc      func(ctx context.Context, req usecase.Requester, limit, offset int) ([]*model.Transaction, error)
}

func (m *MockTransactionUC) Packages() []model.Package { return model.DefaultPackages() }

func (m *MockTransactionUC) Initiate(ctx context.Context, identifier, packageID string) (*model.Transaction, error) {
	if m.InitiateFunc != nil {
		return m.InitiateFunc(ctx, identifier, packageID)
	}
	return &model.Transaction{TransactionID: "t1", PhoneNumber: identifier, PackageID: packageID, Status: model.TransactionStatusPending}, nil
}

func (m *MockTransactionUC) Reconcile(ctx context.Context, id string) (*model.Transaction, error) {
	if m.ReconcileFunc != nil {
		return m.ReconcileFunc(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *MockTransactionUC) RetryRefund(ctx context.Context, id string) (*model.Transaction, error) {
	return nil, domain.ErrNotFound
}

func (m *MockTransactionUC) SweepExpired(ctx context.Context, r usecase.Runner) (usecase.SweepResult, error) {
	return usecase.SweepResult{}, nil
}

func (m *MockTransactionUC) History(ctx context.Context, identifier string) ([]*model.Transaction, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, identifier)
	}
	return nil, nil
}

func (m *MockTransactionUC) List(ctx context.Context, req usecase.Requester, limit, offset int) ([]*model.Transaction, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, req, limit, offset)
	}
	return nil, nil
}

type MockAccessCodeUC struct {
	GenerateBatchFunc func(ctx context.Context, req usecase.Requester, planID string, quantity int) (*usecase.BatchResult, error)
	ActivateFunc      func(ctx context.Context, code, deviceID string) (*model.AccessCode, error)
	BindFunc          func(ctx context.Context, code, deviceID string) (*model.AccessCode, error)
	StartSessionFunc  func(ctx context.Context, code string) (*model.AccessCode, error)
	CheckAccessFunc   func(ctx context.Context, code string) (*model.CodeAccess, error)
}

func (m *MockAccessCodeUC) GenerateBatch(ctx context.Context, req usecase.Requester, planID string, quantity int) (*usecase.BatchResult, error) {
	return m.GenerateBatchFunc(ctx, req, planID, quantity)
}

func (m *MockAccessCodeUC) Activate(ctx context.Context, code, deviceID string) (*model.AccessCode, error) {
	return m.ActivateFunc(ctx, code, deviceID)
}

func (m *MockAccessCodeUC) Bind(ctx context.Context, code, deviceID string) (*model.AccessCode, error) {
	return m.BindFunc(ctx, code, deviceID)
}

func (m *MockAccessCodeUC) StartSession(ctx context.Context, code string) (*model.AccessCode, error) {
	return m.StartSessionFunc(ctx, code)
}

func (m *MockAccessCodeUC) CheckAccess(ctx context.Context, code string) (*model.CodeAccess, error) {
	return m.CheckAccessFunc(ctx, code)
}

func (m *MockAccessCodeUC) SweepExpired(ctx context.Context, r usecase.Runner) (usecase.SweepResult, error) {
	return usecase.SweepResult{}, nil
}

type MockAccessUC struct {
	DecideFunc func(ctx context.Context, identifier, mac string) (usecase.Decision, error)
}

func (m *MockAccessUC) HasAccess(ctx context.Context, identifier, mac string) (bool, error) {
	d, err := m.Decide(ctx, identifier, mac)
	return d.Granted, err
}

func (m *MockAccessUC) Decide(ctx context.Context, identifier, mac string) (usecase.Decision, error) {
	if m.DecideFunc != nil {
		return m.DecideFunc(ctx, identifier, mac)
	}
	return usecase.Decision{Reason: usecase.ReasonNoActivePackage}, nil
}

type MockExclusionUC struct {
	AddFunc    func(ctx context.Context, req usecase.Requester, typ model.IdentifierType, value, reason string, fromPayment, fromConnection bool) (*model.Exclusion, error)
	ListFunc   func(ctx context.Context, req usecase.Requester) ([]*model.Exclusion, error)
	DeleteFunc func(ctx context.Context, req usecase.Requester, id int64) (*model.Exclusion, error)
}

func (m *MockExclusionUC) Add(ctx context.Context, req usecase.Requester, typ model.IdentifierType, value, reason string, fromPayment, fromConnection bool) (*model.Exclusion, error) {
	return m.AddFunc(ctx, req, typ, value, reason, fromPayment, fromConnection)
}

func (m *MockExclusionUC) List(ctx context.Context, req usecase.Requester) ([]*model.Exclusion, error) {
	return m.ListFunc(ctx, req)
}

func (m *MockExclusionUC) Delete(ctx context.Context, req usecase.Requester, id int64) (*model.Exclusion, error) {
	return m.DeleteFunc(ctx, req, id)
}

type mockLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.keys = append(m.keys, key)
	return m.allowed, m.err
}
