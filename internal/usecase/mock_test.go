//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"captive-portal/internal/domain"
	"captive-portal/internal/domain/model"
	"captive-portal/internal/domain/ports/adapter"
	"captive-portal/internal/domain/ports/repository"
	"captive-portal/internal/usecase"
)

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	mu sync.Mutex

	InitiateFunc func(ctx context.Context, identifier string, amount int64, packageRef string) (adapter.InitiateResult, error)
	VerifyFunc   func(ctx context.Context, providerID string) (adapter.VerifyResult, error)
	RefundFunc   func(ctx context.Context, providerID string, amount int64) (adapter.RefundResult, error)

	Calls struct {
		Initiate int
		Verify   int
		Refund   int
	}
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Name() string { return "mockpay" }

func (m *MockPaymentGateway) Initiate(ctx context.Context, identifier string, amount int64, packageRef string) (adapter.InitiateResult, error) {
	m.mu.Lock()
	m.Calls.Initiate++
	n := m.Calls.Initiate
	m.mu.Unlock()
	if m.InitiateFunc != nil {
		return m.InitiateFunc(ctx, identifier, amount, packageRef)
	}
	return adapter.InitiateResult{ProviderID: fmt.Sprintf("ref-%d", n), Status: adapter.ProviderPending}, nil
}

func (m *MockPaymentGateway) Verify(ctx context.Context, providerID string) (adapter.VerifyResult, error) {
	m.mu.Lock()
	m.Calls.Verify++
	m.mu.Unlock()
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, providerID)
	}
	return adapter.VerifyResult{ProviderID: providerID, Status: adapter.ProviderPending}, nil
}

func (m *MockPaymentGateway) Refund(ctx context.Context, providerID string, amount int64) (adapter.RefundResult, error) {
	m.mu.Lock()
	m.Calls.Refund++
	m.mu.Unlock()
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, providerID, amount)
	}
	return adapter.RefundResult{RefundID: "rf-" + providerID, Status: adapter.ProviderSuccessful}, nil
}

func (m *MockPaymentGateway) VerifyCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls.Verify
}

func (m *MockPaymentGateway) RefundCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls.Refund
}

// ---- Mock Disconnector ----

type MockDisconnector struct {
	mu   sync.Mutex
	Seen []string

	DisconnectFunc func(ctx context.Context, identifier string) error
}

var _ adapter.Disconnector = (*MockDisconnector)(nil)

func (m *MockDisconnector) Disconnect(ctx context.Context, identifier string) error {
	m.mu.Lock()
	m.Seen = append(m.Seen, identifier)
	m.mu.Unlock()
	if m.DisconnectFunc != nil {
		return m.DisconnectFunc(ctx, identifier)
	}
	return nil
}

// ---- Sequence code generator ----

// seqGenerator hands out the queued values in order, then falls back to a counter.
type seqGenerator struct {
	mu     sync.Mutex
	queue  []string
	n      int
	space  int64
	GenErr error
}

var _ usecase.CodeGenerator = (*seqGenerator)(nil)

func (g *seqGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.GenErr != nil {
		return "", g.GenErr
	}
	if len(g.queue) > 0 {
		v := g.queue[0]
		g.queue = g.queue[1:]
		return v, nil
	}
	g.n++
	return fmt.Sprintf("C%07d", g.n), nil
}

func (g *seqGenerator) SpaceSize() int64 {
	if g.space == 0 {
		return 1000
	}
	return g.space
}

// =============================
// Repositories
// =============================

// ---- In-memory TransactionRepository ----

type MockTransactionRepo struct {
	mu   sync.Mutex
	data map[string]*model.Transaction

	SaveFunc       func(ctx context.Context, tx repository.Tx, t *model.Transaction) error
	MarkFailedFunc func(ctx context.Context, tx repository.Tx, id, reason string, at time.Time) (bool, error)
}

var _ repository.TransactionRepository = (*MockTransactionRepo)(nil)

func NewMockTransactionRepo() *MockTransactionRepo {
	return &MockTransactionRepo{data: make(map[string]*model.Transaction)}
}

func (m *MockTransactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.data[t.TransactionID]; exists {
		return domain.ErrAlreadyExists
	}
	cp := *t
	m.data[t.TransactionID] = &cp
	return nil
}

// Get returns a copy of the stored row, nil when absent.
func (m *MockTransactionRepo) Get(id string) *model.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.data[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

func (m *MockTransactionRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func (m *MockTransactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Transaction, error) {
	if t := m.Get(id); t != nil {
		return t, nil
	}
	return nil, domain.ErrNotFound
}

func (m *MockTransactionRepo) FindActiveByPhone(ctx context.Context, tx repository.Tx, phone string, now time.Time) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.Transaction
	for _, t := range m.data {
		if t.PhoneNumber == phone && t.Active(now) && (best == nil || t.Expiry.After(*best.Expiry)) {
			best = t
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *MockTransactionRepo) filter(keep func(t *model.Transaction) bool) []*model.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Transaction
	for _, t := range m.data {
		if keep(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *MockTransactionRepo) ListByPhone(ctx context.Context, tx repository.Tx, phone string) ([]*model.Transaction, error) {
	return m.filter(func(t *model.Transaction) bool { return t.PhoneNumber == phone }), nil
}

func (m *MockTransactionRepo) List(ctx context.Context, tx repository.Tx, limit, offset int) ([]*model.Transaction, error) {
	all := m.filter(func(*model.Transaction) bool { return true })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *MockTransactionRepo) ListExpired(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Transaction, error) {
	return m.filter(func(t *model.Transaction) bool {
		return t.Status == model.TransactionStatusSuccessful && t.Expiry != nil && !t.Expiry.After(now)
	}), nil
}

func (m *MockTransactionRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	return m.filter(func(t *model.Transaction) bool {
		return t.Status == model.TransactionStatusPending && t.CreatedAt.Before(olderThan)
	}), nil
}

func (m *MockTransactionRepo) ListRefundable(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	out := m.filter(func(t *model.Transaction) bool {
		return t.Status == model.TransactionStatusFailed && t.FailureReason == model.FailureProviderDeclined &&
			t.UpdatedAt.Before(olderThan) && t.RefundAttempts < model.MaxRefundAttempts
	})
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// transition applies mutate when the row is in from; it mirrors the status-scoped UPDATE.
func (m *MockTransactionRepo) transition(id string, from model.TransactionStatus, mutate func(t *model.Transaction)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.data[id]
	if !ok || t.Status != from {
		return false
	}
	mutate(t)
	t.UpdatedAt = time.Now()
	return true
}

func (m *MockTransactionRepo) MarkSuccessful(ctx context.Context, tx repository.Tx, id string, expiry, completedAt time.Time) (bool, error) {
	return m.transition(id, model.TransactionStatusPending, func(t *model.Transaction) {
		t.Status = model.TransactionStatusSuccessful
		t.Expiry = &expiry
		t.CompletedAt = &completedAt
	}), nil
}

func (m *MockTransactionRepo) MarkFailed(ctx context.Context, tx repository.Tx, id string, reason string, completedAt time.Time) (bool, error) {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, tx, id, reason, completedAt)
	}
	return m.transition(id, model.TransactionStatusPending, func(t *model.Transaction) {
		t.Status = model.TransactionStatusFailed
		t.FailureReason = reason
		t.CompletedAt = &completedAt
	}), nil
}

func (m *MockTransactionRepo) MarkExpired(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	return m.transition(id, model.TransactionStatusSuccessful, func(t *model.Transaction) {
		t.Status = model.TransactionStatusExpired
	}), nil
}

func (m *MockTransactionRepo) MarkRefunded(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	return m.transition(id, model.TransactionStatusFailed, func(t *model.Transaction) {
		t.Status = model.TransactionStatusRefunded
	}), nil
}

func (m *MockTransactionRepo) RecordRefundAttempt(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	m.mu.Lock()
	if t, ok := m.data[id]; !ok || t.FailureReason != model.FailureProviderDeclined {
		m.mu.Unlock()
		return false, nil
	}
	m.mu.Unlock()
	return m.transition(id, model.TransactionStatusFailed, func(t *model.Transaction) {
		t.RefundAttempts++
	}), nil
}

// ---- In-memory AccessCodeRepository ----

type MockAccessCodeRepo struct {
	mu   sync.Mutex
	data map[string]*model.AccessCode

	Inserts    int
	InsertFunc func(ctx context.Context, tx repository.Tx, c *model.AccessCode) (bool, error)
}

var _ repository.AccessCodeRepository = (*MockAccessCodeRepo)(nil)

func NewMockAccessCodeRepo() *MockAccessCodeRepo {
	return &MockAccessCodeRepo{data: make(map[string]*model.AccessCode)}
}

func (m *MockAccessCodeRepo) Put(c *model.AccessCode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.data[c.Code] = &cp
}

func (m *MockAccessCodeRepo) Get(code string) *model.AccessCode {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.data[code]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

func (m *MockAccessCodeRepo) Insert(ctx context.Context, tx repository.Tx, c *model.AccessCode) (bool, error) {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, tx, c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.data[c.Code]; taken {
		return false, nil
	}
	cp := *c
	m.data[c.Code] = &cp
	m.Inserts++
	return true, nil
}

func (m *MockAccessCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.AccessCode, error) {
	if c := m.Get(code); c != nil {
		return c, nil
	}
	return nil, domain.ErrNotFound
}

func (m *MockAccessCodeRepo) Count(ctx context.Context, tx repository.Tx) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.data)), nil
}

func (m *MockAccessCodeRepo) transition(code string, from []model.AccessCodeStatus, mutate func(c *model.AccessCode)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.data[code]
	if !ok {
		return false
	}
	for _, f := range from {
		if c.Status == f {
			mutate(c)
			return true
		}
	}
	return false
}

func (m *MockAccessCodeRepo) MarkUsed(ctx context.Context, tx repository.Tx, code, mac string, now, expiry time.Time) (bool, error) {
	return m.transition(code, []model.AccessCodeStatus{model.AccessCodeUnused}, func(c *model.AccessCode) {
		c.Status = model.AccessCodeUsed
		c.MACAddress = &mac
		c.UsedAt = &now
		c.ActivatedAt = &now
		c.Expiry = &expiry
	}), nil
}

func (m *MockAccessCodeRepo) MarkPending(ctx context.Context, tx repository.Tx, code, mac string, now time.Time) (bool, error) {
	return m.transition(code, []model.AccessCodeStatus{model.AccessCodeUnused}, func(c *model.AccessCode) {
		c.Status = model.AccessCodePending
		c.MACAddress = &mac
		c.UsedAt = &now
	}), nil
}

func (m *MockAccessCodeRepo) MarkActivated(ctx context.Context, tx repository.Tx, code string, now, expiry time.Time) (bool, error) {
	return m.transition(code, []model.AccessCodeStatus{model.AccessCodePending}, func(c *model.AccessCode) {
		c.Status = model.AccessCodeActivated
		c.ActivatedAt = &now
		c.Expiry = &expiry
	}), nil
}

func (m *MockAccessCodeRepo) MarkExpired(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	return m.transition(code, model.RunningStatuses, func(c *model.AccessCode) {
		c.Status = model.AccessCodeExpired
	}), nil
}

func (m *MockAccessCodeRepo) ListExpired(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.AccessCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.AccessCode
	for _, c := range m.data {
		if c.Status.Running() && c.Expiry != nil && !c.Expiry.After(now) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- In-memory ExclusionRepository ----

type MockExclusionRepo struct {
	mu     sync.Mutex
	nextID int64
	data   map[int64]*model.Exclusion

	FindByValueFunc func(ctx context.Context, tx repository.Tx, typ model.IdentifierType, value string) (*model.Exclusion, error)
}

var _ repository.ExclusionRepository = (*MockExclusionRepo)(nil)

func NewMockExclusionRepo() *MockExclusionRepo {
	return &MockExclusionRepo{data: make(map[int64]*model.Exclusion)}
}

func (m *MockExclusionRepo) Save(ctx context.Context, tx repository.Tx, e *model.Exclusion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.data {
		if ex.Type == e.Type && ex.Value == e.Value {
			return domain.ErrAlreadyExists
		}
	}
	m.nextID++
	e.ID = m.nextID
	cp := *e
	m.data[e.ID] = &cp
	return nil
}

func (m *MockExclusionRepo) FindByValue(ctx context.Context, tx repository.Tx, typ model.IdentifierType, value string) (*model.Exclusion, error) {
	if m.FindByValueFunc != nil {
		return m.FindByValueFunc(ctx, tx, typ, value)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.data {
		if ex.Type == typ && ex.Value == value {
			cp := *ex
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockExclusionRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Exclusion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Exclusion, 0, len(m.data))
	for _, ex := range m.data {
		cp := *ex
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockExclusionRepo) Delete(ctx context.Context, tx repository.Tx, id int64) (*model.Exclusion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ex, ok := m.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	delete(m.data, id)
	return ex, nil
}

// ---- TransactionManager ----

type MockTxManager struct {
	mu    sync.Mutex
	Calls int

	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc overrides it.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- Runner ----

// parallelRunner runs every job on its own goroutine, like the sweeper's pool.
type parallelRunner struct{}

func (parallelRunner) RunAll(ctx context.Context, jobs []func(ctx context.Context)) {
	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job func(ctx context.Context)) {
			defer wg.Done()
			job(ctx)
		}(job)
	}
	wg.Wait()
}

// =============================
// Helpers
// =============================

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func testCatalog() model.Catalog {
	c, err := model.NewCatalog(model.DefaultPackages())
	if err != nil {
		panic(err)
	}
	return c
}

func ptrTime(t time.Time) *time.Time { return &t }

func ptrStr(s string) *string { return &s }
