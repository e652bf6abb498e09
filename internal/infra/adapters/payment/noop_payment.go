package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"captive-portal/internal/domain"
	"captive-portal/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is an in-memory gateway for dev mode. Every payment it initiates
// settles as SUCCESSFUL on the first Verify unless an outcome is preset with SetOutcome.
type NoopPaymentGateway struct {
	mu      sync.Mutex
	seq     int64
	intents map[string]noopIntent
}

type noopIntent struct {
	identifier string
	amount     int64
	status     adapter.ProviderStatus
	createdAt  time.Time
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{
		intents: make(map[string]noopIntent),
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) next() string {
	g.seq++
	return fmt.Sprintf("noop-%d", g.seq)
}

func (g *NoopPaymentGateway) Initiate(ctx context.Context, identifier string, amount int64, packageRef string) (adapter.InitiateResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.next()
	g.intents[id] = noopIntent{identifier: identifier, amount: amount, status: adapter.ProviderSuccessful, createdAt: time.Now()}
	return adapter.InitiateResult{ProviderID: id, Status: adapter.ProviderPending}, nil
}

// SetOutcome fixes what Verify reports for providerID.
func (g *NoopPaymentGateway) SetOutcome(providerID string, status adapter.ProviderStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in := g.intents[providerID]
	in.status = status
	g.intents[providerID] = in
}

func (g *NoopPaymentGateway) Verify(ctx context.Context, providerID string) (adapter.VerifyResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.intents[providerID]
	if !ok {
		return adapter.VerifyResult{}, &adapter.GatewayError{Op: "verify", HTTPStatus: 404, ProviderStatus: "RESOURCE_NOT_FOUND", Err: domain.ErrGateway}
	}
	return adapter.VerifyResult{
		ProviderID: providerID,
		Status:     in.status,
		Amount:     in.amount,
		Identifier: in.identifier,
		Timestamp:  in.createdAt,
	}, nil
}

func (g *NoopPaymentGateway) Refund(ctx context.Context, providerID string, amount int64) (adapter.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if in, ok := g.intents[providerID]; ok {
		in.status = adapter.ProviderRefunded
		g.intents[providerID] = in
	}
	return adapter.RefundResult{RefundID: "refund-" + providerID, Status: adapter.ProviderRefunded}, nil
}
