package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"captive-portal/internal/domain"
)

// ProviderStatus is the provider-side state of a payment, normalised by the adapter.
type ProviderStatus string

const (
	ProviderPending    ProviderStatus = "PENDING"
	ProviderSuccessful ProviderStatus = "SUCCESSFUL"
	ProviderFailed     ProviderStatus = "FAILED"
	ProviderRefunded   ProviderStatus = "REFUNDED"
)

type InitiateResult struct {
	ProviderID string
	Status     ProviderStatus
}

type VerifyResult struct {
	ProviderID string
	Status     ProviderStatus
	Amount     int64 // minor units
	Identifier string
	Timestamp  time.Time
}

type RefundResult struct {
	RefundID string
	Status   ProviderStatus
}

// PaymentGateway is the port for the mobile-money provider. Implementations
// bound every call with a timeout and never retry; retry policy belongs to the caller.
type PaymentGateway interface {
	Name() string

	// Initiate asks the provider to collect amount from identifier for packageRef.
	Initiate(ctx context.Context, identifier string, amount int64, packageRef string) (InitiateResult, error)
	// Verify returns the provider's current view of a payment.
	Verify(ctx context.Context, providerID string) (VerifyResult, error)
	// Refund returns amount for a collected payment.
	Refund(ctx context.Context, providerID string, amount int64) (RefundResult, error)
}

// GatewayError is a network or non-2xx failure talking to the provider.
// HTTPStatus is 0 for transport failures.
type GatewayError struct {
	Op             string
	HTTPStatus     int
	ProviderStatus string
	Err            error
}

func (e *GatewayError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("gateway %s: http %d %s", e.Op, e.HTTPStatus, e.ProviderStatus)
	}
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func (e *GatewayError) Is(target error) bool { return target == domain.ErrGateway }

// AsGatewayError extracts the provider failure details for logging.
func AsGatewayError(err error) (*GatewayError, bool) {
	var ge *GatewayError
	ok := errors.As(err, &ge)
	return ge, ok
}
