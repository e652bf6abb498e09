package model

import "time"

type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "PENDING"
	TransactionStatusSuccessful TransactionStatus = "SUCCESSFUL"
	TransactionStatusFailed     TransactionStatus = "FAILED"
	TransactionStatusExpired    TransactionStatus = "EXPIRED"
	TransactionStatusRefunded   TransactionStatus = "REFUNDED"
)

// ProviderExempt marks transactions synthesized for payment-excluded identifiers.
const ProviderExempt = "exempt"

// Failure reasons recorded on FAILED transactions. Only provider declines are refunded.
const (
	FailureProviderDeclined = "provider_declined"
	FailureGatewayError     = "gateway_error"
)

// MaxRefundAttempts caps background refund retries; rows past it need manual follow-up.
const MaxRefundAttempts = 5

var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending:    {TransactionStatusSuccessful, TransactionStatusFailed},
	TransactionStatusSuccessful: {TransactionStatusExpired},
	TransactionStatusFailed:     {TransactionStatusRefunded},
}

// CanTransitionTo reports whether s -> next is a legal transaction transition.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, t := range transactionTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// IsTerminal is true once the reconciliation protocol has nothing left to ask the gateway.
func (s TransactionStatus) IsTerminal() bool { return s != TransactionStatusPending }

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusSuccessful, TransactionStatusFailed,
		TransactionStatusExpired, TransactionStatusRefunded:
		return true
	}
	return false
}

// Transaction is one purchase attempt. Amount is in minor units (cents).
type Transaction struct {
	TransactionID string
	PhoneNumber   string
	PackageID     string
	Amount        int64
	Provider      string
	Status        TransactionStatus
	FailureReason string
	// RefundAttempts counts failed refund calls against a provider-declined row.
	RefundAttempts int
	Expiry         *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

// Active reports a paid session that has not lapsed at now.
func (t *Transaction) Active(now time.Time) bool {
	return t.Status == TransactionStatusSuccessful && t.Expiry != nil && t.Expiry.After(now)
}
