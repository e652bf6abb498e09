package usecase

import (
	"context"
	"errors"
	"time"

	"captive-portal/internal/domain"
	"captive-portal/internal/domain/model"
	"captive-portal/internal/domain/ports/repository"
	"captive-portal/internal/infra/logging"

	"github.com/rs/zerolog"
)

const (
	ReasonExcluded        = "excluded"
	ReasonPaid            = "paid"
	ReasonNoActivePackage = "no_active_package"
)

// Decision is the outcome of an access check. Expiry is set when Granted.
type Decision struct {
	Granted bool
	Reason  string
	Expiry  *time.Time
}

// Compile-time check
var _ AccessUseCase = (*accessUC)(nil)

type AccessUseCase interface {
	HasAccess(ctx context.Context, identifier, mac string) (bool, error)
	Decide(ctx context.Context, identifier, mac string) (Decision, error)
}

type accessUC struct {
	exclusions   repository.ExclusionRepository
	transactions repository.TransactionRepository
	log          *zerolog.Logger
}

func NewAccessUseCase(exclusions repository.ExclusionRepository, transactions repository.TransactionRepository, logger *zerolog.Logger) *accessUC {
	l := logger.With().Str("component", "AccessUC").Logger()
	return &accessUC{exclusions: exclusions, transactions: transactions, log: &l}
}

func (u *accessUC) HasAccess(ctx context.Context, identifier, mac string) (bool, error) {
	d, err := u.Decide(ctx, identifier, mac)
	return d.Granted, err
}

// Decide applies, first match wins: a connection exclusion on either the phone
// or the MAC denies; an unexpired successful transaction grants; otherwise deny.
func (u *accessUC) Decide(ctx context.Context, identifier, mac string) (Decision, error) {
	defer logging.TraceDuration(u.log, "AccessUC.Decide")()
	identifier = model.NormalizePhone(identifier)
	if identifier == "" && mac == "" {
		return Decision{}, domain.ErrInvalidArgument
	}

	for _, probe := range []struct {
		typ   model.IdentifierType
		value string
	}{{model.IdentifierPhone, identifier}, {model.IdentifierMAC, mac}} {
		ex, err := findExclusion(ctx, u.exclusions, probe.typ, probe.value)
		if err != nil {
			return Decision{}, err
		}
		if ex != nil && ex.ExcludeFromConnection {
			return Decision{Reason: ReasonExcluded}, nil
		}
	}

	if identifier != "" {
		now := time.Now()
		t, err := u.transactions.FindActiveByPhone(ctx, repository.NoTX, identifier, now)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return Decision{}, err
		case t.Active(now):
			return Decision{Granted: true, Reason: ReasonPaid, Expiry: t.Expiry}, nil
		}
	}
	return Decision{Reason: ReasonNoActivePackage}, nil
}
