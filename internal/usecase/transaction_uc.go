// File: internal/usecase/transaction_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"captive-portal/internal/domain"
	"captive-portal/internal/domain/model"
	"captive-portal/internal/domain/ports/adapter"
	"captive-portal/internal/domain/ports/repository"
	"captive-portal/internal/infra/logging"
	"captive-portal/internal/infra/metrics"
)

// Compile-time check
var _ TransactionUseCase = (*transactionUC)(nil)

type TransactionUseCase interface {
	Packages() []model.Package
	// Initiate starts a purchase of packageID for identifier (a phone number).
	Initiate(ctx context.Context, identifier, packageID string) (*model.Transaction, error)
	// Reconcile asks the gateway for the outcome of a PENDING transaction and settles it.
	// Terminal transactions are returned as stored without contacting the gateway.
	Reconcile(ctx context.Context, transactionID string) (*model.Transaction, error)
	// RetryRefund re-attempts the refund of a provider-declined transaction.
	RetryRefund(ctx context.Context, transactionID string) (*model.Transaction, error)
	SweepExpired(ctx context.Context, r Runner) (SweepResult, error)
	History(ctx context.Context, identifier string) ([]*model.Transaction, error)
	List(ctx context.Context, req Requester, limit, offset int) ([]*model.Transaction, error)
}

type transactionUC struct {
	transactions repository.TransactionRepository
	exclusions   repository.ExclusionRepository
	gateway      adapter.PaymentGateway
	disconnector adapter.Disconnector
	tm           repository.TransactionManager
	catalog      model.Catalog
	log          *zerolog.Logger
	dev          bool
	sweepLimit   int
}

func NewTransactionUseCase(
	transactions repository.TransactionRepository,
	exclusions repository.ExclusionRepository,
	gateway adapter.PaymentGateway,
	disconnector adapter.Disconnector,
	tm repository.TransactionManager,
	catalog model.Catalog,
	logger *zerolog.Logger,
	dev bool,
) *transactionUC {
	l := logger.With().Str("component", "TransactionUC").Logger()
	return &transactionUC{
		transactions: transactions,
		exclusions:   exclusions,
		gateway:      gateway,
		disconnector: disconnector,
		tm:           tm,
		catalog:      catalog,
		log:          &l,
		dev:          dev,
		sweepLimit:   500,
	}
}

func (u *transactionUC) Packages() []model.Package {
	return u.catalog.List()
}

func (u *transactionUC) Initiate(ctx context.Context, identifier, packageID string) (*model.Transaction, error) {
	defer logging.TraceDuration(u.log, "TransactionUC.Initiate")()

	pkg, ok := u.catalog.Lookup(packageID)
	if !ok {
		return nil, domain.ErrUnknownPackage
	}
	identifier = model.NormalizePhone(identifier)
	if identifier == "" {
		return nil, domain.ErrInvalidArgument
	}

	ex, err := findExclusion(ctx, u.exclusions, model.IdentifierPhone, identifier)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if ex != nil && ex.ExcludeFromPayment {
		expiry := now.Add(pkg.Duration())
		t := &model.Transaction{
			TransactionID: ulid.Make().String(),
			PhoneNumber:   identifier,
			PackageID:     pkg.ID,
			Amount:        0,
			Provider:      model.ProviderExempt,
			Status:        model.TransactionStatusSuccessful,
			Expiry:        &expiry,
			CreatedAt:     now,
			UpdatedAt:     now,
			CompletedAt:   &now,
		}
		if err := u.transactions.Save(ctx, repository.NoTX, t); err != nil {
			return nil, err
		}
		metrics.IncTransaction(string(t.Status), t.Provider)
		u.log.Info().Str("transaction_id", t.TransactionID).Str("phone", logging.Redact(identifier, u.dev)).
			Str("package", pkg.ID).Msg("payment-exempt session granted")
		return t, nil
	}

	res, err := u.gateway.Initiate(ctx, identifier, pkg.Price, pkg.ID)
	if err != nil {
		u.log.Warn().Err(err).Str("package", pkg.ID).Msg("gateway initiate failed")
		if errors.Is(err, domain.ErrGatewayUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrGatewayUnavailable, err)
	}

	t := &model.Transaction{
		TransactionID: res.ProviderID,
		PhoneNumber:   identifier,
		PackageID:     pkg.ID,
		Amount:        pkg.Price,
		Provider:      u.gateway.Name(),
		Status:        model.TransactionStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	// A provider may settle synchronously; apply the same transition a Reconcile would.
	switch res.Status {
	case adapter.ProviderSuccessful:
		expiry := now.Add(pkg.Duration())
		t.Status = model.TransactionStatusSuccessful
		t.Expiry = &expiry
		t.CompletedAt = &now
	case adapter.ProviderFailed:
		t.Status = model.TransactionStatusFailed
		t.FailureReason = model.FailureProviderDeclined
		t.CompletedAt = &now
	}
	if err := u.transactions.Save(ctx, repository.NoTX, t); err != nil {
		u.log.Error().Err(err).Str("transaction_id", t.TransactionID).Msg("failed to persist initiated transaction")
		return nil, err
	}
	u.recordSettled(t)
	u.log.Info().Str("transaction_id", t.TransactionID).Str("phone", logging.Redact(identifier, u.dev)).
		Str("package", pkg.ID).Str("status", string(t.Status)).Msg("transaction initiated")
	return t, nil
}

func (u *transactionUC) Reconcile(ctx context.Context, transactionID string) (*model.Transaction, error) {
	defer logging.TraceDuration(u.log, "TransactionUC.Reconcile")()

	t, err := u.transactions.FindByID(ctx, repository.NoTX, transactionID)
	if err != nil {
		return nil, err
	}
	if t.Status.IsTerminal() {
		return t, nil
	}

	// Verify runs without a row lock; the locked re-read below decides who settles.
	res, verr := u.gateway.Verify(ctx, t.TransactionID)
	if verr == nil && res.Status != adapter.ProviderSuccessful && res.Status != adapter.ProviderFailed &&
		res.Status != adapter.ProviderRefunded {
		return t, nil
	}

	// Settlement outlives a caller that hangs up mid-request.
	settleCtx := context.WithoutCancel(ctx)
	var (
		out      *model.Transaction
		declined bool
		settled  bool
	)
	err = u.tm.WithTx(settleCtx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		cur, err := u.transactions.FindByID(ctx, tx, t.TransactionID)
		if err != nil {
			return err
		}
		out = cur
		if cur.Status.IsTerminal() {
			return nil
		}

		now := time.Now()
		next := *cur
		next.CompletedAt = &now
		var ok bool
		switch {
		case verr != nil:
			next.Status = model.TransactionStatusFailed
			next.FailureReason = model.FailureGatewayError
			ok, err = u.transactions.MarkFailed(ctx, tx, cur.TransactionID, model.FailureGatewayError, now)
		case res.Status == adapter.ProviderSuccessful:
			pkg, found := u.catalog.Lookup(cur.PackageID)
			if !found {
				return domain.ErrUnknownPackage
			}
			if res.Amount != 0 && res.Amount != cur.Amount {
				u.log.Warn().Str("transaction_id", cur.TransactionID).Int64("expected", cur.Amount).
					Int64("reported", res.Amount).Msg("provider reported a different amount")
			}
			expiry := now.Add(pkg.Duration())
			next.Status = model.TransactionStatusSuccessful
			next.Expiry = &expiry
			ok, err = u.transactions.MarkSuccessful(ctx, tx, cur.TransactionID, expiry, now)
		case res.Status == adapter.ProviderFailed:
			declined = true
			next.Status = model.TransactionStatusFailed
			next.FailureReason = model.FailureProviderDeclined
			ok, err = u.transactions.MarkFailed(ctx, tx, cur.TransactionID, model.FailureProviderDeclined, now)
		default:
			// The provider already returned the money; record PENDING -> FAILED -> REFUNDED without a refund call.
			next.Status = model.TransactionStatusRefunded
			next.FailureReason = model.FailureProviderDeclined
			ok, err = u.transactions.MarkFailed(ctx, tx, cur.TransactionID, model.FailureProviderDeclined, now)
			if err == nil && ok {
				ok, err = u.transactions.MarkRefunded(ctx, tx, cur.TransactionID)
			}
		}
		if err != nil {
			return err
		}
		if !ok {
			// Lost the race; report what the winner stored.
			declined = false
			out, err = u.transactions.FindByID(ctx, tx, cur.TransactionID)
			return err
		}
		next.UpdatedAt = now
		out = &next
		settled = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if settled {
		u.recordSettled(out)
	}

	if verr != nil && settled {
		u.log.Warn().Err(verr).Str("transaction_id", transactionID).Msg("verify failed, transaction marked failed")
		return out, verr
	}
	if declined {
		// Refund is best-effort; the reconciler retries failures out of band.
		if refunded, err := u.refund(settleCtx, out); err == nil {
			out = refunded
		}
	}
	u.log.Info().Str("transaction_id", transactionID).Str("status", string(out.Status)).Msg("transaction reconciled")
	return out, nil
}

func (u *transactionUC) RetryRefund(ctx context.Context, transactionID string) (*model.Transaction, error) {
	defer logging.TraceDuration(u.log, "TransactionUC.RetryRefund")()
	t, err := u.transactions.FindByID(ctx, repository.NoTX, transactionID)
	if err != nil {
		return nil, err
	}
	if t.Status != model.TransactionStatusFailed || t.FailureReason != model.FailureProviderDeclined {
		return t, nil
	}
	return u.refund(ctx, t)
}

func (u *transactionUC) refund(ctx context.Context, t *model.Transaction) (*model.Transaction, error) {
	if t.Provider == model.ProviderExempt || t.Amount == 0 {
		return t, nil
	}
	res, err := u.gateway.Refund(ctx, t.TransactionID, t.Amount)
	if err == nil && res.Status == adapter.ProviderFailed {
		err = fmt.Errorf("%w: refund declined", domain.ErrGateway)
	}
	if err != nil {
		metrics.IncRefund("failed")
		u.log.Error().Err(err).Str("transaction_id", t.TransactionID).Int64("amount", t.Amount).
			Int("attempt", t.RefundAttempts+1).Msg("refund failed, transaction stays FAILED")
		if _, rerr := u.transactions.RecordRefundAttempt(context.WithoutCancel(ctx), repository.NoTX, t.TransactionID); rerr != nil {
			u.log.Error().Err(rerr).Str("transaction_id", t.TransactionID).Msg("failed to record refund attempt")
		}
		return t, err
	}
	metrics.IncRefund("ok")

	ok, err := u.transactions.MarkRefunded(ctx, repository.NoTX, t.TransactionID)
	if err != nil {
		u.log.Error().Err(err).Str("transaction_id", t.TransactionID).Msg("refund issued but not recorded")
		return t, err
	}
	if !ok {
		return u.transactions.FindByID(ctx, repository.NoTX, t.TransactionID)
	}
	metrics.IncTransaction(string(model.TransactionStatusRefunded), t.Provider)
	cp := *t
	cp.Status = model.TransactionStatusRefunded
	cp.UpdatedAt = time.Now()
	u.log.Info().Str("transaction_id", t.TransactionID).Str("refund_id", res.RefundID).Msg("transaction refunded")
	return &cp, nil
}

// SweepExpired disconnects and expires every SUCCESSFUL transaction whose expiry has passed.
// A failing disconnect is counted and logged; the row is expired regardless.
func (u *transactionUC) SweepExpired(ctx context.Context, r Runner) (SweepResult, error) {
	defer logging.TraceDuration(u.log, "TransactionUC.SweepExpired")()
	rows, err := u.transactions.ListExpired(ctx, repository.NoTX, time.Now(), u.sweepLimit)
	if err != nil {
		return SweepResult{}, err
	}

	var c sweepCounter
	jobs := make([]func(ctx context.Context), 0, len(rows))
	for _, t := range rows {
		t := t
		jobs = append(jobs, func(ctx context.Context) {
			if err := u.disconnector.Disconnect(ctx, t.PhoneNumber); err != nil {
				c.hookFailed()
				u.log.Warn().Err(err).Str("transaction_id", t.TransactionID).
					Str("phone", logging.Redact(t.PhoneNumber, u.dev)).Msg("disconnect failed")
			}
			ok, err := u.transactions.MarkExpired(ctx, repository.NoTX, t.TransactionID)
			if err != nil {
				u.log.Error().Err(err).Str("transaction_id", t.TransactionID).Msg("failed to expire transaction")
				return
			}
			if ok {
				c.expired()
				metrics.IncTransaction(string(model.TransactionStatusExpired), t.Provider)
			}
		})
	}
	runAll(ctx, r, jobs)

	res := c.result()
	res.Scanned = len(rows)
	return res, nil
}

// recordSettled counts a transaction entering its current status. Revenue follows SUCCESSFUL.
func (u *transactionUC) recordSettled(t *model.Transaction) {
	metrics.IncTransaction(string(t.Status), t.Provider)
	if t.Status == model.TransactionStatusSuccessful {
		metrics.AddRevenue(t.PackageID, t.Amount)
	}
}

func (u *transactionUC) History(ctx context.Context, identifier string) ([]*model.Transaction, error) {
	identifier = model.NormalizePhone(identifier)
	if identifier == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.transactions.ListByPhone(ctx, repository.NoTX, identifier)
}

func (u *transactionUC) List(ctx context.Context, req Requester, limit, offset int) ([]*model.Transaction, error) {
	if err := requirePrivileged(req); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = 100
	case limit > 500:
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	return u.transactions.List(ctx, repository.NoTX, limit, offset)
}
