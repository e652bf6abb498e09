package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"captive-portal/internal/domain"
	"captive-portal/internal/domain/model"
	"captive-portal/internal/domain/ports/adapter"
	"captive-portal/internal/domain/ports/repository"
	"captive-portal/internal/infra/logging"
	"captive-portal/internal/infra/metrics"
)

const (
	MaxBatchSize = 100
	// maxCodeAttempts bounds collision retries per code as the finite space fills.
	maxCodeAttempts = 10
)

// BatchResult carries the codes that were committed plus the remaining code-space capacity.
// It is returned alongside an error when a batch stops midway.
type BatchResult struct {
	Codes     []*model.AccessCode
	Remaining int64
}

// Compile-time check
var _ AccessCodeUseCase = (*accessCodeUC)(nil)

type AccessCodeUseCase interface {
	GenerateBatch(ctx context.Context, req Requester, planID string, quantity int) (*BatchResult, error)
	// Activate binds an unused code to deviceID and starts its countdown.
	Activate(ctx context.Context, code, deviceID string) (*model.AccessCode, error)
	// Bind is the deferred path: binds deviceID without starting the countdown.
	Bind(ctx context.Context, code, deviceID string) (*model.AccessCode, error)
	// StartSession starts the countdown of a bound (pending) code.
	StartSession(ctx context.Context, code string) (*model.AccessCode, error)
	CheckAccess(ctx context.Context, code string) (*model.CodeAccess, error)
	SweepExpired(ctx context.Context, r Runner) (SweepResult, error)
}

type accessCodeUC struct {
	codes        repository.AccessCodeRepository
	disconnector adapter.Disconnector
	gen          CodeGenerator
	tm           repository.TransactionManager
	catalog      model.Catalog
	log          *zerolog.Logger
	dev          bool
	sweepLimit   int
}

func NewAccessCodeUseCase(
	codes repository.AccessCodeRepository,
	disconnector adapter.Disconnector,
	gen CodeGenerator,
	tm repository.TransactionManager,
	catalog model.Catalog,
	logger *zerolog.Logger,
	dev bool,
) *accessCodeUC {
	l := logger.With().Str("component", "AccessCodeUC").Logger()
	return &accessCodeUC{
		codes:        codes,
		disconnector: disconnector,
		gen:          gen,
		tm:           tm,
		catalog:      catalog,
		log:          &l,
		dev:          dev,
		sweepLimit:   500,
	}
}

func (u *accessCodeUC) GenerateBatch(ctx context.Context, req Requester, planID string, quantity int) (*BatchResult, error) {
	defer logging.TraceDuration(u.log, "AccessCodeUC.GenerateBatch")()
	if err := requirePrivileged(req); err != nil {
		return nil, err
	}
	pkg, ok := u.catalog.Lookup(planID)
	if !ok {
		return nil, domain.ErrInvalidPlan
	}
	if quantity < 1 || quantity > MaxBatchSize {
		return nil, domain.ErrInvalidQuantity
	}

	res := &BatchResult{Codes: make([]*model.AccessCode, 0, quantity)}
	var batchErr error
	for i := 0; i < quantity; i++ {
		c, err := u.generateOne(ctx, pkg)
		if err != nil {
			batchErr = err
			break
		}
		res.Codes = append(res.Codes, c)
	}

	remaining, err := u.remaining(ctx)
	if err != nil && batchErr == nil {
		batchErr = err
	}
	res.Remaining = remaining
	metrics.AddCodesGenerated(pkg.ID, len(res.Codes))
	metrics.SetCodeSpaceRemaining(remaining)

	ev := u.log.Info()
	if batchErr != nil {
		ev = u.log.Error().Err(batchErr)
	}
	ev.Str("plan", pkg.ID).Str("by", req.ID).Int("requested", quantity).Int("generated", len(res.Codes)).
		Int64("remaining", remaining).Msg("access code batch")
	return res, batchErr
}

// generateOne commits a single new code in its own transaction.
func (u *accessCodeUC) generateOne(ctx context.Context, pkg model.Package) (*model.AccessCode, error) {
	var out *model.AccessCode
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		for attempt := 0; attempt < maxCodeAttempts; attempt++ {
			value, err := u.gen.Generate()
			if err != nil {
				return err
			}
			c := &model.AccessCode{
				Code:          value,
				PlanID:        pkg.ID,
				DurationHours: pkg.DurationHours,
				Price:         pkg.Price,
				Status:        model.AccessCodeUnused,
				CreatedAt:     time.Now(),
			}
			inserted, err := u.codes.Insert(ctx, tx, c)
			if err != nil {
				return err
			}
			if inserted {
				out = c
				return nil
			}
			u.log.Debug().Int("attempt", attempt+1).Msg("access code collision")
		}
		return domain.ErrCodeSpaceExhausted
	})
	return out, err
}

func (u *accessCodeUC) remaining(ctx context.Context) (int64, error) {
	n, err := u.codes.Count(ctx, repository.NoTX)
	if err != nil {
		return 0, err
	}
	space := u.gen.SpaceSize()
	if n >= space {
		return 0, nil
	}
	return space - n, nil
}

func (u *accessCodeUC) Activate(ctx context.Context, code, deviceID string) (*model.AccessCode, error) {
	defer logging.TraceDuration(u.log, "AccessCodeUC.Activate")()
	code, mac, err := normalizeRedemption(code, deviceID)
	if err != nil {
		return nil, err
	}
	c, err := u.codes.FindByCode(ctx, repository.NoTX, code)
	if err != nil {
		return nil, err
	}
	if c.Status != model.AccessCodeUnused {
		return nil, domain.ErrAlreadyUsed
	}

	now := time.Now()
	expiry := now.Add(c.Duration())
	ok, err := u.codes.MarkUsed(ctx, repository.NoTX, code, mac, now, expiry)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.IncCodeRedemption("activate", "lost_race")
		return nil, domain.ErrAlreadyUsed
	}
	metrics.IncCodeRedemption("activate", "ok")
	c.Status = model.AccessCodeUsed
	c.MACAddress = &mac
	c.UsedAt = &now
	c.ActivatedAt = &now
	c.Expiry = &expiry
	u.log.Info().Str("code", logging.Redact(code, u.dev)).Str("mac", logging.Redact(mac, u.dev)).
		Time("expiry", expiry).Msg("access code activated")
	return c, nil
}

func (u *accessCodeUC) Bind(ctx context.Context, code, deviceID string) (*model.AccessCode, error) {
	defer logging.TraceDuration(u.log, "AccessCodeUC.Bind")()
	code, mac, err := normalizeRedemption(code, deviceID)
	if err != nil {
		return nil, err
	}
	c, err := u.codes.FindByCode(ctx, repository.NoTX, code)
	if err != nil {
		return nil, err
	}
	if c.Status != model.AccessCodeUnused {
		return nil, domain.ErrAlreadyUsed
	}

	now := time.Now()
	ok, err := u.codes.MarkPending(ctx, repository.NoTX, code, mac, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.IncCodeRedemption("bind", "lost_race")
		return nil, domain.ErrAlreadyUsed
	}
	metrics.IncCodeRedemption("bind", "ok")
	c.Status = model.AccessCodePending
	c.MACAddress = &mac
	c.UsedAt = &now
	u.log.Info().Str("code", logging.Redact(code, u.dev)).Str("mac", logging.Redact(mac, u.dev)).Msg("access code bound")
	return c, nil
}

func (u *accessCodeUC) StartSession(ctx context.Context, code string) (*model.AccessCode, error) {
	defer logging.TraceDuration(u.log, "AccessCodeUC.StartSession")()
	code = normalizeCode(code)
	if code == "" {
		return nil, domain.ErrInvalidArgument
	}
	c, err := u.codes.FindByCode(ctx, repository.NoTX, code)
	if err != nil {
		return nil, err
	}
	if c.Status != model.AccessCodePending {
		return nil, domain.ErrNotPending
	}

	now := time.Now()
	expiry := now.Add(c.Duration())
	ok, err := u.codes.MarkActivated(ctx, repository.NoTX, code, now, expiry)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.IncCodeRedemption("start_session", "lost_race")
		return nil, domain.ErrNotPending
	}
	metrics.IncCodeRedemption("start_session", "ok")
	c.Status = model.AccessCodeActivated
	c.ActivatedAt = &now
	c.Expiry = &expiry
	u.log.Info().Str("code", logging.Redact(code, u.dev)).Time("expiry", expiry).Msg("access code session started")
	return c, nil
}

func (u *accessCodeUC) CheckAccess(ctx context.Context, code string) (*model.CodeAccess, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, domain.ErrInvalidArgument
	}
	c, err := u.codes.FindByCode(ctx, repository.NoTX, code)
	if err != nil {
		return nil, err
	}

	res := &model.CodeAccess{Code: c.Code, Expiry: c.Expiry}
	switch {
	case c.Status == model.AccessCodeUnused:
		res.Status = model.CodeAccessInvalid
	case c.Status == model.AccessCodePending:
		res.Status = model.CodeAccessPending
	case c.Status == model.AccessCodeExpired:
		res.Status = model.CodeAccessExpired
	case c.Status.Running():
		now := time.Now()
		if c.Expiry == nil || c.Expiry.Before(now) {
			// Losing this race to the sweeper is fine: the row is expired either way.
			if _, err := u.codes.MarkExpired(ctx, repository.NoTX, code); err != nil {
				return nil, err
			}
			res.Status = model.CodeAccessExpired
			return res, nil
		}
		res.Status = model.CodeAccessGranted
		res.Remaining = c.Expiry.Sub(now)
	default:
		return nil, domain.ErrInvalidTransition
	}
	return res, nil
}

// SweepExpired disconnects and expires every running code past its expiry.
func (u *accessCodeUC) SweepExpired(ctx context.Context, r Runner) (SweepResult, error) {
	defer logging.TraceDuration(u.log, "AccessCodeUC.SweepExpired")()
	rows, err := u.codes.ListExpired(ctx, repository.NoTX, time.Now(), u.sweepLimit)
	if err != nil {
		return SweepResult{}, err
	}

	var c sweepCounter
	jobs := make([]func(ctx context.Context), 0, len(rows))
	for _, ac := range rows {
		ac := ac
		jobs = append(jobs, func(ctx context.Context) {
			if ac.MACAddress != nil {
				if err := u.disconnector.Disconnect(ctx, *ac.MACAddress); err != nil {
					c.hookFailed()
					u.log.Warn().Err(err).Str("code", logging.Redact(ac.Code, u.dev)).
						Str("mac", logging.Redact(*ac.MACAddress, u.dev)).Msg("disconnect failed")
				}
			}
			ok, err := u.codes.MarkExpired(ctx, repository.NoTX, ac.Code)
			if err != nil {
				u.log.Error().Err(err).Str("code", logging.Redact(ac.Code, u.dev)).Msg("failed to expire access code")
				return
			}
			if ok {
				c.expired()
			}
		})
	}
	runAll(ctx, r, jobs)

	res := c.result()
	res.Scanned = len(rows)
	return res, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func normalizeRedemption(code, deviceID string) (string, string, error) {
	code = normalizeCode(code)
	mac := model.NormalizeMAC(deviceID)
	if code == "" || mac == "" {
		return "", "", domain.ErrInvalidArgument
	}
	return code, mac, nil
}
