package usecase

import (
	"context"
	"errors"

	"captive-portal/internal/domain"
	"captive-portal/internal/domain/model"
	"captive-portal/internal/domain/ports/repository"
	"captive-portal/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ ExclusionUseCase = (*exclusionUC)(nil)

// ExclusionUseCase is the administrative surface of the exclusion registry.
type ExclusionUseCase interface {
	Add(ctx context.Context, req Requester, typ model.IdentifierType, value, reason string, fromPayment, fromConnection bool) (*model.Exclusion, error)
	List(ctx context.Context, req Requester) ([]*model.Exclusion, error)
	Delete(ctx context.Context, req Requester, id int64) (*model.Exclusion, error)
}

type exclusionUC struct {
	exclusions repository.ExclusionRepository
	log        *zerolog.Logger
}

func NewExclusionUseCase(exclusions repository.ExclusionRepository, logger *zerolog.Logger) *exclusionUC {
	l := logger.With().Str("component", "ExclusionUC").Logger()
	return &exclusionUC{exclusions: exclusions, log: &l}
}

func (u *exclusionUC) Add(ctx context.Context, req Requester, typ model.IdentifierType, value, reason string, fromPayment, fromConnection bool) (*model.Exclusion, error) {
	defer logging.TraceDuration(u.log, "ExclusionUC.Add")()
	if err := requirePrivileged(req); err != nil {
		return nil, err
	}
	e, err := model.NewExclusion(typ, value, reason, fromPayment, fromConnection)
	if err != nil {
		return nil, err
	}
	if err := u.exclusions.Save(ctx, repository.NoTX, e); err != nil {
		return nil, err
	}
	u.log.Info().Int64("id", e.ID).Str("type", string(e.Type)).Str("by", req.ID).
		Bool("payment", e.ExcludeFromPayment).Bool("connection", e.ExcludeFromConnection).Msg("exclusion added")
	return e, nil
}

func (u *exclusionUC) List(ctx context.Context, req Requester) ([]*model.Exclusion, error) {
	if err := requirePrivileged(req); err != nil {
		return nil, err
	}
	return u.exclusions.List(ctx, repository.NoTX)
}

func (u *exclusionUC) Delete(ctx context.Context, req Requester, id int64) (*model.Exclusion, error) {
	defer logging.TraceDuration(u.log, "ExclusionUC.Delete")()
	if err := requirePrivileged(req); err != nil {
		return nil, err
	}
	e, err := u.exclusions.Delete(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	u.log.Info().Int64("id", id).Str("type", string(e.Type)).Str("by", req.ID).Msg("exclusion removed")
	return e, nil
}

// findExclusion returns nil when no exclusion is registered for the value.
func findExclusion(ctx context.Context, repo repository.ExclusionRepository, typ model.IdentifierType, value string) (*model.Exclusion, error) {
	if value == "" {
		return nil, nil
	}
	switch typ {
	case model.IdentifierMAC:
		value = model.NormalizeMAC(value)
	case model.IdentifierPhone:
		value = model.NormalizePhone(value)
	}
	e, err := repo.FindByValue(ctx, repository.NoTX, typ, value)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return e, err
}
