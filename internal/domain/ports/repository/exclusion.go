package repository

import (
	"context"

	"captive-portal/internal/domain/model"
)

type ExclusionRepository interface {
	// Save inserts a new exclusion and assigns its ID. Duplicate (type, value) is ErrAlreadyExists.
	Save(ctx context.Context, tx Tx, e *model.Exclusion) error
	FindByValue(ctx context.Context, tx Tx, typ model.IdentifierType, value string) (*model.Exclusion, error)
	List(ctx context.Context, tx Tx) ([]*model.Exclusion, error)
	// Delete removes the exclusion and returns what was removed.
	Delete(ctx context.Context, tx Tx, id int64) (*model.Exclusion, error)
}
