package application

import (
	"context"

	"visaflow/internal/application/models"
	"visaflow/pkg/domain"
)

// Store persists application aggregates. Execute loads the aggregate under a
// write lock, applies fn, and commits the result if fn returns nil; the
// request list, the ad hoc registry, and all answer maps are read and written
// as one unit so concurrent submissions cannot interleave.
type Store interface {
	Create(ctx context.Context, app *models.Application) error
	FindByID(ctx context.Context, id domain.ApplicationID) (*models.Application, error)
	Delete(ctx context.Context, id domain.ApplicationID) error
	Execute(ctx context.Context, id domain.ApplicationID, fn func(*models.Application) error) (*models.Application, error)
}
