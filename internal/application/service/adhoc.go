package service

import (
	"context"

	"visaflow/internal/application/models"
	"visaflow/internal/catalog"
	"visaflow/pkg/domain"
	dErrors "visaflow/pkg/domain-errors"
	"visaflow/pkg/requestcontext"
)

// AddAdHocFields registers admin-defined questions on one application,
// scoped to a traveler when travelerID is set. Ids are minted from the
// aggregate's negative high-water mark inside the store transaction.
func (s *Service) AddAdHocFields(ctx context.Context, id domain.ApplicationID, travelerID *domain.TravelerID, defs []catalog.FieldDefinition) ([]models.AdHocField, error) {
	if len(defs) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no field definitions given")
	}
	now := requestcontext.Now(ctx)

	var minted []models.AdHocField
	_, err := s.apps.Execute(ctx, id, func(a *models.Application) error {
		if travelerID != nil && !a.HasTravelerScope(*travelerID) {
			return dErrors.Newf(dErrors.CodeNotFound, "traveler %d not found", *travelerID)
		}
		var err error
		minted, err = a.AddAdHocFields(travelerID, defs)
		if err != nil {
			return err
		}
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, wrapAppErr(err)
	}
	return minted, nil
}

// RemoveAdHocField deletes a registration. Stored answers keyed by the id
// remain, and the id is never minted again.
func (s *Service) RemoveAdHocField(ctx context.Context, id domain.ApplicationID, fieldID int64) error {
	now := requestcontext.Now(ctx)

	_, err := s.apps.Execute(ctx, id, func(a *models.Application) error {
		if err := a.RemoveAdHocField(fieldID); err != nil {
			return err
		}
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		return wrapAppErr(err)
	}
	return nil
}
