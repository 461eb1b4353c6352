// Package directory exposes the customer/traveler passport attributes that
// mirror the reserved passport pseudo-field answers. Writes keep both
// representations in sync: updating an attribute also updates the stored
// answer under the corresponding reserved key.
package directory

import (
	"context"
	"errors"
	"log/slog"

	"visaflow/internal/application"
	"visaflow/internal/application/models"
	"visaflow/pkg/domain"
	dErrors "visaflow/pkg/domain-errors"
	"visaflow/pkg/platform/sentinel"
	"visaflow/pkg/requestcontext"
)

// Service reads and writes passport details for a traveler scope of an
// application. Traveler 1 is the applicant; its attributes live on the
// application record.
type Service struct {
	apps   application.Store
	logger *slog.Logger
}

func NewService(apps application.Store, logger *slog.Logger) *Service {
	return &Service{apps: apps, logger: logger}
}

// GetPassport returns the structured passport attributes for a scope.
func (s *Service) GetPassport(ctx context.Context, id domain.ApplicationID, travelerID domain.TravelerID) (*models.PassportDetails, error) {
	app, err := s.apps.FindByID(ctx, id)
	if err != nil {
		return nil, wrapDirectoryErr(err)
	}
	passport := app.PassportFor(travelerID)
	if passport == nil {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "traveler %d not found", travelerID)
	}
	details := *passport
	return &details, nil
}

// SetPassport overwrites the scope's passport attributes and mirrors each
// non-empty attribute into the response map under its reserved key, so a
// directory write and a pseudo-field answer stay interchangeable.
func (s *Service) SetPassport(ctx context.Context, id domain.ApplicationID, travelerID domain.TravelerID, details models.PassportDetails) error {
	now := requestcontext.Now(ctx)

	_, err := s.apps.Execute(ctx, id, func(a *models.Application) error {
		passport := a.PassportFor(travelerID)
		if passport == nil {
			return dErrors.Newf(dErrors.CodeNotFound, "traveler %d not found", travelerID)
		}
		*passport = details

		responses := a.ResponsesFor(travelerID)
		for _, key := range domain.PassportKeys() {
			value := details.Get(key)
			if value == "" {
				continue
			}
			ts := now
			responses[key] = models.Answer{Value: value, SubmittedAt: &ts}
		}
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		return wrapDirectoryErr(err)
	}
	return nil
}

func wrapDirectoryErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "application not found")
	}
	var derr *dErrors.Error
	if errors.As(err, &derr) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "directory store failure")
}
