package service

import (
	"context"

	"github.com/google/uuid"

	"visaflow/internal/application/models"
	"visaflow/internal/catalog"
	"visaflow/pkg/domain"
	dErrors "visaflow/pkg/domain-errors"
	"visaflow/pkg/requestcontext"
)

// ResubmissionInput is one correction demand from an administrator. NewFields
// are minted as ad hoc fields in the same transaction and their keys join
// FieldKeys on the recorded request.
type ResubmissionInput struct {
	Target     models.RequestTarget
	TravelerID *domain.TravelerID
	FieldKeys  []domain.FieldKey
	NewFields  []catalog.FieldDefinition
	Note       string
}

func (in ResubmissionInput) validate() error {
	switch in.Target {
	case models.TargetApplication, models.TargetTraveler:
	default:
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown request target %q", in.Target)
	}
	if in.Target == models.TargetApplication && in.TravelerID != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "application-level requests cannot name a traveler")
	}
	if len(in.FieldKeys) == 0 && len(in.NewFields) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "a request needs field ids or new fields")
	}
	return nil
}

// RequestResubmission opens correction requests and moves the application to
// resubmission. Re-entrant: an application already in resubmission or any
// other in-process state accepts additional requests, which accumulate next
// to the open ones.
func (s *Service) RequestResubmission(ctx context.Context, id domain.ApplicationID, inputs []ResubmissionInput, actor string) ([]models.ResubmissionRequest, error) {
	if len(inputs) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no resubmission requests given")
	}
	for _, in := range inputs {
		if err := in.validate(); err != nil {
			return nil, err
		}
	}
	now := requestcontext.Now(ctx)

	var opened []models.ResubmissionRequest
	app, err := s.apps.Execute(ctx, id, func(a *models.Application) error {
		if err := a.CanTransitionTo(models.StatusResubmission); err != nil {
			return err
		}
		catalogFields, err := s.catalog.ListFields(ctx, a.ProductID, true)
		if err != nil {
			return err
		}

		opened = opened[:0]
		for _, in := range inputs {
			if in.Target == models.TargetTraveler && in.TravelerID != nil && !a.HasTravelerScope(*in.TravelerID) {
				return dErrors.Newf(dErrors.CodeNotFound, "traveler %d not found", *in.TravelerID)
			}

			keys := append([]domain.FieldKey(nil), in.FieldKeys...)
			for _, key := range keys {
				if !keyKnown(a, key, catalogFields) {
					return dErrors.Newf(dErrors.CodeInvalidInput, "unknown field %s", key)
				}
			}
			if len(in.NewFields) > 0 {
				minted, err := a.AddAdHocFields(in.TravelerID, in.NewFields)
				if err != nil {
					return err
				}
				for _, f := range minted {
					keys = append(keys, f.Key())
				}
			}

			request := models.ResubmissionRequest{
				ID:          uuid.NewString(),
				Target:      in.Target,
				TravelerID:  in.TravelerID,
				FieldKeys:   keys,
				Note:        in.Note,
				RequestedAt: now,
			}
			a.Requests = append(a.Requests, request)
			opened = append(opened, request)
		}

		a.ApplyTransition(models.StatusResubmission, actor, now)
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, wrapAppErr(err)
	}

	if s.metrics != nil {
		s.metrics.ResubmissionsRequested.Add(float64(len(opened)))
	}
	s.recordTransition(models.StatusResubmission)
	s.notifyStatusChanged(ctx, app)
	return opened, nil
}

// ActiveResubmissionRequests returns the unfulfilled requests. A legacy
// single-request representation is surfaced as one synthetic entry when the
// request list is empty.
func (s *Service) ActiveResubmissionRequests(ctx context.Context, id domain.ApplicationID) ([]models.ResubmissionRequest, error) {
	app, err := s.apps.FindByID(ctx, id)
	if err != nil {
		return nil, wrapAppErr(err)
	}
	if open := app.OpenRequests(); len(open) > 0 || len(app.Requests) > 0 {
		return open, nil
	}
	if len(app.LegacyFieldKeys) > 0 {
		return []models.ResubmissionRequest{{
			ID:         "legacy",
			Target:     legacyTarget(app),
			TravelerID: app.LegacyTravelerID,
			FieldKeys:  append([]domain.FieldKey(nil), app.LegacyFieldKeys...),
		}}, nil
	}
	return nil, nil
}

func legacyTarget(app *models.Application) models.RequestTarget {
	if app.LegacyTarget != "" {
		return app.LegacyTarget
	}
	return models.TargetApplication
}

// UpdateStatus moves the application to target. Writing the current status is
// a no-op that reports success without touching the aggregate or re-firing
// notifications.
func (s *Service) UpdateStatus(ctx context.Context, id domain.ApplicationID, target models.Status, actor string) (*models.Application, error) {
	now := requestcontext.Now(ctx)

	var changed bool
	app, err := s.apps.Execute(ctx, id, func(a *models.Application) error {
		if err := a.CanTransitionTo(target); err != nil {
			return err
		}
		changed = a.ApplyTransition(target, actor, now)
		return nil
	})
	if err != nil {
		return nil, wrapAppErr(err)
	}

	if changed {
		s.recordTransition(target)
		s.notifyStatusChanged(ctx, app)
	}
	return app, nil
}
