// Package service implements the application workflow: lifecycle, response
// submission, ad hoc fields, and the resubmission state machine. All aggregate
// mutations run inside the store's Execute callback so concurrent submissions
// for different travelers of one application serialize on the aggregate.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"visaflow/internal/application"
	"visaflow/internal/application/models"
	"visaflow/internal/catalog"
	"visaflow/internal/platform/metrics"
	"visaflow/internal/visibility"
	"visaflow/pkg/domain"
	dErrors "visaflow/pkg/domain-errors"
	"visaflow/pkg/platform/sentinel"
	"visaflow/pkg/requestcontext"
)

// Catalog is the slice of the product catalog service the workflow needs.
type Catalog interface {
	ListFields(ctx context.Context, productID domain.ProductID, includeInactive bool) ([]catalog.FieldDefinition, error)
}

// StatusEvent describes a status change worth notifying the applicant about.
type StatusEvent struct {
	ApplicationID domain.ApplicationID
	Number        string
	Email         string
	Status        models.Status
}

// Notifier delivers best-effort applicant notifications. Failures are logged
// and swallowed; they never roll back the underlying transition.
type Notifier interface {
	StatusChanged(ctx context.Context, ev StatusEvent) error
}

// Service owns application aggregates.
type Service struct {
	apps     application.Store
	catalog  Catalog
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewService(apps application.Store, cat Catalog, notifier Notifier, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{apps: apps, catalog: cat, notifier: notifier, logger: logger, metrics: m}
}

// CreateApplication opens a draft application for a customer.
func (s *Service) CreateApplication(ctx context.Context, productID domain.ProductID, customerID domain.CustomerID, email string) (*models.Application, error) {
	if _, err := s.catalog.ListFields(ctx, productID, true); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	app := &models.Application{
		ID:         domain.ApplicationID(uuid.New()),
		Number:     newApplicationNumber(now.Year()),
		ProductID:  productID,
		CustomerID: customerID,
		Email:      email,
		Status:     models.StatusDraft,
		Responses:  models.AnswerMap{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.apps.Create(ctx, app); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "application already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create application")
	}
	return app, nil
}

// GetApplication loads the aggregate.
func (s *Service) GetApplication(ctx context.Context, id domain.ApplicationID) (*models.Application, error) {
	app, err := s.apps.FindByID(ctx, id)
	if err != nil {
		return nil, wrapAppErr(err)
	}
	return app, nil
}

// AddTraveler appends a traveler row. Traveler 1 is the applicant and never
// gets a row; new ids start at 2.
func (s *Service) AddTraveler(ctx context.Context, id domain.ApplicationID, fullName string) (*models.Traveler, error) {
	now := requestcontext.Now(ctx)

	var added models.Traveler
	_, err := s.apps.Execute(ctx, id, func(a *models.Application) error {
		if a.Status.IsTerminal() {
			return dErrors.Newf(dErrors.CodeStateConflict, "cannot add travelers to a %s application", a.Status)
		}
		next := domain.ApplicantTravelerID + 1
		for _, t := range a.Travelers {
			if t.ID >= next {
				next = t.ID + 1
			}
		}
		added = models.Traveler{ID: next, FullName: fullName, Responses: models.AnswerMap{}}
		a.Travelers = append(a.Travelers, added)
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, wrapAppErr(err)
	}
	return &added, nil
}

// DeleteApplication removes the aggregate. Applications that left draft can
// only be removed administratively.
func (s *Service) DeleteApplication(ctx context.Context, id domain.ApplicationID, adminRemoval bool) error {
	app, err := s.apps.FindByID(ctx, id)
	if err != nil {
		return wrapAppErr(err)
	}
	if !adminRemoval && app.Status != models.StatusDraft {
		return dErrors.Newf(dErrors.CodeStateConflict, "cannot delete a %s application", app.Status)
	}
	if err := s.apps.Delete(ctx, id); err != nil {
		return wrapAppErr(err)
	}
	return nil
}

// ListFieldsWithResponses resolves the visible field list for a scope and
// view mode, merged with stored answers.
func (s *Service) ListFieldsWithResponses(ctx context.Context, id domain.ApplicationID, travelerID *domain.TravelerID, mode visibility.ViewMode) ([]visibility.Field, error) {
	app, err := s.apps.FindByID(ctx, id)
	if err != nil {
		return nil, wrapAppErr(err)
	}
	if travelerID != nil && !app.HasTravelerScope(*travelerID) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "traveler %d not found", *travelerID)
	}
	catalogFields, err := s.catalog.ListFields(ctx, app.ProductID, true)
	if err != nil {
		return nil, err
	}
	return visibility.Resolve(app, travelerID, mode, catalogFields), nil
}

// ResolveFieldDefinition finds the definition behind a field key on one
// application: catalog, ad hoc, or passport pseudo-field. Upload validation
// uses it before storing answer files.
func (s *Service) ResolveFieldDefinition(ctx context.Context, id domain.ApplicationID, key domain.FieldKey) (catalog.FieldDefinition, error) {
	app, err := s.apps.FindByID(ctx, id)
	if err != nil {
		return catalog.FieldDefinition{}, wrapAppErr(err)
	}
	catalogFields, err := s.catalog.ListFields(ctx, app.ProductID, true)
	if err != nil {
		return catalog.FieldDefinition{}, err
	}
	def, ok := visibility.Definition(app, key, catalogFields)
	if !ok {
		return catalog.FieldDefinition{}, dErrors.Newf(dErrors.CodeNotFound, "field %s not found", key)
	}
	return def, nil
}

// notifyStatusChanged fires the best-effort notification after a committed
// transition.
func (s *Service) notifyStatusChanged(ctx context.Context, app *models.Application) {
	if s.notifier == nil || app.Email == "" {
		return
	}
	ev := StatusEvent{
		ApplicationID: app.ID,
		Number:        app.Number,
		Email:         app.Email,
		Status:        app.Status,
	}
	if err := s.notifier.StatusChanged(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "status notification failed",
			"application_id", app.ID.String(),
			"status", string(app.Status),
			"error", err,
		)
	}
}

func (s *Service) recordTransition(to models.Status) {
	if s.metrics != nil {
		s.metrics.StatusTransitions.WithLabelValues(string(to)).Inc()
	}
}

func newApplicationNumber(year int) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("VF-%d-%s", year, suffix)
}

func wrapAppErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "application not found")
	}
	var derr *dErrors.Error
	if errors.As(err, &derr) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "application store failure")
}
