package directory

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visaflow/internal/application"
	"visaflow/internal/application/models"
	"visaflow/pkg/domain"
	dErrors "visaflow/pkg/domain-errors"
	"visaflow/pkg/requestcontext"
)

func setup(t *testing.T) (context.Context, *application.InMemoryStore, *Service, *models.Application) {
	t.Helper()
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := application.NewInMemoryStore()
	svc := NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	app := &models.Application{
		ID:        domain.ApplicationID(uuid.New()),
		Number:    "VF-2026-0001",
		Status:    models.StatusDraft,
		Responses: models.AnswerMap{},
		Travelers: []models.Traveler{{ID: 2, Responses: models.AnswerMap{}}},
	}
	require.NoError(t, store.Create(ctx, app))
	return ctx, store, svc, app
}

func TestSetPassport_MirrorsIntoResponses(t *testing.T) {
	ctx, store, svc, app := setup(t)

	err := svc.SetPassport(ctx, app.ID, domain.ApplicantTravelerID, models.PassportDetails{
		Number:           "P1234567",
		ResidenceCountry: "DE",
	})
	require.NoError(t, err)

	stored, err := store.FindByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "P1234567", stored.Passport.Number)
	assert.Equal(t, "P1234567", stored.Responses[domain.FieldKeyPassportNumber].Value)
	assert.Equal(t, "DE", stored.Responses[domain.FieldKeyResidenceCountry].Value)
	assert.NotContains(t, stored.Responses, domain.FieldKeyPassportExpiry,
		"empty attributes are not mirrored")
}

func TestSetPassport_TravelerScope(t *testing.T) {
	ctx, store, svc, app := setup(t)

	err := svc.SetPassport(ctx, app.ID, 2, models.PassportDetails{Number: "X9876543"})
	require.NoError(t, err)

	stored, err := store.FindByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Passport.Number, "applicant record untouched")
	assert.Equal(t, "X9876543", stored.Travelers[0].Passport.Number)
	assert.Equal(t, "X9876543", stored.Travelers[0].Responses[domain.FieldKeyPassportNumber].Value)
}

func TestGetPassport(t *testing.T) {
	ctx, _, svc, app := setup(t)

	require.NoError(t, svc.SetPassport(ctx, app.ID, domain.ApplicantTravelerID, models.PassportDetails{Number: "P1234567"}))

	details, err := svc.GetPassport(ctx, app.ID, domain.ApplicantTravelerID)
	require.NoError(t, err)
	assert.Equal(t, "P1234567", details.Number)

	_, err = svc.GetPassport(ctx, app.ID, 9)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = svc.GetPassport(ctx, domain.ApplicationID(uuid.New()), domain.ApplicantTravelerID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
