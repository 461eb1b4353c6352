package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"visaflow/internal/application"
	"visaflow/internal/application/models"
	"visaflow/internal/catalog"
	"visaflow/internal/visibility"
	"visaflow/pkg/domain"
	dErrors "visaflow/pkg/domain-errors"
	"visaflow/pkg/requestcontext"
)

type recordingNotifier struct {
	events []StatusEvent
}

func (n *recordingNotifier) StatusChanged(_ context.Context, ev StatusEvent) error {
	n.events = append(n.events, ev)
	return nil
}

type ApplicationServiceSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	apps     *application.InMemoryStore
	catalog  *catalog.Service
	notifier *recordingNotifier
	service  *Service

	product    *catalog.Product
	nameField  catalog.FieldDefinition
	photoField catalog.FieldDefinition
}

func TestApplicationServiceSuite(t *testing.T) {
	suite.Run(t, new(ApplicationServiceSuite))
}

func (s *ApplicationServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.apps = application.NewInMemoryStore()
	s.catalog = catalog.NewService(catalog.NewInMemoryStore(), nil, logger, nil)
	s.notifier = &recordingNotifier{}
	s.service = NewService(s.apps, s.catalog, s.notifier, logger, nil)

	var err error
	s.product, err = s.catalog.CreateProduct(s.ctx, "Schengen Tourist Visa")
	s.Require().NoError(err)

	added, err := s.catalog.AddField(s.ctx, s.product.ID, catalog.FieldDefinition{
		Type: catalog.FieldTypeText, Question: "Full name", Required: true, DisplayOrder: 1, Active: true,
	})
	s.Require().NoError(err)
	s.nameField = *added

	added, err = s.catalog.AddField(s.ctx, s.product.ID, catalog.FieldDefinition{
		Type: catalog.FieldTypeUpload, Question: "Photo", Required: true, DisplayOrder: 2, Active: true,
		AllowedFileTypes: []string{"png", "jpg"}, MaxFileSizeMB: 5,
	})
	s.Require().NoError(err)
	s.photoField = *added
}

func travelerRef(id domain.TravelerID) *domain.TravelerID { return &id }

func (s *ApplicationServiceSuite) newApplication() *models.Application {
	app, err := s.service.CreateApplication(s.ctx, s.product.ID, domain.CustomerID(uuid.New()), "applicant@example.com")
	s.Require().NoError(err)
	return app
}

// fillPassport stores the four passport attributes for a scope directly so
// full-form tests can focus on catalog fields.
func (s *ApplicationServiceSuite) fillPassport(id domain.ApplicationID, scope domain.TravelerID) {
	_, err := s.apps.Execute(s.ctx, id, func(a *models.Application) error {
		p := a.PassportFor(scope)
		p.Number = "P1234567"
		p.ExpiryDate = "2030-01-01"
		p.ResidenceCountry = "DE"
		p.HasSchengenVisa = "no"
		return nil
	})
	s.Require().NoError(err)
}

// setStatus forces an application into a workflow state for test setup.
func (s *ApplicationServiceSuite) setStatus(id domain.ApplicationID, status models.Status) {
	_, err := s.apps.Execute(s.ctx, id, func(a *models.Application) error {
		a.Status = status
		return nil
	})
	s.Require().NoError(err)
}

func (s *ApplicationServiceSuite) TestCreateApplication() {
	app := s.newApplication()

	s.Equal(models.StatusDraft, app.Status)
	s.NotEmpty(app.Number)
	s.Equal(s.product.ID, app.ProductID)

	_, err := s.service.CreateApplication(s.ctx, domain.ProductID(uuid.New()), domain.CustomerID(uuid.New()), "")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "unknown product")
}

func (s *ApplicationServiceSuite) TestAddTraveler_AssignsSequentialIDs() {
	app := s.newApplication()

	first, err := s.service.AddTraveler(s.ctx, app.ID, "Second Traveler")
	s.Require().NoError(err)
	s.Equal(domain.TravelerID(2), first.ID)

	second, err := s.service.AddTraveler(s.ctx, app.ID, "Third Traveler")
	s.Require().NoError(err)
	s.Equal(domain.TravelerID(3), second.ID)
}

func (s *ApplicationServiceSuite) TestSubmitResponses_MissingRequiredFieldFails() {
	app := s.newApplication()
	s.fillPassport(app.ID, domain.ApplicantTravelerID)

	_, err := s.service.SubmitResponses(s.ctx, app.ID, nil, map[domain.FieldKey]AnswerInput{
		s.nameField.Key(): {Value: "Jane"},
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	stored, err := s.service.GetApplication(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Empty(stored.Responses, "failed submissions persist nothing")
}

func (s *ApplicationServiceSuite) TestSubmitResponses_FullForm() {
	app := s.newApplication()
	s.fillPassport(app.ID, domain.ApplicantTravelerID)

	result, err := s.service.SubmitResponses(s.ctx, app.ID, nil, map[domain.FieldKey]AnswerInput{
		s.nameField.Key():  {Value: "Jane"},
		s.photoField.Key(): {FilePath: "uploads/photo.png", FileName: "photo.png", FileSize: 1024},
	})
	s.Require().NoError(err)
	s.Len(result.AcceptedKeys, 2)
	s.Empty(result.FilteredKeys)

	stored := result.Application
	s.Equal("Jane", stored.Responses[s.nameField.Key()].Value)
	s.Equal("uploads/photo.png", stored.Responses[s.photoField.Key()].FilePath)
	s.Require().NotNil(stored.Responses[s.nameField.Key()].SubmittedAt)
	s.Equal(s.now, *stored.Responses[s.nameField.Key()].SubmittedAt)
}

func (s *ApplicationServiceSuite) TestSubmitResponses_PassportKeysMirrorAttributes() {
	app := s.newApplication()

	result, err := s.service.SubmitResponses(s.ctx, app.ID, nil, map[domain.FieldKey]AnswerInput{
		s.nameField.Key():               {Value: "Jane"},
		s.photoField.Key():              {FilePath: "uploads/photo.png", FileName: "photo.png", FileSize: 1024},
		domain.FieldKeyPassportNumber:   {Value: "P1234567"},
		domain.FieldKeyPassportExpiry:   {Value: "2030-01-01"},
		domain.FieldKeyResidenceCountry: {Value: "DE"},
		domain.FieldKeyHasSchengenVisa:  {Value: "no"},
	})
	s.Require().NoError(err)

	stored := result.Application
	s.Equal("P1234567", stored.Passport.Number, "pseudo-key writes sync the structured attribute")
	s.Equal("2030-01-01", stored.Passport.ExpiryDate)
	s.Equal("P1234567", stored.Responses[domain.FieldKeyPassportNumber].Value)
}

func (s *ApplicationServiceSuite) TestSubmitResponses_UnknownFieldFails() {
	app := s.newApplication()
	s.fillPassport(app.ID, domain.ApplicantTravelerID)

	_, err := s.service.SubmitResponses(s.ctx, app.ID, nil, map[domain.FieldKey]AnswerInput{
		domain.NumericKey(9999): {Value: "stray"},
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ApplicationServiceSuite) TestSubmitResponses_InvalidDropdownValue() {
	app := s.newApplication()

	_, err := s.service.SubmitResponses(s.ctx, app.ID, nil, map[domain.FieldKey]AnswerInput{
		domain.FieldKeyHasSchengenVisa: {Value: "maybe"},
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ApplicationServiceSuite) TestSubmitResponses_AdHocRequestFulfillment() {
	app := s.newApplication()
	s.setStatus(app.ID, models.StatusSubmitted)

	opened, err := s.service.RequestResubmission(s.ctx, app.ID, []ResubmissionInput{{
		Target: models.TargetApplication,
		NewFields: []catalog.FieldDefinition{
			{Type: catalog.FieldTypeText, Question: "Clarify employer", Active: true},
		},
		Note: "employer name unreadable",
	}}, "admin@example.com")
	s.Require().NoError(err)
	s.Require().Len(opened, 1)
	s.Equal([]domain.FieldKey{domain.NumericKey(-1)}, opened[0].FieldKeys)

	result, err := s.service.SubmitResponses(s.ctx, app.ID, travelerRef(domain.ApplicantTravelerID),
		map[domain.FieldKey]AnswerInput{
			domain.NumericKey(-1): {Value: "corrected value"},
		})
	s.Require().NoError(err)
	s.True(result.StatusAdvanced)
	s.Equal(models.StatusProcessing, result.Application.Status)
	s.Equal([]string{opened[0].ID}, result.ClosedRequests)
	s.Empty(result.Application.Requests)
}

func (s *ApplicationServiceSuite) TestSubmitResponses_IndependentTravelerRequests() {
	app := s.newApplication()
	t2, err := s.service.AddTraveler(s.ctx, app.ID, "Second Traveler")
	s.Require().NoError(err)
	t3, err := s.service.AddTraveler(s.ctx, app.ID, "Third Traveler")
	s.Require().NoError(err)
	s.setStatus(app.ID, models.StatusSubmitted)

	opened, err := s.service.RequestResubmission(s.ctx, app.ID, []ResubmissionInput{
		{Target: models.TargetTraveler, TravelerID: travelerRef(t2.ID), FieldKeys: []domain.FieldKey{s.nameField.Key()}},
		{Target: models.TargetTraveler, TravelerID: travelerRef(t3.ID), FieldKeys: []domain.FieldKey{s.nameField.Key()}},
	}, "admin@example.com")
	s.Require().NoError(err)
	s.Len(opened, 2)

	result, err := s.service.SubmitResponses(s.ctx, app.ID, travelerRef(t2.ID),
		map[domain.FieldKey]AnswerInput{s.nameField.Key(): {Value: "corrected"}})
	s.Require().NoError(err)
	s.False(result.StatusAdvanced, "one open request remains")
	s.Equal(models.StatusResubmission, result.Application.Status)
	s.Len(result.ClosedRequests, 1)

	result, err = s.service.SubmitResponses(s.ctx, app.ID, travelerRef(t3.ID),
		map[domain.FieldKey]AnswerInput{s.nameField.Key(): {Value: "also corrected"}})
	s.Require().NoError(err)
	s.True(result.StatusAdvanced)
	s.Equal(models.StatusProcessing, result.Application.Status)
}

func (s *ApplicationServiceSuite) TestSubmitResponses_LegacySingleRequest() {
	app := s.newApplication()
	_, err := s.apps.Execute(s.ctx, app.ID, func(a *models.Application) error {
		a.Status = models.StatusResubmission
		a.LegacyTarget = models.TargetApplication
		a.LegacyFieldKeys = []domain.FieldKey{s.nameField.Key()}
		return nil
	})
	s.Require().NoError(err)

	result, err := s.service.SubmitResponses(s.ctx, app.ID, travelerRef(domain.ApplicantTravelerID),
		map[domain.FieldKey]AnswerInput{s.nameField.Key(): {Value: "corrected"}})
	s.Require().NoError(err)
	s.True(result.StatusAdvanced)
	s.Equal(models.StatusProcessing, result.Application.Status)
	s.Empty(result.Application.LegacyFieldKeys)
}

func (s *ApplicationServiceSuite) TestSubmitResponses_OutOfScopeKeysFiltered() {
	app := s.newApplication()
	s.setStatus(app.ID, models.StatusSubmitted)

	opened, err := s.service.RequestResubmission(s.ctx, app.ID, []ResubmissionInput{{
		Target:    models.TargetApplication,
		FieldKeys: []domain.FieldKey{s.nameField.Key()},
	}}, "admin@example.com")
	s.Require().NoError(err)
	s.Require().Len(opened, 1)

	result, err := s.service.SubmitResponses(s.ctx, app.ID, travelerRef(domain.ApplicantTravelerID),
		map[domain.FieldKey]AnswerInput{
			s.nameField.Key():  {Value: "corrected"},
			s.photoField.Key(): {FilePath: "uploads/retry.png", FileName: "retry.png", FileSize: 512},
		})
	s.Require().NoError(err)
	s.Equal([]domain.FieldKey{s.nameField.Key()}, result.AcceptedKeys)
	s.Equal([]domain.FieldKey{s.photoField.Key()}, result.FilteredKeys)
	s.NotContains(result.Application.Responses, s.photoField.Key(), "filtered keys are not persisted")
}

func (s *ApplicationServiceSuite) TestSubmitResponses_TerminalApplicationRejected() {
	app := s.newApplication()
	s.setStatus(app.ID, models.StatusRejected)

	_, err := s.service.SubmitResponses(s.ctx, app.ID, nil, map[domain.FieldKey]AnswerInput{
		s.nameField.Key(): {Value: "too late"},
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeStateConflict))
}

func (s *ApplicationServiceSuite) TestRequestResubmission_DraftRejected() {
	app := s.newApplication()

	_, err := s.service.RequestResubmission(s.ctx, app.ID, []ResubmissionInput{{
		Target:    models.TargetApplication,
		FieldKeys: []domain.FieldKey{s.nameField.Key()},
	}}, "admin@example.com")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeStateConflict))
}

func (s *ApplicationServiceSuite) TestRequestResubmission_ReentrantFromProcessing() {
	app := s.newApplication()
	s.setStatus(app.ID, models.StatusProcessing)

	_, err := s.service.RequestResubmission(s.ctx, app.ID, []ResubmissionInput{{
		Target:    models.TargetApplication,
		FieldKeys: []domain.FieldKey{s.nameField.Key()},
	}}, "admin@example.com")
	s.Require().NoError(err)

	stored, err := s.service.GetApplication(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusResubmission, stored.Status)
}

func (s *ApplicationServiceSuite) TestRequestResubmission_UnknownTraveler() {
	app := s.newApplication()
	s.setStatus(app.ID, models.StatusSubmitted)

	_, err := s.service.RequestResubmission(s.ctx, app.ID, []ResubmissionInput{{
		Target:     models.TargetTraveler,
		TravelerID: travelerRef(7),
		FieldKeys:  []domain.FieldKey{s.nameField.Key()},
	}}, "admin@example.com")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ApplicationServiceSuite) TestRequestResubmission_Notifies() {
	app := s.newApplication()
	s.setStatus(app.ID, models.StatusSubmitted)

	_, err := s.service.RequestResubmission(s.ctx, app.ID, []ResubmissionInput{{
		Target:    models.TargetApplication,
		FieldKeys: []domain.FieldKey{s.nameField.Key()},
	}}, "admin@example.com")
	s.Require().NoError(err)

	s.Require().Len(s.notifier.events, 1)
	s.Equal(models.StatusResubmission, s.notifier.events[0].Status)
	s.Equal(app.Number, s.notifier.events[0].Number)
}

func (s *ApplicationServiceSuite) TestActiveResubmissionRequests() {
	app := s.newApplication()
	s.setStatus(app.ID, models.StatusSubmitted)

	opened, err := s.service.RequestResubmission(s.ctx, app.ID, []ResubmissionInput{{
		Target:    models.TargetApplication,
		FieldKeys: []domain.FieldKey{s.nameField.Key()},
	}}, "admin@example.com")
	s.Require().NoError(err)

	active, err := s.service.ActiveResubmissionRequests(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(opened[0].ID, active[0].ID)

	_, err = s.service.SubmitResponses(s.ctx, app.ID, travelerRef(domain.ApplicantTravelerID),
		map[domain.FieldKey]AnswerInput{s.nameField.Key(): {Value: "done"}})
	s.Require().NoError(err)

	active, err = s.service.ActiveResubmissionRequests(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Empty(active)
}

func (s *ApplicationServiceSuite) TestActiveResubmissionRequests_LegacySynthesized() {
	app := s.newApplication()
	_, err := s.apps.Execute(s.ctx, app.ID, func(a *models.Application) error {
		a.Status = models.StatusResubmission
		a.LegacyFieldKeys = []domain.FieldKey{s.nameField.Key()}
		return nil
	})
	s.Require().NoError(err)

	active, err := s.service.ActiveResubmissionRequests(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal("legacy", active[0].ID)
	s.Equal(models.TargetApplication, active[0].Target)
}

func (s *ApplicationServiceSuite) TestUpdateStatus_Idempotent() {
	app := s.newApplication()
	s.setStatus(app.ID, models.StatusSubmitted)

	updated, err := s.service.UpdateStatus(s.ctx, app.ID, models.StatusSubmitted, "admin@example.com")
	s.Require().NoError(err)
	s.Equal(models.StatusSubmitted, updated.Status)
	s.Empty(updated.StatusHistory, "idempotent write records no transition")
	s.Empty(s.notifier.events, "idempotent write re-fires no notification")
}

func (s *ApplicationServiceSuite) TestUpdateStatus_InvalidTransition() {
	app := s.newApplication()

	_, err := s.service.UpdateStatus(s.ctx, app.ID, models.StatusProcessing, "admin@example.com")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeStateConflict))
}

func (s *ApplicationServiceSuite) TestUpdateStatus_TransitionNotifies() {
	app := s.newApplication()

	updated, err := s.service.UpdateStatus(s.ctx, app.ID, models.StatusSubmitted, "applicant")
	s.Require().NoError(err)
	s.Equal(models.StatusSubmitted, updated.Status)
	s.Require().Len(updated.StatusHistory, 1)
	s.Require().Len(s.notifier.events, 1)
	s.Equal(models.StatusSubmitted, s.notifier.events[0].Status)
}

func (s *ApplicationServiceSuite) TestAdHocFields_AddAndRemove() {
	app := s.newApplication()

	minted, err := s.service.AddAdHocFields(s.ctx, app.ID, nil, []catalog.FieldDefinition{
		{Type: catalog.FieldTypeText, Question: "Extra question", Active: true},
	})
	s.Require().NoError(err)
	s.Require().Len(minted, 1)
	s.Equal(int64(-1), minted[0].ID)

	s.Require().NoError(s.service.RemoveAdHocField(s.ctx, app.ID, minted[0].ID))

	err = s.service.RemoveAdHocField(s.ctx, app.ID, minted[0].ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ApplicationServiceSuite) TestDeleteApplication_DraftOnly() {
	app := s.newApplication()
	s.Require().NoError(s.service.DeleteApplication(s.ctx, app.ID, false))

	app = s.newApplication()
	s.setStatus(app.ID, models.StatusProcessing)
	err := s.service.DeleteApplication(s.ctx, app.ID, false)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeStateConflict))

	s.Require().NoError(s.service.DeleteApplication(s.ctx, app.ID, true), "administrative removal")
}

func (s *ApplicationServiceSuite) TestListFieldsWithResponses() {
	app := s.newApplication()
	s.fillPassport(app.ID, domain.ApplicantTravelerID)

	fields, err := s.service.ListFieldsWithResponses(s.ctx, app.ID, travelerRef(domain.ApplicantTravelerID), visibility.ViewUser)
	s.Require().NoError(err)
	s.Len(fields, 2, "full active catalog for a fresh draft")

	_, err = s.service.ListFieldsWithResponses(s.ctx, app.ID, travelerRef(9), visibility.ViewUser)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ApplicationServiceSuite) TestListFieldsWithResponses_AdminSeesMissingPassport() {
	app := s.newApplication()

	fields, err := s.service.ListFieldsWithResponses(s.ctx, app.ID, nil, visibility.ViewAdmin)
	s.Require().NoError(err)

	s.Require().NotEmpty(fields)
	s.Equal(domain.FieldKeyPassportNumber, fields[0].Key,
		"missing passport attributes surface even without a request naming them")
	s.Equal(visibility.SourcePassport, fields[0].Source)
}
