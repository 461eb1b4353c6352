package service

import (
	"context"

	"visaflow/internal/application/models"
	"visaflow/internal/catalog"
	"visaflow/internal/visibility"
	"visaflow/pkg/domain"
	dErrors "visaflow/pkg/domain-errors"
	"visaflow/pkg/requestcontext"
)

// AnswerInput is one submitted answer: a textual value and/or an
// already-stored upload reference.
type AnswerInput struct {
	Value    string
	FilePath string
	FileName string
	FileSize int64
}

func (in AnswerInput) empty() bool {
	return in.Value == "" && in.FilePath == ""
}

// SubmissionResult reports what a submission did. FilteredKeys carries the
// keys that were outside the caller's allowed scope and dropped with a
// warning rather than rejected, to tolerate partial and legacy client
// payloads.
type SubmissionResult struct {
	Application    *models.Application
	AcceptedKeys   []domain.FieldKey
	FilteredKeys   []domain.FieldKey
	ClosedRequests []string
	StatusAdvanced bool
}

// SubmitResponses validates and persists answers for a traveler scope, then
// runs the fulfillment check. travelerID nil means the applicant's scope.
//
// Unknown field identifiers fail the whole submission; known identifiers
// outside the currently allowed scope are filtered out. When the caller is
// filling the full form rather than answering a correction request, every
// required visible field must end up answered.
func (s *Service) SubmitResponses(ctx context.Context, id domain.ApplicationID, travelerID *domain.TravelerID, answers map[domain.FieldKey]AnswerInput) (*SubmissionResult, error) {
	if len(answers) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no responses submitted")
	}
	now := requestcontext.Now(ctx)

	result := &SubmissionResult{}
	app, err := s.apps.Execute(ctx, id, func(a *models.Application) error {
		scope := domain.ApplicantTravelerID
		if travelerID != nil {
			scope = *travelerID
		}
		if !a.HasTravelerScope(scope) {
			return dErrors.Newf(dErrors.CodeNotFound, "traveler %d not found", scope)
		}
		if a.Status.IsTerminal() {
			return dErrors.Newf(dErrors.CodeStateConflict, "cannot submit responses to a %s application", a.Status)
		}

		catalogFields, err := s.catalog.ListFields(ctx, a.ProductID, true)
		if err != nil {
			return err
		}
		for key := range answers {
			if !keyKnown(a, key, catalogFields) {
				return dErrors.Newf(dErrors.CodeInvalidInput, "unknown field %s", key)
			}
		}

		visible := visibility.Resolve(a, &scope, visibility.ViewUser, catalogFields)
		definitions := make(map[domain.FieldKey]catalog.FieldDefinition, len(visible))
		for _, f := range visible {
			definitions[f.Key] = f.Definition
		}

		responses := a.ResponsesFor(scope)
		passport := a.PassportFor(scope)
		for key, in := range answers {
			def, allowed := definitions[key]
			if !allowed {
				result.FilteredKeys = append(result.FilteredKeys, key)
				continue
			}
			if err := validateAnswer(def, in); err != nil {
				return err
			}
			ts := now
			responses[key] = models.Answer{
				Value:       in.Value,
				FilePath:    in.FilePath,
				FileName:    in.FileName,
				FileSize:    in.FileSize,
				SubmittedAt: &ts,
			}
			if key.IsReserved() {
				passport.Set(key, in.Value)
			}
			result.AcceptedKeys = append(result.AcceptedKeys, key)
		}
		if len(result.AcceptedKeys) == 0 {
			return dErrors.New(dErrors.CodeInvalidInput, "no submitted field is answerable in this scope")
		}

		if !visibility.Restricted(a, &scope) {
			if err := checkRequiredAnswered(visible, responses); err != nil {
				return err
			}
		}

		result.ClosedRequests, result.StatusAdvanced = a.SettleRequests(scope, now)
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.SubmissionsTotal.WithLabelValues(submissionOutcome(err)).Inc()
		}
		return nil, wrapAppErr(err)
	}
	result.Application = app

	if s.metrics != nil {
		s.metrics.SubmissionsTotal.WithLabelValues("accepted").Inc()
		if n := len(result.ClosedRequests); n > 0 {
			s.metrics.RequestsFulfilled.Add(float64(n))
		}
	}
	if len(result.FilteredKeys) > 0 {
		s.logger.WarnContext(ctx, "filtered out-of-scope response keys",
			"application_id", id.String(),
			"filtered", len(result.FilteredKeys),
		)
	}
	if result.StatusAdvanced {
		s.recordTransition(app.Status)
		s.notifyStatusChanged(ctx, app)
	}
	return result, nil
}

// keyKnown reports whether a submitted identifier references anything the
// application could ever store: a reserved passport key, a registered ad hoc
// field, a catalog field (active or not), or a field named by a request
// (covers identifiers whose definition was since deleted).
func keyKnown(a *models.Application, key domain.FieldKey, catalogFields []catalog.FieldDefinition) bool {
	if key.IsReserved() {
		return true
	}
	if key.IsAdHoc() && a.FindAdHocField(key.Num()) != nil {
		return true
	}
	if key.IsCatalog() {
		for _, def := range catalogFields {
			if def.ID == key.Num() {
				return true
			}
		}
	}
	for _, r := range a.Requests {
		for _, k := range r.FieldKeys {
			if k == key {
				return true
			}
		}
	}
	for _, k := range a.LegacyFieldKeys {
		if k == key {
			return true
		}
	}
	return false
}

func validateAnswer(def catalog.FieldDefinition, in AnswerInput) error {
	if in.empty() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "field %d has no value", def.ID)
	}
	if def.Type == catalog.FieldTypeUpload {
		if in.FilePath == "" {
			return dErrors.Newf(dErrors.CodeInvalidInput, "field %d expects an uploaded file", def.ID)
		}
		return def.ValidateFile(in.FileName, in.FileSize)
	}
	return def.ValidateValue(in.Value)
}

// checkRequiredAnswered enforces required fields for full-form submissions.
func checkRequiredAnswered(visible []visibility.Field, responses models.AnswerMap) error {
	for _, f := range visible {
		if !f.Definition.Required || !f.Editable {
			continue
		}
		if answer, ok := responses[f.Key]; !ok || !answer.IsAnswered() {
			return dErrors.Newf(dErrors.CodeInvalidInput, "missing required field %s", f.Key)
		}
	}
	return nil
}

func submissionOutcome(err error) string {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeNotFound:
		return "not_found"
	case dErrors.CodeInvalidInput, dErrors.CodeBadRequest:
		return "invalid"
	case dErrors.CodeStateConflict:
		return "state_conflict"
	}
	return "error"
}
