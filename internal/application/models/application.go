package models

import (
	"time"

	"visaflow/internal/catalog"
	"visaflow/pkg/domain"
	dErrors "visaflow/pkg/domain-errors"
)

// Answer is one stored response: a value and/or an uploaded-file reference.
type Answer struct {
	Value       string     `json:"value,omitempty"`
	FilePath    string     `json:"file_path,omitempty"`
	FileName    string     `json:"file_name,omitempty"`
	FileSize    int64      `json:"file_size,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
}

// IsAnswered reports whether the answer carries a value or file.
func (a Answer) IsAnswered() bool {
	return a.Value != "" || a.FilePath != ""
}

// AnswerMap keys answers by canonical field key. FieldKey implements
// TextMarshaler, so the map round-trips through JSONB with string keys.
type AnswerMap map[domain.FieldKey]Answer

// Clone deep-copies the map.
func (m AnswerMap) Clone() AnswerMap {
	if m == nil {
		return nil
	}
	cp := make(AnswerMap, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// AdHocField is an admin-created, application-scoped question. It reuses the
// catalog definition shape; its id is negative and unique within the owning
// application.
type AdHocField struct {
	catalog.FieldDefinition
	TravelerID *domain.TravelerID `json:"traveler_id,omitempty"`
	Source     string             `json:"source"`
}

// AppliesTo reports whether the field is visible in the given traveler scope.
// Application-scoped fields (no traveler id) belong to the applicant's form.
func (f AdHocField) AppliesTo(travelerID domain.TravelerID) bool {
	if f.TravelerID == nil {
		return travelerID.IsApplicant()
	}
	return *f.TravelerID == travelerID
}

// RequestTarget names what a resubmission request is about.
type RequestTarget string

const (
	TargetApplication RequestTarget = "application"
	TargetTraveler    RequestTarget = "traveler"
)

// ResubmissionRequest is one open correction demand.
//
// Invariant: once FulfilledAt is set it is never cleared except by a
// full-workflow reset (the request list being cleared wholesale).
type ResubmissionRequest struct {
	ID          string             `json:"id"`
	Target      RequestTarget      `json:"target"`
	TravelerID  *domain.TravelerID `json:"traveler_id,omitempty"`
	FieldKeys   []domain.FieldKey  `json:"field_ids"`
	Note        string             `json:"note,omitempty"`
	RequestedAt time.Time          `json:"requested_at"`
	FulfilledAt *time.Time         `json:"fulfilled_at,omitempty"`
}

// Open reports whether the request still awaits answers.
func (r ResubmissionRequest) Open() bool {
	return r.FulfilledAt == nil
}

// ScopeTraveler resolves the traveler scope a request belongs to. A
// traveler-targeted request with no traveler id belongs to the applicant.
func (r ResubmissionRequest) ScopeTraveler() domain.TravelerID {
	if r.Target == TargetApplication || r.TravelerID == nil {
		return domain.ApplicantTravelerID
	}
	return *r.TravelerID
}

// MatchesScope reports whether a submission in the given traveler scope can
// fulfill this request.
func (r ResubmissionRequest) MatchesScope(travelerID domain.TravelerID) bool {
	return r.ScopeTraveler() == travelerID
}

// PassportDetails are the dedicated structured passport attributes mirrored
// by the reserved pseudo-field answers.
type PassportDetails struct {
	Number           string `json:"passport_number,omitempty"`
	ExpiryDate       string `json:"passport_expiry_date,omitempty"`
	ResidenceCountry string `json:"residence_country,omitempty"`
	HasSchengenVisa  string `json:"has_schengen_visa,omitempty"`
}

// Get returns the attribute mirrored by the given reserved key.
func (p PassportDetails) Get(key domain.FieldKey) string {
	switch key {
	case domain.FieldKeyPassportNumber:
		return p.Number
	case domain.FieldKeyPassportExpiry:
		return p.ExpiryDate
	case domain.FieldKeyResidenceCountry:
		return p.ResidenceCountry
	case domain.FieldKeyHasSchengenVisa:
		return p.HasSchengenVisa
	}
	return ""
}

// Set writes the attribute mirrored by the given reserved key.
func (p *PassportDetails) Set(key domain.FieldKey, value string) {
	switch key {
	case domain.FieldKeyPassportNumber:
		p.Number = value
	case domain.FieldKeyPassportExpiry:
		p.ExpiryDate = value
	case domain.FieldKeyResidenceCountry:
		p.ResidenceCountry = value
	case domain.FieldKeyHasSchengenVisa:
		p.HasSchengenVisa = value
	}
}

// MissingKeys lists the reserved keys whose mirrored attribute is empty.
func (p PassportDetails) MissingKeys() []domain.FieldKey {
	var missing []domain.FieldKey
	for _, key := range domain.PassportKeys() {
		if p.Get(key) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// Traveler is one of travelers 2..N on an application. Traveler 1 (the
// applicant) is the customer record: its answers live on the application
// itself.
type Traveler struct {
	ID        domain.TravelerID `json:"id"`
	FullName  string            `json:"full_name,omitempty"`
	Responses AnswerMap         `json:"responses"`
	Passport  PassportDetails   `json:"passport"`
}

// StatusChange is one entry in the application's transition audit trail.
type StatusChange struct {
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	Actor     string    `json:"actor,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

// Application is the aggregate root: status, ad hoc registry, resubmission
// request list, applicant-level answers, and travelers. All of it is loaded
// and persisted as one unit so concurrent submissions for different travelers
// cannot race on the shared request list or the ad hoc id counter.
type Application struct {
	ID         domain.ApplicationID `json:"id"`
	Number     string               `json:"number"`
	ProductID  domain.ProductID     `json:"product_id"`
	CustomerID domain.CustomerID    `json:"customer_id"`
	Email      string               `json:"email,omitempty"`

	Status Status `json:"status"`

	// Ad hoc field registry. MinAdHocFieldID is the high-water mark (most
	// negative id used); it only decreases.
	AdHocFields     []AdHocField `json:"adhoc_fields,omitempty"`
	MinAdHocFieldID int64        `json:"min_adhoc_field_id,omitempty"`

	Requests []ResubmissionRequest `json:"requests,omitempty"`

	// Legacy single-request representation, honored when Requests is empty.
	LegacyTarget     RequestTarget      `json:"resubmission_target,omitempty"`
	LegacyTravelerID *domain.TravelerID `json:"resubmission_traveler_id,omitempty"`
	LegacyFieldKeys  []domain.FieldKey  `json:"requested_field_ids,omitempty"`

	// Applicant-level answers (traveler 1).
	Responses AnswerMap       `json:"responses"`
	Passport  PassportDetails `json:"passport"`

	Travelers []Traveler `json:"travelers,omitempty"`

	StatusHistory []StatusChange `json:"status_history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone deep-copies the aggregate so stores never hand out aliased state.
func (a *Application) Clone() *Application {
	cp := *a
	cp.AdHocFields = make([]AdHocField, len(a.AdHocFields))
	for i, f := range a.AdHocFields {
		cf := f
		cf.Options = append([]string(nil), f.Options...)
		cf.AllowedFileTypes = append([]string(nil), f.AllowedFileTypes...)
		if f.TravelerID != nil {
			tid := *f.TravelerID
			cf.TravelerID = &tid
		}
		cp.AdHocFields[i] = cf
	}
	cp.Requests = make([]ResubmissionRequest, len(a.Requests))
	for i, r := range a.Requests {
		cr := r
		cr.FieldKeys = append([]domain.FieldKey(nil), r.FieldKeys...)
		if r.TravelerID != nil {
			tid := *r.TravelerID
			cr.TravelerID = &tid
		}
		if r.FulfilledAt != nil {
			ts := *r.FulfilledAt
			cr.FulfilledAt = &ts
		}
		cp.Requests[i] = cr
	}
	if a.LegacyTravelerID != nil {
		tid := *a.LegacyTravelerID
		cp.LegacyTravelerID = &tid
	}
	cp.LegacyFieldKeys = append([]domain.FieldKey(nil), a.LegacyFieldKeys...)
	cp.Responses = a.Responses.Clone()
	cp.Travelers = make([]Traveler, len(a.Travelers))
	for i, t := range a.Travelers {
		ct := t
		ct.Responses = t.Responses.Clone()
		cp.Travelers[i] = ct
	}
	cp.StatusHistory = append([]StatusChange(nil), a.StatusHistory...)
	return &cp
}

// Traveler returns the traveler row with the given id, or nil. The applicant
// (traveler 1) has no row.
func (a *Application) Traveler(id domain.TravelerID) *Traveler {
	for i := range a.Travelers {
		if a.Travelers[i].ID == id {
			return &a.Travelers[i]
		}
	}
	return nil
}

// HasTravelerScope reports whether the given traveler scope is addressable:
// the applicant always is, other ids need a traveler row.
func (a *Application) HasTravelerScope(id domain.TravelerID) bool {
	return id.IsApplicant() || a.Traveler(id) != nil
}

// ResponsesFor returns the answer map for a traveler scope, creating it if
// needed. Applicant answers live on the application itself.
func (a *Application) ResponsesFor(id domain.TravelerID) AnswerMap {
	if id.IsApplicant() {
		if a.Responses == nil {
			a.Responses = make(AnswerMap)
		}
		return a.Responses
	}
	t := a.Traveler(id)
	if t == nil {
		return nil
	}
	if t.Responses == nil {
		t.Responses = make(AnswerMap)
	}
	return t.Responses
}

// PassportFor returns the passport attributes for a traveler scope.
func (a *Application) PassportFor(id domain.TravelerID) *PassportDetails {
	if id.IsApplicant() {
		return &a.Passport
	}
	if t := a.Traveler(id); t != nil {
		return &t.Passport
	}
	return nil
}

// FindAdHocField returns the registered ad hoc field with the given id, or nil.
func (a *Application) FindAdHocField(fieldID int64) *AdHocField {
	for i := range a.AdHocFields {
		if a.AdHocFields[i].ID == fieldID {
			return &a.AdHocFields[i]
		}
	}
	return nil
}

// AddAdHocFields mints negative ids for the given definitions and registers
// them, scoped to travelerID when set. nextId = currentHighWaterMark - 1,
// starting at 0 if unset, so ids are negative, unique, and monotonic within
// the application.
func (a *Application) AddAdHocFields(travelerID *domain.TravelerID, defs []catalog.FieldDefinition) ([]AdHocField, error) {
	minted := make([]AdHocField, 0, len(defs))
	for _, def := range defs {
		def.Normalize()
		if err := def.Validate(); err != nil {
			return nil, err
		}
		a.MinAdHocFieldID--
		def.ID = a.MinAdHocFieldID
		field := AdHocField{FieldDefinition: def, Source: "admin"}
		if travelerID != nil {
			tid := *travelerID
			field.TravelerID = &tid
		}
		a.AdHocFields = append(a.AdHocFields, field)
		minted = append(minted, field)
	}
	return minted, nil
}

// RemoveAdHocField deletes the registration. Stored answers keyed by the id
// stay retrievable, and the high-water mark keeps its value so the id is
// never minted again.
func (a *Application) RemoveAdHocField(fieldID int64) error {
	for i := range a.AdHocFields {
		if a.AdHocFields[i].ID == fieldID {
			a.AdHocFields = append(a.AdHocFields[:i], a.AdHocFields[i+1:]...)
			return nil
		}
	}
	return dErrors.Newf(dErrors.CodeNotFound, "ad hoc field %d not found", fieldID)
}

// OpenRequests returns the unfulfilled requests.
func (a *Application) OpenRequests() []ResubmissionRequest {
	var open []ResubmissionRequest
	for _, r := range a.Requests {
		if r.Open() {
			open = append(open, r)
		}
	}
	return open
}

// OpenRequestsFor returns the unfulfilled requests a submission in the given
// traveler scope could fulfill.
func (a *Application) OpenRequestsFor(travelerID domain.TravelerID) []ResubmissionRequest {
	var open []ResubmissionRequest
	for _, r := range a.Requests {
		if r.Open() && r.MatchesScope(travelerID) {
			open = append(open, r)
		}
	}
	return open
}

// legacyMatchesScope reports whether the legacy single-request fields are set
// and belong to the given traveler scope.
func (a *Application) legacyMatchesScope(travelerID domain.TravelerID) bool {
	if len(a.LegacyFieldKeys) == 0 {
		return false
	}
	if a.LegacyTarget == TargetTraveler && a.LegacyTravelerID != nil {
		return *a.LegacyTravelerID == travelerID
	}
	return travelerID.IsApplicant()
}

// clearLegacyRequest resets the legacy single-request compatibility fields.
func (a *Application) clearLegacyRequest() {
	a.LegacyTarget = ""
	a.LegacyTravelerID = nil
	a.LegacyFieldKeys = nil
}

// SettleRequests runs the fulfillment check after answers for the given
// traveler scope have been merged. Requests whose field set is fully answered
// in that scope are marked fulfilled; when every request in the application is
// fulfilled, the request list and the legacy fields are cleared and the
// application moves to processing. With the request list empty, a matching
// legacy single-request is settled the same way.
//
// Returns the ids of requests closed by this submission and whether the
// status advanced to processing.
func (a *Application) SettleRequests(travelerID domain.TravelerID, now time.Time) (closed []string, advanced bool) {
	responses := a.ResponsesFor(travelerID)

	if len(a.Requests) > 0 {
		for i := range a.Requests {
			r := &a.Requests[i]
			if !r.Open() || !r.MatchesScope(travelerID) {
				continue
			}
			if allAnswered(r.FieldKeys, responses) {
				ts := now
				r.FulfilledAt = &ts
				closed = append(closed, r.ID)
			}
		}
		for _, r := range a.Requests {
			if r.Open() {
				return closed, false
			}
		}
		// Full-workflow reset: every request satisfied.
		a.Requests = nil
		a.clearLegacyRequest()
		a.ApplyTransition(StatusProcessing, "", now)
		return closed, true
	}

	if a.legacyMatchesScope(travelerID) && allAnswered(a.LegacyFieldKeys, responses) {
		a.clearLegacyRequest()
		a.ApplyTransition(StatusProcessing, "", now)
		return closed, true
	}

	return closed, false
}

func allAnswered(keys []domain.FieldKey, responses AnswerMap) bool {
	for _, key := range keys {
		answer, ok := responses[key]
		if !ok || !answer.IsAnswered() {
			return false
		}
	}
	return true
}

// CanTransitionTo validates a status change against the state machine.
func (a *Application) CanTransitionTo(target Status) error {
	if a.Status == target {
		return nil
	}
	if !a.Status.CanTransitionTo(target) {
		return dErrors.Newf(dErrors.CodeStateConflict,
			"cannot transition application from %s to %s", a.Status, target)
	}
	return nil
}

// ApplyTransition moves the application to target and records the change.
// Call CanTransitionTo first. Writing the current status is a no-op.
func (a *Application) ApplyTransition(target Status, actor string, now time.Time) bool {
	if a.Status == target {
		return false
	}
	a.StatusHistory = append(a.StatusHistory, StatusChange{
		From:      a.Status,
		To:        target,
		Actor:     actor,
		ChangedAt: now,
	})
	a.Status = target
	a.UpdatedAt = now
	return true
}
