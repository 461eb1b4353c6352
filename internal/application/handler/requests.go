package handler

import (
	"strings"

	"visaflow/internal/application/models"
	"visaflow/internal/application/service"
	"visaflow/internal/catalog"
	"visaflow/pkg/domain"
	dErrors "visaflow/pkg/domain-errors"
)

// wireFieldKey accepts a field identifier as either a JSON number or a
// string, since legacy clients send numeric ids and passport pseudo-keys are
// strings.
type wireFieldKey struct {
	domain.FieldKey
}

func (k *wireFieldKey) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	key, err := domain.ParseFieldKey(s)
	if err != nil {
		return err
	}
	k.FieldKey = key
	return nil
}

type createApplicationRequest struct {
	ProductID  string `json:"product_id"`
	CustomerID string `json:"customer_id"`
	Email      string `json:"email"`
}

type addTravelerRequest struct {
	FullName string `json:"full_name"`
}

type answerBody struct {
	Value    string `json:"value"`
	FilePath string `json:"file_path"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
}

type submitResponsesRequest struct {
	TravelerID *int64                `json:"traveler_id"`
	Responses  map[string]answerBody `json:"responses"`
}

func (r submitResponsesRequest) answers() (map[domain.FieldKey]service.AnswerInput, error) {
	answers := make(map[domain.FieldKey]service.AnswerInput, len(r.Responses))
	for raw, body := range r.Responses {
		key, err := domain.ParseFieldKey(raw)
		if err != nil {
			return nil, err
		}
		answers[key] = service.AnswerInput{
			Value:    body.Value,
			FilePath: body.FilePath,
			FileName: body.FileName,
			FileSize: body.FileSize,
		}
	}
	return answers, nil
}

type adhocFieldsRequest struct {
	TravelerID *int64         `json:"traveler_id"`
	Fields     []fieldPayload `json:"fields"`
}

// fieldPayload is the wire shape of an ad hoc or resubmission field
// definition.
type fieldPayload struct {
	FieldType        string   `json:"field_type"`
	Question         string   `json:"question"`
	Placeholder      string   `json:"placeholder"`
	IsRequired       bool     `json:"is_required"`
	DisplayOrder     int      `json:"display_order"`
	Options          []string `json:"options"`
	AllowedFileTypes []string `json:"allowed_file_types"`
	MaxFileSizeMB    int      `json:"max_file_size_mb"`
	MinLength        int      `json:"min_length"`
	MaxLength        int      `json:"max_length"`
}

func (p fieldPayload) definition() catalog.FieldDefinition {
	return catalog.FieldDefinition{
		Type:             catalog.FieldType(p.FieldType),
		Question:         p.Question,
		Placeholder:      p.Placeholder,
		Required:         p.IsRequired,
		DisplayOrder:     p.DisplayOrder,
		Options:          p.Options,
		AllowedFileTypes: p.AllowedFileTypes,
		MaxFileSizeMB:    p.MaxFileSizeMB,
		MinLength:        p.MinLength,
		MaxLength:        p.MaxLength,
		Active:           true,
	}
}

func definitions(payloads []fieldPayload) []catalog.FieldDefinition {
	defs := make([]catalog.FieldDefinition, len(payloads))
	for i, p := range payloads {
		defs[i] = p.definition()
	}
	return defs
}

type resubmissionRequestBody struct {
	Target     string         `json:"target"`
	TravelerID *int64         `json:"traveler_id"`
	FieldIDs   []wireFieldKey `json:"field_ids"`
	NewFields  []fieldPayload `json:"new_fields"`
	Note       string         `json:"note"`
}

type requestResubmissionRequest struct {
	Requests []resubmissionRequestBody `json:"requests"`
}

func (r requestResubmissionRequest) inputs() []service.ResubmissionInput {
	inputs := make([]service.ResubmissionInput, len(r.Requests))
	for i, body := range r.Requests {
		keys := make([]domain.FieldKey, len(body.FieldIDs))
		for j, k := range body.FieldIDs {
			keys[j] = k.FieldKey
		}
		inputs[i] = service.ResubmissionInput{
			Target:     models.RequestTarget(body.Target),
			TravelerID: travelerIDRef(body.TravelerID),
			FieldKeys:  keys,
			NewFields:  definitions(body.NewFields),
			Note:       body.Note,
		}
	}
	return inputs
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func travelerIDRef(raw *int64) *domain.TravelerID {
	if raw == nil {
		return nil
	}
	tid := domain.TravelerID(*raw)
	return &tid
}

func parseTravelerQuery(raw string) (*domain.TravelerID, error) {
	if raw == "" {
		return nil, nil
	}
	tid, err := domain.ParseTravelerID(raw)
	if err != nil {
		return nil, err
	}
	return &tid, nil
}

func validateTravelerRef(id *domain.TravelerID) error {
	if id != nil && *id < domain.ApplicantTravelerID {
		return dErrors.New(dErrors.CodeInvalidInput, "traveler id must be a positive integer")
	}
	return nil
}
