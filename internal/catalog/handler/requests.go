package handler

import (
	"visaflow/internal/catalog"
)

type createProductRequest struct {
	Name string `json:"name"`
}

type fieldRequest struct {
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
	IsActive         *bool    `json:"is_active"`
}

func (r fieldRequest) Definition() catalog.FieldDefinition {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return catalog.FieldDefinition{
		Type:             catalog.FieldType(r.FieldType),
		Question:         r.Question,
		Placeholder:      r.Placeholder,
		Required:         r.IsRequired,
		DisplayOrder:     r.DisplayOrder,
		Options:          r.Options,
		AllowedFileTypes: r.AllowedFileTypes,
		MaxFileSizeMB:    r.MaxFileSizeMB,
		MinLength:        r.MinLength,
		MaxLength:        r.MaxLength,
		Active:           active,
	}
}

type fieldPatchRequest struct {
	Question         *string  `json:"question"`
	Placeholder      *string  `json:"placeholder"`
	IsRequired       *bool    `json:"is_required"`
	DisplayOrder     *int     `json:"display_order"`
	Options          []string `json:"options"`
	AllowedFileTypes []string `json:"allowed_file_types"`
	MaxFileSizeMB    *int     `json:"max_file_size_mb"`
	MinLength        *int     `json:"min_length"`
	MaxLength        *int     `json:"max_length"`
	IsActive         *bool    `json:"is_active"`
}

func (r fieldPatchRequest) Patch() catalog.FieldPatch {
	return catalog.FieldPatch{
		Question:         r.Question,
		Placeholder:      r.Placeholder,
		Required:         r.IsRequired,
		DisplayOrder:     r.DisplayOrder,
		Options:          r.Options,
		AllowedFileTypes: r.AllowedFileTypes,
		MaxFileSizeMB:    r.MaxFileSizeMB,
		MinLength:        r.MinLength,
		MaxLength:        r.MaxLength,
		Active:           r.IsActive,
	}
}
