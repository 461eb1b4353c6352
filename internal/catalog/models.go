package catalog

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"visaflow/pkg/domain"
	dErrors "visaflow/pkg/domain-errors"
	pstrings "visaflow/pkg/platform/strings"
)

// FieldType tags a field definition variant. Validation dispatches on the tag
// rather than on per-type subtypes.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeNumber   FieldType = "number"
	FieldTypeDate     FieldType = "date"
	FieldTypeUpload   FieldType = "upload"
	FieldTypeDropdown FieldType = "dropdown"
	FieldTypeTextarea FieldType = "textarea"
)

var validFieldTypes = map[FieldType]bool{
	FieldTypeText:     true,
	FieldTypeNumber:   true,
	FieldTypeDate:     true,
	FieldTypeUpload:   true,
	FieldTypeDropdown: true,
	FieldTypeTextarea: true,
}

// DateLayout is the wire format for date answers.
const DateLayout = "2006-01-02"

// FieldDefinition is one question in a visa product's catalog.
//
// Invariants:
//   - ID is positive, unique within the owning product, and never reassigned,
//     even after deletion (the product's MaxFieldID high-water mark only grows)
//   - Options is non-empty iff Type is dropdown
//   - Deleting a definition does not purge stored answers keyed by its id
type FieldDefinition struct {
	ID               int64     `json:"id"`
	Type             FieldType `json:"field_type"`
	Question         string    `json:"question"`
	Placeholder      string    `json:"placeholder,omitempty"`
	Required         bool      `json:"is_required"`
	DisplayOrder     int       `json:"display_order"`
	Options          []string  `json:"options,omitempty"`
	AllowedFileTypes []string  `json:"allowed_file_types,omitempty"`
	MaxFileSizeMB    int       `json:"max_file_size_mb,omitempty"`
	MinLength        int       `json:"min_length,omitempty"`
	MaxLength        int       `json:"max_length,omitempty"`
	Active           bool      `json:"is_active"`
}

// Key returns the definition's canonical field key.
func (d FieldDefinition) Key() domain.FieldKey {
	return domain.NumericKey(d.ID)
}

// Normalize cleans up list constraints before validation: stray whitespace
// and duplicates are dropped, and file extensions are lowercased since they
// compare case-insensitively.
func (d *FieldDefinition) Normalize() {
	d.Question = strings.TrimSpace(d.Question)
	d.Options = pstrings.DedupeAndTrim(d.Options)
	d.AllowedFileTypes = pstrings.DedupeAndTrimLower(d.AllowedFileTypes)
}

// Validate checks the definition's shape. ID assignment is the catalog's job,
// so an unset ID is fine here.
func (d FieldDefinition) Validate() error {
	if strings.TrimSpace(d.Question) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "field question is required")
	}
	if !validFieldTypes[d.Type] {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown field type %q", d.Type)
	}
	if d.Type == FieldTypeDropdown && len(d.Options) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "dropdown field requires options")
	}
	if d.Type != FieldTypeDropdown && len(d.Options) > 0 {
		return dErrors.Newf(dErrors.CodeInvalidInput, "options are only valid for dropdown fields, not %q", d.Type)
	}
	if d.MinLength < 0 || d.MaxLength < 0 || (d.MaxLength > 0 && d.MinLength > d.MaxLength) {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid min/max length constraints")
	}
	if d.MaxFileSizeMB < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "max file size cannot be negative")
	}
	return nil
}

// ValidateValue checks a submitted textual value against the definition.
// Upload fields are checked by ValidateFile instead.
func (d FieldDefinition) ValidateValue(value string) error {
	if value == "" {
		return nil
	}
	switch d.Type {
	case FieldTypeNumber:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return dErrors.Newf(dErrors.CodeInvalidInput, "field %d expects a number", d.ID)
		}
	case FieldTypeDate:
		if _, err := time.Parse(DateLayout, value); err != nil {
			return dErrors.Newf(dErrors.CodeInvalidInput, "field %d expects a date in %s format", d.ID, DateLayout)
		}
	case FieldTypeDropdown:
		for _, opt := range d.Options {
			if value == opt {
				return nil
			}
		}
		return dErrors.Newf(dErrors.CodeInvalidInput, "field %d value is not one of the allowed options", d.ID)
	case FieldTypeText, FieldTypeTextarea:
		if d.MinLength > 0 && len(value) < d.MinLength {
			return dErrors.Newf(dErrors.CodeInvalidInput, "field %d value is shorter than %d characters", d.ID, d.MinLength)
		}
		if d.MaxLength > 0 && len(value) > d.MaxLength {
			return dErrors.Newf(dErrors.CodeInvalidInput, "field %d value is longer than %d characters", d.ID, d.MaxLength)
		}
	}
	return nil
}

// ValidateFile checks an uploaded file's name and size against the
// definition's constraints.
func (d FieldDefinition) ValidateFile(fileName string, size int64) error {
	if len(d.AllowedFileTypes) > 0 {
		ext := pstrings.NormalizeExt(filepath.Ext(fileName))
		allowed := false
		for _, t := range d.AllowedFileTypes {
			if ext == pstrings.NormalizeExt(t) {
				allowed = true
				break
			}
		}
		if !allowed {
			return dErrors.Newf(dErrors.CodeInvalidInput,
				"field %d does not accept .%s files (allowed: %s)", d.ID, ext, strings.Join(d.AllowedFileTypes, ", "))
		}
	}
	if d.MaxFileSizeMB > 0 && size > int64(d.MaxFileSizeMB)*1024*1024 {
		return dErrors.Newf(dErrors.CodeInvalidInput,
			"field %d file exceeds the %d MB limit", d.ID, d.MaxFileSizeMB)
	}
	return nil
}

// Product owns a reusable field catalog.
//
// Invariant: MaxFieldID never decreases, so field ids are never reused even
// across deletions.
type Product struct {
	ID         domain.ProductID  `json:"id"`
	Name       string            `json:"name"`
	Fields     []FieldDefinition `json:"fields"`
	MaxFieldID int64             `json:"max_field_id"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// NextFieldID computes the next field id from the high-water mark and any
// ids present in the catalog, whichever is higher. Guards against a stale
// mark after out-of-band imports.
func (p *Product) NextFieldID() int64 {
	next := p.MaxFieldID
	for _, f := range p.Fields {
		if f.ID > next {
			next = f.ID
		}
	}
	return next + 1
}

// FindField returns the definition with the given id, or nil.
func (p *Product) FindField(fieldID int64) *FieldDefinition {
	for i := range p.Fields {
		if p.Fields[i].ID == fieldID {
			return &p.Fields[i]
		}
	}
	return nil
}

func (p *Product) String() string {
	return fmt.Sprintf("product %s (%d fields)", p.ID, len(p.Fields))
}
