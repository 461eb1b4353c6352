// Package visibility computes the list of fields to present for an
// application, a traveler scope, and a view mode. It is a pure computation
// over the application aggregate and the product field catalog; it never
// touches a store.
package visibility

import (
	"fmt"
	"sort"

	"visaflow/internal/application/models"
	"visaflow/internal/catalog"
	"visaflow/pkg/domain"
)

// ViewMode distinguishes an end user filling a form from an administrator
// auditing it.
type ViewMode string

const (
	ViewUser  ViewMode = "user"
	ViewAdmin ViewMode = "admin"
)

// ParseViewMode parses a view mode query value. Empty defaults to user view.
func ParseViewMode(s string) (ViewMode, error) {
	switch s {
	case "", string(ViewUser):
		return ViewUser, nil
	case string(ViewAdmin):
		return ViewAdmin, nil
	}
	return "", fmt.Errorf("unknown view mode %q", s)
}

// Source names where a presented field came from.
type Source string

const (
	SourceProduct  Source = "product"
	SourceAdmin    Source = "admin"
	SourcePassport Source = "passport"
)

// Field is one entry of the resolved list: the definition to render, where it
// came from, whether the caller may answer it, and the stored answer if any.
type Field struct {
	Key        domain.FieldKey         `json:"key"`
	Definition catalog.FieldDefinition `json:"definition"`
	Source     Source                  `json:"source"`
	Editable   bool                    `json:"editable"`
	Answer     *models.Answer          `json:"answer,omitempty"`
}

// Passport pseudo-fields carry negative sentinel display orders so they sort
// ahead of every catalog and ad hoc field.
var passportDefinitions = map[domain.FieldKey]catalog.FieldDefinition{
	domain.FieldKeyPassportNumber: {
		Type: catalog.FieldTypeText, Question: "Passport number",
		Required: true, DisplayOrder: -100,
	},
	domain.FieldKeyPassportExpiry: {
		Type: catalog.FieldTypeDate, Question: "Passport expiry date",
		Required: true, DisplayOrder: -99,
	},
	domain.FieldKeyResidenceCountry: {
		Type: catalog.FieldTypeText, Question: "Country of residence",
		Required: true, DisplayOrder: -98,
	},
	domain.FieldKeyHasSchengenVisa: {
		Type: catalog.FieldTypeDropdown, Question: "Do you hold a valid Schengen visa?",
		Required: true, DisplayOrder: -97, Options: []string{"yes", "no"},
	},
}

// Resolve computes the ordered field list for the given scope and view mode.
// travelerID nil means an application-level query (the applicant's answers,
// no per-traveler restriction).
//
// An end user with an explicit traveler scope sees the first non-empty source
// of: unfulfilled request fields for that scope, ad hoc fields for that
// scope, legacy requested fields for that scope, the full active catalog.
// Every other caller gets the union of all sources, read-only in admin view.
// Passport pseudo-fields are appended whenever the scope is missing a
// passport attribute, already answered the pseudo-key, or an open request
// names it; the final list is de-duplicated by key and sorted by display
// order.
func Resolve(app *models.Application, travelerID *domain.TravelerID, mode ViewMode, catalogFields []catalog.FieldDefinition) []Field {
	scope := domain.ApplicantTravelerID
	if travelerID != nil {
		scope = *travelerID
	}
	editable := mode == ViewUser

	var fields []Field
	if mode == ViewUser && travelerID != nil {
		fields = restrictedFields(app, scope, catalogFields)
	}
	if fields == nil {
		fields = unionFields(app, scope, editable, catalogFields)
	}

	fields = appendPassportFields(fields, app, scope, editable)
	return finalize(fields, app, scope)
}

// AllowedKeys returns the set of keys a submission in the given scope may
// answer: the keys of the resolved user-view field list.
func AllowedKeys(app *models.Application, travelerID *domain.TravelerID, catalogFields []catalog.FieldDefinition) map[domain.FieldKey]struct{} {
	fields := Resolve(app, travelerID, ViewUser, catalogFields)
	keys := make(map[domain.FieldKey]struct{}, len(fields))
	for _, f := range fields {
		keys[f.Key] = struct{}{}
	}
	return keys
}

// Restricted reports whether a user-view query for the scope is limited to
// correction fields rather than the full form.
func Restricted(app *models.Application, travelerID *domain.TravelerID) bool {
	if travelerID == nil {
		return false
	}
	scope := *travelerID
	return len(app.OpenRequestsFor(scope)) > 0 ||
		len(scopedAdHocFields(app, scope)) > 0 ||
		legacyKeysFor(app, scope) != nil
}

// restrictedFields evaluates the precedence sources top-down and returns the
// first non-empty one, or nil when every restricting source is empty.
func restrictedFields(app *models.Application, scope domain.TravelerID, catalogFields []catalog.FieldDefinition) []Field {
	if open := app.OpenRequestsFor(scope); len(open) > 0 {
		var fields []Field
		for _, r := range open {
			for _, key := range r.FieldKeys {
				fields = append(fields, resolveKey(app, key, true, catalogFields))
			}
		}
		return fields
	}

	if adhoc := scopedAdHocFields(app, scope); len(adhoc) > 0 {
		fields := make([]Field, 0, len(adhoc))
		for _, f := range adhoc {
			fields = append(fields, Field{
				Key: f.Key(), Definition: f.FieldDefinition,
				Source: SourceAdmin, Editable: true,
			})
		}
		return fields
	}

	if keys := legacyKeysFor(app, scope); keys != nil {
		fields := make([]Field, 0, len(keys))
		for _, key := range keys {
			fields = append(fields, resolveKey(app, key, true, catalogFields))
		}
		return fields
	}

	return nil
}

// unionFields merges every source: the active catalog, the scope's ad hoc
// fields, and any fields named only by requests or the legacy representation.
func unionFields(app *models.Application, scope domain.TravelerID, editable bool, catalogFields []catalog.FieldDefinition) []Field {
	var fields []Field
	for _, def := range catalogFields {
		if !def.Active {
			continue
		}
		fields = append(fields, Field{
			Key: def.Key(), Definition: def,
			Source: SourceProduct, Editable: editable,
		})
	}
	for _, f := range scopedAdHocFields(app, scope) {
		fields = append(fields, Field{
			Key: f.Key(), Definition: f.FieldDefinition,
			Source: SourceAdmin, Editable: editable,
		})
	}
	for _, r := range app.Requests {
		if !r.MatchesScope(scope) {
			continue
		}
		for _, key := range r.FieldKeys {
			fields = append(fields, resolveKey(app, key, editable, catalogFields))
		}
	}
	for _, key := range legacyKeysFor(app, scope) {
		fields = append(fields, resolveKey(app, key, editable, catalogFields))
	}
	return fields
}

func scopedAdHocFields(app *models.Application, scope domain.TravelerID) []models.AdHocField {
	var out []models.AdHocField
	for _, f := range app.AdHocFields {
		if f.AppliesTo(scope) {
			out = append(out, f)
		}
	}
	return out
}

func legacyKeysFor(app *models.Application, scope domain.TravelerID) []domain.FieldKey {
	if len(app.Requests) > 0 || len(app.LegacyFieldKeys) == 0 {
		return nil
	}
	if app.LegacyTarget == models.TargetTraveler && app.LegacyTravelerID != nil {
		if *app.LegacyTravelerID != scope {
			return nil
		}
	} else if !scope.IsApplicant() {
		return nil
	}
	return app.LegacyFieldKeys
}

// Definition resolves the definition behind a field key: a passport
// pseudo-field, a registered ad hoc field, or a catalog field. Reports false
// when the key references nothing.
func Definition(app *models.Application, key domain.FieldKey, catalogFields []catalog.FieldDefinition) (catalog.FieldDefinition, bool) {
	if key.IsReserved() {
		return passportDefinitions[key], true
	}
	if key.IsAdHoc() {
		if f := app.FindAdHocField(key.Num()); f != nil {
			return f.FieldDefinition, true
		}
		return catalog.FieldDefinition{}, false
	}
	for _, def := range catalogFields {
		if def.ID == key.Num() {
			return def, true
		}
	}
	return catalog.FieldDefinition{}, false
}

// resolveKey finds the definition behind a referenced key. Requests may name
// passport pseudo-keys, ad hoc ids, or catalog ids including deleted ones;
// an unresolvable id still gets a minimal text definition so the stored
// answer stays reachable.
func resolveKey(app *models.Application, key domain.FieldKey, editable bool, catalogFields []catalog.FieldDefinition) Field {
	if key.IsReserved() {
		return Field{Key: key, Definition: passportDefinitions[key], Source: SourcePassport, Editable: editable}
	}
	if key.IsAdHoc() {
		if f := app.FindAdHocField(key.Num()); f != nil {
			return Field{Key: key, Definition: f.FieldDefinition, Source: SourceAdmin, Editable: editable}
		}
	}
	if key.IsCatalog() {
		for _, def := range catalogFields {
			if def.ID == key.Num() {
				return Field{Key: key, Definition: def, Source: SourceProduct, Editable: editable}
			}
		}
	}
	return Field{
		Key: key,
		Definition: catalog.FieldDefinition{
			ID: key.Num(), Type: catalog.FieldTypeText,
			Question: fmt.Sprintf("Field %s", key), Active: true,
		},
		Source:   SourceProduct,
		Editable: editable,
	}
}

// appendPassportFields adds the reserved pseudo-fields that apply to the
// scope: missing passport attributes, already-answered pseudo-keys, and
// pseudo-keys named by open requests. Duplicates are dropped in finalize.
func appendPassportFields(fields []Field, app *models.Application, scope domain.TravelerID, editable bool) []Field {
	passport := app.PassportFor(scope)
	responses := app.ResponsesFor(scope)

	requested := make(map[domain.FieldKey]bool)
	for _, r := range app.OpenRequestsFor(scope) {
		for _, key := range r.FieldKeys {
			if key.IsReserved() {
				requested[key] = true
			}
		}
	}

	for _, key := range domain.PassportKeys() {
		missing := passport != nil && passport.Get(key) == ""
		_, answered := responses[key]
		if !missing && !answered && !requested[key] {
			continue
		}
		fields = append(fields, Field{
			Key: key, Definition: passportDefinitions[key],
			Source: SourcePassport, Editable: editable,
		})
	}
	return fields
}

// finalize de-duplicates by key (first occurrence wins, so precedence order
// is preserved), attaches stored answers, and sorts by display order.
func finalize(fields []Field, app *models.Application, scope domain.TravelerID) []Field {
	responses := app.ResponsesFor(scope)

	seen := make(map[domain.FieldKey]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if seen[f.Key] {
			continue
		}
		seen[f.Key] = true
		if answer, ok := responses[f.Key]; ok {
			a := answer
			f.Answer = &a
		}
		out = append(out, f)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Definition.DisplayOrder < out[j].Definition.DisplayOrder
	})
	return out
}
