package domain

import (
	"strconv"
	"strings"

	dErrors "visaflow/pkg/domain-errors"
)

// Reserved passport pseudo-field keys. Answers stored under these keys mirror
// the dedicated passport attributes on the traveler/customer record; both
// representations are kept in sync whenever one is written.
const (
	KeyPassportNumber   = "_passport_number"
	KeyPassportExpiry   = "_passport_expiry_date"
	KeyResidenceCountry = "_residence_country"
	KeyHasSchengenVisa  = "_has_schengen_visa"
)

// FieldKey is the canonical identifier of an answerable field: a positive
// catalog id, a negative ad hoc id, or one of the four reserved passport keys.
//
// Incoming identifiers (JSON object keys, query parameters) arrive as strings;
// handlers normalize them through ParseFieldKey once so internal logic never
// re-parses. FieldKey is comparable and usable as a map key, and marshals to
// its string form so response maps round-trip through JSON.
type FieldKey struct {
	num      int64
	reserved string
}

// NumericKey builds a FieldKey from a catalog (positive) or ad hoc (negative)
// field id. Zero is not a valid field id.
func NumericKey(id int64) FieldKey {
	return FieldKey{num: id}
}

// Passport pseudo-field keys in render order.
var (
	FieldKeyPassportNumber   = FieldKey{reserved: KeyPassportNumber}
	FieldKeyPassportExpiry   = FieldKey{reserved: KeyPassportExpiry}
	FieldKeyResidenceCountry = FieldKey{reserved: KeyResidenceCountry}
	FieldKeyHasSchengenVisa  = FieldKey{reserved: KeyHasSchengenVisa}
)

// PassportKeys returns the four reserved passport keys in render order.
func PassportKeys() []FieldKey {
	return []FieldKey{
		FieldKeyPassportNumber,
		FieldKeyPassportExpiry,
		FieldKeyResidenceCountry,
		FieldKeyHasSchengenVisa,
	}
}

// ParseFieldKey normalizes an external identifier into a FieldKey.
// Accepts a signed non-zero integer or a reserved passport key.
func ParseFieldKey(s string) (FieldKey, error) {
	if s == "" {
		return FieldKey{}, dErrors.New(dErrors.CodeInvalidInput, "field key cannot be empty")
	}
	if strings.HasPrefix(s, "_") {
		switch s {
		case KeyPassportNumber, KeyPassportExpiry, KeyResidenceCountry, KeyHasSchengenVisa:
			return FieldKey{reserved: s}, nil
		}
		return FieldKey{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown reserved field key %q", s)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n == 0 {
		return FieldKey{}, dErrors.Newf(dErrors.CodeInvalidInput, "invalid field key %q", s)
	}
	return FieldKey{num: n}, nil
}

// MustFieldKey is ParseFieldKey for literals in tests and fixtures.
func MustFieldKey(s string) FieldKey {
	k, err := ParseFieldKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

// IsZero reports whether the key is the zero value (no identifier).
func (k FieldKey) IsZero() bool { return k.num == 0 && k.reserved == "" }

// IsReserved reports whether the key is a passport pseudo-field.
func (k FieldKey) IsReserved() bool { return k.reserved != "" }

// IsCatalog reports whether the key references a product catalog field.
func (k FieldKey) IsCatalog() bool { return k.num > 0 }

// IsAdHoc reports whether the key references an admin-created ad hoc field.
func (k FieldKey) IsAdHoc() bool { return k.num < 0 }

// Num returns the numeric id, or 0 for reserved keys.
func (k FieldKey) Num() int64 { return k.num }

func (k FieldKey) String() string {
	if k.reserved != "" {
		return k.reserved
	}
	return strconv.FormatInt(k.num, 10)
}

// MarshalText makes FieldKey usable as a JSON object key.
func (k FieldKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a FieldKey from its string form.
func (k *FieldKey) UnmarshalText(text []byte) error {
	parsed, err := ParseFieldKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
