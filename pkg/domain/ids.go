// Package domain holds typed identifiers and the canonical field key shared
// across the catalog, application, and visibility packages.
package domain

import (
	"strconv"

	"github.com/google/uuid"

	dErrors "visaflow/pkg/domain-errors"
)

// Typed UUID identifiers. Distinct types so the compiler rejects passing a
// product id where an application id is expected.
//
// Invariant: IDs must be valid, non-empty, non-nil UUIDs. Construct via the
// Parse helpers at trust boundaries; direct casting bypasses validation.
type (
	ApplicationID uuid.UUID
	ProductID     uuid.UUID
	CustomerID    uuid.UUID
)

// TravelerID is the 1-based position of a traveler within an application.
// Traveler 1 is the applicant (the customer record); travelers 2..N own their
// own rows and response maps.
type TravelerID int64

// ApplicantTravelerID identifies the applicant when a traveler scope is
// implied but no traveler row exists.
const ApplicantTravelerID TravelerID = 1

func (id ApplicationID) String() string { return uuid.UUID(id).String() }
func (id ProductID) String() string     { return uuid.UUID(id).String() }
func (id CustomerID) String() string    { return uuid.UUID(id).String() }

func (id ApplicationID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id ProductID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }
func (id CustomerID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }

func (t TravelerID) String() string { return strconv.FormatInt(int64(t), 10) }

// IsApplicant reports whether this traveler id addresses the applicant
// (application-level response map) rather than a traveler row.
func (t TravelerID) IsApplicant() bool { return t == ApplicantTravelerID }

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id cannot be empty", what)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s id", what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id cannot be the nil UUID", what)
	}
	return u, nil
}

// ParseApplicationID constructs an ApplicationID from external input.
func ParseApplicationID(s string) (ApplicationID, error) {
	u, err := parseUUID(s, "application")
	return ApplicationID(u), err
}

// ParseProductID constructs a ProductID from external input.
func ParseProductID(s string) (ProductID, error) {
	u, err := parseUUID(s, "product")
	return ProductID(u), err
}

// ParseCustomerID constructs a CustomerID from external input.
func ParseCustomerID(s string) (CustomerID, error) {
	u, err := parseUUID(s, "customer")
	return CustomerID(u), err
}

// ParseTravelerID constructs a TravelerID from external input.
func ParseTravelerID(s string) (TravelerID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 1 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "traveler id must be a positive integer")
	}
	return TravelerID(n), nil
}
