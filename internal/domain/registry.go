package domain

import (
	"strings"
	"time"
)

// Category distinguishes the pensioner from a dependent claiming through them.
type Category string

const (
	CategoryPrincipal   Category = "Principal"
	CategoryBeneficiary Category = "Beneficiary"
)

// ParseCategory accepts any casing and surrounding whitespace.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PRINCIPAL":
		return CategoryPrincipal, true
	case "BENEFICIARY":
		return CategoryBeneficiary, true
	default:
		return "", false
	}
}

// Relationship of a beneficiary to the principal.
type Relationship string

const (
	RelationshipSpouse   Relationship = "SPOUSE"
	RelationshipChild    Relationship = "CHILD"
	RelationshipParent   Relationship = "PARENT"
	RelationshipSibling  Relationship = "SIBLING"
	RelationshipGuardian Relationship = "GUARDIAN"
)

func ParseRelationship(s string) (Relationship, bool) {
	r := Relationship(NormalizeField(s))
	switch r {
	case RelationshipSpouse, RelationshipChild, RelationshipParent, RelationshipSibling, RelationshipGuardian:
		return r, true
	default:
		return "", false
	}
}

// RegistryRecord is read-only reference data for a person eligible to enroll.
type RegistryRecord struct {
	ID            int64
	SerialID      string
	Category      Category
	FirstName     string
	LastName      string
	BirthDate     time.Time
	ControlNumber string
}

// DateLayout is the wire and storage format for dates of birth.
const DateLayout = "2006-01-02"

// NormalizeField trims surrounding whitespace and uppercases.
// Registry comparisons are done on normalized values on both sides.
func NormalizeField(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeEmail lowercases and trims.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ParseBirthDate parses YYYY-MM-DD and rejects dates after now.
func ParseBirthDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrMissingField("dob")
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, ErrInvalidField("dob", "expected YYYY-MM-DD")
	}
	if d.After(now) {
		return time.Time{}, ErrInvalidField("dob", "date is in the future")
	}
	return d, nil
}

// SampleRegistry is the reference data seeded in development. AF-999 is
// deliberately duplicated.
func SampleRegistry() []RegistryRecord {
	d := func(s string) time.Time {
		t, _ := time.Parse(DateLayout, s)
		return t
	}
	return []RegistryRecord{
		{SerialID: "AF-123", Category: CategoryPrincipal, FirstName: "JUAN", LastName: "CRUZ", BirthDate: d("1950-01-01"), ControlNumber: "CN-AF-0001"},
		{SerialID: "NV-456", Category: CategoryPrincipal, FirstName: "MARIA", LastName: "SANTOS", BirthDate: d("1948-07-14"), ControlNumber: "CN-NV-0002"},
		{SerialID: "PA-789", Category: CategoryBeneficiary, FirstName: "ROSA", LastName: "REYES", BirthDate: d("1975-03-02"), ControlNumber: "CN-PA-0003"},
		{SerialID: "AF-999", Category: CategoryPrincipal, FirstName: "PEDRO", LastName: "GARCIA", BirthDate: d("1952-11-30"), ControlNumber: "CN-AF-0004"},
		{SerialID: "AF-999", Category: CategoryPrincipal, FirstName: "PEDRO", LastName: "GARCIA", BirthDate: d("1952-11-30"), ControlNumber: "CN-AF-0005"},
	}
}
