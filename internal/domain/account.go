package domain

import (
	"time"

	"github.com/go-playground/validator/v10"
)

type AccountStatus string

const (
	StatusUnverified AccountStatus = "unverified"
	StatusActive     AccountStatus = "active"
	StatusSuspended  AccountStatus = "suspended"
)

// Profile links exactly one registry record to one account.
type Profile struct {
	ID            string
	RegistryID    int64
	Category      Category
	Affiliation   string
	Relationship  Relationship // beneficiaries only
	PrincipalName string       // beneficiaries only
	CreatedAt     time.Time
}

// Credential is 1:1 with a Profile.
type Credential struct {
	ID           string
	ProfileID    string
	Email        string
	PasswordHash string
	Status       AccountStatus
	LastLoginAt  *time.Time
	CreatedAt    time.Time
}

// Account is the joined credential + profile + registry view used by login and /me.
type Account struct {
	Credential Credential
	Profile    Profile
	FirstName  string
	LastName   string
	SerialID   string
}

// NewAccount is the finalizer input: both rows are written together or not at all.
type NewAccount struct {
	Profile    Profile
	Credential Credential
}

var emailValidate = validator.New()

// ValidateEmail checks an already normalized email address.
func ValidateEmail(email string) error {
	if email == "" {
		return ErrMissingField("email")
	}
	if err := emailValidate.Var(email, "email,max=254"); err != nil {
		return ErrInvalidField("email", "invalid format")
	}
	return nil
}
