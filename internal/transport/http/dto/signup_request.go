package dto

import "github.com/baechuer/pension-service/internal/domain"

// SignupRequest carries the fields of every step; Step selects which apply.
// Step-specific rules live in the signup service.
type SignupRequest struct {
	Step int `json:"step" validate:"required"`

	// step 1
	Category      string `json:"category,omitempty" validate:"max=32"`
	SerialID      string `json:"serialId,omitempty" validate:"max=64"`
	Branch        string `json:"branch,omitempty" validate:"max=64"`
	Relationship  string `json:"relationship,omitempty" validate:"max=32"`
	PrincipalName string `json:"principalName,omitempty" validate:"max=200"`

	// step 2
	Step1Token string `json:"step1Token,omitempty" validate:"max=128"`
	FirstName  string `json:"firstName,omitempty" validate:"max=100"`
	LastName   string `json:"lastName,omitempty" validate:"max=100"`
	DOB        string `json:"dob,omitempty" validate:"max=10"`

	// step 3
	Step2Token string `json:"step2Token,omitempty" validate:"max=128"`
	Email      string `json:"email,omitempty" validate:"max=254"`
	Password   string `json:"password,omitempty"`
}

func (r *SignupRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	if r.Step < 1 || r.Step > 3 {
		return domain.ErrUnknownStep(r.Step)
	}
	return nil
}
