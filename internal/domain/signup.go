package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// SignupStep tags which step produced a validation token.
type SignupStep int

const (
	SignupStepEligibility SignupStep = 1
	SignupStepPersonal    SignupStep = 2
	SignupStepCredentials SignupStep = 3
)

// SignupState is the state carried by a validation token between steps.
// Implementations: Step1State, Step2State.
type SignupState interface {
	Step() SignupStep
	validate() error
}

// Step1State is issued after the eligibility check. All text fields are normalized.
type Step1State struct {
	Category      Category     `json:"category"`
	SerialID      string       `json:"serial_id"`
	Branch        string       `json:"branch,omitempty"`
	Relationship  Relationship `json:"relationship,omitempty"`
	PrincipalName string       `json:"principal_name,omitempty"`
}

func (Step1State) Step() SignupStep { return SignupStepEligibility }

func (s Step1State) validate() error {
	if _, ok := ParseCategory(string(s.Category)); !ok {
		return fmt.Errorf("category %q", s.Category)
	}
	if s.SerialID == "" {
		return errors.New("missing serial_id")
	}
	if s.Category == CategoryBeneficiary && (s.Relationship == "" || s.PrincipalName == "") {
		return errors.New("beneficiary without relationship")
	}
	return nil
}

// Step2State carries everything from step 1 plus the matched registry record.
type Step2State struct {
	Step1State
	RegistryID    int64  `json:"registry_id"`
	ControlNumber string `json:"control_number"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
}

func (Step2State) Step() SignupStep { return SignupStepPersonal }

func (s Step2State) validate() error {
	if err := s.Step1State.validate(); err != nil {
		return err
	}
	if s.RegistryID <= 0 {
		return errors.New("missing registry_id")
	}
	return nil
}

type signupEnvelope struct {
	Step  SignupStep      `json:"step"`
	State json.RawMessage `json:"state"`
}

// EncodeSignupState serializes a state as {"step":N,"state":{...}}.
func EncodeSignupState(s SignupState) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil signup state")
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(signupEnvelope{Step: s.Step(), State: raw})
}

// DecodeSignupState is the inverse of EncodeSignupState. It rejects unknown
// tags and states missing the fields their step requires.
func DecodeSignupState(b []byte) (SignupState, error) {
	var env signupEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, err
	}

	var st SignupState
	switch env.Step {
	case SignupStepEligibility:
		var s Step1State
		if err := json.Unmarshal(env.State, &s); err != nil {
			return nil, err
		}
		st = s
	case SignupStepPersonal:
		var s Step2State
		if err := json.Unmarshal(env.State, &s); err != nil {
			return nil, err
		}
		st = s
	default:
		return nil, fmt.Errorf("unknown signup step %d", env.Step)
	}

	if err := st.validate(); err != nil {
		return nil, fmt.Errorf("step %d state: %w", env.Step, err)
	}
	return st, nil
}
