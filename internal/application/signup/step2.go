package signup

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/baechuer/pension-service/internal/domain"
)

type Step2Input struct {
	Token     string
	FirstName string
	LastName  string
	DOB       string
}

type step2Details struct {
	firstName string
	lastName  string
	dob       time.Time
}

func (in Step2Input) validate(now time.Time) (step2Details, error) {
	var d step2Details
	if strings.TrimSpace(in.Token) == "" {
		return d, domain.ErrMissingField("step1Token")
	}
	d.firstName = domain.NormalizeField(in.FirstName)
	if d.firstName == "" {
		return d, domain.ErrMissingField("firstName")
	}
	d.lastName = domain.NormalizeField(in.LastName)
	if d.lastName == "" {
		return d, domain.ErrMissingField("lastName")
	}
	dob, err := domain.ParseBirthDate(in.DOB, now)
	if err != nil {
		return d, err
	}
	d.dob = dob
	return d, nil
}

// Step2 verifies personal details against the registry record selected by
// the step-1 token. A mismatch is reported without saying which detail was
// wrong.
func (s *Service) Step2(ctx context.Context, in Step2Input) (TokenResult, error) {
	d, err := in.validate(s.now())
	if err != nil {
		return TokenResult{}, err
	}

	raw, err := s.tokens.Resolve(ctx, in.Token)
	if err != nil {
		return TokenResult{}, err
	}
	prev, ok := raw.(domain.Step1State)
	if !ok {
		return TokenResult{}, domain.ErrSignupTokenWrongStep(domain.SignupStepEligibility, raw.Step())
	}

	rec, err := s.registry.MatchPersonalDetails(ctx, prev.Category, prev.SerialID, d.firstName, d.lastName, d.dob)
	if err != nil {
		if domain.Is(err, "registry_record_not_found") {
			return TokenResult{}, domain.ErrIdentityMismatch()
		}
		return TokenResult{}, err
	}

	st := domain.Step2State{
		Step1State:    prev,
		RegistryID:    rec.ID,
		ControlNumber: rec.ControlNumber,
		FirstName:     rec.FirstName,
		LastName:      rec.LastName,
	}
	res, err := s.issue(ctx, st, s.step2TTL)
	if err != nil {
		return TokenResult{}, err
	}

	s.audit("signup.step2", map[string]string{
		"category":  string(st.Category),
		"serial_id": st.SerialID,
		"registry":  strconv.FormatInt(rec.ID, 10),
	})
	return res, nil
}
