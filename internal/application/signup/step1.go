package signup

import (
	"context"
	"strconv"
	"strings"

	"github.com/baechuer/pension-service/internal/domain"
)

type Step1Input struct {
	Category      string
	SerialID      string
	Branch        string
	Relationship  string
	PrincipalName string
}

// normalize validates the input and returns the normalized state. It never
// touches storage.
func (in Step1Input) normalize() (domain.Step1State, error) {
	var st domain.Step1State

	if strings.TrimSpace(in.Category) == "" {
		return st, domain.ErrMissingField("category")
	}
	cat, ok := domain.ParseCategory(in.Category)
	if !ok {
		return st, domain.ErrInvalidField("category", "must be Principal or Beneficiary")
	}
	st.Category = cat

	st.SerialID = domain.NormalizeField(in.SerialID)
	if st.SerialID == "" {
		return st, domain.ErrMissingField("serialId")
	}

	switch cat {
	case domain.CategoryPrincipal:
		st.Branch = domain.NormalizeField(in.Branch)
		if st.Branch == "" {
			return st, domain.ErrMissingField("branch")
		}
	case domain.CategoryBeneficiary:
		if strings.TrimSpace(in.Relationship) == "" {
			return st, domain.ErrMissingField("relationship")
		}
		rel, ok := domain.ParseRelationship(in.Relationship)
		if !ok {
			return st, domain.ErrInvalidField("relationship", "unknown relationship")
		}
		st.Relationship = rel
		st.PrincipalName = domain.NormalizeField(in.PrincipalName)
		if st.PrincipalName == "" {
			return st, domain.ErrMissingField("principalName")
		}
		st.Branch = domain.NormalizeField(in.Branch)
	}
	return st, nil
}

// Step1 checks eligibility: the serial id must match exactly one registry
// record of the given category and no account may be linked to it yet.
func (s *Service) Step1(ctx context.Context, in Step1Input) (TokenResult, error) {
	st, err := in.normalize()
	if err != nil {
		return TokenResult{}, err
	}

	rec, err := s.registry.Match(ctx, st.Category, st.SerialID)
	if err != nil {
		return TokenResult{}, err
	}

	exists, err := s.accounts.ExistsForRegistry(ctx, rec.ID)
	if err != nil {
		return TokenResult{}, err
	}
	if exists {
		return TokenResult{}, domain.ErrAccountAlreadyExists()
	}

	res, err := s.issue(ctx, st, s.step1TTL)
	if err != nil {
		return TokenResult{}, err
	}

	s.audit("signup.step1", map[string]string{
		"category":  string(st.Category),
		"serial_id": st.SerialID,
		"registry":  strconv.FormatInt(rec.ID, 10),
	})
	return res, nil
}
