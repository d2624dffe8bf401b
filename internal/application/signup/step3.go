package signup

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/baechuer/pension-service/internal/domain"
	"github.com/baechuer/pension-service/internal/logger"
)

type Step3Input struct {
	Token    string
	Email    string
	Password string
}

// Step3 creates the credential. Uniqueness of the email and of the registry
// link is decided inside the finalizing transaction, not by earlier reads.
// The raw password is only ever handed to the hasher.
func (s *Service) Step3(ctx context.Context, in Step3Input) (CompletedResult, error) {
	if strings.TrimSpace(in.Token) == "" {
		return CompletedResult{}, domain.ErrMissingField("step2Token")
	}
	email := domain.NormalizeEmail(in.Email)
	if err := domain.ValidateEmail(email); err != nil {
		return CompletedResult{}, err
	}
	if err := s.policy.Check(in.Password); err != nil {
		return CompletedResult{}, err
	}

	raw, err := s.tokens.Resolve(ctx, in.Token)
	if err != nil {
		return CompletedResult{}, err
	}
	st, ok := raw.(domain.Step2State)
	if !ok {
		return CompletedResult{}, domain.ErrSignupTokenWrongStep(domain.SignupStepPersonal, raw.Step())
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return CompletedResult{}, domain.ErrHashFailed(err)
	}

	acc, err := s.accounts.Finalize(ctx, domain.NewAccount{
		Profile: domain.Profile{
			ID:            uuid.NewString(),
			RegistryID:    st.RegistryID,
			Category:      st.Category,
			Affiliation:   st.Branch,
			Relationship:  st.Relationship,
			PrincipalName: st.PrincipalName,
		},
		Credential: domain.Credential{
			ID:           uuid.NewString(),
			Email:        email,
			PasswordHash: hash,
			Status:       domain.StatusUnverified,
		},
	})
	if err != nil {
		return CompletedResult{}, err
	}

	evt := AccountRegisteredEvent{
		AccountID:  acc.Credential.ID,
		ProfileID:  acc.Profile.ID,
		Email:      acc.Credential.Email,
		Category:   string(acc.Profile.Category),
		RegistryID: acc.Profile.RegistryID,
		OccurredAt: s.now().UTC(),
	}
	if err := s.pub.PublishAccountRegistered(ctx, evt); err != nil {
		logger.WithCtx(ctx).Warn().
			Err(err).
			Str("account_id", evt.AccountID).
			Msg("publish account registered failed")
	}

	s.audit("signup.completed", map[string]string{
		"account_id": acc.Credential.ID,
		"category":   string(acc.Profile.Category),
		"registry":   strconv.FormatInt(acc.Profile.RegistryID, 10),
	})
	return CompletedResult{Account: acc}, nil
}
