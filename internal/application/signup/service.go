package signup

import (
	"context"
	"time"

	"github.com/baechuer/pension-service/internal/domain"
)

type Service struct {
	registry RegistryMatcher
	accounts AccountRepo
	tokens   TokenStore
	hasher   PasswordHasher
	pub      EventPublisher

	step1TTL time.Duration
	step2TTL time.Duration
	policy   domain.PasswordPolicy
	now      func() time.Time
	audit    func(action string, fields map[string]string)
}

type Config struct {
	Step1TTL       time.Duration
	Step2TTL       time.Duration
	PasswordPolicy domain.PasswordPolicy
}

func NewService(
	registry RegistryMatcher,
	accounts AccountRepo,
	tokens TokenStore,
	hasher PasswordHasher,
	pub EventPublisher,
	cfg Config,
) *Service {
	step1TTL := cfg.Step1TTL
	if step1TTL <= 0 {
		step1TTL = time.Hour
	}
	step2TTL := cfg.Step2TTL
	if step2TTL <= 0 {
		step2TTL = 2 * time.Hour
	}
	policy := cfg.PasswordPolicy
	if policy.MinLength == 0 && policy.MaxRepeat == 0 && policy.Denylist == nil {
		policy = domain.DefaultPasswordPolicy()
	}
	return &Service{
		registry: registry,
		accounts: accounts,
		tokens:   tokens,
		hasher:   hasher,
		pub:      pub,
		step1TTL: step1TTL,
		step2TTL: step2TTL,
		policy:   policy,
		now:      time.Now,
		audit:    func(string, map[string]string) {},
	}
}

func (s *Service) WithAudit(fn func(action string, fields map[string]string)) *Service {
	if fn != nil {
		s.audit = fn
	}
	return s
}

// WithClock is used by tests to pin "today" for date-of-birth checks.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// TokenResult is returned by steps 1 and 2.
type TokenResult struct {
	Step      domain.SignupStep
	NextStep  domain.SignupStep
	Token     string
	ExpiresIn time.Duration
}

// CompletedResult is returned by step 3.
type CompletedResult struct {
	Account domain.NewAccount
}

func (s *Service) issue(ctx context.Context, st domain.SignupState, ttl time.Duration) (TokenResult, error) {
	tok, err := s.tokens.Issue(ctx, st, ttl)
	if err != nil {
		return TokenResult{}, err
	}
	return TokenResult{
		Step:      st.Step(),
		NextStep:  st.Step() + 1,
		Token:     tok,
		ExpiresIn: ttl,
	}, nil
}
