package auth

import (
	"context"
	"strings"

	"github.com/baechuer/pension-service/internal/domain"
	"github.com/baechuer/pension-service/internal/logger"
)

type LoginResult struct {
	Account domain.Account
	Tokens  AuthTokens
}

// Login authenticates an account and issues a session token.
// IMPORTANT: an unknown email and a wrong password must be indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return LoginResult{}, domain.ErrInvalidCredentials()
	}

	acc, err := s.accounts.GetLoginByEmail(ctx, email)
	if err != nil {
		if !domain.Is(err, "account_not_found") {
			// infrastructure failures are not credential failures
			return LoginResult{}, err
		}
		// Burn a comparable amount of time so response latency does not
		// reveal whether the email exists.
		_ = s.hasher.Compare(s.dummy(), password)
		s.audit("login.failed", map[string]string{"reason": "unknown_email", "email": email})
		return LoginResult{}, domain.ErrInvalidCredentials()
	}

	if err := s.hasher.Compare(acc.Credential.PasswordHash, password); err != nil {
		s.audit("login.failed", map[string]string{"reason": "bad_password", "account_id": acc.Credential.ID})
		return LoginResult{}, domain.ErrInvalidCredentials()
	}

	// Not a secret once the password is proven.
	if acc.Credential.Status == domain.StatusSuspended {
		s.audit("login.failed", map[string]string{"reason": "suspended", "account_id": acc.Credential.ID})
		return LoginResult{}, domain.ErrAccountSuspended()
	}

	access, err := s.signer.SignAccessToken(acc.Credential.ID, string(acc.Profile.Category), s.accessTTL)
	if err != nil {
		return LoginResult{}, domain.ErrTokenSignFailed(err)
	}

	s.touchLastLogin(ctx, acc.Credential.ID)
	s.audit("login.succeeded", map[string]string{"account_id": acc.Credential.ID})

	return LoginResult{
		Account: acc,
		Tokens: AuthTokens{
			AccessToken: access,
			TokenType:   "Bearer",
			ExpiresIn:   int64(s.accessTTL.Seconds()),
		},
	}, nil
}

// touchLastLogin updates last_login_at off the request path. The request
// context may be cancelled as soon as the response is written, so the update
// runs on a detached context with its own timeout. Failure is only logged.
func (s *Service) touchLastLogin(ctx context.Context, accountID string) {
	at := s.now()
	bg := context.WithoutCancel(ctx)

	s.touches.Add(1)
	go func() {
		defer s.touches.Done()
		tctx, cancel := context.WithTimeout(bg, s.touchTimeout)
		defer cancel()
		if err := s.accounts.TouchLastLogin(tctx, accountID, at); err != nil {
			logger.WithCtx(bg).Warn().
				Err(err).
				Str("account_id", accountID).
				Msg("update last login failed")
		}
	}()
}

// fallbackDummyHash is a cost-12 bcrypt hash of 16 'x' characters, used when
// the hasher cannot produce one so unknown emails still pay the bcrypt cost.
const fallbackDummyHash = "$2b$12$V0zw.JEo.0uvWHa9OttMheUSrhz4cWqvMiK/2.QGc2lnUgpKgqW1e"

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(strings.Repeat("x", 16))
		if err != nil || h == "" {
			logger.Logger.Warn().Err(err).Msg("dummy hash unavailable; using fallback")
			h = fallbackDummyHash
		}
		s.dummyHash = h
	})
	return s.dummyHash
}
