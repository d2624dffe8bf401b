package auth

import (
	"context"
	"time"

	"github.com/baechuer/pension-service/internal/domain"
)

/*
AccountReader
-------------
Read side of accounts used by login and /me. GetLoginByEmail returns the
joined credential, profile and registry row.
*/
type AccountReader interface {
	GetLoginByEmail(ctx context.Context, email string) (domain.Account, error)
	GetByID(ctx context.Context, credentialID string) (domain.Account, error)
	TouchLastLogin(ctx context.Context, credentialID string, at time.Time) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash string, password string) error // nil if match
}

/*
TokenSigner
-----------
Issues and verifies session tokens (JWT).
Used by service + auth middleware.
*/
type TokenClaims struct {
	AccountID string
	Role      string
	Exp       time.Time
}

type TokenSigner interface {
	SignAccessToken(accountID string, role string, ttl time.Duration) (string, error)
	VerifyAccessToken(token string) (TokenClaims, error)
}
