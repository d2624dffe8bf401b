package postgres

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/baechuer/pension-service/internal/domain"
)

const signupTokenBytes = 32

// TokenStore persists signup validation tokens in signup_tokens.
type TokenStore struct {
	gw  *Gateway
	now func() time.Time
}

func NewTokenStore(gw *Gateway) *TokenStore {
	return &TokenStore{gw: gw, now: time.Now}
}

// WithClock replaces the clock used for expiry decisions.
func (s *TokenStore) WithClock(now func() time.Time) *TokenStore {
	s.now = now
	return s
}

func (s *TokenStore) Issue(ctx context.Context, state domain.SignupState, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", domain.ErrInternal(errors.New("signup token ttl must be positive"))
	}
	payload, err := domain.EncodeSignupState(state)
	if err != nil {
		return "", domain.ErrInternal(err)
	}
	token, err := opaqueToken(signupTokenBytes)
	if err != nil {
		return "", domain.ErrRandomFailed(err)
	}

	now := s.now().UTC()
	const q = `
INSERT INTO signup_tokens (token, payload, created_at, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (token) DO UPDATE
SET payload = EXCLUDED.payload,
    created_at = EXCLUDED.created_at,
    expires_at = EXCLUDED.expires_at;
`
	if _, err := s.gw.Exec(ctx, q, token, string(payload), now, now.Add(ttl)); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve never mutates the row; resolving twice yields the same state.
func (s *TokenStore) Resolve(ctx context.Context, token string) (domain.SignupState, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrSignupTokenNotFound()
	}

	const q = `
SELECT payload, expires_at
FROM signup_tokens
WHERE token = $1;
`
	var (
		payload   []byte
		expiresAt time.Time
	)
	err := s.gw.QueryRow(ctx, q, []any{token}, &payload, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSignupTokenNotFound()
		}
		return nil, err
	}

	if !expiresAt.After(s.now()) {
		return nil, domain.ErrSignupTokenExpired()
	}

	st, err := domain.DecodeSignupState(payload)
	if err != nil {
		return nil, domain.ErrSignupTokenCorrupt(err)
	}
	return st, nil
}

// Sweep deletes every token whose expiry has passed.
func (s *TokenStore) Sweep(ctx context.Context) (int64, error) {
	return s.gw.Exec(ctx, `DELETE FROM signup_tokens WHERE expires_at <= $1`, s.now().UTC())
}

func opaqueToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
