package memory

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/baechuer/pension-service/internal/domain"
)

type tokenEntry struct {
	payload   []byte
	expiresAt time.Time
}

// TokenStore keeps signup tokens in process. Payloads go through the same
// codec as the database store.
type TokenStore struct {
	mu   sync.RWMutex
	data map[string]tokenEntry
	now  func() time.Time
}

func NewTokenStore() *TokenStore {
	return &TokenStore{data: make(map[string]tokenEntry), now: time.Now}
}

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
	token, err := opaqueToken(32)
	if err != nil {
		return "", domain.ErrRandomFailed(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[token] = tokenEntry{payload: payload, expiresAt: s.now().Add(ttl)}
	return token, nil
}

func (s *TokenStore) Resolve(ctx context.Context, token string) (domain.SignupState, error) {
	s.mu.RLock()
	e, ok := s.data[strings.TrimSpace(token)]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.ErrSignupTokenNotFound()
	}
	if !e.expiresAt.After(s.now()) {
		return nil, domain.ErrSignupTokenExpired()
	}
	st, err := domain.DecodeSignupState(e.payload)
	if err != nil {
		return nil, domain.ErrSignupTokenCorrupt(err)
	}
	return st, nil
}

func (s *TokenStore) Sweep(ctx context.Context) (int64, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, e := range s.data {
		if !e.expiresAt.After(now) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

// Len is used by tests.
func (s *TokenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func opaqueToken(bytesLen int) (string, error) {
	if bytesLen <= 0 {
		return "", errors.New("invalid token length")
	}
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
