package auth

import (
	"sync"
	"time"
)

type Service struct {
	accounts AccountReader
	hasher   PasswordHasher
	signer   TokenSigner

	accessTTL time.Duration
	now       func() time.Time
	audit     func(action string, fields map[string]string)

	// touchTimeout bounds the detached last-login update.
	touchTimeout time.Duration
	touches      sync.WaitGroup

	dummyOnce sync.Once
	dummyHash string
}

type Config struct {
	AccessTTL time.Duration
}

func NewService(accounts AccountReader, hasher PasswordHasher, signer TokenSigner, cfg Config) *Service {
	ttl := cfg.AccessTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{
		accounts:     accounts,
		hasher:       hasher,
		signer:       signer,
		accessTTL:    ttl,
		now:          time.Now,
		audit:        func(string, map[string]string) {},
		touchTimeout: 5 * time.Second,
	}
}

func (s *Service) WithAudit(fn func(action string, fields map[string]string)) *Service {
	if fn != nil {
		s.audit = fn
	}
	return s
}

// AuthTokens is the token output for handlers/DTO mapping.
type AuthTokens struct {
	AccessToken string
	ExpiresIn   int64  // seconds
	TokenType   string // "Bearer"
}

// Wait blocks until background last-login updates have finished. Used on
// shutdown and in tests.
func (s *Service) Wait() {
	s.touches.Wait()
}
