package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/baechuer/pension-service/internal/domain"
)

type fakeAccounts struct {
	mu      sync.Mutex
	byEmail map[string]domain.Account
	touched map[string]time.Time

	getErr   error
	touchErr error

	// gate, when set, holds TouchLastLogin until closed.
	gate     chan struct{}
	touchCtx chan error
}

func newFakeAccounts(accs ...domain.Account) *fakeAccounts {
	f := &fakeAccounts{
		byEmail:  map[string]domain.Account{},
		touched:  map[string]time.Time{},
		touchCtx: make(chan error, 8),
	}
	for _, a := range accs {
		f.byEmail[a.Credential.Email] = a
	}
	return f
}

func (f *fakeAccounts) GetLoginByEmail(_ context.Context, email string) (domain.Account, error) {
	if f.getErr != nil {
		return domain.Account{}, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byEmail[email]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound()
	}
	return a, nil
}

func (f *fakeAccounts) GetByID(_ context.Context, id string) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byEmail {
		if a.Credential.ID == id {
			return a, nil
		}
	}
	return domain.Account{}, domain.ErrAccountNotFound()
}

func (f *fakeAccounts) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	if f.gate != nil {
		<-f.gate
	}
	f.touchCtx <- ctx.Err()
	if f.touchErr != nil {
		return f.touchErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[id] = at
	return nil
}

// plainHasher stores "h:" + password so tests stay fast.
type plainHasher struct {
	mu           sync.Mutex
	compares     int
	hashes       int
	hashErr      error
	lastCompared string
}

func (h *plainHasher) Hash(p string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hashes++
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return "h:" + p, nil
}

func (h *plainHasher) Compare(hash, p string) error {
	h.mu.Lock()
	h.compares++
	h.lastCompared = hash
	h.mu.Unlock()
	if !strings.HasPrefix(hash, "h:") || hash[2:] != p {
		return errors.New("mismatch")
	}
	return nil
}

type fakeSigner struct {
	err      error
	lastSub  string
	lastRole string
	lastTTL  time.Duration
}

func (s *fakeSigner) SignAccessToken(id, role string, ttl time.Duration) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.lastSub, s.lastRole, s.lastTTL = id, role, ttl
	return "tok-" + id, nil
}

func (s *fakeSigner) VerifyAccessToken(tok string) (TokenClaims, error) {
	if !strings.HasPrefix(tok, "tok-") {
		return TokenClaims{}, domain.ErrTokenInvalid()
	}
	return TokenClaims{AccountID: tok[4:]}, nil
}

func juan(status domain.AccountStatus) domain.Account {
	return domain.Account{
		Credential: domain.Credential{
			ID:           "c-1",
			ProfileID:    "p-1",
			Email:        "juan@x.com",
			PasswordHash: "h:Str0ng!pass",
			Status:       status,
		},
		Profile: domain.Profile{
			ID:         "p-1",
			RegistryID: 1,
			Category:   domain.CategoryPrincipal,
		},
		FirstName: "JUAN",
		LastName:  "CRUZ",
		SerialID:  "AF-123",
	}
}
