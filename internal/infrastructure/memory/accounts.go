package memory

import (
	"context"
	"sync"
	"time"

	"github.com/baechuer/pension-service/internal/domain"
)

// Accounts holds profiles and credentials. Finalize runs its checks and both
// inserts under one lock, which is the in-process equivalent of the
// database transaction.
type Accounts struct {
	registry *Registry

	mu         sync.RWMutex
	byID       map[string]domain.NewAccount // credential id
	byEmail    map[string]string            // email -> credential id
	byRegistry map[int64]string             // registry id -> credential id
}

func NewAccounts(registry *Registry) *Accounts {
	return &Accounts{
		registry:   registry,
		byID:       make(map[string]domain.NewAccount),
		byEmail:    make(map[string]string),
		byRegistry: make(map[int64]string),
	}
}

func (a *Accounts) ExistsForRegistry(ctx context.Context, registryID int64) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.byRegistry[registryID]
	return ok, nil
}

func (a *Accounts) Finalize(ctx context.Context, in domain.NewAccount) (domain.NewAccount, error) {
	p, c := in.Profile, in.Credential
	c.Email = domain.NormalizeEmail(c.Email)
	switch {
	case p.ID == "":
		return in, domain.ErrMissingField("profile_id")
	case c.ID == "":
		return in, domain.ErrMissingField("credential_id")
	case c.Email == "":
		return in, domain.ErrMissingField("email")
	case c.PasswordHash == "":
		return in, domain.ErrMissingField("password_hash")
	}
	if _, ok := a.registry.byID(p.RegistryID); !ok {
		return in, domain.ErrRegistryRecordNotFound()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, linked := a.byRegistry[p.RegistryID]; linked {
		return in, domain.ErrAccountAlreadyExists()
	}
	if _, taken := a.byEmail[c.Email]; taken {
		return in, domain.ErrEmailAlreadyExists()
	}

	now := time.Now().UTC()
	p.CreatedAt, c.CreatedAt = now, now
	c.ProfileID = p.ID
	if c.Status == "" {
		c.Status = domain.StatusUnverified
	}

	out := domain.NewAccount{Profile: p, Credential: c}
	a.byID[c.ID] = out
	a.byEmail[c.Email] = c.ID
	a.byRegistry[p.RegistryID] = c.ID
	return out, nil
}

func (a *Accounts) GetLoginByEmail(ctx context.Context, email string) (domain.Account, error) {
	a.mu.RLock()
	id, ok := a.byEmail[domain.NormalizeEmail(email)]
	a.mu.RUnlock()
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound()
	}
	return a.GetByID(ctx, id)
}

func (a *Accounts) GetByID(ctx context.Context, credentialID string) (domain.Account, error) {
	a.mu.RLock()
	na, ok := a.byID[credentialID]
	a.mu.RUnlock()
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound()
	}

	acc := domain.Account{Credential: na.Credential, Profile: na.Profile}
	if rec, ok := a.registry.byID(na.Profile.RegistryID); ok {
		acc.FirstName = rec.FirstName
		acc.LastName = rec.LastName
		acc.SerialID = rec.SerialID
	}
	return acc, nil
}

func (a *Accounts) TouchLastLogin(ctx context.Context, credentialID string, at time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	na, ok := a.byID[credentialID]
	if !ok {
		return domain.ErrAccountNotFound()
	}
	t := at.UTC()
	na.Credential.LastLoginAt = &t
	a.byID[credentialID] = na
	return nil
}

// SetStatus changes an account's status. Used by dev tooling and tests.
func (a *Accounts) SetStatus(credentialID string, status domain.AccountStatus) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	na, ok := a.byID[credentialID]
	if !ok {
		return domain.ErrAccountNotFound()
	}
	na.Credential.Status = status
	a.byID[credentialID] = na
	return nil
}
