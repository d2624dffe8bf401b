package signup

import (
	"context"
	"time"

	"github.com/baechuer/pension-service/internal/domain"
)

/*
RegistryMatcher
---------------
Identity matching against the read-only registry.
Both operations fail with registry_record_not_found on zero matches and
registry_multiple_matches when duplicates exist. They never pick one.
*/
type RegistryMatcher interface {
	Match(ctx context.Context, category domain.Category, serialID string) (domain.RegistryRecord, error)
	MatchPersonalDetails(ctx context.Context, category domain.Category, serialID, firstName, lastName string, dob time.Time) (domain.RegistryRecord, error)
}

/*
AccountRepo
-----------
Finalize must write profile and credential atomically and re-check email and
registry-link uniqueness inside the same transaction.
*/
type AccountRepo interface {
	ExistsForRegistry(ctx context.Context, registryID int64) (bool, error)
	Finalize(ctx context.Context, in domain.NewAccount) (domain.NewAccount, error)
}

/*
TokenStore
----------
Expiring validation tokens carrying step state between requests.
Resolve is read-only: resolving the same token twice returns the same state.
*/
type TokenStore interface {
	Issue(ctx context.Context, state domain.SignupState, ttl time.Duration) (string, error)
	Resolve(ctx context.Context, token string) (domain.SignupState, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
}

/*
EventPublisher
--------------
Best effort: a publish failure never fails a completed signup.
*/
type EventPublisher interface {
	PublishAccountRegistered(ctx context.Context, evt AccountRegisteredEvent) error
}

type AccountRegisteredEvent struct {
	AccountID  string
	ProfileID  string
	Email      string
	Category   string
	RegistryID int64
	OccurredAt time.Time
}
