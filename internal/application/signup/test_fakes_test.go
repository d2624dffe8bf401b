package signup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/baechuer/pension-service/internal/domain"
)

// fakeRegistry matches on normalized values like the real adapters do.
type fakeRegistry struct {
	recs  []domain.RegistryRecord
	calls int
	err   error
}

func newFakeRegistry() *fakeRegistry {
	recs := domain.SampleRegistry()
	for i := range recs {
		recs[i].ID = int64(i + 1)
	}
	return &fakeRegistry{recs: recs}
}

func (f *fakeRegistry) find(keep func(domain.RegistryRecord) bool) (domain.RegistryRecord, error) {
	var out []domain.RegistryRecord
	for _, r := range f.recs {
		if keep(r) {
			out = append(out, r)
		}
	}
	switch len(out) {
	case 0:
		return domain.RegistryRecord{}, domain.ErrRegistryRecordNotFound()
	case 1:
		return out[0], nil
	default:
		return domain.RegistryRecord{}, domain.ErrRegistryMultipleMatches()
	}
}

func (f *fakeRegistry) Match(_ context.Context, cat domain.Category, serial string) (domain.RegistryRecord, error) {
	f.calls++
	if f.err != nil {
		return domain.RegistryRecord{}, f.err
	}
	return f.find(func(r domain.RegistryRecord) bool {
		return r.Category == cat && r.SerialID == domain.NormalizeField(serial)
	})
}

func (f *fakeRegistry) MatchPersonalDetails(_ context.Context, cat domain.Category, serial, first, last string, dob time.Time) (domain.RegistryRecord, error) {
	f.calls++
	if f.err != nil {
		return domain.RegistryRecord{}, f.err
	}
	return f.find(func(r domain.RegistryRecord) bool {
		return r.Category == cat &&
			r.SerialID == domain.NormalizeField(serial) &&
			r.FirstName == domain.NormalizeField(first) &&
			r.LastName == domain.NormalizeField(last) &&
			r.BirthDate.Equal(dob)
	})
}

type fakeAccounts struct {
	mu       sync.Mutex
	linked   map[int64]bool
	emails   map[string]bool
	created  []domain.NewAccount
	calls    int
	existErr error
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{linked: map[int64]bool{}, emails: map[string]bool{}}
}

func (f *fakeAccounts) ExistsForRegistry(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.existErr != nil {
		return false, f.existErr
	}
	return f.linked[id], nil
}

func (f *fakeAccounts) Finalize(_ context.Context, in domain.NewAccount) (domain.NewAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.linked[in.Profile.RegistryID] {
		return domain.NewAccount{}, domain.ErrAccountAlreadyExists()
	}
	if f.emails[in.Credential.Email] {
		return domain.NewAccount{}, domain.ErrEmailAlreadyExists()
	}
	f.emails[in.Credential.Email] = true
	f.linked[in.Profile.RegistryID] = true
	in.Credential.ProfileID = in.Profile.ID
	f.created = append(f.created, in)
	return in, nil
}

type fakeTokens struct {
	mu     sync.Mutex
	states map[string]domain.SignupState
	ttls   map[string]time.Duration
	seq    int
	issued int
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{states: map[string]domain.SignupState{}, ttls: map[string]time.Duration{}}
}

func (f *fakeTokens) Issue(_ context.Context, st domain.SignupState, ttl time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.issued++
	tok := fmt.Sprintf("tok-%d", f.seq)
	f.states[tok] = st
	f.ttls[tok] = ttl
	return tok, nil
}

func (f *fakeTokens) Resolve(_ context.Context, tok string) (domain.SignupState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.states[tok]
	if !ok {
		return nil, domain.ErrSignupTokenNotFound()
	}
	return st, nil
}

func (f *fakeTokens) expire(tok string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.states, tok)
}

type recordingHasher struct {
	err   error
	calls int
}

func (h *recordingHasher) Hash(p string) (string, error) {
	h.calls++
	if h.err != nil {
		return "", h.err
	}
	return "hashed:" + strings.Repeat("*", len(p)), nil
}

type fakePublisher struct {
	mu     sync.Mutex
	err    error
	events []AccountRegisteredEvent
}

func (p *fakePublisher) PublishAccountRegistered(_ context.Context, evt AccountRegisteredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

var errBoom = errors.New("boom")

type harness struct {
	svc      *Service
	registry *fakeRegistry
	accounts *fakeAccounts
	tokens   *fakeTokens
	hasher   *recordingHasher
	pub      *fakePublisher
	audit    []map[string]string
	actions  []string
}

func newHarness() *harness {
	h := &harness{
		registry: newFakeRegistry(),
		accounts: newFakeAccounts(),
		tokens:   newFakeTokens(),
		hasher:   &recordingHasher{},
		pub:      &fakePublisher{},
	}
	today := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.svc = NewService(h.registry, h.accounts, h.tokens, h.hasher, h.pub, Config{}).
		WithClock(func() time.Time { return today }).
		WithAudit(func(action string, fields map[string]string) {
			h.actions = append(h.actions, action)
			h.audit = append(h.audit, fields)
		})
	return h
}

func juanStep1() Step1Input {
	return Step1Input{Category: "Principal", SerialID: "AF-123", Branch: "AF"}
}

func juanStep2(tok string) Step2Input {
	return Step2Input{Token: tok, FirstName: "JUAN", LastName: "CRUZ", DOB: "1950-01-01"}
}
