package memory

import (
	"context"
	"sync"
	"time"

	"github.com/baechuer/pension-service/internal/domain"
)

type Registry struct {
	mu   sync.RWMutex
	recs []domain.RegistryRecord
}

// NewRegistry copies recs, assigning sequential ids to records without one.
func NewRegistry(recs []domain.RegistryRecord) *Registry {
	r := &Registry{}
	for _, rec := range recs {
		r.Add(rec)
	}
	return r
}

func (r *Registry) Add(rec domain.RegistryRecord) domain.RegistryRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.ID == 0 {
		rec.ID = int64(len(r.recs) + 1)
	}
	r.recs = append(r.recs, rec)
	return rec
}

func (r *Registry) Match(ctx context.Context, category domain.Category, serialID string) (domain.RegistryRecord, error) {
	serialID = domain.NormalizeField(serialID)
	return r.matchOne(func(rec domain.RegistryRecord) bool {
		return rec.Category == category && domain.NormalizeField(rec.SerialID) == serialID
	})
}

func (r *Registry) MatchPersonalDetails(ctx context.Context, category domain.Category, serialID, firstName, lastName string, dob time.Time) (domain.RegistryRecord, error) {
	serialID = domain.NormalizeField(serialID)
	firstName = domain.NormalizeField(firstName)
	lastName = domain.NormalizeField(lastName)
	day := dob.Format(domain.DateLayout)
	return r.matchOne(func(rec domain.RegistryRecord) bool {
		return rec.Category == category &&
			domain.NormalizeField(rec.SerialID) == serialID &&
			domain.NormalizeField(rec.FirstName) == firstName &&
			domain.NormalizeField(rec.LastName) == lastName &&
			rec.BirthDate.Format(domain.DateLayout) == day
	})
}

func (r *Registry) matchOne(pred func(domain.RegistryRecord) bool) (domain.RegistryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found []domain.RegistryRecord
	for _, rec := range r.recs {
		if pred(rec) {
			found = append(found, rec)
			if len(found) > 1 {
				return domain.RegistryRecord{}, domain.ErrRegistryMultipleMatches()
			}
		}
	}
	if len(found) == 0 {
		return domain.RegistryRecord{}, domain.ErrRegistryRecordNotFound()
	}
	return found[0], nil
}

func (r *Registry) byID(id int64) (domain.RegistryRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.recs {
		if rec.ID == id {
			return rec, true
		}
	}
	return domain.RegistryRecord{}, false
}
