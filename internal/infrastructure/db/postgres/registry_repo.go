package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/baechuer/pension-service/internal/domain"
)

// RegistryRepo matches applicants against registry_records. Both sides of
// every comparison are trimmed and uppercased.
type RegistryRepo struct {
	gw *Gateway
}

func NewRegistryRepo(gw *Gateway) *RegistryRepo {
	return &RegistryRepo{gw: gw}
}

const registrySelect = `
SELECT id, serial_id, category, first_name, last_name, birth_date, control_number
FROM registry_records
`

func (r *RegistryRepo) Match(ctx context.Context, category domain.Category, serialID string) (domain.RegistryRecord, error) {
	const q = registrySelect + `
WHERE UPPER(TRIM(category)) = $1
  AND UPPER(TRIM(serial_id)) = $2
ORDER BY id
LIMIT 2;
`
	return r.matchOne(ctx, q,
		domain.NormalizeField(string(category)),
		domain.NormalizeField(serialID),
	)
}

func (r *RegistryRepo) MatchPersonalDetails(ctx context.Context, category domain.Category, serialID, firstName, lastName string, dob time.Time) (domain.RegistryRecord, error) {
	const q = registrySelect + `
WHERE UPPER(TRIM(category)) = $1
  AND UPPER(TRIM(serial_id)) = $2
  AND UPPER(TRIM(first_name)) = $3
  AND UPPER(TRIM(last_name)) = $4
  AND birth_date = $5
ORDER BY id
LIMIT 2;
`
	return r.matchOne(ctx, q,
		domain.NormalizeField(string(category)),
		domain.NormalizeField(serialID),
		domain.NormalizeField(firstName),
		domain.NormalizeField(lastName),
		dob.Format(domain.DateLayout),
	)
}

// matchOne refuses to pick between duplicates: LIMIT 2 is enough to tell.
func (r *RegistryRepo) matchOne(ctx context.Context, q string, args ...any) (domain.RegistryRecord, error) {
	var recs []domain.RegistryRecord
	err := r.gw.Query(ctx, q, args, func(rows *sql.Rows) error {
		recs = recs[:0]
		for rows.Next() {
			rec, err := scanRegistryRecord(rows)
			if err != nil {
				return err
			}
			recs = append(recs, rec)
		}
		return nil
	})
	if err != nil {
		return domain.RegistryRecord{}, err
	}

	switch len(recs) {
	case 0:
		return domain.RegistryRecord{}, domain.ErrRegistryRecordNotFound()
	case 1:
		return recs[0], nil
	default:
		return domain.RegistryRecord{}, domain.ErrRegistryMultipleMatches()
	}
}

func scanRegistryRecord(rows *sql.Rows) (domain.RegistryRecord, error) {
	var (
		rec      domain.RegistryRecord
		category string
		control  sql.NullString
	)
	if err := rows.Scan(
		&rec.ID,
		&rec.SerialID,
		&category,
		&rec.FirstName,
		&rec.LastName,
		&rec.BirthDate,
		&control,
	); err != nil {
		return rec, err
	}
	c, ok := domain.ParseCategory(category)
	if !ok {
		return rec, fmt.Errorf("registry record %d: unknown category %q", rec.ID, category)
	}
	rec.Category = c
	rec.ControlNumber = control.String
	return rec, nil
}
