package postgres

import (
	"context"

	"github.com/baechuer/pension-service/internal/domain"
	"github.com/baechuer/pension-service/internal/logger"
)

// SeedRegistry inserts sample registry records that are not present yet,
// keyed on control number. It returns how many rows were inserted.
func SeedRegistry(ctx context.Context, gw *Gateway, recs []domain.RegistryRecord) (int, error) {
	const q = `
INSERT INTO registry_records (serial_id, category, first_name, last_name, birth_date, control_number)
SELECT $1::text, $2::text, $3::text, $4::text, $5::date, $6::text
WHERE NOT EXISTS (SELECT 1 FROM registry_records WHERE control_number = $6);
`
	inserted := 0
	for _, r := range recs {
		n, err := gw.Exec(ctx, q,
			r.SerialID, string(r.Category), r.FirstName, r.LastName,
			r.BirthDate.Format(domain.DateLayout), r.ControlNumber,
		)
		if err != nil {
			return inserted, err
		}
		inserted += int(n)
	}

	logger.Logger.Info().
		Int("inserted", inserted).
		Int("total", len(recs)).
		Msg("[seed] registry records")
	return inserted, nil
}
