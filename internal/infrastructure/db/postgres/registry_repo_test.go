package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/pension-service/internal/domain"
)

var registryColumns = []string{"id", "serial_id", "category", "first_name", "last_name", "birth_date", "control_number"}

func dob(s string) time.Time {
	d, _ := time.Parse(domain.DateLayout, s)
	return d
}

func TestRegistryRepo_Match(t *testing.T) {
	t.Run("single match, inputs normalized", func(t *testing.T) {
		g, mocks, _ := newTestGateway(t, 1)
		mocks[0].ExpectQuery("FROM registry_records").
			WithArgs("PRINCIPAL", "AF-123").
			WillReturnRows(sqlmock.NewRows(registryColumns).
				AddRow(int64(1), "AF-123", "Principal", "JUAN", "CRUZ", dob("1950-01-01"), "CN-AF-0001"))

		rec, err := NewRegistryRepo(g).Match(context.Background(), domain.CategoryPrincipal, "  af-123 ")
		require.NoError(t, err)
		assert.Equal(t, int64(1), rec.ID)
		assert.Equal(t, domain.CategoryPrincipal, rec.Category)
		assert.Equal(t, "CN-AF-0001", rec.ControlNumber)
		assert.NoError(t, mocks[0].ExpectationsWereMet())
	})

	t.Run("no match", func(t *testing.T) {
		g, mocks, _ := newTestGateway(t, 1)
		mocks[0].ExpectQuery("FROM registry_records").WillReturnRows(sqlmock.NewRows(registryColumns))

		_, err := NewRegistryRepo(g).Match(context.Background(), domain.CategoryPrincipal, "ZZ-000")
		assert.True(t, domain.Is(err, "registry_record_not_found"), "got %v", err)
	})

	t.Run("duplicates refuse to pick", func(t *testing.T) {
		g, mocks, _ := newTestGateway(t, 1)
		mocks[0].ExpectQuery("FROM registry_records").
			WillReturnRows(sqlmock.NewRows(registryColumns).
				AddRow(int64(4), "AF-999", "Principal", "PEDRO", "GARCIA", dob("1952-11-30"), "CN-AF-0004").
				AddRow(int64(5), "AF-999", "Principal", "PEDRO", "GARCIA", dob("1952-11-30"), "CN-AF-0005"))

		_, err := NewRegistryRepo(g).Match(context.Background(), domain.CategoryPrincipal, "AF-999")
		assert.True(t, domain.Is(err, "registry_multiple_matches"), "got %v", err)
		assert.Equal(t, domain.KindConflict, domain.KindOf(err))
	})

	t.Run("unknown stored category", func(t *testing.T) {
		g, mocks, _ := newTestGateway(t, 1)
		mocks[0].ExpectQuery("FROM registry_records").
			WillReturnRows(sqlmock.NewRows(registryColumns).
				AddRow(int64(9), "X-1", "Retiree", "A", "B", dob("1950-01-01"), nil))

		_, err := NewRegistryRepo(g).Match(context.Background(), domain.CategoryPrincipal, "X-1")
		assert.True(t, domain.Is(err, "db_query_failed"), "got %v", err)
	})
}

func TestRegistryRepo_MatchPersonalDetails(t *testing.T) {
	g, mocks, _ := newTestGateway(t, 1)
	mocks[0].ExpectQuery("AND birth_date = \\$5").
		WithArgs("PRINCIPAL", "AF-123", "JUAN", "CRUZ", "1950-01-01").
		WillReturnRows(sqlmock.NewRows(registryColumns).
			AddRow(int64(1), "AF-123", "Principal", "JUAN", "CRUZ", dob("1950-01-01"), "CN-AF-0001"))

	rec, err := NewRegistryRepo(g).MatchPersonalDetails(context.Background(),
		domain.CategoryPrincipal, "AF-123", " Juan", "cruz ", dob("1950-01-01"))
	require.NoError(t, err)
	assert.Equal(t, "JUAN", rec.FirstName)
	assert.NoError(t, mocks[0].ExpectationsWereMet())
}
