package signup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/pension-service/internal/domain"
)

func TestStep1_Success(t *testing.T) {
	h := newHarness()

	res, err := h.svc.Step1(context.Background(), Step1Input{Category: " principal ", SerialID: " af-123", Branch: "af"})
	require.NoError(t, err)

	assert.Equal(t, domain.SignupStepEligibility, res.Step)
	assert.Equal(t, domain.SignupStepPersonal, res.NextStep)
	assert.Equal(t, time.Hour, res.ExpiresIn)
	assert.Equal(t, time.Hour, h.tokens.ttls[res.Token])

	st, ok := h.tokens.states[res.Token].(domain.Step1State)
	require.True(t, ok)
	assert.Equal(t, domain.Step1State{Category: domain.CategoryPrincipal, SerialID: "AF-123", Branch: "AF"}, st)
	assert.Equal(t, []string{"signup.step1"}, h.actions)
}

func TestStep1_Beneficiary(t *testing.T) {
	h := newHarness()

	res, err := h.svc.Step1(context.Background(), Step1Input{
		Category:      "Beneficiary",
		SerialID:      "PA-789",
		Relationship:  "spouse",
		PrincipalName: "Pablo Reyes",
	})
	require.NoError(t, err)

	st := h.tokens.states[res.Token].(domain.Step1State)
	assert.Equal(t, domain.RelationshipSpouse, st.Relationship)
	assert.Equal(t, "PABLO REYES", st.PrincipalName)
}

func TestStep1_ValidationHappensBeforeAnyLookup(t *testing.T) {
	cases := []struct {
		name string
		in   Step1Input
		code string
		meta string
	}{
		{"missing category", Step1Input{SerialID: "AF-123"}, "missing_field", "category"},
		{"bad category", Step1Input{Category: "Widow", SerialID: "AF-123"}, "invalid_field", "category"},
		{"missing serial", Step1Input{Category: "Principal", SerialID: "  ", Branch: "AF"}, "missing_field", "serialId"},
		{"principal without branch", Step1Input{Category: "Principal", SerialID: "AF-123"}, "missing_field", "branch"},
		{"beneficiary without relationship", Step1Input{Category: "Beneficiary", SerialID: "PA-789", PrincipalName: "X"}, "missing_field", "relationship"},
		{"beneficiary bad relationship", Step1Input{Category: "Beneficiary", SerialID: "PA-789", Relationship: "cousin", PrincipalName: "X"}, "invalid_field", "relationship"},
		{"beneficiary without principal", Step1Input{Category: "Beneficiary", SerialID: "PA-789", Relationship: "CHILD"}, "missing_field", "principalName"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			_, err := h.svc.Step1(context.Background(), tc.in)
			require.Error(t, err)
			assert.True(t, domain.Is(err, tc.code), "got %v", err)
			assert.Equal(t, domain.KindValidation, domain.KindOf(err))

			var de *domain.Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tc.meta, de.Meta["field"])

			assert.Zero(t, h.registry.calls)
			assert.Zero(t, h.accounts.calls)
			assert.Zero(t, h.tokens.issued)
		})
	}
}

func TestStep1_UnknownSerial_NoToken(t *testing.T) {
	h := newHarness()

	_, err := h.svc.Step1(context.Background(), Step1Input{Category: "Principal", SerialID: "ZZ-000", Branch: "AF"})
	assert.True(t, domain.Is(err, "registry_record_not_found"))
	assert.Zero(t, h.tokens.issued)
	assert.Empty(t, h.actions)
}

func TestStep1_WrongCategory_IsNotFound(t *testing.T) {
	h := newHarness()

	_, err := h.svc.Step1(context.Background(), Step1Input{
		Category: "Beneficiary", SerialID: "AF-123", Relationship: "CHILD", PrincipalName: "X",
	})
	assert.True(t, domain.Is(err, "registry_record_not_found"))
}

func TestStep1_DuplicateRegistryRows(t *testing.T) {
	h := newHarness()

	_, err := h.svc.Step1(context.Background(), Step1Input{Category: "Principal", SerialID: "AF-999", Branch: "AF"})
	assert.True(t, domain.Is(err, "registry_multiple_matches"))
	assert.Zero(t, h.tokens.issued)
}

func TestStep1_AlreadyLinked(t *testing.T) {
	h := newHarness()
	h.accounts.linked[1] = true

	_, err := h.svc.Step1(context.Background(), juanStep1())
	assert.True(t, domain.Is(err, "account_already_exists"))
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
	assert.Zero(t, h.tokens.issued)
}

func TestStep1_StorageFailurePassesThrough(t *testing.T) {
	h := newHarness()
	h.accounts.existErr = domain.ErrDBUnavailable(errBoom)

	_, err := h.svc.Step1(context.Background(), juanStep1())
	assert.True(t, domain.Is(err, "db_unavailable"))
	assert.Zero(t, h.tokens.issued)
}
