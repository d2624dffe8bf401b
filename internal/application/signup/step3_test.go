package signup

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/pension-service/internal/domain"
)

const strongPassword = "Str0ng!pass"

func step2Token(t *testing.T, h *harness) string {
	t.Helper()
	res, err := h.svc.Step2(context.Background(), juanStep2(step1Token(t, h)))
	require.NoError(t, err)
	return res.Token
}

func TestSignup_EndToEnd(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	r1, err := h.svc.Step1(ctx, juanStep1())
	require.NoError(t, err)
	r2, err := h.svc.Step2(ctx, juanStep2(r1.Token))
	require.NoError(t, err)
	r3, err := h.svc.Step3(ctx, Step3Input{Token: r2.Token, Email: " Juan@X.com ", Password: strongPassword})
	require.NoError(t, err)

	acc := r3.Account
	assert.NotEmpty(t, acc.Credential.ID)
	assert.NotEmpty(t, acc.Profile.ID)
	assert.NotEqual(t, acc.Credential.ID, acc.Profile.ID)
	assert.Equal(t, "juan@x.com", acc.Credential.Email)
	assert.Equal(t, domain.StatusUnverified, acc.Credential.Status)
	assert.Equal(t, int64(1), acc.Profile.RegistryID)
	assert.Equal(t, domain.CategoryPrincipal, acc.Profile.Category)
	assert.Equal(t, "AF", acc.Profile.Affiliation)
	assert.NotContains(t, acc.Credential.PasswordHash, strongPassword)

	require.Len(t, h.pub.events, 1)
	assert.Equal(t, acc.Credential.ID, h.pub.events[0].AccountID)
	assert.Equal(t, "Principal", h.pub.events[0].Category)

	assert.Equal(t, []string{"signup.step1", "signup.step2", "signup.completed"}, h.actions)
	for _, fields := range h.audit {
		for _, v := range fields {
			assert.NotContains(t, v, strongPassword)
		}
	}

	// replaying step 3 with the same token cannot create a second account
	_, err = h.svc.Step3(ctx, Step3Input{Token: r2.Token, Email: "other@x.com", Password: strongPassword})
	assert.True(t, domain.Is(err, "account_already_exists"), "got %v", err)

	// and a fresh step 1 now reports the link
	_, err = h.svc.Step1(ctx, juanStep1())
	assert.True(t, domain.Is(err, "account_already_exists"))
	assert.Len(t, h.accounts.created, 1)
}

func TestStep3_ReplaySameTokenAndEmail_ReportsAccountExists(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	tok := step2Token(t, h)
	in := Step3Input{Token: tok, Email: "juan@x.com", Password: strongPassword}

	_, err := h.svc.Step3(ctx, in)
	require.NoError(t, err)

	_, err = h.svc.Step3(ctx, in)
	assert.True(t, domain.Is(err, "account_already_exists"), "got %v", err)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
	assert.Len(t, h.accounts.created, 1)
	assert.Len(t, h.pub.events, 1)
}

func TestStep3_EmailTakenByAnotherAccount(t *testing.T) {
	h := newHarness()
	h.accounts.emails["juan@x.com"] = true

	_, err := h.svc.Step3(context.Background(), Step3Input{Token: step2Token(t, h), Email: "JUAN@x.com", Password: strongPassword})
	assert.True(t, domain.Is(err, "email_already_exists"))
	assert.Empty(t, h.pub.events)
}

func TestStep3_WeakPasswords(t *testing.T) {
	cases := map[string]string{
		"short":    "Ab1!",
		"repeats":  "Aaaa1234!",
		"common":   "MyPassword1!",
		"no digit": "Abcdefg!",
		"too long": strings.Repeat("Ab1!", 19),
	}
	for name, pw := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness()
			tok := step2Token(t, h)
			calls := h.accounts.calls

			_, err := h.svc.Step3(context.Background(), Step3Input{Token: tok, Email: "juan@x.com", Password: pw})
			assert.True(t, domain.Is(err, "weak_password"), "got %v", err)
			assert.Zero(t, h.hasher.calls)
			assert.Equal(t, calls, h.accounts.calls)
			assert.NotContains(t, err.Error(), pw)
		})
	}
}

func TestStep3_Validation(t *testing.T) {
	cases := []struct {
		name  string
		in    Step3Input
		code  string
		field string
	}{
		{"missing token", Step3Input{Email: "a@x.com", Password: strongPassword}, "missing_field", "step2Token"},
		{"missing email", Step3Input{Token: "t", Password: strongPassword}, "missing_field", "email"},
		{"bad email", Step3Input{Token: "t", Email: "not-an-email", Password: strongPassword}, "invalid_field", "email"},
		{"missing password", Step3Input{Token: "t", Email: "a@x.com"}, "missing_field", "password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			_, err := h.svc.Step3(context.Background(), tc.in)
			assert.True(t, domain.Is(err, tc.code), "got %v", err)
			var de *domain.Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tc.field, de.Meta["field"])
			assert.Zero(t, h.accounts.calls)
		})
	}
}

func TestStep3_RejectsStep1Token(t *testing.T) {
	h := newHarness()
	tok := step1Token(t, h)

	_, err := h.svc.Step3(context.Background(), Step3Input{Token: tok, Email: "juan@x.com", Password: strongPassword})
	assert.True(t, domain.Is(err, "signup_token_wrong_step"), "got %v", err)
	assert.Zero(t, h.hasher.calls)
	assert.Empty(t, h.accounts.created)
}

func TestStep3_HashFailure(t *testing.T) {
	h := newHarness()
	tok := step2Token(t, h)
	h.hasher.err = errBoom

	_, err := h.svc.Step3(context.Background(), Step3Input{Token: tok, Email: "juan@x.com", Password: strongPassword})
	assert.True(t, domain.Is(err, "hash_failed"))
	assert.Empty(t, h.accounts.created)
}

func TestStep3_PublishFailureDoesNotFailSignup(t *testing.T) {
	h := newHarness()
	h.pub.err = errBoom

	res, err := h.svc.Step3(context.Background(), Step3Input{Token: step2Token(t, h), Email: "juan@x.com", Password: strongPassword})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Account.Credential.ID)
	assert.Len(t, h.pub.events, 1)
}
