package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_HashAndCompare(t *testing.T) {
	t.Parallel()

	h := NewBcryptHasher(bcrypt.MinCost)
	hash, err := h.Hash("Str0ng!pass")
	require.NoError(t, err)
	assert.NotEqual(t, "Str0ng!pass", hash)

	assert.NoError(t, h.Compare(hash, "Str0ng!pass"))
	assert.Error(t, h.Compare(hash, "Str0ng!pasS"))
	assert.Error(t, h.Compare("not-a-hash", "Str0ng!pass"))
}

func TestBcryptHasher_SaltsEveryHash(t *testing.T) {
	t.Parallel()

	h := NewBcryptHasher(bcrypt.MinCost)
	a, err := h.Hash("same-password")
	require.NoError(t, err)
	b, err := h.Hash("same-password")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestBcryptHasher_CostDefaults(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultBcryptCost, NewBcryptHasher(0).Cost())
	assert.Equal(t, DefaultBcryptCost, NewBcryptHasher(99).Cost())
	assert.Equal(t, 10, NewBcryptHasher(10).Cost())

	hash, err := NewBcryptHasher(bcrypt.MinCost).Hash("x")
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestBcryptHasher_TooLongPassword(t *testing.T) {
	t.Parallel()

	long := make([]byte, 100)
	for i := range long {
		long[i] = 'a'
	}
	_, err := NewBcryptHasher(bcrypt.MinCost).Hash(string(long))
	require.Error(t, err)
}
