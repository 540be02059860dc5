package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpen(t *testing.T) {
	k, err := DeriveKey("hunter2", "test")
	require.NoError(t, err)

	box, err := k.Seal([]byte("clip"))
	require.NoError(t, err)
	assert.NotContains(t, string(box), "clip")

	plain, err := k.Open(box)
	require.NoError(t, err)
	assert.Equal(t, []byte("clip"), plain)
}

func TestOpen_WrongKey(t *testing.T) {
	k1, err := DeriveKey("hunter2", "test")
	require.NoError(t, err)
	k2, err := DeriveKey("hunter3", "test")
	require.NoError(t, err)
	k3, err := DeriveKey("hunter2", "other")
	require.NoError(t, err)

	box, err := k1.Seal([]byte("clip"))
	require.NoError(t, err)

	_, err = k2.Open(box)
	assert.ErrorIs(t, err, ErrOpen)
	_, err = k3.Open(box)
	assert.ErrorIs(t, err, ErrOpen)
	_, err = k1.Open(box[:10])
	assert.ErrorIs(t, err, ErrOpen)
}

func TestDeriveKey_Empty(t *testing.T) {
	_, err := DeriveKey("", "test")
	assert.Error(t, err)
}
