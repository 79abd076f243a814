package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAESSealerRoundTrip(t *testing.T) {
	s, err := NewAESSealer("shared-secret", "fleet-a")
	require.NoError(t, err)

	sealed, err := s.Seal("community-string")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "community-string")

	other, err := s.Seal("community-string")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, other, "nonce must differ per seal")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "community-string", plain)
}

func TestAESSealerWrongKey(t *testing.T) {
	a, err := NewAESSealer("secret-a", "salt")
	require.NoError(t, err)
	b, err := NewAESSealer("secret-b", "salt")
	require.NoError(t, err)

	sealed, err := a.Seal("x")
	require.NoError(t, err)
	_, err = b.Open(sealed)
	assert.Error(t, err)

	_, err = a.Open("@@@")
	assert.Error(t, err)
	_, err = a.Open("AAAA")
	assert.Error(t, err)
}

func TestNewAESSealerEmptySecret(t *testing.T) {
	_, err := NewAESSealer("", "salt")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "", MaskToken(""))
	assert.Equal(t, "****", MaskToken("short"))
	assert.Equal(t, "agen****-042", MaskToken("agent-token-042"))
}

func TestUUIDHelpers(t *testing.T) {
	id := GenerateUUID()
	assert.True(t, IsValidUUID(id))
	assert.True(t, IsValidUUID(strings.ReplaceAll(id, "-", "")))
	assert.Contains(t, GenerateUUIDWithPrefix("req"), "req-")
	assert.False(t, IsValidUUID("nope"))

	assert.True(t, IsValidRequestID(GenerateUUIDWithPrefix("req"), "req"))
	assert.True(t, IsValidRequestID(id, "req"))
	assert.False(t, IsValidRequestID("req-nope", "req"))
	assert.False(t, IsValidRequestID("", "req"))
}

func TestNormalizeIP(t *testing.T) {
	assert.Equal(t, "192.0.2.1", NormalizeIP("192.0.2.1:8080"))
	assert.Equal(t, "192.0.2.1", NormalizeIP("::ffff:192.0.2.1"))
	assert.Equal(t, "10.0.0.1", NormalizeIP("10.0.0.1, 10.0.0.2"))
	assert.Equal(t, "", NormalizeIP(""))
}
