package cryptox

import (
	"testing"

	"github.com/dmitrijs2005/finvault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeyPair_Independent(t *testing.T) {
	a, err := GenerateKeyPair()
	require.NoError(t, err)
	b, err := GenerateKeyPair()
	require.NoError(t, err)

	assert.Equal(t, 2048, a.N.BitLen())
	assert.NotEqual(t, 0, a.N.Cmp(b.N), "two keypairs share a modulus")
}

func TestPublicKeyPEM_RoundTrip(t *testing.T) {
	priv, err := GenerateKeyPair()
	require.NoError(t, err)

	encoded, err := EncodePublicKey(&priv.PublicKey)
	require.NoError(t, err)
	assert.Contains(t, encoded, "-----BEGIN PUBLIC KEY-----")

	pub, err := ParsePublicKey(encoded)
	require.NoError(t, err)
	assert.True(t, pub.Equal(&priv.PublicKey))

	_, err = ParsePublicKey("not a pem")
	assert.Error(t, err)
}

func TestPrivateKeyDER_RoundTrip(t *testing.T) {
	priv, err := GenerateKeyPair()
	require.NoError(t, err)

	der := MarshalPrivateKey(priv)
	back, err := ParsePrivateKey(der)
	require.NoError(t, err)
	assert.True(t, back.Equal(priv))

	_, err = ParsePrivateKey([]byte("garbage"))
	assert.Error(t, err)
}

func TestWrapUnwrap(t *testing.T) {
	priv, err := GenerateKeyPair()
	require.NoError(t, err)
	other, err := GenerateKeyPair()
	require.NoError(t, err)

	dek := GenerateKey()
	wrapped, err := WrapKey(dek, &priv.PublicKey)
	require.NoError(t, err)

	got, err := UnwrapKey(wrapped, priv)
	require.NoError(t, err)
	assert.Equal(t, dek, got)

	_, err = UnwrapKey(wrapped, other)
	assert.ErrorIs(t, err, common.ErrAuthenticationFailed)

	wrapped[0] ^= 0xff
	_, err = UnwrapKey(wrapped, priv)
	assert.ErrorIs(t, err, common.ErrAuthenticationFailed)
}

func TestWrapKey_RejectsBulkData(t *testing.T) {
	priv, err := GenerateKeyPair()
	require.NoError(t, err)

	_, err = WrapKey(make([]byte, 128), &priv.PublicKey)
	assert.ErrorIs(t, err, common.ErrPayloadTooLarge)
}

func TestWipePrivateKey(t *testing.T) {
	priv, err := GenerateKeyPair()
	require.NoError(t, err)

	dek := GenerateKey()
	wrapped, err := WrapKey(dek, &priv.PublicKey)
	require.NoError(t, err)
	_, err = UnwrapKey(wrapped, priv)
	require.NoError(t, err)

	WipePrivateKey(priv)
	assert.Equal(t, 0, priv.D.Sign())
	for _, p := range priv.Primes {
		assert.Equal(t, 0, p.Sign())
	}
	assert.Nil(t, priv.Precomputed.Dp)

	_, err = UnwrapKey(wrapped, priv)
	assert.ErrorIs(t, err, common.ErrAuthenticationFailed, "wiped key still decrypts")

	WipePrivateKey(nil)
}
