package vault

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	v, err := New("test-secret")
	require.NoError(t, err)

	for _, plain := range []string{"", "a", "ya29.access-token", strings.Repeat("x", 4096), "émoji ✂ bytes"} {
		blob, err := v.Encrypt(plain)
		require.NoError(t, err)
		got, err := v.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	}
}

func TestBlobFormat(t *testing.T) {
	v, err := New("test-secret")
	require.NoError(t, err)

	blob, err := v.Encrypt("token")
	require.NoError(t, err)

	parts := strings.Split(blob, ":")
	require.Len(t, parts, 3)
	iv, err := hex.DecodeString(parts[0])
	require.NoError(t, err)
	assert.Len(t, iv, 16)
	tag, err := hex.DecodeString(parts[1])
	require.NoError(t, err)
	assert.Len(t, tag, 16)
}

func TestTamperedBlobFails(t *testing.T) {
	v, err := New("test-secret")
	require.NoError(t, err)

	blob, err := v.Encrypt("refresh-token-value")
	require.NoError(t, err)

	// flip one hex digit in each component in turn
	parts := strings.Split(blob, ":")
	for i := range parts {
		tampered := make([]string, 3)
		copy(tampered, parts)
		raw := []byte(tampered[i])
		if raw[0] == '0' {
			raw[0] = '1'
		} else {
			raw[0] = '0'
		}
		tampered[i] = string(raw)

		_, err := v.Decrypt(strings.Join(tampered, ":"))
		assert.ErrorIs(t, err, ErrCryptoFailure, "component %d", i)
	}
}

func TestMalformedBlobFails(t *testing.T) {
	v, err := New("test-secret")
	require.NoError(t, err)

	for _, blob := range []string{
		"",
		"not-a-blob",
		"aabb:ccdd",
		"aa:bb:cc:dd",
		"zz:" + strings.Repeat("00", 16) + ":aabb",
	} {
		_, err := v.Decrypt(blob)
		assert.ErrorIs(t, err, ErrCryptoFailure, "blob %q", blob)
	}
}

func TestWrongKeyFails(t *testing.T) {
	v1, err := New("key-one")
	require.NoError(t, err)
	v2, err := New("key-two")
	require.NoError(t, err)

	blob, err := v1.Encrypt("secret")
	require.NoError(t, err)
	_, err = v2.Decrypt(blob)
	assert.ErrorIs(t, err, ErrCryptoFailure)
}
