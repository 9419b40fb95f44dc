package service

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0xA5}, 32)
}

func TestNewCryptoServiceRejectsBadKey(t *testing.T) {
	_, err := NewCryptoService([]byte("short"))
	require.Error(t, err)

	_, err = NewCryptoService(testKey())
	require.NoError(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	svc, err := NewCryptoService(testKey())
	require.NoError(t, err)

	original := map[string]any{
		"title":   "Midterm",
		"answers": []any{"B", "true", "photosynthesis"},
	}

	encrypted, err := svc.Encrypt(original)
	require.NoError(t, err)
	require.Contains(t, encrypted, ":")

	var decrypted map[string]any
	require.NoError(t, svc.Decrypt(encrypted, &decrypted))
	assert.Equal(t, "Midterm", decrypted["title"])
}

func TestEncryptUsesFreshIV(t *testing.T) {
	svc, err := NewCryptoService(testKey())
	require.NoError(t, err)

	payload := "same plaintext"
	first, err := svc.Encrypt(payload)
	require.NoError(t, err)
	second, err := svc.Encrypt(payload)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	// Same key, different IV: both must still round-trip.
	var a, b string
	require.NoError(t, svc.Decrypt(first, &a))
	require.NoError(t, svc.Decrypt(second, &b))
	assert.Equal(t, a, b)
}

func TestDecryptRejectsMalformedInput(t *testing.T) {
	svc, err := NewCryptoService(testKey())
	require.NoError(t, err)

	cases := map[string]string{
		"no separator":   "deadbeef",
		"bad iv hex":     "zzzz:deadbeef",
		"short iv":       "dead:deadbeefdeadbeefdeadbeefdeadbeef",
		"bad ct hex":     strings.Repeat("ab", 16) + ":not-hex",
		"empty ct":       strings.Repeat("ab", 16) + ":",
		"misaligned ct":  strings.Repeat("ab", 16) + ":abcd",
		"empty string":   "",
		"only separator": ":",
	}

	var dst any
	for name, input := range cases {
		err := svc.Decrypt(input, &dst)
		assert.ErrorIs(t, err, ErrIntegrity, name)
	}
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	svc, err := NewCryptoService(testKey())
	require.NoError(t, err)

	encrypted, err := svc.Encrypt(map[string]string{"q1": "sensitive"})
	require.NoError(t, err)

	// Flip one ciphertext nibble.
	tampered := []byte(encrypted)
	last := len(tampered) - 1
	if tampered[last] == '0' {
		tampered[last] = '1'
	} else {
		tampered[last] = '0'
	}

	var dst map[string]string
	assert.ErrorIs(t, svc.Decrypt(string(tampered), &dst), ErrIntegrity)
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	svc1, err := NewCryptoService(testKey())
	require.NoError(t, err)
	svc2, err := NewCryptoService(bytes.Repeat([]byte{0x5A}, 32))
	require.NoError(t, err)

	encrypted, err := svc1.Encrypt("secret questions")
	require.NoError(t, err)

	var dst string
	assert.ErrorIs(t, svc2.Decrypt(encrypted, &dst), ErrIntegrity)
}

func TestHashDeterministic(t *testing.T) {
	svc, err := NewCryptoService(testKey())
	require.NoError(t, err)

	payload := []string{"q1", "q2", "q3"}
	first, err := svc.Hash(payload)
	require.NoError(t, err)
	second, err := svc.Hash(payload)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestVerifyIntegrityDetectsMutation(t *testing.T) {
	svc, err := NewCryptoService(testKey())
	require.NoError(t, err)

	payload := map[string]string{"question": "What is 2+2?", "answer": "4"}
	digest, err := svc.Hash(payload)
	require.NoError(t, err)

	ok, err := svc.VerifyIntegrity(payload, digest)
	require.NoError(t, err)
	assert.True(t, ok)

	payload["answer"] = "5"
	ok, err = svc.VerifyIntegrity(payload, digest)
	require.NoError(t, err)
	assert.False(t, ok)
}
