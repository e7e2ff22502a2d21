package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name     string
		cipher   string
		wantName string
		wantErr  bool
	}{
		{"default", "", "25519_AESGCM_SHA256", false},
		{"aesgcm", CipherAESGCM, "25519_AESGCM_SHA256", false},
		{"chachapoly", CipherChaChaPoly, "25519_ChaChaPoly_SHA256", false},
		{"unknown", "DES", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBackend(tt.cipher)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, string(b.CipherSuite().Name()))
		})
	}
}

func TestStandardBackendRandomBytes(t *testing.T) {
	b := DefaultBackend()
	buf1 := make([]byte, 32)
	buf2 := make([]byte, 32)
	require.NoError(t, b.RandomBytes(buf1))
	require.NoError(t, b.RandomBytes(buf2))
	assert.False(t, bytes.Equal(buf1, buf2), "two random draws should differ")
}

func TestSeededBackendIsDeterministic(t *testing.T) {
	seed := [32]byte{1, 2, 3}
	a := NewSeededBackend(seed)
	b := NewSeededBackend(seed)

	bufA := make([]byte, 45)
	bufB := make([]byte, 45)
	require.NoError(t, a.RandomBytes(bufA))
	require.NoError(t, b.RandomBytes(bufB))
	assert.Equal(t, bufA, bufB)

	other := NewSeededBackend([32]byte{9})
	bufC := make([]byte, 45)
	require.NoError(t, other.RandomBytes(bufC))
	assert.NotEqual(t, bufA, bufC)
}

func TestReaderFillsBuffer(t *testing.T) {
	r := Reader(NewSeededBackend([32]byte{7}))
	buf := make([]byte, 13)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.NotEqual(t, make([]byte, 13), buf)
}
