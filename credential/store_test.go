package credential

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	device := hostKey(9)

	cred, err := s.Credential(device)
	require.NoError(t, err)
	assert.Nil(t, cred)

	require.NoError(t, s.Put(device, []byte{1, 2, 3}))
	cred, err = s.Credential(device)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, cred)
	assert.Equal(t, 1, s.Len())

	assert.Error(t, s.Put(device, make([]byte, 200)))

	s.Delete(device)
	cred, err = s.Credential(device)
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestFileStoreSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.yaml")

	fs, err := LoadFileStore(path)
	require.NoError(t, err)
	assert.Zero(t, fs.Len())

	require.NoError(t, fs.Put(hostKey(1), []byte{0xAA, 0xBB}))
	require.NoError(t, fs.Put(hostKey(2), []byte{0xCC}))
	fs.SetLabel(hostKey(1), "desk device")
	require.NoError(t, fs.Save())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadFileStore(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
	cred, err := loaded.Credential(hostKey(1))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB}, cred)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "desk device")
}

func TestFileStoreMalformed(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("credentials: [\n"), 0o600))
	_, err := LoadFileStore(bad)
	assert.Error(t, err)

	badHex := filepath.Join(dir, "hex.yaml")
	require.NoError(t, os.WriteFile(badHex, []byte("credentials:\n  - device: zz\n    credential: aa\n"), 0o600))
	_, err = LoadFileStore(badHex)
	assert.Error(t, err)
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, "credentials.yaml", filepath.Base(DefaultPath()))
}
