package credential

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/opd-ai/thp/limits"
)

// MemoryStore is an in-memory Store keyed by device static key.
type MemoryStore struct {
	entries map[string][]byte
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]byte)}
}

// Put stores credential for deviceStatic, replacing any previous one.
func (s *MemoryStore) Put(deviceStatic, credential []byte) error {
	if err := limits.ValidateCredential(credential); err != nil {
		return err
	}
	s.entries[hex.EncodeToString(deviceStatic)] = append([]byte(nil), credential...)
	return nil
}

// Delete forgets the credential for deviceStatic.
func (s *MemoryStore) Delete(deviceStatic []byte) {
	delete(s.entries, hex.EncodeToString(deviceStatic))
}

// Credential implements Store.
func (s *MemoryStore) Credential(deviceStatic []byte) ([]byte, error) {
	cred, ok := s.entries[hex.EncodeToString(deviceStatic)]
	if !ok {
		return nil, nil
	}
	return cred, nil
}

// Len returns the number of stored credentials.
func (s *MemoryStore) Len() int { return len(s.entries) }

// fileEntry is one credential as persisted in YAML.
type fileEntry struct {
	Device     string `yaml:"device"`
	Credential string `yaml:"credential"`
	Label      string `yaml:"label,omitempty"`
}

type fileFormat struct {
	Credentials []fileEntry `yaml:"credentials"`
}

// FileStore is a Store persisted as a YAML file. Keys and credentials are
// hex encoded.
type FileStore struct {
	*MemoryStore
	path   string
	labels map[string]string
}

// DefaultPath returns the default store location: ~/.thp/credentials.yaml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".thp", "credentials.yaml")
	}
	return filepath.Join(home, ".thp", "credentials.yaml")
}

// LoadFileStore reads the store at path. A missing file yields an empty store.
func LoadFileStore(path string) (*FileStore, error) {
	fs := &FileStore{MemoryStore: NewMemoryStore(), path: path, labels: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, err
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("credential: parse %s: %w", path, err)
	}
	for _, e := range f.Credentials {
		device, err := hex.DecodeString(e.Device)
		if err != nil {
			return nil, fmt.Errorf("credential: device key %q: %w", e.Device, err)
		}
		cred, err := hex.DecodeString(e.Credential)
		if err != nil {
			return nil, fmt.Errorf("credential: credential for %q: %w", e.Device, err)
		}
		if err := fs.Put(device, cred); err != nil {
			return nil, err
		}
		if e.Label != "" {
			fs.labels[e.Device] = e.Label
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "LoadFileStore",
		"path":     path,
		"entries":  fs.Len(),
	}).Debug("Credential store loaded")
	return fs, nil
}

// SetLabel attaches a human-readable label to a stored device.
func (fs *FileStore) SetLabel(deviceStatic []byte, label string) {
	fs.labels[hex.EncodeToString(deviceStatic)] = label
}

// Path returns the backing file path.
func (fs *FileStore) Path() string { return fs.path }

// Save writes the store to its file with mode 0600.
func (fs *FileStore) Save() error {
	keys := make([]string, 0, len(fs.entries))
	for k := range fs.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	f := fileFormat{Credentials: make([]fileEntry, 0, len(keys))}
	for _, k := range keys {
		f.Credentials = append(f.Credentials, fileEntry{
			Device:     k,
			Credential: hex.EncodeToString(fs.entries[k]),
			Label:      fs.labels[k],
		})
	}

	data, err := yaml.Marshal(&f)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fs.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(fs.path, data, 0o600)
}
