package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/opd-ai/thp"
	"github.com/opd-ai/thp/credential"
	"github.com/opd-ai/thp/crypto"
	"github.com/opd-ai/thp/limits"
)

// Config holds the thpctl configuration.
type Config struct {
	PacketLen       int    `yaml:"packet_len"`
	Cipher          string `yaml:"cipher"`
	CredentialStore string `yaml:"credential_store"`
	LogLevel        string `yaml:"log_level"`
}

// DefaultConfigPath returns the default config file path: ~/.thp/config.yaml
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".thp", "config.yaml")
	}
	return filepath.Join(home, ".thp", "config.yaml")
}

// LoadConfig reads the configuration from the given YAML file path.
// If the file does not exist, it returns a default Config with no error.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		PacketLen:       limits.DefaultPacketLen,
		Cipher:          crypto.CipherAESGCM,
		CredentialStore: credential.DefaultPath(),
		LogLevel:        "warning",
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Options builds the protocol options described by the configuration.
func (c *Config) Options() (*thp.Options, error) {
	if err := limits.ValidatePacketLen(c.PacketLen); err != nil {
		return nil, err
	}
	backend, err := crypto.NewBackend(c.Cipher)
	if err != nil {
		return nil, err
	}
	opts := thp.NewOptions()
	opts.PacketLen = c.PacketLen
	opts.Backend = backend
	return opts, nil
}
