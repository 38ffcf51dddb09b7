package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadFile reads, parses and validates the cluster definition at path.
func LoadFile(path string) (*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML cluster definition, applies defaults and validates it.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg, err := decode(data)
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte) (*Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ConfigError{Message: err.Error()}
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Nodes == nil {
		c.Nodes = map[Role]RoleSpec{}
	}
	if c.AWS.Region == "" {
		c.AWS.Region = c.Cluster.ArchivalBackend.Region
	}

	if c.State.Bucket == "" {
		c.State.Bucket = c.Cluster.ArchivalBackend.Bucket
	}
	if c.State.Region == "" {
		c.State.Region = c.Cluster.ArchivalBackend.Region
	}
	if c.State.KeyPrefix == "" {
		c.State.KeyPrefix = DefaultStateKeyPrefix
	}
	if c.State.LockTable == "" {
		c.State.LockTable = DefaultLockTable
	}
	if c.State.LeaseTTL == 0 {
		c.State.LeaseTTL = DefaultLeaseTTL
	}

	b := &c.Bootstrap
	if b.Executor == "" {
		b.Executor = ExecutorSSH
	}
	if b.Command == "" {
		b.Command = DefaultBootstrapCommand
	}
	if b.CheckCommand == "" {
		b.CheckCommand = DefaultCheckCommand
	}
	if b.HealthCommand == "" {
		b.HealthCommand = DefaultHealthCommand
	}
	if b.SSH.User == "" {
		b.SSH.User = DefaultSSHUser
	}
	if b.SSH.Port == 0 {
		b.SSH.Port = DefaultSSHPort
	}
}

// Save writes the cluster definition to path as YAML.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// FindConfigFile resolves the config path. An explicit path is returned as-is;
// otherwise splunkctl.yaml is looked up in the current directory and its parents.
func FindConfigFile(path string) (string, error) {
	if path != "" {
		return path, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, DefaultConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("config file %s not found", DefaultConfigFile)
}
