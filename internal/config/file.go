package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the YAML representation of the configuration. Unset fields leave
// the lower layer untouched.
type File struct {
	Port              *int    `yaml:"port,omitempty"`
	LogLevel          *string `yaml:"log_level,omitempty"`
	DataDir           *string `yaml:"data_dir,omitempty"`
	BackendURL        *string `yaml:"backend_url,omitempty"`
	SearchTimeout     *string `yaml:"search_timeout,omitempty"`
	HealthTTL         *string `yaml:"health_ttl,omitempty"`
	MPVSocket         *string `yaml:"mpv_socket,omitempty"`
	MPVPath           *string `yaml:"mpv_path,omitempty"`
	SeekMaxAttempts   *int    `yaml:"seek_max_attempts,omitempty"`
	SeekRetryDelay    *string `yaml:"seek_retry_delay,omitempty"`
	LibraryMaxEntries *int    `yaml:"library_max_entries,omitempty"`
	Headless          *bool   `yaml:"headless,omitempty"`
}

// LoadFile reads a YAML config file. A missing file yields an error
// matching os.ErrNotExist.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &f, nil
}

// SaveFile writes f as YAML, creating the parent directory.
func SaveFile(f *File, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *EnvConfig) applyFile(f *File) error {
	if f.Port != nil {
		c.port = *f.Port
	}
	if f.LogLevel != nil {
		c.logLevel = *f.LogLevel
	}
	if f.DataDir != nil {
		c.dataDir = *f.DataDir
	}
	if f.BackendURL != nil {
		c.backendURL = *f.BackendURL
	}
	if f.MPVSocket != nil {
		c.mpvSocket = *f.MPVSocket
	}
	if f.MPVPath != nil {
		c.mpvPath = *f.MPVPath
	}
	if f.SeekMaxAttempts != nil {
		c.seekMaxAttempts = *f.SeekMaxAttempts
	}
	if f.LibraryMaxEntries != nil {
		c.libraryMaxEntries = *f.LibraryMaxEntries
	}
	if f.Headless != nil {
		c.headless = *f.Headless
	}

	durations := []struct {
		name string
		raw  *string
		dst  *time.Duration
	}{
		{"search_timeout", f.SearchTimeout, &c.searchTimeout},
		{"health_ttl", f.HealthTTL, &c.healthTTL},
		{"seek_retry_delay", f.SeekRetryDelay, &c.seekRetryDelay},
	}
	for _, d := range durations {
		if d.raw == nil {
			continue
		}
		v, err := time.ParseDuration(*d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = v
	}
	return nil
}
