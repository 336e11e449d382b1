// Package config provides configuration management for the scenelocate agent.
// Values come from built-in defaults, then an optional YAML file, then
// environment variables, each layer overriding the previous one.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// Default values
	DefaultPort              = 8787
	DefaultLogLevel          = "info"
	DefaultDataDir           = ".scenelocate"
	DefaultBackendURL        = "http://127.0.0.1:5000"
	DefaultSeekMaxAttempts   = 20
	DefaultSeekRetryDelay    = 500 * time.Millisecond
	DefaultHealthTTL         = 30 * time.Second
	DefaultLibraryMaxEntries = 0

	// Environment variable names
	EnvConfigFile        = "SCENELOCATE_CONFIG"
	EnvPort              = "SCENELOCATE_PORT"
	EnvLogLevel          = "SCENELOCATE_LOG_LEVEL"
	EnvDataDir           = "SCENELOCATE_DATA_DIR"
	EnvBackendURL        = "SCENELOCATE_BACKEND_URL"
	EnvSearchTimeout     = "SCENELOCATE_SEARCH_TIMEOUT"
	EnvHealthTTL         = "SCENELOCATE_HEALTH_TTL"
	EnvMPVSocket         = "SCENELOCATE_MPV_SOCKET"
	EnvMPVPath           = "SCENELOCATE_MPV_PATH"
	EnvSeekMaxAttempts   = "SCENELOCATE_SEEK_MAX_ATTEMPTS"
	EnvSeekRetryDelay    = "SCENELOCATE_SEEK_RETRY_DELAY"
	EnvLibraryMaxEntries = "SCENELOCATE_LIBRARY_MAX_ENTRIES"
	EnvHeadless          = "SCENELOCATE_HEADLESS"

	DBFilename     = "scenelocate.db"
	ConfigFilename = "config.yaml"
	SocketFilename = "mpv.sock"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	BackendURL() string
	SearchTimeout() time.Duration
	HealthTTL() time.Duration
	MPVSocket() string
	MPVPath() string
	SeekMaxAttempts() int
	SeekRetryDelay() time.Duration
	LibraryMaxEntries() int
	Headless() bool
}

// EnvConfig is the layered configuration.
type EnvConfig struct {
	port              int
	logLevel          string
	dataDir           string
	backendURL        string
	searchTimeout     time.Duration
	healthTTL         time.Duration
	mpvSocket         string
	mpvPath           string
	seekMaxAttempts   int
	seekRetryDelay    time.Duration
	libraryMaxEntries int
	headless          bool

	sourceFile string
}

// New builds the configuration from defaults, the YAML file named by
// SCENELOCATE_CONFIG (or config.yaml in the data dir, if present) and the
// environment.
func New() (*EnvConfig, error) {
	return NewWithOverrides(Overrides{})
}

// Overrides carry command line values. Empty fields are ignored, set ones
// win over every other layer. DataDir also moves the default config file.
type Overrides struct {
	DataDir    string
	BackendURL string
	MPVSocket  string
	MPVPath    string
}

// NewWithOverrides is New with command line values applied last.
func NewWithOverrides(o Overrides) (*EnvConfig, error) {
	cfg := defaults()

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}
	if o.DataDir != "" {
		cfg.dataDir = o.DataDir
	}

	path := os.Getenv(EnvConfigFile)
	explicit := path != ""
	if !explicit {
		path = filepath.Join(cfg.dataDir, ConfigFilename)
	}

	fc, err := LoadFile(path)
	switch {
	case err == nil:
		if err := cfg.applyFile(fc); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", path, err)
		}
		cfg.sourceFile = path
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyOverrides(o)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *EnvConfig {
	return &EnvConfig{
		port:              DefaultPort,
		logLevel:          DefaultLogLevel,
		dataDir:           defaultDataDir(),
		backendURL:        DefaultBackendURL,
		healthTTL:         DefaultHealthTTL,
		seekMaxAttempts:   DefaultSeekMaxAttempts,
		seekRetryDelay:    DefaultSeekRetryDelay,
		libraryMaxEntries: DefaultLibraryMaxEntries,
	}
}

func (c *EnvConfig) applyEnv() error {
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		c.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		c.logLevel = ll
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		c.dataDir = dd
	}
	if u := os.Getenv(EnvBackendURL); u != "" {
		c.backendURL = u
	}
	if s := os.Getenv(EnvMPVSocket); s != "" {
		c.mpvSocket = s
	}
	if p := os.Getenv(EnvMPVPath); p != "" {
		c.mpvPath = p
	}

	var err error
	if c.searchTimeout, err = envDuration(EnvSearchTimeout, c.searchTimeout); err != nil {
		return err
	}
	if c.healthTTL, err = envDuration(EnvHealthTTL, c.healthTTL); err != nil {
		return err
	}
	if c.seekRetryDelay, err = envDuration(EnvSeekRetryDelay, c.seekRetryDelay); err != nil {
		return err
	}
	if c.seekMaxAttempts, err = envInt(EnvSeekMaxAttempts, c.seekMaxAttempts); err != nil {
		return err
	}
	if c.libraryMaxEntries, err = envInt(EnvLibraryMaxEntries, c.libraryMaxEntries); err != nil {
		return err
	}
	if c.headless, err = envBool(EnvHeadless, c.headless); err != nil {
		return err
	}
	return nil
}

func (c *EnvConfig) applyOverrides(o Overrides) {
	if o.DataDir != "" {
		c.dataDir = o.DataDir
	}
	if o.BackendURL != "" {
		c.backendURL = o.BackendURL
	}
	if o.MPVSocket != "" {
		c.mpvSocket = o.MPVSocket
	}
	if o.MPVPath != "" {
		c.mpvPath = o.MPVPath
	}
}

// Validate checks ranges that would otherwise fail much later.
func (c *EnvConfig) Validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", c.port)
	}
	u, err := url.Parse(c.backendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid backend URL %q: must be an absolute http(s) URL", c.backendURL)
	}
	if c.seekMaxAttempts < 0 {
		return fmt.Errorf("invalid seek max attempts %d: must not be negative", c.seekMaxAttempts)
	}
	if c.seekRetryDelay <= 0 {
		return fmt.Errorf("invalid seek retry delay %s: must be positive", c.seekRetryDelay)
	}
	if c.searchTimeout < 0 {
		return fmt.Errorf("invalid search timeout %s: must not be negative", c.searchTimeout)
	}
	if c.libraryMaxEntries < 0 {
		return fmt.Errorf("invalid library max entries %d: must not be negative", c.libraryMaxEntries)
	}
	return nil
}

func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// BackendURL is the base URL of the scene search backend, without a trailing slash.
func (c *EnvConfig) BackendURL() string {
	return strings.TrimRight(c.backendURL, "/")
}

// SearchTimeout bounds a scene search request. Zero means no client timeout.
func (c *EnvConfig) SearchTimeout() time.Duration {
	return c.searchTimeout
}

func (c *EnvConfig) HealthTTL() time.Duration {
	return c.healthTTL
}

// MPVSocket is the mpv JSON IPC socket path, defaulting to the data dir.
func (c *EnvConfig) MPVSocket() string {
	if c.mpvSocket != "" {
		return c.mpvSocket
	}
	return filepath.Join(c.dataDir, SocketFilename)
}

// MPVPath is the mpv binary to launch. Empty means attach to an already
// running player only.
func (c *EnvConfig) MPVPath() string {
	return c.mpvPath
}

func (c *EnvConfig) SeekMaxAttempts() int {
	return c.seekMaxAttempts
}

func (c *EnvConfig) SeekRetryDelay() time.Duration {
	return c.seekRetryDelay
}

// LibraryMaxEntries caps the saved video list. Zero keeps everything.
func (c *EnvConfig) LibraryMaxEntries() int {
	return c.libraryMaxEntries
}

func (c *EnvConfig) Headless() bool {
	return c.headless
}

// SourceFile is the YAML file that was applied, or "" when none was.
func (c *EnvConfig) SourceFile() string {
	return c.sourceFile
}

func envInt(name string, fallback int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return n, nil
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}

func envBool(name string, fallback bool) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", name, err)
	}
	return b, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
