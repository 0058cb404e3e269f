package zkwasm

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zkwasm/zkwasm-go/pkg/zkwasm/logging"
)

// Config carries the knobs fixed at module load.
type Config struct {
	// Mode selects serial or pool-backed execution. It cannot change for the
	// lifetime of the Context.
	Mode ExecutionMode `yaml:"-"`

	// PoolSize caps the worker count in Parallel mode. Zero uses the host's
	// reported concurrency.
	PoolSize int `yaml:"pool_size"`

	// KeyCacheDir persists synthesized keys between sessions. Empty keeps
	// them in memory only.
	KeyCacheDir string `yaml:"key_cache_dir"`

	// NodeURL is the base URL of the node queried for state roots and
	// program source. Empty disables node access.
	NodeURL     string        `yaml:"node_url"`
	NodeHTTP3   bool          `yaml:"node_http3"`
	NodeTimeout time.Duration `yaml:"node_timeout"`

	// LogLevel sets the stderr logger Load builds when no WithLogger option
	// is given: debug, info, warn, error or off.
	LogLevel string `yaml:"log_level"`
}

// Defaults returns the configuration used when nothing is specified.
func Defaults() Config {
	return Config{
		Mode:        DefaultMode(),
		NodeTimeout: 30 * time.Second,
		LogLevel:    "off",
	}
}

// Validate checks the configuration without touching the host.
func (c Config) Validate() error {
	if c.Mode != Serial && c.Mode != Parallel {
		return fmt.Errorf("unknown mode %s", c.Mode)
	}
	if c.PoolSize < 0 {
		return fmt.Errorf("pool_size must not be negative, got %d", c.PoolSize)
	}
	if c.NodeTimeout < 0 {
		return fmt.Errorf("node_timeout must not be negative, got %s", c.NodeTimeout)
	}
	if c.NodeURL != "" {
		u, err := url.Parse(c.NodeURL)
		if err != nil {
			return fmt.Errorf("node_url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("node_url: unsupported scheme %q", u.Scheme)
		}
	}
	if c.NodeHTTP3 && !strings.HasPrefix(c.NodeURL, "https://") {
		return fmt.Errorf("node_http3 requires an https node_url")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

type fileConfig struct {
	Mode   string `yaml:"mode"`
	Config `yaml:",inline"`
}

// LoadConfig reads a YAML configuration file. Unset fields keep their
// Defaults values.
func LoadConfig(path string) (Config, error) {
	absPath, err := SecurePath(path)
	if err != nil {
		return Config{}, fmt.Errorf("secure path: %w", err)
	}
	data, err := os.ReadFile(absPath) // #nosec G304 -- absPath validated by SecurePath
	if err != nil {
		return Config{}, fmt.Errorf("read file: %w", err)
	}
	fc := fileConfig{Config: Defaults()}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("unmarshal YAML: %w", err)
	}
	cfg := fc.Config
	if fc.Mode != "" {
		if cfg.Mode, err = ParseMode(fc.Mode); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// SecurePath validates that a file path doesn't escape the working directory.
func SecurePath(path string) (string, error) {
	clean := filepath.Clean(path)
	absPath, err := filepath.Abs(clean)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	base, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	rel, err := filepath.Rel(base, absPath)
	if err != nil {
		return "", fmt.Errorf("relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes working directory", path)
	}
	return absPath, nil
}
