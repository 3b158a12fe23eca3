// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for Mountbay.
type Config struct {
	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Tools configures the external mount tool binaries.
	Tools ToolsConfig `yaml:"tools"`

	// Listen configures the HTTP mount API.
	Listen ListenConfig `yaml:"listen"`

	// Control configures the operator control socket.
	Control ControlConfig `yaml:"control"`

	// Journal configures the mount event journal.
	Journal JournalConfig `yaml:"journal"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for Mountbay data.
	Root string `yaml:"root"`

	// Bin is where Mountbay-managed tool binaries are installed.
	// This provides hermetic binary paths independent of user PATH.
	Bin string `yaml:"bin"`

	// DeviceRoot is the directory containing the raw device files
	// that mount requests name. Default: /dev
	DeviceRoot string `yaml:"device_root"`

	// ScratchRoot is where per-device mount directories are created.
	// Default: /tmp
	ScratchRoot string `yaml:"scratch_root"`

	// BaseDir is the fixed lowest-precedence union layer, always
	// present in the merged view. Default: /root/base
	BaseDir string `yaml:"base_dir"`

	// UnionMountPoint is the single directory where the merged
	// filesystem is exposed. Default: /var/www/localhost/htdocs
	UnionMountPoint string `yaml:"union_mount_point"`

	// State is where runtime state (the journal database) is stored.
	State string `yaml:"state"`
}

// ToolsConfig configures the external mount tool binaries. Each entry
// is either an absolute path or a bare name resolved via BinaryPath.
type ToolsConfig struct {
	// Archive mounts an archive file as a filesystem.
	// Default: fuse-archive
	Archive string `yaml:"archive"`

	// Transform layers the secondary transform filesystem on top of
	// a mounted archive. Default: fuzzyfs
	Transform string `yaml:"transform"`

	// Union composes the base directory and all active content
	// directories into the merged view. Default: unionfs
	Union string `yaml:"union"`

	// Unmount detaches a mounted filesystem. Default: umount
	Unmount string `yaml:"unmount"`

	// OptionsFile is an optional JSONC file overriding the extra
	// arguments passed to each tool. See LoadToolOptions.
	OptionsFile string `yaml:"options_file"`
}

// ListenConfig configures the HTTP mount API.
type ListenConfig struct {
	// Address is the host:port the HTTP server binds.
	// Default: 127.0.0.1:3030
	Address string `yaml:"address"`

	// ShutdownTimeout is how long to wait for in-flight requests
	// during graceful shutdown. Default: 10s
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// ControlConfig configures the operator control socket.
type ControlConfig struct {
	// SocketPath is the Unix socket path for the control protocol.
	// Default: <state>/control.sock, resolved at load time.
	SocketPath string `yaml:"socket_path"`
}

// JournalConfig configures the mount event journal.
type JournalConfig struct {
	// Path is the SQLite database file.
	// Default: <state>/journal.db, resolved at load time.
	Path string `yaml:"path"`

	// PoolSize is the SQLite connection pool size. Default: 4
	PoolSize int `yaml:"pool_size"`

	// Retention is how long journal entries are kept before the
	// prune loop removes them. Default: 720h (30 days)
	Retention string `yaml:"retention"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "mountbay")

	return &Config{
		Paths: PathsConfig{
			Root:            defaultRoot,
			Bin:             filepath.Join(defaultRoot, "bin"),
			DeviceRoot:      "/dev",
			ScratchRoot:     "/tmp",
			BaseDir:         "/root/base",
			UnionMountPoint: "/var/www/localhost/htdocs",
			State:           filepath.Join(defaultRoot, "state"),
		},
		Tools: ToolsConfig{
			Archive:   "fuse-archive",
			Transform: "fuzzyfs",
			Union:     "unionfs",
			Unmount:   "umount",
		},
		Listen: ListenConfig{
			Address:         "127.0.0.1:3030",
			ShutdownTimeout: "10s",
		},
		Journal: JournalConfig{
			PoolSize:  4,
			Retention: "720h",
		},
	}
}

// Load loads configuration from the MOUNTBAY_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults - if MOUNTBAY_CONFIG is not set, this fails.
// This ensures deterministic, auditable configuration with no hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("MOUNTBAY_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("MOUNTBAY_CONFIG environment variable not set; " +
			"set it to the path of your mountbay.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do not
// override config values - this ensures deterministic, auditable configuration.
// The only expansion performed is ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Expand ${HOME} and similar variables in paths for portability.
	cfg.expandVariables()

	// Derive state-relative defaults only after expansion so they
	// follow a relocated state directory.
	if cfg.Control.SocketPath == "" {
		cfg.Control.SocketPath = filepath.Join(cfg.Paths.State, "control.sock")
	}
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = filepath.Join(cfg.Paths.State, "journal.db")
	}

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"MOUNTBAY_ROOT": c.Paths.Root,
		"HOME":          os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["MOUNTBAY_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.Bin = expandVars(c.Paths.Bin, vars)
	c.Paths.DeviceRoot = expandVars(c.Paths.DeviceRoot, vars)
	c.Paths.ScratchRoot = expandVars(c.Paths.ScratchRoot, vars)
	c.Paths.BaseDir = expandVars(c.Paths.BaseDir, vars)
	c.Paths.UnionMountPoint = expandVars(c.Paths.UnionMountPoint, vars)
	c.Paths.State = expandVars(c.Paths.State, vars)
	c.Tools.OptionsFile = expandVars(c.Tools.OptionsFile, vars)
	c.Control.SocketPath = expandVars(c.Control.SocketPath, vars)
	c.Journal.Path = expandVars(c.Journal.Path, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.DeviceRoot == "" {
		errs = append(errs, fmt.Errorf("paths.device_root is required"))
	}
	if c.Paths.ScratchRoot == "" {
		errs = append(errs, fmt.Errorf("paths.scratch_root is required"))
	}
	if c.Paths.BaseDir == "" {
		errs = append(errs, fmt.Errorf("paths.base_dir is required"))
	}
	if c.Paths.UnionMountPoint == "" {
		errs = append(errs, fmt.Errorf("paths.union_mount_point is required"))
	}

	for _, tool := range []struct {
		field string
		value string
	}{
		{"tools.archive", c.Tools.Archive},
		{"tools.transform", c.Tools.Transform},
		{"tools.union", c.Tools.Union},
		{"tools.unmount", c.Tools.Unmount},
	} {
		if tool.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", tool.field))
		}
	}

	if c.Listen.Address == "" {
		errs = append(errs, fmt.Errorf("listen.address is required"))
	}
	if _, err := c.ShutdownTimeout(); err != nil {
		errs = append(errs, fmt.Errorf("listen.shutdown_timeout: %w", err))
	}

	if c.Journal.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("journal.pool_size must be at least 1"))
	}
	if _, err := c.JournalRetention(); err != nil {
		errs = append(errs, fmt.Errorf("journal.retention: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ShutdownTimeout parses Listen.ShutdownTimeout as a duration.
func (c *Config) ShutdownTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Listen.ShutdownTimeout)
}

// JournalRetention parses Journal.Retention as a duration.
func (c *Config) JournalRetention() (time.Duration, error) {
	return time.ParseDuration(c.Journal.Retention)
}

// EnsurePaths creates the directories the daemon writes to. Read-side
// paths (the device root, the base dir) are deliberately not created:
// their absence is an operator error worth surfacing, not papering over.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		c.Paths.ScratchRoot,
		c.Paths.State,
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}

// BinaryPath returns the full path to a mount tool binary.
// It looks in Paths.Bin first, then falls back to exec.LookPath.
// This provides hermetic binary resolution when Bin is configured.
// Absolute paths are returned unchanged after an existence check.
func (c *Config) BinaryPath(name string) (string, error) {
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err != nil {
			return "", fmt.Errorf("%s: %w", name, err)
		}
		return name, nil
	}

	// If Bin is configured, look there first.
	if c.Paths.Bin != "" {
		binPath := filepath.Join(c.Paths.Bin, name)
		if _, err := os.Stat(binPath); err == nil {
			return binPath, nil
		}
	}

	// Fall back to PATH lookup.
	path, err := exec.LookPath(name)
	if err != nil {
		if c.Paths.Bin != "" {
			return "", fmt.Errorf("%s not found in %s or PATH", name, c.Paths.Bin)
		}
		return "", fmt.Errorf("%s not found in PATH", name)
	}
	return path, nil
}
