// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Paths.DeviceRoot != "/dev" {
		t.Errorf("expected device_root=/dev, got %s", cfg.Paths.DeviceRoot)
	}

	if cfg.Paths.UnionMountPoint != "/var/www/localhost/htdocs" {
		t.Errorf("expected union_mount_point=/var/www/localhost/htdocs, got %s", cfg.Paths.UnionMountPoint)
	}

	if cfg.Tools.Archive != "fuse-archive" {
		t.Errorf("expected archive=fuse-archive, got %s", cfg.Tools.Archive)
	}

	if cfg.Listen.Address != "127.0.0.1:3030" {
		t.Errorf("expected address=127.0.0.1:3030, got %s", cfg.Listen.Address)
	}
}

func TestLoad_RequiresMountbayConfig(t *testing.T) {
	// Save and restore MOUNTBAY_CONFIG.
	origConfig := os.Getenv("MOUNTBAY_CONFIG")
	defer os.Setenv("MOUNTBAY_CONFIG", origConfig)

	// Unset MOUNTBAY_CONFIG - Load() should fail.
	os.Unsetenv("MOUNTBAY_CONFIG")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when MOUNTBAY_CONFIG not set, got nil")
	}

	expectedMsg := "MOUNTBAY_CONFIG environment variable not set"
	if err.Error()[:len(expectedMsg)] != expectedMsg {
		t.Errorf("expected error message to start with %q, got %q", expectedMsg, err.Error())
	}
}

func TestLoad_WithMountbayConfig(t *testing.T) {
	// Save and restore MOUNTBAY_CONFIG.
	origConfig := os.Getenv("MOUNTBAY_CONFIG")
	defer os.Setenv("MOUNTBAY_CONFIG", origConfig)

	// Create temp config file.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "mountbay.yaml")

	configContent := `
paths:
  root: /test/root
  device_root: /test/dev
listen:
  address: 0.0.0.0:8080
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	// Set MOUNTBAY_CONFIG and load.
	os.Setenv("MOUNTBAY_CONFIG", configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Paths.Root != "/test/root" {
		t.Errorf("expected root=/test/root, got %s", cfg.Paths.Root)
	}

	if cfg.Paths.DeviceRoot != "/test/dev" {
		t.Errorf("expected device_root=/test/dev, got %s", cfg.Paths.DeviceRoot)
	}

	if cfg.Listen.Address != "0.0.0.0:8080" {
		t.Errorf("expected address=0.0.0.0:8080, got %s", cfg.Listen.Address)
	}
}

func TestLoadFile(t *testing.T) {
	// Create temp config file.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "mountbay.yaml")

	configContent := `
paths:
  root: /custom/root
  scratch_root: /custom/scratch
  base_dir: /custom/base

tools:
  archive: /opt/tools/fuse-archive
  unmount: /sbin/umount

listen:
  address: 127.0.0.1:9090
  shutdown_timeout: 5s

journal:
  pool_size: 2
  retention: 48h
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Paths.Root != "/custom/root" {
		t.Errorf("expected root=/custom/root, got %s", cfg.Paths.Root)
	}

	if cfg.Paths.ScratchRoot != "/custom/scratch" {
		t.Errorf("expected scratch_root=/custom/scratch, got %s", cfg.Paths.ScratchRoot)
	}

	if cfg.Paths.BaseDir != "/custom/base" {
		t.Errorf("expected base_dir=/custom/base, got %s", cfg.Paths.BaseDir)
	}

	// Values absent from the file keep their defaults.
	if cfg.Paths.DeviceRoot != "/dev" {
		t.Errorf("expected device_root=/dev (default), got %s", cfg.Paths.DeviceRoot)
	}

	if cfg.Tools.Archive != "/opt/tools/fuse-archive" {
		t.Errorf("expected archive=/opt/tools/fuse-archive, got %s", cfg.Tools.Archive)
	}

	if cfg.Tools.Transform != "fuzzyfs" {
		t.Errorf("expected transform=fuzzyfs (default), got %s", cfg.Tools.Transform)
	}

	timeout, err := cfg.ShutdownTimeout()
	if err != nil {
		t.Fatalf("ShutdownTimeout: %v", err)
	}
	if timeout != 5*time.Second {
		t.Errorf("expected shutdown_timeout=5s, got %v", timeout)
	}

	retention, err := cfg.JournalRetention()
	if err != nil {
		t.Fatalf("JournalRetention: %v", err)
	}
	if retention != 48*time.Hour {
		t.Errorf("expected retention=48h, got %v", retention)
	}

	if cfg.Journal.PoolSize != 2 {
		t.Errorf("expected pool_size=2, got %d", cfg.Journal.PoolSize)
	}
}

func TestStateRelativeDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "mountbay.yaml")

	configContent := `
paths:
  state: /var/lib/mountbay/state
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Control.SocketPath != "/var/lib/mountbay/state/control.sock" {
		t.Errorf("expected socket under state dir, got %s", cfg.Control.SocketPath)
	}

	if cfg.Journal.Path != "/var/lib/mountbay/state/journal.db" {
		t.Errorf("expected journal under state dir, got %s", cfg.Journal.Path)
	}
}

func TestEnvVarsDoNotOverride(t *testing.T) {
	// Verify that environment variables do NOT override config file values.
	// The config file is the single source of truth for deterministic configuration.

	// Save and restore env vars.
	origRoot := os.Getenv("MOUNTBAY_ROOT")
	origAddress := os.Getenv("MOUNTBAY_LISTEN_ADDRESS")
	defer func() {
		os.Setenv("MOUNTBAY_ROOT", origRoot)
		os.Setenv("MOUNTBAY_LISTEN_ADDRESS", origAddress)
	}()

	// Set env vars that should be ignored.
	os.Setenv("MOUNTBAY_ROOT", "/env/root")
	os.Setenv("MOUNTBAY_LISTEN_ADDRESS", "0.0.0.0:1")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "mountbay.yaml")

	configContent := `
paths:
  root: /file/root
listen:
  address: 127.0.0.1:3030
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	// File values should be used, NOT env vars.
	if cfg.Paths.Root != "/file/root" {
		t.Errorf("expected root=/file/root from file, got %s (env vars should not override)", cfg.Paths.Root)
	}

	if cfg.Listen.Address != "127.0.0.1:3030" {
		t.Errorf("expected address=127.0.0.1:3030 from file, got %s (env vars should not override)", cfg.Listen.Address)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/mountbay",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/mountbay",
		},
		{
			input:    "${MISSING:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "empty root path",
			modify: func(c *Config) {
				c.Paths.Root = ""
			},
			wantErr: true,
		},
		{
			name: "empty device root",
			modify: func(c *Config) {
				c.Paths.DeviceRoot = ""
			},
			wantErr: true,
		},
		{
			name: "empty union mount point",
			modify: func(c *Config) {
				c.Paths.UnionMountPoint = ""
			},
			wantErr: true,
		},
		{
			name: "empty tool",
			modify: func(c *Config) {
				c.Tools.Transform = ""
			},
			wantErr: true,
		},
		{
			name: "empty listen address",
			modify: func(c *Config) {
				c.Listen.Address = ""
			},
			wantErr: true,
		},
		{
			name: "unparseable shutdown timeout",
			modify: func(c *Config) {
				c.Listen.ShutdownTimeout = "soon"
			},
			wantErr: true,
		},
		{
			name: "zero pool size",
			modify: func(c *Config) {
				c.Journal.PoolSize = 0
			},
			wantErr: true,
		},
		{
			name: "unparseable retention",
			modify: func(c *Config) {
				c.Journal.Retention = "a month"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnsurePaths(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Default()
	cfg.Paths.Root = filepath.Join(tmpDir, "mountbay")
	cfg.Paths.ScratchRoot = filepath.Join(cfg.Paths.Root, "scratch")
	cfg.Paths.State = filepath.Join(cfg.Paths.Root, "state")
	cfg.Paths.DeviceRoot = filepath.Join(tmpDir, "absent-devices")
	cfg.Paths.BaseDir = filepath.Join(tmpDir, "absent-base")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths failed: %v", err)
	}

	// Verify write-side directories were created.
	for _, path := range []string{cfg.Paths.Root, cfg.Paths.ScratchRoot, cfg.Paths.State} {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("path %s not created: %v", path, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("path %s is not a directory", path)
		}
	}

	// Read-side directories must not be invented.
	for _, path := range []string{cfg.Paths.DeviceRoot, cfg.Paths.BaseDir} {
		if _, err := os.Stat(path); err == nil {
			t.Errorf("path %s was created; read-side paths should be left alone", path)
		}
	}
}

func TestBinaryPath(t *testing.T) {
	tmpDir := t.TempDir()
	binDir := filepath.Join(tmpDir, "bin")
	if err := os.MkdirAll(binDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	toolPath := filepath.Join(binDir, "fuzzyfs")
	if err := os.WriteFile(toolPath, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("write tool: %v", err)
	}

	cfg := Default()
	cfg.Paths.Bin = binDir

	t.Run("ResolvesFromBin", func(t *testing.T) {
		path, err := cfg.BinaryPath("fuzzyfs")
		if err != nil {
			t.Fatalf("BinaryPath: %v", err)
		}
		if path != toolPath {
			t.Errorf("path = %q, want %q", path, toolPath)
		}
	})

	t.Run("AbsolutePathPassesThrough", func(t *testing.T) {
		path, err := cfg.BinaryPath(toolPath)
		if err != nil {
			t.Fatalf("BinaryPath: %v", err)
		}
		if path != toolPath {
			t.Errorf("path = %q, want %q", path, toolPath)
		}
	})

	t.Run("MissingAbsolutePathFails", func(t *testing.T) {
		_, err := cfg.BinaryPath(filepath.Join(tmpDir, "nonexistent"))
		if err == nil {
			t.Fatal("expected error for missing absolute path")
		}
	})

	t.Run("MissingToolFails", func(t *testing.T) {
		_, err := cfg.BinaryPath("mountbay-no-such-tool-xyzzy")
		if err == nil {
			t.Fatal("expected error for tool missing from Bin and PATH")
		}
	})
}
