// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for Mountbay components.
//
// Configuration is loaded from a single file specified by either the
// MOUNTBAY_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search. This ensures deterministic, auditable
// configuration with no hidden overrides.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${MOUNTBAY_ROOT}, and ${VAR:-default} patterns are expanded.
// No other environment variables override config values.
//
// Tool invocation options live in a separate JSONC overlay file (JSON
// extended with comments and trailing commas) referenced by
// Tools.OptionsFile and loaded via [LoadToolOptions]. Keeping mount
// flags out of the main YAML lets operators version them with the
// fstab-like care they deserve while the daemon config stays stable.
//
// Key exports:
//
//   - [Config] -- master struct with Paths, Tools, Listen, Control, Journal
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [ToolOptions] and [LoadToolOptions] -- per-tool extra arguments
//
// This package depends on no other Mountbay packages.
package config
