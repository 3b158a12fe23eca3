// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// ToolOptions holds the extra arguments appended to each tool's argv
// after the positional source and target arguments. Authored on disk
// as JSONC (JSON extended with // line comments, /* block comments */,
// and trailing commas) so operators can annotate why a flag is set.
type ToolOptions struct {
	Archive   []string `json:"archive"`
	Transform []string `json:"transform"`
	Union     []string `json:"union"`
	Unmount   []string `json:"unmount"`
}

// DefaultToolOptions returns the extra arguments used when no options
// file is configured. The three FUSE tools get allow_other so the
// webserver reading the union view is not locked out by the default
// FUSE owner check. The unmount utility takes no extras.
func DefaultToolOptions() ToolOptions {
	return ToolOptions{
		Archive:   []string{"-o", "allow_other"},
		Transform: []string{"-o", "allow_other"},
		Union:     []string{"-o", "allow_other"},
	}
}

// ParseToolOptions strips JSONC comments and trailing commas from data,
// then unmarshals the result over the defaults. Keys present in the
// file replace the default for that tool (an explicit empty list clears
// it); absent keys keep the default.
func ParseToolOptions(data []byte) (ToolOptions, error) {
	options := DefaultToolOptions()

	stripped := jsonc.ToJSON(data)
	if err := json.Unmarshal(stripped, &options); err != nil {
		return ToolOptions{}, fmt.Errorf("parsing tool options: %w", err)
	}

	return options, nil
}

// LoadToolOptions reads a JSONC tool options file from disk. An empty
// path returns the defaults without touching the filesystem.
func LoadToolOptions(path string) (ToolOptions, error) {
	if path == "" {
		return DefaultToolOptions(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ToolOptions{}, fmt.Errorf("reading %s: %w", path, err)
	}

	options, err := ParseToolOptions(data)
	if err != nil {
		return ToolOptions{}, fmt.Errorf("%s: %w", path, err)
	}

	return options, nil
}
