// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestDefaultToolOptions(t *testing.T) {
	t.Parallel()

	options := DefaultToolOptions()

	allowOther := []string{"-o", "allow_other"}
	if !slices.Equal(options.Archive, allowOther) {
		t.Errorf("Archive = %v, want %v", options.Archive, allowOther)
	}
	if !slices.Equal(options.Transform, allowOther) {
		t.Errorf("Transform = %v, want %v", options.Transform, allowOther)
	}
	if !slices.Equal(options.Union, allowOther) {
		t.Errorf("Union = %v, want %v", options.Union, allowOther)
	}
	if len(options.Unmount) != 0 {
		t.Errorf("Unmount = %v, want no extra arguments", options.Unmount)
	}
}

func TestParseToolOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    ToolOptions
		wantErr bool
	}{
		{
			name: "comments and trailing commas",
			input: `{
				// Read-only archive mounts.
				"archive": ["-o", "allow_other", "-o", "ro"],
				/* lazy-detach everything */
				"unmount": ["-l"],
			}`,
			want: ToolOptions{
				Archive:   []string{"-o", "allow_other", "-o", "ro"},
				Transform: []string{"-o", "allow_other"},
				Union:     []string{"-o", "allow_other"},
				Unmount:   []string{"-l"},
			},
		},
		{
			name:  "absent keys keep defaults",
			input: `{"union": ["-o", "cow"]}`,
			want: ToolOptions{
				Archive:   []string{"-o", "allow_other"},
				Transform: []string{"-o", "allow_other"},
				Union:     []string{"-o", "cow"},
			},
		},
		{
			name:  "explicit empty list clears the default",
			input: `{"transform": []}`,
			want: ToolOptions{
				Archive:   []string{"-o", "allow_other"},
				Transform: []string{},
				Union:     []string{"-o", "allow_other"},
			},
		},
		{
			name:    "malformed json",
			input:   `{"archive": [`,
			wantErr: true,
		},
		{
			name:    "wrong value type",
			input:   `{"archive": "not-a-list"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseToolOptions([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseToolOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			if !slices.Equal(got.Archive, tt.want.Archive) {
				t.Errorf("Archive = %v, want %v", got.Archive, tt.want.Archive)
			}
			if !slices.Equal(got.Transform, tt.want.Transform) {
				t.Errorf("Transform = %v, want %v", got.Transform, tt.want.Transform)
			}
			if !slices.Equal(got.Union, tt.want.Union) {
				t.Errorf("Union = %v, want %v", got.Union, tt.want.Union)
			}
			if !slices.Equal(got.Unmount, tt.want.Unmount) {
				t.Errorf("Unmount = %v, want %v", got.Unmount, tt.want.Unmount)
			}
		})
	}
}

func TestLoadToolOptions(t *testing.T) {
	t.Parallel()

	t.Run("EmptyPathReturnsDefaults", func(t *testing.T) {
		t.Parallel()

		options, err := LoadToolOptions("")
		if err != nil {
			t.Fatalf("LoadToolOptions: %v", err)
		}
		if !slices.Equal(options.Archive, []string{"-o", "allow_other"}) {
			t.Errorf("Archive = %v, want defaults", options.Archive)
		}
	})

	t.Run("ReadsFile", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "tools.jsonc")
		content := `{
			// Larger cache for big archives.
			"archive": ["-o", "allow_other", "-o", "cachesize=512"],
		}`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}

		options, err := LoadToolOptions(path)
		if err != nil {
			t.Fatalf("LoadToolOptions: %v", err)
		}
		want := []string{"-o", "allow_other", "-o", "cachesize=512"}
		if !slices.Equal(options.Archive, want) {
			t.Errorf("Archive = %v, want %v", options.Archive, want)
		}
	})

	t.Run("MissingFileFails", func(t *testing.T) {
		t.Parallel()

		_, err := LoadToolOptions(filepath.Join(t.TempDir(), "nonexistent.jsonc"))
		if err == nil {
			t.Fatal("expected error for missing file")
		}
	})
}
