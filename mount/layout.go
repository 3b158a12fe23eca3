// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

package mount

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Layout holds the filesystem roots every per-device path derives
// from. The daemon fills it from configuration; the zero value is not
// usable.
type Layout struct {
	// DeviceRoot is the directory where device files appear.
	DeviceRoot string
	// ScratchRoot hosts the per-device mountpoints.
	ScratchRoot string
	// BaseDir is the always-present bottom layer of the union view.
	BaseDir string
	// UnionMountPoint is where the merged view is exposed.
	UnionMountPoint string
}

// DevicePaths collects every path derived from one device name.
type DevicePaths struct {
	// Device is the raw device file.
	Device string
	// Archive is the mountpoint where the archive tool exposes the
	// device.
	Archive string
	// Transform is the mountpoint where the transform tool
	// re-exposes the archive.
	Transform string
	// Content is the directory inside the transform mount that joins
	// the union view. It doubles as the device's registry identity.
	Content string
}

// Paths derives the per-device paths for name. It assumes name has
// passed ValidateDeviceName.
func (l Layout) Paths(name string) DevicePaths {
	archive := filepath.Join(l.ScratchRoot, name)
	transform := archive + ".fuzzy"
	return DevicePaths{
		Device:    filepath.Join(l.DeviceRoot, name),
		Archive:   archive,
		Transform: transform,
		Content:   filepath.Join(transform, "content"),
	}
}

// DeviceName recovers the device name from a content path produced by
// Paths.
func (l Layout) DeviceName(contentPath string) string {
	return strings.TrimSuffix(filepath.Base(filepath.Dir(contentPath)), ".fuzzy")
}

// ValidateDeviceName rejects names that would escape the configured
// roots or corrupt a tool argument vector.
func ValidateDeviceName(name string) error {
	if name == "" {
		return errors.New("device name is empty")
	}
	if name == "." || name == ".." || name != filepath.Base(name) {
		return fmt.Errorf("device name %q is not a plain file name", name)
	}
	if strings.Contains(name, ":") {
		return fmt.Errorf("device name %q contains a colon; colons separate union layers and cannot be escaped", name)
	}
	if strings.Contains(name, ",") {
		return fmt.Errorf("device name %q contains a comma; commas are used as option separators and cannot be safely escaped", name)
	}
	if strings.ContainsAny(name, "\x00\n\r") {
		return fmt.Errorf("device name %q contains invalid characters", name)
	}
	return nil
}
