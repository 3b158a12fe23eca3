// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"
)

// formatBytes renders a byte count with the largest binary unit that
// keeps the number readable.
func formatBytes(bytes uint64) string {
	switch {
	case bytes >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(1<<30))
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// formatDuration renders nanoseconds using the largest appropriate
// unit, compounding minutes+seconds and hours+minutes for longer
// spans.
func formatDuration(nanoseconds int64) string {
	if nanoseconds < 0 {
		return "-" + formatDuration(-nanoseconds)
	}
	duration := time.Duration(nanoseconds)
	switch {
	case duration < time.Microsecond:
		return fmt.Sprintf("%dns", nanoseconds)
	case duration < time.Millisecond:
		return fmt.Sprintf("%.1fµs", float64(nanoseconds)/float64(time.Microsecond))
	case duration < time.Second:
		return fmt.Sprintf("%.1fms", float64(nanoseconds)/float64(time.Millisecond))
	case duration < time.Minute:
		return fmt.Sprintf("%.2fs", float64(nanoseconds)/float64(time.Second))
	case duration < time.Hour:
		minutes := int(duration / time.Minute)
		seconds := int((duration % time.Minute) / time.Second)
		if seconds == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		hours := int(duration / time.Hour)
		minutes := int((duration % time.Hour) / time.Minute)
		if minutes == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
}

// formatTimestamp renders Unix nanoseconds as a local-time string with
// second precision.
func formatTimestamp(nanoseconds int64) string {
	if nanoseconds == 0 {
		return "-"
	}
	return time.Unix(0, nanoseconds).Local().Format("2006-01-02T15:04:05")
}

// formatUptime renders fractional seconds as hours and minutes.
func formatUptime(seconds float64) string {
	duration := time.Duration(seconds * float64(time.Second))
	hours := int(duration / time.Hour)
	minutes := int((duration % time.Hour) / time.Minute)
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
