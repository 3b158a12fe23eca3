// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

package main

// Control socket payloads, mirrored from the daemon rather than
// imported: the daemon's types live in its own main package, and the
// wire format is the contract between the binaries, not the Go types.
// Timestamps travel as int64 Unix nanoseconds.

// statusResult is the "status" action payload.
type statusResult struct {
	Version       string       `cbor:"version"        json:"version"`
	UptimeSeconds float64      `cbor:"uptime_seconds" json:"uptime_seconds"`
	Mounted       int          `cbor:"mounted"        json:"mounted"`
	Union         usageResult  `cbor:"union"          json:"union"`
	Scratch       usageResult  `cbor:"scratch"        json:"scratch"`
	Tools         []toolResult `cbor:"tools"          json:"tools"`
}

// usageResult reports filesystem capacity behind one daemon path.
type usageResult struct {
	Path       string `cbor:"path"        json:"path"`
	TotalBytes uint64 `cbor:"total_bytes" json:"total_bytes"`
	FreeBytes  uint64 `cbor:"free_bytes"  json:"free_bytes"`
}

// toolResult identifies one resolved mount tool.
type toolResult struct {
	Name   string `cbor:"name"   json:"name"`
	Path   string `cbor:"path"   json:"path"`
	Digest string `cbor:"digest" json:"digest"`
}

// mountResult is one active mount in the "mounts" action payload.
type mountResult struct {
	Device      string `cbor:"device"        json:"device"`
	ContentPath string `cbor:"content_path"  json:"content_path"`
	SinceUnixNS int64  `cbor:"since_unix_ns" json:"since_unix_ns"`
}

// eventResult is one completed pipeline in the "recent" action
// payload.
type eventResult struct {
	AtUnixNS    int64  `cbor:"at_unix_ns"   json:"at_unix_ns"`
	Op          string `cbor:"op"           json:"op"`
	Device      string `cbor:"device"       json:"device"`
	ContentPath string `cbor:"content_path" json:"content_path"`
	Status      int    `cbor:"status"       json:"status"`
	Message     string `cbor:"message"      json:"message"`
	DurationNS  int64  `cbor:"duration_ns"  json:"duration_ns"`
}

// journalResult is one persisted pipeline in the "journal" action
// payload.
type journalResult struct {
	ID          int64  `cbor:"id"           json:"id"`
	AtUnixNS    int64  `cbor:"at_unix_ns"   json:"at_unix_ns"`
	Op          string `cbor:"op"           json:"op"`
	Device      string `cbor:"device"       json:"device"`
	ContentPath string `cbor:"content_path" json:"content_path"`
	Status      int    `cbor:"status"       json:"status"`
	Message     string `cbor:"message"      json:"message"`
	DurationNS  int64  `cbor:"duration_ns"  json:"duration_ns"`
}
