// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sys/unix"

	"github.com/mountbay/mountbay/journal"
	"github.com/mountbay/mountbay/lib/clock"
	"github.com/mountbay/mountbay/lib/codec"
	"github.com/mountbay/mountbay/lib/service"
	"github.com/mountbay/mountbay/lib/version"
	"github.com/mountbay/mountbay/mount"
)

// controlServer implements the read-only actions on the control
// socket. Mutations go through the HTTP mount API; the socket exists
// so operators can inspect the daemon (mountbay status, mounts,
// journal, watch) without touching the mount surface.
type controlServer struct {
	engine    *mount.Engine
	journal   *journal.Journal
	layout    mount.Layout
	tools     []toolInfo
	clock     clock.Clock
	startedAt time.Time
	logger    *slog.Logger
}

func (s *controlServer) registerActions(server *service.SocketServer) {
	server.Handle("status", s.handleStatus)
	server.Handle("mounts", s.handleMounts)
	server.Handle("recent", s.handleRecent)
	server.Handle("journal", s.handleJournal)
}

// Wire types for the control protocol. Timestamps travel as int64
// Unix nanoseconds; the deterministic CBOR profile encodes time.Time
// at second precision, which is too coarse for pipeline durations.

// toolInfo identifies one resolved mount tool in the status payload.
type toolInfo struct {
	Name   string `cbor:"name"`
	Path   string `cbor:"path"`
	Digest string `cbor:"digest"`
}

// fsUsage reports filesystem capacity behind one path.
type fsUsage struct {
	Path       string `cbor:"path"`
	TotalBytes uint64 `cbor:"total_bytes"`
	FreeBytes  uint64 `cbor:"free_bytes"`
}

// statusResponse is the payload for the "status" action.
type statusResponse struct {
	Version       string     `cbor:"version"`
	UptimeSeconds float64    `cbor:"uptime_seconds"`
	Mounted       int        `cbor:"mounted"`
	Union         fsUsage    `cbor:"union"`
	Scratch       fsUsage    `cbor:"scratch"`
	Tools         []toolInfo `cbor:"tools"`
}

// mountEntry is one active mount in the "mounts" payload.
type mountEntry struct {
	Device      string `cbor:"device"`
	ContentPath string `cbor:"content_path"`
	SinceUnixNS int64  `cbor:"since_unix_ns"`
}

// eventEntry is one completed pipeline in the "recent" payload.
type eventEntry struct {
	AtUnixNS    int64  `cbor:"at_unix_ns"`
	Op          string `cbor:"op"`
	Device      string `cbor:"device"`
	ContentPath string `cbor:"content_path"`
	Status      int    `cbor:"status"`
	Message     string `cbor:"message"`
	DurationNS  int64  `cbor:"duration_ns"`
}

// journalEntry is one persisted pipeline in the "journal" payload.
type journalEntry struct {
	ID          int64  `cbor:"id"`
	AtUnixNS    int64  `cbor:"at_unix_ns"`
	Op          string `cbor:"op"`
	Device      string `cbor:"device"`
	ContentPath string `cbor:"content_path"`
	Status      int    `cbor:"status"`
	Message     string `cbor:"message"`
	DurationNS  int64  `cbor:"duration_ns"`
}

func (s *controlServer) handleStatus(_ context.Context, _ []byte) (any, error) {
	return statusResponse{
		Version:       version.Short(),
		UptimeSeconds: s.clock.Now().Sub(s.startedAt).Seconds(),
		Mounted:       s.engine.MountedCount(),
		Union:         s.usage(s.layout.UnionMountPoint),
		Scratch:       s.usage(s.layout.ScratchRoot),
		Tools:         s.tools,
	}, nil
}

// usage stats the filesystem behind path. Capacity comes back zero
// when statfs fails (the union view is briefly detached between
// remounts); status keeps answering regardless.
func (s *controlServer) usage(path string) fsUsage {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		s.logger.Debug("statfs failed", "path", path, "error", err)
		return fsUsage{Path: path}
	}
	blockSize := uint64(stat.Bsize)
	return fsUsage{
		Path:       path,
		TotalBytes: stat.Blocks * blockSize,
		FreeBytes:  stat.Bavail * blockSize,
	}
}

func (s *controlServer) handleMounts(_ context.Context, _ []byte) (any, error) {
	table := s.engine.MountTable()
	entries := make([]mountEntry, 0, len(table))
	for _, info := range table {
		entries = append(entries, mountEntry{
			Device:      info.Device,
			ContentPath: info.ContentPath,
			SinceUnixNS: info.Since.UnixNano(),
		})
	}
	return entries, nil
}

// limitRequest is the shared request shape for the history actions.
// A zero limit means the handler's default.
type limitRequest struct {
	Limit int `cbor:"limit"`
}

func (s *controlServer) handleRecent(_ context.Context, raw []byte) (any, error) {
	var request limitRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("decoding recent request: %w", err)
	}

	events := s.engine.Recent(request.Limit)
	entries := make([]eventEntry, 0, len(events))
	for _, event := range events {
		entries = append(entries, eventEntry{
			AtUnixNS:    event.At.UnixNano(),
			Op:          event.Op,
			Device:      event.Device,
			ContentPath: event.ContentPath,
			Status:      event.Status,
			Message:     event.Message,
			DurationNS:  int64(event.Duration),
		})
	}
	return entries, nil
}

func (s *controlServer) handleJournal(ctx context.Context, raw []byte) (any, error) {
	var request limitRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("decoding journal request: %w", err)
	}

	records, err := s.journal.Recent(ctx, request.Limit)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	entries := make([]journalEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, journalEntry{
			ID:          record.ID,
			AtUnixNS:    record.At.UnixNano(),
			Op:          record.Op,
			Device:      record.Device,
			ContentPath: record.ContentPath,
			Status:      record.Status,
			Message:     record.Message,
			DurationNS:  int64(record.Duration),
		})
	}
	return entries, nil
}
