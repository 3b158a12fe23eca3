// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/mountbay/mountbay/lib/toolexec"
	"github.com/mountbay/mountbay/mount"
)

const (
	testToolArchive   = "/opt/tools/fuse-archive"
	testToolTransform = "/opt/tools/fuzzyfs"
	testToolUnion     = "/opt/tools/unionfs"
	testToolUnmount   = "/opt/tools/umount"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// apiHarness serves the HTTP mount API over a real engine whose tool
// runner is faked: the transform tool plants a content directory in
// its mountpoint and the unmount tool removes it, which is all the
// pipelines observe of the real FUSE stack.
type apiHarness struct {
	handler http.Handler
	engine  *mount.Engine
	layout  mount.Layout
	scripts map[string]toolexec.Outcome
}

func newAPIHarness(t *testing.T, configure ...func(*mount.Config)) *apiHarness {
	t.Helper()

	root := t.TempDir()
	h := &apiHarness{
		layout: mount.Layout{
			DeviceRoot:      filepath.Join(root, "dev"),
			ScratchRoot:     filepath.Join(root, "scratch"),
			BaseDir:         filepath.Join(root, "base"),
			UnionMountPoint: filepath.Join(root, "union"),
		},
		scripts: make(map[string]toolexec.Outcome),
	}
	for _, dir := range []string{h.layout.DeviceRoot, h.layout.ScratchRoot, h.layout.BaseDir, h.layout.UnionMountPoint} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	config := mount.Config{
		Layout: h.layout,
		Tools: mount.Tools{
			Archive:   mount.Tool{Path: testToolArchive},
			Transform: mount.Tool{Path: testToolTransform},
			Union:     mount.Tool{Path: testToolUnion},
			Unmount:   mount.Tool{Path: testToolUnmount},
		},
		Runner: &toolexec.Fake{Handler: h.handleTool},
		Logger: testLogger(),
	}
	for _, fn := range configure {
		fn(&config)
	}
	h.engine = mount.NewEngine(config)
	h.handler = newMountAPI(h.engine, h.layout, testLogger()).handler()
	return h
}

func (h *apiHarness) handleTool(path string, args []string) toolexec.Outcome {
	if outcome, ok := h.scripts[path]; ok {
		return outcome
	}
	switch path {
	case testToolTransform:
		if err := os.MkdirAll(filepath.Join(args[1], "content"), 0o755); err != nil {
			return toolexec.Outcome{Class: toolexec.WaitFailed, Err: err}
		}
	case testToolUnmount:
		if err := os.RemoveAll(filepath.Join(args[len(args)-1], "content")); err != nil {
			return toolexec.Outcome{Class: toolexec.ExitNonZero, Err: err}
		}
	}
	return toolexec.Outcome{}
}

func (h *apiHarness) createDevice(t *testing.T, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(h.layout.DeviceRoot, name), []byte("archive"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (h *apiHarness) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	recorder := httptest.NewRecorder()
	h.handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, target, nil))
	return recorder
}

func (h *apiHarness) mustMount(t *testing.T, device string) {
	t.Helper()
	if response := h.get(t, "/mount?devname="+device); response.Code != http.StatusCreated {
		t.Fatalf("mounting %s: status %d, body %q", device, response.Code, response.Body.String())
	}
}

func TestMountEndpointContract(t *testing.T) {
	tests := []struct {
		name       string
		prepare    func(t *testing.T, h *apiHarness)
		target     string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "mount succeeds",
			prepare:    func(t *testing.T, h *apiHarness) { h.createDevice(t, "sdb") },
			target:     "/mount?devname=sdb",
			wantStatus: http.StatusCreated,
			wantBody:   "OK",
		},
		{
			name:       "mount missing device",
			target:     "/mount?devname=sdz",
			wantStatus: http.StatusBadRequest,
			wantBody:   "Requested device doesn't exist: sdz",
		},
		{
			name: "mount directory device",
			prepare: func(t *testing.T, h *apiHarness) {
				if err := os.Mkdir(filepath.Join(h.layout.DeviceRoot, "sdd"), 0o755); err != nil {
					t.Fatal(err)
				}
			},
			target:     "/mount?devname=sdd",
			wantStatus: http.StatusBadRequest,
			wantBody:   "Requested device is a directory: sdd",
		},
		{
			name:       "mount traversal name",
			target:     "/mount?devname=a%2Fb",
			wantStatus: http.StatusBadRequest,
			wantBody:   "Requested device name is invalid: a/b",
		},
		{
			name: "mount already mounted",
			prepare: func(t *testing.T, h *apiHarness) {
				h.createDevice(t, "sdb")
				h.mustMount(t, "sdb")
			},
			target:     "/mount?devname=sdb",
			wantStatus: http.StatusOK,
			wantBody:   "Device is already mounted.",
		},
		{
			name: "mount spawn failure",
			prepare: func(t *testing.T, h *apiHarness) {
				h.createDevice(t, "sdb")
				h.scripts[testToolArchive] = toolexec.Outcome{
					Class: toolexec.SpawnFailed,
					Err:   os.ErrNotExist,
				}
			},
			target:     "/mount?devname=sdb",
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Could not spawn subprocess.",
		},
		{
			name: "unmount succeeds",
			prepare: func(t *testing.T, h *apiHarness) {
				h.createDevice(t, "sdb")
				h.mustMount(t, "sdb")
			},
			target:     "/umount?devname=sdb",
			wantStatus: http.StatusCreated,
			wantBody:   "OK",
		},
		{
			name:       "unmount idle device",
			target:     "/umount?devname=sdb",
			wantStatus: http.StatusOK,
			wantBody:   "Device is not mounted.",
		},
		{
			name:       "missing devname",
			target:     "/mount",
			wantStatus: http.StatusBadRequest,
			wantBody:   "Required GET param absent: 'devname'",
		},
		{
			name:       "undecodable devname",
			target:     "/mount?devname=%zz",
			wantStatus: http.StatusBadRequest,
			wantBody:   "Couldn't decode devname",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			h := newAPIHarness(t)
			if test.prepare != nil {
				test.prepare(t, h)
			}

			response := h.get(t, test.target)
			if response.Code != test.wantStatus {
				t.Errorf("status = %d, want %d", response.Code, test.wantStatus)
			}
			if got := response.Body.String(); got != test.wantBody {
				t.Errorf("body = %q, want %q", got, test.wantBody)
			}
			if got := response.Header().Get("Content-Type"); got != "text/plain; charset=utf-8" {
				t.Errorf("Content-Type = %q", got)
			}
		})
	}
}

func TestMountEndpointRejectsPost(t *testing.T) {
	h := newAPIHarness(t)
	recorder := httptest.NewRecorder()
	h.handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/mount?devname=sdb", nil))
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusMethodNotAllowed)
	}
}

func TestHealthEndpoint(t *testing.T) {
	h := newAPIHarness(t)
	response := h.get(t, "/health")
	if response.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", response.Code)
	}
	if got := response.Body.String(); got != `{"status":"ok"}` {
		t.Errorf("body = %q", got)
	}
	if got := response.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestMountsEndpoint(t *testing.T) {
	h := newAPIHarness(t)

	response := h.get(t, "/mounts")
	if response.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", response.Code)
	}
	var rows []mountRow
	if err := json.Unmarshal(response.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decoding empty listing: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty listing, got %+v", rows)
	}

	h.createDevice(t, "sdb")
	h.createDevice(t, "sda")
	h.mustMount(t, "sdb")
	h.mustMount(t, "sda")

	response = h.get(t, "/mounts")
	if err := json.Unmarshal(response.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decoding listing: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 mounts, got %+v", rows)
	}
	if rows[0].Device != "sda" || rows[1].Device != "sdb" {
		t.Errorf("devices = %q, %q; want sorted sda, sdb", rows[0].Device, rows[1].Device)
	}
	for _, row := range rows {
		if row.ContentPath == "" {
			t.Errorf("mount %s has empty content path", row.Device)
		}
		if row.Since.IsZero() {
			t.Errorf("mount %s has zero since time", row.Device)
		}
	}
}
