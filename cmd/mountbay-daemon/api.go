// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/mountbay/mountbay/mount"
)

// mountAPI is the HTTP surface of the daemon. The webserver in front
// of the union view calls GET /mount and GET /umount with a devname
// query parameter and scripts its behavior off the status code, so
// the codes and body strings here are a contract, not decoration.
type mountAPI struct {
	engine *mount.Engine
	layout mount.Layout
	logger *slog.Logger
}

func newMountAPI(engine *mount.Engine, layout mount.Layout, logger *slog.Logger) *mountAPI {
	return &mountAPI{engine: engine, layout: layout, logger: logger}
}

func (api *mountAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /mount", api.handleMount)
	mux.HandleFunc("GET /umount", api.handleUnmount)
	mux.HandleFunc("GET /mounts", api.handleMounts)
	mux.HandleFunc("GET /health", api.handleHealth)
	return mux
}

func (api *mountAPI) handleMount(w http.ResponseWriter, r *http.Request) {
	device, result := deviceParam(r)
	if result != nil {
		writeResult(w, *result)
		return
	}
	// Detach from the request context: a client that gives up must not
	// abort a pipeline halfway through, or it would strand FUSE mounts
	// that the next attempt then trips over.
	writeResult(w, api.engine.Mount(context.WithoutCancel(r.Context()), device))
}

func (api *mountAPI) handleUnmount(w http.ResponseWriter, r *http.Request) {
	device, result := deviceParam(r)
	if result != nil {
		writeResult(w, *result)
		return
	}
	writeResult(w, api.engine.Unmount(context.WithoutCancel(r.Context()), device))
}

// mountRow is one active mount in the GET /mounts response.
type mountRow struct {
	Device      string    `json:"device"`
	ContentPath string    `json:"content_path"`
	Since       time.Time `json:"since"`
}

func (api *mountAPI) handleMounts(w http.ResponseWriter, _ *http.Request) {
	table := api.engine.MountTable()
	rows := make([]mountRow, 0, len(table))
	for _, info := range table {
		rows = append(rows, mountRow{
			Device:      info.Device,
			ContentPath: info.ContentPath,
			Since:       info.Since,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rows); err != nil {
		api.logger.Warn("encoding mounts response", "error", err)
	}
}

func (api *mountAPI) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, `{"status":"ok"}`)
}

// deviceParam extracts the devname query parameter. The second return
// is non-nil when the request is malformed and holds the 400 to send.
func deviceParam(r *http.Request) (string, *mount.Result) {
	values, err := url.ParseQuery(r.URL.RawQuery)
	if err != nil {
		return "", &mount.Result{Status: http.StatusBadRequest, Message: "Couldn't decode devname"}
	}
	if !values.Has("devname") {
		return "", &mount.Result{Status: http.StatusBadRequest, Message: "Required GET param absent: 'devname'"}
	}
	return values.Get("devname"), nil
}

// writeResult sends a pipeline result: the status code plus the
// diagnostic as the entire body.
func writeResult(w http.ResponseWriter, result mount.Result) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(result.Status)
	io.WriteString(w, result.Message)
}
