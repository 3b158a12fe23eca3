// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/mountbay/mountbay/lib/config"
	"github.com/mountbay/mountbay/lib/netutil"
)

// connection is where a command reaches the daemon: the HTTP address
// for mount and umount, the control socket for everything else.
type connection struct {
	address    string
	socketPath string
}

// resolveConnection fills in the daemon coordinates. Explicit flag
// values win, then the config file named by MOUNTBAY_CONFIG, then the
// compiled-in defaults, so the CLI works against a stock daemon with
// no flags at all.
func resolveConnection(address, socketPath string) connection {
	conn := connection{address: address, socketPath: socketPath}
	if conn.address != "" && conn.socketPath != "" {
		return conn
	}

	if cfg, err := config.Load(); err == nil {
		if conn.address == "" {
			conn.address = cfg.Listen.Address
		}
		if conn.socketPath == "" {
			conn.socketPath = cfg.Control.SocketPath
		}
	}

	defaults := config.Default()
	if conn.address == "" {
		conn.address = defaults.Listen.Address
	}
	if conn.socketPath == "" {
		conn.socketPath = filepath.Join(defaults.Paths.State, "control.sock")
	}
	return conn
}

// pipelineTimeout bounds one mount or umount request. The daemon
// detaches pipelines from the request context, so expiry here never
// aborts the work server-side; it only stops the wait.
const pipelineTimeout = 2 * time.Minute

// controlTimeout bounds one control-socket call. These are reads of
// in-memory or SQLite state and come back quickly.
const controlTimeout = 10 * time.Second

// callPipeline performs one GET against the mount API and returns the
// status code and the diagnostic body.
func (c connection) callPipeline(ctx context.Context, op, device string) (int, string, error) {
	requestURL := fmt.Sprintf("http://%s/%s?devname=%s", c.address, op, url.QueryEscape(device))
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return 0, "", fmt.Errorf("building request: %w", err)
	}

	response, err := http.DefaultClient.Do(request)
	if err != nil {
		return 0, "", fmt.Errorf("calling the daemon at %s: %w", c.address, err)
	}
	defer response.Body.Close()

	body, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return 0, "", fmt.Errorf("reading response: %w", err)
	}
	return response.StatusCode, string(body), nil
}
