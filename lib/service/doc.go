// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the two server surfaces of the Mountbay
// daemon and the client for the second one.
//
//   - HTTP server: listener lifecycle and graceful shutdown for the
//     mount API. The caller provides the http.Handler; the server
//     owns binding, readiness signaling, and drain-on-cancel.
//   - Socket server: CBOR request-response protocol on a Unix socket
//     with action dispatch, connection timeouts, and graceful
//     shutdown. Used for the operator control protocol (status,
//     mount table, journal queries).
//   - Socket client: one connection per call, mirroring the server's
//     one-request-per-connection model.
//
// The daemon composes these in its own main() function rather than
// subclassing a framework. The package provides building blocks, not
// a runtime.
//
// # Authentication
//
// There is none in the protocol. The HTTP listener is expected to
// bind a loopback or otherwise trusted address, and the control
// socket is guarded by filesystem permissions on its path. Anything
// stronger belongs in front of the daemon, not inside it.
package service
