// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Mountbay's standard CBOR encoding configuration.
//
// Mountbay uses two serialization formats with a clear boundary:
//
//   - JSON for external interfaces: the HTTP mount API, journal NDJSON
//     exports, and CLI output.
//   - CBOR for the daemon's control socket protocol.
//
// This package provides the shared CBOR encoding and decoding modes so
// the daemon and CLI encode identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (the control socket):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// # Struct Tag Rules
//
// The struct tag on a type documents its serialization format:
//
//   - `cbor` tag: this type is only ever serialized as CBOR (the
//     control socket envelope).
//   - `json` tag: this type may be serialized as both JSON and CBOR.
//     fxamacker/cbor v2 reads `json` tags as fallback when `cbor` tags
//     are absent, so a single `json` tag controls field naming and
//     omitempty for both formats. Examples: journal entries (socket
//     responses and NDJSON exports) and daemon status payloads
//     (socket responses and CLI --json output).
//
// Never use both `cbor` and `json` tags on the same field. The tag
// choice documents the contract, and doubling up obscures whether a
// type participates in JSON serialization.
package codec
