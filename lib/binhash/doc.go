// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

// Package binhash provides BLAKE3 content hashing for binary files.
//
// The daemon fingerprints its external mount tools (archive mounter,
// transform filesystem, union filesystem, umount) at startup so that
// logs and status output identify exactly which tool builds were in
// play when a mount succeeded or failed. Tool paths alone are not
// enough: the same path can hold different binaries across upgrades,
// and a digest pins the observed behavior to actual content.
//
// The API surface is three functions:
//
//   - [HashFile] -- streams a file through BLAKE3, returning a [32]byte
//     digest with constant memory usage regardless of file size
//   - [FormatDigest] -- converts a [32]byte digest to its canonical
//     hex-encoded string representation, used in status payloads and
//     log output
//   - [ParseDigest] -- parses a hex-encoded digest string back to a
//     [32]byte array, validating length and encoding
//
// This package has no dependencies on other Mountbay packages.
package binhash
