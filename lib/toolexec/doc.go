// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

// Package toolexec runs the external mount tools and classifies how
// each invocation ended.
//
// Every mount and unmount step shells out to exactly one tool with a
// fixed argument vector; there is no shell interpretation anywhere.
// The engine does not inspect exit codes or stderr itself - it only
// needs to know which of three things went wrong, because each maps
// to a distinct client-facing diagnostic:
//
//   - [SpawnFailed] -- the process never started (bad path, fork failure)
//   - [WaitFailed] -- the process started but its status could not be collected
//   - [ExitNonZero] -- the process ran and reported failure
//
// [ExecRunner] is the real implementation. [Fake] records argument
// vectors and lets tests script outcomes without touching mount(8)
// or FUSE.
//
// No retries: a non-success Outcome is final. The calling pipeline
// owns all cleanup.
package toolexec
