// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

// Package mount implements the device mount pipelines and the state
// they share.
//
// A mounted device is a three-level stack of FUSE mounts driven by
// external tools: an archive mount exposing the device's archive as a
// directory tree, a transform mount re-exposing that tree with relaxed
// name matching, and a union mount merging every device's content
// directory over a common base. The union view lives at a single
// mountpoint, and remounting it is the only way to add or remove a
// layer, so all union changes serialize through one coordinator.
//
// The Engine identifies devices by their content path and runs the two
// pipelines:
//
//   - Mount: validate the name, reserve the device, create the
//     mountpoints, run the archive and transform tools, verify the
//     content directory, rebuild the union view with the new layer.
//   - Unmount: demote the device, rebuild the union view without its
//     layer, unmount the transform and archive, remove the
//     mountpoints.
//
// Pipelines report a Result (an HTTP status plus a fixed one-line
// body) rather than an error; the HTTP adapter writes it verbatim.
// Once a mount pipeline has reserved its device, every failure unwinds
// exactly the steps that completed, tagged by a progress level.
//
// Completed runs are recorded as Events in a bounded in-memory ring
// and handed to an optional Observer for durable journaling.
package mount
