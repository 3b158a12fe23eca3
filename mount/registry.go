// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

package mount

import (
	"sync"
	"time"
)

// claimOutcome reports whether a pipeline claimed its device's
// in-flight marker, and if not, why.
type claimOutcome int

const (
	claimed claimOutcome = iota
	alreadyMounted
	notMounted
	changeInFlight
)

// registry tracks each device's place in the mount lifecycle, keyed by
// content path. A device is in at most one of two sets: mounted (part
// of the union view, with the time it joined) or changing (a pipeline
// owns it).
type registry struct {
	mu       sync.Mutex
	mounted  map[string]time.Time
	changing map[string]struct{}
}

func newRegistry() *registry {
	return &registry{
		mounted:  make(map[string]time.Time),
		changing: make(map[string]struct{}),
	}
}

// reserve claims contentPath for a mount pipeline. Only the pipeline
// holding the claim may mutate the device's mounts.
func (r *registry) reserve(contentPath string) claimOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.mounted[contentPath]; ok {
		return alreadyMounted
	}
	if _, ok := r.changing[contentPath]; ok {
		return changeInFlight
	}
	r.changing[contentPath] = struct{}{}
	return claimed
}

// demote claims contentPath for an unmount pipeline, removing it from
// the mounted set in the same step so no concurrent union rebuild can
// pick it up as a layer.
func (r *registry) demote(contentPath string) claimOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.changing[contentPath]; ok {
		return changeInFlight
	}
	if _, ok := r.mounted[contentPath]; !ok {
		return notMounted
	}
	delete(r.mounted, contentPath)
	r.changing[contentPath] = struct{}{}
	return claimed
}

// promote marks a claimed contentPath as mounted at the given time.
func (r *registry) promote(contentPath string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.changing, contentPath)
	r.mounted[contentPath] = at
}

// release drops the in-flight claim. Idempotent, so every failure path
// can call it unconditionally.
func (r *registry) release(contentPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.changing, contentPath)
}

// snapshot lists the mounted content paths in no particular order.
func (r *registry) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	paths := make([]string, 0, len(r.mounted))
	for path := range r.mounted {
		paths = append(paths, path)
	}
	return paths
}

// table copies the mounted set with the time each path joined.
func (r *registry) table() map[string]time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	table := make(map[string]time.Time, len(r.mounted))
	for path, since := range r.mounted {
		table[path] = since
	}
	return table
}

func (r *registry) mountedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.mounted)
}
