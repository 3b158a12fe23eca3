// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

package mount

import "context"

// coordinator serializes rebuilds of the union view. The critical
// section spans subprocess calls, so it is a channel semaphore rather
// than a sync.Mutex: waiters park until the slot frees and can abandon
// the wait when their context ends.
type coordinator struct {
	slot chan struct{}

	// layers counts the content paths in the last built view.
	// Touched only while the slot is held.
	layers int
}

func newCoordinator() *coordinator {
	return &coordinator{slot: make(chan struct{}, 1)}
}

// acquire takes the slot, honoring ctx while waiting.
func (c *coordinator) acquire(ctx context.Context) error {
	select {
	case c.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// release frees the slot. Must pair with a successful acquire.
func (c *coordinator) release() {
	<-c.slot
}
