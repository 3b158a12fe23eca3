// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

package mount

import (
	"sync"
	"time"
)

// Values for Event.Op.
const (
	OpMount   = "mount"
	OpUnmount = "umount"
)

// Event records the outcome of one completed pipeline run.
type Event struct {
	Op          string        `json:"op"`
	Device      string        `json:"device"`
	ContentPath string        `json:"content_path"`
	Status      int           `json:"status"`
	Message     string        `json:"message"`
	Duration    time.Duration `json:"duration_ns"`
	At          time.Time     `json:"at"`
}

// eventRing is a fixed-capacity ring of the most recent events. Safe
// for concurrent use.
type eventRing struct {
	mu    sync.Mutex
	slots []Event
	next  int
	total int
}

func newEventRing(capacity int) *eventRing {
	return &eventRing{slots: make([]Event, capacity)}
}

// record stores event, overwriting the oldest entry once the ring is
// full.
func (r *eventRing) record(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[r.next] = event
	r.next = (r.next + 1) % len(r.slots)
	if r.total < len(r.slots) {
		r.total++
	}
}

// recent returns up to limit events, newest first. A limit of zero or
// less, or beyond the stored count, returns everything held.
func (r *eventRing) recent(limit int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 || limit > r.total {
		limit = r.total
	}
	events := make([]Event, 0, limit)
	for i := 1; i <= limit; i++ {
		events = append(events, r.slots[(r.next-i+len(r.slots))%len(r.slots)])
	}
	return events
}
