// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for testability.
//
// Code that needs the current time or periodic ticks accepts a Clock
// parameter instead of calling time.Now, time.After, time.NewTicker,
// or time.Sleep directly. Production wiring passes Real(); tests pass
// Fake(), whose time moves only when Advance is called.
//
// # Wiring Pattern
//
// Add a Clock field to structs that observe time:
//
//	type Engine struct {
//	    clock clock.Clock
//	    // ...
//	}
//
// In production:
//
//	engine := &Engine{clock: clock.Real()}
//
// In tests:
//
//	c := clock.Fake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
//	engine := &Engine{clock: c}
//	// ... start goroutines ...
//	c.WaitForTimers(1) // wait for a timer to register
//	c.Advance(time.Minute)
//
// # FakeClock Synchronization
//
// A goroutine calling Sleep, After, or NewTicker on a FakeClock
// registers a pending waiter. WaitForTimers blocks until a given
// number of waiters exist, which removes the race between a goroutine
// registering its timer and the test advancing the clock. Tests never
// need a real time.Sleep to synchronize.
package clock
