// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

package toolexec

import (
	"context"
	"slices"
	"sync"
)

// Call records one invocation seen by a Fake.
type Call struct {
	Path string
	Args []string
}

// Fake is a Runner for tests. It records every invocation and lets
// the Handler script outcomes per call. Safe for concurrent use.
type Fake struct {
	// Handler decides the outcome of each call. A nil Handler
	// reports success for everything.
	Handler func(path string, args []string) Outcome

	mu    sync.Mutex
	calls []Call
}

// Run records the invocation and consults the Handler.
func (f *Fake) Run(_ context.Context, path string, args ...string) Outcome {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Path: path, Args: slices.Clone(args)})
	f.mu.Unlock()

	if f.Handler == nil {
		return Outcome{}
	}
	return f.Handler(path, args)
}

// Calls returns a snapshot of every recorded invocation in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}
