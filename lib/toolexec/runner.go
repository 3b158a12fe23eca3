// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

package toolexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Class identifies how a tool invocation ended. The zero value is
// Succeeded so a zero Outcome reports success.
type Class int

const (
	// Succeeded means the tool ran and exited zero.
	Succeeded Class = iota
	// SpawnFailed means the process never started.
	SpawnFailed
	// WaitFailed means the process started but its exit status
	// could not be collected.
	WaitFailed
	// ExitNonZero means the process exited with a nonzero status.
	ExitNonZero
)

// String returns a short log-friendly name for the class.
func (c Class) String() string {
	switch c {
	case Succeeded:
		return "succeeded"
	case SpawnFailed:
		return "spawn-failed"
	case WaitFailed:
		return "wait-failed"
	case ExitNonZero:
		return "exit-nonzero"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Outcome is the result of one tool invocation. Err is nil exactly
// when Class is Succeeded; for ExitNonZero it carries the tool's
// combined output so the operator can see what the tool said.
type Outcome struct {
	Class Class
	Err   error
}

// Runner runs one external tool to completion.
type Runner interface {
	// Run executes path with args and blocks until the process
	// exits or fails to start. The context bounds the child's
	// lifetime: cancellation kills the process.
	Run(ctx context.Context, path string, args ...string) Outcome
}

// ExecRunner is the production Runner backed by os/exec.
type ExecRunner struct{}

// Run starts the tool and waits for it. Start and Wait are separated
// so a fork/exec failure is distinguishable from a wait failure; the
// two produce different operator diagnostics.
func (ExecRunner) Run(ctx context.Context, path string, args ...string) Outcome {
	cmd := exec.CommandContext(ctx, path, args...)

	// Mount tools write their complaints to either stream; fold
	// both into one buffer for the error message.
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Start(); err != nil {
		return Outcome{Class: SpawnFailed, Err: fmt.Errorf("starting %s: %w", path, err)}
	}

	err := cmd.Wait()
	if err == nil {
		return Outcome{}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		trimmed := strings.TrimSpace(output.String())
		if trimmed != "" {
			return Outcome{
				Class: ExitNonZero,
				Err:   fmt.Errorf("%s exited with status %d: %s", path, exitErr.ExitCode(), trimmed),
			}
		}
		return Outcome{
			Class: ExitNonZero,
			Err:   fmt.Errorf("%s exited with status %d", path, exitErr.ExitCode()),
		}
	}

	return Outcome{Class: WaitFailed, Err: fmt.Errorf("awaiting %s: %w", path, err)}
}
