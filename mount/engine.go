// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

package mount

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/mountbay/mountbay/lib/clock"
	"github.com/mountbay/mountbay/lib/toolexec"
)

// Result is the outcome a pipeline reports to its caller: an HTTP
// status code and a one-line body, written to the response verbatim.
type Result struct {
	Status  int
	Message string
}

// Tool is one external mount helper: a resolved binary path plus the
// arguments appended after the positional ones.
type Tool struct {
	Path      string
	ExtraArgs []string
}

// Tools holds the four helpers the pipelines shell out to.
type Tools struct {
	// Archive exposes a device's archive as a directory tree.
	// Invoked as: archive <device> <mountpoint>.
	Archive Tool
	// Transform re-exposes an archive tree with relaxed name
	// matching. Invoked as: transform <archive> <mountpoint>.
	Transform Tool
	// Union merges content directories over the base directory.
	// Invoked as: union <layer:layer:...> <mountpoint>.
	Union Tool
	// Unmount detaches a mountpoint. Invoked as: unmount [-l] <mountpoint>.
	Unmount Tool
}

// Config assembles an Engine.
type Config struct {
	Layout Layout
	Tools  Tools
	Runner toolexec.Runner
	Logger *slog.Logger

	// Clock defaults to the real clock. Tests inject a fake.
	Clock clock.Clock

	// Observer, when set, receives every completed pipeline event
	// after it lands in the ring. Called synchronously from the
	// request goroutine.
	Observer func(Event)

	// EventRingSize caps the in-memory event ring. Zero or negative
	// selects the default.
	EventRingSize int
}

const defaultEventRingSize = 256

// Engine owns all mount state: which content paths are mounted, which
// are mid-change, and the serialized access to the union mountpoint.
// One Engine serves one union view.
type Engine struct {
	layout   Layout
	tools    Tools
	runner   toolexec.Runner
	logger   *slog.Logger
	clock    clock.Clock
	observer func(Event)

	registry    *registry
	coordinator *coordinator
	ring        *eventRing
}

// NewEngine builds an Engine. Runner and Logger are required.
func NewEngine(config Config) *Engine {
	if config.Runner == nil {
		panic("mount: Config.Runner is required")
	}
	if config.Logger == nil {
		panic("mount: Config.Logger is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.EventRingSize <= 0 {
		config.EventRingSize = defaultEventRingSize
	}
	return &Engine{
		layout:      config.Layout,
		tools:       config.Tools,
		runner:      config.Runner,
		logger:      config.Logger,
		clock:       config.Clock,
		observer:    config.Observer,
		registry:    newRegistry(),
		coordinator: newCoordinator(),
		ring:        newEventRing(config.EventRingSize),
	}
}

// Mounts returns the content paths currently joined to the union view,
// sorted for stable output.
func (e *Engine) Mounts() []string {
	paths := e.registry.snapshot()
	slices.Sort(paths)
	return paths
}

// MountedCount reports how many devices are currently mounted.
func (e *Engine) MountedCount() int {
	return e.registry.mountedCount()
}

// MountInfo describes one active mount for listings.
type MountInfo struct {
	Device      string
	ContentPath string
	Since       time.Time
}

// MountTable returns the active mounts with the device name derived
// from each content path, sorted by device for stable output.
func (e *Engine) MountTable() []MountInfo {
	table := e.registry.table()
	infos := make([]MountInfo, 0, len(table))
	for contentPath, since := range table {
		infos = append(infos, MountInfo{
			Device:      e.layout.DeviceName(contentPath),
			ContentPath: contentPath,
			Since:       since,
		})
	}
	slices.SortFunc(infos, func(a, b MountInfo) int {
		return strings.Compare(a.Device, b.Device)
	})
	return infos
}

// Recent returns up to limit completed pipeline events, newest first.
// A limit of zero or less returns everything the ring holds.
func (e *Engine) Recent(limit int) []Event {
	return e.ring.recent(limit)
}

// Mount runs the mount pipeline for the named device.
func (e *Engine) Mount(ctx context.Context, name string) Result {
	return e.run(ctx, OpMount, name, e.mountDevice)
}

// Unmount runs the unmount pipeline for the named device.
func (e *Engine) Unmount(ctx context.Context, name string) Result {
	return e.run(ctx, OpUnmount, name, e.unmountDevice)
}

func (e *Engine) run(ctx context.Context, op, name string, pipeline func(context.Context, string) Result) Result {
	started := e.clock.Now()
	result := pipeline(ctx, name)
	duration := e.clock.Now().Sub(started)

	// A rejected name never maps to a real mountpoint; deriving paths
	// from it would put a cleaned, root-escaping string in the record.
	contentPath := ""
	if ValidateDeviceName(name) == nil {
		contentPath = e.layout.Paths(name).Content
	}

	event := Event{
		Op:          op,
		Device:      name,
		ContentPath: contentPath,
		Status:      result.Status,
		Message:     result.Message,
		Duration:    duration,
		At:          started,
	}
	e.ring.record(event)
	if e.observer != nil {
		e.observer(event)
	}
	e.logger.Info("pipeline finished",
		"op", op,
		"device", name,
		"status", result.Status,
		"message", result.Message,
		"duration", duration)
	return result
}

// progress tags how far a mount pipeline advanced, so unwind can undo
// exactly the steps that completed. unionJoined is terminal: a joined
// device comes down through the unmount pipeline, never through
// unwind.
type progress int

const (
	notStarted progress = iota
	directoriesCreated
	archiveMounted
	transformMounted
	unionJoined
)

func (e *Engine) mountDevice(ctx context.Context, name string) Result {
	if err := ValidateDeviceName(name); err != nil {
		e.logger.Warn("rejected device name", "device", name, "error", err)
		return Result{Status: http.StatusBadRequest, Message: "Requested device name is invalid: " + name}
	}
	paths := e.layout.Paths(name)

	info, err := os.Stat(paths.Device)
	if err != nil {
		return Result{Status: http.StatusBadRequest, Message: "Requested device doesn't exist: " + name}
	}
	if info.IsDir() {
		return Result{Status: http.StatusBadRequest, Message: "Requested device is a directory: " + name}
	}

	switch e.registry.reserve(paths.Content) {
	case alreadyMounted:
		return Result{Status: http.StatusOK, Message: "Device is already mounted."}
	case changeInFlight:
		return Result{Status: http.StatusConflict, Message: "Mount operation already in progress."}
	}

	// The device is claimed. Every failure from here on unwinds the
	// completed steps and releases the claim.
	level := notStarted
	fail := func(message string) Result {
		e.unwind(ctx, level, paths)
		e.registry.release(paths.Content)
		return Result{Status: http.StatusInternalServerError, Message: message}
	}

	if err := inParallel(
		func() error { return os.MkdirAll(paths.Archive, 0o755) },
		func() error { return os.MkdirAll(paths.Transform, 0o755) },
	); err != nil {
		e.logger.Error("creating mountpoints failed", "device", name, "error", err)
		return fail("Could not create mountpoints.")
	}
	level = directoriesCreated

	if outcome := e.runTool(ctx, e.tools.Archive, paths.Device, paths.Archive); outcome.Class != toolexec.Succeeded {
		e.logToolFailure("archive mount failed", name, e.tools.Archive, outcome)
		return fail(subprocessDiagnostic(outcome.Class))
	}
	level = archiveMounted

	if outcome := e.runTool(ctx, e.tools.Transform, paths.Archive, paths.Transform); outcome.Class != toolexec.Succeeded {
		e.logToolFailure("transform mount failed", name, e.tools.Transform, outcome)
		return fail(subprocessDiagnostic(outcome.Class))
	}
	level = transformMounted

	if info, err := os.Stat(paths.Content); err != nil || !info.IsDir() {
		e.logger.Error("transform exposes no content directory",
			"device", name, "path", paths.Content, "error", err)
		return fail("No content folder.")
	}

	if diagnostic, ok := e.joinUnion(ctx, name, paths); !ok {
		return fail(diagnostic)
	}
	return Result{Status: http.StatusCreated, Message: "OK"}
}

func (e *Engine) unmountDevice(ctx context.Context, name string) Result {
	if err := ValidateDeviceName(name); err != nil {
		e.logger.Warn("rejected device name", "device", name, "error", err)
		return Result{Status: http.StatusBadRequest, Message: "Requested device name is invalid: " + name}
	}
	paths := e.layout.Paths(name)

	switch e.registry.demote(paths.Content) {
	case changeInFlight:
		return Result{Status: http.StatusConflict, Message: "Mount operation already in progress."}
	case notMounted:
		return Result{Status: http.StatusOK, Message: "Device is not mounted."}
	}

	// A demoted device is out of the registry either way; failures
	// below leave its mounts for the operator rather than guessing at
	// a safe rollback.
	fail := func(message string) Result {
		e.registry.release(paths.Content)
		return Result{Status: http.StatusInternalServerError, Message: message}
	}

	if diagnostic, ok := e.dropFromUnion(ctx, name, paths); !ok {
		return fail(diagnostic)
	}

	if outcome := e.runTool(ctx, e.tools.Unmount, paths.Transform); outcome.Class != toolexec.Succeeded {
		e.logToolFailure("transform unmount failed", name, e.tools.Unmount, outcome)
		return fail(subprocessDiagnostic(outcome.Class))
	}
	if outcome := e.runTool(ctx, e.tools.Unmount, paths.Archive); outcome.Class != toolexec.Succeeded {
		e.logToolFailure("archive unmount failed", name, e.tools.Unmount, outcome)
		return fail(subprocessDiagnostic(outcome.Class))
	}

	if err := inParallel(
		func() error { return os.Remove(paths.Transform) },
		func() error { return os.Remove(paths.Archive) },
	); err != nil {
		e.logger.Error("removing mountpoints failed", "device", name, "error", err)
		return fail("Could not remove mountpoints.")
	}

	e.registry.release(paths.Content)
	return Result{Status: http.StatusCreated, Message: "OK"}
}

// joinUnion rebuilds the union view with the new content path as the
// second layer and promotes the device while still holding the
// coordinator, so a concurrent rebuild cannot observe the registry
// ahead of the view. Reports ok=false with the client diagnostic when
// a union step fails.
func (e *Engine) joinUnion(ctx context.Context, name string, paths DevicePaths) (diagnostic string, ok bool) {
	if err := e.coordinator.acquire(ctx); err != nil {
		e.logger.Error("union coordinator unavailable", "device", name, "error", err)
		return "Could not lock union mountpoint.", false
	}
	defer e.coordinator.release()

	// The stale view must be detached before the union tool can claim
	// the mountpoint again. Lazy, because readers may still hold
	// files open in the old view.
	if outcome := e.runTool(ctx, e.tools.Unmount, "-l", e.layout.UnionMountPoint); outcome.Class != toolexec.Succeeded {
		e.logToolFailure("union detach failed", name, e.tools.Unmount, outcome)
		return subprocessDiagnostic(outcome.Class), false
	}

	// Base first, the new content second. Order beyond that is
	// unspecified.
	layers := append([]string{e.layout.BaseDir, paths.Content}, e.registry.snapshot()...)
	if outcome := e.runTool(ctx, e.tools.Union, strings.Join(layers, ":"), e.layout.UnionMountPoint); outcome.Class != toolexec.Succeeded {
		e.logToolFailure("union mount failed", name, e.tools.Union, outcome)
		return subprocessDiagnostic(outcome.Class), false
	}

	e.registry.promote(paths.Content, e.clock.Now())
	e.coordinator.layers++
	if e.coordinator.layers != e.registry.mountedCount() {
		e.logger.Warn("layer counter diverged from registry",
			"layers", e.coordinator.layers, "mounted", e.registry.mountedCount())
	}
	return "", true
}

// dropFromUnion rebuilds the union view without the demoted content
// path. The layer list is snapshotted while holding the coordinator;
// the target was removed from the mounted set by demote, so it cannot
// reappear in the list.
func (e *Engine) dropFromUnion(ctx context.Context, name string, paths DevicePaths) (diagnostic string, ok bool) {
	if err := e.coordinator.acquire(ctx); err != nil {
		e.logger.Error("union coordinator unavailable", "device", name, "error", err)
		return "Could not lock union mountpoint.", false
	}
	defer e.coordinator.release()

	if outcome := e.runTool(ctx, e.tools.Unmount, "-l", e.layout.UnionMountPoint); outcome.Class != toolexec.Succeeded {
		e.logToolFailure("union detach failed", name, e.tools.Unmount, outcome)
		return subprocessDiagnostic(outcome.Class), false
	}

	layers := append([]string{e.layout.BaseDir}, e.registry.snapshot()...)
	if outcome := e.runTool(ctx, e.tools.Union, strings.Join(layers, ":"), e.layout.UnionMountPoint); outcome.Class != toolexec.Succeeded {
		e.logToolFailure("union mount failed", name, e.tools.Union, outcome)
		return subprocessDiagnostic(outcome.Class), false
	}

	e.coordinator.layers--
	if e.coordinator.layers != e.registry.mountedCount() {
		e.logger.Warn("layer counter diverged from registry",
			"layers", e.coordinator.layers, "mounted", e.registry.mountedCount())
	}
	return "", true
}

// unwind tears down the completed mount steps in reverse order.
// Teardown is best-effort: failures are logged and skipped so the
// remaining steps still run.
func (e *Engine) unwind(ctx context.Context, level progress, paths DevicePaths) {
	switch level {
	case transformMounted:
		if outcome := e.runTool(ctx, e.tools.Unmount, paths.Transform); outcome.Class != toolexec.Succeeded {
			e.logger.Warn("unwind: transform unmount failed", "path", paths.Transform, "error", outcome.Err)
		}
		fallthrough
	case archiveMounted:
		if outcome := e.runTool(ctx, e.tools.Unmount, paths.Archive); outcome.Class != toolexec.Succeeded {
			e.logger.Warn("unwind: archive unmount failed", "path", paths.Archive, "error", outcome.Err)
		}
		fallthrough
	case directoriesCreated:
		if err := inParallel(
			func() error { return os.Remove(paths.Transform) },
			func() error { return os.Remove(paths.Archive) },
		); err != nil {
			e.logger.Warn("unwind: removing mountpoints failed", "error", err)
		}
	}
}

// runTool invokes a tool with its positional arguments followed by the
// configured extras.
func (e *Engine) runTool(ctx context.Context, tool Tool, positional ...string) toolexec.Outcome {
	return e.runner.Run(ctx, tool.Path, append(positional, tool.ExtraArgs...)...)
}

func (e *Engine) logToolFailure(message, device string, tool Tool, outcome toolexec.Outcome) {
	e.logger.Error(message,
		"device", device,
		"tool", tool.Path,
		"class", outcome.Class.String(),
		"error", outcome.Err)
}

// subprocessDiagnostic maps a tool failure class to the fixed
// client-facing body of the 500 response.
func subprocessDiagnostic(class toolexec.Class) string {
	switch class {
	case toolexec.SpawnFailed:
		return "Could not spawn subprocess."
	case toolexec.WaitFailed:
		return "Could not read subprocess status."
	default:
		return "Subprocess exited with an unsuccessful status."
	}
}

// inParallel runs both functions concurrently and joins their errors.
func inParallel(first, second func() error) error {
	errs := make(chan error, 1)
	go func() { errs <- first() }()
	return errors.Join(second(), <-errs)
}
