// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

// Mountbay-daemon is the mount orchestration daemon. It owns the
// single merged document tree that the webserver exposes: clients ask
// it (over a small HTTP API) to pull an archive device into the view
// or drop one out, and it shells out to the FUSE tool stack to make
// that happen.
//
// On startup:
//  1. Loads the YAML config (--config flag or MOUNTBAY_CONFIG).
//  2. Resolves the four mount tool binaries and fingerprints each one.
//  3. Opens the SQLite mount journal.
//  4. Serves the HTTP mount API and the CBOR control socket.
//  5. Prunes journal entries past the retention window on a timer.
//
// A missing tool binary fails startup. Refusing to serve beats
// answering every mount request with a spawn failure.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/mountbay/mountbay/journal"
	"github.com/mountbay/mountbay/lib/binhash"
	"github.com/mountbay/mountbay/lib/clock"
	"github.com/mountbay/mountbay/lib/config"
	"github.com/mountbay/mountbay/lib/service"
	"github.com/mountbay/mountbay/lib/toolexec"
	"github.com/mountbay/mountbay/lib/version"
	"github.com/mountbay/mountbay/mount"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("mountbay-daemon", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to mountbay.yaml (default: $MOUNTBAY_CONFIG)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Printf("mountbay-daemon %s\n", version.Info())
		return nil
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return fmt.Errorf("preparing directories: %w", err)
	}

	shutdownTimeout, err := cfg.ShutdownTimeout()
	if err != nil {
		return fmt.Errorf("listen.shutdown_timeout: %w", err)
	}
	retention, err := cfg.JournalRetention()
	if err != nil {
		return fmt.Errorf("journal.retention: %w", err)
	}

	tools, toolInfos, err := resolveTools(cfg, logger)
	if err != nil {
		return err
	}

	store, err := journal.Open(journal.Config{
		Path:     cfg.Journal.Path,
		PoolSize: cfg.Journal.PoolSize,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer store.Close()

	layout := mount.Layout{
		DeviceRoot:      cfg.Paths.DeviceRoot,
		ScratchRoot:     cfg.Paths.ScratchRoot,
		BaseDir:         cfg.Paths.BaseDir,
		UnionMountPoint: cfg.Paths.UnionMountPoint,
	}

	engine := mount.NewEngine(mount.Config{
		Layout:   layout,
		Tools:    tools,
		Runner:   toolexec.ExecRunner{},
		Logger:   logger,
		Observer: journalObserver(store, logger),
	})

	api := newMountAPI(engine, layout, logger)
	httpServer := service.NewHTTPServer(service.HTTPServerConfig{
		Address:         cfg.Listen.Address,
		Handler:         api.handler(),
		ShutdownTimeout: shutdownTimeout,
		Logger:          logger,
	})

	clk := clock.Real()
	control := &controlServer{
		engine:    engine,
		journal:   store,
		layout:    layout,
		tools:     toolInfos,
		clock:     clk,
		startedAt: clk.Now(),
		logger:    logger,
	}
	socketServer := service.NewSocketServer(cfg.Control.SocketPath, logger)
	control.registerActions(socketServer)

	prunerDone := make(chan struct{})
	defer func() { <-prunerDone }()
	go func() {
		defer close(prunerDone)
		pruneJournal(ctx, clk, store, retention, logger)
	}()

	serveErrors := make(chan error, 2)
	go func() { serveErrors <- httpServer.Serve(ctx) }()
	go func() { serveErrors <- socketServer.Serve(ctx) }()

	logger.Info("mountbay daemon running",
		"version", version.Short(),
		"http", cfg.Listen.Address,
		"control", cfg.Control.SocketPath,
		"union", cfg.Paths.UnionMountPoint,
	)

	var firstErr error
	for range 2 {
		if err := <-serveErrors; err != nil {
			if firstErr == nil {
				firstErr = err
			}
			// One server down means the daemon is down. Cancel the
			// context so the sibling drains and exits too.
			stop()
		}
	}

	logger.Info("mountbay daemon stopped")
	return firstErr
}

// loadConfig loads the YAML config from the --config flag, falling back
// to the MOUNTBAY_CONFIG environment variable.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

// resolveTools resolves the configured tool names to absolute paths,
// fingerprints each binary, and pairs it with the extra arguments from
// the tool options file.
func resolveTools(cfg *config.Config, logger *slog.Logger) (mount.Tools, []toolInfo, error) {
	options, err := config.LoadToolOptions(cfg.Tools.OptionsFile)
	if err != nil {
		return mount.Tools{}, nil, err
	}

	var tools mount.Tools
	infos := make([]toolInfo, 0, 4)

	for _, spec := range []struct {
		name       string
		configured string
		extras     []string
		target     *mount.Tool
	}{
		{"archive", cfg.Tools.Archive, options.Archive, &tools.Archive},
		{"transform", cfg.Tools.Transform, options.Transform, &tools.Transform},
		{"union", cfg.Tools.Union, options.Union, &tools.Union},
		{"unmount", cfg.Tools.Unmount, options.Unmount, &tools.Unmount},
	} {
		path, err := cfg.BinaryPath(spec.configured)
		if err != nil {
			return mount.Tools{}, nil, fmt.Errorf("resolving %s tool: %w", spec.name, err)
		}
		digest, err := binhash.HashFile(path)
		if err != nil {
			return mount.Tools{}, nil, fmt.Errorf("fingerprinting %s tool: %w", spec.name, err)
		}
		fingerprint := "blake3:" + binhash.FormatDigest(digest)

		*spec.target = mount.Tool{Path: path, ExtraArgs: spec.extras}
		infos = append(infos, toolInfo{
			Name:   spec.name,
			Path:   path,
			Digest: fingerprint,
		})
		logger.Info("mount tool verified",
			"tool", spec.name,
			"path", path,
			"digest", fingerprint,
		)
	}

	return tools, infos, nil
}

// journalWriteTimeout bounds the synchronous journal insert performed
// after each pipeline. A stalled database must not wedge mount requests.
const journalWriteTimeout = 5 * time.Second

// journalObserver returns the engine observer that persists every
// completed pipeline to the journal.
func journalObserver(store *journal.Journal, logger *slog.Logger) func(mount.Event) {
	return func(event mount.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
		defer cancel()
		if err := store.Record(ctx, event); err != nil {
			logger.Warn("journal write failed",
				"op", event.Op,
				"device", event.Device,
				"error", err,
			)
		}
	}
}

// journalPruneInterval is how often expired journal entries are swept.
// Retention windows are hours to days, so hourly sweeps keep the table
// near its steady-state size.
const journalPruneInterval = time.Hour

// pruneJournal removes journal entries older than the retention window
// on a fixed schedule, plus once at startup to clear any backlog left
// by downtime. Runs until ctx is cancelled.
func pruneJournal(ctx context.Context, clk clock.Clock, store *journal.Journal, retention time.Duration, logger *slog.Logger) {
	prune := func() {
		cutoff := clk.Now().Add(-retention)
		if _, err := store.Prune(ctx, cutoff); err != nil && ctx.Err() == nil {
			logger.Warn("journal prune failed", "error", err)
		}
	}

	prune()

	ticker := clk.NewTicker(journalPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
