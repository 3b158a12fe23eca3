// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

// Mountbay is the operator CLI for the mount daemon. Mount and umount
// go through the daemon's HTTP API; everything else reads the control
// socket.
package main

import (
	"fmt"
	"os"

	"github.com/mountbay/mountbay/cmd/mountbay/cli"
	"github.com/mountbay/mountbay/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	root := &cli.Command{
		Name: "mountbay",
		Description: `Mountbay: archive mount orchestration.

Pull archive devices into the merged document tree the webserver
serves, drop them out again, and inspect what the daemon is doing.`,
		Subcommands: []*cli.Command{
			mountCommand(),
			umountCommand(),
			statusCommand(),
			mountsCommand(),
			journalCommand(),
			watchCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func([]string) error {
					fmt.Printf("mountbay %s\n", version.Info())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Mount the sdb device into the union view",
				Command:     "mountbay mount sdb",
			},
			{
				Description: "See what is mounted right now",
				Command:     "mountbay mounts",
			},
			{
				Description: "Watch mounts and pipeline events live",
				Command:     "mountbay watch",
			},
			{
				Description: "Export the mount journal, compressed",
				Command:     "mountbay journal --export events.ndjson.zst --compress zstd",
			},
		},
	}
	return root.Execute(os.Args[1:])
}
