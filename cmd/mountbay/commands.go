// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/mountbay/mountbay/cmd/mountbay/cli"
	"github.com/mountbay/mountbay/journal"
	"github.com/mountbay/mountbay/lib/service"
	"github.com/mountbay/mountbay/lib/watchui"
)

func mountCommand() *cli.Command {
	var address string
	return &cli.Command{
		Name:    "mount",
		Summary: "Mount a device into the union view",
		Description: `Ask the daemon to mount a device: the archive is exposed as a
filesystem, transformed, and joined into the union view. Prints the
daemon's diagnostic and exits non-zero when the pipeline failed.`,
		Usage: "mountbay mount <device> [flags]",
		Flags: addressFlags("mount", &address),
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one device name\n\nRun 'mountbay mount --help' for usage.")
			}
			return runPipeline("mount", address, args[0])
		},
	}
}

func umountCommand() *cli.Command {
	var address string
	return &cli.Command{
		Name:    "umount",
		Summary: "Unmount a device from the union view",
		Description: `Ask the daemon to unmount a device: it is dropped from the union
view and its mounts are detached. Prints the daemon's diagnostic and
exits non-zero when the pipeline failed.`,
		Usage: "mountbay umount <device> [flags]",
		Flags: addressFlags("umount", &address),
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one device name\n\nRun 'mountbay umount --help' for usage.")
			}
			return runPipeline("umount", address, args[0])
		},
	}
}

func addressFlags(name string, address *string) func() *pflag.FlagSet {
	return func() *pflag.FlagSet {
		flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
		flagSet.StringVar(address, "address", "", "daemon HTTP address (host:port)")
		return flagSet
	}
}

func runPipeline(op, address, device string) error {
	conn := resolveConnection(address, "")
	ctx, cancel := context.WithTimeout(context.Background(), pipelineTimeout)
	defer cancel()

	status, body, err := conn.callPipeline(ctx, op, device)
	if err != nil {
		return err
	}
	fmt.Println(body)
	if status >= 300 {
		return fmt.Errorf("%s %s failed with status %d", op, device, status)
	}
	return nil
}

// callControl performs one request-response cycle on the control
// socket.
func callControl(socketPath, action string, fields map[string]any, result any) error {
	conn := resolveConnection("", socketPath)
	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	defer cancel()
	return service.NewServiceClient(conn.socketPath).Call(ctx, action, fields, result)
}

func statusCommand() *cli.Command {
	var (
		socketPath string
		asJSON     bool
	)
	return &cli.Command{
		Name:    "status",
		Summary: "Show daemon status",
		Description: `Display daemon health: version, uptime, mount count, capacity of
the filesystems behind the union view and the scratch area, and the
fingerprints of the mount tools the daemon verified at startup.`,
		Usage: "mountbay status [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
			flagSet.StringVar(&socketPath, "socket", "", "daemon control socket path")
			flagSet.BoolVar(&asJSON, "json", false, "print machine-readable JSON")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("status takes no arguments")
			}

			var status statusResult
			if err := callControl(socketPath, "status", nil, &status); err != nil {
				return err
			}
			if asJSON {
				return printJSON(status)
			}

			fmt.Printf("Daemon:    mountbay %s\n", status.Version)
			fmt.Printf("Uptime:    %s\n", formatUptime(status.UptimeSeconds))
			fmt.Printf("Mounted:   %d\n", status.Mounted)
			printUsageLine("Union:", status.Union)
			printUsageLine("Scratch:", status.Scratch)

			fmt.Printf("\nTools\n")
			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			for _, tool := range status.Tools {
				fmt.Fprintf(tw, "  %s\t%s\t%s\n", tool.Name, tool.Path, tool.Digest)
			}
			tw.Flush()
			return nil
		},
	}
}

func printUsageLine(label string, usage usageResult) {
	if usage.TotalBytes == 0 {
		fmt.Printf("%-10s %s\n", label, usage.Path)
		return
	}
	fmt.Printf("%-10s %s (%s free of %s)\n",
		label, usage.Path, formatBytes(usage.FreeBytes), formatBytes(usage.TotalBytes))
}

func mountsCommand() *cli.Command {
	var (
		socketPath string
		asJSON     bool
	)
	return &cli.Command{
		Name:    "mounts",
		Summary: "List active mounts",
		Usage:   "mountbay mounts [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("mounts", pflag.ContinueOnError)
			flagSet.StringVar(&socketPath, "socket", "", "daemon control socket path")
			flagSet.BoolVar(&asJSON, "json", false, "print machine-readable JSON")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("mounts takes no arguments")
			}

			var mounts []mountResult
			if err := callControl(socketPath, "mounts", nil, &mounts); err != nil {
				return err
			}
			if asJSON {
				return printJSON(mounts)
			}
			if len(mounts) == 0 {
				fmt.Println("no devices mounted")
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintf(tw, "DEVICE\tCONTENT PATH\tMOUNTED\n")
			for _, mounted := range mounts {
				fmt.Fprintf(tw, "%s\t%s\t%s\n",
					mounted.Device, mounted.ContentPath, formatTimestamp(mounted.SinceUnixNS))
			}
			return tw.Flush()
		},
	}
}

func journalCommand() *cli.Command {
	var (
		socketPath   string
		limit        int
		exportPath   string
		compressName string
		asJSON       bool
	)
	return &cli.Command{
		Name:    "journal",
		Summary: "Show or export the mount journal",
		Description: `Query the daemon's persistent journal of completed pipelines,
newest first. With --export the entries are written to a file as
newline-delimited JSON, optionally compressed.`,
		Usage: "mountbay journal [flags]",
		Examples: []cli.Example{
			{
				Description: "Last hundred pipeline runs",
				Command:     "mountbay journal --limit 100",
			},
			{
				Description: "Export compressed for offline analysis",
				Command:     "mountbay journal --limit 10000 --export events.ndjson.zst --compress zstd",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("journal", pflag.ContinueOnError)
			flagSet.StringVar(&socketPath, "socket", "", "daemon control socket path")
			flagSet.IntVar(&limit, "limit", 50, "maximum entries to fetch")
			flagSet.StringVar(&exportPath, "export", "", "write entries to this file instead of printing")
			flagSet.StringVar(&compressName, "compress", "none", "export compression: zstd, lz4, or none")
			flagSet.BoolVar(&asJSON, "json", false, "print machine-readable JSON")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("journal takes no arguments")
			}
			if compressName != "none" && exportPath == "" {
				return fmt.Errorf("--compress only applies to --export")
			}

			var rows []journalResult
			if err := callControl(socketPath, "journal", map[string]any{"limit": limit}, &rows); err != nil {
				return err
			}
			if exportPath != "" {
				return exportJournal(exportPath, rows, compressName)
			}
			if asJSON {
				return printJSON(rows)
			}
			if len(rows) == 0 {
				fmt.Println("journal is empty")
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintf(tw, "TIME\tOP\tDEVICE\tSTATUS\tDURATION\tMESSAGE\n")
			for _, row := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
					formatTimestamp(row.AtUnixNS), row.Op, row.Device,
					row.Status, formatDuration(row.DurationNS), row.Message)
			}
			return tw.Flush()
		},
	}
}

// exportJournal writes rows to path as newline-delimited JSON through
// the named compression. The rows are converted back to journal
// entries so the file format is exactly what the journal package
// reads.
func exportJournal(path string, rows []journalResult, compressName string) error {
	compression, err := journal.ParseCompression(compressName)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	if err := journal.WriteExport(file, journalEntries(rows), compression); err != nil {
		file.Close()
		return fmt.Errorf("writing export: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing export file: %w", err)
	}

	fmt.Printf("exported %d entries to %s\n", len(rows), path)
	return nil
}

func journalEntries(rows []journalResult) []journal.Entry {
	entries := make([]journal.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, journal.Entry{
			ID:          row.ID,
			At:          time.Unix(0, row.AtUnixNS).UTC(),
			Op:          row.Op,
			Device:      row.Device,
			ContentPath: row.ContentPath,
			Status:      row.Status,
			Message:     row.Message,
			Duration:    time.Duration(row.DurationNS),
		})
	}
	return entries
}

// watchEventWindow is how many ring events each watch poll requests,
// more than a tall terminal shows at once.
const watchEventWindow = 50

func watchCommand() *cli.Command {
	var (
		socketPath string
		interval   time.Duration
	)
	return &cli.Command{
		Name:    "watch",
		Summary: "Live view of mounts and pipeline events",
		Description: `Full-screen live view: active mounts on top, recent pipeline
events below, refreshed on a fixed interval. Press q to quit, r to
refresh immediately.`,
		Usage: "mountbay watch [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("watch", pflag.ContinueOnError)
			flagSet.StringVar(&socketPath, "socket", "", "daemon control socket path")
			flagSet.DurationVar(&interval, "interval", watchui.DefaultInterval, "poll interval")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("watch takes no arguments")
			}
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return fmt.Errorf("watch needs a terminal; try 'mountbay mounts' for plain output")
			}

			conn := resolveConnection("", socketPath)
			client := service.NewServiceClient(conn.socketPath)
			model := watchui.New(watchFetch(client), interval)
			_, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
			return err
		},
	}
}

// watchFetch adapts the control socket to the watch model's Fetch:
// one mounts call plus one recent call per poll.
func watchFetch(client *service.ServiceClient) watchui.Fetch {
	return func(ctx context.Context) (watchui.Snapshot, error) {
		var mounts []mountResult
		if err := client.Call(ctx, "mounts", nil, &mounts); err != nil {
			return watchui.Snapshot{}, err
		}
		var events []eventResult
		if err := client.Call(ctx, "recent", map[string]any{"limit": watchEventWindow}, &events); err != nil {
			return watchui.Snapshot{}, err
		}

		snapshot := watchui.Snapshot{Taken: time.Now()}
		for _, mounted := range mounts {
			snapshot.Mounts = append(snapshot.Mounts, watchui.Mount{
				Device:      mounted.Device,
				ContentPath: mounted.ContentPath,
			})
		}
		for _, event := range events {
			snapshot.Events = append(snapshot.Events, watchui.Event{
				At:       time.Unix(0, event.AtUnixNS),
				Op:       event.Op,
				Device:   event.Device,
				Status:   event.Status,
				Message:  event.Message,
				Duration: time.Duration(event.DurationNS),
			})
		}
		return snapshot, nil
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
