// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command tree the mountbay binary dispatches
// through: named subcommands, lazily built pflag flag sets, and help
// output assembled from the tree itself.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command is one node in the CLI tree: a group (Subcommands set) or a
// leaf (Run set).
type Command struct {
	// Name is the subcommand name as typed by the user.
	Name string

	// Summary is the one-line description shown in the parent's
	// command listing.
	Summary string

	// Description is the longer help text shown by --help. Falls
	// back to Summary when empty.
	Description string

	// Usage overrides the synthesized usage line.
	Usage string

	// Examples are rendered at the end of the help output.
	Examples []Example

	// Flags builds the command's flag set. Nil means the command
	// takes no flags.
	Flags func() *pflag.FlagSet

	// Subcommands are dispatched on the first positional argument.
	Subcommands []*Command

	// Run executes a leaf command with the positional arguments
	// remaining after flag parsing.
	Run func(args []string) error

	// parent is set during dispatch so help output can show the full
	// command path.
	parent *Command
}

// Example is one worked invocation shown in help output.
type Example struct {
	Description string
	Command     string
}

// Execute dispatches args against the tree rooted at c.
func (c *Command) Execute(args []string) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.PrintHelp(os.Stderr)
		return nil
	}

	if len(c.Subcommands) > 0 {
		if len(args) == 0 {
			c.PrintHelp(os.Stderr)
			return fmt.Errorf("subcommand required")
		}
		if !strings.HasPrefix(args[0], "-") {
			name := args[0]
			for _, sub := range c.Subcommands {
				if sub.Name == name {
					sub.parent = c
					return sub.Execute(args[1:])
				}
			}
			if suggestion := closestCommand(name, c.Subcommands); suggestion != "" {
				return fmt.Errorf("unknown command %q (did you mean %q?)\n\nRun '%s --help' for usage.",
					name, suggestion, c.fullName())
			}
			return fmt.Errorf("unknown command %q\n\nRun '%s --help' for usage.",
				name, c.fullName())
		}
		if c.Run == nil {
			c.PrintHelp(os.Stderr)
			return fmt.Errorf("subcommand required (got flag %q)", args[0])
		}
	}

	if c.Flags != nil {
		flagSet := c.Flags()
		// The flag set's own output is suppressed; errors come back
		// through the return value and are formatted here with a
		// pointer to --help.
		flagSet.SetOutput(io.Discard)
		if err := flagSet.Parse(args); err != nil {
			if err == pflag.ErrHelp {
				c.PrintHelp(os.Stderr)
				return nil
			}
			return fmt.Errorf("%s\n\nRun '%s --help' for usage.", err, c.fullName())
		}
		args = flagSet.Args()
	}

	if c.Run != nil {
		return c.Run(args)
	}

	c.PrintHelp(os.Stderr)
	return fmt.Errorf("no action defined for %q", c.fullName())
}

// PrintHelp writes the command's help text to w.
func (c *Command) PrintHelp(w io.Writer) {
	name := c.fullName()

	if c.Description != "" {
		fmt.Fprintf(w, "%s\n\n", c.Description)
	} else if c.Summary != "" {
		fmt.Fprintf(w, "%s\n\n", c.Summary)
	}

	if c.Usage != "" {
		fmt.Fprintf(w, "Usage:\n  %s\n", c.Usage)
	} else if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "Usage:\n  %s <command> [flags]\n", name)
	} else {
		fmt.Fprintf(w, "Usage:\n  %s [flags]\n", name)
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nCommands:\n")
		tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, sub := range c.Subcommands {
			fmt.Fprintf(tw, "  %s\t%s\n", sub.Name, sub.Summary)
		}
		tw.Flush()
	}

	if c.Flags != nil {
		flagSet := c.Flags()
		var flagHelp strings.Builder
		flagSet.SetOutput(&flagHelp)
		flagSet.PrintDefaults()
		if flagHelp.Len() > 0 {
			fmt.Fprintf(w, "\nFlags:\n%s", flagHelp.String())
		}
	}

	if len(c.Examples) > 0 {
		fmt.Fprintf(w, "\nExamples:\n")
		for _, example := range c.Examples {
			if example.Description != "" {
				fmt.Fprintf(w, "  # %s\n", example.Description)
			}
			fmt.Fprintf(w, "  %s\n", example.Command)
		}
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nRun '%s <command> --help' for more information on a command.\n", name)
	}
}

// fullName returns the command path from the root, e.g. "mountbay
// journal".
func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

func isHelpFlag(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "help"
}
