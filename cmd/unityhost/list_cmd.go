// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"github.com/esp32evse/unityhost/internal/command"
	"github.com/esp32evse/unityhost/internal/config"
	"github.com/esp32evse/unityhost/internal/run"
	"github.com/esp32evse/unityhost/testing"
)

// listCmd implements subcommands.Command to support listing tests.
type listCmd struct {
	json   bool // marshal tests to JSON instead of just printing names
	cfg    *config.MutableConfig
	reg    *testing.Registry
	stdout io.Writer
	stderr io.Writer
}

var _ = subcommands.Command(&listCmd{})

// newListCmd returns a new listCmd that will write tests to stdout.
func newListCmd(stdout io.Writer, reg *testing.Registry) *listCmd {
	return &listCmd{
		cfg:    config.NewMutableConfig(config.ListTestsMode),
		reg:    reg,
		stdout: stdout,
		stderr: os.Stderr,
	}
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list tests" }
func (*listCmd) Usage() string {
	return `Usage: list [flag]... [pattern]...

Description:
    Lists registered tests matched by zero or more patterns.

Flag:
`
}

func (lc *listCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&lc.json, "json", false, "print full test details as JSON")
	lc.cfg.SetFlags(f)
}

func (lc *listCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	lc.cfg.SetArgs(f.Args())
	if err := lc.cfg.DeriveDefaults(); err != nil {
		return subcommands.ExitStatus(command.WriteError(lc.stderr,
			command.NewStatusErrorf(int(subcommands.ExitUsageError), "Bad arguments: %v", err)))
	}
	tests, err := run.ListTests(lc.cfg.Freeze(), lc.reg)
	if err != nil {
		return subcommands.ExitStatus(command.WriteError(lc.stderr, err))
	}
	if err := lc.printTests(tests); err != nil {
		return subcommands.ExitStatus(command.WriteError(lc.stderr, err))
	}
	return subcommands.ExitSuccess
}

// printTests writes the supplied tests to lc.stdout.
func (lc *listCmd) printTests(tests []*run.Test) error {
	if lc.json {
		enc := json.NewEncoder(lc.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tests)
	}
	for _, t := range tests {
		if _, err := fmt.Fprintln(lc.stdout, t.Name); err != nil {
			return err
		}
	}
	return nil
}
