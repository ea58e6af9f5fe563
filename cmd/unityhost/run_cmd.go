// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/subcommands"

	"github.com/esp32evse/unityhost/internal/command"
	"github.com/esp32evse/unityhost/internal/config"
	"github.com/esp32evse/unityhost/internal/logging"
	"github.com/esp32evse/unityhost/internal/run"
	"github.com/esp32evse/unityhost/testing"
)

const fullLogName = "full.txt" // file in the results dir containing full output

// runCmd implements subcommands.Command to support running tests.
type runCmd struct {
	cfg    *config.MutableConfig
	reg    *testing.Registry
	open   func(cfg *config.Config) run.Opener // can be replaced by tests
	stderr io.Writer
}

var _ = subcommands.Command(&runCmd{})

func newRunCmd(reg *testing.Registry) *runCmd {
	return &runCmd{
		cfg:    config.NewMutableConfig(config.RunTestsMode),
		reg:    reg,
		open:   run.DUTOpener,
		stderr: os.Stderr,
	}
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "run tests" }
func (*runCmd) Usage() string {
	return `Usage: run [flag]... <target> [pattern]...

Description:
    Runs host tests against the DUT at target. Exits with 0 only if every
    test that ran passed. Tests needing an input that was not given are
    skipped; pass -test-name to run unityapp.RunCase.

Target:
    /dev/ttyUSB0 or serial:///dev/ttyUSB0?baud=115200  local serial port
    tcp://host:port                                    raw TCP console
    ssh://user@host[:port]/dev/ttyUSB0                 serial port on a remote host
    docker://container                                 attach to a container
    exec:///path/to/qemu?arg=...                       spawn an emulator

    The target may instead come from -config or ` + config.TargetEnv + `.

Pattern:
    Patterns are globs matching test names, or attributes in parentheses.

        $ unityhost run /dev/ttyUSB0 'unityapp.*'
        $ unityhost run -test-name='Pilot error' /dev/ttyUSB0 unityapp.RunCase

Flag:
`
}

func (r *runCmd) SetFlags(f *flag.FlagSet) {
	r.cfg.SetFlags(f)
}

func (r *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	r.cfg.SetArgs(f.Args())
	if err := r.cfg.DeriveDefaults(); err != nil {
		return r.fail(command.NewStatusErrorf(int(subcommands.ExitUsageError), "Bad arguments: %v\n\n%s", err, r.Usage()))
	}
	cfg := r.cfg.Freeze()

	if err := os.MkdirAll(cfg.ResDir(), 0755); err != nil {
		return r.fail(err)
	}
	// Point "latest" at the new results if the default results dir is used.
	if cfg.ResDirIsDefault() {
		link := filepath.Join(filepath.Dir(cfg.ResDir()), "latest")
		os.Remove(link)
		if err := os.Symlink(filepath.Base(cfg.ResDir()), link); err != nil {
			logging.Info(ctx, "Failed to create results symlink: ", err)
		}
	}

	fullLog, err := os.Create(filepath.Join(cfg.ResDir(), fullLogName))
	if err != nil {
		return r.fail(err)
	}
	defer fullLog.Close()
	ctx = logging.AttachLogger(ctx, logging.NewSinkLogger(logging.LevelDebug, true, logging.NewFileSink(fullLog)))

	logging.Info(ctx, "Command line: ", strings.Join(os.Args, " "))
	if n := cfg.TestName(); n != nil {
		logging.Infof(ctx, "Binding test name %q", *n)
	}
	logging.Info(ctx, "Writing results to ", cfg.ResDir())

	results, err := run.Run(ctx, cfg, r.reg, r.open(cfg))
	if err != nil {
		return r.fail(err)
	}
	for _, res := range results {
		if res.Failed() {
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}

func (r *runCmd) fail(err error) subcommands.ExitStatus {
	return subcommands.ExitStatus(command.WriteError(r.stderr, err))
}
