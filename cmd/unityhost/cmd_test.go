// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	gotesting "testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/subcommands"

	"github.com/esp32evse/unityhost/dut"
	"github.com/esp32evse/unityhost/internal/config"
	"github.com/esp32evse/unityhost/internal/run"
	"github.com/esp32evse/unityhost/testing"
	"github.com/esp32evse/unityhost/testutil"
)

// scriptTransport plays back canned DUT output and discards console input.
type scriptTransport struct {
	io.Reader
}

func (scriptTransport) Write(p []byte) (int, error) { return len(p), nil }
func (scriptTransport) Close() error                { return nil }
func (scriptTransport) String() string              { return "fake://dut" }

// clearEnv hides unityhost variables and any .env in the working directory,
// and returns an -env flag naming an empty env file.
func clearEnv(t *gotesting.T) string {
	for _, k := range []string{config.TargetEnv, config.TestNameEnv, config.ResDirEnv} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	dir := testutil.TempDir(t)
	if err := testutil.WriteFiles(dir, map[string]string{"empty.env": ""}); err != nil {
		t.Fatal(err)
	}
	return "-env=" + filepath.Join(dir, "empty.env")
}

// newTestRunCmd returns a run command whose DUT prints output. opens counts
// the times the DUT was opened.
func newTestRunCmd(opens *int, output ...string) *runCmd {
	cmd := newRunCmd(testing.GlobalRegistry())
	cmd.stderr = io.Discard
	cmd.open = func(*config.Config) run.Opener {
		return func(ctx context.Context, rawLog io.Writer) (*dut.Session, error) {
			*opens++
			tr := scriptTransport{strings.NewReader(strings.Join(output, "\n") + "\n")}
			return dut.NewSession(ctx, tr, dut.WithRawLog(rawLog)), nil
		}
	}
	return cmd
}

func executeCmd(t *gotesting.T, cmd subcommands.Command, args []string) subcommands.ExitStatus {
	t.Helper()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	cmd.SetFlags(flags)
	if err := flags.Parse(args); err != nil {
		t.Fatal(err)
	}
	return cmd.Execute(context.Background(), flags)
}

// executeRunCmd runs the run command with args against a DUT printing
// output. It returns the exit status, the results dir and the number of
// times the DUT was opened.
func executeRunCmd(t *gotesting.T, args []string, output ...string) (status subcommands.ExitStatus, resDir string, opens int) {
	t.Helper()
	resDir = testutil.TempDir(t)
	cmd := newTestRunCmd(&opens, output...)
	status = executeCmd(t, cmd, append([]string{clearEnv(t), "-resultsdir=" + resDir}, args...))
	return status, resDir, opens
}

func TestRunCmd(t *gotesting.T) {
	pass := []string{"1 Tests 0 Failures 0 Ignored", "OK"}
	fail := []string{"main/test_evse.c:88:Pilot error:FAIL: Expected 4 Was 0", "1 Tests 1 Failures 0 Ignored", "FAIL"}
	menu := "Press ENTER to see the list of tests."

	for _, tc := range []struct {
		name   string
		args   []string
		output []string
		want   subcommands.ExitStatus
		opens  int
	}{
		{"pass", []string{"tcp://bench:4001", "unityapp.RunAll"}, pass, subcommands.ExitSuccess, 1},
		{"fail", []string{"tcp://bench:4001", "unityapp.RunAll"}, fail, subcommands.ExitFailure, 1},
		{"case skipped", []string{"tcp://bench:4001", "unityapp.RunCase"}, nil, subcommands.ExitSuccess, 0},
		{"case", []string{"-test-name=Pilot error", "tcp://bench:4001", "unityapp.RunCase"}, append([]string{menu}, pass...), subcommands.ExitSuccess, 1},
		{"no target", nil, nil, subcommands.ExitUsageError, 0},
		{"bad target", []string{"ftp://bench"}, nil, subcommands.ExitUsageError, 0},
		{"no match", []string{"tcp://bench:4001", "power.*"}, nil, subcommands.ExitFailure, 0},
	} {
		t.Run(tc.name, func(t *gotesting.T) {
			status, resDir, opens := executeRunCmd(t, tc.args, tc.output...)
			if status != tc.want {
				t.Errorf("Execute(%q) = %v; want %v", tc.args, status, tc.want)
			}
			if opens != tc.opens {
				t.Errorf("DUT opened %d time(s); want %d", opens, tc.opens)
			}
			if tc.want == subcommands.ExitUsageError {
				return
			}
			if _, err := os.Stat(filepath.Join(resDir, fullLogName)); err != nil {
				t.Error("Full log not written: ", err)
			}
		})
	}
}

func TestRunCmdResults(t *gotesting.T) {
	status, resDir, _ := executeRunCmd(t, []string{"tcp://bench:4001"}, "3 Tests 0 Failures 0 Ignored", "OK")
	if status != subcommands.ExitSuccess {
		t.Fatalf("Execute = %v; want %v", status, subcommands.ExitSuccess)
	}
	b, err := os.ReadFile(filepath.Join(resDir, run.ResultsFilename))
	if err != nil {
		t.Fatal(err)
	}
	var results []*run.Result
	if err := json.Unmarshal(b, &results); err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, r := range results {
		got = append(got, r.Name+" "+r.SkipReason)
	}
	want := []string{"unityapp.RunAll ", `unityapp.RunCase missing input "test_name"`}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Results mismatch (-got +want):\n%s", diff)
	}
}

func TestRunCmdLatestLink(t *gotesting.T) {
	pass := []string{"1 Tests 0 Failures 0 Ignored", "OK"}

	t.Run("default results dir", func(t *gotesting.T) {
		var opens int
		cmd := newTestRunCmd(&opens, pass...)
		cacheDir := testutil.TempDir(t)
		cmd.cfg.CacheDir = cacheDir
		if status := executeCmd(t, cmd, []string{clearEnv(t), "tcp://bench:4001", "unityapp.RunAll"}); status != subcommands.ExitSuccess {
			t.Fatalf("Execute = %v; want %v", status, subcommands.ExitSuccess)
		}
		link := filepath.Join(cacheDir, "results", "latest")
		dst, err := os.Readlink(link)
		if err != nil {
			t.Fatal("latest link not created: ", err)
		}
		if _, err := os.Stat(filepath.Join(cacheDir, "results", dst, fullLogName)); err != nil {
			t.Errorf("latest points at %q without a full log: %v", dst, err)
		}
	})

	t.Run("results dir from environment", func(t *gotesting.T) {
		var opens int
		cmd := newTestRunCmd(&opens, pass...)
		envFlag := clearEnv(t)
		parent := testutil.TempDir(t)
		if err := testutil.WriteFiles(parent, map[string]string{"latest": "keep me"}); err != nil {
			t.Fatal(err)
		}
		t.Setenv(config.ResDirEnv, filepath.Join(parent, "myrun"))

		if status := executeCmd(t, cmd, []string{envFlag, "tcp://bench:4001", "unityapp.RunAll"}); status != subcommands.ExitSuccess {
			t.Fatalf("Execute = %v; want %v", status, subcommands.ExitSuccess)
		}
		if _, err := os.Stat(filepath.Join(parent, "myrun", fullLogName)); err != nil {
			t.Error("Full log not written to the results dir from the environment: ", err)
		}
		b, err := os.ReadFile(filepath.Join(parent, "latest"))
		if err != nil {
			t.Fatal(err)
		}
		if fi, err := os.Lstat(filepath.Join(parent, "latest")); err != nil || fi.Mode()&os.ModeSymlink != 0 || string(b) != "keep me" {
			t.Errorf("Sibling latest file was replaced (content %q, err %v)", b, err)
		}
	})
}

func executeListCmd(t *gotesting.T, stdout io.Writer, args []string) subcommands.ExitStatus {
	t.Helper()
	cmd := newListCmd(stdout, testing.GlobalRegistry())
	cmd.stderr = io.Discard
	return executeCmd(t, cmd, append([]string{clearEnv(t)}, args...))
}

func TestListCmd(t *gotesting.T) {
	var stdout bytes.Buffer
	if status := executeListCmd(t, &stdout, nil); status != subcommands.ExitSuccess {
		t.Fatalf("Execute = %v; want %v", status, subcommands.ExitSuccess)
	}
	if exp := "unityapp.RunAll\nunityapp.RunCase\n"; stdout.String() != exp {
		t.Errorf("Execute printed %q; want %q", stdout.String(), exp)
	}

	stdout.Reset()
	if status := executeListCmd(t, &stdout, []string{"-json", "*.RunCase"}); status != subcommands.ExitSuccess {
		t.Fatalf("Execute = %v; want %v", status, subcommands.ExitSuccess)
	}
	var tests []*run.Test
	if err := json.Unmarshal(stdout.Bytes(), &tests); err != nil {
		t.Fatalf("Bad JSON output %q: %v", stdout.String(), err)
	}
	if len(tests) != 1 || tests[0].Name != "unityapp.RunCase" || tests[0].Desc == "" {
		t.Errorf("Execute printed %+v; want unityapp.RunCase with its description", tests)
	}

	if status := executeListCmd(t, io.Discard, []string{"["}); status == subcommands.ExitSuccess {
		t.Error("Execute succeeded with a bad pattern")
	}
}
