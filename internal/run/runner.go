// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package run selects, runs and reports host tests against a DUT.
package run

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/esp32evse/unityhost/dut"
	"github.com/esp32evse/unityhost/errors"
	"github.com/esp32evse/unityhost/internal/config"
	"github.com/esp32evse/unityhost/internal/logging"
	"github.com/esp32evse/unityhost/testing"
)

// Opener connects to the DUT. Every line the DUT prints is copied to rawLog.
type Opener func(ctx context.Context, rawLog io.Writer) (*dut.Session, error)

// DUTOpener returns an Opener that dials the target in cfg.
func DUTOpener(cfg *config.Config) Opener {
	return func(ctx context.Context, rawLog io.Writer) (*dut.Session, error) {
		t, err := dut.ParseTarget(cfg.Target())
		if err != nil {
			return nil, err
		}
		return dut.Open(ctx, t, cfg.DialOptions(), dut.WithRawLog(rawLog))
	}
}

// ListTests returns the tests in reg matched by cfg's patterns.
func ListTests(cfg *config.Config, reg *testing.Registry) ([]*Test, error) {
	tis, err := selectTests(cfg, reg)
	if err != nil {
		return nil, err
	}
	tests := make([]*Test, len(tis))
	for i, ti := range tis {
		tests[i] = NewTest(ti)
	}
	return tests, nil
}

func selectTests(cfg *config.Config, reg *testing.Registry) ([]*testing.TestInstance, error) {
	if err := reg.Errors(); err != nil {
		return nil, errors.Wrap(err, "bad test registrations")
	}
	m, err := testing.NewMatcher(cfg.Patterns())
	if err != nil {
		return nil, err
	}
	tis := reg.SelectTests(m)
	if len(tis) == 0 {
		return nil, errors.Errorf("no tests matched by %q", cfg.Patterns())
	}
	return tis, nil
}

// Run runs the tests in reg matched by cfg against the DUT returned by open,
// one at a time, and writes their results to cfg.ResDir().
//
// A configured test name is bound to every test declaring the test_name
// input before tests are expanded into instances. Instances left with
// unbound inputs are skipped. The DUT is opened only if some instance runs.
//
// Test failures are reported through the returned results. An error is
// returned if the run could not be set up or did not complete.
func Run(ctx context.Context, cfg *config.Config, reg *testing.Registry, open Opener) (results []*Result, retErr error) {
	tis, err := selectTests(cfg, reg)
	if err != nil {
		return nil, err
	}
	cases := testing.NewCases(tis)
	if err := testing.ParametrizeTestName(cases, cfg.TestName()); err != nil {
		return nil, err
	}
	insts := testing.ExpandAll(cases)

	resDir := cfg.ResDir()
	if err := os.MkdirAll(resDir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create results dir")
	}

	complete := false
	defer func() {
		if err := WriteResults(resDir, results); err != nil && retErr == nil {
			retErr = err
		}
		WriteResultsToLogs(ctx, results, resDir, complete)
	}()

	var sess *dut.Session
	if anyRunnable(insts) {
		f, err := os.Create(filepath.Join(resDir, DUTLogFilename))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create DUT log")
		}
		defer f.Close()

		logging.Infof(ctx, "Connecting to %s", cfg.Target())
		sess, err = open(ctx, f)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to DUT")
		}
		defer func() {
			if err := sess.Close(); err != nil {
				logging.Infof(ctx, "Failed to close DUT session: %v", err)
			}
		}()

		if cfg.Reset() {
			if err := sess.HardReset(ctx); err != nil {
				return nil, err
			}
		}
	}

	for _, inst := range insts {
		if err := ctx.Err(); err != nil {
			return results, errors.Wrap(err, "run aborted")
		}
		res, err := runTest(ctx, cfg, inst, sess)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	complete = true
	return results, nil
}

func anyRunnable(insts []*testing.Instance) bool {
	for _, inst := range insts {
		if len(inst.Missing) == 0 {
			return true
		}
	}
	return false
}

// runTest runs inst and returns its result. An error is returned only if the
// test had to be abandoned, which leaves the DUT in an unknown state.
func runTest(ctx context.Context, cfg *config.Config, inst *testing.Instance, sess *dut.Session) (*Result, error) {
	res := newResult(inst)
	if reason := inst.SkipReason(); reason != "" {
		res.SkipReason = reason
		logging.Infof(ctx, "Skipping %s: %s", inst.ID, reason)
		return res, nil
	}

	res.OutDir = testOutDir(cfg.ResDir(), inst.ID)
	res.Start = time.Now()
	if err := os.MkdirAll(res.OutDir, 0755); err != nil {
		err = errors.Wrapf(err, "failed to create output dir for %s", inst.ID)
		res.Errors = []Error{{Time: time.Now(), Reason: err.Error()}}
		return res, err
	}
	lf, err := os.Create(filepath.Join(res.OutDir, TestLogFilename))
	if err != nil {
		err = errors.Wrapf(err, "failed to create log for %s", inst.ID)
		res.Errors = []Error{{Time: time.Now(), Reason: err.Error()}}
		return res, err
	}
	defer lf.Close()
	ctx = logging.AttachLogger(ctx, logging.NewSinkLogger(logging.LevelDebug, true, logging.NewFileSink(lf)))

	timeout := inst.Test.Timeout
	if cfg.TestTimeout() > 0 {
		timeout = cfg.TestTimeout()
	}

	out := newTestOutput(ctx)
	s := testing.NewState(inst, &testing.RuntimeConfig{
		DUT:           sess,
		OutDir:        res.OutDir,
		ExpectTimeout: cfg.ExpectTimeout(),
	}, out)

	logging.Infof(ctx, "Started test %s", inst.ID)
	callErr := safeCall(ctx, inst.ID, timeout, defaultGracePeriod, errorOnPanic(s), func(ctx context.Context) {
		inst.Test.Func(ctx, s)
	})
	if callErr != nil {
		out.Error(&testing.Error{Reason: "Test did not finish: " + callErr.Error()})
	} else {
		res.End = time.Now()
	}
	res.Errors = out.errors()
	logging.Infof(ctx, "Completed test %s in %v with %d error(s)",
		inst.ID, time.Since(res.Start).Round(time.Millisecond), len(res.Errors))

	if callErr != nil {
		return res, errors.Wrapf(callErr, "abandoned %s", inst.ID)
	}
	return res, nil
}
