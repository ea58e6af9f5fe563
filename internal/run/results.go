// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package run

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	_go "go.chromium.org/chromiumos/config/go"
	"go.chromium.org/chromiumos/config/go/test/api"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/esp32evse/unityhost/errors"
	"github.com/esp32evse/unityhost/internal/logging"
	"github.com/esp32evse/unityhost/testing"
)

const (
	// ResultsFilename is the JSON array of Result objects in the results dir.
	ResultsFilename = "results.json"
	// CFTResultsFilename holds one protojson api.TestCaseResult per line.
	CFTResultsFilename = "test_case_results.jsonl"
	// DUTLogFilename holds everything the DUT printed during the run.
	DUTLogFilename = "dut.log"
	// TestLogFilename is the per-test log in each test's output dir.
	TestLogFilename = "log.txt"

	testsSubdir = "tests"
)

// Test describes the test a Result belongs to.
type Test struct {
	Name     string            `json:"name"`
	Pkg      string            `json:"pkg"`
	Desc     string            `json:"desc"`
	Contacts []string          `json:"contacts"`
	Attr     []string          `json:"attr"`
	Inputs   map[string]string `json:"inputs,omitempty"`
	Timeout  time.Duration     `json:"timeout"`
}

// Error describes an error encountered while running a test.
type Error struct {
	Time   time.Time `json:"time"`
	Reason string    `json:"reason"`
	File   string    `json:"file"`
	Line   int       `json:"line"`
	Stack  string    `json:"stack"`
}

// Result represents the result of a single test instance.
type Result struct {
	Test

	// Errors is empty if the test passed.
	Errors []Error `json:"errors"`

	Start time.Time `json:"start"`

	// End is zero if the test did not complete.
	End time.Time `json:"end"`

	OutDir string `json:"outDir"`

	// SkipReason is non-empty if the test did not run.
	SkipReason string `json:"skipReason"`
}

// NewTest describes ti for listings and results.
func NewTest(ti *testing.TestInstance) *Test {
	return &Test{
		Name:     ti.Name,
		Pkg:      ti.Pkg,
		Desc:     ti.Desc,
		Contacts: ti.Contacts,
		Attr:     ti.Attr,
		Timeout:  ti.Timeout,
	}
}

func newResult(inst *testing.Instance) *Result {
	t := NewTest(inst.Test)
	t.Name = inst.ID
	if len(inst.Inputs) > 0 {
		t.Inputs = make(map[string]string, len(inst.Inputs))
		for in, v := range inst.Inputs {
			t.Inputs[string(in)] = v
		}
	}
	return &Result{Test: *t}
}

// Failed reports whether the test ran and reported errors.
func (r *Result) Failed() bool {
	return len(r.Errors) > 0
}

// testOutDir returns the output directory for the test with id under resDir.
func testOutDir(resDir, id string) string {
	return filepath.Join(resDir, testsSubdir, sanitizeID(id))
}

// sanitizeID makes an instance ID usable as a single path component.
func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', ':', '"', '\'':
			return '_'
		}
		return r
	}, id)
}

// WriteResults writes results to ResultsFilename and CFTResultsFilename in
// resDir.
func WriteResults(resDir string, results []*Result) error {
	f, err := os.Create(filepath.Join(resDir, ResultsFilename))
	if err != nil {
		return errors.Wrap(err, "failed to create results file")
	}
	defer f.Close()

	if results == nil {
		results = []*Result{}
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return errors.Wrap(err, "failed to write results")
	}
	if err := f.Close(); err != nil {
		return err
	}
	return writeCFTResults(filepath.Join(resDir, CFTResultsFilename), results)
}

// CFTResult converts r to a test case result for CFT test services.
// Skipped tests are reported as errors, as they did not produce a verdict.
func CFTResult(r *Result) *api.TestCaseResult {
	tcr := &api.TestCaseResult{
		TestCaseId: &api.TestCase_Id{Value: r.Name},
		Verdict:    &api.TestCaseResult_Pass_{Pass: &api.TestCaseResult_Pass{}},
	}
	if r.OutDir != "" {
		tcr.ResultDirPath = &_go.StoragePath{HostType: _go.StoragePath_LOCAL, Path: r.OutDir}
	}
	if r.Failed() {
		tcr.Verdict = &api.TestCaseResult_Fail_{Fail: &api.TestCaseResult_Fail{}}
	} else if r.SkipReason != "" {
		tcr.Verdict = &api.TestCaseResult_Error_{Error: &api.TestCaseResult_Error{}}
	}
	return tcr
}

func writeCFTResults(path string, results []*Result) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create CFT results file")
	}
	defer f.Close()

	for _, r := range results {
		b, err := protojson.Marshal(CFTResult(r))
		if err != nil {
			return errors.Wrapf(err, "failed to marshal result of %s", r.Name)
		}
		if _, err := f.Write(append(b, '\n')); err != nil {
			return errors.Wrap(err, "failed to write CFT results")
		}
	}
	return f.Close()
}

var (
	passColor = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	skipColor = color.New(color.FgYellow)
)

// WriteResultsToLogs writes a summary of results to the console via ctx.
// complete is false if the run was aborted before all tests ran.
func WriteResultsToLogs(ctx context.Context, results []*Result, resDir string, complete bool) {
	ml := 0
	for _, res := range results {
		if len(res.Name) > ml {
			ml = len(res.Name)
		}
	}

	sep := strings.Repeat("-", 80)
	logging.Info(ctx, sep)

	failLabel := failColor.Sprint("[ FAIL ]")
	var passed, failed, skipped int
	for _, res := range results {
		pn := fmt.Sprintf("%-"+strconv.Itoa(ml)+"s  ", res.Name)
		switch {
		case res.Failed():
			failed++
			for i, e := range res.Errors {
				if i == 0 {
					logging.Info(ctx, pn+failLabel+" "+e.Reason)
				} else {
					logging.Info(ctx, strings.Repeat(" ", len(pn)+len("[ FAIL ] "))+e.Reason)
				}
			}
		case res.SkipReason != "":
			skipped++
			logging.Info(ctx, pn+skipColor.Sprint("[ SKIP ]")+" "+res.SkipReason)
		default:
			passed++
			logging.Info(ctx, pn+passColor.Sprint("[ PASS ]"))
		}
	}

	if !complete {
		logging.Info(ctx, "")
		logging.Info(ctx, "Run did not finish successfully; results are incomplete")
	}

	logging.Info(ctx, sep)
	logging.Infof(ctx, "%d passed, %d failed, %d skipped", passed, failed, skipped)
	logging.Info(ctx, "Results saved to ", resDir)
}
