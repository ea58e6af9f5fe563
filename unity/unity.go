// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package unity parses the text output of the Unity C unit test framework
// running on the DUT.
//
// A Unity run prints one line per test case, a separator, a summary and a
// verdict:
//
//	main/test_evse.c:23:Standard charging sequence:PASS
//	main/test_evse.c:88:Pilot error:FAIL: Expected 4 Was 0
//	-----------------------
//	2 Tests 1 Failures 0 Ignored
//	FAIL
package unity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// SummaryRE matches the summary line printed by UNITY_END.
	SummaryRE = regexp.MustCompile(`(\d+) Tests (\d+) Failures (\d+) Ignored`)

	// caseRE matches a per-case result line: file:line:name:STATUS[: message].
	caseRE = regexp.MustCompile(`^(.+?):(\d+):(.+):(PASS|FAIL|IGNORE)(?::\s?(.*))?$`)
)

// Verdict is the last line of a Unity run.
type Verdict string

const (
	// VerdictOK is printed when no test failed.
	VerdictOK Verdict = "OK"
	// VerdictFail is printed when at least one test failed.
	VerdictFail Verdict = "FAIL"
)

// Status is the outcome of a single Unity test case.
type Status string

// Statuses printed by Unity for a test case.
const (
	StatusPass   Status = "PASS"
	StatusFail   Status = "FAIL"
	StatusIgnore Status = "IGNORE"
)

// CaseResult is a single test case result line.
type CaseResult struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Report is the parsed outcome of a Unity run.
type Report struct {
	Tests    int           `json:"tests"`
	Failures int           `json:"failures"`
	Ignored  int           `json:"ignored"`
	Verdict  Verdict       `json:"verdict"`
	Cases    []*CaseResult `json:"cases,omitempty"`
}

// Passed reports whether the run finished with no failures.
func (r *Report) Passed() bool {
	return r.Failures == 0 && r.Verdict == VerdictOK
}

// FailedCases returns the cases reported as FAIL.
func (r *Report) FailedCases() []*CaseResult {
	var failed []*CaseResult
	for _, c := range r.Cases {
		if c.Status == StatusFail {
			failed = append(failed, c)
		}
	}
	return failed
}

// String returns the summary in Unity's own format, e.g. "2 Tests 1 Failures 0 Ignored FAIL".
func (r *Report) String() string {
	return fmt.Sprintf("%d Tests %d Failures %d Ignored %s", r.Tests, r.Failures, r.Ignored, r.Verdict)
}

// ParseSummary parses a summary line. ok is false if line contains no summary.
func ParseSummary(line string) (tests, failures, ignored int, ok bool) {
	m := SummaryRE.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, 0, false
	}
	// The regexp only admits digits; Atoi can only fail on overflow.
	tests, err1 := strconv.Atoi(m[1])
	failures, err2 := strconv.Atoi(m[2])
	ignored, err3 := strconv.Atoi(m[3])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, false
	}
	return tests, failures, ignored, true
}

// ParseCase parses a per-case result line. It returns nil if line is not one.
func ParseCase(line string) *CaseResult {
	m := caseRE.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return nil
	}
	return &CaseResult{
		File:    m[1],
		Line:    n,
		Name:    m[3],
		Status:  Status(m[4]),
		Message: m[5],
	}
}

// Parser consumes Unity output one line at a time.
type Parser struct {
	report     Report
	gotSummary bool
	done       bool
}

// Feed consumes one line and reports whether the run is complete, i.e. the
// verdict line following the summary has been seen. Lines fed after
// completion are ignored.
func (p *Parser) Feed(line string) (done bool) {
	if p.done {
		return true
	}
	line = strings.TrimSpace(line)
	if p.gotSummary {
		switch Verdict(line) {
		case VerdictOK, VerdictFail:
			p.report.Verdict = Verdict(line)
			p.done = true
		}
		return p.done
	}
	if tests, failures, ignored, ok := ParseSummary(line); ok {
		p.report.Tests, p.report.Failures, p.report.Ignored = tests, failures, ignored
		p.gotSummary = true
		return false
	}
	if c := ParseCase(line); c != nil {
		p.report.Cases = append(p.report.Cases, c)
	}
	return false
}

// GotSummary reports whether the summary line has been seen.
func (p *Parser) GotSummary() bool { return p.gotSummary }

// Report returns the report parsed so far. It is complete only after Feed
// returned true.
func (p *Parser) Report() *Report {
	r := p.report
	r.Cases = append([]*CaseResult(nil), p.report.Cases...)
	return &r
}
