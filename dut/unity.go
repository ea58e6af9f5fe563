// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package dut

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/esp32evse/unityhost/errors"
	"github.com/esp32evse/unityhost/internal/logging"
	"github.com/esp32evse/unityhost/unity"
)

// DefaultUnityTimeout is how long to wait for a Unity summary when the caller
// does not say otherwise. It covers a full run of the EVSE test app.
const DefaultUnityTimeout = 30 * time.Second

// menuPromptRE matches the prompts printed by the Unity interactive menu.
var menuPromptRE = regexp.MustCompile(`Press ENTER to see the list of tests|Enter test for running`)

// UnityOutputExpecter is a DUT session that can wait for Unity output.
type UnityOutputExpecter interface {
	// ExpectUnityTestOutput blocks until a complete Unity summary has been
	// read and returns it, whatever its verdict.
	ExpectUnityTestOutput(ctx context.Context, timeout time.Duration) (*unity.Report, error)
}

var _ UnityOutputExpecter = (*Session)(nil)

// ExpectUnityTestOutput consumes DUT output until the Unity summary and
// verdict lines have been read, and returns the parsed report.
//
// Failed test cases are not an error here; see CheckUnityTestOutput. Errors
// wrap ErrTimeout or ErrClosed when the summary never appears.
func (s *Session) ExpectUnityTestOutput(ctx context.Context, timeout time.Duration) (*unity.Report, error) {
	if timeout <= 0 {
		timeout = DefaultUnityTimeout
	}
	d := s.newDeadline(timeout)
	defer d.stop()
	return s.expectUnityTestOutput(ctx, d)
}

func (s *Session) expectUnityTestOutput(ctx context.Context, d *deadline) (*unity.Report, error) {
	var p unity.Parser
	if err := s.consume(ctx, d, p.Feed); err != nil {
		if p.GotSummary() {
			return nil, errors.Wrap(err, "Unity summary was not followed by a verdict")
		}
		return nil, errors.Wrap(err, "no Unity summary in DUT output")
	}
	r := p.Report()
	logging.Infof(ctx, "Unity: %v", r)
	return r, nil
}

// RunUnityCase selects a single test case by name from the Unity menu and
// returns its report. The DUT must be showing the menu prompt. timeout covers
// both the wait for the prompt and the run of the case.
func (s *Session) RunUnityCase(ctx context.Context, name string, timeout time.Duration) (*unity.Report, error) {
	if timeout <= 0 {
		timeout = DefaultUnityTimeout
	}
	d := s.newDeadline(timeout)
	defer d.stop()

	if _, err := s.expect(ctx, d, menuPromptRE); err != nil {
		return nil, errors.Wrap(err, "Unity menu prompt not seen")
	}
	logging.Infof(ctx, "Running Unity case %q", name)
	if err := s.WriteLine(ctx, `"`+name+`"`); err != nil {
		return nil, err
	}
	return s.expectUnityTestOutput(ctx, d)
}

// AssertionError is returned by CheckUnityTestOutput when Unity reported
// failed test cases.
type AssertionError struct {
	Report *unity.Report
}

func (e *AssertionError) Error() string {
	var names []string
	for _, c := range e.Report.FailedCases() {
		names = append(names, fmt.Sprintf("%q (%s:%d: %s)", c.Name, c.File, c.Line, c.Message))
	}
	msg := "Unity reported failure: " + e.Report.String()
	if len(names) > 0 {
		msg += "; failed: " + strings.Join(names, ", ")
	}
	return msg
}

// CheckUnityTestOutput waits for the Unity summary on e and returns nil if it
// reports success. It returns an *AssertionError if the summary reports
// failures. Errors from e, such as timeouts, are returned unchanged.
func CheckUnityTestOutput(ctx context.Context, e UnityOutputExpecter, timeout time.Duration) error {
	r, err := e.ExpectUnityTestOutput(ctx, timeout)
	if err != nil {
		return err
	}
	if !r.Passed() {
		return &AssertionError{Report: r}
	}
	return nil
}
