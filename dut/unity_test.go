// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package dut

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/esp32evse/unityhost/errors"
	"github.com/esp32evse/unityhost/unity"
)

func TestCheckUnityTestOutputSuccess(t *testing.T) {
	s, tr, _ := newTestSession(t)
	go tr.emit(t, "Running...", "0 Tests 0 Failures 0 Ignored", "OK")

	if err := CheckUnityTestOutput(context.Background(), s, time.Minute); err != nil {
		t.Errorf("CheckUnityTestOutput failed: %v", err)
	}
}

func TestCheckUnityTestOutputFailure(t *testing.T) {
	s, tr, _ := newTestSession(t)
	go tr.emit(t, "Running...", "1 Tests 1 Failures 0 Ignored", "FAIL")

	err := CheckUnityTestOutput(context.Background(), s, time.Minute)
	var ae *AssertionError
	if !errors.As(err, &ae) {
		t.Fatalf("CheckUnityTestOutput returned %v; want *AssertionError", err)
	}
	want := &unity.Report{Tests: 1, Failures: 1, Verdict: unity.VerdictFail}
	if diff := cmp.Diff(ae.Report, want); diff != "" {
		t.Errorf("Report mismatch (-got +want):\n%s", diff)
	}
}

func TestCheckUnityTestOutputNamesFailedCases(t *testing.T) {
	s, tr, _ := newTestSession(t)
	go tr.emit(t,
		"main/test_evse.c:88:Pilot error:FAIL: Expected 4 Was 0",
		"1 Tests 1 Failures 0 Ignored",
		"FAIL")

	err := CheckUnityTestOutput(context.Background(), s, time.Minute)
	if err == nil {
		t.Fatal("CheckUnityTestOutput succeeded for a failed run")
	}
	if msg := err.Error(); !strings.Contains(msg, `"Pilot error" (main/test_evse.c:88: Expected 4 Was 0)`) {
		t.Errorf("Error %q does not name the failed case", msg)
	}
}

func TestCheckUnityTestOutputFailuresWithOKVerdict(t *testing.T) {
	s, tr, _ := newTestSession(t)
	go tr.emit(t, "2 Tests 1 Failures 0 Ignored", "OK")

	var ae *AssertionError
	if err := CheckUnityTestOutput(context.Background(), s, time.Minute); !errors.As(err, &ae) {
		t.Errorf("CheckUnityTestOutput returned %v; want *AssertionError", err)
	}
}

func TestCheckUnityTestOutputTimeout(t *testing.T) {
	s, tr, clk := newTestSession(t)
	go tr.emit(t, "Running...", "still running")

	errc := make(chan error, 1)
	go func() { errc <- CheckUnityTestOutput(context.Background(), s, 10*time.Second) }()
	clk.WaitForWatcherAndIncrement(10 * time.Second)

	err := <-errc
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("CheckUnityTestOutput returned %v; want ErrTimeout", err)
	}
	var ae *AssertionError
	if errors.As(err, &ae) {
		t.Errorf("Timeout reported as assertion failure: %v", err)
	}
}

// stubExpecter returns canned results, standing in for a DUT session.
type stubExpecter struct {
	report *unity.Report
	err    error
}

func (e *stubExpecter) ExpectUnityTestOutput(ctx context.Context, timeout time.Duration) (*unity.Report, error) {
	return e.report, e.err
}

func TestCheckUnityTestOutputPropagatesErrors(t *testing.T) {
	want := errors.New("serial port vanished")
	got := CheckUnityTestOutput(context.Background(), &stubExpecter{err: want}, time.Second)
	if got != want {
		t.Errorf("CheckUnityTestOutput returned %v; want the expecter's error unchanged", got)
	}
}

func TestRunUnityCase(t *testing.T) {
	s, tr, _ := newTestSession(t)
	ctx := context.Background()

	go tr.emit(t, "2 Tests 0 Failures 0 Ignored", "OK", "", "Press ENTER to see the list of tests.")
	if err := CheckUnityTestOutput(ctx, s, time.Minute); err != nil {
		t.Fatal("Initial run failed: ", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for !strings.Contains(tr.Written(), "\n") {
			time.Sleep(time.Millisecond)
		}
		tr.emit(t,
			"Running Pilot error...",
			"main/test_evse.c:88:Pilot error:PASS",
			"1 Tests 0 Failures 0 Ignored",
			"OK")
	}()

	r, err := s.RunUnityCase(ctx, "Pilot error", time.Minute)
	<-done
	if err != nil {
		t.Fatal("RunUnityCase failed: ", err)
	}
	if got, want := tr.Written(), "\"Pilot error\"\n"; got != want {
		t.Errorf("DUT got %q; want %q", got, want)
	}
	if !r.Passed() || r.Tests != 1 {
		t.Errorf("RunUnityCase returned %v; want 1 passing test", r)
	}
}

func TestRunUnityCaseNoMenu(t *testing.T) {
	s, tr, clk := newTestSession(t)
	go tr.emit(t, "rst:0x1 (POWERON_RESET),boot:0x13 (SPI_FAST_FLASH_BOOT)")

	errc := make(chan error, 1)
	go func() {
		_, err := s.RunUnityCase(context.Background(), "Pilot error", time.Second)
		errc <- err
	}()
	clk.WaitForWatcherAndIncrement(time.Second)

	if err := <-errc; !errors.Is(err, ErrTimeout) {
		t.Errorf("RunUnityCase returned %v; want ErrTimeout", err)
	}
	if w := tr.Written(); w != "" {
		t.Errorf("DUT got %q before the menu prompt", w)
	}
}

func TestRunUnityCaseSharesDeadline(t *testing.T) {
	s, tr, clk := newTestSession(t)

	errc := make(chan error, 1)
	go func() {
		_, err := s.RunUnityCase(context.Background(), "Pilot error", 10*time.Second)
		errc <- err
	}()

	// The menu prompt shows up 6 seconds in; the case then hangs.
	clk.WaitForWatcherAndIncrement(6 * time.Second)
	tr.emit(t, "Enter test for running.")
	for !strings.Contains(tr.Written(), "\n") {
		time.Sleep(time.Millisecond)
	}
	clk.Increment(4 * time.Second)

	select {
	case err := <-errc:
		if !errors.Is(err, ErrTimeout) {
			t.Errorf("RunUnityCase returned %v; want ErrTimeout", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("RunUnityCase did not give up 10 seconds after it started")
	}
}
