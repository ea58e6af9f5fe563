// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package testing

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/esp32evse/unityhost/dut"
	"github.com/esp32evse/unityhost/errors/stack"
)

// Error describes an error reported by a test.
type Error struct {
	// Reason is the message given to State.Error and friends.
	Reason string `json:"reason"`
	// File and Line locate the reporting call.
	File string `json:"file"`
	Line int    `json:"line"`
	// Stack holds the call stack, followed by the error chain when the last
	// argument was an error.
	Stack string `json:"stack"`
}

func newError(reason string, err error, skipFrames int) *Error {
	skipFrames++ // newError itself
	_, fn, ln, _ := runtime.Caller(skipFrames)
	trace := fmt.Sprintf("%s\n%s", reason, stack.New(skipFrames))
	if err != nil {
		trace += fmt.Sprintf("\n%+v", err)
	}
	return &Error{Reason: reason, File: fn, Line: ln, Stack: trace}
}

// OutputStream receives logs and errors from a running test.
type OutputStream interface {
	Log(msg string) error
	Error(e *Error) error
}

// RuntimeConfig holds what a test sees of the environment it runs in.
type RuntimeConfig struct {
	// DUT is the session to the device. It may be nil in unit tests.
	DUT *dut.Session
	// OutDir is the directory where the test may write output files.
	OutDir string
	// ExpectTimeout is how long to wait for Unity output. Zero means
	// dut.DefaultUnityTimeout.
	ExpectTimeout time.Duration
}

// State holds state relevant to the execution of a single test instance.
//
// Its methods may be called from goroutines other than the test's, but Fatal
// and Fatalf must be called from the test's own goroutine.
type State struct {
	inst *Instance
	cfg  *RuntimeConfig
	out  OutputStream

	mu       sync.Mutex
	hasError bool
}

// NewState returns a State for inst.
func NewState(inst *Instance, cfg *RuntimeConfig, out OutputStream) *State {
	return &State{inst: inst, cfg: cfg, out: out}
}

// TestName returns the ID of the running instance.
func (s *State) TestName() string {
	return s.inst.ID
}

// DUT returns the session to the device under test.
func (s *State) DUT() *dut.Session {
	if s.cfg.DUT == nil {
		panic("DUT unavailable")
	}
	return s.cfg.DUT
}

// OutDir returns a directory into which the test may write files.
func (s *State) OutDir() string {
	return s.cfg.OutDir
}

// ExpectTimeout returns how long the test should wait for Unity output.
func (s *State) ExpectTimeout() time.Duration {
	if s.cfg.ExpectTimeout <= 0 {
		return dut.DefaultUnityTimeout
	}
	return s.cfg.ExpectTimeout
}

// Param returns Val of the Param the test was registered with.
func (s *State) Param() interface{} {
	return s.inst.Test.Val
}

// Input returns the value bound to in. It panics if the test does not
// declare in; the runner skips instances with unbound inputs.
func (s *State) Input(in Input) string {
	if !s.inst.Test.requires(in) {
		panic(fmt.Sprintf("Input %q was not declared in testing.Test.Inputs", in))
	}
	v, ok := s.inst.Inputs[in]
	if !ok {
		panic(fmt.Sprintf("Input %q is not bound", in))
	}
	return v
}

// Log formats its arguments using default formatting and logs them.
func (s *State) Log(args ...interface{}) {
	s.out.Log(fmt.Sprint(args...))
}

// Logf is similar to Log but formats its arguments using fmt.Sprintf.
func (s *State) Logf(format string, args ...interface{}) {
	s.out.Log(fmt.Sprintf(format, args...))
}

// Error marks the test as failed with a reason formatted from args and lets
// it continue.
func (s *State) Error(args ...interface{}) {
	s.report(newError(fmt.Sprint(args...), lastError(args), 1))
}

// Errorf is similar to Error but formats its arguments using fmt.Sprintf.
func (s *State) Errorf(format string, args ...interface{}) {
	s.report(newError(fmt.Sprintf(format, args...), lastError(args), 1))
}

// Fatal is similar to Error but additionally ends the test immediately.
func (s *State) Fatal(args ...interface{}) {
	s.report(newError(fmt.Sprint(args...), lastError(args), 1))
	runtime.Goexit()
}

// Fatalf is similar to Fatal but formats its arguments using fmt.Sprintf.
func (s *State) Fatalf(format string, args ...interface{}) {
	s.report(newError(fmt.Sprintf(format, args...), lastError(args), 1))
	runtime.Goexit()
}

// HasError reports whether the test has already reported errors.
func (s *State) HasError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasError
}

func (s *State) report(e *Error) {
	s.mu.Lock()
	s.hasError = true
	s.mu.Unlock()
	s.out.Error(e)
}

func lastError(args []interface{}) error {
	if len(args) == 0 {
		return nil
	}
	err, _ := args[len(args)-1].(error)
	return err
}
