// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package stack captures and formats the call site of an error.
// Host tests should not use it directly; use the errors package instead.
package stack

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	maxDepth = 8 // maximum number of frames kept per error

	ellipsis = "\t..." // marker appended when frames were dropped
)

// Stack is a snapshot of program counters.
type Stack []uintptr

// New captures the current goroutine's stack. skip is the number of frames
// to omit; skip=0 makes the caller of New the innermost frame.
func New(skip int) Stack {
	pc := make([]uintptr, maxDepth+1)
	pc = pc[:runtime.Callers(skip+2, pc)]
	return Stack(pc)
}

// Frames returns "function (file:line)" descriptions of s, innermost first.
func (s Stack) Frames() []string {
	var frames []string
	cf := runtime.CallersFrames(s)
	for {
		f, more := cf.Next()
		frames = append(frames, fmt.Sprintf("%s (%s:%d)", f.Function, filepath.Base(f.File), f.Line))
		if !more {
			break
		}
	}
	return frames
}

// String formats s with one tab-indented "at" line per frame.
func (s Stack) String() string {
	var lines []string
	for _, f := range s.Frames() {
		if len(lines) >= maxDepth {
			lines = append(lines, ellipsis)
			break
		}
		lines = append(lines, "\tat "+f)
	}
	return strings.Join(lines, "\n")
}
