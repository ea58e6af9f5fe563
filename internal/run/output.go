// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package run

import (
	"context"
	"sync"
	"time"

	"github.com/esp32evse/unityhost/internal/logging"
	"github.com/esp32evse/unityhost/testing"
)

// testOutput receives a single test's logs and errors. Logs go to the
// logger attached to ctx; errors are also logged and collected for the
// test's Result.
type testOutput struct {
	ctx context.Context
	now func() time.Time

	mu   sync.Mutex
	errs []Error
}

var _ testing.OutputStream = (*testOutput)(nil)

func newTestOutput(ctx context.Context) *testOutput {
	return &testOutput{ctx: ctx, now: time.Now}
}

func (o *testOutput) Log(msg string) error {
	logging.Info(o.ctx, msg)
	return nil
}

func (o *testOutput) Error(e *testing.Error) error {
	logging.Infof(o.ctx, "Error at %s:%d: %s", shortFile(e.File), e.Line, e.Reason)
	if e.Stack != "" {
		logging.Debugf(o.ctx, "Stack trace:\n%s", e.Stack)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, Error{
		Time:   o.now(),
		Reason: e.Reason,
		File:   e.File,
		Line:   e.Line,
		Stack:  e.Stack,
	})
	return nil
}

// errors returns the errors reported so far.
func (o *testOutput) errors() []Error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Error(nil), o.errs...)
}

// shortFile trims file to its base name and parent directory.
func shortFile(file string) string {
	slash := 0
	for i := len(file) - 1; i >= 0; i-- {
		if file[i] == '/' {
			slash++
			if slash == 2 {
				return file[i+1:]
			}
		}
	}
	return file
}
