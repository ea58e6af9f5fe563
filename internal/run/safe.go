// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package run

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/esp32evse/unityhost/errors"
)

// defaultGracePeriod is how long a test may keep running after its timeout
// to release the DUT before it is abandoned.
const defaultGracePeriod = 10 * time.Second

type panicHandler func(val interface{})

type errorReporter interface {
	Error(args ...interface{})
}

// errorOnPanic returns a panicHandler that reports a panic via e.
func errorOnPanic(e errorReporter) panicHandler {
	return func(val interface{}) {
		e.Error("Panic: ", val)
	}
}

// safeCall calls f on its own goroutine with a context that expires after
// timeout, and waits for it to return.
//
// If f is still running gracePeriod after the timeout, or ctx is canceled
// first, safeCall gives up on f and returns an error mentioning name. A test
// that calls runtime.Goexit (as State.Fatal does) counts as returning.
//
// A panic in f is recovered and passed to ph on f's goroutine, so the handler
// sees the panicking stack. ph is not called once safeCall has given up.
func safeCall(ctx context.Context, name string, timeout, gracePeriod time.Duration, ph panicHandler, f func(ctx context.Context)) error {
	// Whoever flips owner first decides the outcome: the test goroutine on
	// completion, or this goroutine on abandonment.
	var owner atomic.Bool
	claim := func() bool { return owner.CompareAndSwap(false, true) }

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			val := recover()
			if !claim() {
				return
			}
			if val != nil {
				ph(val)
			}
		}()

		fctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		f(fctx)
	}()

	// If the test goroutine won, wait for ph to finish before returning.
	defer func() {
		if !claim() {
			<-done
		}
	}()

	tm := time.NewTimer(timeout + gracePeriod)
	defer tm.Stop()

	select {
	case <-done:
		return nil
	case <-tm.C:
		return errors.Errorf("%s did not return on timeout", name)
	case <-ctx.Done():
		return ctx.Err()
	}
}
