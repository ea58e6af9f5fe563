// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package testingutil holds helpers shared by the dut and testing packages.
package testingutil

import (
	"context"
	"time"

	"code.cloudfoundry.org/clock"

	"github.com/esp32evse/unityhost/errors"
)

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	return SleepClock(ctx, clock.NewClock(), d)
}

// SleepClock is like Sleep but measures d with clk.
func SleepClock(ctx context.Context, clk clock.Clock, d time.Duration) error {
	tm := clk.NewTimer(d)
	defer tm.Stop()

	select {
	case <-tm.C():
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "sleep interrupted")
	}
}
