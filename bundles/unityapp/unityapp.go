// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package unityapp contains host tests for firmware built as a Unity test
// app. Importing it registers the tests with the global registry.
package unityapp

import (
	"context"

	"github.com/esp32evse/unityhost/dut"
	"github.com/esp32evse/unityhost/testing"
)

func init() {
	testing.AddTest(&testing.Test{
		Func: RunAll,
		Desc: "Waits for the Unity test app to finish and checks its summary",
		Attr: []string{"unity"},
	})
	testing.AddTest(&testing.Test{
		Func:   RunCase,
		Desc:   "Runs the Unity case named by the test_name input from the Unity menu",
		Attr:   []string{"unity"},
		Inputs: []testing.Input{testing.TestNameInput},
	})
}

// RunAll checks the summary printed by a Unity app that runs all of its
// cases at boot.
func RunAll(ctx context.Context, s *testing.State) {
	if err := dut.CheckUnityTestOutput(ctx, s.DUT(), s.ExpectTimeout()); err != nil {
		s.Fatal("Unity test app failed: ", err)
	}
}

// RunCase selects a single case from the Unity menu.
func RunCase(ctx context.Context, s *testing.State) {
	name := s.Input(testing.TestNameInput)
	r, err := s.DUT().RunUnityCase(ctx, name, s.ExpectTimeout())
	if err != nil {
		s.Fatalf("Failed to run Unity case %q: %v", name, err)
	}
	if r.Tests == 0 {
		s.Fatalf("No Unity case named %q", name)
	}
	if !r.Passed() {
		s.Fatal("Unity case failed: ", &dut.AssertionError{Report: r})
	}
}
