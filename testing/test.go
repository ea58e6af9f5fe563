// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package testing provides the registry, selection and parametrization of
// host tests that drive a device running a Unity test application.
package testing

import (
	"context"
	"time"
)

// Input names a value a test needs before it can run. Inputs are bound by
// parametrization hooks before tests are expanded into runnable instances.
type Input string

// TestNameInput is the input carrying the name of the Unity test case to run
// on the device. It is bound from the -test-name flag.
const TestNameInput Input = "test_name"

// TestFunc is the code associated with a test.
type TestFunc func(context.Context, *State)

// Test describes a registration of one or more test instances.
//
// If Params is empty, Test describes exactly one test instance. Otherwise one
// instance is registered per Param, merged into the base Test.
type Test struct {
	// Func is the function to be executed to perform the test.
	Func TestFunc

	// Desc is a short one-line description of the test.
	Desc string

	// Contacts lists people familiar with the test.
	Contacts []string

	// Attr contains freeform text attributes describing the test.
	Attr []string

	// Inputs lists inputs the test needs. A test whose inputs are left
	// unbound is skipped.
	Inputs []Input

	// Timeout is the maximum duration for which Func may run.
	// DefaultTestTimeout is used if zero.
	Timeout time.Duration

	// Params lists the Param structs for parameterized tests.
	Params []Param
}

// Param defines parameters for a parameterized test.
type Param struct {
	// Name is appended to the test name as category.Func.name.
	// It should match [a-z0-9_]*.
	Name string

	// ExtraAttr contains attributes added to the enclosing Test's Attr.
	ExtraAttr []string

	// Timeout overrides the enclosing Test's Timeout. It can only be set if
	// the Test leaves Timeout unset.
	Timeout time.Duration

	// Val is returned by State.Param.
	Val interface{}
}

// DefaultTestTimeout is used for tests that do not set Timeout.
const DefaultTestTimeout = 2 * time.Minute
