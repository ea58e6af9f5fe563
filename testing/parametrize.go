// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package testing

// ParametrizeTestName binds TestNameInput to configuredName on every case that
// declares it. Cases without the input are left alone, and a nil
// configuredName changes nothing.
//
// It runs once per session, after tests are collected and before they are
// expanded. Errors from Case.Parametrize are returned as is.
func ParametrizeTestName(cases []*Case, configuredName *string) error {
	if configuredName == nil {
		return nil
	}
	for _, c := range cases {
		if !c.Requires(TestNameInput) {
			continue
		}
		if err := c.Parametrize(TestNameInput, []string{*configuredName}); err != nil {
			return err
		}
	}
	return nil
}
