// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package testing

var globalRegistry *Registry // singleton, initialized on first use

// GlobalRegistry returns the registry holding tests added by AddTest.
func GlobalRegistry() *Registry {
	if globalRegistry == nil {
		globalRegistry = NewRegistry()
	}
	return globalRegistry
}

// AddTest adds test t to the global registry. It is meant to be called from
// init functions; errors are kept in the registry and reported by the CLI.
func AddTest(t *Test) {
	GlobalRegistry().AddTest(t)
}

// SetGlobalRegistryForTesting temporarily sets reg as the global registry.
// The caller must call the returned function to restore the original one.
func SetGlobalRegistryForTesting(reg *Registry) (restore func()) {
	orig := globalRegistry
	globalRegistry = reg
	return func() { globalRegistry = orig }
}
