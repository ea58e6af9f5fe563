// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package testing

import (
	"github.com/hashicorp/go-multierror"

	"github.com/esp32evse/unityhost/errors"
)

// Registry holds tests.
type Registry struct {
	allTests  []*TestInstance
	testNames map[string]struct{} // names of registered tests
	errs      *multierror.Error   // registration errors
}

// NewRegistry returns a new test registry.
func NewRegistry() *Registry {
	return &Registry{testNames: make(map[string]struct{})}
}

// AddTest adds t to the registry.
func (r *Registry) AddTest(t *Test) error {
	tis, err := instantiate(t)
	if err != nil {
		r.errs = multierror.Append(r.errs, err)
		return err
	}
	for _, ti := range tis {
		if err := r.AddTestInstance(ti); err != nil {
			return err
		}
	}
	return nil
}

// AddTestInstance adds t to the registry.
func (r *Registry) AddTestInstance(t *TestInstance) error {
	t = t.clone()
	if _, ok := r.testNames[t.Name]; ok {
		err := errors.Errorf("test %q already registered", t.Name)
		r.errs = multierror.Append(r.errs, err)
		return err
	}
	r.allTests = append(r.allTests, t)
	r.testNames[t.Name] = struct{}{}
	return nil
}

// AllTests returns copies of all registered tests.
func (r *Registry) AllTests() []*TestInstance {
	ts := make([]*TestInstance, len(r.allTests))
	for i, t := range r.allTests {
		ts[i] = t.clone()
	}
	return ts
}

// Errors returns all errors seen during registration, or nil.
// Tests register from init functions where errors cannot be returned, so
// the CLI checks this before running anything.
func (r *Registry) Errors() error {
	return r.errs.ErrorOrNil()
}

// SelectTests returns copies of registered tests matched by m.
func (r *Registry) SelectTests(m *Matcher) []*TestInstance {
	var ts []*TestInstance
	for _, t := range r.allTests {
		if m.Match(t.Name, t.Attr) {
			ts = append(ts, t.clone())
		}
	}
	return ts
}
