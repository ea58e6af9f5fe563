// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package testing

import (
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/esp32evse/unityhost/errors"
)

// Case is a test about to run, as seen by parametrization hooks. Hooks bind
// values to the inputs the test declares; Expand then turns the case into
// one runnable Instance per combination of bound values.
type Case struct {
	test     *TestInstance
	bindings map[Input][]string
}

// NewCase returns a case for t with no inputs bound.
func NewCase(t *TestInstance) *Case {
	return &Case{test: t.clone(), bindings: make(map[Input][]string)}
}

// NewCases returns one case per test.
func NewCases(ts []*TestInstance) []*Case {
	cs := make([]*Case, len(ts))
	for i, t := range ts {
		cs[i] = NewCase(t)
	}
	return cs
}

// Name returns the name of the underlying test.
func (c *Case) Name() string {
	return c.test.Name
}

// Test returns the underlying test.
func (c *Case) Test() *TestInstance {
	return c.test
}

// Inputs returns the inputs the test declares, in declaration order.
func (c *Case) Inputs() []Input {
	return slices.Clone(c.test.Inputs)
}

// Requires reports whether the test declares in.
func (c *Case) Requires(in Input) bool {
	return c.test.requires(in)
}

// Parametrize binds in to values. The case later expands into one instance
// per value.
//
// Binding an input again with the same values is a no-op. Binding it to
// different values is an error, as is binding an undeclared input.
func (c *Case) Parametrize(in Input, values []string) error {
	if !c.Requires(in) {
		return errors.Errorf("%s does not declare input %q", c.Name(), in)
	}
	if len(values) == 0 {
		return errors.Errorf("%s: no values given for input %q", c.Name(), in)
	}
	if cur, ok := c.bindings[in]; ok {
		if slices.Equal(cur, values) {
			return nil
		}
		return errors.Errorf("%s: duplicate parametrization of input %q: already bound to %q, got %q",
			c.Name(), in, cur, values)
	}
	c.bindings[in] = slices.Clone(values)
	return nil
}

// Bindings returns a copy of the values bound so far.
func (c *Case) Bindings() map[Input][]string {
	b := make(map[Input][]string, len(c.bindings))
	for in, vs := range c.bindings {
		b[in] = slices.Clone(vs)
	}
	return b
}

// Instance is one runnable combination of a test and its input values.
type Instance struct {
	// ID is the test name followed by the bound values in brackets,
	// e.g. "unityapp.RunCase[Pilot error]".
	ID string

	Test *TestInstance

	// Inputs maps each bound input to its value for this instance.
	Inputs map[Input]string

	// Missing lists declared inputs left unbound. Instances with missing
	// inputs are skipped.
	Missing []Input
}

// SkipReason returns why the instance cannot run, or an empty string.
func (i *Instance) SkipReason() string {
	if len(i.Missing) == 0 {
		return ""
	}
	var qs []string
	for _, in := range i.Missing {
		qs = append(qs, fmt.Sprintf("%q", in))
	}
	return "missing input " + strings.Join(qs, ", ")
}

// Expand returns the instances of c: the cartesian product of all bound
// values, in input declaration order.
func (c *Case) Expand() []*Instance {
	combos := []map[Input]string{{}}
	var missing []Input
	for _, in := range c.test.Inputs {
		vs, ok := c.bindings[in]
		if !ok {
			missing = append(missing, in)
			continue
		}
		next := make([]map[Input]string, 0, len(combos)*len(vs))
		for _, combo := range combos {
			for _, v := range vs {
				m := maps.Clone(combo)
				m[in] = v
				next = append(next, m)
			}
		}
		combos = next
	}

	insts := make([]*Instance, 0, len(combos))
	for _, combo := range combos {
		insts = append(insts, &Instance{
			ID:      c.instanceID(combo),
			Test:    c.test,
			Inputs:  combo,
			Missing: slices.Clone(missing),
		})
	}
	return insts
}

func (c *Case) instanceID(combo map[Input]string) string {
	var vs []string
	for _, in := range c.test.Inputs {
		if v, ok := combo[in]; ok {
			vs = append(vs, v)
		}
	}
	if len(vs) == 0 {
		return c.Name()
	}
	return fmt.Sprintf("%s[%s]", c.Name(), strings.Join(vs, "-"))
}

// ExpandAll expands every case in order.
func ExpandAll(cs []*Case) []*Instance {
	var insts []*Instance
	for _, c := range cs {
		insts = append(insts, c.Expand()...)
	}
	return insts
}
