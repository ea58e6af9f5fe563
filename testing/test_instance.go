// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package testing

import (
	"fmt"
	"reflect"
	"regexp"
	"runtime"
	"strings"
	"time"

	"golang.org/x/exp/slices"

	"github.com/esp32evse/unityhost/errors"
)

// TestInstance represents a test registered to the framework.
//
// A single AddTest call registers one instance per Param of the Test.
type TestInstance struct {
	// Name is "category.FuncName" or "category.FuncName.param". The category
	// is the last component of Func's package.
	Name string

	// Pkg contains the Go package in which Func is located.
	Pkg string

	// Val is inherited from the Param this instance was expanded from.
	Val interface{}

	Func     TestFunc
	Desc     string
	Contacts []string
	Attr     []string
	Inputs   []Input
	Timeout  time.Duration
}

// instantiate creates one TestInstance per Param of t.
func instantiate(t *Test) ([]*TestInstance, error) {
	ps := t.Params
	if len(ps) == 0 {
		ps = []Param{{}}
	}

	tis := make([]*TestInstance, 0, len(ps))
	for i := range ps {
		ti, err := newTestInstance(t, &ps[i])
		if err != nil {
			return nil, err
		}
		tis = append(tis, ti)
	}
	return tis, nil
}

func newTestInstance(t *Test, p *Param) (*TestInstance, error) {
	pkg, category, fn, err := testFuncInfo(t.Func)
	if err != nil {
		return nil, err
	}

	name := category + "." + fn
	if p.Name != "" {
		name += "." + p.Name
	}
	if !testNameRegexp.MatchString(name) {
		return nil, errors.Errorf("invalid test name %q", name)
	}

	timeout := t.Timeout
	if p.Timeout != 0 {
		if t.Timeout != 0 {
			return nil, errors.Errorf("%s: Param has Timeout while the Test already has one", name)
		}
		timeout = p.Timeout
	}
	if timeout < 0 {
		return nil, errors.Errorf("%s: negative timeout %v", name, timeout)
	}
	if timeout == 0 {
		timeout = DefaultTestTimeout
	}

	seen := make(map[Input]struct{})
	for _, in := range t.Inputs {
		if in == "" {
			return nil, errors.Errorf("%s: empty input name", name)
		}
		if _, ok := seen[in]; ok {
			return nil, errors.Errorf("%s: input %q declared twice", name, in)
		}
		seen[in] = struct{}{}
	}

	return &TestInstance{
		Name:     name,
		Pkg:      pkg,
		Val:      p.Val,
		Func:     t.Func,
		Desc:     t.Desc,
		Contacts: slices.Clone(t.Contacts),
		Attr:     append(slices.Clone(t.Attr), p.ExtraAttr...),
		Inputs:   slices.Clone(t.Inputs),
		Timeout:  timeout,
	}, nil
}

// testNameRegexp validates test names: a package name, a period, the name of
// the exported test function, then optionally a period and a param name.
var testNameRegexp = regexp.MustCompile(`^[a-z][a-z0-9]*\.[A-Z][A-Za-z0-9]*(?:\.[a-z0-9_]+)?$`)

// testFuncInfo derives the package, category and function name of f.
func testFuncInfo(f TestFunc) (pkg, category, name string, err error) {
	if f == nil {
		return "", "", "", errors.New("Func is nil")
	}
	rf := runtime.FuncForPC(reflect.ValueOf(f).Pointer())
	if rf == nil {
		return "", "", "", errors.New("failed to get function from PC")
	}
	pkg, name = splitFuncName(rf.Name())
	if name == "" || strings.Contains(name, ".") {
		return "", "", "", errors.Errorf("%s is not a top-level function", rf.Name())
	}
	cs := strings.Split(pkg, "/")
	if len(cs) < 2 {
		return "", "", "", errors.Errorf("failed to split package %q into at least two components", pkg)
	}
	return pkg, cs[len(cs)-1], name, nil
}

// splitFuncName splits runtime.Func.Name() into package and function name.
func splitFuncName(fn string) (pkg, name string) {
	lastSlash := strings.LastIndex(fn, "/")
	parts := strings.SplitN(fn[lastSlash+1:], ".", 2)
	if len(parts) < 2 {
		return fn, ""
	}
	return fn[:lastSlash+1] + parts[0], parts[1]
}

func (t *TestInstance) clone() *TestInstance {
	ti := *t
	ti.Contacts = slices.Clone(t.Contacts)
	ti.Attr = slices.Clone(t.Attr)
	ti.Inputs = slices.Clone(t.Inputs)
	return &ti
}

func (t *TestInstance) String() string {
	return t.Name
}

// requires reports whether t declares in.
func (t *TestInstance) requires(in Input) bool {
	return slices.Contains(t.Inputs, in)
}

// Summary returns a one-line description of t for listings.
func (t *TestInstance) Summary() string {
	s := t.Name
	if len(t.Inputs) > 0 {
		var ins []string
		for _, in := range t.Inputs {
			ins = append(ins, string(in))
		}
		s += fmt.Sprintf(" [inputs: %s]", strings.Join(ins, ", "))
	}
	return s
}
