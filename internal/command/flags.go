// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package command contains code shared by the unityhost subcommands.
package command

import (
	"flag"
	"strconv"
	"strings"
	"time"

	"github.com/esp32evse/unityhost/errors"
)

// DurationFlag implements flag.Value for a duration given as an integer count
// of units, e.g. "-timeout=30" meaning 30 seconds.
type DurationFlag struct {
	units time.Duration
	dst   *time.Duration
}

// NewDurationFlag returns a DurationFlag storing into dst, which is
// initialized to def.
func NewDurationFlag(units time.Duration, dst *time.Duration, def time.Duration) *DurationFlag {
	*dst = def
	return &DurationFlag{units: units, dst: dst}
}

// Set implements flag.Value.
func (f *DurationFlag) Set(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	if n < 0 {
		return errors.Errorf("negative duration %d", n)
	}
	*f.dst = time.Duration(n) * f.units
	return nil
}

// String implements flag.Value.
func (f *DurationFlag) String() string {
	if f.dst == nil || f.units == 0 {
		return ""
	}
	return strconv.FormatInt(int64(*f.dst/f.units), 10)
}

// OptionalStringFlag implements flag.Value for a string that may be absent.
// The destination stays nil until the flag is given, so "-flag=" can be told
// apart from no flag at all.
type OptionalStringFlag struct {
	dst **string
}

// NewOptionalStringFlag returns an OptionalStringFlag storing into dst.
func NewOptionalStringFlag(dst **string) *OptionalStringFlag {
	return &OptionalStringFlag{dst: dst}
}

// Set implements flag.Value.
func (f *OptionalStringFlag) Set(v string) error {
	*f.dst = &v
	return nil
}

// String implements flag.Value.
func (f *OptionalStringFlag) String() string {
	if f.dst == nil || *f.dst == nil {
		return ""
	}
	return **f.dst
}

// RepeatedFlag implements flag.Value around an assignment function that is
// run once per occurrence of the flag.
type RepeatedFlag func(v string) error

// Set implements flag.Value.
func (f *RepeatedFlag) Set(v string) error { return (*f)(v) }

// String implements flag.Value.
func (f *RepeatedFlag) String() string { return "" }

// ListFlag implements flag.Value to split a sep-separated value into a list.
type ListFlag struct {
	sep    string
	assign func([]string)
}

// NewListFlag returns a ListFlag calling assign with the split value.
// def is assigned immediately.
func NewListFlag(sep string, assign func([]string), def []string) *ListFlag {
	assign(def)
	return &ListFlag{sep: sep, assign: assign}
}

// Set implements flag.Value.
func (f *ListFlag) Set(v string) error {
	var vs []string
	for _, s := range strings.Split(v, f.sep) {
		if s = strings.TrimSpace(s); s != "" {
			vs = append(vs, s)
		}
	}
	f.assign(vs)
	return nil
}

// String implements flag.Value.
func (f *ListFlag) String() string { return "" }

var (
	_ flag.Value = (*DurationFlag)(nil)
	_ flag.Value = (*OptionalStringFlag)(nil)
	_ flag.Value = (*RepeatedFlag)(nil)
	_ flag.Value = (*ListFlag)(nil)
)
