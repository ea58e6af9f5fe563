// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package stack

import (
	"regexp"
	"strings"
	"testing"
)

func TestInnermostFrame(t *testing.T) {
	trace := New(0).String()

	lines := strings.Split(trace, "\n")
	if len(lines) < 2 {
		t.Fatalf("Stack trace is too short: %q", trace)
	}

	re := regexp.MustCompile(`^\tat github\.com/esp32evse/unityhost/errors/stack\.TestInnermostFrame \(stack_test\.go:\d+\)$`)
	if s := lines[0]; !re.MatchString(s) {
		t.Errorf("First line of stack trace = %q; want match for %q", s, re)
	}
	if s := lines[len(lines)-1]; s == ellipsis {
		t.Error("Short stack trace ends with ellipsis")
	}
}

func deepStack(depth int) Stack {
	if depth == 0 {
		return New(0)
	}
	return deepStack(depth - 1)
}

func TestTruncated(t *testing.T) {
	trace := deepStack(maxDepth).String()

	lines := strings.Split(trace, "\n")
	if len(lines) != maxDepth+1 {
		t.Fatalf("Stack trace has %d lines; want %d", len(lines), maxDepth+1)
	}
	if s := lines[len(lines)-1]; s != ellipsis {
		t.Errorf("Last line of stack trace = %q; want %q", s, ellipsis)
	}
}
