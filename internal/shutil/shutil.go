// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package shutil builds shell command lines run on remote bench hosts.
package shutil

import (
	"fmt"
	"regexp"
	"strings"
)

// Characters that never need quoting. "=" is unsafe in leading position
// because zsh expands a leading "=word".
const (
	leadingSafe  = `-\w@%+:,./`
	trailingSafe = leadingSafe + "="
)

var safeRE = regexp.MustCompile(fmt.Sprintf("^[%s][%s]*$", leadingSafe, trailingSafe))

// Escape quotes s for use as a single shell word. Safe words are returned
// unchanged.
func Escape(s string) string {
	if safeRE.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// Command escapes each of args and joins them into one command line.
func Command(args ...string) string {
	words := make([]string, len(args))
	for i, a := range args {
		words[i] = Escape(a)
	}
	return strings.Join(words, " ")
}
