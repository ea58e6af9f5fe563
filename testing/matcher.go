// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package testing

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/exp/slices"

	"github.com/esp32evse/unityhost/errors"
)

// Matcher holds compiled patterns to match tests.
//
// A pattern is a test name, a glob where * matches any run of characters,
// or an attribute in parentheses such as "(group:smoke)".
type Matcher struct {
	names map[string]struct{}
	globs []*regexp.Regexp
	attrs []string
}

// NewMatcher creates a new Matcher from patterns. No patterns match all tests.
func NewMatcher(pats []string) (*Matcher, error) {
	if len(pats) == 0 {
		return &Matcher{globs: []*regexp.Regexp{regexp.MustCompile("")}}, nil
	}

	m := &Matcher{names: make(map[string]struct{})}
	for _, pat := range pats {
		if strings.HasPrefix(pat, "(") && strings.HasSuffix(pat, ")") {
			attr := strings.TrimSpace(pat[1 : len(pat)-1])
			if attr == "" || strings.ContainsAny(attr, " &|!()") {
				return nil, errors.Errorf("bad attribute pattern %q", pat)
			}
			m.attrs = append(m.attrs, attr)
			continue
		}
		hasWildcard, err := validateGlob(pat)
		if err != nil {
			return nil, errors.Wrapf(err, "bad pattern %q", pat)
		}
		if !hasWildcard {
			m.names[pat] = struct{}{}
			continue
		}
		glob, err := compileGlob(pat)
		if err != nil {
			return nil, err
		}
		m.globs = append(m.globs, glob)
	}
	return m, nil
}

// Match reports whether a test with name and attrs is matched.
func (m *Matcher) Match(name string, attrs []string) bool {
	if _, ok := m.names[name]; ok {
		return true
	}
	for _, g := range m.globs {
		if g.MatchString(name) {
			return true
		}
	}
	for _, a := range m.attrs {
		if slices.Contains(attrs, a) {
			return true
		}
	}
	return false
}

// validateGlob checks if glob is a valid glob and reports whether it contains
// wildcards.
func validateGlob(glob string) (hasWildcard bool, err error) {
	for _, ch := range glob {
		switch {
		case ch == '*':
			hasWildcard = true
		case unicode.IsLetter(ch), unicode.IsDigit(ch), ch == '.', ch == '_':
			continue
		default:
			return hasWildcard, errors.Errorf("invalid character %q", ch)
		}
	}
	return hasWildcard, nil
}

// compileGlob returns a regular expression equivalent to a validated glob.
func compileGlob(glob string) (*regexp.Regexp, error) {
	glob = strings.ReplaceAll(glob, ".", `\.`)
	glob = strings.ReplaceAll(glob, "*", ".*")
	return regexp.Compile("^" + glob + "$")
}
