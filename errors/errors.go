// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package errors constructs errors that remember where they were created.
//
// Use this package instead of the standard errors.New and fmt.Errorf in
// unityhost and in host tests. Errors created here record a short stack trace
// and the error they wrap, and test reports print the whole chain:
//
//	errors.New("no Unity summary in output")
//	errors.Errorf("port %s is busy", port)
//	errors.Wrap(err, "failed to open DUT session")
//	errors.Wrapf(err, "failed to run Unity case %q", name)
//
// Format an error with "%+v" to get the chain with stack traces. Wrapped
// errors are visible to Is and As.
package errors

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/esp32evse/unityhost/errors/stack"
)

// E is the error type created by this package.
type E struct {
	msg   string
	stk   stack.Stack
	cause error
}

// Error implements the error interface.
func (e *E) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

// Unwrap returns the wrapped error, or nil.
func (e *E) Unwrap() error {
	return e.cause
}

// Format implements fmt.Formatter. "%+v" prints the chain with stack traces.
func (e *E) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		io.WriteString(s, chain(e))
		return
	}
	io.WriteString(s, e.Error())
}

func chain(err error) string {
	var parts []string
	for err != nil {
		e, ok := err.(*E)
		if !ok {
			parts = append(parts, err.Error()+"\n\tat ???")
			break
		}
		parts = append(parts, e.msg+"\n"+e.stk.String())
		err = e.cause
	}
	return strings.Join(parts, "\n")
}

// New returns an error with msg, recording the caller's location.
func New(msg string) error {
	return &E{msg: msg, stk: stack.New(1)}
}

// Errorf is like New but formats the message with fmt.Sprintf.
func Errorf(format string, args ...interface{}) error {
	return &E{msg: fmt.Sprintf(format, args...), stk: stack.New(1)}
}

// Wrap returns an error with msg that wraps cause.
// If cause is nil, Wrap is equivalent to New.
func Wrap(cause error, msg string) error {
	return &E{msg: msg, stk: stack.New(1), cause: cause}
}

// Wrapf is like Wrap but formats the message with fmt.Sprintf.
func Wrapf(cause error, format string, args ...interface{}) error {
	return &E{msg: fmt.Sprintf(format, args...), stk: stack.New(1), cause: cause}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Unwrap returns the error wrapped by err, or nil.
func Unwrap(err error) error { return errors.Unwrap(err) }
