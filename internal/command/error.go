// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package command

import (
	"fmt"
	"io"

	"github.com/esp32evse/unityhost/errors"
)

// StatusError is an error carrying the exit status the process should use.
type StatusError struct {
	msg    string
	status int
}

// NewStatusErrorf returns a StatusError with a message built by fmt.Sprintf.
func NewStatusErrorf(status int, format string, args ...interface{}) *StatusError {
	return &StatusError{msg: fmt.Sprintf(format, args...), status: status}
}

func (e *StatusError) Error() string { return e.msg }

// Status returns the exit status.
func (e *StatusError) Status() int { return e.status }

// WriteError writes err to w and returns the exit status to use: the status
// of a *StatusError in the chain, or 1 for any other error.
func WriteError(w io.Writer, err error) int {
	fmt.Fprintln(w, err)
	var se *StatusError
	if errors.As(err, &se) {
		return se.status
	}
	return 1
}
