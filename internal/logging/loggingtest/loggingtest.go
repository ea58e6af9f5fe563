// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package loggingtest provides logging utilities for unit tests.
package loggingtest

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/esp32evse/unityhost/internal/logging"
)

// Logger is a logging.Logger that keeps logs in memory and also emits them
// as unit test logs.
type Logger struct {
	t     *testing.T
	level logging.Level

	mu   sync.Mutex
	logs []string
}

// NewLogger returns a Logger keeping logs at level or above.
func NewLogger(t *testing.T, level logging.Level) *Logger {
	return &Logger{t: t, level: level}
}

// Log gets called for a log entry.
func (l *Logger) Log(level logging.Level, ts time.Time, msg string) {
	l.t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.t.Logf("%-5s %s", level, msg)
	if level >= l.level {
		l.logs = append(l.logs, msg)
	}
}

// Logs returns the kept logs.
func (l *Logger) Logs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.logs...)
}

// Has reports whether any kept log contains substr. Harness messages and DUT
// output lines are both kept as single logs, so substr can match either.
func (l *Logger) Has(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, msg := range l.logs {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

// String returns the kept logs joined by newlines.
func (l *Logger) String() string {
	return strings.Join(l.Logs(), "\n")
}
