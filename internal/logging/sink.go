// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package logging

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"
)

const timestampLayout = "2006-01-02T15:04:05.000000Z "

// SinkLogger filters logs by level and hands them to a Sink one line at a
// time. Multi-line messages, such as stack traces or a Unity failure message
// spanning several DUT lines, become one sink entry per line, each carrying
// the timestamp if enabled, so that log files can be grepped line by line.
type SinkLogger struct {
	level     Level
	timestamp bool
	sink      Sink
}

// NewSinkLogger returns a SinkLogger passing logs at level or above to sink.
// If timestamp is true, a UTC timestamp is prepended to each line.
func NewSinkLogger(level Level, timestamp bool, sink Sink) *SinkLogger {
	return &SinkLogger{
		level:     level,
		timestamp: timestamp,
		sink:      sink,
	}
}

// Log sends a log to the sink.
func (l *SinkLogger) Log(level Level, ts time.Time, msg string) {
	if level < l.level {
		return
	}
	var stamp string
	if l.timestamp {
		stamp = ts.UTC().Format(timestampLayout)
	}
	for _, line := range strings.Split(strings.TrimSuffix(msg, "\n"), "\n") {
		l.sink.Log(stamp + strings.TrimSuffix(line, "\r"))
	}
}

// Sink is a destination of log lines, e.g. the console or a per-test log file.
type Sink interface {
	// Log gets called for a log line.
	Log(line string)
}

// sgrRE matches the ANSI colour sequences used for PASS/FAIL/SKIP labels.
var sgrRE = regexp.MustCompile("\x1b\\[[0-9;]*m")

// WriterSink is a Sink writing one line per log to an io.Writer.
// Writes are serialized.
type WriterSink struct {
	w     io.Writer
	plain bool
	mu    sync.Mutex
}

// NewWriterSink returns a WriterSink writing to w as is. Use it for the
// console.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// NewFileSink returns a WriterSink writing to w with colour sequences
// removed. Use it for log files under the results dir, which are read with
// less or attached to bug reports.
func NewFileSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w, plain: true}
}

// Log writes line followed by a newline.
func (s *WriterSink) Log(line string) {
	if s.plain {
		line = sgrRE.ReplaceAllString(line, "")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, line)
}
