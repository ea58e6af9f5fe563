// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package dut provides a line-oriented session with a DUT ("Device Under
// Test") running Unity unit tests, for use by host tests.
package dut

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/esp32evse/unityhost/errors"
	"github.com/esp32evse/unityhost/internal/logging"
)

// maxLineLen is the longest DUT output line kept in one piece. Longer lines
// are split into chunks of this size.
const maxLineLen = 64 * 1024

var (
	// ErrTimeout is wrapped by errors returned when expected output did not
	// appear in time.
	ErrTimeout = errors.New("timed out waiting for DUT output")

	// ErrClosed is wrapped by errors returned when the DUT output stream
	// ended before expected output appeared.
	ErrClosed = errors.New("DUT output stream closed")
)

// Session reads DUT output line by line and writes console input to the DUT.
//
// Lines are queued as they arrive. Expect and its variants consume queued
// lines up to and including the matching one; lines read while nobody is
// waiting are kept until the next call.
type Session struct {
	tr     Transport
	clk    clock.Clock
	rawLog io.Writer

	mu      sync.Mutex
	lines   []string
	readErr error         // set when the pump stops
	notify  chan struct{} // signaled when lines or readErr change

	eg      errgroup.Group
	closing atomic.Bool
}

// Option customizes a Session.
type Option func(*Session)

// WithClock makes the session measure Expect timeouts with clk.
func WithClock(clk clock.Clock) Option {
	return func(s *Session) { s.clk = clk }
}

// WithRawLog mirrors every DUT output line to w.
func WithRawLog(w io.Writer) Option {
	return func(s *Session) { s.rawLog = w }
}

// NewSession starts reading tr. DUT output lines are logged at the debug
// level via ctx. The session owns tr and closes it in Close.
func NewSession(ctx context.Context, tr Transport, opts ...Option) *Session {
	s := &Session{
		tr:     tr,
		clk:    clock.NewClock(),
		notify: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	ctx = logging.WithPrefix(ctx, fmt.Sprintf("[%v] ", tr))
	s.eg.Go(func() error { return s.pump(ctx) })
	return s
}

// String returns the transport description, e.g. "serial:///dev/ttyUSB0".
func (s *Session) String() string {
	return s.tr.String()
}

func (s *Session) pump(ctx context.Context) error {
	sc := bufio.NewScanner(s.tr)
	sc.Buffer(make([]byte, 4096), maxLineLen)
	sc.Split(scanLinesSplitLong)
	for sc.Scan() {
		line := logging.ReplaceInvalidUTF8(strings.TrimRight(sc.Text(), "\r"))
		logging.Debug(ctx, line)
		if s.rawLog != nil {
			fmt.Fprintln(s.rawLog, line)
		}
		s.push(line)
	}

	err := sc.Err()
	if s.closing.Load() {
		s.stop(errors.Wrapf(ErrClosed, "session %v closed", s.tr))
		return nil
	}
	if err == nil {
		s.stop(errors.Wrapf(ErrClosed, "end of output from %v", s.tr))
		return nil
	}
	s.stop(errors.Wrapf(ErrClosed, "failed to read from %v: %v", s.tr, err))
	return errors.Wrapf(err, "failed to read from %v", s.tr)
}

// scanLinesSplitLong is bufio.ScanLines, except that a line that does not
// fit in the buffer is returned in maxLineLen chunks instead of failing
// with bufio.ErrTooLong. Crashing firmware may print megabytes without a
// newline.
func scanLinesSplitLong(data []byte, atEOF bool) (advance int, token []byte, err error) {
	advance, token, err = bufio.ScanLines(data, atEOF)
	if advance == 0 && token == nil && err == nil && len(data) >= maxLineLen {
		return maxLineLen, data[:maxLineLen], nil
	}
	return advance, token, err
}

func (s *Session) push(line string) {
	s.mu.Lock()
	s.lines = append(s.lines, line)
	s.mu.Unlock()
	s.signal()
}

func (s *Session) stop(err error) {
	s.mu.Lock()
	s.readErr = err
	s.mu.Unlock()
	s.signal()
}

func (s *Session) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// next pops the oldest queued line. If the queue is empty, it returns the
// pump's terminal error, which is nil while the pump is still running.
func (s *Session) next() (line string, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.lines) > 0 {
		line, s.lines = s.lines[0], s.lines[1:]
		return line, true, nil
	}
	return "", false, s.readErr
}

// deadline bounds one or more consume calls by a single timeout.
type deadline struct {
	c       <-chan time.Time // nil if only the context bounds the wait
	timeout time.Duration
	stop    func()
}

// newDeadline starts a deadline timeout from now. A non-positive timeout
// means that only the context bounds the wait. Callers must call stop.
func (s *Session) newDeadline(timeout time.Duration) *deadline {
	if timeout <= 0 {
		return &deadline{stop: func() {}}
	}
	timer := s.clk.NewTimer(timeout)
	return &deadline{c: timer.C(), timeout: timeout, stop: func() { timer.Stop() }}
}

// consume passes lines to f until f returns true or d expires.
func (s *Session) consume(ctx context.Context, d *deadline, f func(line string) bool) error {
	for {
		line, ok, err := s.next()
		if ok {
			if f(line) {
				return nil
			}
			continue
		}
		if err != nil {
			return err
		}
		select {
		case <-s.notify:
		case <-d.c:
			return errors.Wrapf(ErrTimeout, "nothing matched within %v", d.timeout)
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "gave up waiting for DUT output")
		}
	}
}

// Match describes the line matched by Expect.
type Match struct {
	// Index is the position of the matching pattern in the Expect call.
	Index int
	// Line is the whole matching line.
	Line string
	// Groups holds the submatches, Groups[0] being the matched text.
	Groups []string
}

// Expect consumes DUT output until a line matches one of patterns.
//
// It fails with an error wrapping ErrTimeout if nothing matches within
// timeout, or ErrClosed if the output ends first.
func (s *Session) Expect(ctx context.Context, timeout time.Duration, patterns ...*regexp.Regexp) (*Match, error) {
	d := s.newDeadline(timeout)
	defer d.stop()
	return s.expect(ctx, d, patterns...)
}

func (s *Session) expect(ctx context.Context, d *deadline, patterns ...*regexp.Regexp) (*Match, error) {
	if len(patterns) == 0 {
		return nil, errors.New("no patterns given")
	}
	var m *Match
	if err := s.consume(ctx, d, func(line string) bool {
		for i, re := range patterns {
			if g := re.FindStringSubmatch(line); g != nil {
				m = &Match{Index: i, Line: line, Groups: g}
				return true
			}
		}
		return false
	}); err != nil {
		return nil, errors.Wrapf(err, "failed to expect %v", patterns)
	}
	return m, nil
}

// WriteLine sends line followed by a newline to the DUT console.
func (s *Session) WriteLine(ctx context.Context, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logging.Debugf(ctx, "[%v] > %s", s.tr, line)
	if _, err := io.WriteString(s.tr, line+"\n"); err != nil {
		return errors.Wrapf(err, "failed to write to %v", s.tr)
	}
	return nil
}

// HardReset restarts the DUT if the transport can do so.
func (s *Session) HardReset(ctx context.Context) error {
	r, ok := s.tr.(Resetter)
	if !ok {
		return errors.Errorf("%v cannot reset the DUT", s.tr)
	}
	logging.Infof(ctx, "Resetting DUT at %v", s.tr)
	return r.Reset(ctx)
}

// Close closes the transport and waits for the reader to stop.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	var result *multierror.Error
	if s.closing.CompareAndSwap(false, true) {
		if err := s.tr.Close(); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "failed to close %v", s.tr))
		}
	}
	if err := s.eg.Wait(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
