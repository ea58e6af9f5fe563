// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package dut

import (
	"bytes"
	"context"
	"io"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/google/go-cmp/cmp"

	"github.com/esp32evse/unityhost/errors"
	"github.com/esp32evse/unityhost/internal/logging"
	"github.com/esp32evse/unityhost/internal/logging/loggingtest"
)

// fakeTransport is a Transport fed by the test through a pipe.
type fakeTransport struct {
	r *io.PipeReader
	w *io.PipeWriter

	mu      sync.Mutex
	written bytes.Buffer
	resets  int
}

func newFakeTransport() *fakeTransport {
	r, w := io.Pipe()
	return &fakeTransport{r: r, w: w}
}

func (f *fakeTransport) Read(p []byte) (int, error) { return f.r.Read(p) }

func (f *fakeTransport) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written.Write(p)
}

func (f *fakeTransport) Close() error {
	f.r.Close()
	return nil
}

func (f *fakeTransport) String() string { return "fake://dut" }

func (f *fakeTransport) Reset(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return nil
}

func (f *fakeTransport) Written() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written.String()
}

// emit makes the DUT print lines. It blocks until the session read them.
func (f *fakeTransport) emit(t *testing.T, lines ...string) {
	t.Helper()
	if _, err := io.WriteString(f.w, strings.Join(lines, "\n")+"\n"); err != nil {
		t.Fatal("Failed to emit DUT output: ", err)
	}
}

// newTestSession returns a session on a fake transport driven by a fake clock.
func newTestSession(t *testing.T) (*Session, *fakeTransport, *fakeclock.FakeClock) {
	t.Helper()
	tr := newFakeTransport()
	clk := fakeclock.NewFakeClock(time.Unix(0, 0))
	s := NewSession(context.Background(), tr, WithClock(clk))
	t.Cleanup(func() { s.Close() })
	return s, tr, clk
}

func TestExpectConsumesUpToMatch(t *testing.T) {
	s, tr, _ := newTestSession(t)
	go tr.emit(t, "boot", "I (312) evse: ready", "tail")

	ctx := context.Background()
	m, err := s.Expect(ctx, time.Minute, regexp.MustCompile(`never`), regexp.MustCompile(`evse: (\w+)`))
	if err != nil {
		t.Fatal("Expect failed: ", err)
	}
	want := &Match{Index: 1, Line: "I (312) evse: ready", Groups: []string{"evse: ready", "ready"}}
	if diff := cmp.Diff(m, want); diff != "" {
		t.Errorf("Match mismatch (-got +want):\n%s", diff)
	}

	// Lines after the match stay queued for the next call.
	if m, err := s.Expect(ctx, time.Minute, regexp.MustCompile(`^tail$`)); err != nil {
		t.Error("Expect for the remaining line failed: ", err)
	} else if m.Line != "tail" {
		t.Errorf("Expect matched %q; want %q", m.Line, "tail")
	}
}

func TestExpectStripsCarriageReturns(t *testing.T) {
	s, tr, _ := newTestSession(t)
	go tr.emit(t, "OK\r")

	if _, err := s.Expect(context.Background(), time.Minute, regexp.MustCompile(`^OK$`)); err != nil {
		t.Error("Expect failed: ", err)
	}
}

func TestExpectSplitsOverlongLines(t *testing.T) {
	s, tr, _ := newTestSession(t)
	go tr.emit(t, strings.Repeat("x", maxLineLen+10), "OK")

	ctx := context.Background()
	m, err := s.Expect(ctx, time.Minute, regexp.MustCompile(`^x+$`))
	if err != nil {
		t.Fatal("Expect for the first chunk failed: ", err)
	}
	if len(m.Line) != maxLineLen {
		t.Errorf("First chunk has %d bytes; want %d", len(m.Line), maxLineLen)
	}
	if _, err := s.Expect(ctx, time.Minute, regexp.MustCompile(`^x{10}$`)); err != nil {
		t.Fatal("Expect for the rest of the line failed: ", err)
	}
	if _, err := s.Expect(ctx, time.Minute, regexp.MustCompile(`^OK$`)); err != nil {
		t.Error("Session stopped reading after an overlong line: ", err)
	}
}

func TestExpectTimeout(t *testing.T) {
	s, tr, clk := newTestSession(t)
	go tr.emit(t, "Running...")

	errc := make(chan error, 1)
	go func() {
		_, err := s.Expect(context.Background(), 5*time.Second, regexp.MustCompile(`never`))
		errc <- err
	}()
	clk.WaitForWatcherAndIncrement(5 * time.Second)

	if err := <-errc; !errors.Is(err, ErrTimeout) {
		t.Errorf("Expect returned %v; want ErrTimeout", err)
	}
}

func TestExpectClosedStream(t *testing.T) {
	s, tr, _ := newTestSession(t)
	go func() {
		tr.emit(t, "Guru Meditation Error: Core  0 panic'ed")
		tr.w.Close()
	}()

	_, err := s.Expect(context.Background(), time.Minute, regexp.MustCompile(`never`))
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Expect returned %v; want ErrClosed", err)
	}
}

func TestExpectContextCanceled(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Expect(ctx, time.Minute, regexp.MustCompile(`never`))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expect returned %v; want context.Canceled", err)
	}
}

func TestExpectNoPatterns(t *testing.T) {
	s, _, _ := newTestSession(t)
	if _, err := s.Expect(context.Background(), time.Minute); err == nil {
		t.Error("Expect with no patterns succeeded")
	}
}

func TestWriteLine(t *testing.T) {
	s, tr, _ := newTestSession(t)
	if err := s.WriteLine(context.Background(), `"Pilot error"`); err != nil {
		t.Fatal("WriteLine failed: ", err)
	}
	if got, want := tr.Written(), "\"Pilot error\"\n"; got != want {
		t.Errorf("DUT got %q; want %q", got, want)
	}
}

func TestHardReset(t *testing.T) {
	s, tr, _ := newTestSession(t)
	if err := s.HardReset(context.Background()); err != nil {
		t.Fatal("HardReset failed: ", err)
	}
	if tr.resets != 1 {
		t.Errorf("Transport reset %d times; want 1", tr.resets)
	}
}

func TestSessionLogsAndMirrorsOutput(t *testing.T) {
	logger := loggingtest.NewLogger(t, logging.LevelDebug)
	ctx := logging.AttachLogger(context.Background(), logger)

	var raw bytes.Buffer
	tr := newFakeTransport()
	s := NewSession(ctx, tr, WithRawLog(&raw))
	go func() {
		tr.emit(t, "hello")
		tr.w.Close()
	}()
	if _, err := s.Expect(ctx, time.Minute, regexp.MustCompile(`hello`)); err != nil {
		t.Fatal("Expect failed: ", err)
	}
	if err := s.Close(); err != nil {
		t.Error("Close failed: ", err)
	}

	if got, want := raw.String(), "hello\n"; got != want {
		t.Errorf("Raw log = %q; want %q", got, want)
	}
	if diff := cmp.Diff(logger.Logs(), []string{"[fake://dut] hello"}); diff != "" {
		t.Errorf("Logs mismatch (-got +want):\n%s", diff)
	}
}
