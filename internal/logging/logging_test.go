// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package logging_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/esp32evse/unityhost/internal/logging"
	"github.com/esp32evse/unityhost/internal/logging/loggingtest"
)

func TestMultiLogger(t *testing.T) {
	logger1 := loggingtest.NewLogger(t, logging.LevelInfo)
	logger2 := loggingtest.NewLogger(t, logging.LevelInfo)

	logger := logging.NewMultiLogger(logger1)
	logger.Log(logging.LevelInfo, time.Time{}, "aaa")
	logger.AddLogger(logger2)
	logger.Log(logging.LevelInfo, time.Time{}, "bbb")
	logger.RemoveLogger(logger1)
	logger.Log(logging.LevelInfo, time.Time{}, "ccc")

	if diff := cmp.Diff(logger1.Logs(), []string{"aaa", "bbb"}); diff != "" {
		t.Errorf("Messages mismatch for logger1 (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(logger2.Logs(), []string{"bbb", "ccc"}); diff != "" {
		t.Errorf("Messages mismatch for logger2 (-got +want):\n%s", diff)
	}
}

func TestSinkLogger(t *testing.T) {
	var b bytes.Buffer
	logger := logging.NewSinkLogger(logging.LevelInfo, true, logging.NewWriterSink(&b))

	logger.Log(logging.LevelDebug, time.Unix(0, 0), "dropped")
	logger.Log(logging.LevelInfo, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), "kept")

	const want = "2024-05-01T12:00:00.000000Z kept\n"
	if got := b.String(); got != want {
		t.Errorf("Sink got %q; want %q", got, want)
	}
}

func TestSinkLoggerSplitsLines(t *testing.T) {
	var b bytes.Buffer
	logger := logging.NewSinkLogger(logging.LevelDebug, true, logging.NewWriterSink(&b))

	logger.Log(logging.LevelDebug, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		"Stack trace:\nmain.go:12\r\nrunner.go:34\n")

	const want = "2024-05-01T12:00:00.000000Z Stack trace:\n" +
		"2024-05-01T12:00:00.000000Z main.go:12\n" +
		"2024-05-01T12:00:00.000000Z runner.go:34\n"
	if got := b.String(); got != want {
		t.Errorf("Sink got %q; want %q", got, want)
	}
}

func TestFileSinkStripsColors(t *testing.T) {
	const msg = "unityapp.RunAll \x1b[31m[ FAIL ]\x1b[0m 1 Tests 1 Failures"
	for _, tc := range []struct {
		name string
		sink func(w *bytes.Buffer) logging.Sink
		want string
	}{
		{"console", func(w *bytes.Buffer) logging.Sink { return logging.NewWriterSink(w) }, msg + "\n"},
		{"file", func(w *bytes.Buffer) logging.Sink { return logging.NewFileSink(w) }, "unityapp.RunAll [ FAIL ] 1 Tests 1 Failures\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var b bytes.Buffer
			logging.NewSinkLogger(logging.LevelInfo, false, tc.sink(&b)).Log(logging.LevelInfo, time.Time{}, msg)
			if got := b.String(); got != tc.want {
				t.Errorf("Sink got %q; want %q", got, tc.want)
			}
		})
	}
}

func TestFuncLogger(t *testing.T) {
	var levels []logging.Level
	var msgs []string
	logger := logging.NewFuncLogger(func(level logging.Level, ts time.Time, msg string) {
		levels = append(levels, level)
		msgs = append(msgs, msg)
	})
	logger.Log(logging.LevelDebug, time.UnixMilli(1), "foo")
	logger.Log(logging.LevelInfo, time.UnixMilli(2), "bar")

	if diff := cmp.Diff(levels, []logging.Level{logging.LevelDebug, logging.LevelInfo}); diff != "" {
		t.Errorf("Levels mismatch (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(msgs, []string{"foo", "bar"}); diff != "" {
		t.Errorf("Messages mismatch (-got +want):\n%s", diff)
	}
}

func TestContextPropagation(t *testing.T) {
	parent := loggingtest.NewLogger(t, logging.LevelDebug)
	child := loggingtest.NewLogger(t, logging.LevelDebug)
	isolated := loggingtest.NewLogger(t, logging.LevelDebug)

	ctx := logging.AttachLogger(context.Background(), parent)
	childCtx := logging.AttachLogger(ctx, child)
	isolatedCtx := logging.AttachLoggerNoPropagation(ctx, isolated)

	logging.Info(ctx, "to parent")
	logging.Debugf(logging.WithPrefix(childCtx, "[dut] "), "line %d", 1)
	logging.Infof(isolatedCtx, "only %s", "isolated")
	logging.Info(context.Background(), "nowhere")

	if diff := cmp.Diff(parent.Logs(), []string{"to parent", "[dut] line 1"}); diff != "" {
		t.Errorf("Parent logs mismatch (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(child.Logs(), []string{"[dut] line 1"}); diff != "" {
		t.Errorf("Child logs mismatch (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(isolated.Logs(), []string{"only isolated"}); diff != "" {
		t.Errorf("Isolated logs mismatch (-got +want):\n%s", diff)
	}
	if logging.HasLogger(context.Background()) {
		t.Error("HasLogger(Background) = true; want false")
	}
}

func TestReplaceInvalidUTF8(t *testing.T) {
	if got, want := logging.ReplaceInvalidUTF8("ok\xff\xfe done"), "ok done"; got != want {
		t.Errorf("ReplaceInvalidUTF8 = %q; want %q", got, want)
	}
}

func TestTestLoggerHas(t *testing.T) {
	logger := loggingtest.NewLogger(t, logging.LevelInfo)
	ctx := logging.AttachLogger(context.Background(), logger)
	logging.Debug(logging.WithPrefix(ctx, "[dut] "), "Guru Meditation Error")
	logging.Info(ctx, "1 passed, 0 failed, 0 skipped")

	if !logger.Has("0 failed") {
		t.Errorf("Has(%q) = false; logs:\n%s", "0 failed", logger.String())
	}
	if logger.Has("Guru Meditation") {
		t.Error("Has matched a log below the logger's level")
	}
}
