// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package dut

import (
	"context"
	"os"
	"os/exec"

	"github.com/creack/pty"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/esp32evse/unityhost/errors"
)

// execTransport is the console of a local process running on a
// pseudo-terminal, e.g. qemu-system-xtensa with -nographic.
type execTransport struct {
	t   *Target
	cmd *exec.Cmd
	f   *os.File
}

func dialExec(ctx context.Context, t *Target) (*execTransport, error) {
	// The process outlives ctx, which only bounds connecting.
	cmd := exec.Command(t.Path, t.Args...)
	f, err := pty.Start(cmd)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to start %s", t.Path)
	}
	// Raw mode stops the terminal from echoing console input back as output.
	if _, err := terminal.MakeRaw(int(f.Fd())); err != nil {
		f.Close()
		cmd.Process.Kill()
		cmd.Wait()
		return nil, errors.Wrap(err, "failed to put pty in raw mode")
	}
	return &execTransport{t: t, cmd: cmd, f: f}, nil
}

func (e *execTransport) Read(p []byte) (int, error)  { return e.f.Read(p) }
func (e *execTransport) Write(p []byte) (int, error) { return e.f.Write(p) }
func (e *execTransport) String() string              { return e.t.String() }

func (e *execTransport) Close() error {
	err := e.f.Close()
	if e.cmd.ProcessState == nil {
		e.cmd.Process.Kill()
	}
	e.cmd.Wait()
	return err
}
