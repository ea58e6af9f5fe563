// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package dut

import (
	"context"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/esp32evse/unityhost/errors"
)

// dockerTransport is the console of a running container, typically QEMU
// emulating an ESP32 with the test app image.
type dockerTransport struct {
	t    *Target
	cli  *client.Client
	resp types.HijackedResponse
	out  *io.PipeReader
}

func dialDocker(ctx context.Context, t *Target) (*dockerTransport, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Docker client")
	}
	info, err := cli.ContainerInspect(ctx, t.Host)
	if err != nil {
		cli.Close()
		return nil, errors.Wrapf(err, "failed to inspect container %s", t.Host)
	}
	if info.State == nil || !info.State.Running {
		cli.Close()
		return nil, errors.Errorf("container %s is not running", t.Host)
	}
	resp, err := cli.ContainerAttach(ctx, t.Host, types.ContainerAttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		cli.Close()
		return nil, errors.Wrapf(err, "failed to attach to container %s", t.Host)
	}

	pr, pw := io.Pipe()
	tty := info.Config != nil && info.Config.Tty
	go func() {
		var err error
		if tty {
			_, err = io.Copy(pw, resp.Reader)
		} else {
			// Without a TTY, stdout and stderr are multiplexed on one stream.
			_, err = stdcopy.StdCopy(pw, pw, resp.Reader)
		}
		pw.CloseWithError(err)
	}()
	return &dockerTransport{t: t, cli: cli, resp: resp, out: pr}, nil
}

func (d *dockerTransport) Read(p []byte) (int, error)  { return d.out.Read(p) }
func (d *dockerTransport) Write(p []byte) (int, error) { return d.resp.Conn.Write(p) }
func (d *dockerTransport) String() string              { return d.t.String() }

func (d *dockerTransport) Close() error {
	d.resp.Close()
	d.out.Close()
	return d.cli.Close()
}
