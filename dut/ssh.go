// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package dut

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/crypto/ssh"

	"github.com/esp32evse/unityhost/errors"
	"github.com/esp32evse/unityhost/internal/shutil"
)

// sshTransport is a DUT console attached to the serial device of a remote
// bench host. The host must have socat installed.
type sshTransport struct {
	t      *Target
	client *ssh.Client
	sess   *ssh.Session
	stdin  io.WriteCloser
	stdout io.Reader
}

// consoleCommand returns the remote command bridging stdio to dev.
func consoleCommand(dev string, baud int) string {
	return shutil.Command("socat", "-,raw,echo=0", fmt.Sprintf("FILE:%s,b%d,raw,echo=0", dev, baud))
}

func dialSSH(ctx context.Context, t *Target, opts *DialOptions) (*sshTransport, error) {
	if opts.KeyFile == "" {
		return nil, errors.New("ssh targets need a key file")
	}
	key, err := os.ReadFile(opts.KeyFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read SSH key")
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse SSH key %s", opts.KeyFile)
	}
	cfg := &ssh.ClientConfig{
		User: t.User,
		Auth: []ssh.AuthMethod{ssh.PublicKeys(signer)},
		// Bench hosts are reimaged often and are reached on a lab network.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         connectTimeout,
	}

	d := net.Dialer{Timeout: connectTimeout}
	conn, err := d.DialContext(ctx, "tcp", t.Host)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", t.Host)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, t.Host, cfg)
	if err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "SSH handshake with %s failed", t.Host)
	}
	client := ssh.NewClient(c, chans, reqs)

	tr, err := startConsole(client, t)
	if err != nil {
		client.Close()
		return nil, err
	}
	return tr, nil
}

func startConsole(client *ssh.Client, t *Target) (*sshTransport, error) {
	sess, err := client.NewSession()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open SSH session")
	}
	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		return nil, errors.Wrap(err, "failed to get stdin")
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		return nil, errors.Wrap(err, "failed to get stdout")
	}
	cmd := consoleCommand(t.Path, t.Baud)
	if err := sess.Start(cmd); err != nil {
		sess.Close()
		return nil, errors.Wrapf(err, "failed to run %q", cmd)
	}
	return &sshTransport{t: t, client: client, sess: sess, stdin: stdin, stdout: stdout}, nil
}

func (s *sshTransport) Read(p []byte) (int, error)  { return s.stdout.Read(p) }
func (s *sshTransport) Write(p []byte) (int, error) { return s.stdin.Write(p) }
func (s *sshTransport) String() string              { return s.t.String() }

func (s *sshTransport) Close() error {
	var result *multierror.Error
	if err := s.stdin.Close(); err != nil && err != io.EOF {
		result = multierror.Append(result, err)
	}
	if err := s.sess.Close(); err != nil && err != io.EOF {
		result = multierror.Append(result, err)
	}
	if err := s.client.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
