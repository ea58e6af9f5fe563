// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package dut

import (
	"context"
	"net"

	"github.com/esp32evse/unityhost/errors"
)

// tcpTransport is a DUT console exported as a raw TCP port, e.g. by ser2net
// on a bench host.
type tcpTransport struct {
	net.Conn
	t *Target
}

func dialTCP(ctx context.Context, t *Target) (*tcpTransport, error) {
	d := net.Dialer{Timeout: connectTimeout}
	conn, err := d.DialContext(ctx, "tcp", t.Host)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", t.Host)
	}
	return &tcpTransport{Conn: conn, t: t}, nil
}

func (c *tcpTransport) String() string { return c.t.String() }
