// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package dut

import (
	"context"
	"io"
	"time"

	"github.com/esp32evse/unityhost/errors"
	"github.com/esp32evse/unityhost/internal/logging"
)

const connectTimeout = 10 * time.Second

// Transport is a byte stream to and from the DUT console.
type Transport interface {
	io.ReadWriteCloser
	// String describes the transport for logs, usually as a target URL.
	String() string
}

// Resetter is implemented by transports that can hard-reset the DUT.
type Resetter interface {
	Reset(ctx context.Context) error
}

// DialOptions holds transport settings that are not part of a target URL.
type DialOptions struct {
	// KeyFile is the private key used by ssh targets.
	KeyFile string
	// LockDir holds lock files guarding serial devices. Defaults to the
	// system temporary directory.
	LockDir string
}

// Dial connects to the DUT console described by t.
func Dial(ctx context.Context, t *Target, opts *DialOptions) (Transport, error) {
	if opts == nil {
		opts = &DialOptions{}
	}
	logging.Debugf(ctx, "Connecting to %v", t)
	var (
		tr  Transport
		err error
	)
	switch t.Scheme {
	case SchemeSerial:
		tr, err = dialSerial(ctx, t, opts)
	case SchemeTCP:
		tr, err = dialTCP(ctx, t)
	case SchemeSSH:
		tr, err = dialSSH(ctx, t, opts)
	case SchemeDocker:
		tr, err = dialDocker(ctx, t)
	case SchemeExec:
		tr, err = dialExec(ctx, t)
	default:
		return nil, errors.Errorf("unsupported target scheme %q", t.Scheme)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %v", t)
	}
	return tr, nil
}

// Open dials t and starts a Session on the resulting transport.
func Open(ctx context.Context, t *Target, opts *DialOptions, sopts ...Option) (*Session, error) {
	tr, err := Dial(ctx, t, opts)
	if err != nil {
		return nil, err
	}
	return NewSession(ctx, tr, sopts...), nil
}
