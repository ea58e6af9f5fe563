// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package dut

import (
	"context"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/esp32evse/unityhost/errors"
	"github.com/esp32evse/unityhost/internal/testingutil"
)

// resetPulse is how long EN is held low during a hard reset.
const resetPulse = 100 * time.Millisecond

// serialTransport is a DUT console on a local serial device, typically the
// USB-UART bridge of an ESP32 dev board.
type serialTransport struct {
	t    *Target
	port serial.Port
	lock *portLock
}

func dialSerial(ctx context.Context, t *Target, opts *DialOptions) (*serialTransport, error) {
	lock, err := lockPort(t.Path, opts.LockDir)
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(t.Path, &serial.Mode{BaudRate: t.Baud})
	if err != nil {
		lock.release()
		if holders := portHolders(ctx, t.Path); len(holders) > 0 {
			return nil, errors.Wrapf(err, "failed to open %s (held by %s)", t.Path, strings.Join(holders, ", "))
		}
		return nil, errors.Wrapf(err, "failed to open %s", t.Path)
	}
	return &serialTransport{t: t, port: port, lock: lock}, nil
}

func (s *serialTransport) Read(p []byte) (int, error)  { return s.port.Read(p) }
func (s *serialTransport) Write(p []byte) (int, error) { return s.port.Write(p) }
func (s *serialTransport) String() string              { return s.t.String() }

func (s *serialTransport) Close() error {
	err := s.port.Close()
	s.lock.release()
	return err
}

// Reset pulses EN low through RTS while keeping IO0 high through DTR, the
// wiring used by ESP32 dev boards, so the chip reboots into the app.
func (s *serialTransport) Reset(ctx context.Context) error {
	if err := s.port.SetDTR(false); err != nil {
		return errors.Wrap(err, "failed to release DTR")
	}
	if err := s.port.SetRTS(true); err != nil {
		return errors.Wrap(err, "failed to assert RTS")
	}
	if err := s.port.ResetInputBuffer(); err != nil {
		return errors.Wrap(err, "failed to flush input")
	}
	if err := testingutil.Sleep(ctx, resetPulse); err != nil {
		return err
	}
	if err := s.port.SetRTS(false); err != nil {
		return errors.Wrap(err, "failed to release RTS")
	}
	return nil
}
