// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package dut

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/esp32evse/unityhost/errors"
)

// Schemes of supported targets.
const (
	SchemeSerial = "serial" // serial:///dev/ttyUSB0?baud=115200
	SchemeTCP    = "tcp"    // tcp://host:port, e.g. a ser2net raw port
	SchemeSSH    = "ssh"    // ssh://user@host[:port]/dev/ttyUSB0?baud=115200
	SchemeDocker = "docker" // docker://container, e.g. an ESP32 QEMU container
	SchemeExec   = "exec"   // exec:///path/to/emulator?arg=a&arg=b
)

const (
	defaultBaud    = 115200
	defaultSSHPort = "22"
)

// Target describes how to reach the DUT console.
type Target struct {
	Scheme string
	// User is the SSH user.
	User string
	// Host is host:port for tcp and ssh, or the container for docker.
	Host string
	// Path is the serial device for serial and ssh, or the executable for exec.
	Path string
	// Baud is the serial line speed for serial and ssh.
	Baud int
	// Args are the arguments of the exec executable.
	Args []string
}

// ParseTarget parses a target URL. A bare device path such as /dev/ttyUSB0 is
// accepted as a serial target.
func ParseTarget(s string) (*Target, error) {
	if strings.HasPrefix(s, "/") {
		s = SchemeSerial + "://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, errors.Wrapf(err, "bad target %q", s)
	}
	q := u.Query()
	t := &Target{Scheme: u.Scheme}

	switch u.Scheme {
	case SchemeSerial:
		t.Path = u.Path
		if t.Path == "" {
			return nil, errors.Errorf("serial target %q has no device path", s)
		}
		if t.Baud, err = parseBaud(q.Get("baud")); err != nil {
			return nil, err
		}
	case SchemeTCP:
		if _, port, err := net.SplitHostPort(u.Host); err != nil || port == "" {
			return nil, errors.Errorf("tcp target %q needs host:port", s)
		}
		t.Host = u.Host
	case SchemeSSH:
		if u.User == nil || u.User.Username() == "" {
			return nil, errors.Errorf("ssh target %q has no user", s)
		}
		if u.Hostname() == "" {
			return nil, errors.Errorf("ssh target %q has no host", s)
		}
		if u.Path == "" || u.Path == "/" {
			return nil, errors.Errorf("ssh target %q has no device path", s)
		}
		t.User = u.User.Username()
		t.Host = u.Host
		if u.Port() == "" {
			t.Host = net.JoinHostPort(u.Hostname(), defaultSSHPort)
		}
		t.Path = u.Path
		if t.Baud, err = parseBaud(q.Get("baud")); err != nil {
			return nil, err
		}
	case SchemeDocker:
		if u.Host == "" {
			return nil, errors.Errorf("docker target %q has no container", s)
		}
		t.Host = u.Host
	case SchemeExec:
		if u.Path == "" {
			return nil, errors.Errorf("exec target %q has no executable", s)
		}
		t.Path = u.Path
		t.Args = q["arg"]
	default:
		return nil, errors.Errorf("unsupported target scheme %q in %q", u.Scheme, s)
	}
	return t, nil
}

func parseBaud(s string) (int, error) {
	if s == "" {
		return defaultBaud, nil
	}
	baud, err := strconv.Atoi(s)
	if err != nil || baud <= 0 {
		return 0, errors.Errorf("bad baud rate %q", s)
	}
	return baud, nil
}

// String returns t in URL form.
func (t *Target) String() string {
	u := url.URL{Scheme: t.Scheme}
	q := url.Values{}
	switch t.Scheme {
	case SchemeSerial:
		u.Path = t.Path
		if t.Baud != defaultBaud {
			q.Set("baud", strconv.Itoa(t.Baud))
		}
	case SchemeTCP, SchemeDocker:
		u.Host = t.Host
	case SchemeSSH:
		u.User = url.User(t.User)
		u.Host = t.Host
		u.Path = t.Path
		if t.Baud != defaultBaud {
			q.Set("baud", strconv.Itoa(t.Baud))
		}
	case SchemeExec:
		u.Path = t.Path
		for _, a := range t.Args {
			q.Add("arg", a)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
