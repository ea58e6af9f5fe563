// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package dut

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"

	"github.com/esp32evse/unityhost/errors"
)

// portLock is an exclusive flock on a per-device lock file. It keeps two
// unityhost processes from reading the same serial device, which would
// split the DUT output between them.
type portLock struct {
	f *os.File
}

func lockPath(dev, dir string) string {
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "unityhost-"+filepath.Base(dev)+".lock")
}

func lockPort(dev, dir string) (*portLock, error) {
	p := lockPath(dev, dir)
	f, err := os.OpenFile(p, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open lock file for %s", dev)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, errors.Errorf("%s is in use by another unityhost process (lock %s)", dev, p)
		}
		return nil, errors.Wrapf(err, "failed to lock %s", p)
	}
	return &portLock{f: f}, nil
}

func (l *portLock) release() {
	if l == nil || l.f == nil {
		return
	}
	unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	l.f.Close()
	l.f = nil
}

// portHolders lists processes that have dev open, e.g. a forgotten
// "idf.py monitor". Processes that cannot be inspected are skipped.
func portHolders(ctx context.Context, dev string) []string {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil
	}
	var holders []string
	for _, p := range procs {
		files, err := p.OpenFilesWithContext(ctx)
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.Path != dev {
				continue
			}
			name, _ := p.NameWithContext(ctx)
			holders = append(holders, fmt.Sprintf("%s (pid %d)", name, p.Pid))
			break
		}
	}
	return holders
}
