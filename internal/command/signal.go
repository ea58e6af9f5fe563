// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package command

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
)

var selfName = filepath.Base(os.Args[0])

// InstallSignalHandler installs a handler for SIGINT and SIGTERM that writes
// a message to out, calls callback, terminates child processes (socat,
// emulators started by exec targets) and exits with status 1.
func InstallSignalHandler(out io.Writer, callback func(sig os.Signal)) {
	ch := make(chan os.Signal, 1)
	go func() {
		sig := <-ch
		fmt.Fprintf(out, "\n%s: Caught %v signal; exiting\n", selfName, sig)
		callback(sig)
		if sig == unix.SIGTERM {
			// SIGTERM usually comes from a supervisor on timeout.
			dumpGoroutines(out)
		}
		terminateChildren(out, int32(os.Getpid()))
		os.Exit(1)
	}()
	signal.Notify(ch, unix.SIGINT, unix.SIGTERM)
}

func dumpGoroutines(out io.Writer) {
	fmt.Fprintf(out, "\n%s: Dumping all goroutines...\n\n", selfName)
	if p := pprof.Lookup("goroutine"); p != nil {
		p.WriteTo(out, 2)
	}
	fmt.Fprintf(out, "\n%s: Finished dumping goroutines\n", selfName)
}

// terminateChildren sends SIGTERM to all direct children of pid and returns
// their pids.
func terminateChildren(out io.Writer, pid int32) []int32 {
	procs, err := process.Processes()
	if err != nil {
		fmt.Fprintf(out, "Failed to terminate subprocesses: %v\n", err)
		return nil
	}
	var killed []int32
	for _, proc := range procs {
		ppid, err := proc.Ppid()
		if err != nil || ppid != pid {
			continue
		}
		if err := proc.Terminate(); err != nil {
			fmt.Fprintf(out, "Failed to terminate process %d: %v\n", proc.Pid, err)
			continue
		}
		killed = append(killed, proc.Pid)
	}
	return killed
}
