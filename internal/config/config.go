// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package config contains the configuration of a unityhost run.
package config

import (
	"flag"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/exp/slices"

	"github.com/esp32evse/unityhost/dut"
	"github.com/esp32evse/unityhost/errors"
	"github.com/esp32evse/unityhost/internal/command"
)

// Mode describes the action to perform.
type Mode int

const (
	// RunTestsMode indicates that tests should be run and their results reported.
	RunTestsMode Mode = iota
	// ListTestsMode indicates that tests should only be listed.
	ListTestsMode
)

// Environment variables read by DeriveDefaults.
const (
	TargetEnv   = "UNITYHOST_TARGET"
	TestNameEnv = "UNITYHOST_TEST_NAME"
	ResDirEnv   = "UNITYHOST_RESULTSDIR"
)

const defaultEnvFile = ".env"

// MutableConfig is a mutable version of Config. It is filled in by SetFlags,
// then by DeriveDefaults, and frozen before use.
type MutableConfig struct {
	Mode       Mode
	Target     string
	Patterns   []string
	ResDir     string
	ConfigFile string
	EnvFiles   []string

	// TestName is the Unity test case to bind to the test_name input.
	// nil means no name was configured.
	TestName *string

	TestTimeout   time.Duration
	ExpectTimeout time.Duration
	Reset         bool
	KeyFile       string
	LockDir       string
	CacheDir      string

	flags         *flag.FlagSet // set by SetFlags
	targetArg     bool          // Target was given as a positional argument
	resDirDefault bool          // ResDir was derived from CacheDir
}

// NewMutableConfig returns a MutableConfig for mode with built-in defaults.
func NewMutableConfig(mode Mode) *MutableConfig {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	return &MutableConfig{
		Mode:          mode,
		ExpectTimeout: dut.DefaultUnityTimeout,
		CacheDir:      filepath.Join(cacheDir, "unityhost"),
	}
}

// SetFlags adds common run-related flags to f that store values in c.
func (c *MutableConfig) SetFlags(f *flag.FlagSet) {
	c.flags = f
	f.StringVar(&c.ConfigFile, "config", "", "YAML file with default settings")
	f.Var(command.NewListFlag(",", func(v []string) { c.EnvFiles = v }, nil), "env",
		"comma-separated .env files to read "+TargetEnv+" and friends from (default ./"+defaultEnvFile+" if present)")
	f.StringVar(&c.ResDir, "resultsdir", "", "directory for test results")
	f.StringVar(&c.LockDir, "lockdir", "", "directory for serial port lock files (default system temp dir)")

	if c.Mode == ListTestsMode {
		return
	}
	f.Var(command.NewOptionalStringFlag(&c.TestName), "test-name", "Unity test case to run in tests taking the test_name input (may be empty)")
	f.Var(command.NewDurationFlag(time.Second, &c.TestTimeout, 0), "timeout", "per-test timeout in seconds (0 uses each test's own)")
	f.Var(command.NewDurationFlag(time.Second, &c.ExpectTimeout, c.ExpectTimeout), "expecttimeout", "seconds to wait for a Unity summary")
	f.BoolVar(&c.Reset, "reset", false, "hard-reset the DUT before running tests")
	f.StringVar(&c.KeyFile, "keyfile", defaultKeyFile(), "private SSH key for ssh:// targets")
}

func defaultKeyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	kf := filepath.Join(home, ".ssh", "id_ed25519")
	if _, err := os.Stat(kf); err != nil {
		return ""
	}
	return kf
}

// SetArgs takes positional arguments: in RunTestsMode the first one is the
// target and the rest are test patterns; in ListTestsMode all are patterns.
func (c *MutableConfig) SetArgs(args []string) {
	if c.Mode == RunTestsMode && len(args) > 0 {
		c.Target = args[0]
		c.targetArg = true
		args = args[1:]
	}
	c.Patterns = slices.Clone(args)
}

// flagSet reports whether the named flag was given on the command line.
func (c *MutableConfig) flagSet(name string) bool {
	if c.flags == nil {
		return false
	}
	found := false
	c.flags.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// DeriveDefaults fills in values not given on the command line, first from
// the YAML config file, then from .env files and the environment, then from
// built-in defaults. It must be called after flags are parsed.
func (c *MutableConfig) DeriveDefaults() error {
	if c.ConfigFile != "" {
		fc, err := readFileConfig(c.ConfigFile)
		if err != nil {
			return err
		}
		c.applyFileConfig(fc)
	}

	env, err := readEnv(c.EnvFiles)
	if err != nil {
		return err
	}
	c.applyEnv(env)

	if c.ResDir == "" {
		c.ResDir = filepath.Join(c.CacheDir, "results", time.Now().Format("20060102-150405"))
		c.resDirDefault = true
	}
	if c.ExpectTimeout <= 0 {
		c.ExpectTimeout = dut.DefaultUnityTimeout
	}

	if c.Mode == RunTestsMode {
		if c.Target == "" {
			return errors.Errorf("no target given (pass it as an argument or set %s)", TargetEnv)
		}
		if _, err := dut.ParseTarget(c.Target); err != nil {
			return err
		}
	}
	return nil
}

// Freeze returns a frozen configuration. c must not be modified afterwards.
func (c *MutableConfig) Freeze() *Config {
	return &Config{m: c}
}

// Config describes a unityhost run. It is immutable.
type Config struct {
	m *MutableConfig
}

// Mode returns the action to perform.
func (c *Config) Mode() Mode { return c.m.Mode }

// Target returns the DUT target string.
func (c *Config) Target() string { return c.m.Target }

// Patterns returns the test patterns.
func (c *Config) Patterns() []string { return slices.Clone(c.m.Patterns) }

// ResDir returns the results directory.
func (c *Config) ResDir() string { return c.m.ResDir }

// ResDirIsDefault reports whether ResDir was generated under the cache
// directory rather than given by a flag, the YAML file or the environment.
func (c *Config) ResDirIsDefault() bool { return c.m.resDirDefault }

// TestName returns the configured Unity test case name, or nil if none.
func (c *Config) TestName() *string {
	if c.m.TestName == nil {
		return nil
	}
	n := *c.m.TestName
	return &n
}

// TestTimeout returns the per-test timeout override, or 0.
func (c *Config) TestTimeout() time.Duration { return c.m.TestTimeout }

// ExpectTimeout returns how long to wait for a Unity summary.
func (c *Config) ExpectTimeout() time.Duration { return c.m.ExpectTimeout }

// Reset reports whether the DUT should be reset before tests run.
func (c *Config) Reset() bool { return c.m.Reset }

// DialOptions returns options for connecting to the target.
func (c *Config) DialOptions() *dut.DialOptions {
	return &dut.DialOptions{KeyFile: c.m.KeyFile, LockDir: c.m.LockDir}
}
