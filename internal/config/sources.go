// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/esp32evse/unityhost/errors"
)

// fileConfig is the schema of the YAML file given by -config.
// Durations are strings accepted by time.ParseDuration.
type fileConfig struct {
	Target        string   `yaml:"target"`
	Patterns      []string `yaml:"patterns"`
	ResultsDir    string   `yaml:"resultsdir"`
	TestName      *string  `yaml:"test_name"`
	Timeout       string   `yaml:"timeout"`
	ExpectTimeout string   `yaml:"expect_timeout"`
	Reset         *bool    `yaml:"reset"`
	KeyFile       string   `yaml:"keyfile"`
	LockDir       string   `yaml:"lockdir"`

	timeout       time.Duration
	expectTimeout time.Duration
}

func readFileConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}
	var fc fileConfig
	if err := yaml.UnmarshalStrict(b, &fc); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	for _, d := range []struct {
		name string
		s    string
		dst  *time.Duration
	}{
		{"timeout", fc.Timeout, &fc.timeout},
		{"expect_timeout", fc.ExpectTimeout, &fc.expectTimeout},
	} {
		if d.s == "" {
			continue
		}
		v, err := time.ParseDuration(d.s)
		if err != nil || v < 0 {
			return nil, errors.Errorf("%s: bad %s %q", path, d.name, d.s)
		}
		*d.dst = v
	}
	return &fc, nil
}

// applyFileConfig copies values from fc that were not given as flags.
func (c *MutableConfig) applyFileConfig(fc *fileConfig) {
	setString := func(flagName string, dst *string, v string) {
		if v != "" && !c.flagSet(flagName) {
			*dst = v
		}
	}
	if !c.targetArg && fc.Target != "" {
		c.Target = fc.Target
	}
	if len(c.Patterns) == 0 && len(fc.Patterns) > 0 {
		c.Patterns = fc.Patterns
	}
	setString("resultsdir", &c.ResDir, fc.ResultsDir)
	setString("keyfile", &c.KeyFile, fc.KeyFile)
	setString("lockdir", &c.LockDir, fc.LockDir)
	if fc.TestName != nil && !c.flagSet("test-name") {
		n := *fc.TestName
		c.TestName = &n
	}
	if fc.timeout != 0 && !c.flagSet("timeout") {
		c.TestTimeout = fc.timeout
	}
	if fc.expectTimeout != 0 && !c.flagSet("expecttimeout") {
		c.ExpectTimeout = fc.expectTimeout
	}
	if fc.Reset != nil && !c.flagSet("reset") {
		c.Reset = *fc.Reset
	}
}

// readEnv returns the variables defined in files, overridden by the process
// environment. With no files, ./.env is read if it exists.
func readEnv(files []string) (map[string]string, error) {
	if len(files) == 0 {
		if _, err := os.Stat(defaultEnvFile); err == nil {
			files = []string{defaultEnvFile}
		}
	}
	env := make(map[string]string)
	if len(files) > 0 {
		vals, err := godotenv.Read(files...)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %v", files)
		}
		env = vals
	}
	for _, k := range []string{TargetEnv, TestNameEnv, ResDirEnv} {
		if v, ok := os.LookupEnv(k); ok {
			env[k] = v
		}
	}
	return env, nil
}

// applyEnv copies values from env that were not given on the command line,
// overriding values from the YAML file.
func (c *MutableConfig) applyEnv(env map[string]string) {
	if v, ok := env[TargetEnv]; ok && v != "" && !c.targetArg {
		c.Target = v
	}
	// An empty variable is treated as unset, as for the target. An empty
	// name can still be given with -test-name= or in the YAML file.
	if v, ok := env[TestNameEnv]; ok && v != "" && !c.flagSet("test-name") {
		c.TestName = &v
	}
	if v, ok := env[ResDirEnv]; ok && v != "" && !c.flagSet("resultsdir") {
		c.ResDir = v
	}
}
