// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package remote

import (
	"context"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/pingcap/log"
	"github.com/pvsune/redpanda/pkg/errors"
	"go.uber.org/zap"
)

// LocalAccount runs commands on the machine the harness runs on. It is used
// for single-box clusters and in tests.
type LocalAccount struct {
	hostname string
}

// NewLocalAccount creates an account for the local host.
func NewLocalAccount() *LocalAccount {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "localhost"
	}
	return &LocalAccount{hostname: hostname}
}

// Hostname implements Account.
func (a *LocalAccount) Hostname() string {
	return a.hostname
}

// Capture implements Account.
func (a *LocalAccount) Capture(ctx context.Context, cmd string, timeout time.Duration) (*Lines, error) {
	c := exec.Command("bash", "-c", cmd)
	// own process group, so abort takes the whole pipeline down.
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stderr := newTailBuffer(stderrTailBytes)
	c.Stderr = stderr
	stdout, err := c.StdoutPipe()
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := c.Start(); err != nil {
		err = errors.ErrRemoteCommand.GenWithStackByArgs(a.hostname, -1, err.Error())
		observeCommand(a.hostname, commandTypeCapture, err)
		return nil, err
	}
	log.Debug("local command started",
		zap.String("host", a.hostname),
		zap.Int("pid", c.Process.Pid),
		zap.String("command", cmd))

	wait := func() error {
		err := a.exitError(c.Wait(), stderr)
		observeCommand(a.hostname, commandTypeCapture, err)
		return err
	}
	abort := func() error {
		if err := syscall.Kill(-c.Process.Pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
			return errors.Trace(err)
		}
		return nil
	}
	return NewLines(ctx, a.hostname, stdout, timeout, wait, abort), nil
}

// KillProcess implements Account.
func (a *LocalAccount) KillProcess(ctx context.Context, name string, cleanShutdown bool) error {
	args := killArgs(name, cleanShutdown)
	output, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
	status := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			err = errors.ErrRemoteCommand.GenWithStackByArgs(a.hostname, -1, err.Error())
			observeCommand(a.hostname, commandTypeKill, err)
			return err
		}
		status = exitErr.ExitCode()
	}
	err = killError(a.hostname, name, status, string(output))
	observeCommand(a.hostname, commandTypeKill, err)
	return err
}

// Close implements Account.
func (a *LocalAccount) Close() error {
	return nil
}

func (a *LocalAccount) exitError(err error, stderr *tailBuffer) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return errors.ErrRemoteCommand.GenWithStackByArgs(a.hostname, exitErr.ExitCode(), stderr.String())
	}
	return errors.ErrRemoteCommand.GenWithStackByArgs(a.hostname, -1, err.Error())
}
