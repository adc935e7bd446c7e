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
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/pingcap/log"
	"github.com/pvsune/redpanda/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	defaultSSHPort           = 22
	defaultSSHConnectTimeout = 10 * time.Second
)

// SSHConfig describes how to reach a test node over ssh.
type SSHConfig struct {
	Host string
	Port int
	User string
	// KeyFile is a private key used for public key auth.
	KeyFile string
	// Password is used when no key file is given.
	Password string
	// KnownHostsFile enables host key verification. Test clusters are
	// usually throwaway machines, so it is optional.
	KnownHostsFile string
	ConnectTimeout time.Duration
}

func (c *SSHConfig) address() string {
	port := c.Port
	if port == 0 {
		port = defaultSSHPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

func (c *SSHConfig) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if c.KeyFile != "" {
		key, err := os.ReadFile(c.KeyFile)
		if err != nil {
			return nil, errors.Annotatef(err, "read ssh key %s", c.KeyFile)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, errors.Annotatef(err, "parse ssh key %s", c.KeyFile)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if c.Password != "" {
		auth = append(auth, ssh.Password(c.Password))
	}
	if len(auth) == 0 {
		return nil, errors.ErrInvalidConfig.GenWithStackByArgs("ssh node " + c.Host + " has neither key-file nor password")
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if c.KnownHostsFile != "" {
		cb, err := knownhosts.New(c.KnownHostsFile)
		if err != nil {
			return nil, errors.Annotatef(err, "load known hosts %s", c.KnownHostsFile)
		}
		hostKeyCallback = cb
	}

	timeout := c.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultSSHConnectTimeout
	}
	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}, nil
}

// SSHAccount runs commands on a remote node over a shared ssh connection.
// Every command gets its own session.
type SSHAccount struct {
	cfg       SSHConfig
	clientCfg *ssh.ClientConfig

	mu     sync.Mutex
	client *ssh.Client
}

// NewSSHAccount validates cfg. The connection is established lazily on
// the first command.
func NewSSHAccount(cfg SSHConfig) (*SSHAccount, error) {
	if cfg.Host == "" {
		return nil, errors.ErrInvalidConfig.GenWithStackByArgs("ssh node without host")
	}
	clientCfg, err := cfg.clientConfig()
	if err != nil {
		return nil, err
	}
	return &SSHAccount{cfg: cfg, clientCfg: clientCfg}, nil
}

// Hostname implements Account.
func (a *SSHAccount) Hostname() string {
	return a.cfg.Host
}

func (a *SSHAccount) getClient(ctx context.Context) (*ssh.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client != nil {
		return a.client, nil
	}

	addr := a.cfg.address()
	dialer := net.Dialer{Timeout: a.clientCfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.WrapError(errors.ErrRemoteConnect, err, addr)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, a.clientCfg)
	if err != nil {
		_ = conn.Close()
		return nil, errors.WrapError(errors.ErrRemoteConnect, err, addr)
	}
	a.client = ssh.NewClient(c, chans, reqs)
	log.Info("ssh connection established",
		zap.String("host", a.cfg.Host),
		zap.String("user", a.cfg.User),
		zap.String("addr", addr))
	return a.client, nil
}

// newSession opens a session, reconnecting once if the cached connection
// has gone away.
func (a *SSHAccount) newSession(ctx context.Context) (*ssh.Session, error) {
	client, err := a.getClient(ctx)
	if err != nil {
		return nil, err
	}
	session, err := client.NewSession()
	if err == nil {
		return session, nil
	}
	log.Warn("ssh session failed, reconnecting",
		zap.String("host", a.cfg.Host), zap.Error(err))
	a.resetClient(client)
	client, err = a.getClient(ctx)
	if err != nil {
		return nil, err
	}
	session, err = client.NewSession()
	if err != nil {
		return nil, errors.WrapError(errors.ErrRemoteConnect, err, a.cfg.address())
	}
	return session, nil
}

func (a *SSHAccount) resetClient(stale *ssh.Client) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client == stale {
		_ = a.client.Close()
		a.client = nil
	}
}

// Capture implements Account.
func (a *SSHAccount) Capture(ctx context.Context, cmd string, timeout time.Duration) (*Lines, error) {
	session, err := a.newSession(ctx)
	if err != nil {
		observeCommand(a.cfg.Host, commandTypeCapture, err)
		return nil, err
	}
	stderr := newTailBuffer(stderrTailBytes)
	session.Stderr = stderr
	stdout, err := session.StdoutPipe()
	if err != nil {
		_ = session.Close()
		return nil, errors.Trace(err)
	}
	if err := session.Start(bashCommand(cmd)); err != nil {
		_ = session.Close()
		err = errors.ErrRemoteCommand.GenWithStackByArgs(a.cfg.Host, -1, err.Error())
		observeCommand(a.cfg.Host, commandTypeCapture, err)
		return nil, err
	}
	log.Debug("ssh command started",
		zap.String("host", a.cfg.Host),
		zap.String("command", cmd))

	wait := func() error {
		err := a.exitError(session.Wait(), stderr.String())
		_ = session.Close()
		observeCommand(a.cfg.Host, commandTypeCapture, err)
		return err
	}
	abort := func() error {
		// best effort, most sshd ignore signal requests
		_ = session.Signal(ssh.SIGKILL)
		return session.Close()
	}
	return NewLines(ctx, a.cfg.Host, stdout, timeout, wait, abort), nil
}

// KillProcess implements Account.
func (a *SSHAccount) KillProcess(ctx context.Context, name string, cleanShutdown bool) error {
	session, err := a.newSession(ctx)
	if err != nil {
		observeCommand(a.cfg.Host, commandTypeKill, err)
		return err
	}
	defer session.Close()

	output, err := session.CombinedOutput(killCommand(name, cleanShutdown))
	status := 0
	if err != nil {
		var exitErr *ssh.ExitError
		if !errors.As(err, &exitErr) {
			err = errors.ErrRemoteCommand.GenWithStackByArgs(a.cfg.Host, -1, err.Error())
			observeCommand(a.cfg.Host, commandTypeKill, err)
			return err
		}
		status = exitErr.ExitStatus()
	}
	err = killError(a.cfg.Host, name, status, string(output))
	observeCommand(a.cfg.Host, commandTypeKill, err)
	return err
}

// Close implements Account.
func (a *SSHAccount) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client == nil {
		return nil
	}
	err := a.client.Close()
	a.client = nil
	return errors.Trace(err)
}

func (a *SSHAccount) exitError(err error, stderr string) error {
	if err == nil {
		return nil
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return errors.ErrRemoteCommand.GenWithStackByArgs(a.cfg.Host, exitErr.ExitStatus(), stderr)
	}
	// ExitMissingError and transport failures carry no status.
	return errors.ErrRemoteCommand.GenWithStackByArgs(a.cfg.Host, -1, err.Error())
}
