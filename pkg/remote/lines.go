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
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pingcap/failpoint"
	"github.com/pingcap/log"
	"github.com/pvsune/redpanda/pkg/errors"
	"go.uber.org/zap"
)

const (
	// fpCaptureStreamError makes the next Lines.Next fail as if the remote
	// command exited non-zero. The failpoint value is used as its stderr.
	fpCaptureStreamError = "github.com/pvsune/redpanda/pkg/remote/captureStreamError"

	maxLineBytes = 1024 * 1024
)

// Lines streams the stdout of a running remote command. It is used like
// bufio.Scanner:
//
//	lines, err := account.Capture(ctx, cmd, 10*time.Second)
//	...
//	defer lines.Close()
//	for lines.Next() {
//		handle(lines.Text())
//	}
//	if err := lines.Err(); err != nil { ... }
//
// Lines is not safe for concurrent use.
type Lines struct {
	ctx     context.Context
	host    string
	timeout time.Duration

	lineCh  chan string
	closeCh chan struct{}
	scanErr error

	// wait blocks until the command exits and returns its classified error.
	wait func() error
	// abort tears the command down before it finished on its own.
	abort func() error

	text     string
	err      error
	finished bool

	closeOnce sync.Once
}

// NewLines streams stdout of a command started by an Account implementation.
// wait must block until the command exited and return ErrRemoteCommand for a
// non-zero status; abort must make the command exit so that wait returns.
func NewLines(
	ctx context.Context,
	host string,
	stdout io.Reader,
	timeout time.Duration,
	wait func() error,
	abort func() error,
) *Lines {
	l := &Lines{
		ctx:     ctx,
		host:    host,
		timeout: timeout,
		lineCh:  make(chan string, 64),
		closeCh: make(chan struct{}),
		wait:    wait,
		abort:   abort,
	}
	go l.readLoop(stdout)
	return l
}

func (l *Lines) readLoop(r io.Reader) {
	defer close(l.lineCh)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		select {
		case l.lineCh <- scanner.Text():
		case <-l.closeCh:
			return
		}
	}
	// scanErr is published to Next by the close of lineCh.
	l.scanErr = scanner.Err()
}

// Next advances to the next output line. It returns false when the command
// exited, failed, timed out or the context was canceled; Err tells which.
func (l *Lines) Next() bool {
	if l.finished {
		return false
	}
	if v, err := failpoint.Eval(fpCaptureStreamError); err == nil {
		l.fail(errors.ErrRemoteCommand.GenWithStackByArgs(l.host, -1, fmt.Sprint(v)))
		return false
	}

	var timeoutCh <-chan time.Time
	if l.timeout > 0 {
		timer := time.NewTimer(l.timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case line, ok := <-l.lineCh:
		if !ok {
			l.finish()
			return false
		}
		l.text = line
		return true
	case <-timeoutCh:
		l.fail(errors.ErrRemoteReadTimeout.GenWithStackByArgs(l.host, l.timeout.String()))
		return false
	case <-l.ctx.Done():
		l.fail(errors.Trace(l.ctx.Err()))
		return false
	}
}

// Text returns the most recent line read by Next, without the line terminator.
func (l *Lines) Text() string {
	return l.text
}

// Err returns the error that stopped the iteration, nil if the command
// exited with status zero.
func (l *Lines) Err() error {
	return l.err
}

// Close stops reading and tears down the command if it is still running.
// It is safe to call Close more than once.
func (l *Lines) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closeCh)
		if !l.finished {
			err = l.abort()
			// reap the command once the reader has drained.
			go func() {
				for range l.lineCh {
				}
				_ = l.wait()
			}()
		}
	})
	return err
}

func (l *Lines) finish() {
	l.finished = true
	if l.scanErr != nil {
		l.err = errors.Trace(l.scanErr)
		_ = l.wait()
		return
	}
	l.err = l.wait()
}

func (l *Lines) fail(err error) {
	log.Debug("remote capture stopped",
		zap.String("host", l.host),
		zap.Error(err))
	l.err = err
	_ = l.Close()
	l.finished = true
}
