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

package producer

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pingcap/failpoint"
	"github.com/pvsune/redpanda/pkg/cluster"
	"github.com/pvsune/redpanda/pkg/errors"
	"github.com/pvsune/redpanda/pkg/remote"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const fpCaptureStreamError = "github.com/pvsune/redpanda/pkg/remote/captureStreamError"

// fakeAccount plays a scripted command: it prints output, then either exits
// with exitErr or, when block is set, keeps running until killed. While
// running it prints "tick" every tick if tick is set.
type fakeAccount struct {
	output   []string
	exitErr  error
	block    chan struct{}
	tick     time.Duration
	killErr  error
	startErr error

	mu        sync.Mutex
	command   string
	kills     []string
	blockOnce sync.Once
}

func (a *fakeAccount) Hostname() string { return "fake" }

func (a *fakeAccount) Capture(ctx context.Context, cmd string, timeout time.Duration) (*remote.Lines, error) {
	if a.startErr != nil {
		return nil, a.startErr
	}
	a.mu.Lock()
	a.command = cmd
	a.mu.Unlock()

	r, w := io.Pipe()
	exited := make(chan struct{})
	aborted := make(chan struct{})
	var abortOnce sync.Once
	go func() {
		defer close(exited)
		defer w.Close()
		for _, line := range a.output {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return
			}
		}
		if a.block == nil {
			return
		}
		var tickCh <-chan time.Time
		if a.tick > 0 {
			ticker := time.NewTicker(a.tick)
			defer ticker.Stop()
			tickCh = ticker.C
		}
		for {
			select {
			case <-a.block:
				return
			case <-aborted:
				return
			case <-tickCh:
				if _, err := fmt.Fprintln(w, "tick"); err != nil {
					return
				}
			}
		}
	}()
	wait := func() error {
		<-exited
		return a.exitErr
	}
	abort := func() error {
		abortOnce.Do(func() {
			close(aborted)
			_ = r.Close()
		})
		return nil
	}
	return remote.NewLines(ctx, a.Hostname(), r, timeout, wait, abort), nil
}

func (a *fakeAccount) KillProcess(_ context.Context, name string, _ bool) error {
	a.mu.Lock()
	a.kills = append(a.kills, name)
	a.mu.Unlock()
	if a.killErr != nil {
		return a.killErr
	}
	if a.block != nil {
		a.blockOnce.Do(func() { close(a.block) })
	}
	return nil
}

func (a *fakeAccount) Close() error { return nil }

func (a *fakeAccount) lastCommand() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.command
}

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func debugMessages(logs *observer.ObservedLogs) []string {
	var messages []string
	for _, entry := range logs.All() {
		if entry.Level == zapcore.DebugLevel {
			messages = append(messages, entry.Message)
		}
	}
	return messages
}

func newTestProducer(t *testing.T, opts ...Option) *KafProducer {
	p, err := NewKafProducer(cluster.StaticBrokers{"127.0.0.1:9092"}, "test-topic", opts...)
	require.NoError(t, err)
	return p
}

func TestRecordFormatting(t *testing.T) {
	t.Parallel()
	require.Equal(t, "key-00000042", RecordKey(42))
	require.Equal(t, "record-00000000", RecordValue(0))
	require.Equal(t, "key-123456789", RecordKey(123456789))
}

func TestNewKafProducerValidation(t *testing.T) {
	t.Parallel()

	_, err := NewKafProducer(nil, "topic")
	require.Error(t, err)
	code, _ := errors.RFCCode(err)
	require.Equal(t, errors.ErrInvalidProducerConfig.RFCCode(), code)

	_, err = NewKafProducer(cluster.StaticBrokers{"b:9092"}, "")
	require.Contains(t, err.Error(), "topic is required")

	_, err = NewKafProducer(cluster.StaticBrokers{"b:9092"}, "t", WithBinary(" "))
	require.Contains(t, err.Error(), "producer binary is empty")

	_, err = NewKafProducer(cluster.StaticBrokers{"b:9092"}, "t", WithBinary("/opt/it's/kaf'"))
	require.Contains(t, err.Error(), "contains a single quote")

	_, err = NewKafProducer(cluster.StaticBrokers{"b:9092"}, "t", WithCaptureTimeout(-time.Second))
	require.Contains(t, err.Error(), "negative capture timeout")

	p, err := NewKafProducer(cluster.StaticBrokers{"b:9092"}, "t")
	require.NoError(t, err)
	require.Equal(t, 1, p.NumNodes())
	require.Equal(t, DefaultCaptureTimeout, p.captureTimeout)
	require.Nil(t, p.numRecords)
	require.False(t, p.Running())
}

func TestCommand(t *testing.T) {
	t.Parallel()

	p := newTestProducer(t, WithNumRecords(3))
	require.Equal(t,
		"for (( i=0; i < 3; i++ )) ; do export KEY=key-$(printf %08d $i) ; "+
			"export VALUE=record-$(printf %08d $i) ; "+
			"echo $VALUE | kaf produce -b 127.0.0.1:9092 --key $KEY test-topic ; done",
		p.Command())

	p, err := NewKafProducer(cluster.StaticBrokers{"b2:9092", "b1:9092"}, "odd topic",
		WithBinary("/opt/kaf/bin/kaf"))
	require.NoError(t, err)
	require.Equal(t,
		"for (( i=0; ; i++ )) ; do export KEY=key-$(printf %08d $i) ; "+
			"export VALUE=record-$(printf %08d $i) ; "+
			"echo $VALUE | /opt/kaf/bin/kaf produce -b b1:9092,b2:9092 --key $KEY 'odd topic' ; done",
		p.Command())
	require.Equal(t, "kaf", p.processName())

	p, err = NewKafProducer(cluster.StaticBrokers{"b1:9092"}, "t", WithBinary("/opt/my kaf/kaf"))
	require.NoError(t, err)
	require.Contains(t, p.Command(), "echo $VALUE | '/opt/my kaf/kaf' produce -b b1:9092")
	require.Equal(t, "kaf", p.processName())
}

func TestRunLogsTrimmedLines(t *testing.T) {
	t.Parallel()

	logger, logs := observedLogger()
	p := newTestProducer(t, WithNumRecords(2), WithLogger(logger))
	account := &fakeAccount{output: []string{"first  ", "second\t\r", "", "  third"}}
	node := remote.NewNode("n1", account)

	require.NoError(t, p.Run(context.Background(), 0, node))
	require.Equal(t, []string{"first", "second", "", "  third"}, debugMessages(logs))
	require.Equal(t, p.Command(), account.lastCommand())
	require.False(t, p.Running())
}

func TestRunReturnsUnexpectedFailure(t *testing.T) {
	t.Parallel()

	exitErr := errors.ErrRemoteCommand.GenWithStackByArgs("fake", 1, "broker unreachable")
	account := &fakeAccount{output: []string{"partial"}, exitErr: exitErr}
	p := newTestProducer(t, WithNumRecords(10), WithLogger(zap.NewNop()))

	err := p.Run(context.Background(), 0, remote.NewNode("n1", account))
	require.Equal(t, exitErr, err)
}

func TestRunReturnsReadTimeoutWhenNotStopping(t *testing.T) {
	t.Parallel()

	account := &fakeAccount{block: make(chan struct{})}
	p := newTestProducer(t, WithCaptureTimeout(50*time.Millisecond), WithLogger(zap.NewNop()))

	err := p.Run(context.Background(), 0, remote.NewNode("n1", account))
	code, ok := errors.RFCCode(err)
	require.True(t, ok)
	require.Equal(t, errors.ErrRemoteReadTimeout.RFCCode(), code)
}

func TestRunReturnsStartFailure(t *testing.T) {
	t.Parallel()

	startErr := errors.ErrRemoteConnect.GenWithStackByArgs("n1")
	p := newTestProducer(t, WithLogger(zap.NewNop()))
	err := p.Run(context.Background(), 0, remote.NewNode("n1", &fakeAccount{startErr: startErr}))
	require.Equal(t, startErr, err)
}

func TestStopThenFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	logger, logs := observedLogger()
	account := &fakeAccount{
		output:  []string{"produced"},
		block:   make(chan struct{}),
		exitErr: errors.ErrRemoteCommand.GenWithStackByArgs("fake", 137, "killed"),
	}
	node := remote.NewNode("n1", account)
	p := newTestProducer(t, WithLogger(logger))

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Run(context.Background(), 0, node)
	}()
	require.Eventually(t, func() bool {
		return logs.FilterMessage("produced").Len() == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.True(t, p.Running())

	require.NoError(t, p.StopNode(context.Background(), node))
	require.NoError(t, <-errCh)
	require.False(t, p.Running())
	require.Equal(t, []string{"kaf"}, account.kills)
	require.Equal(t, 1, logs.FilterMessage("kaf producer stopped").Len())
}

func TestStopOnlySwallowsRemoteCommandErrors(t *testing.T) {
	t.Parallel()

	killErr := errors.ErrRemoteConnect.GenWithStackByArgs("n1")
	account := &fakeAccount{block: make(chan struct{}), killErr: killErr}
	node := remote.NewNode("n1", account)
	p := newTestProducer(t, WithCaptureTimeout(0), WithLogger(zap.NewNop()))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Run(ctx, 0, node)
	}()
	require.Eventually(t, p.Running, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, killErr, p.StopNode(context.Background(), node))
	cancel()
	err := <-errCh
	require.True(t, errors.IsContextCanceledError(err), "%v", err)
}

func TestRunClearsStopSignal(t *testing.T) {
	t.Parallel()

	account := &fakeAccount{killErr: errors.ErrProcessNotFound.GenWithStackByArgs("kaf", "n1")}
	node := remote.NewNode("n1", account)
	p := newTestProducer(t, WithLogger(zap.NewNop()))

	require.NoError(t, p.StopNode(context.Background(), node))
	require.True(t, p.stopping.Load())

	account.exitErr = errors.ErrRemoteCommand.GenWithStackByArgs("fake", 2, "boom")
	err := p.Run(context.Background(), 0, node)
	require.True(t, errors.IsRemoteCommandError(err))
	require.False(t, p.stopping.Load())
}

func TestStopNodeAlreadyExited(t *testing.T) {
	t.Parallel()

	account := &fakeAccount{killErr: errors.ErrProcessNotFound.GenWithStackByArgs("kaf", "n1")}
	p := newTestProducer(t, WithLogger(zap.NewNop()))
	require.NoError(t, p.StopNode(context.Background(), remote.NewNode("n1", account)))
}

func TestCleanNodeIsNoop(t *testing.T) {
	t.Parallel()

	p := newTestProducer(t)
	require.NoError(t, p.CleanNode(context.Background(), nil))
	require.NoError(t, p.CleanNode(context.Background(), []*remote.Node{remote.NewNode("n1", &fakeAccount{})}))
}

func TestRunFailsOnInjectedCaptureError(t *testing.T) {
	require.NoError(t, failpoint.Enable(fpCaptureStreamError, `return("connection reset")`))
	defer func() {
		require.NoError(t, failpoint.Disable(fpCaptureStreamError))
	}()

	account := &fakeAccount{block: make(chan struct{})}
	p := newTestProducer(t, WithLogger(zap.NewNop()))
	err := p.Run(context.Background(), 0, remote.NewNode("n1", account))
	require.True(t, errors.IsRemoteCommandError(err))
	require.Contains(t, err.Error(), "connection reset")
}

func TestStopThenInjectedCaptureErrorIsSwallowed(t *testing.T) {
	logger, logs := observedLogger()
	account := &fakeAccount{
		output:  []string{"produced"},
		block:   make(chan struct{}),
		tick:    10 * time.Millisecond,
		killErr: errors.ErrProcessNotFound.GenWithStackByArgs("kaf", "n1"),
	}
	node := remote.NewNode("n1", account)
	p := newTestProducer(t, WithLogger(logger))

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Run(context.Background(), 0, node)
	}()
	require.Eventually(t, func() bool {
		return logs.FilterMessage("produced").Len() == 1
	}, 5*time.Second, 10*time.Millisecond)

	// the kill finds nothing, the command keeps running until it fails
	require.NoError(t, p.StopNode(context.Background(), node))
	require.NoError(t, failpoint.Enable(fpCaptureStreamError, `return("injected")`))
	defer func() {
		require.NoError(t, failpoint.Disable(fpCaptureStreamError))
	}()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		require.FailNow(t, "producer did not exit after the injected failure")
	}
	stopped := logs.FilterMessage("kaf producer stopped").All()
	require.Len(t, stopped, 1)
	require.Contains(t, stopped[0].ContextMap()["error"], "injected")
}
