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

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pvsune/redpanda/pkg/errors"
	"github.com/pvsune/redpanda/pkg/remote"
	"github.com/stretchr/testify/require"
)

type nopAccount struct{}

func (nopAccount) Hostname() string { return "nop" }

func (nopAccount) Capture(context.Context, string, time.Duration) (*remote.Lines, error) {
	return nil, errors.New("not supported")
}

func (nopAccount) KillProcess(context.Context, string, bool) error { return nil }

func (nopAccount) Close() error { return nil }

func newPool(n int) *remote.NodePool {
	nodes := make([]*remote.Node, 0, n)
	for i := 0; i < n; i++ {
		nodes = append(nodes, remote.NewNode(string(rune('a'+i)), nopAccount{}))
	}
	return remote.NewNodePool(nodes...)
}

// blockingWorker runs until StopNode is called for its node.
type blockingWorker struct {
	numNodes int
	runErr   error
	stopErr  error

	mu      sync.Mutex
	stopChs map[string]chan struct{}
	ran     []int
	stopped []string
	cleaned int
}

func newBlockingWorker(numNodes int) *blockingWorker {
	return &blockingWorker{numNodes: numNodes, stopChs: make(map[string]chan struct{})}
}

func (w *blockingWorker) NumNodes() int { return w.numNodes }

func (w *blockingWorker) stopCh(node *remote.Node) chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch, ok := w.stopChs[node.Name]
	if !ok {
		ch = make(chan struct{})
		w.stopChs[node.Name] = ch
	}
	return ch
}

func (w *blockingWorker) Run(ctx context.Context, idx int, node *remote.Node) error {
	w.mu.Lock()
	w.ran = append(w.ran, idx)
	w.mu.Unlock()
	select {
	case <-w.stopCh(node):
		return w.runErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *blockingWorker) StopNode(_ context.Context, node *remote.Node) error {
	w.mu.Lock()
	w.stopped = append(w.stopped, node.Name)
	w.mu.Unlock()
	close(w.stopCh(node))
	return w.stopErr
}

func (w *blockingWorker) CleanNode(context.Context, []*remote.Node) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cleaned++
	return nil
}

func TestServiceLifecycle(t *testing.T) {
	t.Parallel()

	pool := newPool(3)
	worker := newBlockingWorker(2)
	svc := New("producer", worker, pool)
	require.NotEmpty(t, svc.ID())

	ctx := context.Background()
	require.NoError(t, svc.Start(ctx))
	require.Len(t, svc.Nodes(), 2)
	require.Equal(t, 1, pool.Available())

	err := svc.Start(ctx)
	code, _ := errors.RFCCode(err)
	require.Equal(t, errors.ErrServiceAlreadyStarted.RFCCode(), code)

	require.Eventually(t, func() bool {
		worker.mu.Lock()
		defer worker.mu.Unlock()
		return len(worker.ran) == 2
	}, 5*time.Second, 10*time.Millisecond)
	require.ElementsMatch(t, []int{0, 1}, worker.ran)

	require.NoError(t, svc.Stop(ctx))
	require.ElementsMatch(t, []string{"a", "b"}, worker.stopped)
	// stopping twice does not reach the worker again
	require.NoError(t, svc.Stop(ctx))
	require.Len(t, worker.stopped, 2)

	require.NoError(t, svc.Clean(ctx))
	require.Equal(t, 1, worker.cleaned)
	require.Equal(t, 3, pool.Available())
	require.Empty(t, svc.Nodes())
}

func TestServiceIdleOperationsAreNoops(t *testing.T) {
	t.Parallel()

	worker := newBlockingWorker(1)
	svc := New("producer", worker, newPool(1))
	ctx := context.Background()
	require.NoError(t, svc.Stop(ctx))
	require.NoError(t, svc.Wait(ctx))
	require.NoError(t, svc.Clean(ctx))
	require.Zero(t, worker.cleaned)
}

func TestServiceNotEnoughNodes(t *testing.T) {
	t.Parallel()

	svc := New("producer", newBlockingWorker(2), newPool(1))
	err := svc.Start(context.Background())
	code, _ := errors.RFCCode(err)
	require.Equal(t, errors.ErrServiceNotEnoughNodes.RFCCode(), code)
	require.Empty(t, svc.Nodes())
}

func TestServiceStopReturnsErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	worker := newBlockingWorker(1)
	worker.runErr = errors.New("run failed")
	svc := New("producer", worker, newPool(1))
	require.NoError(t, svc.Start(ctx))
	require.EqualError(t, svc.Stop(ctx), "run failed")

	worker = newBlockingWorker(1)
	worker.runErr = errors.New("run failed")
	worker.stopErr = errors.New("kill failed")
	svc = New("producer", worker, newPool(1))
	require.NoError(t, svc.Start(ctx))
	require.EqualError(t, svc.Stop(ctx), "kill failed")
}

func TestServiceWaitRespectsContext(t *testing.T) {
	t.Parallel()

	worker := newBlockingWorker(1)
	svc := New("producer", worker, newPool(1))
	require.NoError(t, svc.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := svc.Wait(ctx)
	require.Equal(t, context.DeadlineExceeded, errors.Cause(err))

	// Clean stops a running service first.
	require.NoError(t, svc.Clean(context.Background()))
	require.Len(t, worker.stopped, 1)
	require.Equal(t, 1, worker.cleaned)
}

func TestServiceWaitReturnsWhenWorkersFinish(t *testing.T) {
	t.Parallel()

	worker := newBlockingWorker(1)
	svc := New("producer", worker, newPool(1))
	require.NoError(t, svc.Start(context.Background()))
	close(worker.stopCh(svc.Nodes()[0]))
	require.NoError(t, svc.Wait(context.Background()))
}
