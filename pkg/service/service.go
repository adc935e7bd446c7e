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

	"github.com/google/uuid"
	"github.com/pingcap/log"
	"github.com/pvsune/redpanda/pkg/errors"
	"github.com/pvsune/redpanda/pkg/metrics"
	"github.com/pvsune/redpanda/pkg/remote"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Worker is the per-node logic a BackgroundService drives.
type Worker interface {
	// NumNodes is the number of nodes the worker needs.
	NumNodes() int
	// Run blocks until the worker is done on node.
	Run(ctx context.Context, idx int, node *remote.Node) error
	// StopNode makes a Run on node return.
	StopNode(ctx context.Context, node *remote.Node) error
	// CleanNode removes whatever the worker left on nodes.
	CleanNode(ctx context.Context, nodes []*remote.Node) error
}

type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopped
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateRunning:
		return "running"
	case stateStopped:
		return "stopped"
	}
	return "unknown"
}

// BackgroundService runs a Worker on one goroutine per allocated node.
type BackgroundService struct {
	name   string
	id     string
	worker Worker
	pool   *remote.NodePool

	mu     sync.Mutex
	state  state
	nodes  []*remote.Node
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// New creates an idle service.
func New(name string, worker Worker, pool *remote.NodePool) *BackgroundService {
	return &BackgroundService{
		name:   name,
		id:     uuid.New().String(),
		worker: worker,
		pool:   pool,
	}
}

// ID returns the unique id of this service instance.
func (s *BackgroundService) ID() string {
	return s.id
}

// Nodes returns the nodes the service currently holds.
func (s *BackgroundService) Nodes() []*remote.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*remote.Node(nil), s.nodes...)
}

// Start allocates nodes and starts the worker on each of them. ctx bounds
// the lifetime of the workers.
func (s *BackgroundService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateIdle {
		return errors.ErrServiceAlreadyStarted.GenWithStackByArgs(s.name)
	}

	nodes, err := s.pool.Allocate(s.name, s.worker.NumNodes())
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	var eg errgroup.Group
	for idx, node := range nodes {
		idx, node := idx, node
		metrics.ServiceNodeInfo.WithLabelValues(s.name, s.id, node.Name).Set(1)
		eg.Go(func() error {
			log.Info("service worker started",
				zap.String("service", s.name), zap.String("id", s.id),
				zap.Int("idx", idx), zap.String("node", node.Name))
			err := s.worker.Run(runCtx, idx, node)
			if err != nil {
				log.Warn("service worker failed",
					zap.String("service", s.name), zap.String("id", s.id),
					zap.String("node", node.Name), zap.Error(err))
				return err
			}
			log.Info("service worker exited",
				zap.String("service", s.name), zap.String("id", s.id),
				zap.String("node", node.Name))
			return nil
		})
	}
	go func() {
		err := eg.Wait()
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(done)
	}()

	s.nodes = nodes
	s.cancel = cancel
	s.done = done
	s.err = nil
	s.setState(stateRunning)
	return nil
}

// Wait blocks until every worker returned and returns the first worker
// error. It returns early with the context error if ctx is done first.
func (s *BackgroundService) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stop asks the worker to stop on every node and waits for it. The first
// StopNode error wins over a worker error.
func (s *BackgroundService) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != stateRunning {
		s.mu.Unlock()
		return nil
	}
	nodes := s.nodes
	s.setState(stateStopped)
	s.mu.Unlock()

	var stopErr error
	for _, node := range nodes {
		if err := s.worker.StopNode(ctx, node); err != nil {
			log.Warn("stop service worker failed",
				zap.String("service", s.name), zap.String("id", s.id),
				zap.String("node", node.Name), zap.Error(err))
			if stopErr == nil {
				stopErr = err
			}
		}
	}
	waitErr := s.Wait(ctx)
	if stopErr != nil {
		return stopErr
	}
	return waitErr
}

// Clean stops the service if needed, lets the worker clean its nodes and
// returns them to the pool.
func (s *BackgroundService) Clean(ctx context.Context) error {
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()
	if st == stateIdle {
		return nil
	}
	if st == stateRunning {
		if err := s.Stop(ctx); err != nil {
			log.Warn("stop before clean failed",
				zap.String("service", s.name), zap.String("id", s.id), zap.Error(err))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateIdle {
		return nil
	}
	err := s.worker.CleanNode(ctx, s.nodes)
	s.cancel()
	for _, node := range s.nodes {
		metrics.ServiceNodeInfo.DeleteLabelValues(s.name, s.id, node.Name)
	}
	s.pool.Free(s.nodes)
	s.nodes = nil
	s.done = nil
	s.cancel = nil
	s.setState(stateIdle)
	return err
}

// setState must be called with mu held.
func (s *BackgroundService) setState(to state) {
	log.Info("service state changed",
		zap.String("service", s.name), zap.String("id", s.id),
		zap.Stringer("from", s.state), zap.Stringer("to", to))
	s.state = to
}
