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
	"sync"
	"time"

	"github.com/pvsune/redpanda/pkg/errors"
)

// Account runs commands on one test node.
type Account interface {
	// Hostname identifies the node in logs and errors.
	Hostname() string
	// Capture starts cmd and streams its stdout line by line. Each call to
	// Lines.Next waits at most timeout for the next line; zero disables the
	// per-line timeout.
	Capture(ctx context.Context, cmd string, timeout time.Duration) (*Lines, error)
	// KillProcess signals every process whose command line matches name.
	// It returns ErrProcessNotFound when nothing matched.
	KillProcess(ctx context.Context, name string, cleanShutdown bool) error
	// Close releases the connection to the node.
	Close() error
}

// Node is a test node a service can be scheduled on.
type Node struct {
	Name    string
	Account Account
}

// NewNode creates a node backed by the given account.
func NewNode(name string, account Account) *Node {
	return &Node{Name: name, Account: account}
}

func (n *Node) String() string {
	return n.Name
}

// NodePool hands out test nodes to services. A node belongs to at most one
// service at a time.
type NodePool struct {
	mu    sync.Mutex
	nodes []*Node
	inUse map[*Node]struct{}
}

// NewNodePool creates a pool from the given nodes.
func NewNodePool(nodes ...*Node) *NodePool {
	return &NodePool{
		nodes: nodes,
		inUse: make(map[*Node]struct{}, len(nodes)),
	}
}

// Allocate reserves n free nodes for service.
func (p *NodePool) Allocate(service string, n int) ([]*Node, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	free := make([]*Node, 0, n)
	for _, node := range p.nodes {
		if len(free) == n {
			break
		}
		if _, ok := p.inUse[node]; !ok {
			free = append(free, node)
		}
	}
	if len(free) < n {
		return nil, errors.ErrServiceNotEnoughNodes.GenWithStackByArgs(service, n, len(free))
	}
	for _, node := range free {
		p.inUse[node] = struct{}{}
	}
	return free, nil
}

// Free returns nodes to the pool.
func (p *NodePool) Free(nodes []*Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, node := range nodes {
		delete(p.inUse, node)
	}
}

// Available returns the number of unallocated nodes.
func (p *NodePool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.nodes) - len(p.inUse)
}

// Close closes the accounts of every node in the pool.
func (p *NodePool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, node := range p.nodes {
		if err := node.Account.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
