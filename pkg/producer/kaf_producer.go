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
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/pingcap/log"
	"github.com/pvsune/redpanda/pkg/cluster"
	"github.com/pvsune/redpanda/pkg/errors"
	"github.com/pvsune/redpanda/pkg/metrics"
	"github.com/pvsune/redpanda/pkg/remote"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	// DefaultBinary is the producer CLI looked up on the node's PATH.
	DefaultBinary = "kaf"
	// DefaultCaptureTimeout bounds the wait for each output line.
	DefaultCaptureTimeout = 10 * time.Second
)

// RecordKey returns the key of the i-th record.
func RecordKey(i uint64) string {
	return fmt.Sprintf("key-%08d", i)
}

// RecordValue returns the value of the i-th record.
func RecordValue(i uint64) string {
	return fmt.Sprintf("record-%08d", i)
}

// Option configures a KafProducer.
type Option func(*KafProducer)

// WithNumRecords limits a run to n records. Without it the producer loops
// until stopped.
func WithNumRecords(n uint64) Option {
	return func(p *KafProducer) {
		p.numRecords = &n
	}
}

// WithBinary overrides the producer CLI, either a name on PATH or a path.
func WithBinary(binary string) Option {
	return func(p *KafProducer) {
		p.binary = binary
	}
}

// WithCaptureTimeout overrides the per-line read timeout.
func WithCaptureTimeout(d time.Duration) Option {
	return func(p *KafProducer) {
		p.captureTimeout = d
	}
}

// WithLogger sets the logger output lines and state changes are written to.
func WithLogger(logger *zap.Logger) Option {
	return func(p *KafProducer) {
		p.logger = logger
	}
}

// KafProducer publishes key-%08d/record-%08d pairs to a topic by running
// the kaf CLI in a shell loop on a single node.
//
// Run and StopNode are expected to be called from different goroutines;
// the stop signal is how Run tells an expected failure, caused by StopNode
// killing the loop, from a real one.
type KafProducer struct {
	brokers        cluster.BrokerSource
	topic          string
	numRecords     *uint64
	binary         string
	captureTimeout time.Duration
	logger         *zap.Logger

	stopping atomic.Bool
	running  atomic.Bool
}

// NewKafProducer creates a producer for topic on the cluster behind brokers.
func NewKafProducer(brokers cluster.BrokerSource, topic string, opts ...Option) (*KafProducer, error) {
	p := &KafProducer{
		brokers:        brokers,
		topic:          topic,
		binary:         DefaultBinary,
		captureTimeout: DefaultCaptureTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if brokers == nil {
		return nil, errors.ErrInvalidProducerConfig.GenWithStackByArgs("broker source is required")
	}
	if topic == "" {
		return nil, errors.ErrInvalidProducerConfig.GenWithStackByArgs("topic is required")
	}
	if strings.TrimSpace(p.binary) == "" {
		return nil, errors.ErrInvalidProducerConfig.GenWithStackByArgs("producer binary is empty")
	}
	if strings.ContainsRune(filepath.Base(p.binary), '\'') {
		return nil, errors.ErrInvalidProducerConfig.GenWithStackByArgs(
			fmt.Sprintf("producer binary name %q contains a single quote", filepath.Base(p.binary)))
	}
	if p.captureTimeout < 0 {
		return nil, errors.ErrInvalidProducerConfig.GenWithStackByArgs(
			fmt.Sprintf("negative capture timeout %s", p.captureTimeout))
	}
	if p.logger == nil {
		p.logger = log.L()
	}
	p.logger = p.logger.With(zap.String("topic", topic))
	return p, nil
}

// NumNodes returns the number of nodes the producer runs on.
func (p *KafProducer) NumNodes() int {
	return 1
}

// Topic returns the topic records are written to.
func (p *KafProducer) Topic() string {
	return p.topic
}

// Running reports whether a Run is in flight.
func (p *KafProducer) Running() bool {
	return p.running.Load()
}

// Command returns the shell loop a Run executes. Brokers are resolved on
// every call.
func (p *KafProducer) Command() string {
	loop := "for (( i=0; ; i++ ))"
	if p.numRecords != nil {
		loop = fmt.Sprintf("for (( i=0; i < %d; i++ ))", *p.numRecords)
	}
	return fmt.Sprintf(
		"%s ; do export KEY=key-$(printf %%08d $i) ; export VALUE=record-$(printf %%08d $i) ; "+
			"echo $VALUE | %s produce -b %s --key $KEY %s ; done",
		loop, remote.ShellQuote(p.binary), remote.ShellQuote(p.brokers.Brokers()), remote.ShellQuote(p.topic))
}

// processName matches both the shell loop and the CLI it spawns. Only the
// base name is used since a quoted path puts a quote between the name and
// its arguments on the loop's command line.
func (p *KafProducer) processName() string {
	return filepath.Base(p.binary)
}

// Run produces records on node until the loop finishes, fails or is killed
// by StopNode. A remote command failure observed after StopNode was called
// is expected and not returned.
func (p *KafProducer) Run(ctx context.Context, idx int, node *remote.Node) error {
	p.stopping.Store(false)
	p.running.Store(true)
	defer p.running.Store(false)

	logger := p.logger.With(zap.String("node", node.Name), zap.Int("idx", idx))
	running := metrics.ProducerRunning.WithLabelValues(p.topic, node.Name)
	running.Set(1)
	defer running.Set(0)

	start := time.Now()
	cmd := p.Command()
	logger.Info("kaf producer started", zap.String("command", cmd))

	err := p.capture(ctx, node, cmd, logger)
	result := metrics.RunResultCompleted
	if err != nil {
		if p.stopping.Load() && errors.IsRemoteCommandError(err) {
			result = metrics.RunResultStopped
			logger.Info("kaf producer stopped", zap.Error(err))
			err = nil
		} else if errors.IsContextCanceledError(err) {
			result = metrics.RunResultFailed
			logger.Info("kaf producer canceled", zap.Error(err))
		} else {
			result = metrics.RunResultFailed
			logger.Warn("kaf producer failed", zap.Error(err))
		}
	} else {
		logger.Info("kaf producer finished", zap.Duration("duration", time.Since(start)))
	}
	metrics.ProducerRuns.WithLabelValues(p.topic, result).Inc()
	metrics.ProducerRunDuration.WithLabelValues(p.topic).Observe(time.Since(start).Seconds())
	return err
}

func (p *KafProducer) capture(ctx context.Context, node *remote.Node, cmd string, logger *zap.Logger) error {
	lines, err := node.Account.Capture(ctx, cmd, p.captureTimeout)
	if err != nil {
		return err
	}
	defer lines.Close()

	outputLines := metrics.ProducerOutputLines.WithLabelValues(p.topic, node.Name)
	for lines.Next() {
		logger.Debug(strings.TrimRightFunc(lines.Text(), unicode.IsSpace))
		outputLines.Inc()
	}
	return lines.Err()
}

// StopNode kills the producer on node without waiting for a clean shutdown.
// A producer that already exited is not an error.
func (p *KafProducer) StopNode(ctx context.Context, node *remote.Node) error {
	p.stopping.Store(true)
	err := node.Account.KillProcess(ctx, p.processName(), false)
	if err != nil {
		if errors.IsProcessNotFound(err) {
			p.logger.Info("kaf producer already exited", zap.String("node", node.Name))
			return nil
		}
		return err
	}
	p.logger.Info("kaf producer killed", zap.String("node", node.Name))
	return nil
}

// CleanNode leaves nothing behind to clean.
func (p *KafProducer) CleanNode(context.Context, []*remote.Node) error {
	return nil
}
