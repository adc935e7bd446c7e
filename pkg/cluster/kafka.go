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

package cluster

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pingcap/log"
	"github.com/pvsune/redpanda/pkg/errors"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

const (
	defaultClientID       = "kaf-producer-harness"
	defaultRequestTimeout = 10 * time.Second
)

// KafkaCluster talks to the cluster under test with the Kafka protocol. It
// resolves the advertised broker addresses and offers the admin operations
// a produce test needs: topic creation and record counting.
type KafkaCluster struct {
	seeds   []string
	client  *kgo.Client
	admin   *kadm.Client
	timeout time.Duration

	mu      sync.RWMutex
	brokers []string
}

// NewKafkaCluster creates a client seeded with the given broker addresses.
// No connection is made until the first request.
func NewKafkaCluster(seeds []string, requestTimeout time.Duration) (*KafkaCluster, error) {
	seeds = normalizeAddrs(seeds)
	if len(seeds) == 0 {
		return nil, errors.ErrNoBrokers.GenWithStackByArgs()
	}
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(seeds...),
		kgo.ClientID(defaultClientID),
		kgo.DialTimeout(requestTimeout),
		kgo.RequestTimeoutOverhead(requestTimeout),
	)
	if err != nil {
		return nil, errors.WrapError(errors.ErrKafkaAdmin, err, "new client")
	}
	return &KafkaCluster{
		seeds:   seeds,
		client:  client,
		admin:   kadm.NewClient(client),
		timeout: requestTimeout,
	}, nil
}

func (c *KafkaCluster) newRequestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// Brokers implements BrokerSource. Until Refresh succeeds it returns the seeds.
func (c *KafkaCluster) Brokers() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.brokers) == 0 {
		return strings.Join(c.seeds, ",")
	}
	return strings.Join(c.brokers, ",")
}

// Refresh reloads the advertised broker addresses from cluster metadata.
func (c *KafkaCluster) Refresh(ctx context.Context) error {
	ctx, cancel := c.newRequestContext(ctx)
	defer cancel()

	meta, err := c.admin.BrokerMetadata(ctx)
	if err != nil {
		return errors.WrapError(errors.ErrKafkaAdmin, err, "broker metadata")
	}
	addrs := make([]string, 0, len(meta.Brokers))
	for _, b := range meta.Brokers {
		addrs = append(addrs, brokerAddr(b.Host, b.Port))
	}
	addrs = normalizeAddrs(addrs)
	if len(addrs) == 0 {
		return errors.ErrNoBrokers.GenWithStackByArgs()
	}

	c.mu.Lock()
	c.brokers = addrs
	c.mu.Unlock()
	log.Info("broker list refreshed",
		zap.Strings("brokers", addrs),
		zap.Int32("controller", meta.Controller))
	return nil
}

// EnsureTopic creates topic unless it already exists.
func (c *KafkaCluster) EnsureTopic(ctx context.Context, topic string, partitions int32, replicationFactor int16) error {
	ctx, cancel := c.newRequestContext(ctx)
	defer cancel()

	resp, err := c.admin.CreateTopic(ctx, partitions, replicationFactor, nil, topic)
	if err != nil {
		return errors.WrapError(errors.ErrKafkaAdmin, err, "create topic "+topic)
	}
	if resp.Err != nil {
		if errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			log.Info("topic already exists", zap.String("topic", topic))
			return nil
		}
		return errors.WrapError(errors.ErrKafkaAdmin, resp.Err, "create topic "+topic)
	}
	log.Info("topic created",
		zap.String("topic", topic),
		zap.Int32("partitions", partitions),
		zap.Int16("replicationFactor", replicationFactor))
	return nil
}

// CountRecords returns the number of records currently retained in topic,
// summed over all partitions.
func (c *KafkaCluster) CountRecords(ctx context.Context, topic string) (int64, error) {
	ctx, cancel := c.newRequestContext(ctx)
	defer cancel()

	starts, err := c.admin.ListStartOffsets(ctx, topic)
	if err != nil {
		return 0, errors.WrapError(errors.ErrKafkaAdmin, err, "list start offsets")
	}
	ends, err := c.admin.ListEndOffsets(ctx, topic)
	if err != nil {
		return 0, errors.WrapError(errors.ErrKafkaAdmin, err, "list end offsets")
	}
	return countRecords(topic, starts, ends)
}

func countRecords(topic string, starts, ends kadm.ListedOffsets) (int64, error) {
	if err := starts.Error(); err != nil {
		return 0, errors.WrapError(errors.ErrKafkaAdmin, err, "list start offsets")
	}
	if err := ends.Error(); err != nil {
		return 0, errors.WrapError(errors.ErrKafkaAdmin, err, "list end offsets")
	}
	if _, ok := ends[topic]; !ok {
		return 0, errors.WrapError(errors.ErrKafkaAdmin, kerr.UnknownTopicOrPartition, "count records of "+topic)
	}
	var total int64
	ends.Each(func(end kadm.ListedOffset) {
		if end.Topic != topic {
			return
		}
		start, ok := starts.Lookup(end.Topic, end.Partition)
		if !ok {
			total += end.Offset
			return
		}
		total += end.Offset - start.Offset
	})
	return total, nil
}

// Close closes the underlying client.
func (c *KafkaCluster) Close() {
	c.client.Close()
}
