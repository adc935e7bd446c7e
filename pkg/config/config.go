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

package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pvsune/redpanda/pkg/errors"
	"github.com/pvsune/redpanda/pkg/logutil"
	"github.com/pvsune/redpanda/pkg/producer"
	"github.com/pvsune/redpanda/pkg/remote"
)

const (
	defaultPartitions        = 1
	defaultReplicationFactor = 1
	defaultRequestTimeout    = 10 * time.Second
	defaultLocalNodeName     = "local"
)

// Duration is a time.Duration written as "10s" in the config file.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the harness configuration.
type Config struct {
	Log      *logutil.Config `toml:"log" json:"log"`
	Producer ProducerConfig  `toml:"producer" json:"producer"`
	Cluster  ClusterConfig   `toml:"cluster" json:"cluster"`
	Nodes    []NodeConfig    `toml:"nodes" json:"nodes"`
}

// ProducerConfig configures the producer worker.
type ProducerConfig struct {
	Topic string `toml:"topic" json:"topic"`
	// NumRecords limits every run; unset means produce until stopped.
	NumRecords     *uint64  `toml:"num-records" json:"num-records,omitempty"`
	Binary         string   `toml:"binary" json:"binary"`
	CaptureTimeout Duration `toml:"capture-timeout" json:"capture-timeout"`
}

// ClusterConfig describes the cluster under test.
type ClusterConfig struct {
	Brokers []string `toml:"brokers" json:"brokers"`
	// Discover replaces Brokers by the advertised listeners read from
	// cluster metadata before the producer starts.
	Discover          bool     `toml:"discover" json:"discover"`
	CreateTopic       bool     `toml:"create-topic" json:"create-topic"`
	Partitions        int32    `toml:"partitions" json:"partitions"`
	ReplicationFactor int16    `toml:"replication-factor" json:"replication-factor"`
	RequestTimeout    Duration `toml:"request-timeout" json:"request-timeout"`
}

// NodeConfig is one test node, either the local host or an ssh target.
type NodeConfig struct {
	Name           string   `toml:"name" json:"name"`
	Local          bool     `toml:"local" json:"local"`
	Host           string   `toml:"host" json:"host"`
	Port           int      `toml:"port" json:"port"`
	User           string   `toml:"user" json:"user"`
	KeyFile        string   `toml:"key-file" json:"key-file"`
	Password       string   `toml:"password" json:"-"`
	KnownHostsFile string   `toml:"known-hosts-file" json:"known-hosts-file"`
	ConnectTimeout Duration `toml:"connect-timeout" json:"connect-timeout"`
}

// SSHConfig converts the node config for remote.NewSSHAccount.
func (n *NodeConfig) SSHConfig() remote.SSHConfig {
	return remote.SSHConfig{
		Host:           n.Host,
		Port:           n.Port,
		User:           n.User,
		KeyFile:        n.KeyFile,
		Password:       n.Password,
		KnownHostsFile: n.KnownHostsFile,
		ConnectTimeout: n.ConnectTimeout.Duration,
	}
}

// Load reads and validates a TOML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapError(errors.ErrInvalidConfig, err, "read "+path)
	}
	return Decode(string(data))
}

// Decode parses a TOML config, applies defaults and validates it. Unknown
// keys are rejected.
func Decode(data string) (*Config, error) {
	cfg := &Config{}
	meta, err := toml.Decode(data, cfg)
	if err != nil {
		return nil, errors.WrapError(errors.ErrInvalidConfig, err, "decode")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		return nil, errors.ErrInvalidConfig.GenWithStackByArgs(
			"unknown configuration keys: " + strings.Join(keys, ", "))
	}
	cfg.adjust()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) adjust() {
	if c.Log == nil {
		c.Log = logutil.DefaultConfig()
	} else {
		defaults := logutil.DefaultConfig()
		if c.Log.Level == "" {
			c.Log.Level = defaults.Level
		}
		if c.Log.MaxSizeMB == 0 {
			c.Log.MaxSizeMB = defaults.MaxSizeMB
		}
	}

	if c.Producer.Binary == "" {
		c.Producer.Binary = producer.DefaultBinary
	}
	if c.Producer.CaptureTimeout.Duration == 0 {
		c.Producer.CaptureTimeout.Duration = producer.DefaultCaptureTimeout
	}

	if c.Cluster.Partitions == 0 {
		c.Cluster.Partitions = defaultPartitions
	}
	if c.Cluster.ReplicationFactor == 0 {
		c.Cluster.ReplicationFactor = defaultReplicationFactor
	}
	if c.Cluster.RequestTimeout.Duration == 0 {
		c.Cluster.RequestTimeout.Duration = defaultRequestTimeout
	}

	if len(c.Nodes) == 0 {
		c.Nodes = []NodeConfig{{Name: defaultLocalNodeName, Local: true}}
	}
	for i := range c.Nodes {
		node := &c.Nodes[i]
		if node.Name != "" {
			continue
		}
		if node.Local {
			node.Name = defaultLocalNodeName
		} else {
			node.Name = node.Host
		}
	}
}

// Validate checks the config is usable.
func (c *Config) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if c.Producer.Topic == "" {
		return errors.ErrInvalidConfig.GenWithStackByArgs("producer: topic is required")
	}
	if c.Producer.CaptureTimeout.Duration < 0 {
		return errors.ErrInvalidConfig.GenWithStackByArgs("producer: capture-timeout must not be negative")
	}
	if len(c.Cluster.Brokers) == 0 {
		return errors.ErrInvalidConfig.GenWithStackByArgs("cluster: brokers is required")
	}
	if c.Cluster.Partitions < 0 || c.Cluster.ReplicationFactor < 0 {
		return errors.ErrInvalidConfig.GenWithStackByArgs("cluster: partitions and replication-factor must be positive")
	}

	names := make(map[string]struct{}, len(c.Nodes))
	for i, node := range c.Nodes {
		if node.Local && node.Host != "" {
			return errors.ErrInvalidConfig.GenWithStackByArgs(
				fmt.Sprintf("nodes[%d]: local node must not set host", i))
		}
		if !node.Local && node.Host == "" {
			return errors.ErrInvalidConfig.GenWithStackByArgs(
				fmt.Sprintf("nodes[%d]: host is required for a remote node", i))
		}
		if _, ok := names[node.Name]; ok {
			return errors.ErrInvalidConfig.GenWithStackByArgs(
				fmt.Sprintf("nodes[%d]: duplicated node name %s", i, node.Name))
		}
		names[node.Name] = struct{}{}
	}
	return nil
}

// NewNodePool connects nothing yet; ssh accounts dial on first use.
func (c *Config) NewNodePool() (*remote.NodePool, error) {
	nodes := make([]*remote.Node, 0, len(c.Nodes))
	for i := range c.Nodes {
		nodeCfg := &c.Nodes[i]
		if nodeCfg.Local {
			nodes = append(nodes, remote.NewNode(nodeCfg.Name, remote.NewLocalAccount()))
			continue
		}
		account, err := remote.NewSSHAccount(nodeCfg.SSHConfig())
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, remote.NewNode(nodeCfg.Name, account))
	}
	return remote.NewNodePool(nodes...), nil
}

// ProducerOptions returns the producer options the config asks for.
func (c *Config) ProducerOptions() []producer.Option {
	opts := []producer.Option{
		producer.WithBinary(c.Producer.Binary),
		producer.WithCaptureTimeout(c.Producer.CaptureTimeout.Duration),
	}
	if c.Producer.NumRecords != nil {
		opts = append(opts, producer.WithNumRecords(*c.Producer.NumRecords))
	}
	return opts
}
