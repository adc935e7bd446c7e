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

package main

import (
	"time"

	"github.com/pvsune/redpanda/pkg/cluster"
	"github.com/pvsune/redpanda/pkg/config"
	"github.com/pvsune/redpanda/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	flagConfig     = "config"
	flagDuration   = "duration"
	flagNumRecords = "num-records"
	flagTopic      = "topic"
	flagBrokers    = "brokers"
	flagVerify     = "verify"
	flagStatusAddr = "status-addr"
	flagLogLevel   = "log-level"

	defaultStopTimeout = time.Minute
)

type options struct {
	configPath string
	duration   time.Duration
	numRecords uint64
	topic      string
	brokers    string
	verify     bool
	statusAddr string
	logLevel   string

	stopTimeout time.Duration
}

func newOptions() *options {
	return &options{
		stopTimeout: defaultStopTimeout,
	}
}

func (o *options) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.configPath, flagConfig, "c", "", "harness configuration file path (required)")
	cmd.Flags().DurationVar(&o.duration, flagDuration, 0, "stop the producer after this long, 0 means until it finishes or is interrupted")
	cmd.Flags().Uint64Var(&o.numRecords, flagNumRecords, 0, "number of records to produce, overrides producer.num-records")
	cmd.Flags().StringVar(&o.topic, flagTopic, "", "topic to produce to, overrides producer.topic")
	cmd.Flags().StringVar(&o.brokers, flagBrokers, "", "comma separated broker addresses, overrides cluster.brokers")
	cmd.Flags().BoolVar(&o.verify, flagVerify, false, "count the records that reached the topic after the run")
	cmd.Flags().StringVar(&o.statusAddr, flagStatusAddr, "", "address to expose prometheus metrics on, e.g. 127.0.0.1:8300")
	cmd.Flags().StringVar(&o.logLevel, flagLogLevel, "", "log level, overrides log.level")
	_ = cmd.MarkFlagRequired(flagConfig)
}

// complete loads the config file and applies the flags the user set on top.
func (o *options) complete(cmd *cobra.Command) (*config.Config, error) {
	if o.duration < 0 {
		return nil, errors.ErrInvalidConfig.GenWithStackByArgs("--duration must not be negative")
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed(flagTopic) {
		cfg.Producer.Topic = o.topic
	}
	if cmd.Flags().Changed(flagBrokers) {
		cfg.Cluster.Brokers = []string(cluster.ParseBrokers(o.brokers))
	}
	if cmd.Flags().Changed(flagNumRecords) {
		n := o.numRecords
		cfg.Producer.NumRecords = &n
	}
	if cmd.Flags().Changed(flagLogLevel) {
		cfg.Log.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
