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
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pingcap/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pvsune/redpanda/pkg/cluster"
	"github.com/pvsune/redpanda/pkg/config"
	"github.com/pvsune/redpanda/pkg/errors"
	"github.com/pvsune/redpanda/pkg/logutil"
	"github.com/pvsune/redpanda/pkg/metrics"
	"github.com/pvsune/redpanda/pkg/producer"
	"github.com/pvsune/redpanda/pkg/service"
	"go.uber.org/zap"
)

const serviceName = "kaf-producer"

func (o *options) run(ctx context.Context, cfg *config.Config) error {
	if err := logutil.InitLogger(cfg.Log); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	metrics.InitMetrics(registry)
	if o.statusAddr != "" {
		srv := startStatusServer(o.statusAddr, registry)
		defer srv.Close()
	}

	topic := cfg.Producer.Topic
	var brokers cluster.BrokerSource = cluster.StaticBrokers(cfg.Cluster.Brokers)
	var kafkaCluster *cluster.KafkaCluster
	if cfg.Cluster.Discover || cfg.Cluster.CreateTopic || o.verify {
		var err error
		kafkaCluster, err = cluster.NewKafkaCluster(cfg.Cluster.Brokers, cfg.Cluster.RequestTimeout.Duration)
		if err != nil {
			return err
		}
		defer kafkaCluster.Close()
	}
	if cfg.Cluster.Discover {
		if err := kafkaCluster.Refresh(ctx); err != nil {
			return err
		}
		brokers = kafkaCluster
	}
	if cfg.Cluster.CreateTopic {
		if err := kafkaCluster.EnsureTopic(ctx, topic, cfg.Cluster.Partitions, cfg.Cluster.ReplicationFactor); err != nil {
			return err
		}
	}
	var before int64
	if o.verify {
		var err error
		if before, err = kafkaCluster.CountRecords(ctx, topic); err != nil {
			return err
		}
	}

	pool, err := cfg.NewNodePool()
	if err != nil {
		return err
	}
	defer pool.Close()

	p, err := producer.NewKafProducer(brokers, topic, cfg.ProducerOptions()...)
	if err != nil {
		return err
	}
	svc := service.New(serviceName, p, pool)
	log.Info("starting kaf producer",
		zap.String("id", svc.ID()),
		zap.String("topic", topic),
		zap.String("brokers", brokers.Brokers()),
		zap.Duration("duration", o.duration))
	// Workers outlive ctx: a signal stops them through StopNode so that the
	// producer sees the stop signal before its command fails.
	if err := svc.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	defer func() {
		if err := svc.Clean(context.Background()); err != nil {
			log.Warn("clean kaf producer failed", zap.Error(err))
		}
	}()

	stopped, runErr := o.waitOrStop(ctx, svc)
	if runErr != nil {
		return runErr
	}
	if o.verify {
		err := o.verifyRecords(context.Background(), kafkaCluster, topic, before, cfg.Producer.NumRecords, stopped)
		if err != nil {
			return err
		}
	}
	return interruptedError(ctx)
}

// interruptedError reports a run cut short by a signal, so the process
// exits non-zero without printing an error.
func interruptedError(ctx context.Context) error {
	if errors.IsContextCanceledError(ctx.Err()) {
		return errors.ErrCliAborted.GenWithStackByArgs("run")
	}
	return nil
}

// waitOrStop waits for the producer to finish on its own. When the duration
// elapses or ctx is canceled first the producer is stopped, and stopped is
// true.
func (o *options) waitOrStop(ctx context.Context, svc *service.BackgroundService) (stopped bool, err error) {
	waitCtx := ctx
	if o.duration > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, o.duration)
		defer cancel()
	}

	err = svc.Wait(waitCtx)
	if waitCtx.Err() == nil {
		return false, err
	}

	log.Info("stopping kaf producer", zap.NamedError("reason", waitCtx.Err()))
	stopCtx, cancel := context.WithTimeout(context.Background(), o.stopTimeout)
	defer cancel()
	return true, svc.Stop(stopCtx)
}

func (o *options) verifyRecords(
	ctx context.Context,
	kafkaCluster *cluster.KafkaCluster,
	topic string,
	before int64,
	numRecords *uint64,
	stopped bool,
) error {
	after, err := kafkaCluster.CountRecords(ctx, topic)
	if err != nil {
		return err
	}
	produced := after - before
	log.Info("verified records",
		zap.String("topic", topic),
		zap.Int64("before", before),
		zap.Int64("after", after),
		zap.Int64("produced", produced))
	return checkProduced(produced, numRecords, stopped)
}

func checkProduced(produced int64, numRecords *uint64, stopped bool) error {
	if produced < 0 {
		return errors.Errorf("topic lost %d records during the run", -produced)
	}
	n := uint64(produced)
	switch {
	case numRecords != nil && !stopped:
		if n != *numRecords {
			return errors.Errorf("expected %d records in topic, found %d", *numRecords, n)
		}
	case numRecords != nil && stopped:
		if n > *numRecords {
			return errors.Errorf("expected at most %d records in topic, found %d", *numRecords, n)
		}
	default:
		if n == 0 {
			return errors.Errorf("no record reached the topic")
		}
	}
	return nil
}

func startStatusServer(addr string, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("status server exited", zap.String("addr", addr), zap.Error(err))
		}
	}()
	log.Info("status server started", zap.String("addr", addr))
	return srv
}
