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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Run results of the producer worker.
const (
	RunResultCompleted = "completed"
	RunResultStopped   = "stopped"
	RunResultFailed    = "failed"
)

var (
	// ProducerOutputLines counts output lines read back from the producer CLI.
	ProducerOutputLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kaf",
			Subsystem: "producer",
			Name:      "output_lines_total",
			Help:      "Total output lines captured from the remote producer command",
		}, []string{"topic", "node"})

	// ProducerRuns counts finished worker runs by result.
	ProducerRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kaf",
			Subsystem: "producer",
			Name:      "runs_total",
			Help:      "Producer worker runs by result: completed/stopped/failed",
		}, []string{"topic", "result"})

	// ProducerRunDuration observes how long a worker run lasted.
	ProducerRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kaf",
			Subsystem: "producer",
			Name:      "run_duration_seconds",
			Help:      "Bucketed histogram of producer worker run duration",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 18), // 100ms ~ 3.6h
		}, []string{"topic"})

	// ProducerRunning is 1 while a worker run is in flight.
	ProducerRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "kaf",
			Subsystem: "producer",
			Name:      "running",
			Help:      "Whether a producer worker is currently running",
		}, []string{"topic", "node"})
)

func initProducerMetrics(registry *prometheus.Registry) {
	registry.MustRegister(ProducerOutputLines)
	registry.MustRegister(ProducerRuns)
	registry.MustRegister(ProducerRunDuration)
	registry.MustRegister(ProducerRunning)
}
