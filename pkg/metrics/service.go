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

// ServiceNodeInfo exposes which test node a background service runs on.
var ServiceNodeInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "kaf",
		Subsystem: "service",
		Name:      "node_info",
		Help:      "Test nodes allocated to background services",
	}, []string{"service", "service_id", "node"},
)

func initServiceMetrics(registry *prometheus.Registry) {
	registry.MustRegister(ServiceNodeInfo)
}
