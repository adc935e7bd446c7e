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

var (
	// RemoteCommandCount counts commands sent to remote nodes, type: capture/kill.
	RemoteCommandCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kaf",
			Subsystem: "remote",
			Name:      "command_total",
			Help:      "Remote commands executed on test nodes",
		}, []string{"node", "type"})

	// RemoteCommandErrorCount counts failed remote commands by RFC error code.
	RemoteCommandErrorCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kaf",
			Subsystem: "remote",
			Name:      "command_error_total",
			Help:      "Remote command failures on test nodes",
		}, []string{"node", "type", "code"})
)

func initRemoteMetrics(registry *prometheus.Registry) {
	registry.MustRegister(RemoteCommandCount)
	registry.MustRegister(RemoteCommandErrorCount)
}
