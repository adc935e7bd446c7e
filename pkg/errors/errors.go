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

package errors

import (
	"github.com/pingcap/errors"
)

// errors used by the remote execution layer
var (
	ErrRemoteCommand = errors.Normalize(
		"remote command failed on %s, exit status %d: %s",
		errors.RFCCodeText("KAF:ErrRemoteCommand"),
	)
	ErrRemoteReadTimeout = errors.Normalize(
		"no output from remote command on %s within %s",
		errors.RFCCodeText("KAF:ErrRemoteReadTimeout"),
	)
	ErrProcessNotFound = errors.Normalize(
		"no process matching %s on %s",
		errors.RFCCodeText("KAF:ErrProcessNotFound"),
	)
	ErrRemoteConnect = errors.Normalize(
		"connect to remote node %s failed",
		errors.RFCCodeText("KAF:ErrRemoteConnect"),
	)
)

// errors used by the producer worker and the service runner
var (
	ErrInvalidProducerConfig = errors.Normalize(
		"invalid producer config: %s",
		errors.RFCCodeText("KAF:ErrInvalidProducerConfig"),
	)
	ErrServiceNotEnoughNodes = errors.Normalize(
		"service %s requires %d nodes, only %d available",
		errors.RFCCodeText("KAF:ErrServiceNotEnoughNodes"),
	)
	ErrServiceAlreadyStarted = errors.Normalize(
		"service %s is already started",
		errors.RFCCodeText("KAF:ErrServiceAlreadyStarted"),
	)
)

// errors used by configuration and the cluster under test
var (
	ErrInvalidConfig = errors.Normalize(
		"invalid harness config: %s",
		errors.RFCCodeText("KAF:ErrInvalidConfig"),
	)
	ErrNoBrokers = errors.Normalize(
		"no broker address available",
		errors.RFCCodeText("KAF:ErrNoBrokers"),
	)
	ErrKafkaAdmin = errors.Normalize(
		"kafka admin request %s failed",
		errors.RFCCodeText("KAF:ErrKafkaAdmin"),
	)
	ErrCliAborted = errors.Normalize(
		"command '%s' is aborted by user",
		errors.RFCCodeText("KAF:ErrCliAborted"),
	)
)
