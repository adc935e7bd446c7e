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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticBrokers(t *testing.T) {
	t.Parallel()

	require.Equal(t, "", StaticBrokers(nil).Brokers())
	require.Equal(t, "10.0.0.1:9092", StaticBrokers{"10.0.0.1:9092"}.Brokers())
	require.Equal(t,
		"10.0.0.1:9092,10.0.0.2:9092",
		StaticBrokers{" 10.0.0.2:9092", "", "10.0.0.1:9092 "}.Brokers())
}

func TestParseBrokers(t *testing.T) {
	t.Parallel()

	require.Empty(t, ParseBrokers(""))
	require.Equal(t, StaticBrokers{"a:9092", "b:9092"}, ParseBrokers("b:9092, a:9092,"))
	require.Equal(t, "[::1]:9092", brokerAddr("::1", 9092))
}
