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
	"net"
	"sort"
	"strconv"
	"strings"
)

// BrokerSource returns the broker list of the cluster under test, already
// formatted for the producer CLI's broker flag.
type BrokerSource interface {
	Brokers() string
}

// StaticBrokers is a fixed broker list.
type StaticBrokers []string

// Brokers implements BrokerSource.
func (s StaticBrokers) Brokers() string {
	return strings.Join(normalizeAddrs(s), ",")
}

// ParseBrokers splits a comma separated broker list.
func ParseBrokers(raw string) StaticBrokers {
	return StaticBrokers(normalizeAddrs(strings.Split(raw, ",")))
}

func brokerAddr(host string, port int32) string {
	return net.JoinHostPort(host, strconv.Itoa(int(port)))
}

// normalizeAddrs trims, drops empty entries and sorts, so the broker flag is
// stable across refreshes.
func normalizeAddrs(addrs []string) []string {
	result := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			result = append(result, addr)
		}
	}
	sort.Strings(result)
	return result
}
