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

package remote

import (
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pvsune/redpanda/pkg/errors"
	"github.com/pvsune/redpanda/pkg/metrics"
)

const (
	commandTypeCapture = "capture"
	commandTypeKill    = "kill"

	// pkill exit status when no process matched.
	pkillNoMatch = 1

	stderrTailBytes = 4096
)

var shellSafe = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./-]+$`)

// ShellQuote quotes s for a POSIX shell. Words made only of characters the
// shell never interprets are returned as is, so command lines stay greppable.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if shellSafe.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// bashCommand wraps cmd so it always runs under bash, whatever the login
// shell of the remote user is.
func bashCommand(cmd string) string {
	return "bash -c " + ShellQuote(cmd)
}

// processPattern builds a pkill -f pattern matching name that does not match
// its own text, so the shell that runs pkill is never a victim.
func processPattern(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return regexp.QuoteMeta(name)
	}
	first := string(r)
	if first == "]" || first == "^" || first == "\\" || first == "-" || first == "[" {
		first = "\\" + first
	}
	return "[" + first + "]" + regexp.QuoteMeta(name[size:])
}

func killSignal(cleanShutdown bool) string {
	if cleanShutdown {
		return "TERM"
	}
	return "KILL"
}

// killArgs returns the pkill argv for KillProcess.
func killArgs(name string, cleanShutdown bool) []string {
	return []string{"pkill", "--signal", killSignal(cleanShutdown), "-f", processPattern(name)}
}

func killCommand(name string, cleanShutdown bool) string {
	args := killArgs(name, cleanShutdown)
	quoted := make([]string, 0, len(args))
	for _, arg := range args {
		quoted = append(quoted, ShellQuote(arg))
	}
	return strings.Join(quoted, " ")
}

// killError classifies the exit status of pkill.
func killError(host, name string, status int, output string) error {
	switch status {
	case 0:
		return nil
	case pkillNoMatch:
		return errors.ErrProcessNotFound.GenWithStackByArgs(name, host)
	default:
		return errors.ErrRemoteCommand.GenWithStackByArgs(host, status, strings.TrimSpace(output))
	}
}

func observeCommand(host, cmdType string, err error) {
	metrics.RemoteCommandCount.WithLabelValues(host, cmdType).Inc()
	if err == nil {
		return
	}
	code, ok := errors.RFCCode(err)
	if !ok {
		code = "unknown"
	}
	metrics.RemoteCommandErrorCount.WithLabelValues(host, cmdType, string(code)).Inc()
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}
