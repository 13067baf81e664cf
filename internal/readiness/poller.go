// Copyright 2025 The dpforge Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package readiness blocks until the appliance's management port is
// observed listening. Provisioning is a one-shot supervised run, so a
// fixed poll interval is acceptable; the bound makes a dead instance
// fail the run instead of hanging it.
package readiness

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/dpforge/dpforge/internal/engine"
	"github.com/dpforge/dpforge/internal/errdefs"
)

// DefaultInterval is the fixed poll cadence.
const DefaultInterval = time.Second

// Probe makes a single listening-state observation.
type Probe interface {
	Listening(ctx context.Context) (bool, error)
}

type Poller struct {
	logger   *slog.Logger
	probe    Probe
	interval time.Duration
	maxWait  time.Duration
}

func NewPoller(logger *slog.Logger, probe Probe, interval, maxWait time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		logger:   logger,
		probe:    probe,
		interval: interval,
		maxWait:  maxWait,
	}
}

// Wait polls until the probe reports a listener, the bound elapses, or
// the context is cancelled. Probe errors count as "not listening yet":
// the instance's network surface may itself still be starting.
func (p *Poller) Wait(ctx context.Context) error {
	deadline := time.NewTimer(p.maxWait)
	defer deadline.Stop()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	started := time.Now()
	for {
		listening, err := p.probe.Listening(ctx)
		if err != nil {
			p.logger.DebugContext(ctx, "readiness probe failed", "error", err)
		}
		if listening {
			p.logger.InfoContext(ctx, "management port listening", "elapsed", time.Since(started).Round(time.Millisecond))
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: after %s", errdefs.ErrTimeout, p.maxWait)
		case <-ticker.C:
		}
	}
}

// Execer is the single engine verb ExecProbe needs.
type Execer interface {
	Exec(ctx context.Context, name string, cmd []string) (engine.ExecResult, error)
}

// ExecProbe observes the container's own network state by running
// netstat inside it, so readiness does not depend on published ports.
type ExecProbe struct {
	Engine    Execer
	Container string
	Port      int
}

func (p *ExecProbe) Listening(ctx context.Context) (bool, error) {
	res, err := p.Engine.Exec(ctx, p.Container, []string{"netstat", "-ltn"})
	if err != nil {
		return false, err
	}
	if res.ExitCode != 0 {
		return false, fmt.Errorf("%w: netstat exit code %d: %s", errdefs.ErrEngine, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return scanListeners(res.Stdout, p.Port), nil
}

// scanListeners looks for a LISTEN socket bound to the port in netstat
// -ltn output.
func scanListeners(out string, port int) bool {
	suffix := ":" + strconv.Itoa(port)
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "LISTEN") {
			continue
		}
		fields := strings.Fields(line)
		for _, field := range fields {
			if strings.HasSuffix(field, suffix) {
				return true
			}
		}
	}
	return false
}

// DialProbe observes readiness from outside by dialing the published
// management port.
type DialProbe struct {
	Host    string
	Port    int
	Timeout time.Duration
}

func (p *DialProbe) Listening(ctx context.Context) (bool, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultInterval
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(p.Host, strconv.Itoa(p.Port)))
	if err != nil {
		return false, nil //nolint:nilerr // refused connection means "not yet"
	}
	_ = conn.Close()
	return true, nil
}
