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

// Package session drives the appliance's line-oriented management
// session. Every step waits for the expected remote prompt with a
// bounded timeout instead of sleeping fixed delays, so a rejected
// command surfaces as an error at the step where it happened.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"time"

	"github.com/dpforge/dpforge/internal/errdefs"
)

// DefaultStepTimeout bounds each expect step.
const DefaultStepTimeout = 10 * time.Second

type Options struct {
	Host        string
	Port        int
	StepTimeout time.Duration
}

func (o Options) stepTimeout() time.Duration {
	if o.StepTimeout <= 0 {
		return DefaultStepTimeout
	}
	return o.StepTimeout
}

// Session is one interactive connection to the management port.
type Session struct {
	logger      *slog.Logger
	conn        net.Conn
	stepTimeout time.Duration
	buf         []byte
}

// Dial connects to the management port and wraps the connection.
func Dial(ctx context.Context, logger *slog.Logger, opts Options) (*Session, error) {
	d := net.Dialer{}
	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", errdefs.ErrSession, addr, err)
	}
	logger.DebugContext(ctx, "management session opened", "addr", addr)
	return New(logger, conn, opts), nil
}

// New wraps an established connection; tests feed it one end of a pipe.
func New(logger *slog.Logger, conn net.Conn, opts Options) *Session {
	return &Session{
		logger:      logger,
		conn:        conn,
		stepTimeout: opts.stepTimeout(),
	}
}

func (s *Session) Close() error {
	return s.conn.Close()
}

// expect consumes the stream until pattern matches or the step deadline
// passes. The consumed data up to and including the match is discarded;
// anything read past the match stays buffered for the next step.
func (s *Session) expect(step string, pattern *regexp.Regexp) error {
	deadline := time.Now().Add(s.stepTimeout)
	chunk := make([]byte, 4096)

	for {
		if loc := pattern.FindIndex(s.buf); loc != nil {
			s.buf = s.buf[loc[1]:]
			return nil
		}

		if err := s.conn.SetReadDeadline(deadline); err != nil {
			return s.stepErr(step, fmt.Errorf("set deadline: %w", err))
		}
		n, err := s.conn.Read(chunk)
		if n > 0 {
			s.buf = append(s.buf, chunk[:n]...)
			continue
		}
		if err != nil {
			return s.stepErr(step, err)
		}
	}
}

// expectAny matches the stream against several candidate patterns and
// returns the index of the first one observed.
func (s *Session) expectAny(step string, patterns ...*regexp.Regexp) (int, error) {
	deadline := time.Now().Add(s.stepTimeout)
	chunk := make([]byte, 4096)

	for {
		best := -1
		bestLoc := []int(nil)
		for i, pattern := range patterns {
			if loc := pattern.FindIndex(s.buf); loc != nil {
				if bestLoc == nil || loc[0] < bestLoc[0] {
					best = i
					bestLoc = loc
				}
			}
		}
		if best >= 0 {
			s.buf = s.buf[bestLoc[1]:]
			return best, nil
		}

		if err := s.conn.SetReadDeadline(deadline); err != nil {
			return -1, s.stepErr(step, fmt.Errorf("set deadline: %w", err))
		}
		n, err := s.conn.Read(chunk)
		if n > 0 {
			s.buf = append(s.buf, chunk[:n]...)
			continue
		}
		if err != nil {
			return -1, s.stepErr(step, err)
		}
	}
}

func (s *Session) sendLine(step, line string) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.stepTimeout)); err != nil {
		return s.stepErr(step, fmt.Errorf("set deadline: %w", err))
	}
	if _, err := s.conn.Write([]byte(line + "\r\n")); err != nil {
		return s.stepErr(step, err)
	}
	return nil
}

// stepErr names the failing step and carries the unmatched stream tail,
// which is usually the remote's actual complaint.
func (s *Session) stepErr(step string, err error) error {
	tail := s.buf
	const tailLimit = 256
	if len(tail) > tailLimit {
		tail = tail[len(tail)-tailLimit:]
	}
	return fmt.Errorf("%w: step %q: %w (remote output: %q)", errdefs.ErrSession, step, err, string(tail))
}
