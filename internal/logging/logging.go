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

package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// ParseLevel maps a textual log level to a slog.Level. Unknown values
// fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewNoopLogger returns a logger that drops every record. It is the
// default logger carried in the command context when --verbose is off.
func NewNoopLogger() *slog.Logger {
	return slog.New(noopHandler{})
}

type noopHandler struct{}

func (noopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (noopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h noopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h noopHandler) WithGroup(string) slog.Handler           { return h }

// ReformatHandler wraps a text handler and keeps a side writer for
// command output so log records and printed results do not interleave
// on the same stream.
type ReformatHandler struct {
	Inner  slog.Handler
	Writer io.Writer
}

func (h *ReformatHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.Inner.Enabled(ctx, level)
}

func (h *ReformatHandler) Handle(ctx context.Context, record slog.Record) error {
	return h.Inner.Handle(ctx, record)
}

func (h *ReformatHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ReformatHandler{Inner: h.Inner.WithAttrs(attrs), Writer: h.Writer}
}

func (h *ReformatHandler) WithGroup(name string) slog.Handler {
	return &ReformatHandler{Inner: h.Inner.WithGroup(name), Writer: h.Writer}
}
