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

// Package runner executes the individual provisioning phases against
// the container engine, the generated artifact tree and the appliance's
// management session. The controller facade sequences these phases.
package runner

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/dpforge/dpforge/internal/engine"
	"github.com/dpforge/dpforge/internal/naming"
	"github.com/dpforge/dpforge/internal/secrets"
	"github.com/dpforge/dpforge/internal/state"
)

type Runner interface {
	BuildArtifacts(cfg *secrets.Config) ([]string, error)
	StartBase(names naming.Names) error
	WaitReady(containerName string) error
	RotateAccount(account secrets.Account, currentPassword string) error
	VerifyAccount(account secrets.Account) error
	Stop(containerName string) error
	Remove(containerName string) error
	Clean(containerName string) error
	Commit(names naming.Names) (digest.Digest, error)
	TagLatest(names naming.Names) (naming.Reference, error)
	PurgeSecrets() ([]string, error)
}

type Exec struct {
	ctx    context.Context
	logger *slog.Logger
	opts   Options

	engineClient engine.Client
}

type Options struct {
	EngineHost string
	OutputDir  string
	MgmtPort   int
	MaxWait    time.Duration
	KeyBits    int
}

func NewRunner(ctx context.Context, logger *slog.Logger, opts Options) Runner {
	return &Exec{
		ctx:    ctx,
		logger: logger,
		opts:   opts,
	}
}

// engine returns a connected engine client. The client is created once
// and reconnected per phase; callers must Close it when done.
func (r *Exec) engine() (engine.Client, error) {
	if r.engineClient == nil {
		r.engineClient = engine.NewClient(r.ctx, r.logger, engine.Options{Host: r.opts.EngineHost})
	}
	if err := r.engineClient.Connect(); err != nil {
		return nil, err
	}
	return r.engineClient, nil
}

func (r *Exec) statePath() string {
	return filepath.Join(r.opts.OutputDir, state.FileName)
}
