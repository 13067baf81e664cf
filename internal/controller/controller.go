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

// Package controller sequences the provisioning phases. Each command
// verb maps to one facade operation; the full build is Provision.
package controller

import (
	"context"
	"log/slog"
	"time"

	"github.com/dpforge/dpforge/internal/controller/runner"
	"github.com/dpforge/dpforge/internal/naming"
	"github.com/dpforge/dpforge/internal/secrets"
)

type Controller interface {
	Provision() (ProvisionReport, error)
	StartBase() (StartBaseResult, error)
	WaitReady() (WaitReadyResult, error)
	RotatePassword(name string) (RotatePasswordResult, error)
	Stop() (StopResult, error)
	Commit() (CommitResult, error)
	TagLatest() (TagLatestResult, error)
	Clean() (CleanResult, error)
	PurgeSecrets() (PurgeSecretsResult, error)
}

type Exec struct {
	ctx    context.Context
	logger *slog.Logger
	opts   Options
	runner runner.Runner
}

type Options struct {
	EngineHost  string
	SecretsFile string
	OutputDir   string
	Naming      naming.Overrides
	MgmtPort    int
	MaxWait     time.Duration
	KeyBits     int
}

func NewControllerExec(ctx context.Context, logger *slog.Logger, opts Options) *Exec {
	return &Exec{
		ctx:    ctx,
		logger: logger,
		opts:   opts,
		runner: runner.NewRunner(ctx, logger, runner.Options{
			EngineHost: opts.EngineHost,
			OutputDir:  opts.OutputDir,
			MgmtPort:   opts.MgmtPort,
			MaxWait:    opts.MaxWait,
			KeyBits:    opts.KeyBits,
		}),
	}
}

// NewControllerExecForTesting substitutes the phase runner.
func NewControllerExecForTesting(ctx context.Context, logger *slog.Logger, opts Options, r runner.Runner) *Exec {
	return &Exec{
		ctx:    ctx,
		logger: logger,
		opts:   opts,
		runner: r,
	}
}

func (b *Exec) loadSecrets() (*secrets.Config, error) {
	cfg, err := secrets.Load(b.opts.SecretsFile)
	if err != nil {
		return nil, err
	}
	b.logger.DebugContext(b.ctx, "secrets configuration loaded",
		"file", b.opts.SecretsFile, "accounts", cfg.AccountNames())
	return cfg, nil
}

func (b *Exec) resolveNames() (naming.Names, error) {
	names, err := naming.Resolve(b.opts.Naming)
	if err != nil {
		return naming.Names{}, err
	}
	return names, nil
}
