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

package controller

import (
	"fmt"

	"github.com/opencontainers/go-digest"

	"github.com/dpforge/dpforge/internal/naming"
)

// ProvisionReport records how far the full build got. On error the
// partially filled report tells the operator which phase failed and
// what state the container was left in.
type ProvisionReport struct {
	Names            naming.Names
	ArtifactsBuilt   []string
	ContainerStarted bool
	ReadyObserved    bool
	RotatedAccounts  []string
	Stopped          bool
	Digest           digest.Digest
	Removed          bool
	LatestAlias      naming.Reference
}

// Provision runs the end-to-end build: clean, build artifacts, start
// the base image, wait for the management port, rotate and verify every
// configured account, stop, commit, remove, tag latest. Any phase error
// aborts the remaining phases; there is no rollback.
func (b *Exec) Provision() (ProvisionReport, error) {
	var report ProvisionReport

	cfg, err := b.loadSecrets()
	if err != nil {
		return report, err
	}
	names, err := b.resolveNames()
	if err != nil {
		return report, err
	}
	report.Names = names

	b.logger.InfoContext(b.ctx, "provisioning image",
		"base", names.Base.String(), "result", names.Result.String(), "container", names.ContainerName)

	if err := b.runner.Clean(names.ContainerName); err != nil {
		return report, fmt.Errorf("clean before provisioning: %w", err)
	}

	built, err := b.runner.BuildArtifacts(cfg)
	if err != nil {
		return report, fmt.Errorf("build artifacts: %w", err)
	}
	report.ArtifactsBuilt = built

	if err := b.runner.StartBase(names); err != nil {
		return report, fmt.Errorf("start base container: %w", err)
	}
	report.ContainerStarted = true

	if err := b.runner.WaitReady(names.ContainerName); err != nil {
		return report, fmt.Errorf("wait for management port: %w", err)
	}
	report.ReadyObserved = true

	for _, account := range cfg.Accounts {
		if err := b.runner.RotateAccount(account, cfg.DefaultPassword); err != nil {
			return report, fmt.Errorf("rotate password for %q: %w", account.Name, err)
		}
		if err := b.runner.VerifyAccount(account); err != nil {
			return report, fmt.Errorf("verify rotated password for %q: %w", account.Name, err)
		}
		report.RotatedAccounts = append(report.RotatedAccounts, account.Name)
	}

	if err := b.runner.Stop(names.ContainerName); err != nil {
		return report, fmt.Errorf("stop container: %w", err)
	}
	report.Stopped = true

	dgst, err := b.runner.Commit(names)
	if err != nil {
		return report, fmt.Errorf("commit image: %w", err)
	}
	report.Digest = dgst

	if err := b.runner.Remove(names.ContainerName); err != nil {
		return report, fmt.Errorf("remove container: %w", err)
	}
	report.Removed = true

	alias, err := b.runner.TagLatest(names)
	if err != nil {
		return report, fmt.Errorf("tag latest: %w", err)
	}
	report.LatestAlias = alias

	b.logger.InfoContext(b.ctx, "provisioning complete",
		"image", names.Result.String(), "digest", dgst.String(), "accounts", report.RotatedAccounts)
	return report, nil
}
