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

package runner

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/dpforge/dpforge/internal/engine"
	"github.com/dpforge/dpforge/internal/errdefs"
	"github.com/dpforge/dpforge/internal/naming"
	"github.com/dpforge/dpforge/internal/readiness"
	"github.com/dpforge/dpforge/internal/state"
)

// Appliance mount points and ports.
const (
	applianceConfigDir = "/drouter/config"
	applianceLocalDir  = "/drouter/local"
	webMgmtPort        = 9090

	stopTimeoutSeconds = 30
)

// StartBase runs the base image with the artifact tree mounted in. The
// secure credential directories land under the appliance's local tree,
// the password map and evolve fragment under its config tree.
func (r *Exec) StartBase(names naming.Names) error {
	eng, err := r.engine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	outputDir, err := filepath.Abs(r.opts.OutputDir)
	if err != nil {
		return fmt.Errorf("%w: resolve output dir: %w", errdefs.ErrConfig, err)
	}

	spec := engine.RunSpec{
		Image:      names.Base.String(),
		Name:       names.ContainerName,
		Privileged: true,
		Binds: []string{
			filepath.Join(outputDir, configSubdir) + ":" + applianceConfigDir,
			filepath.Join(outputDir, secureSubdir, primaryCredsSubdir) + ":" + applianceLocalDir,
			filepath.Join(outputDir, secureSubdir, secondaryCredsSubdir) + ":" + applianceLocalDir + "/" + secondaryCredsSubdir,
		},
		Ports: []engine.PortBinding{
			{Container: r.opts.MgmtPort, Host: r.opts.MgmtPort},
			{Container: webMgmtPort, Host: webMgmtPort},
		},
		Env: []string{"DATAPOWER_ACCEPT_LICENSE=true"},
	}

	id, err := eng.Run(r.ctx, spec)
	if err != nil {
		return err
	}
	r.logger.InfoContext(r.ctx, "base container started",
		"container", names.ContainerName, "image", names.Base.String(), "id", id)
	return nil
}

// WaitReady blocks until the management port listens inside the
// container, then records readiness for the commit phase.
func (r *Exec) WaitReady(containerName string) error {
	eng, err := r.engine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	probe := &readiness.ExecProbe{
		Engine:    eng,
		Container: containerName,
		Port:      r.opts.MgmtPort,
	}
	poller := readiness.NewPoller(r.logger, probe, readiness.DefaultInterval, r.opts.MaxWait)
	if err := poller.Wait(r.ctx); err != nil {
		return err
	}

	info, err := eng.Inspect(r.ctx, containerName)
	if err != nil {
		return err
	}

	rec := state.Record{
		ContainerName: containerName,
		BaseImage:     info.Image,
		ReadyAt:       time.Now().UTC(),
	}
	return state.Write(r.ctx, r.logger, rec, r.statePath())
}

func (r *Exec) Stop(containerName string) error {
	eng, err := r.engine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()
	return eng.Stop(r.ctx, containerName, stopTimeoutSeconds)
}

func (r *Exec) Remove(containerName string) error {
	eng, err := r.engine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()
	return eng.Remove(r.ctx, containerName)
}

// Clean stops and removes the container and drops any recorded run
// state. Every step is idempotent on absence.
func (r *Exec) Clean(containerName string) error {
	if err := r.Stop(containerName); err != nil {
		return err
	}
	if err := r.Remove(containerName); err != nil {
		return err
	}
	return state.Clear(r.ctx, r.logger, r.statePath())
}

// Commit snapshots the container into the result reference. It refuses
// to commit a container that never reached readiness in a recorded run.
func (r *Exec) Commit(names naming.Names) (digest.Digest, error) {
	rec, err := state.Read(r.ctx, r.logger, r.statePath())
	if err != nil {
		return "", err
	}
	if rec.ContainerName != names.ContainerName {
		return "", fmt.Errorf("%w: state records container %q, not %q",
			errdefs.ErrNotProvisioned, rec.ContainerName, names.ContainerName)
	}

	eng, err := r.engine()
	if err != nil {
		return "", err
	}
	defer func() { _ = eng.Close() }()

	dgst, err := eng.Commit(r.ctx, names.ContainerName, names.Result)
	if err != nil {
		return "", err
	}
	r.logger.InfoContext(r.ctx, "container committed",
		"container", names.ContainerName, "image", names.Result.String(), "digest", dgst.String())
	return dgst, nil
}

// TagLatest aliases the result image under the "latest" tag.
func (r *Exec) TagLatest(names naming.Names) (naming.Reference, error) {
	alias := names.Result.WithTag(naming.LatestTag)

	eng, err := r.engine()
	if err != nil {
		return naming.Reference{}, err
	}
	defer func() { _ = eng.Close() }()

	if err := eng.Tag(r.ctx, names.Result, alias); err != nil {
		return naming.Reference{}, err
	}
	return alias, nil
}
