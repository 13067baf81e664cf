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

package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/docker/docker/api/types/container"
	dockererrdefs "github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"

	"github.com/dpforge/dpforge/internal/errdefs"
)

// PortBinding publishes a container port on the host. A zero Host port
// lets the engine pick an ephemeral one.
type PortBinding struct {
	Container int
	Host      int
}

// RunSpec describes the container to create and start.
type RunSpec struct {
	Image      string
	Name       string
	Privileged bool
	Binds      []string // host:container[:mode]
	Ports      []PortBinding
	Env        []string
}

func (s RunSpec) validate() error {
	if s.Image == "" {
		return fmt.Errorf("%w: image reference is required", errdefs.ErrEngine)
	}
	if s.Name == "" {
		return errdefs.ErrContainerRequired
	}
	return nil
}

// Run creates and starts the container. A name held by an existing
// container surfaces as ErrNameConflict; the caller decides whether to
// clean up and retry.
func (c *client) Run(ctx context.Context, spec RunSpec) (string, error) {
	if err := spec.validate(); err != nil {
		return "", err
	}

	exposedPorts := nat.PortSet{}
	portBindings := nat.PortMap{}
	for _, pb := range spec.Ports {
		cp := nat.Port(strconv.Itoa(pb.Container) + "/tcp")
		exposedPorts[cp] = struct{}{}
		hostPort := strconv.Itoa(pb.Host)
		if pb.Host == 0 {
			hostPort = ""
		}
		portBindings[cp] = []nat.PortBinding{{HostPort: hostPort}}
	}

	config := &container.Config{
		Image:        spec.Image,
		Env:          spec.Env,
		ExposedPorts: exposedPorts,
	}
	hostConfig := &container.HostConfig{
		Binds:        spec.Binds,
		Privileged:   spec.Privileged,
		PortBindings: portBindings,
	}

	resp, err := c.api.ContainerCreate(ctx, config, hostConfig, nil, nil, spec.Name)
	if err != nil {
		if dockererrdefs.IsConflict(err) {
			return "", fmt.Errorf("%w: %q: %w", errdefs.ErrNameConflict, spec.Name, err)
		}
		return "", fmt.Errorf("%w: create %q: %w", errdefs.ErrEngine, spec.Name, err)
	}

	if err := c.api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("%w: start %q: %w", errdefs.ErrEngine, spec.Name, err)
	}

	c.logger.InfoContext(ctx, "container started", "name", spec.Name, "id", resp.ID, "image", spec.Image)
	return resp.ID, nil
}

// Stop halts the container. An absent container is not an error so that
// cleanup stays idempotent across repeated runs.
func (c *client) Stop(ctx context.Context, name string, timeoutSeconds int) error {
	if name == "" {
		return errdefs.ErrContainerRequired
	}

	opts := container.StopOptions{}
	if timeoutSeconds > 0 {
		opts.Timeout = &timeoutSeconds
	}
	if err := c.api.ContainerStop(ctx, name, opts); err != nil {
		if dockererrdefs.IsNotFound(err) {
			c.logger.DebugContext(ctx, "container already absent on stop", "name", name)
			return nil
		}
		return fmt.Errorf("%w: stop %q: %w", errdefs.ErrEngine, name, err)
	}
	c.logger.InfoContext(ctx, "container stopped", "name", name)
	return nil
}

// Remove deletes the container, idempotent on absence like Stop.
func (c *client) Remove(ctx context.Context, name string) error {
	if name == "" {
		return errdefs.ErrContainerRequired
	}

	if err := c.api.ContainerRemove(ctx, name, container.RemoveOptions{Force: true}); err != nil {
		if dockererrdefs.IsNotFound(err) {
			c.logger.DebugContext(ctx, "container already absent on remove", "name", name)
			return nil
		}
		return fmt.Errorf("%w: remove %q: %w", errdefs.ErrEngine, name, err)
	}
	c.logger.InfoContext(ctx, "container removed", "name", name)
	return nil
}

// ContainerInfo is the slice of inspect output provisioning cares
// about.
type ContainerInfo struct {
	ID      string
	Image   string
	Running bool
}

func (c *client) Inspect(ctx context.Context, name string) (ContainerInfo, error) {
	if name == "" {
		return ContainerInfo{}, errdefs.ErrContainerRequired
	}

	res, err := c.api.ContainerInspect(ctx, name)
	if err != nil {
		if dockererrdefs.IsNotFound(err) {
			return ContainerInfo{}, fmt.Errorf("%w: container %q", errdefs.ErrNotFound, name)
		}
		return ContainerInfo{}, fmt.Errorf("%w: inspect %q: %w", errdefs.ErrEngine, name, err)
	}

	info := ContainerInfo{}
	if res.ContainerJSONBase != nil {
		info.ID = res.ID
		if res.State != nil {
			info.Running = res.State.Running
		}
	}
	if res.Config != nil {
		info.Image = res.Config.Image
	}
	return info, nil
}

func (c *client) Exists(ctx context.Context, name string) (bool, error) {
	if _, err := c.Inspect(ctx, name); err != nil {
		if errors.Is(err, errdefs.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ExecResult carries the demuxed output and exit code of an in-container command.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

func (c *client) Exec(ctx context.Context, name string, cmd []string) (ExecResult, error) {
	if name == "" {
		return ExecResult{}, errdefs.ErrContainerRequired
	}

	created, err := c.api.ContainerExecCreate(ctx, name, container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		if dockererrdefs.IsNotFound(err) {
			return ExecResult{}, fmt.Errorf("%w: container %q", errdefs.ErrNotFound, name)
		}
		return ExecResult{}, fmt.Errorf("%w: exec create in %q: %w", errdefs.ErrEngine, name, err)
	}

	attach, err := c.api.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return ExecResult{}, fmt.Errorf("%w: exec attach in %q: %w", errdefs.ErrEngine, name, err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader); err != nil {
		return ExecResult{}, fmt.Errorf("%w: exec read in %q: %w", errdefs.ErrEngine, name, err)
	}

	inspect, err := c.api.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return ExecResult{}, fmt.Errorf("%w: exec inspect in %q: %w", errdefs.ErrEngine, name, err)
	}

	return ExecResult{
		ExitCode: inspect.ExitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}
