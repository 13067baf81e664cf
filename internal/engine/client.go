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

// Package engine wraps the container engine API behind the small verb
// set provisioning needs: run, stop, remove, exec, commit, tag. The
// engine owns all state; the client keeps nothing beyond its
// configuration.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	dockerclient "github.com/docker/docker/client"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/dpforge/dpforge/internal/errdefs"
	"github.com/dpforge/dpforge/internal/naming"
)

type client struct {
	ctx    context.Context
	logger *slog.Logger
	host   string
	api    engineAPI
}

type Client interface {
	Connect() error
	Close() error
	Run(ctx context.Context, spec RunSpec) (string, error)
	Stop(ctx context.Context, name string, timeoutSeconds int) error
	Remove(ctx context.Context, name string) error
	Inspect(ctx context.Context, name string) (ContainerInfo, error)
	Exists(ctx context.Context, name string) (bool, error)
	Exec(ctx context.Context, name string, cmd []string) (ExecResult, error)
	Commit(ctx context.Context, name string, ref naming.Reference) (digest.Digest, error)
	Tag(ctx context.Context, ref, alias naming.Reference) error
	RemoveImage(ctx context.Context, ref naming.Reference) error
}

// engineAPI is the subset of the engine SDK the client calls; tests
// substitute a fake.
type engineAPI interface {
	ContainerCreate(
		ctx context.Context,
		config *container.Config,
		hostConfig *container.HostConfig,
		networkingConfig *network.NetworkingConfig,
		platform *ocispec.Platform,
		containerName string,
	) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerCommit(ctx context.Context, containerID string, options container.CommitOptions) (types.IDResponse, error)
	ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (types.IDResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, options container.ExecAttachOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
	ImageTag(ctx context.Context, source, target string) error
	ImageRemove(ctx context.Context, imageID string, options image.RemoveOptions) ([]image.DeleteResponse, error)
	Close() error
}

// Options configures the engine endpoint. An empty Host uses the
// environment (DOCKER_HOST) or the local socket.
type Options struct {
	Host string
}

func NewClient(ctx context.Context, logger *slog.Logger, opts Options) Client {
	return &client{
		ctx:    ctx,
		logger: logger,
		host:   opts.Host,
	}
}

func (c *client) Connect() error {
	if c.api != nil {
		c.logger.DebugContext(c.ctx, "engine client already connected, reusing connection", "host", c.host)
		return nil
	}

	clientOpts := []dockerclient.Opt{
		dockerclient.FromEnv,
		dockerclient.WithAPIVersionNegotiation(),
	}
	if c.host != "" {
		clientOpts = append(clientOpts, dockerclient.WithHost(c.host))
	}

	api, err := dockerclient.NewClientWithOpts(clientOpts...)
	if err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrConnectEngine, err)
	}
	c.api = api
	c.logger.InfoContext(c.ctx, "connected to engine", "host", c.host)
	return nil
}

func (c *client) Close() error {
	if c.api == nil {
		return nil
	}
	err := c.api.Close()
	c.api = nil
	if err != nil {
		return fmt.Errorf("%w: close: %w", errdefs.ErrEngine, err)
	}
	c.logger.InfoContext(c.ctx, "closed engine client")
	return nil
}
