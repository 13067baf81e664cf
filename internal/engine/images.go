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
	"context"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	dockererrdefs "github.com/docker/docker/errdefs"
	"github.com/opencontainers/go-digest"

	"github.com/dpforge/dpforge/internal/errdefs"
	"github.com/dpforge/dpforge/internal/naming"
)

// Commit snapshots the container's current filesystem into ref. A
// pre-existing image under the same reference is removed first so the
// result never aliases stale layers.
func (c *client) Commit(ctx context.Context, name string, ref naming.Reference) (digest.Digest, error) {
	if name == "" {
		return "", errdefs.ErrContainerRequired
	}
	if err := ref.Validate(); err != nil {
		return "", err
	}

	if err := c.RemoveImage(ctx, ref); err != nil {
		return "", err
	}

	resp, err := c.api.ContainerCommit(ctx, name, container.CommitOptions{
		Reference: ref.String(),
		Pause:     true,
	})
	if err != nil {
		if dockererrdefs.IsNotFound(err) {
			return "", fmt.Errorf("%w: container %q", errdefs.ErrNotFound, name)
		}
		return "", fmt.Errorf("%w: commit %q: %w", errdefs.ErrEngine, name, err)
	}

	id, err := digest.Parse(resp.ID)
	if err != nil {
		return "", fmt.Errorf("%w: commit returned invalid image id %q: %w", errdefs.ErrEngine, resp.ID, err)
	}
	c.logger.InfoContext(ctx, "container committed", "name", name, "ref", ref.String(), "id", id.String())
	return id, nil
}

// Tag aliases ref under another tag, replacing any previous alias.
func (c *client) Tag(ctx context.Context, ref, alias naming.Reference) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	if err := alias.Validate(); err != nil {
		return err
	}

	if err := c.api.ImageTag(ctx, ref.String(), alias.String()); err != nil {
		if dockererrdefs.IsNotFound(err) {
			return fmt.Errorf("%w: image %q", errdefs.ErrNotFound, ref.String())
		}
		return fmt.Errorf("%w: tag %q as %q: %w", errdefs.ErrEngine, ref.String(), alias.String(), err)
	}
	c.logger.InfoContext(ctx, "image tagged", "ref", ref.String(), "alias", alias.String())
	return nil
}

// RemoveImage untags ref; absence is not an error.
func (c *client) RemoveImage(ctx context.Context, ref naming.Reference) error {
	if err := ref.Validate(); err != nil {
		return err
	}

	if _, err := c.api.ImageRemove(ctx, ref.String(), image.RemoveOptions{Force: true}); err != nil {
		if dockererrdefs.IsNotFound(err) {
			c.logger.DebugContext(ctx, "image already absent on remove", "ref", ref.String())
			return nil
		}
		return fmt.Errorf("%w: remove image %q: %w", errdefs.ErrEngine, ref.String(), err)
	}
	c.logger.InfoContext(ctx, "image removed", "ref", ref.String())
	return nil
}
