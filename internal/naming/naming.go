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

package naming

import (
	"fmt"
	"net/url"
	"os/user"
	"strings"

	"github.com/dpforge/dpforge/internal/errdefs"
)

const (
	DefaultBaseRepository = "datapower/base"
	DefaultRepository     = "customer-commit"
	DefaultTag            = "0.1"
	DefaultContainerName  = "customer-commit"
	LatestTag             = "latest"
)

// Reference names a container image as registry/repository:tag.
type Reference struct {
	Registry   string
	Repository string
	Tag        string
}

func (r Reference) String() string {
	return fmt.Sprintf("%s/%s:%s", r.Registry, r.Repository, r.Tag)
}

// WithTag returns a copy of the reference under another tag.
func (r Reference) WithTag(tag string) Reference {
	r.Tag = tag
	return r
}

func (r Reference) Validate() error {
	if strings.TrimSpace(r.Registry) == "" {
		return errdefs.ErrRegistryRequired
	}
	if strings.TrimSpace(r.Repository) == "" {
		return errdefs.ErrRepositoryRequired
	}
	if strings.TrimSpace(r.Tag) == "" {
		return errdefs.ErrTagRequired
	}
	return nil
}

// Overrides carries the operator-supplied naming values. Empty fields
// resolve to the documented defaults.
type Overrides struct {
	Registry       string
	BaseRepository string
	Repository     string
	Tag            string
	ContainerName  string
}

// Names is the naming configuration resolved once per invocation.
type Names struct {
	Base          Reference
	Result        Reference
	ContainerName string
}

// Resolve applies defaults: registry falls back to the invoking user's
// username, the result repository to "customer-commit", the tag to "0.1"
// and the container name to "customer-commit".
func Resolve(o Overrides) (Names, error) {
	registry := strings.TrimSpace(o.Registry)
	if registry == "" {
		u, err := user.Current()
		if err != nil {
			return Names{}, fmt.Errorf("%w: resolve default registry: %w", errdefs.ErrConfig, err)
		}
		registry = u.Username
	}

	baseRepo := strings.TrimSpace(o.BaseRepository)
	if baseRepo == "" {
		baseRepo = DefaultBaseRepository
	}
	repo := strings.TrimSpace(o.Repository)
	if repo == "" {
		repo = DefaultRepository
	}
	tag := strings.TrimSpace(o.Tag)
	if tag == "" {
		tag = DefaultTag
	}
	containerName := strings.TrimSpace(o.ContainerName)
	if containerName == "" {
		containerName = DefaultContainerName
	}

	names := Names{
		Base:          Reference{Registry: registry, Repository: baseRepo, Tag: tag},
		Result:        Reference{Registry: registry, Repository: repo, Tag: tag},
		ContainerName: containerName,
	}
	if err := names.Base.Validate(); err != nil {
		return Names{}, err
	}
	if err := names.Result.Validate(); err != nil {
		return Names{}, err
	}
	return names, nil
}

// SessionHost derives the host used for management sessions from the
// engine endpoint. A local socket (or no endpoint at all) maps to
// loopback; a tcp:// endpoint contributes its host portion.
func SessionHost(engineEndpoint string) string {
	endpoint := strings.TrimSpace(engineEndpoint)
	if endpoint == "" || strings.HasPrefix(endpoint, "unix://") || strings.HasPrefix(endpoint, "npipe://") {
		return "127.0.0.1"
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Hostname() == "" {
		return "127.0.0.1"
	}
	return u.Hostname()
}
