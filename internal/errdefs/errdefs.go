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

package errdefs

import (
	"errors"
)

var (
	ErrConfig         = errors.New("config error")
	ErrLoggerNotFound = errors.New("logger not found in context")

	ErrGeneration      = errors.New("artifact generation failed")
	ErrArtifactCycle   = errors.New("artifact dependency cycle")
	ErrUnknownArtifact = errors.New("unknown artifact")

	ErrEngine        = errors.New("engine command failed")
	ErrConnectEngine = errors.New("failed to connect to engine")
	ErrNameConflict  = errors.New("container name already in use")
	ErrNotFound      = errors.New("not found")

	ErrTimeout = errors.New("readiness wait timed out")

	ErrSession       = errors.New("provisioning session failed")
	ErrLoginRejected = errors.New("login rejected")

	ErrSecretsFile          = errors.New("invalid secrets file")
	ErrAccountNameRequired  = errors.New("account name is required")
	ErrPasswordRequired     = errors.New("account password is required")
	ErrAccountNotConfigured = errors.New("account not configured")

	ErrRegistryRequired   = errors.New("registry is required")
	ErrRepositoryRequired = errors.New("repository is required")
	ErrTagRequired        = errors.New("tag is required")
	ErrContainerRequired  = errors.New("container name is required")

	ErrNotProvisioned = errors.New("container has not reached readiness")
	ErrWriteState     = errors.New("failed to write run state file")
)
