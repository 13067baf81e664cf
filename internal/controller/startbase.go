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
	"github.com/dpforge/dpforge/internal/naming"
)

// StartBaseResult reports the outcome of bringing up the base image.
type StartBaseResult struct {
	Names          naming.Names
	ArtifactsBuilt []string
	Started        bool
}

// StartBase builds any missing artifacts and starts the base container
// with the artifact tree mounted in.
func (b *Exec) StartBase() (StartBaseResult, error) {
	var res StartBaseResult

	cfg, err := b.loadSecrets()
	if err != nil {
		return res, err
	}
	names, err := b.resolveNames()
	if err != nil {
		return res, err
	}
	res.Names = names

	built, err := b.runner.BuildArtifacts(cfg)
	if err != nil {
		return res, err
	}
	res.ArtifactsBuilt = built

	if err := b.runner.StartBase(names); err != nil {
		return res, err
	}
	res.Started = true
	return res, nil
}
