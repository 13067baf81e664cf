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
	"github.com/opencontainers/go-digest"

	"github.com/dpforge/dpforge/internal/naming"
)

// CommitResult reports the committed image.
type CommitResult struct {
	Image  naming.Reference
	Digest digest.Digest
}

// Commit snapshots the provisioned container into the result image.
// It fails when no readiness was recorded for the container.
func (b *Exec) Commit() (CommitResult, error) {
	var res CommitResult

	names, err := b.resolveNames()
	if err != nil {
		return res, err
	}
	res.Image = names.Result

	dgst, err := b.runner.Commit(names)
	if err != nil {
		return res, err
	}
	res.Digest = dgst
	return res, nil
}
