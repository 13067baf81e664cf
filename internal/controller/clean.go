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

// CleanResult reports the cleanup outcome.
type CleanResult struct {
	ContainerName string
	Cleaned       bool
}

// Clean stops and removes the provisioning container and forgets any
// recorded readiness. Safe to run when nothing exists.
func (b *Exec) Clean() (CleanResult, error) {
	var res CleanResult

	names, err := b.resolveNames()
	if err != nil {
		return res, err
	}
	res.ContainerName = names.ContainerName

	if err := b.runner.Clean(names.ContainerName); err != nil {
		return res, err
	}
	res.Cleaned = true
	return res, nil
}
