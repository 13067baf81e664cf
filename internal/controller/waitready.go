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

// WaitReadyResult reports the readiness observation.
type WaitReadyResult struct {
	ContainerName string
	Port          int
	Ready         bool
}

// WaitReady blocks until the container's management port listens, up to
// the configured maximum wait.
func (b *Exec) WaitReady() (WaitReadyResult, error) {
	var res WaitReadyResult

	names, err := b.resolveNames()
	if err != nil {
		return res, err
	}
	res.ContainerName = names.ContainerName
	res.Port = b.opts.MgmtPort

	if err := b.runner.WaitReady(names.ContainerName); err != nil {
		return res, err
	}
	res.Ready = true
	return res, nil
}
