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
	"strings"

	"github.com/dpforge/dpforge/internal/errdefs"
)

// RotatePasswordResult reports a single-account rotation.
type RotatePasswordResult struct {
	Account  string
	Rotated  bool
	Verified bool
}

// RotatePassword rotates one configured account from the default
// factory password to its target password and verifies the new
// credential with a fresh login.
func (b *Exec) RotatePassword(name string) (RotatePasswordResult, error) {
	var res RotatePasswordResult

	name = strings.TrimSpace(name)
	if name == "" {
		return res, errdefs.ErrAccountNameRequired
	}
	res.Account = name

	cfg, err := b.loadSecrets()
	if err != nil {
		return res, err
	}
	account, err := cfg.Account(name)
	if err != nil {
		return res, err
	}

	if err := b.runner.RotateAccount(account, cfg.DefaultPassword); err != nil {
		return res, err
	}
	res.Rotated = true

	if err := b.runner.VerifyAccount(account); err != nil {
		return res, err
	}
	res.Verified = true
	return res, nil
}
