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

package runner

import (
	"slices"

	"github.com/dpforge/dpforge/internal/naming"
	"github.com/dpforge/dpforge/internal/secrets"
	"github.com/dpforge/dpforge/internal/session"
	"github.com/dpforge/dpforge/internal/state"
)

func (r *Exec) dialSession() (*session.Session, error) {
	host := naming.SessionHost(r.opts.EngineHost)
	return session.Dial(r.ctx, r.logger, session.Options{
		Host: host,
		Port: r.opts.MgmtPort,
	})
}

// RotateAccount opens a management session and rotates the account from
// currentPassword to its configured target password.
func (r *Exec) RotateAccount(account secrets.Account, currentPassword string) error {
	s, err := r.dialSession()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if err := s.Rotate(account, currentPassword); err != nil {
		return err
	}
	r.logger.InfoContext(r.ctx, "account password rotated", "account", account)
	return r.markRotated(account.Name)
}

// markRotated appends the account to the run state so the final report
// reflects which credentials this run actually touched. Rotation
// outside a recorded run leaves no state to update.
func (r *Exec) markRotated(name string) error {
	rec, err := state.Read(r.ctx, r.logger, r.statePath())
	if err != nil {
		return nil
	}
	if slices.Contains(rec.RotatedAccounts, name) {
		return nil
	}
	rec.RotatedAccounts = append(rec.RotatedAccounts, name)
	return state.Write(r.ctx, r.logger, rec, r.statePath())
}

// VerifyAccount opens a fresh session and checks that the rotated
// credential authenticates.
func (r *Exec) VerifyAccount(account secrets.Account) error {
	s, err := r.dialSession()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if err := s.Verify(account); err != nil {
		return err
	}
	r.logger.DebugContext(r.ctx, "rotated credential verified", "account", account)
	return nil
}
