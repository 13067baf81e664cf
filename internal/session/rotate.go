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

package session

import (
	"fmt"
	"regexp"

	"github.com/dpforge/dpforge/internal/errdefs"
	"github.com/dpforge/dpforge/internal/secrets"
)

var (
	reLogin       = regexp.MustCompile(`(?i)login:\s*$`)
	rePassword    = regexp.MustCompile(`(?i)password:\s*$`)
	reNewPassword = regexp.MustCompile(`(?i)enter new password:\s*$`)
	reConfirm     = regexp.MustCompile(`(?i)re-?enter new password:\s*$`)
	rePrompt      = regexp.MustCompile(`\S+#\s*$`)
	reConfig      = regexp.MustCompile(`\(config\)#\s*$`)
	reUserCtx     = regexp.MustCompile(`\(config user [^)]*\)#\s*$`)
	reRejected    = regexp.MustCompile(`(?i)(login incorrect|authentication fail|access denied)`)
)

// login authenticates with the given password and waits for whatever
// the appliance presents next: the CLI prompt, a forced password
// change, or a rejection.
//
// Returned index: 0 prompt, 1 forced change.
func (s *Session) login(name, password string) (int, error) {
	if err := s.expect("login prompt", reLogin); err != nil {
		return -1, err
	}
	if err := s.sendLine("send username", name); err != nil {
		return -1, err
	}
	if err := s.expect("password prompt", rePassword); err != nil {
		return -1, err
	}
	if err := s.sendLine("send password", password); err != nil {
		return -1, err
	}

	idx, err := s.expectAny("post-login", rePrompt, reNewPassword, reRejected, reLogin)
	if err != nil {
		return -1, err
	}
	if idx >= 2 {
		return -1, fmt.Errorf("%w: %w: account %q", errdefs.ErrSession, errdefs.ErrLoginRejected, name)
	}
	return idx, nil
}

// changePassword answers a forced set+confirm exchange. The appliance
// already printed the "enter new password" prompt when this runs.
func (s *Session) changePassword(newPassword string) error {
	if err := s.sendLine("send new password", newPassword); err != nil {
		return err
	}
	if err := s.expect("confirm prompt", reConfirm); err != nil {
		return err
	}
	if err := s.sendLine("confirm new password", newPassword); err != nil {
		return err
	}
	// A policy rejection re-issues the new-password prompt instead of
	// the CLI prompt; that is a hard failure, not something to retry.
	idx, err := s.expectAny("password accepted", rePrompt, reNewPassword)
	if err != nil {
		return err
	}
	if idx == 1 {
		return fmt.Errorf("%w: new password rejected by policy", errdefs.ErrSession)
	}
	return nil
}

// setUserPassword walks the configuration context and sets the account
// password on the user object, the branch privileged accounts need.
func (s *Session) setUserPassword(account secrets.Account) error {
	if err := s.sendLine("enter config", "configure terminal"); err != nil {
		return err
	}
	if err := s.expect("config prompt", reConfig); err != nil {
		return err
	}
	if err := s.sendLine("select user", "user "+account.Name); err != nil {
		return err
	}
	if err := s.expect("user context", reUserCtx); err != nil {
		return err
	}
	if err := s.sendLine("password command", "password"); err != nil {
		return err
	}
	if err := s.expect("new password prompt", reNewPassword); err != nil {
		return err
	}
	if err := s.sendLine("send new password", account.Password); err != nil {
		return err
	}
	if err := s.expect("confirm prompt", reConfirm); err != nil {
		return err
	}
	if err := s.sendLine("confirm new password", account.Password); err != nil {
		return err
	}
	if err := s.expect("user context after change", reUserCtx); err != nil {
		return err
	}
	if err := s.sendLine("exit user context", "exit"); err != nil {
		return err
	}
	if err := s.expect("config prompt after exit", reConfig); err != nil {
		return err
	}
	if err := s.sendLine("exit config", "exit"); err != nil {
		return err
	}
	return s.expect("top prompt", rePrompt)
}

// Rotate changes the account's credential from currentPassword to its
// configured target password. Accounts flagged AdminContext take the
// configuration-context branch after the initial change; the rest are
// done once the conversational change completes.
func (s *Session) Rotate(account secrets.Account, currentPassword string) error {
	state, err := s.login(account.Name, currentPassword)
	if err != nil {
		return err
	}

	if state == 1 { // forced change on first login
		if err := s.changePassword(account.Password); err != nil {
			return err
		}
	}

	if account.AdminContext {
		if err := s.setUserPassword(account); err != nil {
			return err
		}
	} else if state == 0 {
		// No forced change was offered and the account has no
		// configuration-context branch; nothing rotated.
		return fmt.Errorf("%w: account %q: no password change offered at login", errdefs.ErrSession, account.Name)
	}

	return s.sendLine("close session", "exit")
}

// Verify re-authenticates with the rotated credential and succeeds only
// if the appliance presents the CLI prompt.
func (s *Session) Verify(account secrets.Account) error {
	state, err := s.login(account.Name, account.Password)
	if err != nil {
		return err
	}
	if state != 0 {
		return fmt.Errorf("%w: account %q: unexpected password change prompt after rotation", errdefs.ErrSession, account.Name)
	}
	return s.sendLine("close session", "exit")
}
