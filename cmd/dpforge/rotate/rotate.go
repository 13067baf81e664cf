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

// Package rotate implements the rotate subcommand, which changes the
// password of a single appliance account over the management port.
package rotate

import (
	"github.com/spf13/cobra"

	"github.com/dpforge/dpforge/cmd/config"
	"github.com/dpforge/dpforge/cmd/dpforge/shared"
	"github.com/dpforge/dpforge/internal/controller"
)

type rotateController interface {
	RotatePassword(name string) (controller.RotatePasswordResult, error)
}

// MockControllerKey is used to inject mock controllers in tests via context.
type MockControllerKey struct{}

func NewRotatePasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "rotate-password <account>",
		Short:             "Rotate the password of an appliance account",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: config.CompleteAccountNames,
		SilenceUsage:      true,
		SilenceErrors:     false,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := shared.GetControllerWithMock(cmd, MockControllerKey{},
				func(c *cobra.Command) (rotateController, error) {
					return shared.ControllerFromCmd(c)
				})
			if err != nil {
				return err
			}

			res, err := ctrl.RotatePassword(args[0])
			if err != nil {
				return err
			}

			cmd.Printf("Rotated password for account %q (verified: %t)\n", res.Account, res.Verified)
			return nil
		},
	}
}
