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

package provision

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/dpforge/dpforge/cmd/dpforge/shared"
	"github.com/dpforge/dpforge/internal/controller"
)

type provisionController interface {
	Provision() (controller.ProvisionReport, error)
}

// MockControllerKey is used to inject mock controllers in tests via context.
type MockControllerKey struct{}

func NewProvisionCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "provision",
		Short:         "Run the full provisioning build",
		Long:          "Clean, build artifacts, start the base image, rotate every account password, stop, commit and tag the result.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl, err := shared.GetControllerWithMock(cmd, MockControllerKey{},
				func(c *cobra.Command) (provisionController, error) {
					return shared.ControllerFromCmd(c)
				})
			if err != nil {
				return err
			}

			report, err := ctrl.Provision()
			if err != nil {
				return err
			}

			cmd.Printf("Provisioned image %q (digest %s)\n", report.Names.Result.String(), report.Digest)
			cmd.Printf("Tagged %q\n", report.LatestAlias.String())
			cmd.Printf("Rotated accounts: %s\n", strings.Join(report.RotatedAccounts, ", "))
			return nil
		},
	}
}
