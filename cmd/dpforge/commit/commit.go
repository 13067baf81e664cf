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

package commit

import (
	"github.com/spf13/cobra"

	"github.com/dpforge/dpforge/cmd/dpforge/shared"
	"github.com/dpforge/dpforge/internal/controller"
)

type commitController interface {
	Commit() (controller.CommitResult, error)
}

// MockControllerKey is used to inject mock controllers in tests via context.
type MockControllerKey struct{}

func NewCommitCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "commit",
		Short:         "Commit the provisioned container to the result image",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl, err := shared.GetControllerWithMock(cmd, MockControllerKey{},
				func(c *cobra.Command) (commitController, error) {
					return shared.ControllerFromCmd(c)
				})
			if err != nil {
				return err
			}

			res, err := ctrl.Commit()
			if err != nil {
				return err
			}

			cmd.Printf("Committed image %s (%s)\n", res.Image, res.Digest)
			return nil
		},
	}
}
