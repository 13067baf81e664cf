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

package config

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/dpforge/dpforge/internal/secrets"
)

// CompleteAccountNames provides shell completion for appliance account names
// by reading the secrets file named in the configuration.
// This function can be used as a ValidArgsFunction or for flag completion in
// commands that accept account names.
func CompleteAccountNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	// When used as ValidArgsFunction for positional args, if an argument is
	// already provided and toComplete is empty, don't suggest more
	// completions. This prevents the completion from being appended multiple
	// times when tab is pressed repeatedly after an argument is present.
	if len(args) >= 1 && toComplete == "" {
		if cmd.ValidArgsFunction != nil && cmd.Args != nil {
			testArgs := make([]string, len(args), len(args)+1)
			copy(testArgs, args)
			testArgs = append(testArgs, "test")
			if err := cmd.Args(cmd, testArgs); err != nil {
				// Adding another arg would fail, so we're at max
				return []string{}, cobra.ShellCompDirectiveNoFileComp
			}
		}
	}

	cfg, err := secrets.Load(DPFORGE_ROOT_SECRETS_FILE.ValueOrDefault())
	if err != nil {
		// Return empty completion on error (secrets file unavailable)
		return []string{}, cobra.ShellCompDirectiveNoFileComp
	}

	all := cfg.AccountNames()
	names := make([]string, 0, len(all))
	for _, name := range all {
		if toComplete == "" || strings.HasPrefix(name, toComplete) {
			names = append(names, name)
		}
	}

	return names, cobra.ShellCompDirectiveNoFileComp
}
