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

package dpforge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dpforge/dpforge/cmd/config"
	autocompletecmd "github.com/dpforge/dpforge/cmd/dpforge/autocomplete"
	cleancmd "github.com/dpforge/dpforge/cmd/dpforge/clean"
	commitcmd "github.com/dpforge/dpforge/cmd/dpforge/commit"
	provisioncmd "github.com/dpforge/dpforge/cmd/dpforge/provision"
	purgesecretscmd "github.com/dpforge/dpforge/cmd/dpforge/purgesecrets"
	rotatecmd "github.com/dpforge/dpforge/cmd/dpforge/rotate"
	startbasecmd "github.com/dpforge/dpforge/cmd/dpforge/startbase"
	stopcmd "github.com/dpforge/dpforge/cmd/dpforge/stop"
	taglatestcmd "github.com/dpforge/dpforge/cmd/dpforge/taglatest"
	"github.com/dpforge/dpforge/cmd/dpforge/version"
	waitreadycmd "github.com/dpforge/dpforge/cmd/dpforge/waitready"
	"github.com/dpforge/dpforge/cmd/types"
	"github.com/dpforge/dpforge/internal/errdefs"
	"github.com/dpforge/dpforge/internal/logging"
)

type ConfigLoader interface {
	LoadConfig() error
}

// MockConfigLoaderKey is used to inject mock config loaders in tests via context.
type MockConfigLoaderKey struct{}

func NewDpforgeCmd() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "dpforge",
		Short: "dpforge provisions DataPower gateway images with injected secrets",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var logger *slog.Logger
			if viper.GetBool(config.DPFORGE_ROOT_VERBOSE.ViperKey) {
				logLevel := viper.GetString(config.DPFORGE_ROOT_LOG_LEVEL.ViperKey)
				if logLevel == "" {
					logLevel = "info"
				}

				levelVar := new(slog.LevelVar)
				levelVar.Set(logging.ParseLevel(logLevel))

				textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar})
				handler := &logging.ReformatHandler{Inner: textHandler, Writer: os.Stdout}
				logger = slog.New(handler)

				ctx := cmd.Context()
				ctx = context.WithValue(ctx, types.CtxLogger, logger)
				ctx = context.WithValue(ctx, types.CtxLevelVar, &levelVar)
				ctx = context.WithValue(ctx, types.CtxHandler, handler)
				cmd.SetContext(ctx)
				logger.DebugContext(
					cmd.Context(),
					"enabling verbose",
					"log-level",
					viper.GetString(config.DPFORGE_ROOT_LOG_LEVEL.ViperKey),
				)
			}

			// Check for mock config loader in context (for testing)
			var loader ConfigLoader
			if mockLoader, ok := cmd.Context().Value(MockConfigLoaderKey{}).(ConfigLoader); ok {
				loader = mockLoader
			} else {
				loader = &realConfigLoader{}
			}

			if err := loader.LoadConfig(); err != nil {
				if logger != nil {
					logger.DebugContext(cmd.Context(), "config error", "error", err)
				}
				return fmt.Errorf("%w: %w", errdefs.ErrConfig, err)
			}
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	if err := SetupDpforgeCmd(cmd); err != nil {
		return nil, fmt.Errorf("failed to setup dpforge command: %w", err)
	}

	return cmd, nil
}

func SetupDpforgeCmd(rootCmd *cobra.Command) error {
	rootCmd.AddCommand(provisioncmd.NewProvisionCmd())
	rootCmd.AddCommand(startbasecmd.NewStartBaseCmd())
	rootCmd.AddCommand(waitreadycmd.NewWaitReadyCmd())
	rootCmd.AddCommand(rotatecmd.NewRotatePasswordCmd())
	rootCmd.AddCommand(stopcmd.NewStopCmd())
	rootCmd.AddCommand(commitcmd.NewCommitCmd())
	rootCmd.AddCommand(taglatestcmd.NewTagLatestCmd())
	rootCmd.AddCommand(cleancmd.NewCleanCmd())
	rootCmd.AddCommand(purgesecretscmd.NewPurgeSecretsCmd())
	rootCmd.AddCommand(autocompletecmd.NewAutocompleteCmd())
	rootCmd.AddCommand(version.NewVersionCmd())

	return SetPersistentFlags(rootCmd)
}

func SetPersistentFlags(rootCmd *cobra.Command) error {
	flags := []struct {
		name     string
		def      string
		usage    string
		viperKey string
	}{
		{"config", config.DefaultConfigFile(), "config file", config.DPFORGE_ROOT_CONFIG_FILE.ViperKey},
		{"secrets", "secrets.yaml", "secrets configuration file", config.DPFORGE_ROOT_SECRETS_FILE.ViperKey},
		{"output-dir", "build", "directory for generated artifacts", config.DPFORGE_ROOT_OUTPUT_DIR.ViperKey},
		{"docker-host", "", "container engine endpoint (defaults to the environment)", config.DPFORGE_ROOT_DOCKER_HOST.ViperKey},
		{"registry", "", "image registry (defaults to the invoking user)", config.DPFORGE_ROOT_REGISTRY.ViperKey},
		{"base-repository", "datapower/base", "base image repository", config.DPFORGE_ROOT_BASE_REPOSITORY.ViperKey},
		{"repository", "customer-commit", "result image repository", config.DPFORGE_ROOT_REPOSITORY.ViperKey},
		{"tag", "0.1", "result image tag", config.DPFORGE_ROOT_TAG.ViperKey},
		{"container-name", "customer-commit", "provisioning container name", config.DPFORGE_ROOT_CONTAINER_NAME.ViperKey},
		{"mgmt-port", "2200", "appliance management port", config.DPFORGE_ROOT_MGMT_PORT.ViperKey},
		{"max-wait", "120", "readiness wait bound in seconds", config.DPFORGE_ROOT_MAX_WAIT.ViperKey},
		{"log-level", "", "log level (debug, info, warn, error)", config.DPFORGE_ROOT_LOG_LEVEL.ViperKey},
	}
	for _, f := range flags {
		rootCmd.PersistentFlags().String(f.name, f.def, f.usage)
		if err := viper.BindPFlag(f.viperKey, rootCmd.PersistentFlags().Lookup(f.name)); err != nil {
			return err
		}
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	return viper.BindPFlag(config.DPFORGE_ROOT_VERBOSE.ViperKey, rootCmd.PersistentFlags().Lookup("verbose"))
}

type realConfigLoader struct{}

func (r *realConfigLoader) LoadConfig() error {
	return loadConfig()
}

func loadConfig() error {
	_ = config.DPFORGE_ROOT_CONFIG_FILE.BindEnv()

	configFile := viper.GetString(config.DPFORGE_ROOT_CONFIG_FILE.ViperKey)
	if configFile == "" {
		configFile = config.DefaultConfigFile()
		if err := config.DPFORGE_ROOT_CONFIG_FILE.Set(configFile); err != nil {
			return fmt.Errorf("%w: failed to set config file: %w", errdefs.ErrConfig, err)
		}
	}
	viper.SetConfigFile(configFile)
	viper.SetConfigType("yaml")

	for _, v := range []*config.Var{
		&config.DPFORGE_ROOT_VERBOSE,
		&config.DPFORGE_ROOT_SECRETS_FILE,
		&config.DPFORGE_ROOT_OUTPUT_DIR,
		&config.DPFORGE_ROOT_DOCKER_HOST,
		&config.DPFORGE_ROOT_REGISTRY,
		&config.DPFORGE_ROOT_BASE_REPOSITORY,
		&config.DPFORGE_ROOT_REPOSITORY,
		&config.DPFORGE_ROOT_TAG,
		&config.DPFORGE_ROOT_CONTAINER_NAME,
		&config.DPFORGE_ROOT_MGMT_PORT,
		&config.DPFORGE_ROOT_MAX_WAIT,
		&config.DPFORGE_ROOT_LOG_LEVEL,
	} {
		_ = v.BindEnv()
	}

	// A default, not Set: the config file and environment must win.
	config.DPFORGE_ROOT_LOG_LEVEL.SetDefault("info")

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; only unreadable or
		// malformed files are fatal.
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %w", errdefs.ErrConfig, err)
		}
	}

	return nil
}

// LoadConfig exposes config loading for tests.
func LoadConfig() error {
	return loadConfig()
}
