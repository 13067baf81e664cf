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

package shared

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dpforge/dpforge/cmd/config"
	"github.com/dpforge/dpforge/cmd/types"
	"github.com/dpforge/dpforge/internal/controller"
	"github.com/dpforge/dpforge/internal/errdefs"
	"github.com/dpforge/dpforge/internal/naming"
)

// LoggerFromCmd extracts the slog logger from the Cobra command context.
func LoggerFromCmd(cmd *cobra.Command) (*slog.Logger, error) {
	logger, ok := cmd.Context().Value(types.CtxLogger).(*slog.Logger)
	if !ok || logger == nil {
		return nil, errdefs.ErrLoggerNotFound
	}
	return logger, nil
}

// ControllerFromCmd instantiates a controller.Exec configured with the
// shared persistent flags of the root command.
func ControllerFromCmd(cmd *cobra.Command) (*controller.Exec, error) {
	logger, err := LoggerFromCmd(cmd)
	if err != nil {
		return nil, err
	}

	opts := controller.Options{
		EngineHost:  viper.GetString(config.DPFORGE_ROOT_DOCKER_HOST.ViperKey),
		SecretsFile: viper.GetString(config.DPFORGE_ROOT_SECRETS_FILE.ViperKey),
		OutputDir:   viper.GetString(config.DPFORGE_ROOT_OUTPUT_DIR.ViperKey),
		Naming: naming.Overrides{
			Registry:       viper.GetString(config.DPFORGE_ROOT_REGISTRY.ViperKey),
			BaseRepository: viper.GetString(config.DPFORGE_ROOT_BASE_REPOSITORY.ViperKey),
			Repository:     viper.GetString(config.DPFORGE_ROOT_REPOSITORY.ViperKey),
			Tag:            viper.GetString(config.DPFORGE_ROOT_TAG.ViperKey),
			ContainerName:  viper.GetString(config.DPFORGE_ROOT_CONTAINER_NAME.ViperKey),
		},
		MgmtPort: viper.GetInt(config.DPFORGE_ROOT_MGMT_PORT.ViperKey),
		MaxWait:  time.Duration(viper.GetInt(config.DPFORGE_ROOT_MAX_WAIT.ViperKey)) * time.Second,
	}

	return controller.NewControllerExec(cmd.Context(), logger, opts), nil
}

// GetControllerWithMock is a generic helper to get a controller from context,
// supporting mock injection via a context key. If a mock is found in the
// context, it is returned. Otherwise, a real controller is created using
// the provided factory.
func GetControllerWithMock[T any](
	cmd *cobra.Command,
	mockKey any,
	realController func(*cobra.Command) (T, error),
) (T, error) {
	if mockCtrl, ok := cmd.Context().Value(mockKey).(T); ok {
		return mockCtrl, nil
	}
	return realController(cmd)
}
