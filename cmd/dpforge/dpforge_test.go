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

package dpforge_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dpforge/dpforge/cmd/config"
	"github.com/dpforge/dpforge/cmd/dpforge"
	"github.com/dpforge/dpforge/cmd/types"
	"github.com/dpforge/dpforge/internal/errdefs"
)

type fakeConfigLoader struct {
	loadConfigFn func() error
}

func (f *fakeConfigLoader) LoadConfig() error {
	if f.loadConfigFn == nil {
		return nil
	}
	return f.loadConfigFn()
}

func TestNewDpforgeCmd(t *testing.T) {
	t.Cleanup(viper.Reset)

	cmd, err := dpforge.NewDpforgeCmd()
	if err != nil {
		t.Fatalf("NewDpforgeCmd() error = %v, want nil", err)
	}

	if cmd.Use != "dpforge" {
		t.Errorf("Use mismatch: got %q, want %q", cmd.Use, "dpforge")
	}

	expectedSubcommands := []string{
		"provision", "start-base", "wait-ready", "rotate-password", "stop",
		"commit", "tag-latest", "clean", "purge-secrets", "autocomplete", "version",
	}
	for _, subcmdName := range expectedSubcommands {
		found := false
		for _, c := range cmd.Commands() {
			if c.Name() == subcmdName {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %q not found", subcmdName)
		}
	}
}

func TestNewDpforgeCmdPersistentPreRunE(t *testing.T) {
	t.Cleanup(viper.Reset)

	tests := []struct {
		name        string
		verbose     bool
		logLevel    string
		loader      dpforge.ConfigLoader
		wantErr     bool
		wantErrMsg  string
		checkLogger bool
	}{
		{
			name:        "verbose disabled",
			verbose:     false,
			checkLogger: false,
		},
		{
			name:        "verbose enabled with default log level",
			verbose:     true,
			checkLogger: true,
		},
		{
			name:        "verbose enabled with debug log level",
			verbose:     true,
			logLevel:    "debug",
			checkLogger: true,
		},
		{
			name:        "verbose enabled with warn log level",
			verbose:     true,
			logLevel:    "warn",
			checkLogger: true,
		},
		{
			name:    "config loading error",
			verbose: false,
			loader: &fakeConfigLoader{
				loadConfigFn: func() error {
					return fmt.Errorf("config error: %w", errdefs.ErrConfig)
				},
			},
			wantErr:    true,
			wantErrMsg: "config error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			viper.Set(config.DPFORGE_ROOT_VERBOSE.ViperKey, tt.verbose)
			if tt.logLevel != "" {
				viper.Set(config.DPFORGE_ROOT_LOG_LEVEL.ViperKey, tt.logLevel)
			}
			viper.Set(config.DPFORGE_ROOT_CONFIG_FILE.ViperKey, "")

			cmd, err := dpforge.NewDpforgeCmd()
			if err != nil {
				t.Fatalf("NewDpforgeCmd() error = %v", err)
			}

			ctx := context.Background()
			if tt.loader != nil {
				ctx = context.WithValue(ctx, dpforge.MockConfigLoaderKey{}, tt.loader)
			}
			cmd.SetContext(ctx)

			err = cmd.PersistentPreRunE(cmd, []string{})

			if tt.wantErr {
				if err == nil {
					t.Fatalf("PersistentPreRunE() error = nil, want error containing %q", tt.wantErrMsg)
				}
				if !strings.Contains(err.Error(), tt.wantErrMsg) {
					t.Fatalf("PersistentPreRunE() error = %q, want error containing %q", err.Error(), tt.wantErrMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("PersistentPreRunE() error = %v, want nil", err)
			}

			logger := cmd.Context().Value(types.CtxLogger)
			if tt.checkLogger {
				if logger == nil {
					t.Fatal("logger not found in context when verbose is enabled")
				}
				if _, ok := logger.(*slog.Logger); !ok {
					t.Errorf("logger type mismatch: got %T, want *slog.Logger", logger)
				}
			} else if logger != nil {
				t.Error("logger found in context when verbose is disabled")
			}
		})
	}
}

func TestSetupDpforgeCmd(t *testing.T) {
	t.Cleanup(viper.Reset)

	rootCmd := &cobra.Command{Use: "test"}
	if err := dpforge.SetupDpforgeCmd(rootCmd); err != nil {
		t.Fatalf("SetupDpforgeCmd() error = %v, want nil", err)
	}

	commandMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		commandMap[cmd.Name()] = true
	}

	for _, name := range []string{"provision", "rotate-password", "commit", "clean", "version"} {
		if !commandMap[name] {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestSetPersistentFlags(t *testing.T) {
	t.Cleanup(viper.Reset)

	rootCmd := &cobra.Command{Use: "test"}
	if err := dpforge.SetPersistentFlags(rootCmd); err != nil {
		t.Fatalf("SetPersistentFlags() error = %v, want nil", err)
	}

	flags := []struct {
		name string
		def  string
	}{
		{"config", config.DefaultConfigFile()},
		{"secrets", "secrets.yaml"},
		{"output-dir", "build"},
		{"docker-host", ""},
		{"registry", ""},
		{"base-repository", "datapower/base"},
		{"repository", "customer-commit"},
		{"tag", "0.1"},
		{"container-name", "customer-commit"},
		{"mgmt-port", "2200"},
		{"max-wait", "120"},
		{"log-level", ""},
	}
	for _, f := range flags {
		flagObj := rootCmd.PersistentFlags().Lookup(f.name)
		if flagObj == nil {
			t.Errorf("expected %q flag to exist", f.name)
			continue
		}
		if flagObj.DefValue != f.def {
			t.Errorf("unexpected %q flag default: got %q, want %q", f.name, flagObj.DefValue, f.def)
		}
	}

	if rootCmd.PersistentFlags().Lookup("verbose") == nil {
		t.Error("expected verbose flag to exist")
	}
}

func TestSetPersistentFlagsViperBinding(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()

	rootCmd := &cobra.Command{Use: "test"}
	if err := dpforge.SetPersistentFlags(rootCmd); err != nil {
		t.Fatalf("SetPersistentFlags() error = %v, want nil", err)
	}

	if err := rootCmd.PersistentFlags().Set("tag", "2.0"); err != nil {
		t.Fatalf("failed to set tag flag: %v", err)
	}
	if got := viper.GetString(config.DPFORGE_ROOT_TAG.ViperKey); got != "2.0" {
		t.Errorf("viper tag binding: got %q, want %q", got, "2.0")
	}

	if err := rootCmd.PersistentFlags().Set("mgmt-port", "2022"); err != nil {
		t.Fatalf("failed to set mgmt-port flag: %v", err)
	}
	if got := viper.GetInt(config.DPFORGE_ROOT_MGMT_PORT.ViperKey); got != 2022 {
		t.Errorf("viper mgmt-port binding: got %d, want %d", got, 2022)
	}
}

func TestLoadConfigWithValidYAML(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()

	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := "dpforge/outputDir: /test/build\ndpforge/logLevel: warn\n"
	if err := os.WriteFile(configFile, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	// Only the config-file key is set, as the --config flag would.
	viper.Set(config.DPFORGE_ROOT_CONFIG_FILE.ViperKey, configFile)

	if err := dpforge.LoadConfig(); err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil", err)
	}

	if got := viper.GetString(config.DPFORGE_ROOT_OUTPUT_DIR.ViperKey); got != "/test/build" {
		t.Errorf("output dir from file: got %q, want %q", got, "/test/build")
	}
	if got := viper.GetString(config.DPFORGE_ROOT_LOG_LEVEL.ViperKey); got != "warn" {
		t.Errorf("log level from file: got %q, want %q", got, "warn")
	}
}

func TestLoadConfigRejectsMalformedYAML(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()

	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configFile, []byte("dpforge/outputDir: [unclosed\n"), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	viper.Set(config.DPFORGE_ROOT_CONFIG_FILE.ViperKey, configFile)

	if err := dpforge.LoadConfig(); !errors.Is(err, errdefs.ErrConfig) {
		t.Fatalf("LoadConfig() error = %v, want ErrConfig", err)
	}
}

func TestLoadConfigBindsEnvironment(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()

	t.Setenv("DPFORGE_TAG", "9.9")
	t.Setenv("DPFORGE_MGMT_PORT", "2300")

	if err := dpforge.LoadConfig(); err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil", err)
	}

	if got := viper.GetString(config.DPFORGE_ROOT_TAG.ViperKey); got != "9.9" {
		t.Errorf("tag from environment: got %q, want %q", got, "9.9")
	}
	if got := viper.GetInt(config.DPFORGE_ROOT_MGMT_PORT.ViperKey); got != 2300 {
		t.Errorf("mgmt port from environment: got %d, want %d", got, 2300)
	}
}

func TestLoadConfigDefaultLogLevel(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()

	if err := dpforge.LoadConfig(); err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil", err)
	}

	if got := viper.GetString(config.DPFORGE_ROOT_LOG_LEVEL.ViperKey); got != "info" {
		t.Errorf("default log level: got %q, want %q", got, "info")
	}
}
