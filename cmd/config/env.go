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
	"os"

	"github.com/spf13/viper"
)

type Var struct {
	Key        string // e.g. "DPFORGE_TAG"
	ViperKey   string // optional, e.g. "dpforge/tag"
	CobraKey   string // optional, e.g. "tag"
	Default    string // optional
	HasDefault bool
}

func DefineKV(envName, viperKey string, defaultVal ...string) Var {
	v := Var{Key: envName, ViperKey: viperKey}
	if len(defaultVal) > 0 {
		v.Default = defaultVal[0]
		v.HasDefault = true
	}
	return v
}

func Define(envName string, defaultVal ...string) Var {
	return DefineKV(envName, "", defaultVal...)
}

func (v *Var) EnvKey() string               { return v.Key }
func (v *Var) EnvVar() string               { return v.Key }
func (v *Var) DefaultValue() (string, bool) { return v.Default, v.HasDefault }

// ValueOrDefault defines precedence: viper (if ViperKey set and value present) → OS env → default → "".
func (v *Var) ValueOrDefault() string {
	if v.ViperKey != "" && viper.IsSet(v.ViperKey) {
		return viper.GetString(v.ViperKey)
	}
	if val, ok := os.LookupEnv(v.Key); ok {
		return val
	}
	if v.HasDefault {
		return v.Default
	}
	return ""
}

// BindEnv is safe if ViperKey is empty: does nothing.
func (v *Var) BindEnv() error {
	if v.ViperKey == "" {
		return nil
	}
	return viper.BindEnv(v.ViperKey, v.Key)
}

func (v *Var) Set(value string) error {
	return os.Setenv(v.Key, value)
}

func (v *Var) SetDefault(val string) {
	v.Default = val
	v.HasDefault = true
	if v.ViperKey != "" {
		viper.SetDefault(v.ViperKey, val)
	}
}

func KV(v Var, value string) string { return v.Key + "=" + value }

// ---- Declare statically (Viper key optional per var) ----.
var (
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	DPFORGE_ROOT_VERBOSE = DefineKV("DPFORGE_VERBOSE", "dpforge/verbose")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	DPFORGE_ROOT_CONFIG_FILE = DefineKV("DPFORGE_CONFIG_FILE", "dpforge/configFile")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	DPFORGE_ROOT_LOG_LEVEL = DefineKV("DPFORGE_LOG_LEVEL", "dpforge/logLevel", "info")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	DPFORGE_ROOT_DOCKER_HOST = DefineKV("DPFORGE_DOCKER_HOST", "dpforge/docker.host")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	DPFORGE_ROOT_SECRETS_FILE = DefineKV("DPFORGE_SECRETS_FILE", "dpforge/secretsFile", "secrets.yaml")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	DPFORGE_ROOT_OUTPUT_DIR = DefineKV("DPFORGE_OUTPUT_DIR", "dpforge/outputDir", "build")

	// Naming overrides. Registry defaults to the invoking user at resolve
	// time, not here, so an empty value stays distinguishable.
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	DPFORGE_ROOT_REGISTRY = DefineKV("DPFORGE_REGISTRY", "dpforge/registry")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	DPFORGE_ROOT_BASE_REPOSITORY = DefineKV("DPFORGE_BASE_REPOSITORY", "dpforge/baseRepository", "datapower/base")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	DPFORGE_ROOT_REPOSITORY = DefineKV("DPFORGE_REPOSITORY", "dpforge/repository", "customer-commit")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	DPFORGE_ROOT_TAG = DefineKV("DPFORGE_TAG", "dpforge/tag", "0.1")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	DPFORGE_ROOT_CONTAINER_NAME = DefineKV("DPFORGE_CONTAINER_NAME", "dpforge/containerName", "customer-commit")

	// Readiness and session tuning.
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	DPFORGE_ROOT_MGMT_PORT = DefineKV("DPFORGE_MGMT_PORT", "dpforge/mgmtPort", "2200")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	DPFORGE_ROOT_MAX_WAIT = DefineKV("DPFORGE_MAX_WAIT", "dpforge/maxWait", "120")

	// Rotate command variables
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	DPFORGE_ROTATE_USER = DefineKV("DPFORGE_ROTATE_USER", "dpforge/rotate/user")
)
