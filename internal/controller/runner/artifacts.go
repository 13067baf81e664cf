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
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dpforge/dpforge/internal/artifact"
	"github.com/dpforge/dpforge/internal/secrets"
	"github.com/dpforge/dpforge/internal/tlsgen"
)

// Generated tree under the output directory. The secure subtree is
// mounted into the appliance and never committed into image layers.
const (
	secureSubdir         = "secure"
	primaryCredsSubdir   = "local"
	secondaryCredsSubdir = "foo"
	configSubdir         = "config"

	serverKeyFile  = "server.key"
	serverCertFile = "server.crt"
	serverCSRFile  = "server.csr"

	passwordMapFile  = "password-map.cfg"
	evolveConfigFile = "evolve.cfg"
	secretFilePerm   = 0o600
)

func (r *Exec) primaryCredsDir() string {
	return filepath.Join(r.opts.OutputDir, secureSubdir, primaryCredsSubdir)
}

func (r *Exec) secondaryCredsDir() string {
	return filepath.Join(r.opts.OutputDir, secureSubdir, secondaryCredsSubdir)
}

func (r *Exec) configDir() string {
	return filepath.Join(r.opts.OutputDir, configSubdir)
}

// BuildArtifacts materializes the mount tree: server key pair and CSR,
// the fan-out copy into the secondary credential directory, the
// password-map file and the evolve configuration fragment. Artifacts
// already present are left untouched.
func (r *Exec) BuildArtifacts(cfg *secrets.Config) ([]string, error) {
	primaryKey := filepath.Join(r.primaryCredsDir(), serverKeyFile)
	primaryCert := filepath.Join(r.primaryCredsDir(), serverCertFile)
	primaryCSR := filepath.Join(r.primaryCredsDir(), serverCSRFile)
	secondaryKey := filepath.Join(r.secondaryCredsDir(), serverKeyFile)
	secondaryCert := filepath.Join(r.secondaryCredsDir(), serverCertFile)
	passwordMap := filepath.Join(r.configDir(), passwordMapFile)
	evolveConfig := filepath.Join(r.configDir(), evolveConfigFile)

	genOpts := tlsgen.Options{Bits: r.opts.KeyBits}

	g := artifact.NewGraph(r.logger)

	rules := []artifact.Rule{
		{
			Name:    "server-keypair",
			Targets: []string{primaryKey, primaryCert},
			Build: func(context.Context) error {
				return tlsgen.WriteKeyPair(cfg.DN, primaryKey, primaryCert, genOpts)
			},
		},
		{
			Name:    "server-csr",
			Targets: []string{primaryCSR},
			Deps:    []string{"server-keypair"},
			Build: func(context.Context) error {
				return tlsgen.WriteCSR(cfg.DN, primaryKey, primaryCSR)
			},
		},
		{
			Name:    "secondary-credentials",
			Targets: []string{secondaryKey, secondaryCert},
			Deps:    []string{"server-keypair"},
			Build: func(context.Context) error {
				if err := artifact.CopyFile(primaryKey, secondaryKey, secretFilePerm); err != nil {
					return err
				}
				return artifact.CopyFile(primaryCert, secondaryCert, secretFilePerm)
			},
		},
		{
			Name:    "password-map",
			Targets: []string{passwordMap},
			Build: func(context.Context) error {
				return tlsgen.WritePasswordMap(cfg, passwordMap)
			},
		},
		{
			Name:    "evolve-config",
			Targets: []string{evolveConfig},
			Build: func(context.Context) error {
				return tlsgen.WriteStartupConfig(evolveConfig, r.opts.MgmtPort)
			},
		},
	}
	for _, rule := range rules {
		if err := g.Add(rule); err != nil {
			return nil, err
		}
	}

	built, err := g.Run(r.ctx, "server-csr", "secondary-credentials", "password-map", "evolve-config")
	if err != nil {
		return nil, err
	}
	r.logger.InfoContext(r.ctx, "artifact tree up to date", "output", r.opts.OutputDir, "built", built)
	return built, nil
}

// PurgeSecrets deletes the generated artifact tree and the run state.
func (r *Exec) PurgeSecrets() ([]string, error) {
	removed := make([]string, 0, 3)
	targets := []string{
		filepath.Join(r.opts.OutputDir, secureSubdir),
		r.configDir(),
		r.statePath(),
	}
	for _, target := range targets {
		if _, err := os.Stat(target); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, fmt.Errorf("stat %s: %w", target, err)
		}
		if err := os.RemoveAll(target); err != nil {
			return removed, fmt.Errorf("remove %s: %w", target, err)
		}
		removed = append(removed, target)
	}
	r.logger.InfoContext(r.ctx, "purged generated secrets", "removed", removed)
	return removed, nil
}
