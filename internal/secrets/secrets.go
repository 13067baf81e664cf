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

// Package secrets loads the provisioning secrets configuration: the
// managed accounts with their target passwords, the certificate
// distinguished-name fields, and the named passphrases rendered into
// the appliance password map. Secret-bearing types implement
// slog.LogValuer so their values never reach a log handler.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/dpforge/dpforge/internal/errdefs"
	"gopkg.in/yaml.v3"
)

// DefaultInitialPassword is the factory password the appliance ships
// with; the rotation session authenticates with it once per account.
const DefaultInitialPassword = "admin"

// Account is one managed appliance account. AdminContext selects the
// privileged rotation branch that walks the configuration context
// instead of the conversational password change.
type Account struct {
	Name         string `yaml:"name"`
	Password     string `yaml:"password"`
	AdminContext bool   `yaml:"adminContext"`
}

// LogValue redacts the password.
func (a Account) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", a.Name),
		slog.String("password", "REDACTED"),
		slog.Bool("adminContext", a.AdminContext),
	)
}

// DN holds the distinguished-name fields for generated certificates.
type DN struct {
	Country      string `yaml:"country"`
	State        string `yaml:"state"`
	City         string `yaml:"city"`
	Organization string `yaml:"organization"`
	Unit         string `yaml:"unit"`
	CommonName   string `yaml:"commonName"`
	Email        string `yaml:"email"`
}

type Config struct {
	// DefaultPassword is the appliance factory password used for the
	// first login of each rotation session.
	DefaultPassword string            `yaml:"defaultPassword"`
	Accounts        []Account         `yaml:"accounts"`
	DN              DN                `yaml:"dn"`
	Passphrases     map[string]string `yaml:"passphrases"`
}

// LogValue redacts everything secret, keeping only shape information.
func (c Config) LogValue() slog.Value {
	names := make([]string, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		names = append(names, a.Name)
	}
	return slog.GroupValue(
		slog.String("accounts", strings.Join(names, ",")),
		slog.Int("passphrases", len(c.Passphrases)),
		slog.String("commonName", c.DN.CommonName),
	)
}

// Load reads and validates the secrets file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errdefs.ErrSecretsFile, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", errdefs.ErrSecretsFile, err)
	}

	if cfg.DefaultPassword == "" {
		cfg.DefaultPassword = DefaultInitialPassword
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("%w: no accounts declared", errdefs.ErrSecretsFile)
	}
	seen := make(map[string]bool, len(c.Accounts))
	for i, a := range c.Accounts {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			return fmt.Errorf("%w: account %d", errdefs.ErrAccountNameRequired, i)
		}
		if a.Password == "" {
			return fmt.Errorf("%w: account %q", errdefs.ErrPasswordRequired, name)
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate account %q", errdefs.ErrSecretsFile, name)
		}
		seen[name] = true
	}
	return nil
}

// Account returns the configured account by name.
func (c *Config) Account(name string) (Account, error) {
	for _, a := range c.Accounts {
		if a.Name == strings.TrimSpace(name) {
			return a, nil
		}
	}
	return Account{}, fmt.Errorf("%w: %q", errdefs.ErrAccountNotConfigured, name)
}

// AccountNames returns the managed account names in declaration order.
func (c *Config) AccountNames() []string {
	names := make([]string, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		names = append(names, a.Name)
	}
	return names
}

// PassphraseNames returns the passphrase map keys sorted, so rendered
// files are stable across runs.
func (c *Config) PassphraseNames() []string {
	names := make([]string, 0, len(c.Passphrases))
	for name := range c.Passphrases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
