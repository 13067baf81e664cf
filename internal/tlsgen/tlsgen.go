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

// Package tlsgen produces the secret material the appliance mounts at
// provisioning time: an RSA key with a self-signed certificate (and CSR),
// the password-map file, and the startup configuration fragment. Files
// are written owner-only and never overwritten; a caller that wants a
// fresh pair removes the old one first.
package tlsgen

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dpforge/dpforge/internal/errdefs"
	"github.com/dpforge/dpforge/internal/secrets"
)

const (
	// DefaultKeyBits is the RSA modulus size used when Options.Bits is zero.
	DefaultKeyBits = 2048
	// DefaultValidity matches the appliance convention of one-year self-signed certs.
	DefaultValidity = 365 * 24 * time.Hour

	filePerm = os.FileMode(0o600)
	dirPerm  = os.FileMode(0o700)
)

type Options struct {
	Bits     int
	Validity time.Duration
}

func (o Options) bits() int {
	if o.Bits == 0 {
		return DefaultKeyBits
	}
	return o.Bits
}

func (o Options) validity() time.Duration {
	if o.Validity == 0 {
		return DefaultValidity
	}
	return o.Validity
}

func subjectFromDN(dn secrets.DN) pkix.Name {
	name := pkix.Name{CommonName: dn.CommonName}
	if dn.Country != "" {
		name.Country = []string{dn.Country}
	}
	if dn.State != "" {
		name.Province = []string{dn.State}
	}
	if dn.City != "" {
		name.Locality = []string{dn.City}
	}
	if dn.Organization != "" {
		name.Organization = []string{dn.Organization}
	}
	if dn.Unit != "" {
		name.OrganizationalUnit = []string{dn.Unit}
	}
	return name
}

// WriteKeyPair generates an RSA key and a self-signed certificate for
// the given DN and writes them PEM-encoded to keyPath and certPath.
// When both files already exist the call is a no-op.
func WriteKeyPair(dn secrets.DN, keyPath, certPath string, opts Options) error {
	if exists(keyPath) && exists(certPath) {
		return nil
	}

	key, err := rsa.GenerateKey(rand.Reader, opts.bits())
	if err != nil {
		return fmt.Errorf("%w: generate key: %w", errdefs.ErrGeneration, err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("%w: serial number: %w", errdefs.ErrGeneration, err)
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serial,
		Subject:      subjectFromDN(dn),
		NotBefore:    now,
		NotAfter:     now.Add(opts.validity()),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	if dn.Email != "" {
		template.EmailAddresses = []string{dn.Email}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("%w: create certificate: %w", errdefs.ErrGeneration, err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})

	if err := writeSecretFile(keyPath, keyPEM); err != nil {
		return err
	}
	return writeSecretFile(certPath, certPEM)
}

// WriteCSR creates a certificate signing request from an existing
// PEM-encoded key. A pre-existing CSR file is left untouched.
func WriteCSR(dn secrets.DN, keyPath, csrPath string) error {
	if exists(csrPath) {
		return nil
	}

	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("%w: read key: %w", errdefs.ErrGeneration, err)
	}
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return fmt.Errorf("%w: key %s is not PEM", errdefs.ErrGeneration, keyPath)
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return fmt.Errorf("%w: parse key: %w", errdefs.ErrGeneration, err)
	}

	template := x509.CertificateRequest{
		Subject:            subjectFromDN(dn),
		SignatureAlgorithm: x509.SHA256WithRSA,
	}
	csrDER, err := x509.CreateCertificateRequest(rand.Reader, &template, key)
	if err != nil {
		return fmt.Errorf("%w: create csr: %w", errdefs.ErrGeneration, err)
	}

	csrPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE REQUEST", Bytes: csrDER})
	return writeSecretFile(csrPath, csrPEM)
}

// WritePasswordMap renders the appliance password-map script: an opening
// crypto context line, one add line per named passphrase, a closing line.
func WritePasswordMap(cfg *secrets.Config, path string) error {
	if exists(path) {
		return nil
	}

	var b strings.Builder
	b.WriteString("crypto\n")
	for _, name := range cfg.PassphraseNames() {
		fmt.Fprintf(&b, "  add password-map %s %s\n", name, cfg.Passphrases[name])
	}
	b.WriteString("exit\n")

	return writeSecretFile(path, []byte(b.String()))
}

// WriteStartupConfig renders the configuration fragment the base image
// executes on first boot: it enables the management listeners the
// provisioning session and GUI connect to.
func WriteStartupConfig(path string, mgmtPort int) error {
	if exists(path) {
		return nil
	}

	var b strings.Builder
	b.WriteString("top; configure terminal\n\n")
	b.WriteString("telnet\n")
	b.WriteString("  admin-state enabled\n")
	fmt.Fprintf(&b, "  local-address 0.0.0.0 %d\n", mgmtPort)
	b.WriteString("exit\n\n")
	b.WriteString("web-mgmt\n")
	b.WriteString("  admin-state enabled\n")
	b.WriteString("  local-address 0.0.0.0 9090\n")
	b.WriteString("exit\n")

	return writeSecretFile(path, []byte(b.String()))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// writeSecretFile creates the file exclusively with owner-only
// permissions so a concurrent or repeated run can never clobber
// existing secret material.
func writeSecretFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("%w: mkdir %s: %w", errdefs.ErrGeneration, filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", errdefs.ErrGeneration, path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: write %s: %w", errdefs.ErrGeneration, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", errdefs.ErrGeneration, path, err)
	}
	return nil
}
