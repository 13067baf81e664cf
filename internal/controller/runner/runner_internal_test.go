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

//nolint:testpackage // phases are exercised against an injected fake engine client
package runner

import (
	"bufio"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/dpforge/dpforge/internal/engine"
	"github.com/dpforge/dpforge/internal/errdefs"
	"github.com/dpforge/dpforge/internal/logging"
	"github.com/dpforge/dpforge/internal/naming"
	"github.com/dpforge/dpforge/internal/secrets"
	"github.com/dpforge/dpforge/internal/state"
)

const testDigest = digest.Digest("sha256:9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08")

type fakeEngine struct {
	runSpec    *engine.RunSpec
	stopped    []string
	removed    []string
	execResult engine.ExecResult
	execErr    error
	committed  []string
	tagged     [][2]string
}

func (f *fakeEngine) Connect() error { return nil }
func (f *fakeEngine) Close() error   { return nil }

func (f *fakeEngine) Run(_ context.Context, spec engine.RunSpec) (string, error) {
	f.runSpec = &spec
	return "cid-1", nil
}

func (f *fakeEngine) Stop(_ context.Context, name string, _ int) error {
	f.stopped = append(f.stopped, name)
	return nil
}

func (f *fakeEngine) Remove(_ context.Context, name string) error {
	f.removed = append(f.removed, name)
	return nil
}

func (f *fakeEngine) Inspect(context.Context, string) (engine.ContainerInfo, error) {
	return engine.ContainerInfo{ID: "cid-1", Image: "user/datapower/base:0.1", Running: true}, nil
}

func (f *fakeEngine) Exists(context.Context, string) (bool, error) { return true, nil }

func (f *fakeEngine) Exec(context.Context, string, []string) (engine.ExecResult, error) {
	return f.execResult, f.execErr
}

func (f *fakeEngine) Commit(_ context.Context, name string, _ naming.Reference) (digest.Digest, error) {
	f.committed = append(f.committed, name)
	return testDigest, nil
}

func (f *fakeEngine) Tag(_ context.Context, ref, alias naming.Reference) error {
	f.tagged = append(f.tagged, [2]string{ref.String(), alias.String()})
	return nil
}

func (f *fakeEngine) RemoveImage(context.Context, naming.Reference) error { return nil }

func newTestRunner(t *testing.T, eng engine.Client) *Exec {
	t.Helper()
	return &Exec{
		ctx:    context.Background(),
		logger: logging.NewNoopLogger(),
		opts: Options{
			OutputDir: t.TempDir(),
			MgmtPort:  2200,
			MaxWait:   time.Second,
			KeyBits:   1024,
		},
		engineClient: eng,
	}
}

func testNames() naming.Names {
	return naming.Names{
		Base:          naming.Reference{Registry: "user", Repository: "datapower/base", Tag: "0.1"},
		Result:        naming.Reference{Registry: "user", Repository: "customer-commit", Tag: "0.1"},
		ContainerName: "customer-commit",
	}
}

func testSecrets() *secrets.Config {
	return &secrets.Config{
		DefaultPassword: "admin",
		Accounts: []secrets.Account{
			{Name: "admin", Password: "P_admin", AdminContext: true},
			{Name: "foo", Password: "P_foo"},
		},
		DN: secrets.DN{
			Country:      "US",
			Organization: "Example",
			CommonName:   "gateway.example.com",
		},
		Passphrases: map[string]string{"backup": "hunter2"},
	}
}

func TestBuildArtifactsIdempotent(t *testing.T) {
	r := newTestRunner(t, &fakeEngine{})

	built, err := r.BuildArtifacts(testSecrets())
	if err != nil {
		t.Fatalf("BuildArtifacts() error = %v", err)
	}
	if len(built) != 5 {
		t.Errorf("built = %v, want all five rules", built)
	}

	for _, rel := range []string{
		"secure/local/server.key",
		"secure/local/server.crt",
		"secure/local/server.csr",
		"secure/foo/server.key",
		"secure/foo/server.crt",
		"config/password-map.cfg",
		"config/evolve.cfg",
	} {
		if _, err := os.Stat(filepath.Join(r.opts.OutputDir, rel)); err != nil {
			t.Errorf("missing artifact %s: %v", rel, err)
		}
	}

	built, err = r.BuildArtifacts(testSecrets())
	if err != nil {
		t.Fatalf("BuildArtifacts() second run error = %v", err)
	}
	if len(built) != 0 {
		t.Errorf("second run built = %v, want none", built)
	}
}

func TestStartBase(t *testing.T) {
	eng := &fakeEngine{}
	r := newTestRunner(t, eng)
	names := testNames()

	if err := r.StartBase(names); err != nil {
		t.Fatalf("StartBase() error = %v", err)
	}
	if eng.runSpec == nil {
		t.Fatal("expected Run to be called")
	}
	if eng.runSpec.Image != "user/datapower/base:0.1" {
		t.Errorf("image = %q", eng.runSpec.Image)
	}
	if eng.runSpec.Name != "customer-commit" {
		t.Errorf("container name = %q", eng.runSpec.Name)
	}
	if !eng.runSpec.Privileged {
		t.Error("expected a privileged container")
	}
	if len(eng.runSpec.Binds) != 3 {
		t.Fatalf("binds = %v", eng.runSpec.Binds)
	}
	if !strings.HasSuffix(eng.runSpec.Binds[0], ":"+applianceConfigDir) {
		t.Errorf("config bind = %q", eng.runSpec.Binds[0])
	}
	if !strings.HasSuffix(eng.runSpec.Binds[1], ":"+applianceLocalDir) {
		t.Errorf("local bind = %q", eng.runSpec.Binds[1])
	}
	if len(eng.runSpec.Ports) != 2 || eng.runSpec.Ports[0].Container != 2200 {
		t.Errorf("ports = %v", eng.runSpec.Ports)
	}
}

func TestWaitReadyRecordsState(t *testing.T) {
	eng := &fakeEngine{
		execResult: engine.ExecResult{
			ExitCode: 0,
			Stdout:   "tcp        0      0 0.0.0.0:2200            0.0.0.0:*               LISTEN\n",
		},
	}
	r := newTestRunner(t, eng)

	if err := r.WaitReady("customer-commit"); err != nil {
		t.Fatalf("WaitReady() error = %v", err)
	}

	rec, err := state.Read(context.Background(), logging.NewNoopLogger(), r.statePath())
	if err != nil {
		t.Fatalf("state.Read() error = %v", err)
	}
	if rec.ContainerName != "customer-commit" {
		t.Errorf("recorded container = %q", rec.ContainerName)
	}
	if rec.BaseImage != "user/datapower/base:0.1" {
		t.Errorf("recorded base image = %q", rec.BaseImage)
	}
	if rec.ReadyAt.IsZero() {
		t.Error("ReadyAt not recorded")
	}
}

func TestWaitReadyTimeout(t *testing.T) {
	eng := &fakeEngine{execResult: engine.ExecResult{ExitCode: 0, Stdout: ""}}
	r := newTestRunner(t, eng)
	r.opts.MaxWait = 20 * time.Millisecond

	err := r.WaitReady("customer-commit")
	if !errors.Is(err, errdefs.ErrTimeout) {
		t.Fatalf("WaitReady() error = %v, want ErrTimeout", err)
	}
	if _, err := os.Stat(r.statePath()); !os.IsNotExist(err) {
		t.Error("timeout must not record readiness")
	}
}

func TestCommitRequiresRecordedReadiness(t *testing.T) {
	eng := &fakeEngine{}
	r := newTestRunner(t, eng)

	if _, err := r.Commit(testNames()); !errors.Is(err, errdefs.ErrNotProvisioned) {
		t.Fatalf("Commit() without state error = %v, want ErrNotProvisioned", err)
	}

	rec := state.Record{ContainerName: "other-container", ReadyAt: time.Now()}
	if err := state.Write(context.Background(), logging.NewNoopLogger(), rec, r.statePath()); err != nil {
		t.Fatalf("state.Write() error = %v", err)
	}
	if _, err := r.Commit(testNames()); !errors.Is(err, errdefs.ErrNotProvisioned) {
		t.Fatalf("Commit() with mismatched state error = %v, want ErrNotProvisioned", err)
	}
	if len(eng.committed) != 0 {
		t.Errorf("commit reached the engine: %v", eng.committed)
	}

	rec.ContainerName = "customer-commit"
	if err := state.Write(context.Background(), logging.NewNoopLogger(), rec, r.statePath()); err != nil {
		t.Fatalf("state.Write() error = %v", err)
	}
	dgst, err := r.Commit(testNames())
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if dgst != testDigest {
		t.Errorf("digest = %q", dgst)
	}
	if len(eng.committed) != 1 || eng.committed[0] != "customer-commit" {
		t.Errorf("committed = %v", eng.committed)
	}
}

func TestCleanStopsRemovesAndClearsState(t *testing.T) {
	eng := &fakeEngine{}
	r := newTestRunner(t, eng)

	rec := state.Record{ContainerName: "customer-commit", ReadyAt: time.Now()}
	if err := state.Write(context.Background(), logging.NewNoopLogger(), rec, r.statePath()); err != nil {
		t.Fatalf("state.Write() error = %v", err)
	}

	if err := r.Clean("customer-commit"); err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if len(eng.stopped) != 1 || len(eng.removed) != 1 {
		t.Errorf("stopped = %v, removed = %v", eng.stopped, eng.removed)
	}
	if _, err := os.Stat(r.statePath()); !os.IsNotExist(err) {
		t.Error("state file survived Clean")
	}
}

func TestTagLatest(t *testing.T) {
	eng := &fakeEngine{}
	r := newTestRunner(t, eng)

	alias, err := r.TagLatest(testNames())
	if err != nil {
		t.Fatalf("TagLatest() error = %v", err)
	}
	if alias.Tag != naming.LatestTag {
		t.Errorf("alias tag = %q", alias.Tag)
	}
	want := [2]string{"user/customer-commit:0.1", "user/customer-commit:latest"}
	if len(eng.tagged) != 1 || eng.tagged[0] != want {
		t.Errorf("tagged = %v, want %v", eng.tagged, want)
	}
}

func TestPurgeSecrets(t *testing.T) {
	r := newTestRunner(t, &fakeEngine{})

	if _, err := r.BuildArtifacts(testSecrets()); err != nil {
		t.Fatalf("BuildArtifacts() error = %v", err)
	}

	removed, err := r.PurgeSecrets()
	if err != nil {
		t.Fatalf("PurgeSecrets() error = %v", err)
	}
	if len(removed) != 2 {
		t.Errorf("removed = %v", removed)
	}
	if _, err := os.Stat(filepath.Join(r.opts.OutputDir, "secure")); !os.IsNotExist(err) {
		t.Error("secure tree survived purge")
	}
	if _, err := os.Stat(filepath.Join(r.opts.OutputDir, "config")); !os.IsNotExist(err) {
		t.Error("config tree survived purge")
	}
}

// TestRotateAccountOverTCP drives a real loopback connection through the
// conversational rotation flow.
func TestRotateAccountOverTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, acceptErr := ln.Accept()
		if acceptErr != nil {
			return
		}
		defer conn.Close()
		reader := bufio.NewReader(conn)
		readLine := func() { _, _ = reader.ReadString('\n') }

		_, _ = conn.Write([]byte("login: "))
		readLine()
		_, _ = conn.Write([]byte("Password: "))
		readLine()
		_, _ = conn.Write([]byte("Enter new password: "))
		readLine()
		_, _ = conn.Write([]byte("Re-enter new password: "))
		readLine()
		_, _ = conn.Write([]byte("idg# "))
		readLine()
	}()

	r := newTestRunner(t, &fakeEngine{})
	r.opts.MgmtPort = ln.Addr().(*net.TCPAddr).Port

	rec := state.Record{ContainerName: "customer-commit", ReadyAt: time.Now()}
	if err := state.Write(context.Background(), logging.NewNoopLogger(), rec, r.statePath()); err != nil {
		t.Fatalf("state.Write() error = %v", err)
	}

	account := secrets.Account{Name: "foo", Password: "P_foo"}
	if err := r.RotateAccount(account, "admin"); err != nil {
		t.Fatalf("RotateAccount() error = %v", err)
	}

	rec, err = state.Read(context.Background(), logging.NewNoopLogger(), r.statePath())
	if err != nil {
		t.Fatalf("state.Read() error = %v", err)
	}
	if len(rec.RotatedAccounts) != 1 || rec.RotatedAccounts[0] != "foo" {
		t.Errorf("RotatedAccounts = %v, want [foo]", rec.RotatedAccounts)
	}
}
