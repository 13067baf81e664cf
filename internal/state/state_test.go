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

package state_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dpforge/dpforge/internal/errdefs"
	"github.com/dpforge/dpforge/internal/logging"
	"github.com/dpforge/dpforge/internal/state"
)

func TestWriteAndRead(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewNoopLogger()
	file := filepath.Join(t.TempDir(), "out", state.FileName)

	rec := state.Record{
		ContainerName:   "customer-commit",
		BaseImage:       "datapower/base:0.1",
		ReadyAt:         time.Now().UTC().Truncate(time.Second),
		RotatedAccounts: []string{"admin", "foo"},
	}
	if err := state.Write(ctx, logger, rec, file); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	info, err := os.Stat(file)
	if err != nil {
		t.Fatalf("stat state file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("state file perm = %o, want 600", perm)
	}

	got, err := state.Read(ctx, logger, file)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.ContainerName != rec.ContainerName || got.BaseImage != rec.BaseImage {
		t.Errorf("Read() = %+v, want %+v", got, rec)
	}
	if !got.ReadyAt.Equal(rec.ReadyAt) {
		t.Errorf("ReadyAt = %v, want %v", got.ReadyAt, rec.ReadyAt)
	}
	if len(got.RotatedAccounts) != 2 {
		t.Errorf("RotatedAccounts = %v", got.RotatedAccounts)
	}
}

func TestReadMissingFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), state.FileName)

	_, err := state.Read(context.Background(), logging.NewNoopLogger(), file)
	if !errors.Is(err, errdefs.ErrNotProvisioned) {
		t.Fatalf("Read() error = %v, want ErrNotProvisioned", err)
	}
}

func TestClearIdempotent(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewNoopLogger()
	file := filepath.Join(t.TempDir(), state.FileName)

	rec := state.Record{ContainerName: "customer-commit"}
	if err := state.Write(ctx, logger, rec, file); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if err := state.Clear(ctx, logger, file); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := state.Clear(ctx, logger, file); err != nil {
		t.Fatalf("Clear() twice error = %v", err)
	}
	if _, err := state.Read(ctx, logger, file); !errors.Is(err, errdefs.ErrNotProvisioned) {
		t.Errorf("Read() after Clear error = %v, want ErrNotProvisioned", err)
	}
}
