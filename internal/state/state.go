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

// Package state persists the outcome of a provisioning run. The record
// is the evidence that the container reached readiness; committing an
// image is only allowed against a container with such a record.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dpforge/dpforge/internal/errdefs"
)

// FileName is the record's name under the output directory.
const FileName = "provision-state.json"

// Record captures what a run observed for a single container.
type Record struct {
	ContainerName   string    `json:"containerName"`
	BaseImage       string    `json:"baseImage"`
	ReadyAt         time.Time `json:"readyAt"`
	RotatedAccounts []string  `json:"rotatedAccounts,omitempty"`
}

func existsFilePath(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Write stores the record, creating the parent directory if needed.
func Write(ctx context.Context, logger *slog.Logger, rec Record, file string) error {
	logger.DebugContext(ctx, "writing provisioning state", "file", file, "container", rec.ContainerName)

	if err := os.MkdirAll(filepath.Dir(file), 0o700); err != nil {
		return fmt.Errorf("%w: mkdir state dir: %w", errdefs.ErrWriteState, err)
	}

	marshaled, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %w", errdefs.ErrWriteState, file, err)
	}
	marshaled = append(marshaled, '\n')

	const filePerm = 0o600
	if err := atomicWriteFile(file, marshaled, filePerm); err != nil {
		return fmt.Errorf("%w: write %s: %w", errdefs.ErrWriteState, file, err)
	}
	logger.DebugContext(ctx, "provisioning state written", "file", file)
	return nil
}

// atomicWriteFile writes to a temp file in the same dir, fsyncs, then renames.
func atomicWriteFile(file string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(file)

	f, createErr := os.CreateTemp(dir, ".state-*.tmp")
	if createErr != nil {
		return createErr
	}
	tmp := f.Name()
	defer func() {
		_ = f.Close()
		_ = os.Remove(tmp) // safe if already renamed
	}()

	if chmodErr := f.Chmod(mode); chmodErr != nil {
		return fmt.Errorf("chmod: %w", chmodErr)
	}
	if _, writeErr := f.Write(data); writeErr != nil {
		return fmt.Errorf("write: %w", writeErr)
	}
	if syncErr := f.Sync(); syncErr != nil {
		return fmt.Errorf("fsync: %w", syncErr)
	}
	if closeErr := f.Close(); closeErr != nil {
		return fmt.Errorf("close: %w", closeErr)
	}

	if renameErr := os.Rename(tmp, file); renameErr != nil {
		return fmt.Errorf("rename: %w", renameErr)
	}
	if d, openErr := os.Open(dir); openErr == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// Read loads the record. A missing file means no run reached readiness
// and maps to ErrNotProvisioned.
func Read(ctx context.Context, logger *slog.Logger, file string) (Record, error) {
	logger.DebugContext(ctx, "reading provisioning state", "file", file)

	if !existsFilePath(file) {
		return Record{}, fmt.Errorf("%w: no state file at %s", errdefs.ErrNotProvisioned, file)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return Record{}, fmt.Errorf("read %s: %w", file, err)
	}
	var rec Record
	if err = json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("unmarshal %s: %w", file, err)
	}
	return rec, nil
}

// Clear removes the record; absence is not an error.
func Clear(ctx context.Context, logger *slog.Logger, file string) error {
	logger.DebugContext(ctx, "clearing provisioning state", "file", file)
	if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove %s: %w", errdefs.ErrWriteState, file, err)
	}
	return nil
}
