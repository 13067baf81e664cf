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

package commit_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/viper"

	commit "github.com/dpforge/dpforge/cmd/dpforge/commit"
	"github.com/dpforge/dpforge/cmd/types"
	"github.com/dpforge/dpforge/internal/controller"
	"github.com/dpforge/dpforge/internal/errdefs"
	"github.com/dpforge/dpforge/internal/naming"
)

const testDigest = digest.Digest("sha256:79e5a659b0e9cbdef6abd3a2bde44cbbd01bdee849ad18bfbe5a53bbb5b0f86c")

type fakeControllerExec struct {
	commitFn func() (controller.CommitResult, error)
}

func (f *fakeControllerExec) Commit() (controller.CommitResult, error) {
	if f.commitFn == nil {
		return controller.CommitResult{}, errors.New("unexpected Commit call")
	}
	return f.commitFn()
}

func TestNewCommitCmdRunE(t *testing.T) {
	t.Cleanup(viper.Reset)

	tests := []struct {
		name           string
		withLogger     bool
		controllerFn   func() (controller.CommitResult, error)
		wantErr        string
		wantCallCommit bool
		wantOutput     []string
	}{
		{
			name:       "success: committed image printed with digest",
			withLogger: true,
			controllerFn: func() (controller.CommitResult, error) {
				return controller.CommitResult{
					Image:  naming.Reference{Registry: "testreg", Repository: "customer-commit", Tag: "0.1"},
					Digest: testDigest,
				}, nil
			},
			wantCallCommit: true,
			wantOutput: []string{
				"Committed image testreg/customer-commit:0.1",
				testDigest.String(),
			},
		},
		{
			name:       "error: container never reached readiness",
			withLogger: true,
			controllerFn: func() (controller.CommitResult, error) {
				return controller.CommitResult{}, errdefs.ErrNotProvisioned
			},
			wantErr:        "has not reached readiness",
			wantCallCommit: true,
		},
		{
			name:           "error: logger not in context",
			withLogger:     false,
			wantErr:        "logger not found",
			wantCallCommit: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(viper.Reset)

			var commitCalled bool

			cmd := commit.NewCommitCmd()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})

			ctx := context.Background()
			if tt.withLogger {
				logger := slog.New(slog.NewTextHandler(io.Discard, nil))
				ctx = context.WithValue(ctx, types.CtxLogger, logger)
			}
			if tt.controllerFn != nil {
				fakeCtrl := &fakeControllerExec{
					commitFn: func() (controller.CommitResult, error) {
						commitCalled = true
						return tt.controllerFn()
					},
				}
				ctx = context.WithValue(ctx, commit.MockControllerKey{}, fakeCtrl)
			}
			cmd.SetContext(ctx)
			cmd.SetArgs([]string{})

			err := cmd.Execute()

			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if commitCalled != tt.wantCallCommit {
				t.Errorf("Commit called=%v want=%v", commitCalled, tt.wantCallCommit)
			}

			if tt.wantOutput != nil {
				output := cmd.OutOrStdout().(*bytes.Buffer).String()
				for _, expected := range tt.wantOutput {
					if !strings.Contains(output, expected) {
						t.Errorf("output missing expected string %q\nGot output:\n%s", expected, output)
					}
				}
			}
		})
	}
}
