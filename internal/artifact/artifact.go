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

// Package artifact tracks generated files as an explicit dependency
// graph. A rule runs only when one of its targets is missing, so a run
// over a fully populated tree performs no work.
package artifact

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dpforge/dpforge/internal/errdefs"
)

type BuildFunc func(ctx context.Context) error

// Rule declares one generated artifact: the files it produces, the
// rules that must run before it, and how to build it.
type Rule struct {
	Name    string
	Targets []string
	Deps    []string
	Build   BuildFunc
}

// missing reports whether any target is absent. A rule without targets
// always runs; its idempotence is the Build func's business.
func (r Rule) missing() bool {
	if len(r.Targets) == 0 {
		return true
	}
	for _, target := range r.Targets {
		if _, err := os.Stat(target); err != nil {
			return true
		}
	}
	return false
}

type Graph struct {
	logger *slog.Logger
	rules  map[string]Rule
	order  []string
}

func NewGraph(logger *slog.Logger) *Graph {
	return &Graph{
		logger: logger,
		rules:  make(map[string]Rule),
	}
}

func (g *Graph) Add(rule Rule) error {
	if rule.Name == "" {
		return fmt.Errorf("%w: rule name is required", errdefs.ErrUnknownArtifact)
	}
	if _, ok := g.rules[rule.Name]; ok {
		return fmt.Errorf("%w: duplicate rule %q", errdefs.ErrUnknownArtifact, rule.Name)
	}
	g.rules[rule.Name] = rule
	g.order = append(g.order, rule.Name)
	return nil
}

// Run builds the named rules and their prerequisites in dependency
// order. With no names it builds every registered rule. It returns the
// names of the rules whose Build actually ran.
func (g *Graph) Run(ctx context.Context, names ...string) ([]string, error) {
	if len(names) == 0 {
		names = g.order
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(g.rules))
	var built []string

	var visit func(name string) error
	visit = func(name string) error {
		rule, ok := g.rules[name]
		if !ok {
			return fmt.Errorf("%w: %q", errdefs.ErrUnknownArtifact, name)
		}
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: via %q", errdefs.ErrArtifactCycle, name)
		}
		state[name] = visiting
		for _, dep := range rule.Deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = done

		if !rule.missing() {
			g.logger.DebugContext(ctx, "artifact up to date", "rule", rule.Name)
			return nil
		}
		for _, target := range rule.Targets {
			if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
				return fmt.Errorf("%w: mkdir for %q: %w", errdefs.ErrGeneration, rule.Name, err)
			}
		}
		g.logger.InfoContext(ctx, "building artifact", "rule", rule.Name)
		if err := rule.Build(ctx); err != nil {
			return fmt.Errorf("build %q: %w", rule.Name, err)
		}
		built = append(built, rule.Name)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return built, err
		}
	}
	return built, nil
}

// CopyFile duplicates a generated file into another mount destination,
// preserving the restrictive permission bits. An existing destination
// is left untouched.
func CopyFile(src, dst string, perm os.FileMode) error {
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return fmt.Errorf("%w: mkdir %s: %w", errdefs.ErrGeneration, filepath.Dir(dst), err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", errdefs.ErrGeneration, src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", errdefs.ErrGeneration, dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("%w: copy %s: %w", errdefs.ErrGeneration, dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", errdefs.ErrGeneration, dst, err)
	}
	return nil
}
