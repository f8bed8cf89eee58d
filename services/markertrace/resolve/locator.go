// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ResultKind classifies a Locate outcome.
type ResultKind int

const (
	// KindOpaque marks a standard/built-in module. Traversal records it as
	// visited but never descends into it.
	KindOpaque ResultKind = iota

	// KindUnit marks a parseable source unit.
	KindUnit

	// KindNotFound marks a module the analyzer cannot see into. Not an
	// error: the importing symbol degrades to opaque and traversal continues.
	KindNotFound
)

// String returns the string representation of the ResultKind.
func (k ResultKind) String() string {
	switch k {
	case KindOpaque:
		return "opaque"
	case KindUnit:
		return "unit"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Result is the outcome of locating a module.
type Result struct {
	// Kind classifies the outcome.
	Kind ResultKind

	// Path is the filesystem path of the source unit. Set only for KindUnit.
	Path string

	// Source is the raw source of the unit. Set only for KindUnit.
	Source []byte
}

// Locator maps an absolute dotted module name to a source unit.
//
// Implementations never treat an unresolvable module as an error; they
// return KindNotFound and let the caller degrade to opaque.
type Locator interface {
	// Locate resolves a module name to a source unit, an opaque standard
	// module, or not-found. The returned error is reserved for I/O failures
	// on a unit that was found; callers absorb it as opaque.
	Locate(ctx context.Context, module string) (Result, error)

	// IsOpaque reports whether the module's base component names a
	// standard/built-in module, without attempting a full locate.
	IsOpaque(module string) bool
}

// FSLocator resolves dotted module names against a list of filesystem
// search roots, preferring package directories over bare units.
//
// Thread Safety: Safe for concurrent use after construction.
type FSLocator struct {
	roots  []string
	opaque map[string]struct{}
}

// NewFSLocator creates a locator searching the given roots in order.
//
// Inputs:
//   - roots: Directories searched in order for module units.
//   - opaqueModules: Base module names classified as opaque without
//     resolution (the standard-module set).
func NewFSLocator(roots []string, opaqueModules []string) *FSLocator {
	opaque := make(map[string]struct{}, len(opaqueModules))
	for _, m := range opaqueModules {
		opaque[m] = struct{}{}
	}
	return &FSLocator{roots: roots, opaque: opaque}
}

// IsOpaque reports whether the module's base component is in the configured
// standard-module set.
func (l *FSLocator) IsOpaque(module string) bool {
	_, ok := l.opaque[BaseComponent(module)]
	return ok
}

// Locate resolves a dotted module name to a source unit.
//
// Description:
//
//	Opaque modules short-circuit without touching the filesystem. Otherwise
//	each search root is probed for <module-as-path>/__init__.py, then
//	<module-as-path>.py. The first hit is read and returned as a unit.
//
// Outputs:
//   - Result: KindOpaque, KindUnit, or KindNotFound.
//   - error: Non-nil only when a located unit cannot be read.
func (l *FSLocator) Locate(ctx context.Context, module string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{Kind: KindNotFound}, err
	}
	if module == "" {
		return Result{Kind: KindNotFound}, nil
	}
	if l.IsOpaque(module) {
		return Result{Kind: KindOpaque}, nil
	}

	rel := strings.ReplaceAll(module, ".", string(filepath.Separator))
	for _, root := range l.roots {
		for _, candidate := range []string{
			filepath.Join(root, rel, InitUnitName),
			filepath.Join(root, rel+".py"),
		} {
			if !fileExists(candidate) {
				continue
			}
			source, err := os.ReadFile(candidate)
			if err != nil {
				return Result{Kind: KindNotFound}, err
			}
			return Result{Kind: KindUnit, Path: candidate, Source: source}, nil
		}
	}

	slog.Debug("module not found in search roots",
		slog.String("module", module),
		slog.Int("roots", len(l.roots)))
	return Result{Kind: KindNotFound}, nil
}

// fileExists reports whether path exists and is a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
