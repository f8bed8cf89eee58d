// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package markertrace is the service facade: one call wiring the locator,
// parser, and detector together for a configured analysis run.
package markertrace

import (
	"context"
	"os"
	"path/filepath"

	"github.com/AleutianAI/markertrace/services/markertrace/config"
	"github.com/AleutianAI/markertrace/services/markertrace/graph"
	"github.com/AleutianAI/markertrace/services/markertrace/resolve"
)

// Analyze runs one marker-alias analysis seeded at entryPath.
//
// Description:
//
//	Builds a filesystem locator over the configured search roots (or the
//	entry unit's package root when none are configured), a detector for
//	the configured marker, and runs the traversal. The entry module
//	identity comes from the config or, failing that, is inferred from
//	enclosing package directories.
//
// Outputs:
//   - *graph.Result: Alias set, provenance graph, and run statistics.
//   - error: Entry read/parse failures and context cancellation only.
func Analyze(ctx context.Context, entryPath string, cfg config.Config) (*graph.Result, error) {
	entryModule, packageRoot := entryIdentity(entryPath)
	if cfg.EntryModule != "" {
		entryModule = cfg.EntryModule
	}

	roots := cfg.SearchRoots
	if len(roots) == 0 {
		roots = []string{packageRoot}
	}

	locator := resolve.NewFSLocator(roots, cfg.OpaqueModules)
	detector := graph.NewDetector(locator,
		graph.WithMarker(cfg.Marker),
		graph.WithMaxModules(cfg.MaxModules),
	)

	return detector.Analyze(ctx, entryPath, entryModule)
}

// entryIdentity infers the entry unit's dotted module name and its package
// root from enclosing package directories.
//
// A unit whose directory chain carries __init__.py files is a package
// member: the chain's depth decides how many name segments the module
// name has, and the directory above the outermost package is the search
// root. A bare script has no module identity and anchors the search root
// at its own directory.
func entryIdentity(entryPath string) (module, packageRoot string) {
	dir := filepath.Dir(entryPath)

	depth := 0
	for hasInitUnit(dir) {
		depth++
		dir = filepath.Dir(dir)
	}

	if depth == 0 {
		return "", filepath.Dir(entryPath)
	}

	segments := depth
	if filepath.Base(entryPath) != resolve.InitUnitName {
		segments++
	}
	return resolve.ModuleFromPath(entryPath, segments), dir
}

// hasInitUnit reports whether dir is a package directory.
func hasInitUnit(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, resolve.InitUnitName))
	return err == nil && info.Mode().IsRegular()
}
