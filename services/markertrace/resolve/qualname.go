// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolve converts import statements into canonical dotted module
// names and locates the source unit backing a module.
//
// The package has two halves: pure name arithmetic (AbsoluteModule,
// ModuleFromPath, PathForRelativeImport) and the Locator, which maps a
// dotted module name to a readable source unit, an opaque standard module,
// or "not found".
package resolve

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInvalidLevel indicates a relative import whose nesting level cannot be
// satisfied by the current module's depth (or a negative level).
var ErrInvalidLevel = errors.New("invalid relative import level")

// InitUnitName is the file name of a package-style source unit. A package
// directory resolves to this file, and the file contributes its directory's
// name (not its own) to the dotted module name.
const InitUnitName = "__init__.py"

// AbsoluteModule converts an import target into an absolute dotted module
// name.
//
// Description:
//
//	For level 0 (absolute import) the target is returned unchanged. For
//	level >= 1 (relative import), the last (level - 1) components of
//	currentModule are dropped and the target is appended. An empty target
//	("from . import x") yields the truncated currentModule itself.
//
// Inputs:
//   - currentModule: Dotted name of the importing module. Must be non-empty
//     for any relative import.
//   - target: Dotted module name from the import statement. May be empty
//     for a bare relative import.
//   - level: Relative nesting level. 0 means absolute.
//
// Outputs:
//   - string: The absolute dotted module name.
//   - error: ErrInvalidLevel if level is negative, currentModule is empty
//     for a relative import, or the level exceeds currentModule's depth.
func AbsoluteModule(currentModule, target string, level int) (string, error) {
	if level < 0 {
		return "", fmt.Errorf("%w: level %d", ErrInvalidLevel, level)
	}
	if level == 0 {
		return target, nil
	}
	if currentModule == "" {
		return "", fmt.Errorf("%w: relative import at level %d outside any module", ErrInvalidLevel, level)
	}

	parts := strings.Split(currentModule, ".")
	drop := level - 1
	if drop >= len(parts) {
		return "", fmt.Errorf("%w: level %d exceeds depth of module %q", ErrInvalidLevel, level, currentModule)
	}

	kept := parts[:len(parts)-drop]
	if target == "" {
		return strings.Join(kept, "."), nil
	}
	return strings.Join(kept, ".") + "." + target, nil
}

// ModuleFromPath derives a dotted module name from a resolved source-unit
// path, walking depth containing-directory levels upward.
//
// Description:
//
//	A package-style unit (__init__.py) contributes its directory's name; a
//	bare unit contributes its file name with the .py suffix stripped.
//	Segments are joined root-to-leaf with dots.
//
// Inputs:
//   - path: Filesystem path of the resolved source unit.
//   - depth: Number of name segments to collect. Must be >= 1.
//
// Outputs:
//   - string: The dotted module name, or "" if depth < 1.
func ModuleFromPath(path string, depth int) string {
	if depth < 1 {
		return ""
	}

	if filepath.Base(path) == InitUnitName {
		path = filepath.Dir(path)
	}

	parts := make([]string, 0, depth)
	for i := 0; i < depth; i++ {
		part := strings.TrimSuffix(filepath.Base(path), ".py")
		parts = append(parts, part)
		path = filepath.Dir(path)
	}

	// Collected leaf-to-root; reverse into dotted order.
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// PathForRelativeImport resolves a relative import target to a source-unit
// path anchored at the importing unit's directory.
//
// Description:
//
//	Walks (level - 1) directories up from cwd, then descends through the
//	target's dotted components. A package directory (containing __init__.py)
//	wins over a bare <name>.py unit when both exist.
//
// Inputs:
//   - cwd: Directory containing the importing source unit.
//   - target: Dotted module name from the import. May be empty.
//   - level: Relative nesting level. Must be >= 1.
//
// Outputs:
//   - string: Path to the resolved unit (a .py file).
//   - error: ErrInvalidLevel for level < 1; a not-found error when neither
//     candidate exists. Callers degrade not-found to opaque.
func PathForRelativeImport(cwd, target string, level int) (string, error) {
	if level < 1 {
		return "", fmt.Errorf("%w: level %d", ErrInvalidLevel, level)
	}

	base := cwd
	for i := 0; i < level-1; i++ {
		base = filepath.Dir(base)
	}

	name := ""
	if target != "" {
		parts := strings.Split(target, ".")
		dirs, leaf := parts[:len(parts)-1], parts[len(parts)-1]
		for _, d := range dirs {
			base = filepath.Join(base, d)
		}
		name = leaf
	}

	var candidates []string
	if name == "" {
		candidates = []string{filepath.Join(base, InitUnitName)}
	} else {
		candidates = []string{
			filepath.Join(base, name, InitUnitName),
			filepath.Join(base, name+".py"),
		}
	}

	for _, c := range candidates {
		if fileExists(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("module %q not found at level %d from %s", target, level, cwd)
}

// BaseComponent returns the first dotted component of a module name.
func BaseComponent(module string) string {
	if i := strings.IndexByte(module, '.'); i >= 0 {
		return module[:i]
	}
	return module
}
