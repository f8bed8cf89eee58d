// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package markertrace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/markertrace/services/markertrace/config"
)

const sampleProject = "../../test/fixtures/sample-python-project"

func TestAnalyze_SampleProject(t *testing.T) {
	entry := filepath.Join(sampleProject, "entry.py")
	result, err := Analyze(context.Background(), entry, config.Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"Foo", "Bar", "Baz",
		"pkg.Foo",
		"pkg.types.Foo", "pkg.types.Annotated",
	}
	for _, sym := range want {
		if !result.Aliases.Contains(sym) {
			t.Errorf("expected %q in alias set, have %v", sym, result.Aliases.Names())
		}
	}

	// "List" is a standard typing symbol; neither it nor the annotated
	// non-marker binding may show up.
	for _, sym := range []string{"pkg.types.List", "pkg.types.PLAIN"} {
		if result.Aliases.Contains(sym) {
			t.Errorf("expected %q NOT in alias set", sym)
		}
	}

	// entry + pkg + pkg.types
	if result.Stats.ModulesVisited != 3 {
		t.Errorf("expected 3 modules visited, got %d", result.Stats.ModulesVisited)
	}
}

func TestAnalyze_ExplicitEntryModule(t *testing.T) {
	cfg := config.Default()
	cfg.EntryModule = "app.entry"
	cfg.SearchRoots = []string{sampleProject}

	entry := filepath.Join(sampleProject, "entry.py")
	result, err := Analyze(context.Background(), entry, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Aliases.Contains("app.entry.Foo") {
		t.Errorf("expected qualified entry symbol, have %v", result.Aliases.Names())
	}
}

func TestAnalyze_MissingEntry(t *testing.T) {
	entry := filepath.Join(t.TempDir(), "nope.py")
	if _, err := Analyze(context.Background(), entry, config.Default()); err == nil {
		t.Fatal("expected error for missing entry unit")
	}
}

func TestEntryIdentity(t *testing.T) {
	root := t.TempDir()
	pkgDir := filepath.Join(root, "pkg")
	subDir := filepath.Join(pkgDir, "sub")
	if err := os.MkdirAll(subDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, path := range []string{
		filepath.Join(root, "script.py"),
		filepath.Join(pkgDir, "__init__.py"),
		filepath.Join(pkgDir, "mod.py"),
		filepath.Join(subDir, "__init__.py"),
		filepath.Join(subDir, "deep.py"),
	} {
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	tests := []struct {
		name       string
		entry      string
		wantModule string
		wantRoot   string
	}{
		{name: "bare script", entry: filepath.Join(root, "script.py"), wantModule: "", wantRoot: root},
		{name: "package member", entry: filepath.Join(pkgDir, "mod.py"), wantModule: "pkg.mod", wantRoot: root},
		{name: "package init unit", entry: filepath.Join(pkgDir, "__init__.py"), wantModule: "pkg", wantRoot: root},
		{name: "nested package member", entry: filepath.Join(subDir, "deep.py"), wantModule: "pkg.sub.deep", wantRoot: root},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			module, packageRoot := entryIdentity(tt.entry)
			if module != tt.wantModule {
				t.Errorf("expected module %q, got %q", tt.wantModule, module)
			}
			if packageRoot != tt.wantRoot {
				t.Errorf("expected root %q, got %q", tt.wantRoot, packageRoot)
			}
		})
	}
}
