// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"errors"
	"testing"
)

func mustParse(t *testing.T, source string) *Module {
	t.Helper()
	module, err := NewParser().Parse(context.Background(), []byte(source), "test.py")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return module
}

func TestParser_EmptyFile(t *testing.T) {
	module := mustParse(t, "")
	if module.FilePath != "test.py" {
		t.Errorf("expected file path 'test.py', got %q", module.FilePath)
	}
	if len(module.Statements) != 0 {
		t.Errorf("expected no statements, got %d", len(module.Statements))
	}
	if module.Hash == "" {
		t.Error("expected source hash to be set")
	}
}

func TestParser_PlainImports(t *testing.T) {
	module := mustParse(t, "import os\nimport pkg.sub as ps, other\n")

	if len(module.Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(module.Statements))
	}

	first, ok := module.Statements[0].(*ImportStmt)
	if !ok {
		t.Fatalf("expected ImportStmt, got %T", module.Statements[0])
	}
	if len(first.Targets) != 1 || first.Targets[0].Module != "os" || first.Targets[0].Alias != "" {
		t.Errorf("unexpected targets %+v", first.Targets)
	}

	second, ok := module.Statements[1].(*ImportStmt)
	if !ok {
		t.Fatalf("expected ImportStmt, got %T", module.Statements[1])
	}
	if len(second.Targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(second.Targets))
	}
	if second.Targets[0].Module != "pkg.sub" || second.Targets[0].Alias != "ps" {
		t.Errorf("unexpected aliased target %+v", second.Targets[0])
	}
	if second.Targets[1].Module != "other" || second.Targets[1].Alias != "" {
		t.Errorf("unexpected target %+v", second.Targets[1])
	}
}

func TestParser_ImportFrom(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		module   string
		level    int
		names    []ImportedName
		wildcard bool
	}{
		{
			name:   "absolute",
			source: "from pkg.sub import a, b as c\n",
			module: "pkg.sub",
			names: []ImportedName{
				{Name: "a"},
				{Name: "b", Alias: "c"},
			},
		},
		{
			name:   "relative level one",
			source: "from .types import Foo\n",
			module: "types",
			level:  1,
			names:  []ImportedName{{Name: "Foo"}},
		},
		{
			name:   "relative level two bare",
			source: "from .. import helper\n",
			level:  2,
			names:  []ImportedName{{Name: "helper"}},
		},
		{
			name:     "wildcard",
			source:   "from pkg import *\n",
			module:   "pkg",
			wildcard: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			module := mustParse(t, tt.source)
			if len(module.Statements) != 1 {
				t.Fatalf("expected 1 statement, got %d", len(module.Statements))
			}
			stmt, ok := module.Statements[0].(*ImportFromStmt)
			if !ok {
				t.Fatalf("expected ImportFromStmt, got %T", module.Statements[0])
			}
			if stmt.Module != tt.module {
				t.Errorf("expected module %q, got %q", tt.module, stmt.Module)
			}
			if stmt.Level != tt.level {
				t.Errorf("expected level %d, got %d", tt.level, stmt.Level)
			}
			if stmt.Wildcard != tt.wildcard {
				t.Errorf("expected wildcard %v, got %v", tt.wildcard, stmt.Wildcard)
			}
			if len(stmt.Names) != len(tt.names) {
				t.Fatalf("expected %d names, got %d: %+v", len(tt.names), len(stmt.Names), stmt.Names)
			}
			for i, want := range tt.names {
				if stmt.Names[i] != want {
					t.Errorf("name[%d]: expected %+v, got %+v", i, want, stmt.Names[i])
				}
			}
		})
	}
}

func TestParser_FutureImportSkipped(t *testing.T) {
	module := mustParse(t, "from __future__ import annotations\n")
	if len(module.Statements) != 0 {
		t.Errorf("expected future import to lower to nothing, got %d statements", len(module.Statements))
	}
}

func TestParser_SimpleAssignment(t *testing.T) {
	module := mustParse(t, "X = Marker\n")

	stmt, ok := module.Statements[0].(*AssignStmt)
	if !ok {
		t.Fatalf("expected AssignStmt, got %T", module.Statements[0])
	}
	if len(stmt.Targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(stmt.Targets))
	}
	target, ok := stmt.Targets[0].(*NameExpr)
	if !ok || target.Ident != "X" {
		t.Errorf("unexpected target %+v", stmt.Targets[0])
	}
	value, ok := stmt.Value.(*NameExpr)
	if !ok || value.Ident != "Marker" {
		t.Errorf("unexpected value %+v", stmt.Value)
	}
}

func TestParser_ChainedAssignment(t *testing.T) {
	module := mustParse(t, "a = b = Marker\n")

	stmt, ok := module.Statements[0].(*AssignStmt)
	if !ok {
		t.Fatalf("expected AssignStmt, got %T", module.Statements[0])
	}
	if len(stmt.Targets) != 2 {
		t.Fatalf("expected 2 chained targets, got %d", len(stmt.Targets))
	}
	for i, want := range []string{"a", "b"} {
		name, ok := stmt.Targets[i].(*NameExpr)
		if !ok || name.Ident != want {
			t.Errorf("target[%d]: expected name %q, got %+v", i, want, stmt.Targets[i])
		}
	}
}

func TestParser_TupleAssignment(t *testing.T) {
	module := mustParse(t, "a, b = x, y\n")

	stmt, ok := module.Statements[0].(*AssignStmt)
	if !ok {
		t.Fatalf("expected AssignStmt, got %T", module.Statements[0])
	}
	pattern, ok := stmt.Targets[0].(*TupleExpr)
	if !ok || len(pattern.Elems) != 2 {
		t.Fatalf("expected 2-element tuple target, got %+v", stmt.Targets[0])
	}
	literal, ok := stmt.Value.(*TupleExpr)
	if !ok || len(literal.Elems) != 2 {
		t.Fatalf("expected 2-element tuple value, got %+v", stmt.Value)
	}
}

func TestParser_SubscriptAndAttribute(t *testing.T) {
	module := mustParse(t, "X = mod.sub.Marker[int, \"meta\"]\n")

	stmt := module.Statements[0].(*AssignStmt)
	subscript, ok := stmt.Value.(*SubscriptExpr)
	if !ok {
		t.Fatalf("expected SubscriptExpr, got %T", stmt.Value)
	}
	attr, ok := subscript.Base.(*AttributeExpr)
	if !ok || attr.Attr != "Marker" {
		t.Fatalf("expected attribute base 'Marker', got %+v", subscript.Base)
	}
	inner, ok := attr.Base.(*AttributeExpr)
	if !ok || inner.Attr != "sub" {
		t.Fatalf("expected inner attribute 'sub', got %+v", attr.Base)
	}
	name, ok := inner.Base.(*NameExpr)
	if !ok || name.Ident != "mod" {
		t.Fatalf("expected base name 'mod', got %+v", inner.Base)
	}
}

func TestParser_OpaqueValues(t *testing.T) {
	sources := []string{
		"X = fn()\n",
		"X = 42\n",
		"X = \"literal\"\n",
	}
	for _, source := range sources {
		module := mustParse(t, source)
		stmt, ok := module.Statements[0].(*AssignStmt)
		if !ok {
			t.Fatalf("%q: expected AssignStmt, got %T", source, module.Statements[0])
		}
		if _, ok := stmt.Value.(*OpaqueExpr); !ok {
			t.Errorf("%q: expected OpaqueExpr value, got %T", source, stmt.Value)
		}
	}
}

func TestParser_AnnotationOnlyAssignmentSkipped(t *testing.T) {
	module := mustParse(t, "x: int\n")
	if len(module.Statements) != 0 {
		t.Errorf("expected annotation-only statement to lower to nothing, got %d", len(module.Statements))
	}
}

func TestParser_NestedStatements(t *testing.T) {
	source := `def lazy():
    import late_mod
    X = Marker

if True:
    Y = Marker
`
	module := mustParse(t, source)
	if len(module.Statements) != 2 {
		t.Fatalf("expected 2 top-level statements, got %d", len(module.Statements))
	}

	fn, ok := module.Statements[0].(*OtherStmt)
	if !ok {
		t.Fatalf("expected OtherStmt for function, got %T", module.Statements[0])
	}
	var imports, assigns int
	countNested(fn.Body, &imports, &assigns)
	if imports != 1 || assigns != 1 {
		t.Errorf("expected 1 nested import and 1 nested assign, got %d/%d", imports, assigns)
	}

	cond, ok := module.Statements[1].(*OtherStmt)
	if !ok {
		t.Fatalf("expected OtherStmt for conditional, got %T", module.Statements[1])
	}
	imports, assigns = 0, 0
	countNested(cond.Body, &imports, &assigns)
	if assigns != 1 {
		t.Errorf("expected 1 nested assign in conditional, got %d", assigns)
	}
}

func countNested(stmts []Stmt, imports, assigns *int) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ImportStmt:
			*imports++
		case *AssignStmt:
			*assigns++
		case *OtherStmt:
			countNested(s.Body, imports, assigns)
		}
	}
}

func TestParser_SyntaxErrorsArePartial(t *testing.T) {
	module := mustParse(t, "X = Marker\ndef broken(:\n")
	if len(module.Errors) == 0 {
		t.Error("expected syntax error diagnostics")
	}
}

func TestParser_FileTooLarge(t *testing.T) {
	parser := NewParser(WithMaxFileSize(8))
	_, err := parser.Parse(context.Background(), []byte("X = Marker\n"), "big.py")
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestParser_InvalidUTF8(t *testing.T) {
	_, err := NewParser().Parse(context.Background(), []byte{0xff, 0xfe, 0xfd}, "bad.py")
	if !errors.Is(err, ErrInvalidContent) {
		t.Fatalf("expected ErrInvalidContent, got %v", err)
	}
}

func TestParser_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewParser().Parse(ctx, []byte("X = 1\n"), "test.py")
	if err == nil {
		t.Fatal("expected error from canceled context")
	}
}
