// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast parses Python source units into a closed union of typed
// statement and expression nodes.
//
// The package is the front-end collaborator for the provenance detector:
// it lowers the tree-sitter CST into exactly the shapes the detector
// dispatches on (import, import-from, assignment) and folds everything
// else into OtherStmt nodes that carry nested statements without further
// interpretation.
package ast

// Stmt is a statement in a parsed source unit. Implementations form a
// closed set: ImportStmt, ImportFromStmt, AssignStmt, OtherStmt.
type Stmt interface {
	stmt()
}

// ImportTarget is one module target of a plain import statement.
type ImportTarget struct {
	// Module is the dotted module name ("pkg.sub").
	Module string

	// Alias is the local binding name from "import X as Y". Empty when the
	// import is unaliased (the module's base component binds locally).
	Alias string
}

// ImportStmt represents "import X" / "import X, Y as Z".
type ImportStmt struct {
	Targets []ImportTarget
}

func (*ImportStmt) stmt() {}

// ImportedName is one name imported by an import-from statement.
type ImportedName struct {
	// Name is the symbol name in the source module.
	Name string

	// Alias is the local binding name from "as". Empty when unaliased.
	Alias string
}

// ImportFromStmt represents "from X import a, b as c" including relative
// forms ("from ..pkg import x").
type ImportFromStmt struct {
	// Module is the dotted module target. Empty for a bare relative import
	// ("from . import x") and for malformed nodes with no target, which
	// lower to a no-op when Level is also 0.
	Module string

	// Level is the relative nesting level: the number of leading dots.
	// 0 means absolute.
	Level int

	// Names are the imported symbols. Empty for a wildcard import.
	Names []ImportedName

	// Wildcard marks "from X import *". Wildcard bindings are not tracked;
	// the target module is still traversed.
	Wildcard bool
}

func (*ImportFromStmt) stmt() {}

// AssignStmt represents "target = value", including chained targets
// ("a = b = value") and tuple/list destructuring.
type AssignStmt struct {
	// Targets holds every assignment target. Chained assignments contribute
	// one entry per target, all bound to the same value.
	Targets []Expr

	// Value is the assigned expression.
	Value Expr
}

func (*AssignStmt) stmt() {}

// OtherStmt covers every statement kind the detector does not interpret
// (function and class definitions, conditionals, loops, try blocks).
// Body carries the nested statements so inline imports and assignments
// stay visible in textual order.
type OtherStmt struct {
	Body []Stmt
}

func (*OtherStmt) stmt() {}

// Expr is an expression shape the detector can resolve to a symbol name.
// Implementations form a closed set: NameExpr, AttributeExpr,
// SubscriptExpr, TupleExpr, OpaqueExpr.
type Expr interface {
	expr()
}

// NameExpr is a bare identifier.
type NameExpr struct {
	Ident string
}

func (*NameExpr) expr() {}

// AttributeExpr is one step of an attribute chain ("base.attr").
type AttributeExpr struct {
	Base Expr
	Attr string
}

func (*AttributeExpr) expr() {}

// SubscriptExpr is a subscript application ("Base[args]"). The arguments
// do not contribute to symbol identity, so only the base is kept.
type SubscriptExpr struct {
	Base Expr
}

func (*SubscriptExpr) expr() {}

// TupleExpr is a tuple or list of expressions, on either side of an
// assignment.
type TupleExpr struct {
	Elems []Expr
}

func (*TupleExpr) expr() {}

// OpaqueExpr is any expression shape that cannot name a symbol (calls,
// literals, comprehensions). Binding a name to it yields a terminal
// provenance entry.
type OpaqueExpr struct{}

func (*OpaqueExpr) expr() {}

// Module is a parsed source unit.
type Module struct {
	// FilePath is the path the unit was parsed from.
	FilePath string

	// Hash is the hex-encoded SHA-256 of the source.
	Hash string

	// ParsedAtMilli is the parse timestamp in Unix milliseconds.
	ParsedAtMilli int64

	// Statements are the unit's top-level statements in textual order.
	Statements []Stmt

	// Errors holds non-fatal parse diagnostics (syntax errors in the
	// source). The statement list may be partial when non-empty.
	Errors []string
}
