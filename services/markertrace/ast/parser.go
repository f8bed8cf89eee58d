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
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Default parser limits.
const (
	// DefaultMaxFileSize is the maximum source size accepted by Parse (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024

	// WarnFileSize triggers a log warning for unusually large units (1MB).
	WarnFileSize = 1 * 1024 * 1024

	// maxLowerDepth bounds recursion when lowering nested statement blocks.
	// Prevents stack exhaustion on pathological nesting.
	maxLowerDepth = 100
)

// Sentinel errors returned by Parse.
var (
	// ErrFileTooLarge indicates the source exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidContent indicates the source is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")

	// ErrParseFailed indicates tree-sitter could not produce a tree.
	ErrParseFailed = errors.New("parse failed")
)

// ParserOption configures a Parser instance.
type ParserOption func(*Parser)

// WithMaxFileSize sets the maximum source size the parser will accept.
func WithMaxFileSize(bytes int64) ParserOption {
	return func(p *Parser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// Parser lowers Python source into the package's statement union.
//
// Description:
//
//	Parser wraps tree-sitter with the python grammar. Each Parse call
//	creates its own tree-sitter parser instance internally, so a single
//	Parser may be shared freely.
//
// Thread Safety:
//
//	Parser instances are safe for concurrent use.
type Parser struct {
	maxFileSize int64
}

// NewParser creates a Parser with the given options.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse lowers Python source into a Module.
//
// Description:
//
//	Parse is error-tolerant: syntactically invalid source yields a partial
//	Module with diagnostics in Errors rather than a failure. Only size,
//	encoding, context, and tree-sitter-level failures return an error.
//
// Inputs:
//   - ctx: Context for cancellation. Checked before and after parsing;
//     tree-sitter parsing itself cannot be interrupted mid-parse.
//   - content: Raw Python source. Must be valid UTF-8.
//   - filePath: Path of the unit, recorded on the Module.
//
// Outputs:
//   - *Module: The lowered statement tree. Never nil on success.
//   - error: ErrFileTooLarge, ErrInvalidContent, ErrParseFailed, or a
//     context error.
func (p *Parser) Parse(ctx context.Context, content []byte, filePath string) (*Module, error) {
	ctx, span := startParseSpan(ctx, filePath, len(content))
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, time.Since(start), false)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	if int64(len(content)) > p.maxFileSize {
		recordParseMetrics(ctx, time.Since(start), false)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}

	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	if !utf8.Valid(content) {
		recordParseMetrics(ctx, time.Since(start), false)
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	hash := sha256.Sum256(content)

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, time.Since(start), false)
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, time.Since(start), false)
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	module := &Module{
		FilePath:      filePath,
		Hash:          hex.EncodeToString(hash[:]),
		ParsedAtMilli: time.Now().UnixMilli(),
		Statements:    make([]Stmt, 0),
		Errors:        make([]string, 0),
	}

	root := tree.RootNode()
	if root == nil {
		recordParseMetrics(ctx, time.Since(start), false)
		return nil, fmt.Errorf("%w: tree-sitter returned nil root node", ErrParseFailed)
	}
	if root.HasError() {
		module.Errors = append(module.Errors, "source contains syntax errors")
	}

	module.Statements = lowerStatements(root, content, 0)

	setParseSpanResult(span, len(module.Statements), len(module.Errors))
	recordParseMetrics(ctx, time.Since(start), true)
	return module, nil
}

// Language returns the canonical language name for this parser.
func (p *Parser) Language() string {
	return "python"
}

// Extensions returns the file extensions this parser handles.
func (p *Parser) Extensions() []string {
	return []string{".py", ".pyi"}
}

// lowerStatements walks a node's children and lowers every statement the
// detector dispatches on. Unknown statement kinds recurse into their
// children and surface any nested statements as one OtherStmt, preserving
// textual order.
func lowerStatements(node *sitter.Node, content []byte, depth int) []Stmt {
	if node == nil || depth > maxLowerDepth {
		return nil
	}

	var stmts []Stmt
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "import_statement":
			if s := lowerImport(child, content); s != nil {
				stmts = append(stmts, s)
			}
		case "import_from_statement":
			if s := lowerImportFrom(child, content); s != nil {
				stmts = append(stmts, s)
			}
		case "future_import_statement":
			// "from __future__ import x" binds compiler directives, not symbols.
		case "expression_statement":
			if child.ChildCount() > 0 {
				expr := child.Child(0)
				if expr.Type() == "assignment" {
					if s := lowerAssign(expr, content); s != nil {
						stmts = append(stmts, s)
					}
				}
			}
		case "comment", "string":
			// Docstrings and comments carry no bindings.
		default:
			if nested := lowerStatements(child, content, depth+1); len(nested) > 0 {
				stmts = append(stmts, &OtherStmt{Body: nested})
			}
		}
	}
	return stmts
}

// lowerImport lowers "import X" / "import X as Y, Z".
func lowerImport(node *sitter.Node, content []byte) *ImportStmt {
	stmt := &ImportStmt{}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "dotted_name":
			stmt.Targets = append(stmt.Targets, ImportTarget{
				Module: nodeText(child, content),
			})
		case "aliased_import":
			var target ImportTarget
			if name := child.ChildByFieldName("name"); name != nil {
				target.Module = nodeText(name, content)
			}
			if alias := child.ChildByFieldName("alias"); alias != nil {
				target.Alias = nodeText(alias, content)
			}
			if target.Module != "" {
				stmt.Targets = append(stmt.Targets, target)
			}
		}
	}
	if len(stmt.Targets) == 0 {
		return nil
	}
	return stmt
}

// lowerImportFrom lowers "from X import a, b as c" including relative and
// wildcard forms. Returns nil for malformed nodes with no module target.
func lowerImportFrom(node *sitter.Node, content []byte) *ImportFromStmt {
	stmt := &ImportFromStmt{}
	sawImport := false

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import":
			sawImport = true
		case "relative_import":
			for j := 0; j < int(child.ChildCount()); j++ {
				grandchild := child.Child(j)
				switch grandchild.Type() {
				case "import_prefix":
					stmt.Level = strings.Count(nodeText(grandchild, content), ".")
				case "dotted_name":
					stmt.Module = nodeText(grandchild, content)
				}
			}
		case "dotted_name":
			if !sawImport {
				stmt.Module = nodeText(child, content)
			} else {
				stmt.Names = append(stmt.Names, ImportedName{Name: nodeText(child, content)})
			}
		case "identifier":
			if sawImport {
				stmt.Names = append(stmt.Names, ImportedName{Name: nodeText(child, content)})
			}
		case "aliased_import":
			var name ImportedName
			if n := child.ChildByFieldName("name"); n != nil {
				name.Name = nodeText(n, content)
			}
			if a := child.ChildByFieldName("alias"); a != nil {
				name.Alias = nodeText(a, content)
			}
			if name.Name != "" {
				stmt.Names = append(stmt.Names, name)
			}
		case "wildcard_import":
			stmt.Wildcard = true
		}
	}

	// A node with neither a module target nor a relative prefix is malformed
	// edge-case syntax; lower it to a no-op skip.
	if stmt.Module == "" && stmt.Level == 0 {
		return nil
	}
	return stmt
}

// lowerAssign lowers an assignment node, flattening chained targets
// ("a = b = value") into one statement with multiple targets. Returns nil
// for annotation-only assignments ("x: int") that bind no value.
func lowerAssign(node *sitter.Node, content []byte) *AssignStmt {
	var targets []Expr

	cur := node
	for cur != nil && cur.Type() == "assignment" {
		left := cur.ChildByFieldName("left")
		right := cur.ChildByFieldName("right")
		if left != nil {
			targets = append(targets, lowerExpr(left, content))
		}
		if right == nil {
			return nil
		}
		if right.Type() == "assignment" {
			cur = right
			continue
		}
		if len(targets) == 0 {
			return nil
		}
		return &AssignStmt{Targets: targets, Value: lowerExpr(right, content)}
	}
	return nil
}

// lowerExpr lowers an expression node into the shapes the detector can
// resolve. Anything else becomes OpaqueExpr.
func lowerExpr(node *sitter.Node, content []byte) Expr {
	if node == nil {
		return &OpaqueExpr{}
	}
	switch node.Type() {
	case "identifier":
		return &NameExpr{Ident: nodeText(node, content)}
	case "attribute":
		base := node.ChildByFieldName("object")
		attr := node.ChildByFieldName("attribute")
		if base == nil || attr == nil {
			return &OpaqueExpr{}
		}
		return &AttributeExpr{Base: lowerExpr(base, content), Attr: nodeText(attr, content)}
	case "subscript":
		return &SubscriptExpr{Base: lowerExpr(node.ChildByFieldName("value"), content)}
	case "tuple", "list", "expression_list", "pattern_list", "tuple_pattern", "list_pattern":
		elems := make([]Expr, 0, node.NamedChildCount())
		for i := 0; i < int(node.NamedChildCount()); i++ {
			elems = append(elems, lowerExpr(node.NamedChild(i), content))
		}
		return &TupleExpr{Elems: elems}
	case "parenthesized_expression":
		return lowerExpr(node.NamedChild(0), content)
	default:
		return &OpaqueExpr{}
	}
}

// nodeText returns the source text covered by a node.
func nodeText(node *sitter.Node, content []byte) string {
	return string(content[node.StartByte():node.EndByte()])
}
