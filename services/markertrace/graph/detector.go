// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/markertrace/services/markertrace/ast"
	"github.com/AleutianAI/markertrace/services/markertrace/resolve"
)

// DefaultMarker is the canonical symbol name tracked when no marker is
// configured.
const DefaultMarker = "typing.Annotated"

// Stats describes one completed analysis run.
type Stats struct {
	// ModulesVisited is the number of source units traversed, entry
	// included. Opaque and unresolvable modules do not count.
	ModulesVisited int

	// StatementsVisited is the number of statements dispatched on.
	StatementsVisited int

	// EdgesCreated is the number of provenance edge writes (rebindings
	// included).
	EdgesCreated int

	// DurationMilli is the wall-clock duration in milliseconds.
	DurationMilli int64
}

// Result is the outcome of one analysis run.
type Result struct {
	// Aliases holds every fully-qualified symbol whose provenance chain
	// terminates at the marker's canonical name.
	Aliases *AliasSet

	// Provenance is the full symbol provenance graph, for callers wanting
	// chains rather than the flat set.
	Provenance *Provenance

	// Stats are the run statistics.
	Stats Stats
}

// DetectorOption configures a Detector instance.
type DetectorOption func(*Detector)

// WithMarker sets the marker construct's canonical symbol name.
// Default: DefaultMarker.
func WithMarker(canonical string) DetectorOption {
	return func(d *Detector) {
		if canonical != "" {
			d.marker = canonical
		}
	}
}

// WithMaxModules bounds the number of source units one run will traverse.
// Once the budget is exhausted, further modules degrade to opaque. 0 means
// unlimited.
func WithMaxModules(n int) DetectorOption {
	return func(d *Detector) {
		if n >= 0 {
			d.maxModules = n
		}
	}
}

// WithParser sets the front-end used to parse located units.
func WithParser(p *ast.Parser) DetectorOption {
	return func(d *Detector) {
		if p != nil {
			d.parser = p
		}
	}
}

// Detector finds every symbol name that aliases the marker construct
// across a module import graph.
//
// Description:
//
//	Starting from one entry unit, the detector recursively resolves
//	imports through its Locator, visits each module at most once, and
//	maintains the provenance graph and alias set as a side effect of
//	visiting import and assignment statements. Each run is an independent
//	single-threaded depth-first traversal; the Detector itself holds only
//	configuration.
//
// Thread Safety:
//
//	Detector is safe for concurrent use. Each Analyze call owns its run
//	state.
type Detector struct {
	locator resolve.Locator
	parser  *ast.Parser

	// marker is the canonical marker symbol ("typing.Annotated").
	// markerModule and markerLocal are its owning module and bare name;
	// typingBase is the module's base component, used for the
	// standard-module skip rule.
	marker       string
	markerModule string
	markerLocal  string
	typingBase   string

	maxModules int
}

// NewDetector creates a Detector resolving modules through the given
// locator.
//
// Example:
//
//	locator := resolve.NewFSLocator([]string{projectRoot}, config.Default().OpaqueModules)
//	detector := graph.NewDetector(locator, graph.WithMarker("typing.Annotated"))
func NewDetector(locator resolve.Locator, opts ...DetectorOption) *Detector {
	d := &Detector{
		locator: locator,
		parser:  ast.NewParser(),
		marker:  DefaultMarker,
	}
	for _, opt := range opts {
		opt(d)
	}

	if i := strings.LastIndex(d.marker, "."); i >= 0 {
		d.markerModule = d.marker[:i]
		d.markerLocal = d.marker[i+1:]
	} else {
		d.markerLocal = d.marker
	}
	d.typingBase = resolve.BaseComponent(d.markerModule)

	return d
}

// session is the mutable state of one analysis run. The current module
// and directory follow a save/restore discipline around every descent, so
// a child's traversal can never corrupt an ancestor's context.
type session struct {
	visited map[string]struct{}
	prov    *Provenance
	aliases *AliasSet

	currentModule string
	currentDir    string

	stats Stats
}

// Analyze reads and analyzes the entry unit at entryPath.
//
// Description:
//
//	entryModule is the caller-supplied module identity for the entry unit.
//	It may be empty when the entry has no enclosing package; in that case
//	only absolute imports are legal in the entry unit and symbols bound
//	there are unqualified.
//
// Outputs:
//   - *Result: Alias set, provenance graph, and run statistics.
//   - error: Read failures, parse failures, and context cancellation.
//     Per-import resolution failures are absorbed as opaque and never
//     surface here.
func (d *Detector) Analyze(ctx context.Context, entryPath, entryModule string) (*Result, error) {
	source, err := os.ReadFile(entryPath)
	if err != nil {
		return nil, fmt.Errorf("reading entry unit: %w", err)
	}
	return d.AnalyzeSource(ctx, source, entryPath, entryModule)
}

// AnalyzeSource analyzes an in-memory entry unit.
func (d *Detector) AnalyzeSource(ctx context.Context, source []byte, entryPath, entryModule string) (*Result, error) {
	ctx, span := startAnalyzeSpan(ctx, entryPath, entryModule)
	defer span.End()

	start := time.Now()

	module, err := d.parser.Parse(ctx, source, entryPath)
	if err != nil {
		recordAnalyzeMetrics(ctx, time.Since(start), 0, false)
		return nil, fmt.Errorf("parsing entry unit: %w", err)
	}

	s := &session{
		visited:       make(map[string]struct{}),
		prov:          NewProvenance(),
		aliases:       NewAliasSet(),
		currentModule: entryModule,
		currentDir:    filepath.Dir(entryPath),
	}
	if entryModule != "" {
		s.visited[entryModule] = struct{}{}
	}
	s.stats.ModulesVisited++

	if err := d.visitStatements(ctx, s, module.Statements); err != nil {
		recordAnalyzeMetrics(ctx, time.Since(start), s.stats.ModulesVisited, false)
		return nil, err
	}

	s.stats.DurationMilli = time.Since(start).Milliseconds()

	setAnalyzeSpanResult(span, s.aliases.Len(), s.stats.ModulesVisited)
	recordAnalyzeMetrics(ctx, time.Since(start), s.stats.ModulesVisited, true)

	slog.Debug("analysis complete",
		slog.String("entry", entryPath),
		slog.Int("aliases", s.aliases.Len()),
		slog.Int("modules_visited", s.stats.ModulesVisited),
		slog.Int("edges", s.prov.Len()))

	return &Result{Aliases: s.aliases, Provenance: s.prov, Stats: s.stats}, nil
}

// visitStatements dispatches every statement in textual order. OtherStmt
// bodies recurse without side effects of their own.
func (d *Detector) visitStatements(ctx context.Context, s *session, stmts []ast.Stmt) error {
	for _, stmt := range stmts {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.stats.StatementsVisited++

		switch st := stmt.(type) {
		case *ast.ImportStmt:
			if err := d.visitImport(ctx, s, st); err != nil {
				return err
			}
		case *ast.ImportFromStmt:
			if err := d.visitImportFrom(ctx, s, st); err != nil {
				return err
			}
		case *ast.AssignStmt:
			d.visitAssign(s, st)
		case *ast.OtherStmt:
			if err := d.visitStatements(ctx, s, st.Body); err != nil {
				return err
			}
		}
	}
	return nil
}

// visitImport handles "import X" / "import X as Y".
//
// A plain import adds no alias-set member itself; it triggers resolution
// of the target and records the local module binding so later
// attribute-qualified references ("p.Marker") resolve through it.
func (d *Detector) visitImport(ctx context.Context, s *session, st *ast.ImportStmt) error {
	for _, target := range st.Targets {
		if d.locator.IsOpaque(target.Module) {
			continue
		}
		if err := d.descend(ctx, s, target.Module); err != nil {
			return err
		}

		local := target.Alias
		origin := target.Module
		if local == "" {
			// "import a.b" binds the base name "a" locally.
			local = resolve.BaseComponent(target.Module)
			origin = local
		}
		sym := Qualify(s.currentModule, local)
		s.prov.Bind(sym, &origin)
		s.stats.EdgesCreated++
	}
	return nil
}

// visitImportFrom handles "from X import a, b as c" at any relative level.
func (d *Detector) visitImportFrom(ctx context.Context, s *session, st *ast.ImportFromStmt) error {
	moduleID, ok := d.resolveImportModule(s, st)
	if !ok {
		return nil
	}

	if err := d.descend(ctx, s, moduleID); err != nil {
		return err
	}

	if st.Wildcard {
		// Known limitation: wildcard bindings are not tracked. The target
		// module was still traversed, so aliases defined inside it are found.
		slog.Debug("wildcard import bindings not tracked",
			slog.String("module", moduleID))
		return nil
	}

	base := resolve.BaseComponent(moduleID)
	for _, name := range st.Names {
		// Standard typing-module symbols other than the marker itself are
		// uninteresting and must not pollute the graph.
		if base == d.typingBase && name.Name != d.markerLocal {
			continue
		}

		local := name.Alias
		if local == "" {
			local = name.Name
		}
		localSym := Qualify(s.currentModule, local)
		importedSym := Qualify(moduleID, name.Name)

		origin := importedSym
		s.prov.Bind(localSym, &origin)
		s.stats.EdgesCreated++

		if importedSym == d.marker || s.aliases.Contains(importedSym) {
			s.aliases.Add(localSym)
		} else {
			s.aliases.Remove(localSym)
		}
	}
	return nil
}

// resolveImportModule computes the absolute module target of an
// import-from statement. The second result is false when the statement
// degrades to a no-op (malformed node, impossible relative level).
func (d *Detector) resolveImportModule(s *session, st *ast.ImportFromStmt) (string, bool) {
	if st.Level == 0 {
		if st.Module == "" {
			// Malformed node with no module target: skip, not an error.
			return "", false
		}
		return st.Module, true
	}

	moduleID, err := resolve.AbsoluteModule(s.currentModule, st.Module, st.Level)
	if err == nil {
		return moduleID, true
	}

	// Name arithmetic failed; fall back to a filesystem anchor at the
	// current unit's directory.
	if s.currentDir != "" && s.currentModule != "" {
		if path, perr := resolve.PathForRelativeImport(s.currentDir, st.Module, st.Level); perr == nil {
			return Qualify(s.currentModule, resolve.ModuleFromPath(path, st.Level)), true
		}
	}

	slog.Debug("relative import degraded to opaque",
		slog.String("target", st.Module),
		slog.Int("level", st.Level),
		slog.String("current_module", s.currentModule),
		slog.String("error", err.Error()))
	return "", false
}

// descend resolves moduleID and, if it is a source unit not seen before,
// traverses its statements with the session context switched to it.
//
// VisitedSet membership is taken before resolution, so cyclic import
// graphs terminate and every module is visited at most once.
func (d *Detector) descend(ctx context.Context, s *session, moduleID string) error {
	if moduleID == "" {
		return nil
	}
	if _, seen := s.visited[moduleID]; seen {
		return nil
	}
	s.visited[moduleID] = struct{}{}

	if d.maxModules > 0 && s.stats.ModulesVisited >= d.maxModules {
		slog.Debug("module budget exhausted, treating as opaque",
			slog.String("module", moduleID),
			slog.Int("budget", d.maxModules))
		return nil
	}

	located, err := d.locator.Locate(ctx, moduleID)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		slog.Debug("locate failed, treating module as opaque",
			slog.String("module", moduleID),
			slog.String("error", err.Error()))
		return nil
	}
	if located.Kind != resolve.KindUnit {
		return nil
	}

	module, err := d.parser.Parse(ctx, located.Source, located.Path)
	if err != nil {
		return fmt.Errorf("parsing module %s: %w", moduleID, err)
	}
	s.stats.ModulesVisited++

	prevModule, prevDir := s.currentModule, s.currentDir
	s.currentModule = moduleID
	s.currentDir = filepath.Dir(located.Path)

	err = d.visitStatements(ctx, s, module.Statements)

	s.currentModule, s.currentDir = prevModule, prevDir
	return err
}

// visitAssign handles "target = value" including chained targets and
// destructuring.
func (d *Detector) visitAssign(s *session, st *ast.AssignStmt) {
	for _, target := range st.Targets {
		d.bindPattern(s, target, st.Value)
	}
}

// bindPattern recurses pairwise through matching tuple patterns. On arity
// mismatch (or a non-tuple value) every leaf target name binds to the
// entire value, matching sequential multi-assignment semantics.
func (d *Detector) bindPattern(s *session, target, value ast.Expr) {
	if pattern, ok := target.(*ast.TupleExpr); ok {
		if literal, ok := value.(*ast.TupleExpr); ok && len(literal.Elems) == len(pattern.Elems) {
			for i := range pattern.Elems {
				d.bindPattern(s, pattern.Elems[i], literal.Elems[i])
			}
			return
		}
		for _, elem := range pattern.Elems {
			d.bindPattern(s, elem, value)
		}
		return
	}

	// Only a plain name target is eligible for alias tracking.
	name, ok := target.(*ast.NameExpr)
	if !ok {
		return
	}
	d.bindName(s, name.Ident, value)
}

// bindName records the provenance edge for one name binding and
// recomputes its alias membership. Last write wins: rebinding to a
// non-marker value revokes prior alias status.
func (d *Detector) bindName(s *session, ident string, value ast.Expr) {
	targetSym := Qualify(s.currentModule, ident)
	s.stats.EdgesCreated++

	valueSym, ok := d.resolveExprName(s, value)
	if !ok {
		s.prov.Bind(targetSym, nil)
		s.aliases.Remove(targetSym)
		return
	}

	origin := valueSym
	s.prov.Bind(targetSym, &origin)

	if valueSym == d.marker || s.aliases.Contains(valueSym) {
		s.aliases.Add(targetSym)
	} else {
		s.aliases.Remove(targetSym)
	}
}

// resolveExprName resolves a value expression to a fully-qualified symbol
// name.
//
// A bare name qualifies against the current module. An attribute chain
// resolves its base through the provenance graph's root, so module
// aliases ("import pkg as p") carry through "p.Marker". Subscripting is
// transparent: "Marker[int]" names the same symbol as "Marker". Any other
// shape is opaque.
func (d *Detector) resolveExprName(s *session, e ast.Expr) (string, bool) {
	switch v := e.(type) {
	case *ast.NameExpr:
		return Qualify(s.currentModule, v.Ident), true
	case *ast.AttributeExpr:
		base, ok := d.resolveExprName(s, v.Base)
		if !ok {
			return "", false
		}
		return Qualify(s.prov.RootOf(base), v.Attr), true
	case *ast.SubscriptExpr:
		return d.resolveExprName(s, v.Base)
	default:
		return "", false
	}
}
