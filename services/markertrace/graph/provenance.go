// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph holds the symbol provenance graph, the alias set derived
// from it, and the detector that populates both by traversing a module
// import graph depth-first.
package graph

// Qualify prefixes a local identifier with its owning module's dotted
// name. All fully-qualified symbol names in the graph are built through
// this function so that qualification rules live in one place.
//
// An empty module (an entry unit with no enclosing package) yields the
// bare local name.
func Qualify(module, local string) string {
	if module == "" {
		return local
	}
	return module + "." + local
}

// Provenance maps a fully-qualified symbol name to the symbol name of its
// immediate defining expression. A nil value is the terminal sentinel: the
// symbol was observed but its definition is opaque (a literal, a call, a
// foreign value). A missing key means the symbol was never observed.
//
// Rebinding the same symbol overwrites its edge; the graph never holds
// more than one edge per symbol, matching sequential execution semantics.
//
// Thread Safety: Not safe for concurrent use. Each detector run owns one
// instance.
type Provenance struct {
	edges map[string]*string
}

// NewProvenance creates an empty provenance graph.
func NewProvenance() *Provenance {
	return &Provenance{edges: make(map[string]*string)}
}

// Bind records that sym is defined in terms of origin. A nil origin marks
// sym as a terminal (opaque) binding. Last write wins.
func (p *Provenance) Bind(sym string, origin *string) {
	p.edges[sym] = origin
}

// Lookup returns sym's outgoing edge. The second result distinguishes a
// never-observed symbol (false) from an observed terminal (true, nil).
func (p *Provenance) Lookup(sym string) (*string, bool) {
	origin, ok := p.edges[sym]
	return origin, ok
}

// RootOf follows provenance edges from sym to a fixed point and returns
// the terminal symbol name: the first name with no outgoing edge or whose
// edge is the opaque sentinel.
//
// A cycle guard stops at the first repeated name, so pathological
// self-referential bindings terminate instead of looping.
func (p *Provenance) RootOf(sym string) string {
	seen := make(map[string]struct{})
	for {
		if _, dup := seen[sym]; dup {
			return sym
		}
		seen[sym] = struct{}{}

		origin, ok := p.edges[sym]
		if !ok || origin == nil {
			return sym
		}
		sym = *origin
	}
}

// Len returns the number of recorded edges.
func (p *Provenance) Len() int {
	return len(p.edges)
}

// Edges returns a copy of the edge map. Values are origin names; an empty
// string marks a terminal binding.
func (p *Provenance) Edges() map[string]string {
	out := make(map[string]string, len(p.edges))
	for sym, origin := range p.edges {
		if origin == nil {
			out[sym] = ""
		} else {
			out[sym] = *origin
		}
	}
	return out
}
