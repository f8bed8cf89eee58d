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

import "sort"

// AliasSet is the set of fully-qualified symbol names whose provenance
// chain terminates at the marker construct's canonical name. It is
// maintained incrementally as edges are written, never recomputed from
// scratch.
//
// Thread Safety: Not safe for concurrent use. Each detector run owns one
// instance.
type AliasSet struct {
	members map[string]struct{}
}

// NewAliasSet creates an empty alias set.
func NewAliasSet() *AliasSet {
	return &AliasSet{members: make(map[string]struct{})}
}

// Add inserts sym into the set.
func (a *AliasSet) Add(sym string) {
	a.members[sym] = struct{}{}
}

// Remove deletes sym from the set. Removing an absent symbol is a no-op.
func (a *AliasSet) Remove(sym string) {
	delete(a.members, sym)
}

// Contains reports whether sym is in the set.
func (a *AliasSet) Contains(sym string) bool {
	_, ok := a.members[sym]
	return ok
}

// Len returns the number of members.
func (a *AliasSet) Len() int {
	return len(a.members)
}

// Names returns the members in sorted order.
func (a *AliasSet) Names() []string {
	names := make([]string, 0, len(a.members))
	for sym := range a.members {
		names = append(names, sym)
	}
	sort.Strings(names)
	return names
}
