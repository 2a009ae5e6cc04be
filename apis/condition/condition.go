/*
   Copyright 2025 The DIRPX Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package condition canonicalises sink install conditions into sorted,
// de-duplicated sets of match-keys that the dispatch index can register and
// diff in linear time.
package condition

import (
	"sort"

	"dirpx.dev/dlog/apis/severity"
)

// kind distinguishes how Condition.sev is interpreted during normalisation.
type kind int

const (
	// kindThreshold treats a bare severity as "this severity and anything
	// more severe" (mirrors the source logger's single-level handler
	// config).
	kindThreshold kind = iota
	kindRange
	kindList
)

// Condition is a predicate over (severity, application, module). Build one
// with AtLeast, InRange, or OneOf, then optionally narrow it with
// WithApplication/WithModule.
type Condition struct {
	kind  kind
	sev   severity.Severity
	rng   severity.Range
	list  []severity.Severity
	app   string
	mod   string
}

// AtLeast matches s and every severity more severe than s.
func AtLeast(s severity.Severity) Condition {
	return Condition{kind: kindThreshold, sev: s}
}

// InRange matches every severity in the inclusive range [lo, hi].
func InRange(lo, hi severity.Severity) Condition {
	return Condition{kind: kindRange, rng: severity.Range{Low: lo, High: hi}}
}

// OneOf matches exactly the given severities, and no others.
func OneOf(ss ...severity.Severity) Condition {
	return Condition{kind: kindList, list: append([]severity.Severity(nil), ss...)}
}

// WithApplication narrows the condition to records tagged with application
// app. Returns a copy; the receiver is unmodified.
func (c Condition) WithApplication(app string) Condition {
	c.app = app
	return c
}

// WithModule narrows the condition to records tagged with module mod.
// Returns a copy; the receiver is unmodified.
func (c Condition) WithModule(mod string) Condition {
	c.mod = mod
	return c
}

// Application returns the condition's application constraint, or "" if unset.
func (c Condition) Application() string { return c.app }

// Module returns the condition's module constraint, or "" if unset.
func (c Condition) Module() string { return c.mod }

// severities returns the deduplicated, sorted set of severities this
// condition's severity component resolves to.
func (c Condition) severities() []severity.Severity {
	var raw []severity.Severity
	switch c.kind {
	case kindThreshold:
		raw = severity.Range{Low: c.sev, High: severity.Emergency}.Expand()
	case kindRange:
		raw = c.rng.Expand()
	case kindList:
		raw = append([]severity.Severity(nil), c.list...)
	}
	return dedupeSeverities(raw)
}

func dedupeSeverities(ss []severity.Severity) []severity.Severity {
	seen := make(map[severity.Severity]bool, len(ss))
	out := make([]severity.Severity, 0, len(ss))
	for _, s := range ss {
		if !s.Valid() || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MatchKey is a canonical (severity, application?, module?) match-key.
// Application and Module are "" when unset; "" sorts before any present
// value of the same position, so a zero-valued MatchKey sorts first.
type MatchKey struct {
	Severity    severity.Severity
	Application string
	Module      string
}

// Arity returns 1, 2, or 3: the number of fields this key constrains.
func (k MatchKey) Arity() int {
	n := 1
	if k.Application != "" {
		n++
	}
	if k.Module != "" {
		n++
	}
	return n
}

// Less reports whether k sorts before other: by severity, then
// application, then module.
func (k MatchKey) Less(other MatchKey) bool {
	if k.Severity != other.Severity {
		return k.Severity < other.Severity
	}
	if k.Application != other.Application {
		return k.Application < other.Application
	}
	return k.Module < other.Module
}

// Normalise canonicalises c into a sorted, de-duplicated list of MatchKeys.
// Idempotent: Normalise(c) applied again to the same logical condition
// yields an identical list.
func Normalise(c Condition) []MatchKey {
	sevs := c.severities()
	keys := make([]MatchKey, 0, len(sevs))
	for _, s := range sevs {
		keys = append(keys, MatchKey{Severity: s, Application: c.app, Module: c.mod})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Diff compares the normalised forms of newC and oldC and returns the
// match-keys that are newly present (added), present in both (common), and
// no longer present (removed). The three results are disjoint and their
// union equals Normalise(newC) ∪ Normalise(oldC).
func Diff(newC, oldC Condition) (added, common, removed []MatchKey) {
	return diffKeys(Normalise(newC), Normalise(oldC))
}

// diffKeys performs the same set-subtraction on two already-normalised,
// sorted, deduplicated key lists. Linear in len(newKeys)+len(oldKeys).
func diffKeys(newKeys, oldKeys []MatchKey) (added, common, removed []MatchKey) {
	i, j := 0, 0
	for i < len(newKeys) && j < len(oldKeys) {
		switch {
		case newKeys[i] == oldKeys[j]:
			common = append(common, newKeys[i])
			i++
			j++
		case newKeys[i].Less(oldKeys[j]):
			added = append(added, newKeys[i])
			i++
		default:
			removed = append(removed, oldKeys[j])
			j++
		}
	}
	added = append(added, newKeys[i:]...)
	removed = append(removed, oldKeys[j:]...)
	return added, common, removed
}

// Ancestors returns the match-keys whose descendant_count the index must
// adjust when k is registered or deregistered: (severity) for a 2-arity
// key, and (severity), (severity, application) for a 3-arity key. A
// 1-arity key has no ancestors. Module-only 2-arity keys ((S, _, M)) are a
// terminal shape parallel to (S, A): they have (S) as their only ancestor
// and are never an ancestor of a 3-arity key themselves.
func Ancestors(k MatchKey) []MatchKey {
	switch k.Arity() {
	case 1:
		return nil
	case 2:
		return []MatchKey{{Severity: k.Severity}}
	default: // 3
		return []MatchKey{
			{Severity: k.Severity},
			{Severity: k.Severity, Application: k.Application},
		}
	}
}
