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

package channel

import (
	"sort"
	"sync/atomic"

	asink "dirpx.dev/dlog/apis/sink"
	"dirpx.dev/dlog/apis/condition"
	"dirpx.dev/dlog/apis/severity"
)

// indexEntry is the value half of the index table: how many strictly more
// specific keys currently sit beneath this one, and the sorted sink ids
// registered exactly at this key.
type indexEntry struct {
	descendantCount int
	sinkIDs         []string // sorted, unique
}

func (e indexEntry) empty() bool { return e.descendantCount <= 0 && len(e.sinkIDs) == 0 }

// indexSnapshot is an immutable view of the index table at one point in
// time. Every mutation builds a new snapshot (copy-on-write) rather than
// editing one in place, so a reader that loaded a snapshot sees a
// consistent whole regardless of concurrent writers.
type indexSnapshot struct {
	entries map[condition.MatchKey]indexEntry
	writers map[string]asink.Writer
}

func emptySnapshot() *indexSnapshot {
	return &indexSnapshot{
		entries: make(map[condition.MatchKey]indexEntry),
		writers: make(map[string]asink.Writer),
	}
}

// clone makes a shallow copy of the top-level maps; per-key values are
// replaced wholesale (never mutated in place) as keys are touched, so the
// original snapshot's slices are never aliased into.
func (s *indexSnapshot) clone() *indexSnapshot {
	entries := make(map[condition.MatchKey]indexEntry, len(s.entries))
	for k, v := range s.entries {
		entries[k] = v
	}
	writers := make(map[string]asink.Writer, len(s.writers))
	for k, v := range s.writers {
		writers[k] = v
	}
	return &indexSnapshot{entries: entries, writers: writers}
}

func (s *indexSnapshot) addKey(k condition.MatchKey, sinkID string) {
	e := s.entries[k]
	e.sinkIDs = insertSorted(e.sinkIDs, sinkID)
	s.entries[k] = e
	for _, anc := range condition.Ancestors(k) {
		ae := s.entries[anc]
		ae.descendantCount++
		s.entries[anc] = ae
	}
}

func (s *indexSnapshot) removeKey(k condition.MatchKey, sinkID string) {
	e, ok := s.entries[k]
	if !ok {
		return
	}
	e.sinkIDs = removeSorted(e.sinkIDs, sinkID)
	if e.empty() {
		delete(s.entries, k)
	} else {
		s.entries[k] = e
	}
	for _, anc := range condition.Ancestors(k) {
		ae := s.entries[anc]
		ae.descendantCount--
		if ae.empty() {
			delete(s.entries, anc)
		} else {
			s.entries[anc] = ae
		}
	}
}

func insertSorted(ids []string, id string) []string {
	i := sort.SearchStrings(ids, id)
	if i < len(ids) && ids[i] == id {
		return ids // already present
	}
	out := make([]string, len(ids)+1)
	copy(out, ids[:i])
	out[i] = id
	copy(out[i+1:], ids[i:])
	return out
}

func removeSorted(ids []string, id string) []string {
	i := sort.SearchStrings(ids, id)
	if i >= len(ids) || ids[i] != id {
		return ids // not present
	}
	out := make([]string, len(ids)-1)
	copy(out, ids[:i])
	copy(out[i:], ids[i+1:])
	return out
}

func mergeSorted(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		default:
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// index is the condition-indexed dispatch table (spec §4.2). Reads
// (Select) never block: they load one atomic snapshot and walk it.
// Writes (Register/Deregister) retry a compare-and-swap loop so concurrent
// administrators never lose an update.
type index struct {
	snap atomic.Pointer[indexSnapshot]
}

func newIndex() *index {
	idx := &index{}
	idx.snap.Store(emptySnapshot())
	return idx
}

// register stores sinkID's writer and reconciles the index from oldC to
// newC, touching only the added/removed match-keys (spec §4.2).
func (idx *index) register(sinkID string, newC, oldC condition.Condition, writer asink.Writer) {
	added, _, removed := condition.Diff(newC, oldC)
	for {
		old := idx.snap.Load()
		next := old.clone()
		for _, k := range added {
			next.addKey(k, sinkID)
		}
		for _, k := range removed {
			next.removeKey(k, sinkID)
		}
		next.writers[sinkID] = writer
		if idx.snap.CompareAndSwap(old, next) {
			return
		}
	}
}

// registerFresh adds sinkID under every key of newC with no prior state to
// diff against: used when a sink id has never been registered before, so
// there is nothing to distinguish from a coincidentally-overlapping
// zero-value Condition.
func (idx *index) registerFresh(sinkID string, newC condition.Condition, writer asink.Writer) {
	keys := condition.Normalise(newC)
	for {
		old := idx.snap.Load()
		next := old.clone()
		for _, k := range keys {
			next.addKey(k, sinkID)
		}
		next.writers[sinkID] = writer
		if idx.snap.CompareAndSwap(old, next) {
			return
		}
	}
}

// deregister removes sinkID's writer and every match-key it held under
// oldC (spec §4.2: register(id, ∅, old) followed by dropping the writer).
func (idx *index) deregister(sinkID string, oldC condition.Condition) {
	removed := condition.Normalise(oldC)
	for {
		old := idx.snap.Load()
		next := old.clone()
		for _, k := range removed {
			next.removeKey(k, sinkID)
		}
		delete(next.writers, sinkID)
		if idx.snap.CompareAndSwap(old, next) {
			return
		}
	}
}

// matchingIDs returns the sorted, deduplicated sink ids whose normalised
// condition contains (severity), (severity, application), (severity,
// module), or (severity, application, module) for the given tags.
func (idx *index) matchingIDs(s severity.Severity, app, mod string) []string {
	snap := idx.snap.Load()

	e1 := snap.entries[condition.MatchKey{Severity: s}]
	ids := e1.sinkIDs
	if e1.descendantCount == 0 {
		return ids
	}

	e2 := snap.entries[condition.MatchKey{Severity: s, Application: app}]
	eM := snap.entries[condition.MatchKey{Severity: s, Module: mod}]
	ids = mergeSorted(ids, e2.sinkIDs)
	ids = mergeSorted(ids, eM.sinkIDs)

	if e2.descendantCount > 0 {
		e3 := snap.entries[condition.MatchKey{Severity: s, Application: app, Module: mod}]
		ids = mergeSorted(ids, e3.sinkIDs)
	}
	return ids
}

// select resolves matchingIDs to their current writers. Ids whose writer
// is absent (raced with a concurrent uninstall) are silently dropped.
func (idx *index) select_(s severity.Severity, app, mod string) []asink.Writer {
	snap := idx.snap.Load()
	ids := idx.matchingIDs(s, app, mod)
	if len(ids) == 0 {
		return nil
	}
	out := make([]asink.Writer, 0, len(ids))
	for _, id := range ids {
		if w, ok := snap.writers[id]; ok && w != nil {
			out = append(out, w)
		}
	}
	return out
}
