package condition

import (
	"reflect"
	"testing"

	"dirpx.dev/dlog/apis/severity"
)

func TestNormalise_Threshold_ExpandsToMax(t *testing.T) {
	keys := Normalise(AtLeast(severity.Debug))
	if len(keys) != len(severity.All()) {
		t.Fatalf("AtLeast(Debug) normalised to %d keys, want %d", len(keys), len(severity.All()))
	}
	for _, k := range keys {
		if k.Application != "" || k.Module != "" {
			t.Fatalf("unexpected narrowed key %v from bare threshold", k)
		}
	}
}

func TestNormalise_Range(t *testing.T) {
	keys := Normalise(InRange(severity.Info, severity.Alert))
	want := []severity.Severity{severity.Info, severity.Notice, severity.Warning, severity.Error, severity.Critical, severity.Alert}
	if len(keys) != len(want) {
		t.Fatalf("InRange(Info,Alert) = %d keys, want %d", len(keys), len(want))
	}
	for i, s := range want {
		if keys[i].Severity != s {
			t.Fatalf("keys[%d].Severity = %v, want %v", i, keys[i].Severity, s)
		}
	}
}

func TestNormalise_List_IsExact(t *testing.T) {
	keys := Normalise(OneOf(severity.Info))
	if len(keys) != 1 || keys[0].Severity != severity.Info {
		t.Fatalf("OneOf(Info) = %v, want exactly [Info]", keys)
	}
}

func TestNormalise_Idempotent(t *testing.T) {
	c := AtLeast(severity.Info).WithApplication("stdlib")
	a := Normalise(c)
	// Re-normalising the same logical condition yields an identical list.
	b := Normalise(c)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("Normalise not idempotent: %v != %v", a, b)
	}
}

func TestNormalise_DeduplicatesOverlappingList(t *testing.T) {
	keys := Normalise(OneOf(severity.Info, severity.Info, severity.Error))
	if len(keys) != 2 {
		t.Fatalf("OneOf with duplicate = %d keys, want 2", len(keys))
	}
}

func TestNormalise_ApplicationAndModuleNarrowing(t *testing.T) {
	withApp := Normalise(OneOf(severity.Info).WithApplication("stdlib"))
	if len(withApp) != 1 || withApp[0].Application != "stdlib" || withApp[0].Module != "" {
		t.Fatalf("WithApplication produced %v", withApp)
	}

	withMod := Normalise(AtLeast(severity.Info).WithModule("lists"))
	for _, k := range withMod {
		if k.Module != "lists" || k.Application != "" {
			t.Fatalf("WithModule produced unexpected key %v", k)
		}
	}
}

func TestMatchKey_SortOrder_MissingFieldsFirst(t *testing.T) {
	a := MatchKey{Severity: severity.Info}
	b := MatchKey{Severity: severity.Info, Application: "stdlib"}
	c := MatchKey{Severity: severity.Info, Application: "stdlib", Module: "lists"}
	if !a.Less(b) || !b.Less(c) || a.Less(a) {
		t.Fatalf("sort order violated: a<b=%v b<c=%v", a.Less(b), b.Less(c))
	}
}

func TestDiff_Partition(t *testing.T) {
	oldC := OneOf(severity.Info, severity.Error)
	newC := OneOf(severity.Error, severity.Alert)

	added, common, removed := Diff(newC, oldC)

	wantAdded := []MatchKey{{Severity: severity.Alert}}
	wantCommon := []MatchKey{{Severity: severity.Error}}
	wantRemoved := []MatchKey{{Severity: severity.Info}}

	if !reflect.DeepEqual(added, wantAdded) {
		t.Fatalf("added = %v, want %v", added, wantAdded)
	}
	if !reflect.DeepEqual(common, wantCommon) {
		t.Fatalf("common = %v, want %v", common, wantCommon)
	}
	if !reflect.DeepEqual(removed, wantRemoved) {
		t.Fatalf("removed = %v, want %v", removed, wantRemoved)
	}

	// Disjointness and union coverage.
	union := map[MatchKey]int{}
	for _, k := range append(append(append([]MatchKey{}, added...), common...), removed...) {
		union[k]++
	}
	for k, n := range union {
		if n != 1 {
			t.Fatalf("key %v appears in %d of {added,common,removed}, want exactly 1", k, n)
		}
	}
	all := map[MatchKey]bool{}
	for _, k := range Normalise(newC) {
		all[k] = true
	}
	for _, k := range Normalise(oldC) {
		all[k] = true
	}
	if len(all) != len(union) {
		t.Fatalf("partition does not cover new ∪ old: got %d keys, want %d", len(union), len(all))
	}
}

func TestDiff_NoOverlap(t *testing.T) {
	added, common, removed := Diff(OneOf(severity.Info), OneOf(severity.Error))
	if len(common) != 0 {
		t.Fatalf("common = %v, want empty", common)
	}
	if len(added) != 1 || len(removed) != 1 {
		t.Fatalf("added=%v removed=%v, want single-element each", added, removed)
	}
}

func TestAncestors(t *testing.T) {
	k1 := MatchKey{Severity: severity.Info}
	if got := Ancestors(k1); got != nil {
		t.Fatalf("Ancestors(arity1) = %v, want nil", got)
	}

	k2 := MatchKey{Severity: severity.Info, Application: "stdlib"}
	want2 := []MatchKey{{Severity: severity.Info}}
	if got := Ancestors(k2); !reflect.DeepEqual(got, want2) {
		t.Fatalf("Ancestors(arity2 app) = %v, want %v", got, want2)
	}

	kMod := MatchKey{Severity: severity.Info, Module: "lists"}
	if got := Ancestors(kMod); !reflect.DeepEqual(got, want2) {
		t.Fatalf("Ancestors(arity2 module) = %v, want %v", got, want2)
	}

	k3 := MatchKey{Severity: severity.Info, Application: "stdlib", Module: "lists"}
	want3 := []MatchKey{
		{Severity: severity.Info},
		{Severity: severity.Info, Application: "stdlib"},
	}
	if got := Ancestors(k3); !reflect.DeepEqual(got, want3) {
		t.Fatalf("Ancestors(arity3) = %v, want %v", got, want3)
	}
}

// TestScenario_BasicRouting_NormalisedShapes reproduces spec §8 scenario 1's five sink
// conditions and checks their normalised keys have the expected shape
// (full routing behaviour is exercised in runtime/channel).
func TestScenario_BasicRouting_NormalisedShapes(t *testing.T) {
	s1 := AtLeast(severity.Debug)
	s2 := InRange(severity.Info, severity.Alert)
	s3 := OneOf(severity.Info)
	s4 := AtLeast(severity.Info).WithApplication("stdlib")
	s5 := AtLeast(severity.Info).WithModule("lists")

	if got := len(Normalise(s1)); got != 8 {
		t.Fatalf("s1 normalised to %d keys, want 8", got)
	}
	if got := len(Normalise(s2)); got != 6 {
		t.Fatalf("s2 normalised to %d keys, want 6", got)
	}
	if got := len(Normalise(s3)); got != 1 {
		t.Fatalf("s3 normalised to %d keys, want 1", got)
	}
	for _, k := range Normalise(s4) {
		if k.Application != "stdlib" || k.Module != "" {
			t.Fatalf("s4 key %v not (severity, stdlib)", k)
		}
	}
	for _, k := range Normalise(s5) {
		if k.Module != "lists" || k.Application != "" {
			t.Fatalf("s5 key %v not (severity, module=lists)", k)
		}
	}
}
