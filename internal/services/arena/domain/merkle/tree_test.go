package merkle

import (
	"encoding/json"
	"testing"

	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/field"
)

func mustTree(t *testing.T, height int) *Tree {
	t.Helper()
	tree, err := New(height)
	if err != nil {
		t.Fatalf("new tree: %v", err)
	}
	return tree
}

func TestNewRejectsHeight(t *testing.T) {
	for _, h := range []int{-1, 0, 1, MaxHeight + 1} {
		if _, err := New(h); err == nil {
			t.Fatalf("expected error for height %d", h)
		}
	}
}

func TestEmptyRootIsIndependentOfStorage(t *testing.T) {
	a := mustTree(t, 5)
	b := mustTree(t, 5)
	if err := b.Set(3, field.FromUint64(9)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := b.Set(3, field.Zero()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !field.Equal(a.Root(), b.Root()) {
		t.Fatal("expected clearing a leaf to restore the empty root")
	}
	for level, nodes := range b.nodes {
		if len(nodes) != 0 {
			t.Fatalf("expected level %d to be sparse after reset, has %d nodes", level, len(nodes))
		}
	}
}

func TestWitnessReproducesRoot(t *testing.T) {
	tree := mustTree(t, 5)
	for i := uint64(0); i < tree.LeafCount(); i += 3 {
		if err := tree.Set(i, field.FromUint64(i+100)); err != nil {
			t.Fatalf("set %d: %v", i, err)
		}
	}
	for i := uint64(0); i < tree.LeafCount(); i++ {
		w, err := tree.Witness(i)
		if err != nil {
			t.Fatalf("witness %d: %v", i, err)
		}
		leaf, err := tree.Get(i)
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		root, index := w.RootAndIndex(leaf)
		if !field.Equal(root, tree.Root()) {
			t.Fatalf("leaf %d: witness root mismatch", i)
		}
		if index != i {
			t.Fatalf("expected index %d, got %d", i, index)
		}
		if !w.Valid(5) || w.Height() != 5 {
			t.Fatalf("leaf %d: expected well formed witness", i)
		}
	}
}

func TestRootIfLeafWerePredictsSet(t *testing.T) {
	tree := mustTree(t, 21)
	if err := tree.Set(16100, field.One()); err != nil {
		t.Fatalf("set: %v", err)
	}
	w, err := tree.Witness(16100)
	if err != nil {
		t.Fatalf("witness: %v", err)
	}
	vacated := w.RootIfLeafWere(field.Zero())

	if err := tree.Set(16100, field.Zero()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !field.Equal(vacated, tree.Root()) {
		t.Fatal("expected hypothetical root to match the tree after the write")
	}
	empty := mustTree(t, 21)
	if !field.Equal(vacated, empty.Root()) {
		t.Fatal("expected vacated tree to equal empty tree")
	}
}

func TestTwoWitnessesAgreeWhenOnlyTheirLeavesDiffer(t *testing.T) {
	tree := mustTree(t, 21)
	for _, i := range []uint64{5, 16100, 52100} {
		if err := tree.Set(i, field.One()); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	origin, _ := tree.Witness(16100)
	dest, _ := tree.Witness(52100)
	free, _ := tree.Witness(52101)

	if field.Equal(origin.RootIfLeafWere(field.Zero()), dest.RootIfLeafWere(field.Zero())) {
		t.Fatal("two occupied leaves zeroed separately should differ")
	}
	if !field.Equal(origin.RootIfLeafWere(field.Zero()), origin.RootIfLeafWere(field.Zero())) {
		t.Fatal("expected deterministic root")
	}
	if !field.Equal(free.RootIfLeafWere(field.Zero()), tree.Root()) {
		t.Fatal("expected vacant witness at zero to equal current root")
	}
}

func TestIndexOutOfRange(t *testing.T) {
	tree := mustTree(t, 5)
	if err := tree.Set(16, field.One()); err == nil {
		t.Fatal("expected out of range set error")
	}
	if _, err := tree.Witness(16); err == nil {
		t.Fatal("expected out of range witness error")
	}
	if _, err := tree.Get(16); err == nil {
		t.Fatal("expected out of range get error")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	tree := mustTree(t, 5)
	if err := tree.Set(1, field.FromUint64(11)); err != nil {
		t.Fatalf("set: %v", err)
	}
	clone := tree.Clone()
	if err := clone.Set(2, field.FromUint64(22)); err != nil {
		t.Fatalf("set clone: %v", err)
	}
	if field.Equal(tree.Root(), clone.Root()) {
		t.Fatal("expected clone write not to leak into original")
	}
	if v, _ := tree.Get(2); !v.IsZero() {
		t.Fatal("expected original leaf untouched")
	}
}

func TestWitnessJSONRoundTrip(t *testing.T) {
	tree := mustTree(t, 5)
	if err := tree.Set(6, field.FromUint64(66)); err != nil {
		t.Fatalf("set: %v", err)
	}
	w, _ := tree.Witness(6)
	data, err := json.Marshal(w)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Witness
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Index() != 6 || !field.Equal(decoded.RootIfLeafWere(field.FromUint64(66)), tree.Root()) {
		t.Fatal("expected decoded witness to behave like original")
	}
	if err := json.Unmarshal([]byte(`{"path":["1"],"isLeft":[]}`), &decoded); err == nil {
		t.Fatal("expected mismatched lengths to fail")
	}
}

func TestMalformedWitnessDoesNotPanic(t *testing.T) {
	tree := mustTree(t, 5)
	w, err := tree.Witness(6)
	if err != nil {
		t.Fatalf("witness: %v", err)
	}
	tests := []struct {
		name string
		w    Witness
	}{
		{"short directions", Witness{Path: w.Path, IsLeft: w.IsLeft[:1]}},
		{"no directions", Witness{Path: w.Path}},
		{"extra directions", Witness{Path: w.Path[:2], IsLeft: append(append([]bool{}, w.IsLeft...), make([]bool, 70)...)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.w.Valid(5) {
				t.Fatal("expected malformed witness to be invalid")
			}
			tc.w.RootIfLeafWere(field.One())
			if index := tc.w.Index(); index >= 1<<len(tc.w.Path) {
				t.Fatalf("index %d beyond a %d-level path", index, len(tc.w.Path))
			}
		})
	}
}
