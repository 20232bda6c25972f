package index

import (
	"testing"

	"github.com/kasuganosora/rowwatch/pkg/keyrange"
	"github.com/kasuganosora/rowwatch/pkg/schema"
)

// S1: single-row numerical index, insert keys 10..19 mapping to 20..29.
func TestSortedScenarioS1(t *testing.T) {
	idx := NewSorted(true)
	for k := int64(10); k < 20; k++ {
		if err := idx.Add(schema.Integer(k), schema.RowID(k+10)); err != nil {
			t.Fatalf("Add(%d): %v", k, err)
		}
	}

	if got := idx.Get(schema.Integer(15)); len(got) != 1 || got[0] != 25 {
		t.Fatalf("Get(15) = %v, want [25]", got)
	}

	r := keyrange.LowerBound(schema.Integer(15), true)
	got := idx.GetRange(&r)
	want := []schema.RowID{26, 27, 28, 29}
	assertRowIDs(t, got, want)

	r2 := keyrange.Between(schema.Integer(12), schema.Integer(15), false, true)
	got2 := idx.GetRange(&r2)
	assertRowIDs(t, got2, []schema.RowID{22, 23, 24})

	twelve := schema.RowID(22)
	if err := idx.Remove(schema.Integer(12), &twelve); err != nil {
		t.Fatal(err)
	}
	if got := idx.Get(schema.Integer(12)); len(got) != 0 {
		t.Fatalf("Get(12) after remove = %v, want []", got)
	}

	if err := idx.Set(schema.Integer(15), schema.RowID(35)); err != nil {
		t.Fatal(err)
	}
	if got := idx.Get(schema.Integer(15)); len(got) != 1 || got[0] != 35 {
		t.Fatalf("Get(15) after set = %v, want [35]", got)
	}

	// Key 12 was removed above, so nine of the ten keys remain.
	if got := idx.GetRange(nil); len(got) != 9 {
		t.Fatalf("GetRange(nil) length = %d, want 9", len(got))
	}
}

func TestSortedUniqueConstraint(t *testing.T) {
	idx := NewSorted(true)
	if err := idx.Add(schema.Text("x@y"), 1); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(schema.Text("x@y"), 2); err == nil {
		t.Fatal("expected CONSTRAINT_VIOLATION on duplicate unique key")
	}
}

func TestSortedNonUniquePreservesInsertionOrder(t *testing.T) {
	idx := NewSorted(false)
	idx.Add(schema.Integer(1), 10)
	idx.Add(schema.Integer(1), 20)
	idx.Add(schema.Integer(1), 30)
	assertRowIDs(t, idx.Get(schema.Integer(1)), []schema.RowID{10, 20, 30})
}

func TestCostMonotone(t *testing.T) {
	idx := NewSorted(false)
	for k := int64(0); k < 100; k++ {
		idx.Add(schema.Integer(k), schema.RowID(k))
	}
	narrow := keyrange.Between(schema.Integer(10), schema.Integer(20), false, false)
	wide := keyrange.Between(schema.Integer(0), schema.Integer(99), false, false)
	if idx.Cost(&narrow) > idx.Cost(&wide) {
		t.Fatal("narrower range must not cost more than a wider superset")
	}
}

func TestFlatMapFullScanDegrade(t *testing.T) {
	f := NewFlatMap(false)
	f.Add(schema.Integer(1), 10)
	f.Add(schema.Integer(2), 20)
	f.Add(schema.Integer(3), 30)
	r := keyrange.LowerBound(schema.Integer(2), false)
	got := f.GetRange(&r)
	assertRowIDs(t, got, []schema.RowID{20, 30})
	if f.Cost(&r) != 3 {
		t.Fatalf("flat map cost should always be full row count, got %d", f.Cost(&r))
	}
}

func assertRowIDs(t *testing.T, got, want []schema.RowID) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
