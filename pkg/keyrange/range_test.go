package keyrange

import (
	"testing"

	"github.com/kasuganosora/rowwatch/pkg/schema"
)

func TestContains(t *testing.T) {
	r := Between(schema.Integer(12), schema.Integer(15), false, true)
	cases := []struct {
		k    int64
		want bool
	}{
		{11, false},
		{12, true},
		{14, true},
		{15, false},
		{16, false},
	}
	for _, c := range cases {
		if got := r.Contains(schema.Integer(c.k)); got != c.want {
			t.Errorf("Contains(%d) = %v, want %v", c.k, got, c.want)
		}
	}
}

func TestReverse(t *testing.T) {
	r := Between(schema.Integer(12), schema.Integer(15), false, true)
	rev := r.Reverse()
	if !rev.From.Equal(schema.Integer(15)) || !rev.To.Equal(schema.Integer(12)) {
		t.Fatalf("Reverse() bounds = %+v", rev)
	}
	if !rev.FromExcl || rev.ToExcl {
		t.Fatalf("Reverse() exclusivity = from:%v to:%v", rev.FromExcl, rev.ToExcl)
	}
}

// complement(complement(r)) == r as a set of keys (spec property #2).
func TestComplementInvolution(t *testing.T) {
	ranges := []Range{
		All(),
		Only(schema.Integer(5)),
		LowerBound(schema.Integer(10), true),
		UpperBound(schema.Integer(10), false),
		Between(schema.Integer(1), schema.Integer(9), false, false),
	}
	for _, r := range ranges {
		complement := r.Complement()
		for _, probe := range []int64{-5, 0, 1, 5, 9, 10, 20} {
			v := schema.Integer(probe)
			// v is in complement(complement(r)) iff v is NOT in complement(r).
			doubled := !unionContains(complement, v)
			if r.Contains(v) != doubled {
				t.Errorf("range %+v: complement(complement) disagrees at %d", r, probe)
			}
		}
	}
}

// unionContains reports whether v falls in the union of pieces, the
// membership test for a (possibly two-piece) complement, since Range
// itself can't represent a two-piece union directly.
func unionContains(pieces []Range, v schema.Value) bool {
	for _, p := range pieces {
		if p.Contains(v) {
			return true
		}
	}
	return false
}

func TestComplementOfAllIsEmpty(t *testing.T) {
	if c := All().Complement(); c != nil {
		t.Fatalf("All().Complement() = %v, want nil (empty)", c)
	}
}

func TestEmptyRange(t *testing.T) {
	r := Between(schema.Integer(5), schema.Integer(5), true, false)
	if !r.IsEmpty() {
		t.Fatal("expected empty range for (5,5]")
	}
}
