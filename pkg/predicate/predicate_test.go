package predicate

import (
	"testing"

	"github.com/kasuganosora/rowwatch/pkg/schema"
)

func TestBindResolvesSlots(t *testing.T) {
	p := ValuePredicate{Column: "year", Op: Between, Operand: ListOf(Bind(0), Bind(1))}
	if p.Resolved() {
		t.Fatal("expected unresolved predicate before bind")
	}
	bound := p.Bind([]schema.Value{schema.Integer(1992), schema.Integer(2003)})
	if !bound.Resolved() {
		t.Fatal("expected resolved predicate after bind")
	}
	// original predicate must be untouched (Bind never mutates)
	if p.Resolved() {
		t.Fatal("Bind must not mutate the receiver")
	}
}

func TestPushNotToLeavesInvertsOperator(t *testing.T) {
	p := NotOf(ValuePredicate{Column: "a", Op: Gt, Operand: Lit(schema.Integer(10))})
	rewritten := PushNotToLeaves(p)
	vp, ok := rewritten.(ValuePredicate)
	if !ok {
		t.Fatalf("expected leaf ValuePredicate, got %T", rewritten)
	}
	if vp.Op != Le {
		t.Fatalf("NOT(>10) should become <=10, got %s", vp.Op)
	}
}

func TestPushNotToLeavesDeMorgan(t *testing.T) {
	a := ValuePredicate{Column: "a", Op: Eq, Operand: Lit(schema.Integer(1))}
	b := ValuePredicate{Column: "b", Op: Eq, Operand: Lit(schema.Integer(2))}
	p := NotOf(AndOf(a, b))
	rewritten := PushNotToLeaves(p).(CombinedPredicate)
	if rewritten.Combinator != Or {
		t.Fatalf("NOT(a AND b) should become OR, got %s", rewritten.Combinator)
	}
	for _, c := range rewritten.Children {
		if _, ok := c.(ValuePredicate); !ok {
			t.Fatalf("expected leaves under OR, got %T", c)
		}
		if c.(ValuePredicate).Op != Ne {
			t.Fatalf("expected != after negating =, got %s", c.(ValuePredicate).Op)
		}
	}
}

func TestFlattenMergesNestedAnd(t *testing.T) {
	a := ValuePredicate{Column: "a", Op: Eq, Operand: Lit(schema.Integer(1))}
	b := ValuePredicate{Column: "b", Op: Eq, Operand: Lit(schema.Integer(2))}
	c := ValuePredicate{Column: "c", Op: Eq, Operand: Lit(schema.Integer(3))}
	nested := AndOf(AndOf(a, b), c)
	flat := PushNotToLeaves(nested).(CombinedPredicate)
	if len(flat.Children) != 3 {
		t.Fatalf("expected 3 flattened children, got %d", len(flat.Children))
	}
}

func TestToRangesBetween(t *testing.T) {
	p := ValuePredicate{
		Column:  "year",
		Op:      Between,
		Operand: ListOf(Lit(schema.Integer(1992)), Lit(schema.Integer(2003))),
	}
	ranges, ok := ToRanges(p, "year")
	if !ok || len(ranges) != 1 {
		t.Fatalf("expected single translated range, got %v ok=%v", ranges, ok)
	}
	if !ranges[0].Contains(schema.Integer(1995)) {
		t.Fatal("expected 1995 within [1992,2003]")
	}
	if ranges[0].Contains(schema.Integer(1980)) {
		t.Fatal("expected 1980 outside [1992,2003]")
	}
}

func TestToRangesWrongColumn(t *testing.T) {
	p := ValuePredicate{Column: "a", Op: Eq, Operand: Lit(schema.Integer(1))}
	if _, ok := ToRanges(p, "b"); ok {
		t.Fatal("expected translation to fail for a mismatched column")
	}
}
