package runner

import (
	"strings"

	"github.com/kasuganosora/rowwatch/pkg/predicate"
	"github.com/kasuganosora/rowwatch/pkg/schema"
)

// evalPredicate interprets p against a single wide row (a merged payload,
// post-join columns included). Comparisons against a Null operand or a
// Null column value never match, following ordinary three-valued-logic
// NULL semantics; this engine does not model IS NULL as a distinct
// operator since it was not named in the predicate op set.
func evalPredicate(p predicate.Predicate, row map[string]schema.Value) bool {
	switch n := p.(type) {
	case nil:
		return true
	case predicate.ValuePredicate:
		v, ok := row[n.Column]
		if !ok {
			v = schema.Null()
		}
		return evalValueOp(n.Op, v, n.Operand)
	case predicate.JoinPredicate:
		left, lok := row[n.LeftColumn]
		right, rok := row[n.RightColumn]
		if !lok || !rok || left.IsNull() || right.IsNull() {
			return false
		}
		return compareOp(n.Op, left, right)
	case predicate.CombinedPredicate:
		switch n.Combinator {
		case predicate.And:
			for _, c := range n.Children {
				if !evalPredicate(c, row) {
					return false
				}
			}
			return true
		case predicate.Or:
			for _, c := range n.Children {
				if evalPredicate(c, row) {
					return true
				}
			}
			return false
		case predicate.Not:
			return !evalPredicate(n.Children[0], row)
		}
	}
	return false
}

func evalValueOp(op predicate.Op, v schema.Value, operand predicate.Operand) bool {
	switch op {
	case predicate.In:
		for _, item := range operand.List {
			if !v.IsNull() && v.Kind == item.Value.Kind && v.Equal(item.Value) {
				return true
			}
		}
		return false
	case predicate.Between:
		if v.IsNull() || len(operand.List) != 2 {
			return false
		}
		lo, hi := operand.List[0].Value, operand.List[1].Value
		return schema.Compare(v, lo) >= 0 && schema.Compare(v, hi) <= 0
	case predicate.Match:
		if v.IsNull() || v.Kind != schema.KindText {
			return false
		}
		return strings.Contains(v.Str, operand.Value.Str)
	default:
		if v.IsNull() || operand.Value.IsNull() || v.Kind != operand.Value.Kind {
			return false
		}
		return compareOp(op, v, operand.Value)
	}
}

func compareOp(op predicate.Op, a, b schema.Value) bool {
	cmp := schema.Compare(a, b)
	switch op {
	case predicate.Eq:
		return cmp == 0
	case predicate.Ne:
		return cmp != 0
	case predicate.Lt:
		return cmp < 0
	case predicate.Le:
		return cmp <= 0
	case predicate.Gt:
		return cmp > 0
	case predicate.Ge:
		return cmp >= 0
	default:
		return false
	}
}
