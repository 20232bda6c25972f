package predicate

import "github.com/kasuganosora/rowwatch/pkg/keyrange"

// ToRanges translates a resolved ValuePredicate over column into a finite
// union of key ranges, if possible. ok is false when the predicate isn't a
// translatable leaf on that column (used by the planner's index
// substitution rewrite to decide whether an index can serve it).
func ToRanges(p Predicate, column string) (ranges []keyrange.Range, ok bool) {
	vp, isValue := p.(ValuePredicate)
	if !isValue || vp.Column != column || !vp.Operand.IsResolved() {
		return nil, false
	}
	switch vp.Op {
	case Eq:
		return []keyrange.Range{keyrange.Only(vp.Operand.Value)}, true
	case Ne:
		return keyrange.Only(vp.Operand.Value).Complement(), true
	case Lt:
		return []keyrange.Range{keyrange.UpperBound(vp.Operand.Value, true)}, true
	case Le:
		return []keyrange.Range{keyrange.UpperBound(vp.Operand.Value, false)}, true
	case Gt:
		return []keyrange.Range{keyrange.LowerBound(vp.Operand.Value, true)}, true
	case Ge:
		return []keyrange.Range{keyrange.LowerBound(vp.Operand.Value, false)}, true
	case Between:
		if len(vp.Operand.List) != 2 {
			return nil, false
		}
		return []keyrange.Range{keyrange.Between(vp.Operand.List[0].Value, vp.Operand.List[1].Value, false, false)}, true
	case In:
		out := make([]keyrange.Range, 0, len(vp.Operand.List))
		for _, item := range vp.Operand.List {
			out = append(out, keyrange.Only(item.Value))
		}
		return out, true
	default:
		return nil, false
	}
}
