// Package keyrange implements half-open/closed intervals over the
// schema.Value key domain: construction, containment, reversal and
// complement, as used by predicate-to-range translation and index cost
// estimation.
package keyrange

import "github.com/kasuganosora/rowwatch/pkg/schema"

// Range is a value type: equality is structural. A nil From/To bound means
// that end is open (unbounded).
type Range struct {
	From      *schema.Value
	To        *schema.Value
	FromExcl  bool
	ToExcl    bool
}

// All returns the fully unbounded range.
func All() Range {
	return Range{}
}

// Only returns the singleton range {k}.
func Only(k schema.Value) Range {
	return Range{From: &k, To: &k}
}

// LowerBound returns [k, +inf) or (k, +inf) if exclusive.
func LowerBound(k schema.Value, exclusive bool) Range {
	return Range{From: &k, FromExcl: exclusive}
}

// UpperBound returns (-inf, k] or (-inf, k) if exclusive.
func UpperBound(k schema.Value, exclusive bool) Range {
	return Range{To: &k, ToExcl: exclusive}
}

// Between constructs an explicit range with both bounds.
func Between(from, to schema.Value, fromExcl, toExcl bool) Range {
	return Range{From: &from, To: &to, FromExcl: fromExcl, ToExcl: toExcl}
}

// IsEmpty reports whether the range can contain no key at all (from > to,
// or from == to with either bound exclusive).
func (r Range) IsEmpty() bool {
	if r.From == nil || r.To == nil {
		return false
	}
	cmp := schema.Compare(*r.From, *r.To)
	if cmp > 0 {
		return true
	}
	if cmp == 0 && (r.FromExcl || r.ToExcl) {
		return true
	}
	return false
}

// Contains reports whether k falls within the range, respecting
// exclusivity at each bound.
func (r Range) Contains(k schema.Value) bool {
	if r.From != nil {
		cmp := schema.Compare(k, *r.From)
		if cmp < 0 || (cmp == 0 && r.FromExcl) {
			return false
		}
	}
	if r.To != nil {
		cmp := schema.Compare(k, *r.To)
		if cmp > 0 || (cmp == 0 && r.ToExcl) {
			return false
		}
	}
	return true
}

// Equal reports structural equality of two ranges.
func (r Range) Equal(other Range) bool {
	return equalBound(r.From, other.From) &&
		equalBound(r.To, other.To) &&
		r.FromExcl == other.FromExcl &&
		r.ToExcl == other.ToExcl
}

func equalBound(a, b *schema.Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// Reverse swaps the bounds: (from,to) with their exclusivities exchanged.
// Reverse of an open bound stays open on the other side.
func (r Range) Reverse() Range {
	return Range{
		From:     r.To,
		To:       r.From,
		FromExcl: r.ToExcl,
		ToExcl:   r.FromExcl,
	}
}

// Complement returns the ranges covering every key not in r. All() has an
// empty complement. A range with both bounds open ((-inf,+inf) minus
// nothing in the middle) also has an empty complement; a bounded range on
// one or both sides yields one or two open ranges.
func (r Range) Complement() []Range {
	if r.IsEmpty() {
		return []Range{All()}
	}
	if r.From == nil && r.To == nil {
		return nil
	}
	var out []Range
	if r.From != nil {
		out = append(out, UpperBound(*r.From, !r.FromExcl))
	}
	if r.To != nil {
		out = append(out, LowerBound(*r.To, !r.ToExcl))
	}
	return out
}
