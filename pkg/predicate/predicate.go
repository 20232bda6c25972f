// Package predicate implements the value/join predicate sum type, bind
// parameter resolution and traversal described in the data model (§3) and
// consumed by the planner's normalisation and pushdown rewrites (§4.5).
package predicate

import (
	"fmt"

	"github.com/kasuganosora/rowwatch/pkg/dberrors"
	"github.com/kasuganosora/rowwatch/pkg/schema"
)

// Op is a comparison operator usable in a ValuePredicate.
type Op string

const (
	Eq      Op = "="
	Ne      Op = "≠"
	Lt      Op = "<"
	Le      Op = "≤"
	Gt      Op = ">"
	Ge      Op = "≥"
	Match   Op = "match"
	In      Op = "in"
	Between Op = "between"
)

// Combinator is the boolean connective of a CombinedPredicate.
type Combinator string

const (
	And Combinator = "AND"
	Or  Combinator = "OR"
	Not Combinator = "NOT"
)

// Operand is either a resolved literal value, a bind-parameter slot waiting
// to be filled, or (for In/Between) a small fixed list of operands.
type Operand struct {
	Resolved bool
	Value    schema.Value
	Slot     int // meaningful when !Resolved
	// List holds multiple operands for In (any length) and Between (exactly 2).
	List []Operand
}

func Lit(v schema.Value) Operand { return Operand{Resolved: true, Value: v} }
func Bind(slot int) Operand      { return Operand{Resolved: false, Slot: slot} }
func ListOf(items ...Operand) Operand {
	return Operand{Resolved: true, List: items}
}

// IsResolved reports whether this operand (and, for a list, every element)
// has had all bind slots filled.
func (o Operand) IsResolved() bool {
	if len(o.List) > 0 {
		for _, item := range o.List {
			if !item.IsResolved() {
				return false
			}
		}
		return true
	}
	return o.Resolved
}

// Predicate is the sum type over value predicates, join predicates and
// boolean combinators.
type Predicate interface {
	isPredicate()
	// Resolved reports whether every bind slot in this subtree has a value.
	Resolved() bool
	// Bind returns a new predicate tree with every Slot(i) operand replaced
	// by values[i]. The receiver is never mutated.
	Bind(values []schema.Value) Predicate
	// Walk visits every node of the tree, including itself, depth first.
	Walk(visit func(Predicate))
}

// ValuePredicate compares one column against an operand.
type ValuePredicate struct {
	Column  string
	Op      Op
	Operand Operand
}

func (ValuePredicate) isPredicate() {}

func (p ValuePredicate) Resolved() bool { return p.Operand.IsResolved() }

func (p ValuePredicate) Bind(values []schema.Value) Predicate {
	p.Operand = bindOperand(p.Operand, values)
	return p
}

func (p ValuePredicate) Walk(visit func(Predicate)) { visit(p) }

func bindOperand(o Operand, values []schema.Value) Operand {
	if len(o.List) > 0 {
		resolved := make([]Operand, len(o.List))
		for i, item := range o.List {
			resolved[i] = bindOperand(item, values)
		}
		return Operand{Resolved: true, List: resolved}
	}
	if o.Resolved {
		return o
	}
	return Lit(values[o.Slot])
}

// JoinPredicate relates a column of one table to a column of another,
// typically with Op == Eq.
type JoinPredicate struct {
	LeftColumn  string
	RightColumn string
	Op          Op
}

func (JoinPredicate) isPredicate()     {}
func (JoinPredicate) Resolved() bool   { return true }
func (p JoinPredicate) Bind([]schema.Value) Predicate { return p }
func (p JoinPredicate) Walk(visit func(Predicate))    { visit(p) }

// CombinedPredicate is a boolean connective over children. Not carries
// exactly one child; And/Or carry two or more.
type CombinedPredicate struct {
	Combinator Combinator
	Children   []Predicate
}

func (CombinedPredicate) isPredicate() {}

func (p CombinedPredicate) Resolved() bool {
	for _, c := range p.Children {
		if !c.Resolved() {
			return false
		}
	}
	return true
}

func (p CombinedPredicate) Bind(values []schema.Value) Predicate {
	bound := make([]Predicate, len(p.Children))
	for i, c := range p.Children {
		bound[i] = c.Bind(values)
	}
	return CombinedPredicate{Combinator: p.Combinator, Children: bound}
}

func (p CombinedPredicate) Walk(visit func(Predicate)) {
	visit(p)
	for _, c := range p.Children {
		c.Walk(visit)
	}
}

func AndOf(children ...Predicate) Predicate {
	return CombinedPredicate{Combinator: And, Children: children}
}

func OrOf(children ...Predicate) Predicate {
	return CombinedPredicate{Combinator: Or, Children: children}
}

func NotOf(child Predicate) Predicate {
	return CombinedPredicate{Combinator: Not, Children: []Predicate{child}}
}

// RequireResolved returns a CONSTRAINT-free precondition check used right
// before execution: every predicate tree must resolve before a query runs.
func RequireResolved(p Predicate) error {
	if p == nil {
		return nil
	}
	if !p.Resolved() {
		return dberrors.Syntax("predicate has unbound parameter slots")
	}
	return nil
}

func (o Op) String() string { return string(o) }

func invert(op Op) (Op, bool) {
	switch op {
	case Eq:
		return Ne, true
	case Ne:
		return Eq, true
	case Lt:
		return Ge, true
	case Le:
		return Gt, true
	case Gt:
		return Le, true
	case Ge:
		return Lt, true
	default:
		return "", false
	}
}

// PushNotToLeaves rewrites the tree so that NOT only ever wraps a leaf
// (ValuePredicate/JoinPredicate), applying De Morgan's laws and operator
// inversion where possible. This is the planner's normalisation rewrite #1.
func PushNotToLeaves(p Predicate) Predicate {
	switch n := p.(type) {
	case CombinedPredicate:
		switch n.Combinator {
		case Not:
			return pushNot(n.Children[0])
		case And, Or:
			children := make([]Predicate, len(n.Children))
			for i, c := range n.Children {
				children[i] = PushNotToLeaves(c)
			}
			return flatten(CombinedPredicate{Combinator: n.Combinator, Children: children})
		}
	}
	return p
}

// pushNot distributes a NOT over child, recursing until it sits on a leaf.
func pushNot(child Predicate) Predicate {
	switch n := child.(type) {
	case ValuePredicate:
		if inverted, ok := invert(n.Op); ok {
			n.Op = inverted
			return n
		}
		return NotOf(n)
	case JoinPredicate:
		if inverted, ok := invert(n.Op); ok {
			n.Op = inverted
			return n
		}
		return NotOf(n)
	case CombinedPredicate:
		switch n.Combinator {
		case Not:
			return PushNotToLeaves(n.Children[0])
		case And:
			negated := make([]Predicate, len(n.Children))
			for i, c := range n.Children {
				negated[i] = pushNot(c)
			}
			return flatten(CombinedPredicate{Combinator: Or, Children: negated})
		case Or:
			negated := make([]Predicate, len(n.Children))
			for i, c := range n.Children {
				negated[i] = pushNot(c)
			}
			return flatten(CombinedPredicate{Combinator: And, Children: negated})
		}
	}
	panic(fmt.Sprintf("predicate: pushNot: unreachable for %T", child))
}

// flatten merges nested And-in-And / Or-in-Or children into their parent,
// the planner's "flatten nested AND/OR" rewrite.
func flatten(p CombinedPredicate) Predicate {
	if p.Combinator == Not {
		return p
	}
	var out []Predicate
	for _, c := range p.Children {
		if cc, ok := c.(CombinedPredicate); ok && cc.Combinator == p.Combinator {
			out = append(out, cc.Children...)
			continue
		}
		out = append(out, c)
	}
	return CombinedPredicate{Combinator: p.Combinator, Children: out}
}
