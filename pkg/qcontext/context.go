// Package qcontext defines the immutable query context builders freeze and
// hand to the planner/runner (§3 "Query context", §4.8). It sits below
// both the builder surface and the planner so neither needs to import the
// other.
package qcontext

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/kasuganosora/rowwatch/pkg/predicate"
	"github.com/kasuganosora/rowwatch/pkg/schema"
)

// Kind is the statement kind a Context represents.
type Kind int

const (
	Select Kind = iota
	Insert
	InsertOrReplace
	Update
	Delete
)

func (k Kind) String() string {
	switch k {
	case Select:
		return "SELECT"
	case Insert:
		return "INSERT"
	case InsertOrReplace:
		return "INSERT_OR_REPLACE"
	case Update:
		return "UPDATE"
	case Delete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Direction is an ORDER BY sort direction.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// OrderTerm is one ORDER BY column.
type OrderTerm struct {
	Column    string
	Direction Direction
}

// JoinKind distinguishes inner from left-outer joins.
type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftOuterJoin
)

// Join is one join clause against an additional table.
type Join struct {
	Kind      JoinKind
	Table     string
	Predicate predicate.Predicate
}

// Assignment is one `SET column = value` clause of an UPDATE.
type Assignment struct {
	Column  string
	Operand predicate.Operand
}

// Context is the frozen, immutable result of a builder's terminal verb.
// Re-binding parameters produces a logically new Context (a new Version),
// never a mutation of an existing one.
type Context struct {
	Kind       Kind
	Columns    []string // projected columns; empty means "all"
	From       []string // tables, From[0] is primary
	Where      predicate.Predicate
	Joins      []Join
	OrderBy    []OrderTerm
	GroupBy    []string
	Limit      *int
	Skip       *int
	Rows       []schema.Row      // Insert/InsertOrReplace payloads
	Assignments []Assignment     // Update set-list
	Version    uint64            // monotonic counter, bumped on each new Bind
}

// Tables returns the full set of tables this context reads or writes,
// i.e. its runner Scope.
func (c *Context) Tables() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, t := range c.From {
		add(t)
	}
	for _, j := range c.Joins {
		add(j.Table)
	}
	return out
}

// IsWrite reports whether executing this context mutates its tables.
func (c *Context) IsWrite() bool {
	return c.Kind != Select
}

// Bind returns a new Context with every bind slot resolved against values.
// The receiver is never mutated; the result carries Version+1.
func (c *Context) Bind(values []schema.Value) *Context {
	next := *c
	if c.Where != nil {
		next.Where = c.Where.Bind(values)
	}
	if len(c.Joins) > 0 {
		next.Joins = make([]Join, len(c.Joins))
		for i, j := range c.Joins {
			j.Predicate = j.Predicate.Bind(values)
			next.Joins[i] = j
		}
	}
	if len(c.Assignments) > 0 {
		next.Assignments = make([]Assignment, len(c.Assignments))
		for i, a := range c.Assignments {
			if !a.Operand.Resolved {
				a.Operand = predicate.Lit(values[a.Operand.Slot])
			}
			next.Assignments[i] = a
		}
	}
	next.Version = c.Version + 1
	return &next
}

// Identity returns a structural hash identifying this query: semantically
// equal contexts collapse to the same identity, per the design notes'
// "structural identity" resolution of the source's object-identity
// approach. It hashes resolved bind values rather than ignoring them: two
// instances of the same query shape bound to different parameters (e.g.
// two different `year between $1 and $2` ranges) are different live
// queries to the observer registry, matching how scenario S3 expects
// `bind([1992,2003])` to name one specific subscription rather than every
// binding of that query's shape. It ignores Version itself, since
// re-binding the same context object in place still refers to the same
// subscription once the new bind values are hashed in.
func (c *Context) Identity() uint64 {
	h := xxhash.New()
	write := func(s string) { h.Write([]byte(s)); h.Write([]byte{0}) }

	write(c.Kind.String())
	for _, col := range c.Columns {
		write("col:" + col)
	}
	for _, t := range c.From {
		write("from:" + t)
	}
	writePredicate(h, c.Where)
	for _, j := range c.Joins {
		write("join")
		write(j.Table)
		writePredicate(h, j.Predicate)
	}
	for _, o := range c.OrderBy {
		write("order")
		write(o.Column)
		write(fmt.Sprintf("dir:%d", o.Direction))
	}
	for _, g := range c.GroupBy {
		write("group:" + g)
	}
	if c.Limit != nil {
		write(fmt.Sprintf("limit:%d", *c.Limit))
	}
	if c.Skip != nil {
		write(fmt.Sprintf("skip:%d", *c.Skip))
	}
	return h.Sum64()
}

func writePredicate(h *xxhash.Digest, p predicate.Predicate) {
	if p == nil {
		return
	}
	p.Walk(func(node predicate.Predicate) {
		switch n := node.(type) {
		case predicate.ValuePredicate:
			h.Write([]byte("vp:" + n.Column + ":" + string(n.Op) + ":"))
			writeOperand(h, n.Operand)
		case predicate.JoinPredicate:
			h.Write([]byte("jp:" + n.LeftColumn + ":" + string(n.Op) + ":" + n.RightColumn))
		case predicate.CombinedPredicate:
			h.Write([]byte("cp:" + string(n.Combinator)))
		}
	})
}

func writeOperand(h *xxhash.Digest, o predicate.Operand) {
	if len(o.List) > 0 {
		for _, item := range o.List {
			writeOperand(h, item)
		}
		return
	}
	if !o.Resolved {
		fmt.Fprintf(h, "slot:%d", o.Slot)
		return
	}
	v := o.Value
	fmt.Fprintf(h, "v:%d:%d:%g:%s:%t:%x", v.Kind, v.Int, v.Real, v.Str, v.Bool, v.Bin)
}
