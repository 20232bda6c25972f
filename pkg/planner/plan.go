// Package planner turns an immutable qcontext.Context into a tree of
// physical operators (§4.5): predicate normalisation, index substitution,
// join ordering and limit/skip placement, each a local tree rewrite applied
// in a fixed order. Skip and then Limit always wrap the finished plan; they
// are not pushed below Project or OrderBy.
package planner

import (
	"github.com/kasuganosora/rowwatch/pkg/keyrange"
	"github.com/kasuganosora/rowwatch/pkg/predicate"
	"github.com/kasuganosora/rowwatch/pkg/qcontext"
)

// Node is one physical operator.
type Node interface {
	isNode()
	// Children returns this node's operator inputs, for generic traversal.
	Children() []Node
}

type base struct{ children []Node }

func (base) isNode()            {}
func (b base) Children() []Node { return b.children }

// TableAccess reads every row of a table (a full scan).
type TableAccess struct {
	base
	Table string
}

// IndexRangeScan reads Table through the named index, restricted to Range.
// Range == nil means the whole index (equivalent to all()).
type IndexRangeScan struct {
	base
	Table     string
	IndexName string
	Column    string
	Range     *keyrange.Range
}

// Select filters its input by Predicate (the "residual" predicate left
// over after index substitution consumed what it could).
type Select struct {
	base
	Predicate predicate.Predicate
}

// Project narrows rows to Columns; empty Columns means "all".
type Project struct {
	base
	Columns []string
}

// Join combines its two children (Children()[0] is the outer/left side).
type Join struct {
	base
	Kind      qcontext.JoinKind
	Predicate predicate.Predicate
	RightTable string
}

// OrderBy sorts its input.
type OrderBy struct {
	base
	Terms []qcontext.OrderTerm
}

// GroupBy partitions its input by Columns (pairs with an Aggregate parent
// when the query has aggregate projections).
type GroupBy struct {
	base
	Columns []string
}

// Aggregate computes aggregate projections (count/sum/min/max/avg) over
// its input, one output row per group (or one row total with no GroupBy).
type Aggregate struct {
	base
	Columns []string // non-aggregate columns carried through
}

// Limit caps the number of rows from its input.
type Limit struct {
	base
	N int
}

// Skip discards the first N rows of its input.
type Skip struct {
	base
	N int
}

// Insert/Update/Delete are terminal write operators; the runner applies
// them via the journal rather than reading through them like the SELECT
// operators above.
type Insert struct {
	base
	Table     string
	RowCount  int
	OrReplace bool
}

type Update struct {
	base
	Table       string
	Assignments []qcontext.Assignment
}

type Delete struct {
	base
	Table string
}

func newTableAccess(table string) *TableAccess {
	return &TableAccess{Table: table}
}

func newIndexRangeScan(table, indexName, column string, r *keyrange.Range) *IndexRangeScan {
	return &IndexRangeScan{Table: table, IndexName: indexName, Column: column, Range: r}
}

func newSelect(pred predicate.Predicate, input Node) *Select {
	return &Select{base: base{children: []Node{input}}, Predicate: pred}
}

func newProject(columns []string, input Node) *Project {
	return &Project{base: base{children: []Node{input}}, Columns: columns}
}

func newJoin(kind qcontext.JoinKind, rightTable string, pred predicate.Predicate, left, right Node) *Join {
	return &Join{base: base{children: []Node{left, right}}, Kind: kind, Predicate: pred, RightTable: rightTable}
}

func newOrderBy(terms []qcontext.OrderTerm, input Node) *OrderBy {
	return &OrderBy{base: base{children: []Node{input}}, Terms: terms}
}

func newGroupBy(columns []string, input Node) *GroupBy {
	return &GroupBy{base: base{children: []Node{input}}, Columns: columns}
}

func newAggregate(columns []string, input Node) *Aggregate {
	return &Aggregate{base: base{children: []Node{input}}, Columns: columns}
}

func newLimit(n int, input Node) *Limit {
	return &Limit{base: base{children: []Node{input}}, N: n}
}

func newSkip(n int, input Node) *Skip {
	return &Skip{base: base{children: []Node{input}}, N: n}
}
