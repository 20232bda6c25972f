package planner

import (
	"strings"

	"github.com/kasuganosora/rowwatch/pkg/index"
	"github.com/kasuganosora/rowwatch/pkg/keyrange"
	"github.com/kasuganosora/rowwatch/pkg/predicate"
	"github.com/kasuganosora/rowwatch/pkg/qcontext"
)

// TableStats is what the planner needs to know about a table to cost a
// plan: its row count and the indices available on it.
type TableStats struct {
	RowCount int
	Indices  map[string]index.Index // column name -> index
}

// Catalog resolves table statistics for Build.
type Catalog interface {
	Stats(table string) TableStats
}

// indexSubstitutionThreshold is the Open Question resolved in SPEC_FULL.md:
// an index is preferred over a full scan once it narrows the candidate set
// below 20% of the table.
const indexSubstitutionThreshold = 0.2

// Plan is the root of a physical plan together with the context it was
// built from, for explain() and for the runner to recover statement kind.
type Plan struct {
	Root Node
	Ctx  *qcontext.Context
}

// Build compiles ctx into a physical plan against cat, applying the
// rewrites of §4.5 in order.
func Build(ctx *qcontext.Context, cat Catalog) *Plan {
	switch ctx.Kind {
	case qcontext.Select:
		return &Plan{Root: buildSelect(ctx, cat), Ctx: ctx}
	case qcontext.Insert, qcontext.InsertOrReplace:
		return &Plan{Root: &Insert{Table: ctx.From[0], RowCount: len(ctx.Rows), OrReplace: ctx.Kind == qcontext.InsertOrReplace}, Ctx: ctx}
	case qcontext.Update:
		return &Plan{Root: buildWrite(ctx, cat, func(input Node) Node {
			return &Update{base: base{children: []Node{input}}, Table: ctx.From[0], Assignments: ctx.Assignments}
		}), Ctx: ctx}
	case qcontext.Delete:
		return &Plan{Root: buildWrite(ctx, cat, func(input Node) Node {
			return &Delete{base: base{children: []Node{input}}, Table: ctx.From[0]}
		}), Ctx: ctx}
	default:
		return &Plan{Root: newTableAccess(ctx.From[0]), Ctx: ctx}
	}
}

// buildWrite plans the read-side of an UPDATE/DELETE (a scan of From[0]
// filtered by Where) and wraps it with wrap.
func buildWrite(ctx *qcontext.Context, cat Catalog, wrap func(Node) Node) Node {
	table := ctx.From[0]
	where := ctx.Where
	if where != nil {
		where = predicate.PushNotToLeaves(where)
	}
	scan := substituteIndex(table, where, cat)
	return wrap(scan)
}

// buildSelect runs the full rewrite pipeline for a SELECT.
func buildSelect(ctx *qcontext.Context, cat Catalog) Node {
	where := ctx.Where
	if where != nil {
		where = predicate.PushNotToLeaves(where)
	}

	// Rewrite #4: join order. For <=3 tables this engine joins in
	// FROM/JOIN declaration order, trusting that index substitution has
	// already picked each side's cheapest access path; beyond 3 tables it
	// greedily leads with the smallest estimated table.
	tables := ctx.Tables()
	var root Node
	if len(tables) <= 3 || len(ctx.Joins) == 0 {
		// With joins the WHERE may name right-hand columns, so the first
		// table is scanned unfiltered and the full WHERE applies below.
		scanWhere := where
		if len(ctx.Joins) > 0 {
			scanWhere = nil
		}
		root = scanTable(ctx.From[0], scanWhere, cat)
		for _, j := range ctx.Joins {
			right := scanTable(j.Table, nil, cat)
			root = newJoin(j.Kind, j.Table, j.Predicate, root, right)
		}
	} else {
		root = greedyJoinOrder(ctx, cat)
	}

	if where != nil {
		root = applyResidual(root, where)
	}

	if len(ctx.GroupBy) > 0 {
		root = newGroupBy(ctx.GroupBy, root)
		root = newAggregate(ctx.Columns, root)
	} else if hasAggregateProjection(ctx.Columns) {
		root = newAggregate(ctx.Columns, root)
	}

	if len(ctx.OrderBy) > 0 {
		scan, ok := root.(*IndexRangeScan)
		if !ok || len(ctx.OrderBy) != 1 || ctx.OrderBy[0].Column != scan.Column {
			root = newOrderBy(ctx.OrderBy, root)
		}
	}

	if len(ctx.Columns) > 0 {
		root = newProject(ctx.Columns, root)
	}

	root = applyLimitSkip(root, ctx)
	return root
}

func hasAggregateProjection(columns []string) bool {
	for _, c := range columns {
		open := strings.IndexByte(c, '(')
		if open < 0 || !strings.HasSuffix(c, ")") {
			continue
		}
		switch c[:open] {
		case "count", "sum", "min", "max", "avg":
			return true
		}
	}
	return false
}

// scanTable produces the best access path for one table given a predicate
// that may or may not mention it: TableAccess, TableAccess+Select for
// conjuncts that don't translate to a range, or IndexRangeScan for ones
// that do.
func scanTable(table string, where predicate.Predicate, cat Catalog) Node {
	if where == nil {
		return newTableAccess(table)
	}
	return substituteIndex(table, where, cat)
}

type matchedConjunct struct {
	conj   predicate.Predicate
	ranges []keyrange.Range
	index  int // position within the conjuncts slice substituteIndex split where from
}

// substituteIndex implements rewrite #3. It splits the predicate into
// conjuncts (callers pass a predicate over this table alone: buildSelect
// passes the WHERE only when the query has no joins, and writes read a
// single table) and, when a leaf conjunct translates to a range over an indexed
// column whose estimated cost beats indexSubstitutionThreshold, replaces
// TableAccess+Select with IndexRangeScan carrying the remaining conjuncts
// as a residual Select.
func substituteIndex(table string, where predicate.Predicate, cat Catalog) Node {
	conjuncts := splitConjuncts(where)
	stats := cat.Stats(table)

	var bestColumn string
	var bestMatch matchedConjunct
	bestCost := -1

	for colName, idx := range stats.Indices {
		for i, conj := range conjuncts {
			ranges, ok := predicate.ToRanges(conj, colName)
			if !ok || len(ranges) != 1 {
				continue
			}
			cost := idx.Cost(&ranges[0])
			threshold := int(float64(stats.RowCount) * indexSubstitutionThreshold)
			if stats.RowCount > 0 && cost >= threshold {
				continue
			}
			if bestCost == -1 || cost < bestCost {
				bestCost = cost
				bestColumn = colName
				bestMatch = matchedConjunct{conj: conj, ranges: ranges, index: i}
			}
		}
	}

	if bestCost == -1 {
		return applyResidual(newTableAccess(table), where)
	}

	residual := withoutConjunct(conjuncts, bestMatch.index)
	scan := newIndexRangeScan(table, "idx_"+table+"_"+bestColumn, bestColumn, &bestMatch.ranges[0])
	return applyResidual(scan, andAll(residual))
}

// applyResidual wraps input in a Select for pred, unless pred is nil.
func applyResidual(input Node, pred predicate.Predicate) Node {
	if pred == nil {
		return input
	}
	return newSelect(pred, input)
}

func splitConjuncts(p predicate.Predicate) []predicate.Predicate {
	if p == nil {
		return nil
	}
	if cp, ok := p.(predicate.CombinedPredicate); ok && cp.Combinator == predicate.And {
		var out []predicate.Predicate
		for _, c := range cp.Children {
			out = append(out, splitConjuncts(c)...)
		}
		return out
	}
	return []predicate.Predicate{p}
}

func andAll(conjuncts []predicate.Predicate) predicate.Predicate {
	if len(conjuncts) == 0 {
		return nil
	}
	if len(conjuncts) == 1 {
		return conjuncts[0]
	}
	return predicate.AndOf(conjuncts...)
}

// withoutConjunct returns all with the conjunct at excludeIndex removed.
// Predicate values are never used as map/comparison keys here:
// ValuePredicate embeds Operand, which can carry a List, and schema.Value
// can carry a Bin []byte — any of those makes the concrete type
// non-comparable, so equality or hashing on a predicate.Predicate panics
// at runtime. Position within the slice substituteIndex already built is
// what identifies the matched conjunct instead.
func withoutConjunct(all []predicate.Predicate, excludeIndex int) []predicate.Predicate {
	var out []predicate.Predicate
	for i, c := range all {
		if i != excludeIndex {
			out = append(out, c)
		}
	}
	return out
}

// greedyJoinOrder implements rewrite #4's >3-table case: lead with the
// table with the smallest row count, then join the rest in ascending size.
func greedyJoinOrder(ctx *qcontext.Context, cat Catalog) Node {
	remaining := append([]string(nil), ctx.Tables()...)
	joinByTable := make(map[string]predicate.Predicate, len(ctx.Joins))
	joinKindByTable := make(map[string]qcontext.JoinKind, len(ctx.Joins))
	for _, j := range ctx.Joins {
		joinByTable[j.Table] = j.Predicate
		joinKindByTable[j.Table] = j.Kind
	}

	sortBySize(remaining, cat)
	root := scanTable(remaining[0], nil, cat)
	for _, t := range remaining[1:] {
		right := scanTable(t, nil, cat)
		root = newJoin(joinKindByTable[t], t, joinByTable[t], root, right)
	}
	return root
}

func sortBySize(tables []string, cat Catalog) {
	sizes := make(map[string]int, len(tables))
	for _, t := range tables {
		sizes[t] = cat.Stats(t).RowCount
	}
	for i := 1; i < len(tables); i++ {
		for j := i; j > 0 && sizes[tables[j-1]] > sizes[tables[j]]; j-- {
			tables[j-1], tables[j] = tables[j], tables[j-1]
		}
	}
}

func applyLimitSkip(root Node, ctx *qcontext.Context) Node {
	if ctx.Skip != nil {
		root = newSkip(*ctx.Skip, root)
	}
	if ctx.Limit != nil {
		root = newLimit(*ctx.Limit, root)
	}
	return root
}
