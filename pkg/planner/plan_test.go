package planner

import (
	"strings"
	"testing"

	"github.com/kasuganosora/rowwatch/pkg/index"
	"github.com/kasuganosora/rowwatch/pkg/predicate"
	"github.com/kasuganosora/rowwatch/pkg/qcontext"
	"github.com/kasuganosora/rowwatch/pkg/schema"
)

type fakeCatalog struct {
	stats map[string]TableStats
}

func (c fakeCatalog) Stats(table string) TableStats { return c.stats[table] }

func valuePred(col string, op predicate.Op, v schema.Value) predicate.Predicate {
	return predicate.ValuePredicate{Column: col, Op: op, Operand: predicate.Lit(v)}
}

// S4: given `where a = 5 and b > 10` with an index on a at ~1% selectivity
// and one on b at ~50%, the planner must prefer a's index and leave b's
// comparison as a residual filter.
func TestBuildPrefersMoreSelectiveIndex(t *testing.T) {
	aIdx := index.NewSorted(false)
	for i := int64(0); i < 10; i++ {
		aIdx.Add(schema.Integer(5), schema.RowID(i)) // a=5 matches 10 of 1000
	}
	bIdx := index.NewSorted(false)
	for i := int64(0); i < 500; i++ {
		bIdx.Add(schema.Integer(20+i), schema.RowID(i)) // b>10 matches ~500 of 1000
	}

	cat := fakeCatalog{stats: map[string]TableStats{
		"t": {RowCount: 1000, Indices: map[string]index.Index{"a": aIdx, "b": bIdx}},
	}}

	where := predicate.AndOf(
		valuePred("a", predicate.Eq, schema.Integer(5)),
		valuePred("b", predicate.Gt, schema.Integer(10)),
	)
	ctx := &qcontext.Context{Kind: qcontext.Select, From: []string{"t"}, Where: where}

	plan := Build(ctx, cat)
	out := Explain(plan)

	if !strings.Contains(out, "IndexRangeScan(t.a") {
		t.Fatalf("expected an IndexRangeScan on a, got:\n%s", out)
	}
	if strings.Contains(out, "IndexRangeScan(t.b") {
		t.Fatalf("did not expect an index scan on b, got:\n%s", out)
	}
	if !strings.Contains(out, "Select(b > 10)") {
		t.Fatalf("expected the b>10 comparison to remain a residual filter, got:\n%s", out)
	}
}

func TestBuildFullScanWhenIndexAboveThreshold(t *testing.T) {
	idx := index.NewSorted(false)
	for i := int64(0); i < 600; i++ {
		idx.Add(schema.Integer(i), schema.RowID(i))
	}
	cat := fakeCatalog{stats: map[string]TableStats{
		"t": {RowCount: 1000, Indices: map[string]index.Index{"a": idx}},
	}}
	where := valuePred("a", predicate.Lt, schema.Integer(600))
	ctx := &qcontext.Context{Kind: qcontext.Select, From: []string{"t"}, Where: where}

	out := Explain(Build(ctx, cat))
	if !strings.Contains(out, "TableAccess(t)") {
		t.Fatalf("expected a full scan when the index covers >20%% of the table, got:\n%s", out)
	}
}

func TestBuildInsertPlan(t *testing.T) {
	cat := fakeCatalog{stats: map[string]TableStats{"t": {RowCount: 0}}}
	ctx := &qcontext.Context{
		Kind: qcontext.Insert,
		From: []string{"t"},
		Rows: []schema.Row{{ID: 1, Payload: map[string]schema.Value{"a": schema.Integer(1)}}},
	}
	plan := Build(ctx, cat)
	ins, ok := plan.Root.(*Insert)
	if !ok {
		t.Fatalf("expected *Insert, got %T", plan.Root)
	}
	if ins.RowCount != 1 || ins.OrReplace {
		t.Fatalf("unexpected insert node: %+v", ins)
	}
}

// S3: `select count(id) from movie where year between 1992 and 2003` must
// plan an Aggregate node, not a plain Project, even without a GROUP BY.
func TestBuildAggregateProjectionWithoutGroupBy(t *testing.T) {
	cat := fakeCatalog{stats: map[string]TableStats{"movie": {RowCount: 0}}}
	ctx := &qcontext.Context{
		Kind:    qcontext.Select,
		From:    []string{"movie"},
		Columns: []string{"count(id)"},
		Where: predicate.ValuePredicate{
			Column: "year", Op: predicate.Between,
			Operand: predicate.Operand{Resolved: true, List: []predicate.Operand{predicate.Lit(schema.Integer(1992)), predicate.Lit(schema.Integer(2003))}},
		},
	}
	out := Explain(Build(ctx, cat))
	if !strings.Contains(out, "Aggregate(") {
		t.Fatalf("expected an Aggregate node for a count(...) projection, got:\n%s", out)
	}
}

func TestBuildLimitSkipOutermost(t *testing.T) {
	cat := fakeCatalog{stats: map[string]TableStats{"t": {RowCount: 10}}}
	limit, skip := 5, 2
	ctx := &qcontext.Context{Kind: qcontext.Select, From: []string{"t"}, Limit: &limit, Skip: &skip}
	out := Explain(Build(ctx, cat))
	if !strings.HasPrefix(out, "Limit(5)") {
		t.Fatalf("expected Limit at the root, got:\n%s", out)
	}
	if !strings.Contains(out, "Skip(2)") {
		t.Fatalf("expected Skip under Limit, got:\n%s", out)
	}
}
