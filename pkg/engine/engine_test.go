package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/kasuganosora/rowwatch/pkg/backstore"
	"github.com/kasuganosora/rowwatch/pkg/backstore/memstore"
	"github.com/kasuganosora/rowwatch/pkg/predicate"
	"github.com/kasuganosora/rowwatch/pkg/qcontext"
	"github.com/kasuganosora/rowwatch/pkg/schema"
)

func movieColumn(name string, kind schema.Kind) schema.Column {
	return schema.Column{Name: name, Kind: kind}
}

func movieSchema(version uint64) *schema.Definition {
	return &schema.Definition{
		Name:    "catalog",
		Version: version,
		Tables: []schema.Table{
			{
				Name:          "movie",
				Columns:       []schema.Column{movieColumn("id", schema.KindInteger), movieColumn("title", schema.KindText), movieColumn("year", schema.KindInteger)},
				PrimaryKey:    []string{"id"},
				UniqueColumns: []string{"title"},
				Indices:       []schema.IndexDef{{Name: "idx_movie_year", Columns: []string{"year"}}},
			},
		},
	}
}

func TestOpenInsertSelectRoundTrip(t *testing.T) {
	store := memstore.New()
	db, err := Open(context.Background(), movieSchema(1), store, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error opening: %v", err)
	}

	insertCtx := &qcontext.Context{
		Kind: qcontext.Insert,
		From: []string{"movie"},
		Rows: []schema.Row{{Payload: map[string]schema.Value{"title": schema.Text("Sneakers"), "year": schema.Integer(1992)}}},
	}
	if _, err := db.Execute(context.Background(), []*qcontext.Context{insertCtx}); err != nil {
		t.Fatalf("unexpected error inserting: %v", err)
	}

	selectCtx := &qcontext.Context{Kind: qcontext.Select, From: []string{"movie"}}
	results, err := db.Execute(context.Background(), []*qcontext.Context{selectCtx})
	if err != nil {
		t.Fatalf("unexpected error selecting: %v", err)
	}
	if len(results[0]) != 1 {
		t.Fatalf("expected 1 row, got %d", len(results[0]))
	}
	if results[0][0].Payload["title"].Str != "Sneakers" {
		t.Fatalf("unexpected row: %+v", results[0][0])
	}
}

// S6: open version 1 with table T1, insert a row, close; reopen at
// version 2 declaring additional table T2 with an upgrade callback; the
// callback runs exactly once, T1's row survives and T2 starts empty.
func TestOpenInvokesUpgradeExactlyOnceAndPreservesExistingRows(t *testing.T) {
	store := memstore.New()

	v1 := &schema.Definition{
		Name:    "catalog",
		Version: 1,
		Tables:  []schema.Table{{Name: "t1", Columns: []schema.Column{movieColumn("id", schema.KindInteger), movieColumn("name", schema.KindText)}, PrimaryKey: []string{"id"}}},
	}
	db1, err := Open(context.Background(), v1, store, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error on first open: %v", err)
	}
	insertCtx := &qcontext.Context{
		Kind: qcontext.Insert,
		From: []string{"t1"},
		Rows: []schema.Row{{Payload: map[string]schema.Value{"name": schema.Text("alpha")}}},
	}
	if _, err := db1.Execute(context.Background(), []*qcontext.Context{insertCtx}); err != nil {
		t.Fatalf("unexpected error inserting into t1: %v", err)
	}
	if err := db1.Close(); err != nil {
		t.Fatalf("unexpected error closing: %v", err)
	}

	v2 := &schema.Definition{
		Name:    "catalog",
		Version: 2,
		Tables: []schema.Table{
			{Name: "t1", Columns: []schema.Column{movieColumn("id", schema.KindInteger), movieColumn("name", schema.KindText)}, PrimaryKey: []string{"id"}},
			{Name: "t2", Columns: []schema.Column{movieColumn("id", schema.KindInteger), movieColumn("label", schema.KindText)}, PrimaryKey: []string{"id"}},
		},
	}
	upgradeCalls := 0
	upgrade := func(ctx context.Context, tx backstore.Tx, from, to uint64) error {
		upgradeCalls++
		if from != 1 || to != 2 {
			t.Fatalf("expected upgrade(1, 2), got upgrade(%d, %d)", from, to)
		}
		return nil
	}
	db2, err := Open(context.Background(), v2, store, nil, upgrade)
	if err != nil {
		t.Fatalf("unexpected error on second open: %v", err)
	}
	if upgradeCalls != 1 {
		t.Fatalf("expected upgrade to run exactly once, ran %d times", upgradeCalls)
	}

	t1Rows, err := db2.Execute(context.Background(), []*qcontext.Context{{Kind: qcontext.Select, From: []string{"t1"}}})
	if err != nil {
		t.Fatalf("unexpected error selecting t1: %v", err)
	}
	if len(t1Rows[0]) != 1 || t1Rows[0][0].Payload["name"].Str != "alpha" {
		t.Fatalf("expected t1's row to survive the upgrade, got %+v", t1Rows[0])
	}

	t2Rows, err := db2.Execute(context.Background(), []*qcontext.Context{{Kind: qcontext.Select, From: []string{"t2"}}})
	if err != nil {
		t.Fatalf("unexpected error selecting t2: %v", err)
	}
	if len(t2Rows[0]) != 0 {
		t.Fatalf("expected t2 to start empty, got %d rows", len(t2Rows[0]))
	}
}

func TestOpenSkipsUpgradeWhenVersionsMatch(t *testing.T) {
	store := memstore.New()
	if _, err := Open(context.Background(), movieSchema(1), store, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	called := false
	upgrade := func(ctx context.Context, tx backstore.Tx, from, to uint64) error {
		called = true
		return nil
	}
	if _, err := Open(context.Background(), movieSchema(1), store, nil, upgrade); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatal("expected upgrade not to run when the stored version already matches")
	}
}

func TestRecoveredSequenceContinuesPastExistingRows(t *testing.T) {
	store := memstore.New()
	db1, err := Open(context.Background(), movieSchema(1), store, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	insertCtx := &qcontext.Context{
		Kind: qcontext.Insert,
		From: []string{"movie"},
		Rows: []schema.Row{
			{Payload: map[string]schema.Value{"title": schema.Text("A"), "year": schema.Integer(2000)}},
			{Payload: map[string]schema.Value{"title": schema.Text("B"), "year": schema.Integer(2001)}},
		},
	}
	if _, err := db1.Execute(context.Background(), []*qcontext.Context{insertCtx}); err != nil {
		t.Fatalf("unexpected error inserting: %v", err)
	}
	db1.Close()

	db2, err := Open(context.Background(), movieSchema(1), store, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error reopening: %v", err)
	}
	thirdInsert := &qcontext.Context{
		Kind: qcontext.Insert,
		From: []string{"movie"},
		Rows: []schema.Row{{Payload: map[string]schema.Value{"title": schema.Text("C"), "year": schema.Integer(2002)}}},
	}
	if _, err := db2.Execute(context.Background(), []*qcontext.Context{thirdInsert}); err != nil {
		t.Fatalf("unexpected error inserting after reopen: %v", err)
	}

	rows, err := db2.Execute(context.Background(), []*qcontext.Context{{Kind: qcontext.Select, From: []string{"movie"}}})
	if err != nil {
		t.Fatalf("unexpected error selecting: %v", err)
	}
	seen := make(map[schema.RowID]bool)
	for _, r := range rows[0] {
		if seen[r.ID] {
			t.Fatalf("duplicate row-id %d after sequence recovery", r.ID)
		}
		seen[r.ID] = true
	}
	if len(rows[0]) != 3 {
		t.Fatalf("expected 3 rows across both sessions, got %d", len(rows[0]))
	}
}

func TestExplainReflectsIndexChoice(t *testing.T) {
	store := memstore.New()
	db, err := Open(context.Background(), movieSchema(1), store, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := &qcontext.Context{
		Kind: qcontext.Select,
		From: []string{"movie"},
		Where: predicate.ValuePredicate{
			Column: "year", Op: predicate.Eq, Operand: predicate.Lit(schema.Integer(1992)),
		},
	}
	out, err := db.Explain(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out == "" {
		t.Fatal("expected a non-empty explain output")
	}
	if !strings.Contains(out, "IndexRangeScan(movie.year") {
		t.Fatalf("expected an index scan on movie.year, got:\n%s", out)
	}
}
