package query

import (
	"context"
	"testing"

	"github.com/kasuganosora/rowwatch/pkg/dberrors"
	"github.com/kasuganosora/rowwatch/pkg/observer"
	"github.com/kasuganosora/rowwatch/pkg/predicate"
	"github.com/kasuganosora/rowwatch/pkg/qcontext"
	"github.com/kasuganosora/rowwatch/pkg/schema"
)

func movieDefinition() *schema.Definition {
	return &schema.Definition{
		Name:    "catalog",
		Version: 1,
		Tables: []schema.Table{
			{
				Name: "movie",
				Columns: []schema.Column{
					{Name: "id", Kind: schema.KindInteger},
					{Name: "title", Kind: schema.KindText},
					{Name: "year", Kind: schema.KindInteger},
				},
				PrimaryKey:    []string{"id"},
				UniqueColumns: []string{"title"},
			},
		},
	}
}

// fakeEngine records the last query it was asked to run and serves a
// canned result, so builder tests can assert on the frozen context
// without a real executor behind them.
type fakeEngine struct {
	def      *schema.Definition
	lastCtx  []*qcontext.Context
	results  [][]schema.Row
	execErr  error
	explainOut string
}

func (e *fakeEngine) Definition() *schema.Definition { return e.def }

func (e *fakeEngine) Execute(ctx context.Context, queries []*qcontext.Context) ([][]schema.Row, error) {
	e.lastCtx = queries
	if e.execErr != nil {
		return nil, e.execErr
	}
	if e.results != nil {
		return e.results, nil
	}
	return make([][]schema.Row, len(queries)), nil
}

func (e *fakeEngine) Explain(q *qcontext.Context) (string, error) {
	e.lastCtx = []*qcontext.Context{q}
	return e.explainOut, nil
}

func (e *fakeEngine) Observe(ctx context.Context, q *qcontext.Context, sub observer.Subscriber) (observer.Subscription, error) {
	e.lastCtx = []*qcontext.Context{q}
	return observer.Subscription{}, nil
}

func (e *fakeEngine) Unobserve(sub observer.Subscription) {}

func TestSelectBuilderFreezesResolvedContext(t *testing.T) {
	eng := &fakeEngine{def: movieDefinition()}
	db := New(eng)

	_, err := db.Select("count(id)").
		From("movie").
		Where(predicate.ValuePredicate{Column: "year", Op: predicate.Between, Operand: predicate.ListOf(predicate.Bind(0), predicate.Bind(1))}).
		Bind(schema.Integer(1992), schema.Integer(2003)).
		Exec(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(eng.lastCtx) != 1 {
		t.Fatalf("expected one context sent to Execute, got %d", len(eng.lastCtx))
	}
	q := eng.lastCtx[0]
	if !q.Where.Resolved() {
		t.Fatalf("expected Bind to resolve the where clause, got %+v", q.Where)
	}
}

func TestSelectBuilderRejectsUnknownTable(t *testing.T) {
	eng := &fakeEngine{def: movieDefinition()}
	db := New(eng)

	_, err := db.Select().From("actor").Exec(context.Background())
	if err == nil {
		t.Fatal("expected an error for an unknown table")
	}
	if kind, _ := dberrors.KindOf(err); kind != dberrors.KindNotFound {
		t.Fatalf("expected KindNotFound, got %v", kind)
	}
}

func TestSelectBuilderRejectsUnknownColumn(t *testing.T) {
	eng := &fakeEngine{def: movieDefinition()}
	db := New(eng)

	_, err := db.Select("director").From("movie").Exec(context.Background())
	if err == nil {
		t.Fatal("expected an error for an unknown column")
	}
}

func TestSelectBuilderToleratesAggregateCallColumns(t *testing.T) {
	eng := &fakeEngine{def: movieDefinition()}
	db := New(eng)

	_, err := db.Select("count(id)").From("movie").Exec(context.Background())
	if err != nil {
		t.Fatalf("unexpected error for a count(...) projection: %v", err)
	}
}

func TestInsertBuilderRejectsUnknownColumn(t *testing.T) {
	eng := &fakeEngine{def: movieDefinition()}
	db := New(eng)

	err := db.Insert().Into("movie").Values(map[string]schema.Value{
		"title":    schema.Text("Sneakers"),
		"director": schema.Text("Phil Alden Robinson"),
	}).Exec(context.Background())
	if err == nil {
		t.Fatal("expected an error for an unknown column in a row payload")
	}
}

func TestInsertBuilderRoundTrip(t *testing.T) {
	eng := &fakeEngine{def: movieDefinition()}
	db := New(eng)

	err := db.Insert().Into("movie").Values(map[string]schema.Value{
		"title": schema.Text("Sneakers"),
		"year":  schema.Integer(1992),
	}).Exec(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(eng.lastCtx) != 1 || eng.lastCtx[0].Kind != qcontext.Insert {
		t.Fatalf("expected one Insert context, got %+v", eng.lastCtx)
	}
}

func TestUpdateBuilderRequiresAssignment(t *testing.T) {
	eng := &fakeEngine{def: movieDefinition()}
	db := New(eng)

	err := db.Update("movie").Where(predicate.ValuePredicate{Column: "id", Op: predicate.Eq, Operand: predicate.Lit(schema.Integer(1))}).Exec(context.Background())
	if err == nil {
		t.Fatal("expected an error for an update with no Set calls")
	}
}

func TestDeleteBuilderRoundTrip(t *testing.T) {
	eng := &fakeEngine{def: movieDefinition()}
	db := New(eng)

	err := db.Delete().From("movie").Where(predicate.ValuePredicate{Column: "title", Op: predicate.Eq, Operand: predicate.Lit(schema.Text("Sneakers"))}).Exec(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(eng.lastCtx) != 1 || eng.lastCtx[0].Kind != qcontext.Delete {
		t.Fatalf("expected one Delete context, got %+v", eng.lastCtx)
	}
}

// S5: a transaction batching a valid update with an invalid insert must
// freeze-fail before either reaches Execute, so the update never applies.
func TestTransactionBuilderFreezeFailsAtomically(t *testing.T) {
	eng := &fakeEngine{def: movieDefinition()}
	db := New(eng)

	update := db.Update("movie").Set("year", schema.Integer(1993)).Where(predicate.ValuePredicate{Column: "id", Op: predicate.Eq, Operand: predicate.Lit(schema.Integer(1))})
	badInsert := db.Insert().Into("movie").Values(map[string]schema.Value{"nonexistent": schema.Text("x")})

	_, err := db.CreateTransaction().Exec(context.Background(), update, badInsert)
	if err == nil {
		t.Fatal("expected the bad insert to fail validation")
	}
	if eng.lastCtx != nil {
		t.Fatal("expected Execute never to be called once a statement fails to freeze")
	}
}

func TestObserveFreezesSelectBeforeSubscribing(t *testing.T) {
	eng := &fakeEngine{def: movieDefinition()}
	db := New(eng)

	sel := db.Select("count(id)").From("movie")
	if _, err := db.Observe(context.Background(), sel, func(observer.Diff) {}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(eng.lastCtx) != 1 {
		t.Fatalf("expected Observe to forward one frozen context")
	}
}
