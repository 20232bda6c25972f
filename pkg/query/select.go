package query

import (
	"context"

	"github.com/kasuganosora/rowwatch/pkg/predicate"
	"github.com/kasuganosora/rowwatch/pkg/qcontext"
	"github.com/kasuganosora/rowwatch/pkg/schema"
)

// SelectBuilder accumulates a SELECT's clauses; call Exec or Explain to
// run it, or Freeze to obtain the raw context for a transaction batch.
type SelectBuilder struct {
	db         *DB
	ctx        qcontext.Context
	bindValues []schema.Value
}

func (b *SelectBuilder) From(tables ...string) *SelectBuilder {
	b.ctx.From = tables
	return b
}

func (b *SelectBuilder) Where(p predicate.Predicate) *SelectBuilder {
	b.ctx.Where = p
	return b
}

func (b *SelectBuilder) InnerJoin(table string, on predicate.Predicate) *SelectBuilder {
	b.ctx.Joins = append(b.ctx.Joins, qcontext.Join{Kind: qcontext.InnerJoin, Table: table, Predicate: on})
	return b
}

func (b *SelectBuilder) LeftOuterJoin(table string, on predicate.Predicate) *SelectBuilder {
	b.ctx.Joins = append(b.ctx.Joins, qcontext.Join{Kind: qcontext.LeftOuterJoin, Table: table, Predicate: on})
	return b
}

func (b *SelectBuilder) OrderBy(column string, dir qcontext.Direction) *SelectBuilder {
	b.ctx.OrderBy = append(b.ctx.OrderBy, qcontext.OrderTerm{Column: column, Direction: dir})
	return b
}

func (b *SelectBuilder) GroupBy(columns ...string) *SelectBuilder {
	b.ctx.GroupBy = append(b.ctx.GroupBy, columns...)
	return b
}

func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.ctx.Limit = &n
	return b
}

func (b *SelectBuilder) Skip(n int) *SelectBuilder {
	b.ctx.Skip = &n
	return b
}

// Bind supplies the values for every Slot(i) operand used in Where/Joins.
// Re-calling Bind on the same builder replaces the prior values.
func (b *SelectBuilder) Bind(values ...schema.Value) *SelectBuilder {
	b.bindValues = values
	return b
}

// Freeze validates and, if Bind was called, resolves the accumulated
// state into an immutable context.
func (b *SelectBuilder) Freeze() (*qcontext.Context, error) {
	c := b.ctx
	var frozen *qcontext.Context = &c
	if len(b.bindValues) > 0 {
		frozen = frozen.Bind(b.bindValues)
	}
	if err := validate(frozen, b.db.engine.Definition()); err != nil {
		return nil, err
	}
	return frozen, nil
}

// Exec runs the query and returns its result rows.
func (b *SelectBuilder) Exec(ctx context.Context) ([]schema.Row, error) {
	q, err := b.Freeze()
	if err != nil {
		return nil, err
	}
	results, err := b.db.engine.Execute(ctx, []*qcontext.Context{q})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// Explain compiles the query's physical plan and renders it, without
// running it.
func (b *SelectBuilder) Explain() (string, error) {
	q, err := b.Freeze()
	if err != nil {
		return "", err
	}
	return b.db.engine.Explain(q)
}
