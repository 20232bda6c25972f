package query

import (
	"context"

	"github.com/kasuganosora/rowwatch/pkg/dberrors"
	"github.com/kasuganosora/rowwatch/pkg/predicate"
	"github.com/kasuganosora/rowwatch/pkg/qcontext"
	"github.com/kasuganosora/rowwatch/pkg/schema"
)

// DeleteBuilder accumulates a single-table DELETE.
type DeleteBuilder struct {
	db         *DB
	table      string
	where      predicate.Predicate
	bindValues []schema.Value
}

func (b *DeleteBuilder) From(table string) *DeleteBuilder {
	b.table = table
	return b
}

func (b *DeleteBuilder) Where(p predicate.Predicate) *DeleteBuilder {
	b.where = p
	return b
}

func (b *DeleteBuilder) Bind(values ...schema.Value) *DeleteBuilder {
	b.bindValues = values
	return b
}

func (b *DeleteBuilder) Freeze() (*qcontext.Context, error) {
	if b.table == "" {
		return nil, dberrors.Syntax("delete names no table")
	}
	c := &qcontext.Context{Kind: qcontext.Delete, From: []string{b.table}, Where: b.where}
	if len(b.bindValues) > 0 {
		c = c.Bind(b.bindValues)
	}
	if err := validate(c, b.db.engine.Definition()); err != nil {
		return nil, err
	}
	return c, nil
}

func (b *DeleteBuilder) Exec(ctx context.Context) error {
	q, err := b.Freeze()
	if err != nil {
		return err
	}
	_, err = b.db.engine.Execute(ctx, []*qcontext.Context{q})
	return err
}
