package query

import (
	"context"

	"github.com/kasuganosora/rowwatch/pkg/dberrors"
	"github.com/kasuganosora/rowwatch/pkg/qcontext"
	"github.com/kasuganosora/rowwatch/pkg/schema"
)

// InsertBuilder accumulates an INSERT or INSERT OR REPLACE; row-ids are
// always assigned by the table's sequence (or, for InsertOrReplace,
// matched against an existing primary-key value) — the builder never
// accepts one.
type InsertBuilder struct {
	db    *DB
	kind  qcontext.Kind
	table string
	rows  []schema.Row
}

func (b *InsertBuilder) Into(table string) *InsertBuilder {
	b.table = table
	return b
}

// Values appends one or more rows, each a column-name to value mapping.
func (b *InsertBuilder) Values(rows ...map[string]schema.Value) *InsertBuilder {
	for _, r := range rows {
		b.rows = append(b.rows, schema.Row{Payload: r})
	}
	return b
}

func (b *InsertBuilder) Freeze() (*qcontext.Context, error) {
	if b.table == "" {
		return nil, dberrors.Syntax("insert names no table")
	}
	if len(b.rows) == 0 {
		return nil, dberrors.Syntax("insert has no rows")
	}
	c := &qcontext.Context{Kind: b.kind, From: []string{b.table}, Rows: b.rows}
	if err := validate(c, b.db.engine.Definition()); err != nil {
		return nil, err
	}
	t, err := b.db.engine.Definition().Table(b.table)
	if err != nil {
		return nil, err
	}
	for _, row := range b.rows {
		for col := range row.Payload {
			if !t.HasColumn(col) {
				return nil, dberrors.NotFound("column " + col + " not found in table " + b.table)
			}
		}
	}
	return c, nil
}

func (b *InsertBuilder) Exec(ctx context.Context) error {
	q, err := b.Freeze()
	if err != nil {
		return err
	}
	_, err = b.db.engine.Execute(ctx, []*qcontext.Context{q})
	return err
}
