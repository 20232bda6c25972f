package query

import (
	"context"

	"github.com/kasuganosora/rowwatch/pkg/dberrors"
	"github.com/kasuganosora/rowwatch/pkg/predicate"
	"github.com/kasuganosora/rowwatch/pkg/qcontext"
	"github.com/kasuganosora/rowwatch/pkg/schema"
)

// UpdateBuilder accumulates a single-table UPDATE. Set only assigns a
// literal or bound value to a column — there is no expression language
// (§ Non-goals: SQL text parsing), so `x = x + 1` style updates are done by
// reading the current value and supplying the computed result.
type UpdateBuilder struct {
	db          *DB
	table       string
	assignments []qcontext.Assignment
	where       predicate.Predicate
	bindValues  []schema.Value
}

func (b *UpdateBuilder) Set(column string, value schema.Value) *UpdateBuilder {
	b.assignments = append(b.assignments, qcontext.Assignment{Column: column, Operand: predicate.Lit(value)})
	return b
}

// SetBind assigns column the value bound to slot, resolved by Bind.
func (b *UpdateBuilder) SetBind(column string, slot int) *UpdateBuilder {
	b.assignments = append(b.assignments, qcontext.Assignment{Column: column, Operand: predicate.Bind(slot)})
	return b
}

func (b *UpdateBuilder) Where(p predicate.Predicate) *UpdateBuilder {
	b.where = p
	return b
}

func (b *UpdateBuilder) Bind(values ...schema.Value) *UpdateBuilder {
	b.bindValues = values
	return b
}

func (b *UpdateBuilder) Freeze() (*qcontext.Context, error) {
	if b.table == "" {
		return nil, dberrors.Syntax("update names no table")
	}
	if len(b.assignments) == 0 {
		return nil, dberrors.Syntax("update has no assignments")
	}
	c := &qcontext.Context{Kind: qcontext.Update, From: []string{b.table}, Where: b.where, Assignments: b.assignments}
	if len(b.bindValues) > 0 {
		c = c.Bind(b.bindValues)
	}
	if err := validate(c, b.db.engine.Definition()); err != nil {
		return nil, err
	}
	return c, nil
}

func (b *UpdateBuilder) Exec(ctx context.Context) error {
	q, err := b.Freeze()
	if err != nil {
		return err
	}
	_, err = b.db.engine.Execute(ctx, []*qcontext.Context{q})
	return err
}
