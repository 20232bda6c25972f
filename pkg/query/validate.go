package query

import (
	"strings"

	"github.com/kasuganosora/rowwatch/pkg/dberrors"
	"github.com/kasuganosora/rowwatch/pkg/predicate"
	"github.com/kasuganosora/rowwatch/pkg/qcontext"
	"github.com/kasuganosora/rowwatch/pkg/schema"
)

// validate checks ctx's table and column references against def. It is
// the builder surface's own error surface, distinct from the
// constraint/type checks the journal performs at commit: a syntax error
// here (unknown table, unknown column) never reaches the runner.
func validate(ctx *qcontext.Context, def *schema.Definition) error {
	if len(ctx.From) == 0 {
		return dberrors.Syntax("query names no table")
	}
	tables := make([]*schema.Table, 0, len(ctx.Tables()))
	for _, name := range ctx.Tables() {
		t, err := def.Table(name)
		if err != nil {
			return err
		}
		tables = append(tables, t)
	}

	for _, col := range ctx.Columns {
		if isAggregateCall(col) {
			continue
		}
		if !columnExistsOn(tables, col) {
			return dberrors.NotFound("column " + col + " not found in " + strings.Join(ctx.From, ","))
		}
	}
	for _, col := range ctx.GroupBy {
		if !columnExistsOn(tables, col) {
			return dberrors.NotFound("group by column " + col + " not found")
		}
	}
	for _, o := range ctx.OrderBy {
		if !columnExistsOn(tables, o.Column) {
			return dberrors.NotFound("order by column " + o.Column + " not found")
		}
	}
	for _, a := range ctx.Assignments {
		if !columnExistsOn(tables, a.Column) {
			return dberrors.NotFound("assignment column " + a.Column + " not found")
		}
	}
	if ctx.Where != nil {
		if err := validatePredicateColumns(ctx.Where, tables); err != nil {
			return err
		}
	}
	for _, j := range ctx.Joins {
		if j.Predicate != nil {
			if err := validatePredicateColumns(j.Predicate, tables); err != nil {
				return err
			}
		}
	}
	return nil
}

// isAggregateCall reports whether col is a `fn(column)` aggregate
// reference rather than a plain column name, matching the syntax
// runner/aggregate.go's parseAggCall consumes.
func isAggregateCall(col string) bool {
	open := strings.IndexByte(col, '(')
	return open > 0 && strings.HasSuffix(col, ")")
}

func columnExistsOn(tables []*schema.Table, col string) bool {
	for _, t := range tables {
		if t.HasColumn(col) {
			return true
		}
	}
	return false
}

func validatePredicateColumns(p predicate.Predicate, tables []*schema.Table) error {
	var walkErr error
	p.Walk(func(node predicate.Predicate) {
		if walkErr != nil {
			return
		}
		switch n := node.(type) {
		case predicate.ValuePredicate:
			if !columnExistsOn(tables, n.Column) {
				walkErr = dberrors.NotFound("predicate column " + n.Column + " not found")
			}
		case predicate.JoinPredicate:
			if !columnExistsOn(tables, n.LeftColumn) {
				walkErr = dberrors.NotFound("predicate column " + n.LeftColumn + " not found")
			} else if !columnExistsOn(tables, n.RightColumn) {
				walkErr = dberrors.NotFound("predicate column " + n.RightColumn + " not found")
			}
		}
	})
	return walkErr
}
