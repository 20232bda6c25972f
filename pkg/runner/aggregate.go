package runner

import (
	"strings"

	"github.com/kasuganosora/rowwatch/pkg/journal"
	"github.com/kasuganosora/rowwatch/pkg/planner"
	"github.com/kasuganosora/rowwatch/pkg/schema"
)

// aggCall is a parsed "count(id)"-style projected column: the query
// context has no dedicated aggregate-expression type (§3 lists `columns`
// as a plain string list), so the executor recognises the conventional
// `func(column)` call syntax named in scenario S3 directly.
type aggCall struct {
	fn     string
	column string
}

func parseAggCall(spec string) (aggCall, bool) {
	open := strings.IndexByte(spec, '(')
	if open < 0 || !strings.HasSuffix(spec, ")") {
		return aggCall{}, false
	}
	fn := spec[:open]
	switch fn {
	case "count", "sum", "min", "max", "avg":
		return aggCall{fn: fn, column: spec[open+1 : len(spec)-1]}, true
	default:
		return aggCall{}, false
	}
}

func (e *Executor) evalAggregate(v *planner.Aggregate, j *journal.Journal) ([]schema.Row, error) {
	child := v.Children()[0]
	var groupCols []string
	if gb, ok := child.(*planner.GroupBy); ok {
		child = gb.Children()[0]
		groupCols = gb.Columns
	}
	input, err := e.evalNode(child, j)
	if err != nil {
		return nil, err
	}

	groups := partitionByKey(input, groupCols)
	if len(groupCols) == 0 && len(groups) == 0 {
		groups = [][]schema.Row{nil} // a bare aggregate over zero rows still yields one row
	}

	out := make([]schema.Row, 0, len(groups))
	for _, rows := range groups {
		payload := make(map[string]schema.Value, len(v.Columns))
		for _, col := range groupCols {
			if len(rows) > 0 {
				payload[col] = rows[0].Payload[col]
			}
		}
		for _, spec := range v.Columns {
			call, ok := parseAggCall(spec)
			if !ok {
				if len(rows) > 0 {
					payload[spec] = rows[0].Payload[spec]
				}
				continue
			}
			payload[spec] = aggregateValue(call, rows)
		}
		out = append(out, schema.Row{Payload: payload})
	}
	return out, nil
}

func aggregateValue(call aggCall, rows []schema.Row) schema.Value {
	switch call.fn {
	case "count":
		n := 0
		for _, r := range rows {
			if call.column == "*" {
				n++
				continue
			}
			if v, ok := r.Payload[call.column]; ok && !v.IsNull() {
				n++
			}
		}
		return schema.Integer(int64(n))
	case "sum", "avg":
		var sum float64
		count := 0
		for _, r := range rows {
			v, ok := r.Payload[call.column]
			if !ok || v.IsNull() {
				continue
			}
			sum += numeric(v)
			count++
		}
		if call.fn == "avg" {
			if count == 0 {
				return schema.Null()
			}
			return schema.Real(sum / float64(count))
		}
		return schema.Real(sum)
	case "min", "max":
		var best *schema.Value
		for i := range rows {
			v, ok := rows[i].Payload[call.column]
			if !ok || v.IsNull() {
				continue
			}
			if best == nil {
				val := v
				best = &val
				continue
			}
			cmp := schema.Compare(v, *best)
			if (call.fn == "min" && cmp < 0) || (call.fn == "max" && cmp > 0) {
				val := v
				best = &val
			}
		}
		if best == nil {
			return schema.Null()
		}
		return *best
	default:
		return schema.Null()
	}
}

func numeric(v schema.Value) float64 {
	switch v.Kind {
	case schema.KindInteger, schema.KindDateTime:
		return float64(v.Int)
	case schema.KindReal:
		return v.Real
	default:
		return 0
	}
}
