package runner

import (
	"sort"
	"strconv"
	"strings"

	"github.com/kasuganosora/rowwatch/pkg/dberrors"
	"github.com/kasuganosora/rowwatch/pkg/journal"
	"github.com/kasuganosora/rowwatch/pkg/planner"
	"github.com/kasuganosora/rowwatch/pkg/qcontext"
	"github.com/kasuganosora/rowwatch/pkg/schema"
)

// evalNode interprets a read-side physical plan, producing the rows it
// denotes. Joined rows carry a merged payload (right columns win on a name
// collision); this engine does not qualify column names by table since a
// single query's predicates and projections already name columns uniquely.
func (e *Executor) evalNode(n planner.Node, j *journal.Journal) ([]schema.Row, error) {
	switch v := n.(type) {
	case *planner.TableAccess:
		return e.materializeTable(v.Table, j), nil

	case *planner.IndexRangeScan:
		return e.evalIndexScan(v, j), nil

	case *planner.Select:
		input, err := e.evalNode(v.Children()[0], j)
		if err != nil {
			return nil, err
		}
		var out []schema.Row
		for _, row := range input {
			if evalPredicate(v.Predicate, row.Payload) {
				out = append(out, row)
			}
		}
		return out, nil

	case *planner.Project:
		input, err := e.evalNode(v.Children()[0], j)
		if err != nil {
			return nil, err
		}
		return projectRows(input, v.Columns), nil

	case *planner.Join:
		return e.evalJoin(v, j)

	case *planner.OrderBy:
		input, err := e.evalNode(v.Children()[0], j)
		if err != nil {
			return nil, err
		}
		return orderRows(input, v.Terms), nil

	case *planner.GroupBy:
		// GroupBy with no Aggregate parent (a bare "distinct-by" read):
		// cluster rows so equal keys are adjacent, but otherwise pass
		// every row through.
		input, err := e.evalNode(v.Children()[0], j)
		if err != nil {
			return nil, err
		}
		groups := partitionByKey(input, v.Columns)
		out := make([]schema.Row, 0, len(input))
		for _, g := range groups {
			out = append(out, g...)
		}
		return out, nil

	case *planner.Aggregate:
		return e.evalAggregate(v, j)

	case *planner.Limit:
		input, err := e.evalNode(v.Children()[0], j)
		if err != nil {
			return nil, err
		}
		if v.N < len(input) {
			return input[:v.N], nil
		}
		return input, nil

	case *planner.Skip:
		input, err := e.evalNode(v.Children()[0], j)
		if err != nil {
			return nil, err
		}
		if v.N >= len(input) {
			return nil, nil
		}
		return input[v.N:], nil

	default:
		return nil, dberrors.NotSupported("planner node has no read-side evaluator")
	}
}

func (e *Executor) evalIndexScan(v *planner.IndexRangeScan, j *journal.Journal) []schema.Row {
	idx := e.Indices[v.Table][v.Column]
	var ids []schema.RowID
	if idx != nil {
		ids = idx.GetRange(v.Range)
	}

	seen := make(map[schema.RowID]bool, len(ids))
	var out []schema.Row
	for _, id := range ids {
		row, ok := e.materializeRow(v.Table, id, j)
		if !ok {
			continue
		}
		if v.Range != nil {
			if col, present := row.Payload[v.Column]; !present || !v.Range.Contains(col) {
				continue
			}
		}
		seen[id] = true
		out = append(out, row)
	}

	// Pick up this transaction's own not-yet-indexed writes that fall
	// within range, so reads observe their own prior writes (§5).
	for _, change := range j.Changes() {
		if change.Table != v.Table || seen[change.ID] || change.Kind == journal.Delete {
			continue
		}
		col, present := change.After.Payload[v.Column]
		if !present {
			continue
		}
		if v.Range == nil || v.Range.Contains(col) {
			out = append(out, *change.After)
		}
	}
	return out
}

func (e *Executor) evalJoin(v *planner.Join, j *journal.Journal) ([]schema.Row, error) {
	left, err := e.evalNode(v.Children()[0], j)
	if err != nil {
		return nil, err
	}
	right, err := e.evalNode(v.Children()[1], j)
	if err != nil {
		return nil, err
	}

	var rightColumns []string
	if t, err := e.Def.Table(v.RightTable); err == nil {
		for _, c := range t.Columns {
			rightColumns = append(rightColumns, c.Name)
		}
	}

	var out []schema.Row
	for _, l := range left {
		matched := false
		for _, r := range right {
			merged := mergePayload(l.Payload, r.Payload)
			if evalPredicate(v.Predicate, merged) {
				matched = true
				out = append(out, schema.Row{ID: l.ID, Payload: merged})
			}
		}
		if !matched && v.Kind == qcontext.LeftOuterJoin {
			merged := mergePayload(l.Payload, nil)
			for _, col := range rightColumns {
				merged[col] = schema.Null()
			}
			out = append(out, schema.Row{ID: l.ID, Payload: merged})
		}
	}
	return out, nil
}

func mergePayload(left, right map[string]schema.Value) map[string]schema.Value {
	out := make(map[string]schema.Value, len(left)+len(right))
	for k, v := range left {
		out[k] = v
	}
	for k, v := range right {
		out[k] = v
	}
	return out
}

func projectRows(input []schema.Row, columns []string) []schema.Row {
	if len(columns) == 0 {
		return input
	}
	out := make([]schema.Row, len(input))
	for i, row := range input {
		payload := make(map[string]schema.Value, len(columns))
		for _, col := range columns {
			if val, ok := row.Payload[col]; ok {
				payload[col] = val
			}
		}
		out[i] = schema.Row{ID: row.ID, Payload: payload}
	}
	return out
}

func orderRows(input []schema.Row, terms []qcontext.OrderTerm) []schema.Row {
	sorted := append([]schema.Row(nil), input...)
	sort.SliceStable(sorted, func(i, k int) bool {
		for _, term := range terms {
			a, b := sorted[i].Payload[term.Column], sorted[k].Payload[term.Column]
			cmp := compareNullable(a, b)
			if cmp == 0 {
				continue
			}
			if term.Direction == qcontext.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return sorted
}

func compareNullable(a, b schema.Value) int {
	if a.IsNull() && b.IsNull() {
		return 0
	}
	if a.IsNull() {
		return -1
	}
	if b.IsNull() {
		return 1
	}
	return schema.Compare(a, b)
}

// partitionByKey groups rows by the values of columns, preserving each
// group's first-seen order and each group's internal row order.
func partitionByKey(input []schema.Row, columns []string) [][]schema.Row {
	order := make([]string, 0)
	byKey := make(map[string][]schema.Row)
	for _, row := range input {
		key := groupKey(row, columns)
		if _, ok := byKey[key]; !ok {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], row)
	}
	out := make([][]schema.Row, len(order))
	for i, k := range order {
		out[i] = byKey[k]
	}
	return out
}

func groupKey(row schema.Row, columns []string) string {
	var b strings.Builder
	for _, col := range columns {
		b.WriteString(formatGroupValue(row.Payload[col]))
		b.WriteByte(0)
	}
	return b.String()
}

func formatGroupValue(v schema.Value) string {
	switch v.Kind {
	case schema.KindNull:
		return "null"
	case schema.KindInteger, schema.KindDateTime:
		return strconv.FormatInt(v.Int, 10)
	case schema.KindReal:
		return strconv.FormatFloat(v.Real, 'g', -1, 64)
	case schema.KindText:
		return v.Str
	case schema.KindBoolean:
		return strconv.FormatBool(v.Bool)
	case schema.KindBinary:
		return string(v.Bin)
	default:
		return ""
	}
}
