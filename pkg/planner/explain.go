package planner

import (
	"fmt"
	"strings"

	"github.com/kasuganosora/rowwatch/pkg/keyrange"
	"github.com/kasuganosora/rowwatch/pkg/predicate"
	"github.com/kasuganosora/rowwatch/pkg/qcontext"
	"github.com/kasuganosora/rowwatch/pkg/schema"
)

// Explain renders p as an indented text tree, the form the builder surface's
// explain() verb hands back to callers (§4.8).
func Explain(p *Plan) string {
	var b strings.Builder
	explainNode(&b, p.Root, 0)
	return b.String()
}

func explainNode(b *strings.Builder, n Node, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(describe(n))
	b.WriteByte('\n')
	for _, c := range n.Children() {
		explainNode(b, c, depth+1)
	}
}

func describe(n Node) string {
	switch v := n.(type) {
	case *TableAccess:
		return fmt.Sprintf("TableAccess(%s)", v.Table)
	case *IndexRangeScan:
		return fmt.Sprintf("IndexRangeScan(%s.%s via %s, range=%s)", v.Table, v.Column, v.IndexName, formatRange(v.Range))
	case *Select:
		return fmt.Sprintf("Select(%s)", describePredicate(v.Predicate))
	case *Project:
		if len(v.Columns) == 0 {
			return "Project(*)"
		}
		return fmt.Sprintf("Project(%s)", strings.Join(v.Columns, ", "))
	case *Join:
		kind := "InnerJoin"
		if v.Kind == qcontext.LeftOuterJoin {
			kind = "LeftOuterJoin"
		}
		return fmt.Sprintf("%s(%s, on %s)", kind, v.RightTable, describePredicate(v.Predicate))
	case *OrderBy:
		parts := make([]string, len(v.Terms))
		for i, t := range v.Terms {
			dir := "asc"
			if t.Direction == qcontext.Desc {
				dir = "desc"
			}
			parts[i] = fmt.Sprintf("%s %s", t.Column, dir)
		}
		return fmt.Sprintf("OrderBy(%s)", strings.Join(parts, ", "))
	case *GroupBy:
		return fmt.Sprintf("GroupBy(%s)", strings.Join(v.Columns, ", "))
	case *Aggregate:
		return fmt.Sprintf("Aggregate(%s)", strings.Join(v.Columns, ", "))
	case *Limit:
		return fmt.Sprintf("Limit(%d)", v.N)
	case *Skip:
		return fmt.Sprintf("Skip(%d)", v.N)
	case *Insert:
		verb := "Insert"
		if v.OrReplace {
			verb = "InsertOrReplace"
		}
		return fmt.Sprintf("%s(%s, rows=%d)", verb, v.Table, v.RowCount)
	case *Update:
		return fmt.Sprintf("Update(%s)", v.Table)
	case *Delete:
		return fmt.Sprintf("Delete(%s)", v.Table)
	default:
		return fmt.Sprintf("%T", n)
	}
}

func describePredicate(p predicate.Predicate) string {
	switch n := p.(type) {
	case nil:
		return "true"
	case predicate.ValuePredicate:
		return fmt.Sprintf("%s %s %s", n.Column, n.Op, describeOperand(n.Operand))
	case predicate.JoinPredicate:
		return fmt.Sprintf("%s %s %s", n.LeftColumn, n.Op, n.RightColumn)
	case predicate.CombinedPredicate:
		if n.Combinator == predicate.Not {
			return fmt.Sprintf("NOT (%s)", describePredicate(n.Children[0]))
		}
		parts := make([]string, len(n.Children))
		for i, c := range n.Children {
			parts[i] = describePredicate(c)
		}
		sep := " " + string(n.Combinator) + " "
		return "(" + strings.Join(parts, sep) + ")"
	default:
		return "?"
	}
}

func describeOperand(o predicate.Operand) string {
	if len(o.List) > 0 {
		parts := make([]string, len(o.List))
		for i, item := range o.List {
			parts[i] = describeOperand(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	if !o.Resolved {
		return fmt.Sprintf("$%d", o.Slot)
	}
	return formatValue(o.Value)
}

func formatValue(v schema.Value) string {
	switch v.Kind {
	case schema.KindNull:
		return "null"
	case schema.KindInteger, schema.KindDateTime:
		return fmt.Sprintf("%d", v.Int)
	case schema.KindReal:
		return fmt.Sprintf("%g", v.Real)
	case schema.KindText:
		return fmt.Sprintf("%q", v.Str)
	case schema.KindBoolean:
		return fmt.Sprintf("%t", v.Bool)
	case schema.KindBinary:
		return fmt.Sprintf("0x%x", v.Bin)
	default:
		return "?"
	}
}

func formatRange(r *keyrange.Range) string {
	if r == nil {
		return "all"
	}
	lo := "-inf"
	if r.From != nil {
		if r.FromExcl {
			lo = "(" + formatValue(*r.From)
		} else {
			lo = "[" + formatValue(*r.From)
		}
	}
	hi := "+inf"
	if r.To != nil {
		if r.ToExcl {
			hi = formatValue(*r.To) + ")"
		} else {
			hi = formatValue(*r.To) + "]"
		}
	}
	return lo + "," + hi
}
