package journal

import (
	"fmt"

	"github.com/kasuganosora/rowwatch/pkg/cache"
	"github.com/kasuganosora/rowwatch/pkg/dberrors"
	"github.com/kasuganosora/rowwatch/pkg/index"
	"github.com/kasuganosora/rowwatch/pkg/schema"
)

// IndexSet is the set of live indices for one table, keyed by the leading
// (or only) column name they were built on. Validate consults it, but
// never mutates it — index promotion happens only on commit.
type IndexSet map[string]index.Index

// Validate checks every staged change against table's declared constraints:
// not-null columns must be present, and unique columns (including the
// primary key and any unique index) must not collide with another row
// already committed or staged earlier in the same transaction. Committed
// owners of a unique value are looked up through idx only; c is not read,
// so a unique column without an entry in idx is checked against this
// transaction's own staged rows alone.
func Validate(j *Journal, table *schema.Table, idx IndexSet, c *cache.Cache) error {
	seen := make(map[string]map[any]schema.RowID) // column -> key -> owning row id

	for _, change := range j.Changes() {
		if change.Table != table.Name {
			continue
		}
		if change.Kind == Delete {
			continue
		}
		row := change.After
		for _, col := range table.Columns {
			v, present := row.Payload[col.Name]
			if !present {
				v = schema.Null()
			}
			if table.IsNotNull(col.Name) && v.IsNull() {
				return dberrors.ConstraintViolation(fmt.Sprintf("column %s.%s must not be null", table.Name, col.Name))
			}
		}
		for _, col := range uniqueColumns(table) {
			v, present := row.Payload[col]
			if !present || v.IsNull() {
				continue
			}
			if seen[col] == nil {
				seen[col] = make(map[any]schema.RowID)
			}
			k := valueKey(v)
			if owner, dup := seen[col][k]; dup && owner != row.ID {
				return dberrors.ConstraintViolation(fmt.Sprintf("duplicate value for unique column %s.%s", table.Name, col))
			}
			seen[col][k] = row.ID

			if committed, ok := committedOwner(idx, c, table.Name, col, v); ok && committed != row.ID {
				if !staleFromSameTxn(j, table.Name, committed) {
					return dberrors.ConstraintViolation(fmt.Sprintf("duplicate value for unique column %s.%s", table.Name, col))
				}
			}
		}
	}
	return nil
}

func uniqueColumns(table *schema.Table) []string {
	var out []string
	if len(table.PrimaryKey) == 1 {
		out = append(out, table.PrimaryKey[0])
	}
	out = append(out, table.UniqueColumns...)
	for _, idx := range table.Indices {
		if idx.Unique && len(idx.Columns) == 1 {
			out = append(out, idx.Columns[0])
		}
	}
	return out
}

func committedOwner(idx IndexSet, c *cache.Cache, table, column string, v schema.Value) (schema.RowID, bool) {
	i, ok := idx[column]
	if !ok {
		return 0, false
	}
	rows := i.Get(v)
	if len(rows) == 0 {
		return 0, false
	}
	return rows[0], true
}

// staleFromSameTxn reports whether the committed owner of a unique value is
// itself being deleted within this same journal, in which case the
// collision isn't real. An owner that this journal only updates still
// counts as a collision, whatever its new value.
func staleFromSameTxn(j *Journal, table string, owner schema.RowID) bool {
	c, ok := j.Lookup(table, owner)
	return ok && c.Kind == Delete
}

func valueKey(v schema.Value) any {
	switch v.Kind {
	case schema.KindInteger, schema.KindDateTime:
		return [2]any{v.Kind, v.Int}
	case schema.KindReal:
		return [2]any{v.Kind, v.Real}
	case schema.KindText:
		return [2]any{v.Kind, v.Str}
	case schema.KindBoolean:
		return [2]any{v.Kind, v.Bool}
	case schema.KindBinary:
		return [2]any{v.Kind, string(v.Bin)}
	default:
		return v.Kind
	}
}
