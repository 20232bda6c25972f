package schema

import "github.com/kasuganosora/rowwatch/pkg/dberrors"

// Column describes one column of a table: name, value kind and whether it
// may hold Null.
type Column struct {
	Name     string
	Kind     Kind
	Nullable bool
}

// IndexOrder is the physical ordering an index maintains.
type IndexOrder string

const (
	OrderAscending  IndexOrder = "asc"
	OrderDescending IndexOrder = "desc"
)

// IndexDef declares one secondary (or primary-shadowing) index.
type IndexDef struct {
	Name    string
	Columns []string
	Unique  bool
	Order   IndexOrder
}

// Table is the structural metadata the planner and runner consult: columns,
// primary key, secondary indices, and the not-null/unique constraints the
// journal validates on commit.
//
// Grounded on the teacher's pkg/resource/domain.TableInfo, generalised from
// a single string "type" per column to the closed schema.Kind domain and
// from a single implicit primary key to the composite-key list spec.md §3
// requires ("one or more columns").
type Table struct {
	Name          string
	Columns       []Column
	PrimaryKey    []string
	Indices       []IndexDef
	UniqueColumns []string // beyond the primary key
	NotNull       []string // beyond columns already marked Nullable=false
}

// HasColumn reports whether name is a declared column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.column(name)
	return ok
}

func (t *Table) column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Column returns the column named name, or an error if the table has no
// such column.
func (t *Table) Column(name string) (Column, error) {
	c, ok := t.column(name)
	if !ok {
		return Column{}, dberrors.NotFound("column " + name + " not found in table " + t.Name)
	}
	return c, nil
}

// IsPrimaryKeyColumn reports whether name participates in the primary key.
func (t *Table) IsPrimaryKeyColumn(name string) bool {
	for _, c := range t.PrimaryKey {
		if c == name {
			return true
		}
	}
	return false
}

// IsUnique reports whether name carries a uniqueness constraint, either as
// (part of) the primary key or via an explicit unique column/index.
func (t *Table) IsUnique(name string) bool {
	if len(t.PrimaryKey) == 1 && t.PrimaryKey[0] == name {
		return true
	}
	for _, c := range t.UniqueColumns {
		if c == name {
			return true
		}
	}
	for _, idx := range t.Indices {
		if idx.Unique && len(idx.Columns) == 1 && idx.Columns[0] == name {
			return true
		}
	}
	return false
}

// IsNotNull reports whether name must never hold Null.
func (t *Table) IsNotNull(name string) bool {
	if c, ok := t.column(name); ok && !c.Nullable {
		return true
	}
	for _, c := range t.NotNull {
		if c == name {
			return true
		}
	}
	return t.IsPrimaryKeyColumn(name)
}

// IndexOn returns the first declared index whose leading column is name.
func (t *Table) IndexOn(name string) (IndexDef, bool) {
	for _, idx := range t.Indices {
		if len(idx.Columns) > 0 && idx.Columns[0] == name {
			return idx, true
		}
	}
	return IndexDef{}, false
}

// Definition is the schema-wide structural metadata: named, versioned, a
// set of tables. Schemas are versioned monotonically; Engine.Open invokes
// an upgrade callback when the back store's stored version is older.
type Definition struct {
	Name    string
	Version uint64
	Tables  []Table
}

// Table looks up a table by name.
func (d *Definition) Table(name string) (*Table, error) {
	for i := range d.Tables {
		if d.Tables[i].Name == name {
			return &d.Tables[i], nil
		}
	}
	return nil, dberrors.NotFound("table " + name + " not found")
}
