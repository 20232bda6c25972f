package index

import (
	"github.com/kasuganosora/rowwatch/pkg/dberrors"
	"github.com/kasuganosora/rowwatch/pkg/keyrange"
	"github.com/kasuganosora/rowwatch/pkg/schema"
)

// keyOf produces a comparable Go map key for a schema.Value. Values of
// different kinds never collide because the kind tag is folded in.
func keyOf(v schema.Value) any {
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

// FlatMap is the hash-style index: add/set/remove/get in O(1), getRange
// degrades to a full scan since there is no ordering to exploit, as §4.2
// requires.
type FlatMap struct {
	rows   map[any][]schema.RowID
	keys   map[any]schema.Value
	order  []any // insertion order of distinct keys, for deterministic scans
	unique bool
}

func NewFlatMap(unique bool) *FlatMap {
	return &FlatMap{
		rows:   make(map[any][]schema.RowID),
		keys:   make(map[any]schema.Value),
		unique: unique,
	}
}

func (f *FlatMap) Unique() bool { return f.unique }

func (f *FlatMap) Add(key schema.Value, rowID schema.RowID) error {
	if key.IsNull() {
		return dberrors.ConstraintViolation("null is not a valid index key")
	}
	k := keyOf(key)
	if existing, ok := f.rows[k]; ok {
		if f.unique {
			return dberrors.ConstraintViolation("duplicate key in unique index")
		}
		f.rows[k] = append(existing, rowID)
		return nil
	}
	f.rows[k] = []schema.RowID{rowID}
	f.keys[k] = key
	f.order = append(f.order, k)
	return nil
}

func (f *FlatMap) Set(key schema.Value, rowID schema.RowID) error {
	if key.IsNull() {
		return dberrors.ConstraintViolation("null is not a valid index key")
	}
	k := keyOf(key)
	if _, ok := f.rows[k]; !ok {
		f.keys[k] = key
		f.order = append(f.order, k)
	}
	f.rows[k] = []schema.RowID{rowID}
	return nil
}

func (f *FlatMap) Remove(key schema.Value, rowID *schema.RowID) error {
	k := keyOf(key)
	rows, ok := f.rows[k]
	if !ok {
		return nil
	}
	if rowID == nil {
		delete(f.rows, k)
		delete(f.keys, k)
		f.removeFromOrder(k)
		return nil
	}
	for i, r := range rows {
		if r == *rowID {
			rows = append(rows[:i], rows[i+1:]...)
			break
		}
	}
	if len(rows) == 0 {
		delete(f.rows, k)
		delete(f.keys, k)
		f.removeFromOrder(k)
		return nil
	}
	f.rows[k] = rows
	return nil
}

func (f *FlatMap) removeFromOrder(k any) {
	for i, o := range f.order {
		if o == k {
			f.order = append(f.order[:i], f.order[i+1:]...)
			return
		}
	}
}

func (f *FlatMap) Get(key schema.Value) []schema.RowID {
	rows := f.rows[keyOf(key)]
	out := make([]schema.RowID, len(rows))
	copy(out, rows)
	return out
}

// GetRange performs a full scan filtered by r, since a hash map has no
// usable ordering.
func (f *FlatMap) GetRange(r *keyrange.Range) []schema.RowID {
	var out []schema.RowID
	for _, k := range f.order {
		key := f.keys[k]
		if r == nil || r.Contains(key) {
			out = append(out, f.rows[k]...)
		}
	}
	return out
}

// Cost is always the full row count: a flat map cannot narrow a range scan.
func (f *FlatMap) Cost(r *keyrange.Range) int {
	total := 0
	for _, rows := range f.rows {
		total += len(rows)
	}
	return total
}
