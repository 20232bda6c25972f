// Package index implements the ordered and flat-map index variants
// described in §4.2: an abstract store from key to a set of row-ids, with
// range queries and a cost estimator the planner uses for index
// substitution.
//
// Grounded on the teacher's pkg/resource/memory/index.go BTreeIndex, which
// is itself explicitly "a simplified version ... using slice
// implementation" rather than a real B+Tree — this package keeps that same
// simplification (a sorted slice, not a balanced tree), since the spec's
// contract only names the operations an ordered index exposes, not its
// internal structure.
package index

import (
	"sort"

	"github.com/kasuganosora/rowwatch/pkg/dberrors"
	"github.com/kasuganosora/rowwatch/pkg/keyrange"
	"github.com/kasuganosora/rowwatch/pkg/schema"
)

// Index is the contract both concrete variants implement.
type Index interface {
	Add(key schema.Value, rowID schema.RowID) error
	Set(key schema.Value, rowID schema.RowID) error
	// Remove deletes one rowID for key, or all row-ids for key when rowID
	// is nil.
	Remove(key schema.Value, rowID *schema.RowID) error
	Get(key schema.Value) []schema.RowID
	// GetRange returns matching row-ids in key order for an ordered index,
	// or in insertion order (full scan) for a flat map index. r == nil
	// means All().
	GetRange(r *keyrange.Range) []schema.RowID
	Cost(r *keyrange.Range) int
	Unique() bool
}

// Ordered additionally exposes Min/Max, only meaningful for a total-order
// index.
type Ordered interface {
	Index
	Min() (schema.Value, bool)
	Max() (schema.Value, bool)
}

// entry is one distinct key and the row-ids currently stored under it, in
// insertion order (the non-unique tie-break rule).
type entry struct {
	key  schema.Value
	rows []schema.RowID
}

// Sorted is the ordered index: a slice of entries kept sorted by key.
type Sorted struct {
	entries []entry
	unique  bool
}

// NewSorted creates an empty ordered index.
func NewSorted(unique bool) *Sorted {
	return &Sorted{unique: unique}
}

func (s *Sorted) Unique() bool { return s.unique }

func (s *Sorted) search(key schema.Value) (int, bool) {
	i := sort.Search(len(s.entries), func(i int) bool {
		return schema.Compare(s.entries[i].key, key) >= 0
	})
	if i < len(s.entries) && s.entries[i].key.Equal(key) {
		return i, true
	}
	return i, false
}

func (s *Sorted) Add(key schema.Value, rowID schema.RowID) error {
	if key.IsNull() {
		return dberrors.ConstraintViolation("null is not a valid index key")
	}
	i, found := s.search(key)
	if found {
		if s.unique {
			return dberrors.ConstraintViolation("duplicate key in unique index")
		}
		s.entries[i].rows = append(s.entries[i].rows, rowID)
		return nil
	}
	s.entries = append(s.entries, entry{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = entry{key: key, rows: []schema.RowID{rowID}}
	return nil
}

func (s *Sorted) Set(key schema.Value, rowID schema.RowID) error {
	if key.IsNull() {
		return dberrors.ConstraintViolation("null is not a valid index key")
	}
	i, found := s.search(key)
	if found {
		s.entries[i].rows = []schema.RowID{rowID}
		return nil
	}
	s.entries = append(s.entries, entry{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = entry{key: key, rows: []schema.RowID{rowID}}
	return nil
}

func (s *Sorted) Remove(key schema.Value, rowID *schema.RowID) error {
	i, found := s.search(key)
	if !found {
		return nil
	}
	if rowID == nil {
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
		return nil
	}
	rows := s.entries[i].rows
	for j, r := range rows {
		if r == *rowID {
			s.entries[i].rows = append(rows[:j], rows[j+1:]...)
			break
		}
	}
	if len(s.entries[i].rows) == 0 {
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
	}
	return nil
}

func (s *Sorted) Get(key schema.Value) []schema.RowID {
	i, found := s.search(key)
	if !found {
		return nil
	}
	out := make([]schema.RowID, len(s.entries[i].rows))
	copy(out, s.entries[i].rows)
	return out
}

// rangeSpan returns the half-open [lo, hi) slice indices covering r.
func (s *Sorted) rangeSpan(r *keyrange.Range) (lo, hi int) {
	if r == nil || r.From == nil {
		lo = 0
	} else {
		lo = sort.Search(len(s.entries), func(i int) bool {
			return schema.Compare(s.entries[i].key, *r.From) >= 0
		})
		if r.FromExcl {
			for lo < len(s.entries) && s.entries[lo].key.Equal(*r.From) {
				lo++
			}
		}
	}
	if r == nil || r.To == nil {
		hi = len(s.entries)
	} else {
		hi = sort.Search(len(s.entries), func(i int) bool {
			return schema.Compare(s.entries[i].key, *r.To) > 0
		})
		if r.ToExcl {
			for hi > lo && s.entries[hi-1].key.Equal(*r.To) {
				hi--
			}
		}
	}
	return lo, hi
}

func (s *Sorted) GetRange(r *keyrange.Range) []schema.RowID {
	lo, hi := s.rangeSpan(r)
	var out []schema.RowID
	for _, e := range s.entries[lo:hi] {
		out = append(out, e.rows...)
	}
	return out
}

// Cost is bounded above by the actual row count in range and is monotone
// in range width, per spec property #3: it's computed exactly since the
// slice span is cheap to measure.
func (s *Sorted) Cost(r *keyrange.Range) int {
	lo, hi := s.rangeSpan(r)
	total := 0
	for _, e := range s.entries[lo:hi] {
		total += len(e.rows)
	}
	return total
}

func (s *Sorted) Min() (schema.Value, bool) {
	if len(s.entries) == 0 {
		return schema.Value{}, false
	}
	return s.entries[0].key, true
}

func (s *Sorted) Max() (schema.Value, bool) {
	if len(s.entries) == 0 {
		return schema.Value{}, false
	}
	return s.entries[len(s.entries)-1].key, true
}

// Serialize returns a flat list of (key, rowIDs) pairs in key order, for
// persistence alongside the table's back store.
func (s *Sorted) Serialize() []SerializedEntry {
	out := make([]SerializedEntry, len(s.entries))
	for i, e := range s.entries {
		rows := make([]schema.RowID, len(e.rows))
		copy(rows, e.rows)
		out[i] = SerializedEntry{Key: e.key, RowIDs: rows}
	}
	return out
}

// Deserialize replaces the index's contents with entries, which must
// already be sorted by key (as Serialize produces them).
func (s *Sorted) Deserialize(entries []SerializedEntry) {
	s.entries = make([]entry, len(entries))
	for i, e := range entries {
		s.entries[i] = entry{key: e.Key, rows: append([]schema.RowID(nil), e.RowIDs...)}
	}
}

// SerializedEntry is the persisted form of one index key.
type SerializedEntry struct {
	Key    schema.Value
	RowIDs []schema.RowID
}
