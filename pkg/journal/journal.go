// Package journal implements the per-transaction staging area described in
// §4.3/§4.6/§4.7: a delta of inserts/updates/deletes keyed by (table,
// rowId), consulted by reads ahead of the cache and back store, and
// validated against the schema's constraints before commit.
//
// Grounded on the teacher's pkg/mvcc package (Transaction/Command/
// WriteCommand/DeleteCommand apply-or-rollback shape), collapsed from a
// full multi-version concurrency manager down to the single staging area
// one runner task needs, since this engine serialises conflicting tasks at
// admission time instead of resolving write conflicts after the fact.
package journal

import (
	"github.com/kasuganosora/rowwatch/pkg/dberrors"
	"github.com/kasuganosora/rowwatch/pkg/schema"
)

// ChangeKind tags one journal entry.
type ChangeKind int

const (
	Insert ChangeKind = iota
	Update
	Delete
)

type key struct {
	table string
	id    schema.RowID
}

// Change is one staged mutation. Before is the pre-image (nil for Insert),
// After is the post-image (nil for Delete).
type Change struct {
	Kind   ChangeKind
	Table  string
	ID     schema.RowID
	Before *schema.Row
	After  *schema.Row
}

// Journal accumulates the changes of one transaction until commit or
// rollback. It is not safe for concurrent use — one journal belongs to
// exactly one in-flight task.
type Journal struct {
	changes map[key]*Change
	order   []key // insertion order, for deterministic commit/index replay
}

func New() *Journal {
	return &Journal{changes: make(map[key]*Change)}
}

// Lookup returns the staged change for (table, id), so a read can observe
// the task's own prior writes before falling through to the cache.
func (j *Journal) Lookup(table string, id schema.RowID) (*Change, bool) {
	c, ok := j.changes[key{table, id}]
	return c, ok
}

// StageInsert records a new row. Fails if the journal already has a
// pending change for this id (inserting the same id twice in one
// transaction is always a bug, not a constraint to relax).
func (j *Journal) StageInsert(table string, row schema.Row) error {
	k := key{table, row.ID}
	if _, exists := j.changes[k]; exists {
		return dberrors.ConstraintViolation("row already staged in this transaction")
	}
	r := row.Clone()
	j.put(k, &Change{Kind: Insert, Table: table, ID: row.ID, After: &r})
	return nil
}

// StageUpdate records a modification to an existing row. before is the row
// as read prior to this transaction's writes (or as staged earlier in the
// same transaction).
func (j *Journal) StageUpdate(table string, before, after schema.Row) {
	k := key{table, after.ID}
	b := before.Clone()
	a := after.Clone()
	if existing, ok := j.changes[k]; ok && existing.Kind == Insert {
		// Updating a row inserted earlier in the same transaction: stays
		// an insert of the new payload.
		j.changes[k] = &Change{Kind: Insert, Table: table, ID: after.ID, After: &a}
		return
	}
	j.put(k, &Change{Kind: Update, Table: table, ID: after.ID, Before: &b, After: &a})
}

// StageDelete records a deletion. before is the row as it stood prior to
// this transaction.
func (j *Journal) StageDelete(table string, before schema.Row) {
	k := key{table, before.ID}
	if existing, ok := j.changes[k]; ok && existing.Kind == Insert {
		// Deleting a row inserted earlier in the same transaction cancels
		// out: neither visible afterwards.
		delete(j.changes, k)
		j.removeFromOrder(k)
		return
	}
	b := before.Clone()
	j.put(k, &Change{Kind: Delete, Table: table, ID: before.ID, Before: &b})
}

func (j *Journal) put(k key, c *Change) {
	if _, exists := j.changes[k]; !exists {
		j.order = append(j.order, k)
	}
	j.changes[k] = c
}

func (j *Journal) removeFromOrder(k key) {
	for i, o := range j.order {
		if o == k {
			j.order = append(j.order[:i], j.order[i+1:]...)
			return
		}
	}
}

// Changes returns every staged change in the order it was first staged.
func (j *Journal) Changes() []*Change {
	out := make([]*Change, len(j.order))
	for i, k := range j.order {
		out[i] = j.changes[k]
	}
	return out
}

// Tables returns the distinct set of tables this journal touches.
func (j *Journal) Tables() []string {
	seen := make(map[string]bool)
	var out []string
	for _, k := range j.order {
		if !seen[k.table] {
			seen[k.table] = true
			out = append(out, k.table)
		}
	}
	return out
}

// Empty reports whether the journal has no staged changes at all.
func (j *Journal) Empty() bool { return len(j.order) == 0 }
