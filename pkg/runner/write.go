package runner

import (
	"github.com/kasuganosora/rowwatch/pkg/backstore"
	"github.com/kasuganosora/rowwatch/pkg/dberrors"
	"github.com/kasuganosora/rowwatch/pkg/journal"
	"github.com/kasuganosora/rowwatch/pkg/planner"
	"github.com/kasuganosora/rowwatch/pkg/qcontext"
	"github.com/kasuganosora/rowwatch/pkg/schema"
)

// applyInsert stages every row of an Insert/InsertOrReplace context into
// the journal, assigning fresh row-ids via the table's sequence unless an
// InsertOrReplace payload names an existing primary-key value.
func (e *Executor) applyInsert(q *qcontext.Context, j *journal.Journal) error {
	table := q.From[0]
	t, err := e.Def.Table(table)
	if err != nil {
		return err
	}
	orReplace := q.Kind == qcontext.InsertOrReplace

	var pkCol string
	if len(t.PrimaryKey) == 1 {
		pkCol = t.PrimaryKey[0]
	}

	for _, row := range q.Rows {
		payload := row.Payload
		if orReplace && pkCol != "" {
			if pkVal, ok := payload[pkCol]; ok && !pkVal.IsNull() {
				if existingID, found := e.lookupByColumn(table, pkCol, pkVal, j); found {
					before, _ := e.materializeRow(table, existingID, j)
					j.StageUpdate(table, before, schema.Row{ID: existingID, Payload: payload})
					continue
				}
			}
		}
		id := e.Seq[table].Next()
		// The auto-assigned row-id doubles as the primary key column's
		// value for the common single-column integer key, so a plain
		// `select id from t` sees it without a caller having to supply it.
		if pkCol != "" {
			if _, supplied := payload[pkCol]; !supplied {
				payload[pkCol] = schema.Integer(int64(id))
			}
		}
		if err := j.StageInsert(table, schema.Row{ID: id, Payload: payload}); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) lookupByColumn(table, column string, v schema.Value, j *journal.Journal) (schema.RowID, bool) {
	for _, change := range j.Changes() {
		if change.Table != table || change.Kind == journal.Delete {
			continue
		}
		if val, ok := change.After.Payload[column]; ok && val.Equal(v) {
			return change.ID, true
		}
	}
	if idx, ok := e.Indices[table][column]; ok {
		if ids := idx.Get(v); len(ids) > 0 {
			return ids[0], true
		}
	}
	return 0, false
}

// applyUpdate walks root (the read-side scan of the rows to update) and
// stages each match's assignments.
func (e *Executor) applyUpdate(root planner.Node, q *qcontext.Context, j *journal.Journal) error {
	table := q.From[0]
	rows, err := e.evalNode(root, j)
	if err != nil {
		return err
	}
	for _, before := range rows {
		after := before.Clone()
		for _, a := range q.Assignments {
			if !a.Operand.Resolved {
				return dberrors.Syntax("update assignment has an unresolved bind slot")
			}
			after.Payload[a.Column] = a.Operand.Value
		}
		j.StageUpdate(table, before, after)
	}
	return nil
}

func (e *Executor) applyDelete(root planner.Node, j *journal.Journal) error {
	rows, err := e.evalNode(root, j)
	if err != nil {
		return err
	}
	for _, row := range rows {
		// root's table is whatever TableAccess/IndexRangeScan it scans;
		// every row produced by a Delete's read-side plan always belongs
		// to the single table named by the Delete context.
		j.StageDelete(tableOf(root), row)
	}
	return nil
}

func tableOf(n planner.Node) string {
	switch v := n.(type) {
	case *planner.TableAccess:
		return v.Table
	case *planner.IndexRangeScan:
		return v.Table
	default:
		if len(n.Children()) > 0 {
			return tableOf(n.Children()[0])
		}
		return ""
	}
}

// commit writes the journal's staged changes to the back store, then
// (only once the back-store write has succeeded) promotes them into the
// cache and indices in one pass, per §4.6 step 5.
func (e *Executor) commit(tx backstore.Tx, j *journal.Journal) error {
	for _, change := range j.Changes() {
		store := tx.ObjectStore(change.Table)
		key := backstore.RowKey(uint64(change.ID))
		switch change.Kind {
		case journal.Delete:
			if err := store.Delete(key); err != nil {
				return dberrors.BackStore("deleting row", err)
			}
		default:
			data, err := schema.EncodeRow(*change.After)
			if err != nil {
				return err
			}
			if err := store.Put(key, data); err != nil {
				return dberrors.BackStore("writing row", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return dberrors.BackStore("committing transaction", err)
	}

	for _, change := range j.Changes() {
		e.promote(change)
	}
	return nil
}

// promote applies one committed change to the cache and the table's
// indices; called only after the back-store commit has already succeeded.
func (e *Executor) promote(change *journal.Change) {
	switch change.Kind {
	case journal.Delete:
		e.updateIndices(change.Table, change.Before, nil)
		e.Cache.Delete(change.Table, change.ID)
	case journal.Insert:
		e.updateIndices(change.Table, nil, change.After)
		e.Cache.Put(change.Table, *change.After)
	case journal.Update:
		e.updateIndices(change.Table, change.Before, change.After)
		e.Cache.Put(change.Table, *change.After)
	}
}

// updateIndices removes before's index entries and adds after's, for
// every column this table has an index on. Null values are never indexed.
func (e *Executor) updateIndices(table string, before, after *schema.Row) {
	for col, idx := range e.Indices[table] {
		if before != nil {
			if v, ok := before.Payload[col]; ok && !v.IsNull() {
				id := before.ID
				idx.Remove(v, &id)
			}
		}
		if after != nil {
			if v, ok := after.Payload[col]; ok && !v.IsNull() {
				// Add, not Set: Set replaces every row-id under the key,
				// which would drop sibling rows in a non-unique index.
				// journal.Validate has already ruled out a real unique
				// collision, so the only possible error here is on a key
				// this row itself already owns (a no-op re-add).
				_ = idx.Add(v, after.ID)
			}
		}
	}
}
