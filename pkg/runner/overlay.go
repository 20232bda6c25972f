package runner

import (
	"github.com/kasuganosora/rowwatch/pkg/journal"
	"github.com/kasuganosora/rowwatch/pkg/schema"
)

// materializeRow resolves the current value of one row within a
// transaction: the journal's own staged write if any, else the resident
// cache entry. This is the "journal -> cache -> back store" read order of
// §4.6 step 3, minus the back-store fallback since the cache never evicts
// within a session and so already holds every row the back store does.
func (e *Executor) materializeRow(table string, id schema.RowID, j *journal.Journal) (schema.Row, bool) {
	if change, ok := j.Lookup(table, id); ok {
		if change.Kind == journal.Delete {
			return schema.Row{}, false
		}
		return *change.After, true
	}
	return e.Cache.Get(table, id)
}

// materializeTable returns every row of table visible to this transaction:
// committed rows overlaid with the journal's staged changes, plus rows
// this transaction itself inserted that are not yet cache-resident.
func (e *Executor) materializeTable(table string, j *journal.Journal) []schema.Row {
	base := e.Cache.Scan(table)
	seen := make(map[schema.RowID]bool, len(base))
	var out []schema.Row
	for _, row := range base {
		seen[row.ID] = true
		if change, ok := j.Lookup(table, row.ID); ok {
			if change.Kind == journal.Delete {
				continue
			}
			out = append(out, *change.After)
			continue
		}
		out = append(out, row)
	}
	for _, change := range j.Changes() {
		if change.Table != table || seen[change.ID] || change.Kind == journal.Delete {
			continue
		}
		out = append(out, *change.After)
	}
	return out
}
