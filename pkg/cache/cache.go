// Package cache implements the in-memory row-id -> row mapping that is
// authoritative during a session (§4.3): writes go through the journal
// first, reads consult the journal then the cache, and only a successful
// commit promotes a journal's post-image into the cache.
package cache

import "github.com/kasuganosora/rowwatch/pkg/schema"

type tableKey struct {
	table string
	id    schema.RowID
}

// Cache holds every row currently resident for the tables it has been told
// about. It never evicts within a session — the simplest correct policy,
// matching the teacher's own choice to keep resident rows until the
// process ends.
type Cache struct {
	rows map[tableKey]schema.Row
}

func New() *Cache {
	return &Cache{rows: make(map[tableKey]schema.Row)}
}

// Get returns the cached row for (table, id), if resident.
func (c *Cache) Get(table string, id schema.RowID) (schema.Row, bool) {
	r, ok := c.rows[tableKey{table, id}]
	return r, ok
}

// Put installs row in the cache for table, overwriting any prior value.
func (c *Cache) Put(table string, row schema.Row) {
	c.rows[tableKey{table, row.ID}] = row
}

// Delete evicts (table, id), e.g. after a committed delete.
func (c *Cache) Delete(table string, id schema.RowID) {
	delete(c.rows, tableKey{table, id})
}

// Scan returns every row currently resident for table, in no particular
// order; callers needing key order consult an index instead.
func (c *Cache) Scan(table string) []schema.Row {
	var out []schema.Row
	for k, row := range c.rows {
		if k.table == table {
			out = append(out, row)
		}
	}
	return out
}

// Count returns the number of rows resident for table — used by the
// planner as the full-scan cost baseline.
func (c *Cache) Count(table string) int {
	n := 0
	for k := range c.rows {
		if k.table == table {
			n++
		}
	}
	return n
}
