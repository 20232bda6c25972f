// Package engine wires the query/plan/execute/observe stack into one
// open database handle: it owns the cache, the per-table indices, the
// back store, the runner/executor pair and the observer registry, and
// implements the schema-version upgrade flow of §4.4/scenario S6.
//
// Grounded on the teacher's pkg/api.DB (the top-level object that owns a
// datasource manager, cache and logger and hands out sessions), collapsed
// to a single back store and a single schema per Database since this
// engine is in-process rather than multi-datasource.
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kasuganosora/rowwatch/pkg/backstore"
	"github.com/kasuganosora/rowwatch/pkg/cache"
	"github.com/kasuganosora/rowwatch/pkg/dberrors"
	"github.com/kasuganosora/rowwatch/pkg/index"
	"github.com/kasuganosora/rowwatch/pkg/journal"
	"github.com/kasuganosora/rowwatch/pkg/observer"
	"github.com/kasuganosora/rowwatch/pkg/qcontext"
	"github.com/kasuganosora/rowwatch/pkg/runner"
	"github.com/kasuganosora/rowwatch/pkg/schema"
)

// UpgradeFunc migrates the back store from fromVersion to toVersion. It
// runs inside a read-write transaction; the engine persists the new version
// number only after that transaction commits, so a failure leaves the
// stored version untouched. tx is scoped to every table the declared schema
// names, including ones only toVersion introduces.
type UpgradeFunc func(ctx context.Context, tx backstore.Tx, fromVersion, toVersion uint64) error

// Database is one open, schema-bound handle onto a back store.
type Database struct {
	def     *schema.Definition
	store   backstore.Store
	cache   *cache.Cache
	indices map[string]journal.IndexSet
	seq     map[string]*schema.Sequence
	runner  *runner.Runner
	exec    *runner.Executor
	obs     *observer.Registry
	log     *zap.Logger
}

// Open prepares store for def: running upgrade if the store's persisted
// schema version is older than def.Version, then loading every table's
// rows into the resident cache and indices and recovering each table's
// row-id sequence from what it finds. log may be nil.
func Open(ctx context.Context, def *schema.Definition, store backstore.Store, log *zap.Logger, upgrade UpgradeFunc) (*Database, error) {
	if log == nil {
		log = zap.NewNop()
	}

	tableNames := make([]string, len(def.Tables))
	for i, t := range def.Tables {
		tableNames[i] = t.Name
	}

	storedVersion, err := store.Open(ctx, tableNames)
	if err != nil {
		return nil, dberrors.BackStore("opening back store", err)
	}
	if storedVersion < def.Version {
		if err := runUpgrade(ctx, store, tableNames, storedVersion, def.Version, upgrade); err != nil {
			return nil, err
		}
	}

	d := &Database{
		def:     def,
		store:   store,
		cache:   cache.New(),
		indices: make(map[string]journal.IndexSet, len(def.Tables)),
		seq:     make(map[string]*schema.Sequence, len(def.Tables)),
		log:     log,
	}
	for i := range def.Tables {
		d.indices[def.Tables[i].Name] = buildIndexSet(&def.Tables[i])
		d.seq[def.Tables[i].Name] = schema.NewSequence(1)
	}

	if err := d.loadResidentState(ctx, tableNames); err != nil {
		return nil, err
	}

	d.runner = runner.New(log)
	d.exec = &runner.Executor{
		Store:   store,
		Cache:   d.cache,
		Def:     def,
		Indices: d.indices,
		Seq:     d.seq,
		Runner:  d.runner,
	}
	d.obs = observer.New(d.exec)
	d.exec.SetCommitHook(d.obs.OnCommit)

	return d, nil
}

// runUpgrade invokes upgrade (if any) inside one read-write transaction
// scoped to every declared table, then persists the new version only once
// that transaction — and upgrade itself — has succeeded, so a failed
// upgrade never leaves a partially-migrated store at the new version
// number.
func runUpgrade(ctx context.Context, store backstore.Store, tables []string, from, to uint64, upgrade UpgradeFunc) error {
	tx, err := store.CreateTx(ctx, backstore.ReadWrite, tables)
	if err != nil {
		return dberrors.BackStore("opening upgrade transaction", err)
	}
	if upgrade != nil {
		if err := upgrade(ctx, tx, from, to); err != nil {
			tx.Abort()
			return fmt.Errorf("engine: schema upgrade %d -> %d: %w", from, to, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return dberrors.BackStore("committing upgrade transaction", err)
	}
	return store.SetStoredVersion(ctx, to)
}

// loadResidentState performs the one full scan of every table the back
// store ever needs for this Database: every row is decoded into the
// cache, indexed, and observed by its table's sequence in the same pass.
func (d *Database) loadResidentState(ctx context.Context, tables []string) error {
	tx, err := d.store.CreateTx(ctx, backstore.ReadOnly, tables)
	if err != nil {
		return dberrors.BackStore("opening load transaction", err)
	}
	defer func() { _ = tx.Commit() }()

	for _, table := range tables {
		store := tx.ObjectStore(table)
		cur, err := store.OpenCursor(nil)
		if err != nil {
			return dberrors.BackStore("scanning table "+table, err)
		}
		for cur.Next() {
			row, err := schema.DecodeRow(cur.Value())
			if err != nil {
				cur.Close()
				return err
			}
			d.cache.Put(table, row)
			addToIndices(d.indices[table], row)
			d.seq[table].Observe(row.ID)
		}
		if err := cur.Close(); err != nil {
			return dberrors.BackStore("closing cursor on "+table, err)
		}
	}
	return nil
}

// buildIndexSet assembles the always-present primary-key index, unique
// column indices, and every single-column secondary index a table
// declares. Composite (multi-column) indices are outside this engine's
// single-column substitution rewrite (§4.5) and are not maintained here.
func buildIndexSet(t *schema.Table) journal.IndexSet {
	set := journal.IndexSet{}
	if len(t.PrimaryKey) == 1 {
		set[t.PrimaryKey[0]] = index.NewSorted(true)
	}
	for _, col := range t.UniqueColumns {
		if _, exists := set[col]; !exists {
			set[col] = index.NewSorted(true)
		}
	}
	for _, idx := range t.Indices {
		if len(idx.Columns) != 1 {
			continue
		}
		if _, exists := set[idx.Columns[0]]; !exists {
			set[idx.Columns[0]] = index.NewSorted(idx.Unique)
		}
	}
	return set
}

func addToIndices(set journal.IndexSet, row schema.Row) {
	for col, idx := range set {
		if v, ok := row.Payload[col]; ok && !v.IsNull() {
			_ = idx.Add(v, row.ID)
		}
	}
}

// Definition returns the schema this Database was opened with.
func (d *Database) Definition() *schema.Definition { return d.def }

// Execute runs one or more query contexts as a single transaction,
// satisfying pkg/query's Engine interface.
func (d *Database) Execute(ctx context.Context, queries []*qcontext.Context) ([][]schema.Row, error) {
	return d.exec.Execute(ctx, queries)
}

// Explain compiles q's physical plan and renders it without running it.
func (d *Database) Explain(q *qcontext.Context) (string, error) {
	return d.exec.Explain(q)
}

// Observe subscribes sub to q's live result set.
func (d *Database) Observe(ctx context.Context, q *qcontext.Context, sub observer.Subscriber) (observer.Subscription, error) {
	return d.obs.Observe(ctx, q, sub)
}

// Unobserve cancels a subscription created by Observe.
func (d *Database) Unobserve(sub observer.Subscription) {
	d.obs.Unobserve(sub)
}

// Close releases the back store. No further calls are made against this
// Database after Close.
func (d *Database) Close() error {
	return d.store.Close()
}
