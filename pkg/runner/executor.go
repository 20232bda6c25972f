// Package runner also hosts the executor that walks a physical plan
// against the journal/cache/back-store stack and commits its effects
// (§4.6 steps 1-6), since the spec attributes both scheduling and
// execution to the same "Executor / Runner" component.
package runner

import (
	"context"
	"fmt"

	"github.com/kasuganosora/rowwatch/pkg/backstore"
	"github.com/kasuganosora/rowwatch/pkg/cache"
	"github.com/kasuganosora/rowwatch/pkg/dberrors"
	"github.com/kasuganosora/rowwatch/pkg/index"
	"github.com/kasuganosora/rowwatch/pkg/journal"
	"github.com/kasuganosora/rowwatch/pkg/planner"
	"github.com/kasuganosora/rowwatch/pkg/predicate"
	"github.com/kasuganosora/rowwatch/pkg/qcontext"
	"github.com/kasuganosora/rowwatch/pkg/schema"
)

// CommitHook is invoked once per successful RW commit with the set of
// mutated tables, letting the observer registry re-evaluate live queries.
type CommitHook func(mutatedTables []string, commitVersion uint64)

// Executor wires together everything a task needs to read and write: the
// back store, the resident cache, per-table indices, the schema, and the
// runner that admits it. One Executor is shared by every task submitted
// against one open database.
type Executor struct {
	Store   backstore.Store
	Cache   *cache.Cache
	Def     *schema.Definition
	Indices map[string]journal.IndexSet // table -> column -> index
	Seq     map[string]*schema.Sequence // table -> row-id sequence
	Runner  *Runner

	onCommit      CommitHook
	commitVersion uint64
}

// SetCommitHook installs the callback invoked after each successful write
// commit. Only the engine wires this, to the observer registry.
func (e *Executor) SetCommitHook(hook CommitHook) { e.onCommit = hook }

// Explain compiles q into a physical plan against the live cache/index
// state and renders it, without running it — the builder surface's
// explain() verb (§4.8).
func (e *Executor) Explain(q *qcontext.Context) (string, error) {
	if err := requireResolved(q); err != nil {
		return "", err
	}
	cat := &liveCatalog{cache: e.Cache, indices: e.Indices}
	return planner.Explain(planner.Build(q, cat)), nil
}

// Execute runs one or more query contexts as a single atomic transaction
// (§4.6): a single context is the common case, several means an
// application-level multi-statement transaction. It returns one row slice
// per SELECT context (nil for write contexts).
func (e *Executor) Execute(ctx context.Context, queries []*qcontext.Context) ([][]schema.Row, error) {
	for _, q := range queries {
		if err := requireResolved(q); err != nil {
			return nil, err
		}
	}

	scope := unionScope(queries)
	mode := backstore.ReadOnly
	for _, q := range queries {
		if q.IsWrite() {
			mode = backstore.ReadWrite
			break
		}
	}

	task := NewTask(scope, mode)
	result, err := e.Runner.Run(ctx, task, func(ctx context.Context) (any, error) {
		return e.runTransaction(ctx, queries, scope, mode)
	})
	if err != nil {
		return nil, err
	}
	return result.([][]schema.Row), nil
}

func requireResolved(q *qcontext.Context) error {
	if err := predicate.RequireResolved(q.Where); err != nil {
		return err
	}
	for _, j := range q.Joins {
		if err := predicate.RequireResolved(j.Predicate); err != nil {
			return err
		}
	}
	return nil
}

func unionScope(queries []*qcontext.Context) []string {
	seen := make(map[string]bool)
	var out []string
	for _, q := range queries {
		for _, t := range q.Tables() {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

func (e *Executor) runTransaction(ctx context.Context, queries []*qcontext.Context, scope []string, mode backstore.TxMode) ([][]schema.Row, error) {
	tx, err := e.Store.CreateTx(ctx, mode, scope)
	if err != nil {
		return nil, dberrors.BackStore("opening transaction", err)
	}
	j := journal.New()
	cat := &liveCatalog{cache: e.Cache, indices: e.Indices}

	results := make([][]schema.Row, len(queries))
	for i, q := range queries {
		rows, err := e.executeOne(q, j, cat)
		if err != nil {
			tx.Abort()
			return nil, err
		}
		results[i] = rows
	}

	mutated := j.Tables()
	if len(mutated) > 0 {
		for _, table := range mutated {
			t, err := e.Def.Table(table)
			if err != nil {
				tx.Abort()
				return nil, err
			}
			if err := journal.Validate(j, t, e.Indices[table], e.Cache); err != nil {
				tx.Abort()
				return nil, err
			}
		}
	}

	if err := e.commit(tx, j); err != nil {
		tx.Abort()
		return nil, err
	}

	if len(mutated) > 0 {
		e.commitVersion++
		if e.onCommit != nil {
			e.onCommit(mutated, e.commitVersion)
		}
	}
	return results, nil
}

func (e *Executor) executeOne(q *qcontext.Context, j *journal.Journal, cat planner.Catalog) ([]schema.Row, error) {
	plan := planner.Build(q, cat)
	switch q.Kind {
	case qcontext.Select:
		return e.evalNode(plan.Root, j)
	case qcontext.Insert, qcontext.InsertOrReplace:
		return nil, e.applyInsert(q, j)
	case qcontext.Update:
		return nil, e.applyUpdate(plan.Root.Children()[0], q, j)
	case qcontext.Delete:
		return nil, e.applyDelete(plan.Root.Children()[0], j)
	default:
		return nil, dberrors.NotSupported(fmt.Sprintf("unsupported statement kind %v", q.Kind))
	}
}

// liveCatalog answers planner.Catalog queries from the live cache/index
// state visible at plan time; it does not see this transaction's own
// uncommitted writes, which only shifts selectivity estimates slightly
// and never affects correctness (residual Select nodes always re-check).
type liveCatalog struct {
	cache   *cache.Cache
	indices map[string]journal.IndexSet
}

func (c *liveCatalog) Stats(table string) planner.TableStats {
	return planner.TableStats{RowCount: c.cache.Count(table), Indices: map[string]index.Index(c.indices[table])}
}
