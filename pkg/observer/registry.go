// Package observer implements the live-query subscription registry of
// §4.7: live SELECTs are re-evaluated and diffed against their prior
// results whenever a commit touches a table they read.
//
// Grounded on the teacher's pkg/mvcc notifier shape (a registry keyed by
// an identity, re-invoked on commit), generalised from row-level change
// events to whole-result-set diffing, since this engine's "observed
// query" is a materialised SELECT rather than a single watched row.
package observer

import (
	"context"
	"fmt"

	"github.com/kasuganosora/rowwatch/pkg/qcontext"
	"github.com/kasuganosora/rowwatch/pkg/schema"
)

// Diff is what a subscriber receives after a live query's result set
// changes: the added/removed/modified rows since the last materialisation.
// This is the explicit, non-mutating replacement for the source's
// observed-array mutation channel (§9 "Observable mutable arrays").
type Diff struct {
	Added    []schema.Row
	Removed  []schema.Row
	Modified []schema.Row
}

// Subscriber receives one Diff per re-materialisation.
type Subscriber func(Diff)

// Executor is the subset of runner.Executor the registry needs: the
// ability to re-run a query as its own (read-only) transaction.
type Executor interface {
	Execute(ctx context.Context, queries []*qcontext.Context) ([][]schema.Row, error)
}

// Subscription identifies one Observe call, for a later Unobserve.
type Subscription struct {
	queryID uint64
	seq     int
}

type entry struct {
	query       *qcontext.Context
	subscribers map[int]Subscriber
	nextSeq     int
	lastVersion uint64
	lastResults []schema.Row
}

// Registry maps live query identities to their subscribers and last
// materialised results.
type Registry struct {
	entries map[uint64]*entry
	exec    Executor
}

// New creates a Registry that re-runs queries through exec.
func New(exec Executor) *Registry {
	return &Registry{entries: make(map[uint64]*entry), exec: exec}
}

// Observe registers sub against q, materialising q immediately so the
// first diff the subscriber sees reflects only subsequent commits.
func (r *Registry) Observe(ctx context.Context, q *qcontext.Context, sub Subscriber) (Subscription, error) {
	id := q.Identity()
	e, ok := r.entries[id]
	if !ok {
		e = &entry{query: q, subscribers: make(map[int]Subscriber)}
		results, err := r.exec.Execute(ctx, []*qcontext.Context{q})
		if err != nil {
			return Subscription{}, err
		}
		e.lastResults = results[0]
		r.entries[id] = e
	}
	seq := e.nextSeq
	e.nextSeq++
	e.subscribers[seq] = sub
	return Subscription{queryID: id, seq: seq}, nil
}

// Unobserve removes one subscription. The entry is evicted once it has no
// subscribers left, per §4.7.
func (r *Registry) Unobserve(sub Subscription) {
	e, ok := r.entries[sub.queryID]
	if !ok {
		return
	}
	delete(e.subscribers, sub.seq)
	if len(e.subscribers) == 0 {
		delete(r.entries, sub.queryID)
	}
}

// OnCommit re-evaluates every live entry whose table scope intersects
// mutatedTables and that has not already been materialised at
// commitVersion, diffs the new results against the last materialisation,
// and invokes every subscriber. It is wired as the executor's CommitHook.
func (r *Registry) OnCommit(mutatedTables []string, commitVersion uint64) {
	mutated := make(map[string]bool, len(mutatedTables))
	for _, t := range mutatedTables {
		mutated[t] = true
	}

	for _, e := range r.entries {
		if e.lastVersion >= commitVersion {
			continue
		}
		if !intersects(e.query.Tables(), mutated) {
			continue
		}
		results, err := r.exec.Execute(context.Background(), []*qcontext.Context{e.query})
		if err != nil {
			// An observer's own re-evaluation failing does not poison the
			// commit pipeline (§7): it simply skips this cycle.
			continue
		}
		newRows := results[0]
		diff := computeDiff(e.lastResults, newRows, rowIdentity(e.query))
		e.lastResults = newRows
		e.lastVersion = commitVersion
		notify(e, diff)
	}
}

func notify(e *entry, diff Diff) {
	if len(diff.Added) == 0 && len(diff.Removed) == 0 && len(diff.Modified) == 0 {
		return
	}
	for _, sub := range e.subscribers {
		sub(diff)
	}
}

func intersects(tables []string, set map[string]bool) bool {
	for _, t := range tables {
		if set[t] {
			return true
		}
	}
	return false
}

// rowIdentity picks the key function used to match old vs new rows: the
// primary row-id when the query reads a single table with no join (the
// common case), otherwise full-payload equality, per §4.7's "primary key
// if present, else row payload equality".
func rowIdentity(q *qcontext.Context) func(schema.Row) string {
	if len(q.Joins) == 0 {
		return func(r schema.Row) string { return fmt.Sprintf("id:%d", r.ID) }
	}
	return func(r schema.Row) string { return payloadKey(r) }
}

func payloadKey(r schema.Row) string {
	keys := make([]string, 0, len(r.Payload))
	for k := range r.Payload {
		keys = append(keys, k)
	}
	sortStrings(keys)
	s := ""
	for _, k := range keys {
		s += k + "=" + formatValue(r.Payload[k]) + ";"
	}
	return s
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func formatValue(v schema.Value) string {
	return fmt.Sprintf("%d|%g|%s|%t|%x", v.Int, v.Real, v.Str, v.Bool, v.Bin)
}

// computeDiff implements the Open Question resolution in SPEC_FULL.md:
// added/removed by identity-key set difference, modified by field-wise
// payload equality among rows whose identity key persisted.
func computeDiff(old, new []schema.Row, key func(schema.Row) string) Diff {
	oldByKey := make(map[string]schema.Row, len(old))
	for _, r := range old {
		oldByKey[key(r)] = r
	}
	newByKey := make(map[string]schema.Row, len(new))
	for _, r := range new {
		newByKey[key(r)] = r
	}

	var diff Diff
	for k, r := range newByKey {
		if _, ok := oldByKey[k]; !ok {
			diff.Added = append(diff.Added, r)
		}
	}
	for k, r := range oldByKey {
		if _, ok := newByKey[k]; !ok {
			diff.Removed = append(diff.Removed, r)
		}
	}
	for k, newRow := range newByKey {
		if oldRow, ok := oldByKey[k]; ok && !payloadEqual(oldRow, newRow) {
			diff.Modified = append(diff.Modified, newRow)
		}
	}
	return diff
}

func payloadEqual(a, b schema.Row) bool {
	if len(a.Payload) != len(b.Payload) {
		return false
	}
	for col, v := range a.Payload {
		other, ok := b.Payload[col]
		if !ok || !v.Equal(other) {
			return false
		}
	}
	return true
}
