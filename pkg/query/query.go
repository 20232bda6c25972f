// Package query is the fluent builder surface (§4.8): the only way an
// embedder constructs a statement. Every builder accumulates state on
// itself and freezes into an immutable *qcontext.Context only at its
// terminal verb, validating table and column references against the
// open schema at that point rather than the back store, indices, or any
// in-flight transaction.
package query

import (
	"context"

	"github.com/kasuganosora/rowwatch/pkg/observer"
	"github.com/kasuganosora/rowwatch/pkg/qcontext"
	"github.com/kasuganosora/rowwatch/pkg/schema"
)

// Engine is the subset of engine.Database the builder surface depends on.
// Kept as an interface here (rather than importing pkg/engine directly) so
// this package never needs to know how a Database wires its back store.
type Engine interface {
	Definition() *schema.Definition
	Execute(ctx context.Context, queries []*qcontext.Context) ([][]schema.Row, error)
	Explain(q *qcontext.Context) (string, error)
	Observe(ctx context.Context, q *qcontext.Context, sub observer.Subscriber) (observer.Subscription, error)
	Unobserve(sub observer.Subscription)
}

// DB is the embedder's entry point into the builder surface.
type DB struct {
	engine Engine
}

// New wraps engine with the builder surface.
func New(engine Engine) *DB {
	return &DB{engine: engine}
}

// Statement is anything that freezes into a runnable query context:
// SelectBuilder, InsertBuilder, UpdateBuilder and DeleteBuilder all
// implement it, letting CreateTransaction().Exec mix statement kinds.
type Statement interface {
	Freeze() (*qcontext.Context, error)
}

func (db *DB) Select(columns ...string) *SelectBuilder {
	return &SelectBuilder{db: db, ctx: qcontext.Context{Kind: qcontext.Select, Columns: columns}}
}

func (db *DB) Insert() *InsertBuilder {
	return &InsertBuilder{db: db, kind: qcontext.Insert}
}

func (db *DB) InsertOrReplace() *InsertBuilder {
	return &InsertBuilder{db: db, kind: qcontext.InsertOrReplace}
}

func (db *DB) Update(table string) *UpdateBuilder {
	return &UpdateBuilder{db: db, table: table}
}

func (db *DB) Delete() *DeleteBuilder {
	return &DeleteBuilder{db: db}
}

func (db *DB) CreateTransaction() *TransactionBuilder {
	return &TransactionBuilder{db: db}
}

// Observe freezes stmt and subscribes sub to its result set, per §4.7.
// stmt is almost always a *SelectBuilder; nothing else produces a
// meaningful live view.
func (db *DB) Observe(ctx context.Context, stmt Statement, sub observer.Subscriber) (observer.Subscription, error) {
	q, err := stmt.Freeze()
	if err != nil {
		return observer.Subscription{}, err
	}
	return db.engine.Observe(ctx, q, sub)
}

// Unobserve cancels a prior Observe.
func (db *DB) Unobserve(sub observer.Subscription) {
	db.engine.Unobserve(sub)
}
