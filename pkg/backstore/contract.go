// Package backstore specifies the contract between the engine and its
// pluggable durable row store (§4.4): a per-table key-value mapping with
// multi-table transactions. The back store is an external collaborator —
// this package only pins down its shape; concrete stores live in
// backstore/badger and backstore/memstore.
package backstore

import "context"

// TxMode selects whether a transaction may write.
type TxMode int

const (
	ReadOnly TxMode = iota
	ReadWrite
)

// Store is a durable key->row mapping with multi-table transactions. Two
// transactions with disjoint scopes may run concurrently; the store need
// not serialise overlapping scopes itself (the runner's admission policy
// does), but must behave safely when the runner does.
type Store interface {
	// Open prepares the store for use against the given table names,
	// returning the schema version last persisted (0 if never opened).
	Open(ctx context.Context, tables []string) (storedVersion uint64, err error)

	// SetStoredVersion persists the schema version, called by the engine
	// after a successful upgrade.
	SetStoredVersion(ctx context.Context, version uint64) error

	// CreateTx opens a transaction scoped to the given tables.
	CreateTx(ctx context.Context, mode TxMode, scope []string) (Tx, error)

	// Close releases all resources. No further calls are made after Close.
	Close() error
}

// Tx is one multi-table transaction. Commit and Abort are each terminal:
// exactly one of them is called, exactly once.
type Tx interface {
	ObjectStore(table string) ObjectStore
	Commit() error
	Abort() error
}

// ObjectStore is one table's keyed collection within a transaction. Keys
// are the table's primary row-id, big-endian encoded so that byte order
// matches numeric order (RawKey/RawValue in row_codec style).
type ObjectStore interface {
	Get(key []byte) ([]byte, error) // nil, nil if absent
	Put(key, value []byte) error
	Delete(key []byte) error
	// OpenCursor iterates keys in ascending order starting at or after
	// start (nil means from the beginning).
	OpenCursor(start []byte) (Cursor, error)
	// Last returns the greatest key currently present, used by the engine
	// to recover the next row-id at open time. ok is false for an empty
	// table.
	Last() (key []byte, ok bool, err error)
}

// Cursor walks an ObjectStore's keys in ascending order.
type Cursor interface {
	// Next advances the cursor and reports whether a value is available.
	Next() bool
	Key() []byte
	Value() []byte
	Close() error
}

// RowKey big-endian encodes a row-id so key order matches numeric order.
func RowKey(id uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(id)
		id >>= 8
	}
	return b
}

// DecodeRowKey is the inverse of RowKey.
func DecodeRowKey(b []byte) uint64 {
	var id uint64
	for _, c := range b {
		id = id<<8 | uint64(c)
	}
	return id
}
