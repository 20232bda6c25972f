// Package badger implements backstore.Store over github.com/dgraph-io/badger/v4.
//
// Grounded on the teacher's pkg/resource/badger package: the same
// prefixed-key scheme (prefixTable/prefixRow/keyVersion below mirror
// the teacher's KeyEncoder), and the same split between a long-lived *badger.DB
// handle and short-lived badger.Txn wrappers. Unlike the teacher's
// TransactionManager/SequenceManager pair, this store keeps no sequence
// state: engine.Open recovers each table's row-id sequence by scanning the
// table's stored rows (Database.loadResidentState) rather than
// pre-allocating a sequence block, so that a process restart can never
// skip row-ids (spec.md §8 property #7).
package badger

import (
	"context"
	"fmt"

	bdg "github.com/dgraph-io/badger/v4"

	"github.com/kasuganosora/rowwatch/pkg/backstore"
	"github.com/kasuganosora/rowwatch/pkg/dberrors"
)

const (
	prefixTable   = "table:"
	prefixRow     = "row:"
	keyVersion    = "schema:version"
)

// Config configures the underlying badger.DB.
type Config struct {
	Dir        string
	InMemory   bool
	SyncWrites bool
}

// Store is the backstore.Store implementation over badger.
type Store struct {
	db *bdg.DB
}

// Open opens (or creates) the badger database at cfg.Dir.
func Open(cfg Config) (*Store, error) {
	opts := bdg.DefaultOptions(cfg.Dir).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)
	db, err := bdg.Open(opts)
	if err != nil {
		return nil, dberrors.BackStore("failed to open badger database", err)
	}
	return &Store{db: db}, nil
}

func rowPrefix(table string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixRow, table))
}

func rowKey(table string, key []byte) []byte {
	return append(rowPrefix(table), key...)
}

func (s *Store) Open(ctx context.Context, tables []string) (uint64, error) {
	var version uint64
	err := s.db.View(func(txn *bdg.Txn) error {
		item, err := txn.Get([]byte(keyVersion))
		if err == bdg.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			version = backstore.DecodeRowKey(val)
			return nil
		})
	})
	if err != nil {
		return 0, dberrors.BackStore("failed to read schema version", err)
	}
	for _, t := range tables {
		if err := s.db.Update(func(txn *bdg.Txn) error {
			_, err := txn.Get([]byte(prefixTable + t))
			if err == bdg.ErrKeyNotFound {
				return txn.Set([]byte(prefixTable+t), []byte{1})
			}
			return err
		}); err != nil {
			return 0, dberrors.BackStore("failed to register table "+t, err)
		}
	}
	return version, nil
}

func (s *Store) SetStoredVersion(ctx context.Context, version uint64) error {
	err := s.db.Update(func(txn *bdg.Txn) error {
		return txn.Set([]byte(keyVersion), backstore.RowKey(version))
	})
	if err != nil {
		return dberrors.BackStore("failed to persist schema version", err)
	}
	return nil
}

func (s *Store) CreateTx(ctx context.Context, mode backstore.TxMode, scope []string) (backstore.Tx, error) {
	txn := s.db.NewTransaction(mode == backstore.ReadWrite)
	return &tx{db: s.db, txn: txn, mode: mode}, nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return dberrors.BackStore("failed to close badger database", err)
	}
	return nil
}

type tx struct {
	db   *bdg.DB
	txn  *bdg.Txn
	mode backstore.TxMode
}

func (t *tx) ObjectStore(table string) backstore.ObjectStore {
	return &objectStore{tx: t, table: table}
}

func (t *tx) Commit() error {
	if err := t.txn.Commit(); err != nil {
		return dberrors.BackStore("failed to commit transaction", err)
	}
	return nil
}

func (t *tx) Abort() error {
	t.txn.Discard()
	return nil
}

type objectStore struct {
	tx    *tx
	table string
}

func (o *objectStore) Get(key []byte) ([]byte, error) {
	item, err := o.tx.txn.Get(rowKey(o.table, key))
	if err == bdg.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, dberrors.BackStore("failed to read row", err)
	}
	var out []byte
	err = item.Value(func(val []byte) error {
		out = append([]byte(nil), val...)
		return nil
	})
	if err != nil {
		return nil, dberrors.BackStore("failed to copy row value", err)
	}
	return out, nil
}

func (o *objectStore) Put(key, value []byte) error {
	if o.tx.mode != backstore.ReadWrite {
		return dberrors.NotSupported("write on a read-only transaction")
	}
	if err := o.tx.txn.Set(rowKey(o.table, key), value); err != nil {
		return dberrors.BackStore("failed to write row", err)
	}
	return nil
}

func (o *objectStore) Delete(key []byte) error {
	if o.tx.mode != backstore.ReadWrite {
		return dberrors.NotSupported("write on a read-only transaction")
	}
	if err := o.tx.txn.Delete(rowKey(o.table, key)); err != nil {
		return dberrors.BackStore("failed to delete row", err)
	}
	return nil
}

func (o *objectStore) OpenCursor(start []byte) (backstore.Cursor, error) {
	it := o.tx.txn.NewIterator(bdg.DefaultIteratorOptions)
	prefix := rowPrefix(o.table)
	seek := prefix
	if start != nil {
		seek = append(append([]byte(nil), prefix...), start...)
	}
	it.Seek(seek)
	return &cursor{it: it, prefix: prefix, started: false}, nil
}

func (o *objectStore) Last() ([]byte, bool, error) {
	it := o.tx.txn.NewIterator(bdg.IteratorOptions{Reverse: true})
	defer it.Close()
	prefix := rowPrefix(o.table)
	seekLast := append(append([]byte(nil), prefix...), 0xFF)
	it.Seek(seekLast)
	for ; it.ValidForPrefix(prefix); it.Next() {
		key := it.Item().KeyCopy(nil)
		return append([]byte(nil), key[len(prefix):]...), true, nil
	}
	return nil, false, nil
}

type cursor struct {
	it      *bdg.Iterator
	prefix  []byte
	started bool
}

func (c *cursor) Next() bool {
	if !c.started {
		c.started = true
	} else {
		c.it.Next()
	}
	return c.it.ValidForPrefix(c.prefix)
}

func (c *cursor) Key() []byte {
	key := c.it.Item().KeyCopy(nil)
	return key[len(c.prefix):]
}

func (c *cursor) Value() []byte {
	var out []byte
	_ = c.it.Item().Value(func(val []byte) error {
		out = append([]byte(nil), val...)
		return nil
	})
	return out
}

func (c *cursor) Close() error {
	c.it.Close()
	return nil
}
