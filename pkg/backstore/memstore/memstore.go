// Package memstore is a pure in-memory backstore.Store, used by engine
// tests and by embedders that don't need durability. It satisfies exactly
// the same contract as backstore/badger so the runner and planner stay
// storage-agnostic.
package memstore

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/kasuganosora/rowwatch/pkg/backstore"
	"github.com/kasuganosora/rowwatch/pkg/dberrors"
)

type table struct {
	mu   sync.RWMutex
	rows map[string][]byte // string(key) -> value
}

// Store is the in-memory backstore.Store implementation.
type Store struct {
	mu      sync.Mutex
	tables  map[string]*table
	version uint64
}

func New() *Store {
	return &Store{tables: make(map[string]*table)}
}

func (s *Store) Open(ctx context.Context, tables []string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range tables {
		if _, ok := s.tables[name]; !ok {
			s.tables[name] = &table{rows: make(map[string][]byte)}
		}
	}
	return s.version, nil
}

func (s *Store) SetStoredVersion(ctx context.Context, version uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = version
	return nil
}

func (s *Store) CreateTx(ctx context.Context, mode backstore.TxMode, scope []string) (backstore.Tx, error) {
	s.mu.Lock()
	for _, name := range scope {
		if _, ok := s.tables[name]; !ok {
			s.tables[name] = &table{rows: make(map[string][]byte)}
		}
	}
	s.mu.Unlock()
	return &tx{store: s, mode: mode, stores: make(map[string]*objectStore)}, nil
}

func (s *Store) Close() error { return nil }

type write struct {
	key   []byte
	value []byte // nil marks a delete
}

type tx struct {
	store  *Store
	mode   backstore.TxMode
	stores map[string]*objectStore
}

func (t *tx) ObjectStore(name string) backstore.ObjectStore {
	if os, ok := t.stores[name]; ok {
		return os
	}
	t.store.mu.Lock()
	tb := t.store.tables[name]
	t.store.mu.Unlock()
	os := &objectStore{tx: t, table: tb, pending: make(map[string]*write)}
	t.stores[name] = os
	return os
}

func (t *tx) Commit() error {
	for _, os := range t.stores {
		os.table.mu.Lock()
		for k, w := range os.pending {
			if w.value == nil {
				delete(os.table.rows, k)
			} else {
				os.table.rows[k] = w.value
			}
		}
		os.table.mu.Unlock()
	}
	return nil
}

func (t *tx) Abort() error {
	for _, os := range t.stores {
		os.pending = nil
	}
	return nil
}

type objectStore struct {
	tx      *tx
	table   *table
	pending map[string]*write
}

func (o *objectStore) Get(key []byte) ([]byte, error) {
	if w, ok := o.pending[string(key)]; ok {
		if w.value == nil {
			return nil, nil
		}
		return append([]byte(nil), w.value...), nil
	}
	o.table.mu.RLock()
	v, ok := o.table.rows[string(key)]
	o.table.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (o *objectStore) Put(key, value []byte) error {
	if o.tx.mode != backstore.ReadWrite {
		return dberrors.NotSupported("write on a read-only transaction")
	}
	o.pending[string(key)] = &write{key: key, value: append([]byte(nil), value...)}
	return nil
}

func (o *objectStore) Delete(key []byte) error {
	if o.tx.mode != backstore.ReadWrite {
		return dberrors.NotSupported("write on a read-only transaction")
	}
	o.pending[string(key)] = &write{key: key, value: nil}
	return nil
}

// snapshot merges committed rows with this transaction's own pending
// writes, so a transaction observes its own prior writes.
func (o *objectStore) snapshot() map[string][]byte {
	o.table.mu.RLock()
	merged := make(map[string][]byte, len(o.table.rows))
	for k, v := range o.table.rows {
		merged[k] = v
	}
	o.table.mu.RUnlock()
	for k, w := range o.pending {
		if w.value == nil {
			delete(merged, k)
		} else {
			merged[k] = w.value
		}
	}
	return merged
}

func (o *objectStore) OpenCursor(start []byte) (backstore.Cursor, error) {
	merged := o.snapshot()
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lo := 0
	if start != nil {
		lo = sort.Search(len(keys), func(i int) bool { return keys[i] >= string(start) })
	}
	return &cursor{keys: keys[lo:], values: merged, pos: -1}, nil
}

func (o *objectStore) Last() ([]byte, bool, error) {
	merged := o.snapshot()
	var max []byte
	found := false
	for k := range merged {
		kb := []byte(k)
		if !found || bytes.Compare(kb, max) > 0 {
			max = kb
			found = true
		}
	}
	return max, found, nil
}

type cursor struct {
	keys   []string
	values map[string][]byte
	pos    int
}

func (c *cursor) Next() bool {
	c.pos++
	return c.pos < len(c.keys)
}

func (c *cursor) Key() []byte   { return []byte(c.keys[c.pos]) }
func (c *cursor) Value() []byte { return c.values[c.keys[c.pos]] }
func (c *cursor) Close() error  { return nil }
