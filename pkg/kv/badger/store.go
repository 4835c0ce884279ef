// Package badger adapts github.com/dgraph-io/badger/v4 to the pkg/kv
// contract: one Store per (database, collection) pair, backed by a shared
// *badger.DB keyed by prefix (see keys.go).
package badger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	bg "github.com/dgraph-io/badger/v4"
	"github.com/kasuganosora/docstore/pkg/document"
	"github.com/kasuganosora/docstore/pkg/kv"
)

// maxTransactRetries bounds the optimistic-conflict retry loop. Badger
// resolves write skew at commit time (ErrConflict), not at acquire time,
// so a losing transaction must redo its reads and writes against a fresh
// snapshot — this is the substrate's job, not the categorizer's.
const maxTransactRetries = 100

// defaultGCInterval is how often Open runs badger's value-log GC sweep
// for a Store that did not opt out with WithGCInterval(0).
const defaultGCInterval = 10 * time.Minute

// Store is a pkg/kv.Store backed by one badger.DB, scoped to a single
// (database, collection) key prefix.
type Store struct {
	db     *bg.DB
	ks     keySpace
	codec  rowCodec
	logger *log.Logger
	gc     *GCManager
}

// Option configures a Store opened via Open.
type Option func(*storeOptions)

type storeOptions struct {
	gcInterval   time.Duration
	discardRatio float64
}

// WithGCInterval overrides the value-log GC sweep period. A zero interval
// disables the background GC loop entirely.
func WithGCInterval(d time.Duration) Option {
	return func(o *storeOptions) { o.gcInterval = d }
}

// NewStore returns a Store scoped to database/collection within db, with
// no background maintenance loop. The caller owns db and must Close it
// after all its Stores are closed. Prefer Open for long-lived stores that
// should reclaim value-log space on a schedule.
func NewStore(db *bg.DB, database, collection string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{
		db:     db,
		ks:     newKeySpace(database, collection),
		logger: logger,
	}
}

// Open returns a Store scoped to database/collection within db and starts
// its background value-log GC loop (stopped by Close). The caller still
// owns db and must Close it only after every Store opened against it has
// itself been closed.
func Open(db *bg.DB, database, collection string, logger *log.Logger, opts ...Option) *Store {
	o := storeOptions{gcInterval: defaultGCInterval, discardRatio: 0.5}
	for _, opt := range opts {
		opt(&o)
	}

	s := NewStore(db, database, collection, logger)
	if o.gcInterval > 0 {
		s.gc = NewGCManager(db, o.gcInterval, o.discardRatio, s.logger)
		s.gc.Start()
	}
	return s
}

// Transact runs fn against a fresh read-write transaction, retrying on
// optimistic conflict until it commits or maxTransactRetries is spent.
func (s *Store) Transact(ctx context.Context, fn func(kv.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < maxTransactRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.db.Update(func(txn *bg.Txn) error {
			tx := &txImpl{txn: txn, ks: s.ks, codec: s.codec}
			return fn(tx)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, bg.ErrConflict) {
			lastErr = err
			continue
		}
		return err
	}
	return fmt.Errorf("badger: transaction did not commit after %d attempts: %w", maxTransactRetries, lastErr)
}

func (s *Store) Live() kv.RangeTable {
	return standaloneTable{store: s, table: liveTable}
}

func (s *Store) Deleted() kv.RangeTable {
	return standaloneTable{store: s, table: deletedTable}
}

func (s *Store) ChangesMeta() kv.ChangesMetaTable {
	return standaloneChangesMeta{store: s}
}

func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.Stop()
	}
	return nil // the *badger.DB itself is owned and closed by the caller.
}

// txImpl is the kv.Tx bound to one in-flight badger transaction.
type txImpl struct {
	txn   *bg.Txn
	ks    keySpace
	codec rowCodec
}

func (t *txImpl) Live() kv.RangeTable {
	return txTable{txn: t.txn, ks: t.ks, table: liveTable, codec: t.codec}
}

func (t *txImpl) Deleted() kv.RangeTable {
	return txTable{txn: t.txn, ks: t.ks, table: deletedTable, codec: t.codec}
}

func (t *txImpl) ChangesMeta() kv.ChangesMetaTable {
	return txChangesMeta{txn: t.txn, ks: t.ks}
}

// txTable is a kv.RangeTable bound to an in-flight *badger.Txn.
type txTable struct {
	txn   *bg.Txn
	ks    keySpace
	table string
	codec rowCodec
}

func (t txTable) BulkGet(ctx context.Context, ids []string) ([]document.Document, error) {
	return bulkGet(t.txn, t.ks, t.table, t.codec, ids)
}

func (t txTable) BulkPut(ctx context.Context, ids []string, docs []document.Document) error {
	return bulkPut(t.txn, t.ks, t.table, t.codec, ids, docs)
}

func (t txTable) BulkDelete(ctx context.Context, ids []string) error {
	return bulkDelete(t.txn, t.ks, t.table, ids)
}

func (t txTable) Clear(ctx context.Context) error {
	if err := clearPrefix(t.txn, t.ks.rowPrefix(t.table)); err != nil {
		return err
	}
	return clearPrefix(t.txn, t.ks.tsPrefix(t.table))
}

func (t txTable) RangeByWriteTime(ctx context.Context, opts kv.RangeOptions) ([]document.Document, error) {
	return rangeByWriteTime(t.txn, t.ks, t.table, t.codec, opts)
}

// txChangesMeta is a kv.ChangesMetaTable bound to an in-flight *badger.Txn.
type txChangesMeta struct {
	txn *bg.Txn
	ks  keySpace
}

func (c txChangesMeta) Append(ctx context.Context, id string) (int64, error) {
	return changesMetaAppend(c.txn, c.ks, id)
}

func (c txChangesMeta) Range(ctx context.Context, since int64, direction kv.Direction, limit int) ([]kv.ChangeEntry, int64, error) {
	return changesMetaRange(c.txn, c.ks, since, direction, limit)
}

func (c txChangesMeta) Clear(ctx context.Context) error {
	return clearChangesMeta(c.txn, c.ks)
}

// standaloneTable is a kv.RangeTable that opens its own view/update
// transaction per call, for read paths and for remove() that run outside
// of a bulk-write Transact.
type standaloneTable struct {
	store *Store
	table string
}

func (s standaloneTable) BulkGet(ctx context.Context, ids []string) ([]document.Document, error) {
	var out []document.Document
	err := s.store.db.View(func(txn *bg.Txn) error {
		docs, err := bulkGet(txn, s.store.ks, s.table, s.store.codec, ids)
		out = docs
		return err
	})
	return out, err
}

func (s standaloneTable) BulkPut(ctx context.Context, ids []string, docs []document.Document) error {
	return s.store.db.Update(func(txn *bg.Txn) error {
		return bulkPut(txn, s.store.ks, s.table, s.store.codec, ids, docs)
	})
}

func (s standaloneTable) BulkDelete(ctx context.Context, ids []string) error {
	return s.store.db.Update(func(txn *bg.Txn) error {
		return bulkDelete(txn, s.store.ks, s.table, ids)
	})
}

func (s standaloneTable) Clear(ctx context.Context) error {
	return s.store.db.Update(func(txn *bg.Txn) error {
		if err := clearPrefix(txn, s.store.ks.rowPrefix(s.table)); err != nil {
			return err
		}
		return clearPrefix(txn, s.store.ks.tsPrefix(s.table))
	})
}

func (s standaloneTable) RangeByWriteTime(ctx context.Context, opts kv.RangeOptions) ([]document.Document, error) {
	var out []document.Document
	err := s.store.db.View(func(txn *bg.Txn) error {
		docs, err := rangeByWriteTime(txn, s.store.ks, s.table, s.store.codec, opts)
		out = docs
		return err
	})
	return out, err
}

type standaloneChangesMeta struct {
	store *Store
}

func (s standaloneChangesMeta) Append(ctx context.Context, id string) (int64, error) {
	var seq int64
	err := s.store.db.Update(func(txn *bg.Txn) error {
		n, err := changesMetaAppend(txn, s.store.ks, id)
		seq = n
		return err
	})
	return seq, err
}

func (s standaloneChangesMeta) Range(ctx context.Context, since int64, direction kv.Direction, limit int) ([]kv.ChangeEntry, int64, error) {
	var entries []kv.ChangeEntry
	var last int64
	err := s.store.db.View(func(txn *bg.Txn) error {
		e, l, err := changesMetaRange(txn, s.store.ks, since, direction, limit)
		entries, last = e, l
		return err
	})
	return entries, last, err
}

func (s standaloneChangesMeta) Clear(ctx context.Context) error {
	return s.store.db.Update(func(txn *bg.Txn) error {
		return clearChangesMeta(txn, s.store.ks)
	})
}
