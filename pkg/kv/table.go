// Package kv defines the storage substrate contract the bulk write engine
// and the read paths are built against. The physical key-value store
// itself — the only concrete implementation shipped with the core lives
// in pkg/kv/badger — is an external collaborator; this package exists so
// the rest of the module depends on an interface, not a storage engine.
package kv

import (
	"context"

	"github.com/kasuganosora/docstore/pkg/document"
)

// RangeOptions bounds a range query on a table's secondary index.
type RangeOptions struct {
	Above    int64
	HasAbove bool
	Below    int64
	HasBelow bool
	Reverse  bool
	Limit    int // 0 means unbounded
}

// Table is one of the live/deleted document tables: bulk point operations
// preserving caller-supplied order, plus a clear.
type Table interface {
	// BulkGet returns one entry per id, in the same order as ids. A missing
	// id yields a nil entry at that position — the caller must not treat a
	// missing id as an error.
	BulkGet(ctx context.Context, ids []string) ([]document.Document, error)
	// BulkPut writes docs, with ids[i] giving the already-resolved primary
	// key of docs[i]. The table never derives an id from the document body
	// itself, so it works the same whether the collection's primary key is
	// the literal field "id" or a compound key.
	BulkPut(ctx context.Context, ids []string, docs []document.Document) error
	BulkDelete(ctx context.Context, ids []string) error
	Clear(ctx context.Context) error
}

// RangeTable adds a $lastWriteAt secondary-index range query: ordered by
// write time, optionally bounded above/below, optionally reversed,
// optionally limited.
type RangeTable interface {
	Table
	RangeByWriteTime(ctx context.Context, opts RangeOptions) ([]document.Document, error)
}

// ChangeEntry is one row of the changes-meta log.
type ChangeEntry struct {
	Sequence int64
	ID       string
}

// ChangesMetaTable is the append-only changes-meta log: Append assigns the
// next gap-free sequence number to id, Range reads a contiguous window in
// either direction.
type ChangesMetaTable interface {
	Append(ctx context.Context, id string) (sequence int64, err error)
	// Range returns entries after/before sinceSequence (exclusive),
	// bounded by limit (0 means unbounded), and a cursor sequence: for
	// "after" the last (largest) entry returned, for "before" the first
	// entry of the descending list (the one nearest sinceSequence) —
	// sinceSequence itself if the result is empty.
	Range(ctx context.Context, sinceSequence int64, direction Direction, limit int) ([]ChangeEntry, int64, error)
	Clear(ctx context.Context) error
}

// Direction selects which way getChangedDocuments traverses the
// changes-meta log.
type Direction string

const (
	DirectionAfter  Direction = "after"
	DirectionBefore Direction = "before"
)

// Tx is the view of the three tables bound to one active transaction: all
// reads and writes issued through it participate in the same atomic
// commit.
type Tx interface {
	Live() RangeTable
	Deleted() RangeTable
	ChangesMeta() ChangesMetaTable
}

// Store is the multi-table transaction primitive: Transact runs fn
// against a fresh read-write transaction and commits it atomically (or
// aborts atomically on error/panic). Live, Deleted, and ChangesMeta also
// work standalone for read paths that don't need transactional isolation
// across all three tables at once.
type Store interface {
	Transact(ctx context.Context, fn func(Tx) error) error
	Live() RangeTable
	Deleted() RangeTable
	ChangesMeta() ChangesMetaTable
	Close() error
}
