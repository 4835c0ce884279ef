package badger

import (
	"context"
	"testing"
	"time"

	bg "github.com/dgraph-io/badger/v4"
	"github.com/kasuganosora/docstore/pkg/document"
	"github.com/kasuganosora/docstore/pkg/kv"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *bg.DB {
	t.Helper()
	opts := bg.DefaultOptions("").WithInMemory(true).WithLoggingLevel(bg.ERROR)
	db, err := bg.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStore_LivePutGetDelete(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db, "testdb", "widgets", nil)
	ctx := context.Background()

	doc := document.Document{"id": "w1", document.FieldRev: "1-aaaa", document.FieldLastWriteAt: int64(100)}
	require.NoError(t, store.Live().BulkPut(ctx, []string{"w1"}, []document.Document{doc}))

	got, err := store.Live().BulkGet(ctx, []string{"w1", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "1-aaaa", got[0][document.FieldRev])
	require.Nil(t, got[1])

	require.NoError(t, store.Live().BulkDelete(ctx, []string{"w1"}))
	got, err = store.Live().BulkGet(ctx, []string{"w1"})
	require.NoError(t, err)
	require.Nil(t, got[0])
}

func TestStore_RangeByWriteTime(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db, "testdb", "widgets", nil)
	ctx := context.Background()

	docs := []document.Document{
		{"id": "a", document.FieldLastWriteAt: int64(10)},
		{"id": "b", document.FieldLastWriteAt: int64(20)},
		{"id": "c", document.FieldLastWriteAt: int64(30)},
	}
	require.NoError(t, store.Live().BulkPut(ctx, []string{"a", "b", "c"}, docs))

	result, err := store.Live().RangeByWriteTime(ctx, kv.RangeOptions{Above: 10, HasAbove: true})
	require.NoError(t, err)
	require.Len(t, result, 2)
	require.Equal(t, "b", result[0]["id"])
	require.Equal(t, "c", result[1]["id"])

	result, err = store.Live().RangeByWriteTime(ctx, kv.RangeOptions{Reverse: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.Equal(t, "c", result[0]["id"])
}

func TestStore_ChangesMetaAppendIsGapFree(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db, "testdb", "widgets", nil)
	ctx := context.Background()

	seqs := make([]int64, 0, 5)
	for i := 0; i < 5; i++ {
		seq, err := store.ChangesMeta().Append(ctx, "doc-x")
		require.NoError(t, err)
		seqs = append(seqs, seq)
	}
	for i, s := range seqs {
		require.Equal(t, int64(i+1), s)
	}

	entries, last, err := store.ChangesMeta().Range(ctx, 2, kv.DirectionAfter, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, int64(3), entries[0].Sequence)
	require.Equal(t, int64(5), last)
}

func TestStore_ChangesMetaRangeBefore(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db, "testdb", "widgets", nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := store.ChangesMeta().Append(ctx, "doc-x")
		require.NoError(t, err)
	}

	entries, last, err := store.ChangesMeta().Range(ctx, 3, kv.DirectionBefore, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, int64(2), entries[0].Sequence)
	require.Equal(t, int64(1), entries[1].Sequence)
	require.Equal(t, int64(2), last) // "before": lastSequence is the first (nearest-to-since) entry
}

func TestStore_TransactCommitsAllThreeTables(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db, "testdb", "widgets", nil)
	ctx := context.Background()

	err := store.Transact(ctx, func(tx kv.Tx) error {
		if err := tx.Live().BulkPut(ctx, []string{"w1"}, []document.Document{{"id": "w1", document.FieldLastWriteAt: int64(1)}}); err != nil {
			return err
		}
		_, err := tx.ChangesMeta().Append(ctx, "w1")
		return err
	})
	require.NoError(t, err)

	got, err := store.Live().BulkGet(ctx, []string{"w1"})
	require.NoError(t, err)
	require.NotNil(t, got[0])

	entries, _, err := store.ChangesMeta().Range(ctx, 0, kv.DirectionAfter, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestStore_TransactRollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db, "testdb", "widgets", nil)
	ctx := context.Background()

	sentinel := document.NewErrShouldNotHappen("w1", "forced failure")
	err := store.Transact(ctx, func(tx kv.Tx) error {
		if err := tx.Live().BulkPut(ctx, []string{"w1"}, []document.Document{{"id": "w1"}}); err != nil {
			return err
		}
		return sentinel
	})
	require.Error(t, err)

	got, err := store.Live().BulkGet(ctx, []string{"w1"})
	require.NoError(t, err)
	require.Nil(t, got[0])
}

func TestOpen_StartsAndStopsGCLoop(t *testing.T) {
	db := openTestDB(t)
	store := Open(db, "testdb", "widgets", nil, WithGCInterval(time.Millisecond))
	require.NotNil(t, store.gc)
	require.True(t, store.gc.running)
	require.NoError(t, store.Close())
	require.False(t, store.gc.running)
}

func TestOpen_WithGCIntervalZeroDisablesLoop(t *testing.T) {
	db := openTestDB(t)
	store := Open(db, "testdb", "widgets", nil, WithGCInterval(0))
	require.Nil(t, store.gc)
	require.NoError(t, store.Close())
}

func TestStore_ClearRemovesRowsAndIndex(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db, "testdb", "widgets", nil)
	ctx := context.Background()

	require.NoError(t, store.Live().BulkPut(ctx, []string{"a", "b"}, []document.Document{
		{"id": "a", document.FieldLastWriteAt: int64(1)},
		{"id": "b", document.FieldLastWriteAt: int64(2)},
	}))
	require.NoError(t, store.Live().Clear(ctx))

	got, err := store.Live().BulkGet(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.Nil(t, got[0])
	require.Nil(t, got[1])

	result, err := store.Live().RangeByWriteTime(ctx, kv.RangeOptions{})
	require.NoError(t, err)
	require.Empty(t, result)
}
