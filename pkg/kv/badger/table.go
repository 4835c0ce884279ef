package badger

import (
	"context"
	"encoding/binary"

	bg "github.com/dgraph-io/badger/v4"
	"github.com/kasuganosora/docstore/pkg/document"
	"github.com/kasuganosora/docstore/pkg/kv"
)

// The functions in this file operate directly against a *badger.Txn. Both
// the transactional view (txTable, used inside Store.Transact) and the
// standalone view (store.Live()/Deleted()/ChangesMeta(), used by read
// paths and by remove()) delegate to them — the only difference is
// whether the *badger.Txn is supplied by the caller or opened fresh per
// call.

func bulkGet(txn *bg.Txn, ks keySpace, table string, codec rowCodec, ids []string) ([]document.Document, error) {
	out := make([]document.Document, len(ids))
	for i, id := range ids {
		item, err := txn.Get(ks.rowKey(table, id))
		if err == bg.ErrKeyNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		var doc document.Document
		if err := item.Value(func(val []byte) error {
			d, derr := codec.Decode(val)
			doc = d
			return derr
		}); err != nil {
			return nil, err
		}
		out[i] = doc
	}
	return out, nil
}

func bulkPut(txn *bg.Txn, ks keySpace, table string, codec rowCodec, ids []string, docs []document.Document) error {
	for i, doc := range docs {
		id := ids[i]
		// Drop the row being replaced together with its ts/ index entry,
		// so every stored row keeps exactly one index entry.
		if err := bulkDelete(txn, ks, table, []string{id}); err != nil {
			return err
		}
		data, err := codec.Encode(doc)
		if err != nil {
			return err
		}
		if err := txn.Set(ks.rowKey(table, id), data); err != nil {
			return err
		}
		ms := writeTimeOf(doc)
		if err := txn.Set(ks.tsKey(table, ms, id), []byte(id)); err != nil {
			return err
		}
	}
	return nil
}

func bulkDelete(txn *bg.Txn, ks keySpace, table string, ids []string) error {
	for _, id := range ids {
		item, err := txn.Get(ks.rowKey(table, id))
		if err == bg.ErrKeyNotFound {
			continue
		}
		if err != nil {
			return err
		}
		var ms int64
		if err := item.Value(func(val []byte) error {
			var codec rowCodec
			doc, derr := codec.Decode(val)
			if derr != nil {
				return derr
			}
			ms = writeTimeOf(doc)
			return nil
		}); err != nil {
			return err
		}
		if err := txn.Delete(ks.rowKey(table, id)); err != nil {
			return err
		}
		if err := txn.Delete(ks.tsKey(table, ms, id)); err != nil {
			return err
		}
	}
	return nil
}

func clearPrefix(txn *bg.Txn, prefix []byte) error {
	opts := bg.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		key := make([]byte, len(it.Item().Key()))
		copy(key, it.Item().Key())
		keys = append(keys, key)
	}
	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func rangeByWriteTime(txn *bg.Txn, ks keySpace, table string, codec rowCodec, opts kv.RangeOptions) ([]document.Document, error) {
	prefix := ks.tsPrefix(table)

	it := txn.NewIterator(bg.IteratorOptions{Prefix: prefix, Reverse: opts.Reverse, PrefetchValues: false})
	defer it.Close()

	var ids []string
	if opts.Reverse {
		seekKey := append(append([]byte{}, prefix...), 0xFF)
		if opts.HasBelow {
			seekKey = ks.tsKey(table, opts.Below, "")
			// Seek to just before the below bound (exclusive): the badger
			// reverse iterator seeks to the first key <= seekKey, so back
			// off by walking past equal timestamps with no id suffix.
		}
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			ms, id, ok := parseTSKey(ks, table, it.Item().Key())
			if !ok {
				continue
			}
			if opts.HasBelow && ms >= opts.Below {
				continue
			}
			if opts.HasAbove && ms <= opts.Above {
				break
			}
			ids = append(ids, id)
			if opts.Limit > 0 && len(ids) >= opts.Limit {
				break
			}
		}
	} else {
		seekKey := prefix
		if opts.HasAbove {
			seekKey = ks.tsKey(table, opts.Above+1, "")
		}
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			ms, id, ok := parseTSKey(ks, table, it.Item().Key())
			if !ok {
				continue
			}
			if opts.HasAbove && ms <= opts.Above {
				continue
			}
			if opts.HasBelow && ms >= opts.Below {
				break
			}
			ids = append(ids, id)
			if opts.Limit > 0 && len(ids) >= opts.Limit {
				break
			}
		}
	}

	if len(ids) == 0 {
		return nil, nil
	}
	return bulkGet(txn, ks, table, codec, ids)
}

func parseTSKey(ks keySpace, table string, key []byte) (ms int64, id string, ok bool) {
	prefix := ks.tsPrefix(table)
	if len(key) <= len(prefix) {
		return 0, "", false
	}
	rest := string(key[len(prefix):])
	// rest = "<20-digit-ms>/<id>"
	if len(rest) < 21 || rest[20] != '/' {
		return 0, "", false
	}
	ms, err := parsePaddedInt(rest[:20])
	if err != nil {
		return 0, "", false
	}
	return ms, rest[21:], true
}

func writeTimeOf(doc document.Document) int64 {
	switch v := doc[document.FieldLastWriteAt].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// changesMetaAppend assigns the next gap-free sequence by reading and
// incrementing a counter key within the same transaction: two concurrent
// transactions that both touch this key necessarily conflict at commit,
// which Store.Transact retries, so the counter never skips or repeats a
// value.
func changesMetaAppend(txn *bg.Txn, ks keySpace, id string) (int64, error) {
	counterKey := ks.chgSeqCounterKey()
	var next int64 = 1
	item, err := txn.Get(counterKey)
	if err == nil {
		if verr := item.Value(func(val []byte) error {
			next = int64(binary.BigEndian.Uint64(val)) + 1
			return nil
		}); verr != nil {
			return 0, verr
		}
	} else if err != bg.ErrKeyNotFound {
		return 0, err
	}

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(next))
	if err := txn.Set(counterKey, buf); err != nil {
		return 0, err
	}
	if err := txn.Set(ks.chgKey(next), []byte(id)); err != nil {
		return 0, err
	}
	return next, nil
}

func changesMetaRange(txn *bg.Txn, ks keySpace, since int64, direction kv.Direction, limit int) ([]kv.ChangeEntry, int64, error) {
	prefix := ks.chgPrefix()
	reverse := direction == kv.DirectionBefore

	it := txn.NewIterator(bg.IteratorOptions{Prefix: prefix, Reverse: reverse, PrefetchValues: true})
	defer it.Close()

	var entries []kv.ChangeEntry
	seekKey := ks.chgKey(since)
	if reverse {
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			seq, ok := parseChgKey(ks, it.Item().Key())
			if !ok || seq >= since {
				continue
			}
			id, err := itemString(it.Item())
			if err != nil {
				return nil, since, err
			}
			entries = append(entries, kv.ChangeEntry{Sequence: seq, ID: id})
			if limit > 0 && len(entries) >= limit {
				break
			}
		}
	} else {
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			seq, ok := parseChgKey(ks, it.Item().Key())
			if !ok || seq <= since {
				continue
			}
			id, err := itemString(it.Item())
			if err != nil {
				return nil, since, err
			}
			entries = append(entries, kv.ChangeEntry{Sequence: seq, ID: id})
			if limit > 0 && len(entries) >= limit {
				break
			}
		}
	}

	// For "after", the returned window is ascending, so the last entry
	// visited carries the largest sequence — the natural cursor for the
	// next call. For "before" the window is descending (closest to since
	// first), and the reported lastSequence is the *first* entry of that
	// descending list, not the smallest.
	last := since
	if len(entries) > 0 {
		if reverse {
			last = entries[0].Sequence
		} else {
			last = entries[len(entries)-1].Sequence
		}
	}
	return entries, last, nil
}

func parseChgKey(ks keySpace, key []byte) (int64, bool) {
	prefix := ks.chgPrefix()
	if len(key) <= len(prefix) {
		return 0, false
	}
	seq, err := parsePaddedInt(string(key[len(prefix):]))
	if err != nil {
		return 0, false
	}
	return seq, true
}

func itemString(item *bg.Item) (string, error) {
	var out string
	err := item.Value(func(val []byte) error {
		out = string(val)
		return nil
	})
	return out, err
}

func clearChangesMeta(txn *bg.Txn, ks keySpace) error {
	if err := clearPrefix(txn, ks.chgPrefix()); err != nil {
		return err
	}
	return txn.Delete(ks.chgSeqCounterKey())
}

var _ = context.Background // ctx is accepted by the kv interfaces for API
// symmetry with the rest of the module even though badger's own
// transaction API is synchronous and does not take one.
