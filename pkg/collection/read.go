package collection

import (
	"context"
	"sort"

	"github.com/kasuganosora/docstore/pkg/document"
	"github.com/kasuganosora/docstore/pkg/kv"
)

// FindDocumentsById looks up ids across live (and, if includeDeleted,
// deleted too), returning a map keyed by id with engine-private fields
// stripped. Missing ids are simply absent — no error.
func (c *Collection) FindDocumentsById(ctx context.Context, ids []string, includeDeleted bool) (map[string]document.Document, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	out := make(map[string]document.Document, len(ids))

	liveDocs, err := c.store.Live().BulkGet(ctx, ids)
	if err != nil {
		return nil, err
	}
	missing := make([]string, 0)
	for i, id := range ids {
		if liveDocs[i] != nil {
			out[id] = liveDocs[i].StripPrivate()
		} else {
			missing = append(missing, id)
		}
	}

	if includeDeleted && len(missing) > 0 {
		deletedDocs, err := c.store.Deleted().BulkGet(ctx, missing)
		if err != nil {
			return nil, err
		}
		for i, id := range missing {
			if deletedDocs[i] != nil {
				out[id] = deletedDocs[i].StripPrivate()
			}
		}
	}

	return out, nil
}

// QueryResult is Query's return shape.
type QueryResult struct {
	Documents []document.Document
}

// Query performs a full scan of live using q's matcher, sorts with q's
// comparator, and applies skip then limit. This is an unindexed scan by
// design: correctness is the contract, not performance.
func (c *Collection) Query(ctx context.Context, q PreparedQuery) (*QueryResult, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	all, err := c.store.Live().RangeByWriteTime(ctx, kv.RangeOptions{})
	if err != nil {
		return nil, err
	}

	matched := make([]document.Document, 0, len(all))
	for _, doc := range all {
		if q.Match == nil || q.Match(doc) {
			matched = append(matched, doc)
		}
	}

	if q.Sort != nil {
		sort.SliceStable(matched, func(i, j int) bool {
			return q.Sort(matched[i], matched[j]) < 0
		})
	}

	if q.Skip > 0 {
		if q.Skip >= len(matched) {
			matched = nil
		} else {
			matched = matched[q.Skip:]
		}
	}
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}

	stripped := make([]document.Document, len(matched))
	for i, doc := range matched {
		stripped[i] = doc.StripPrivate()
	}
	return &QueryResult{Documents: stripped}, nil
}

// ChangedDocumentsResult is GetChangedDocuments' return shape.
type ChangedDocumentsResult struct {
	ChangedIDs   []string
	LastSequence int64
}

// GetChangedDocuments queries the changes-meta table for entries relative
// to sinceSequence in the given direction, bounded by limit.
func (c *Collection) GetChangedDocuments(ctx context.Context, sinceSequence int64, direction kv.Direction, limit int) (*ChangedDocumentsResult, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	entries, last, err := c.store.ChangesMeta().Range(ctx, sinceSequence, direction, limit)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return &ChangedDocumentsResult{ChangedIDs: ids, LastSequence: last}, nil
}

// RangeByWriteTime exposes the $lastWriteAt secondary index read-only, for
// an external cleanup driver that reaps stale tombstones or live rows on
// its own schedule; no operation here queries it directly.
func (c *Collection) RangeByWriteTime(ctx context.Context, includeDeleted bool, opts kv.RangeOptions) ([]document.Document, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	table := c.store.Live()
	if includeDeleted {
		table = c.store.Deleted()
	}
	docs, err := table.RangeByWriteTime(ctx, opts)
	if err != nil {
		return nil, err
	}
	out := make([]document.Document, len(docs))
	for i, d := range docs {
		out[i] = d.StripPrivate()
	}
	return out, nil
}
