package collection

import (
	"context"

	"github.com/kasuganosora/docstore/pkg/changefeed"
	"github.com/kasuganosora/docstore/pkg/document"
	"github.com/kasuganosora/docstore/pkg/kv"
	"github.com/kasuganosora/docstore/pkg/writer"
)

// BulkWriteResult is bulkWrite's return shape: per-id accepted documents
// and per-id conflict errors.
type BulkWriteResult struct {
	Success map[string]document.Document
	Error   map[string]error
}

// BulkWrite categorizes rows against current storage state and applies
// the accepted writes atomically.
func (c *Collection) BulkWrite(ctx context.Context, rows []writer.WriteRow) (*BulkWriteResult, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, document.NewErrEmptyBatch()
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		id, err := document.ExtractID(row.Document, c.primaryKey.path)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	startTimes := make([]int64, len(rows))
	for i := range rows {
		startTimes[i] = c.clock()
	}

	var categorized *writer.CategorizedWrites
	err := c.store.Transact(ctx, func(tx kv.Tx) error {
		current, err := readCurrentByID(ctx, tx, ids)
		if err != nil {
			return err
		}

		categorized, err = writer.CategorizeBulkWrite(c.primaryKey.path, current, rows, startTimes)
		if err != nil {
			return err
		}

		return applyCategorized(ctx, tx, categorized)
	})
	if err != nil {
		return nil, err
	}

	c.publishAndStamp(categorized)

	result := &BulkWriteResult{
		Success: make(map[string]document.Document, len(categorized.ChangeIDs)),
		Error:   categorized.Errors,
	}
	for _, ev := range categorized.Events {
		if ev.Doc != nil {
			result.Success[ev.ID] = ev.Doc
		}
	}
	// Tombstone inserts (insert of an already-_deleted document) produce
	// no event but are still an accepted write; surface them too.
	for _, id := range categorized.ChangeIDs {
		if _, ok := result.Success[id]; ok {
			continue
		}
		if _, isErr := result.Error[id]; isErr {
			continue
		}
		result.Success[id] = nil
	}
	return result, nil
}

// BulkAddRevisions applies remote revisions using revision-ordering
// rules. It never returns per-row errors: losing revisions are dropped
// silently.
func (c *Collection) BulkAddRevisions(ctx context.Context, docs []document.Document) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if len(docs) == 0 {
		return document.NewErrEmptyBatch()
	}

	ids := make([]string, len(docs))
	for i, doc := range docs {
		id, err := document.ExtractID(doc, c.primaryKey.path)
		if err != nil {
			return err
		}
		ids[i] = id
	}
	startTimes := make([]int64, len(docs))
	for i := range docs {
		startTimes[i] = c.clock()
	}

	var categorized *writer.CategorizedWrites
	err := c.store.Transact(ctx, func(tx kv.Tx) error {
		current, err := readCurrentByID(ctx, tx, ids)
		if err != nil {
			return err
		}

		categorized, err = writer.CategorizeBulkAddRevisions(c.primaryKey.path, current, docs, startTimes)
		if err != nil {
			return err
		}

		return applyCategorized(ctx, tx, categorized)
	})
	if err != nil {
		return err
	}

	c.publishAndStamp(categorized)
	return nil
}

// readCurrentByID looks up each id in live, then in deleted, preserving
// the caller's per-id lookup but returning a map (order does not matter
// for the categorizer, which consults it by id).
func readCurrentByID(ctx context.Context, tx kv.Tx, ids []string) (map[string]document.Document, error) {
	liveDocs, err := tx.Live().BulkGet(ctx, ids)
	if err != nil {
		return nil, err
	}
	var deletedDocs []document.Document
	out := make(map[string]document.Document, len(ids))
	for i, id := range ids {
		if liveDocs[i] != nil {
			out[id] = liveDocs[i]
		}
	}
	missing := make([]string, 0)
	for i, id := range ids {
		if liveDocs[i] == nil {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		deletedDocs, err = tx.Deleted().BulkGet(ctx, missing)
		if err != nil {
			return nil, err
		}
		for j, id := range missing {
			if deletedDocs[j] != nil {
				out[id] = deletedDocs[j]
			}
		}
	}
	return out, nil
}

// applyCategorized executes the four bulk substrate mutations and the
// changes-meta append concurrently inside the transaction body.
func applyCategorized(ctx context.Context, tx kv.Tx, cw *writer.CategorizedWrites) error {
	jobs := []func() error{
		func() error {
			if len(cw.PutLive) == 0 {
				return nil
			}
			return tx.Live().BulkPut(ctx, putRowIDs(cw.PutLive), putRowDocs(cw.PutLive))
		},
		func() error {
			if len(cw.RemoveLive) == 0 {
				return nil
			}
			return tx.Live().BulkDelete(ctx, cw.RemoveLive)
		},
		func() error {
			if len(cw.PutDeleted) == 0 {
				return nil
			}
			return tx.Deleted().BulkPut(ctx, putRowIDs(cw.PutDeleted), putRowDocs(cw.PutDeleted))
		},
		func() error {
			if len(cw.RemoveDeleted) == 0 {
				return nil
			}
			return tx.Deleted().BulkDelete(ctx, cw.RemoveDeleted)
		},
		func() error {
			if len(cw.ChangeIDs) == 0 {
				return nil
			}
			for _, id := range cw.ChangeIDs {
				if _, err := tx.ChangesMeta().Append(ctx, id); err != nil {
					return err
				}
			}
			return nil
		},
	}
	return runFanOut(jobs...)
}

// putRowIDs and putRowDocs split a writer.PutRow slice into the parallel
// id/document arrays kv.Table.BulkPut expects, so the substrate writes
// each document under its already-resolved primary key instead of
// re-deriving one from the document body.
func putRowIDs(rows []writer.PutRow) []string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids
}

func putRowDocs(rows []writer.PutRow) []document.Document {
	docs := make([]document.Document, len(rows))
	for i, r := range rows {
		docs[i] = r.Doc
	}
	return docs
}

// publishAndStamp stamps event.endTime outside the transaction and
// publishes the bulk, suppressing empty bulks.
func (c *Collection) publishAndStamp(cw *writer.CategorizedWrites) {
	if len(cw.Events) == 0 {
		return
	}
	end := c.clock()
	for i := range cw.Events {
		cw.Events[i].EndTime = end
	}
	c.publisher.Publish(changefeed.NewEventBulk(cw.Events))
}
