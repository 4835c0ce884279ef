package writer

import (
	"github.com/kasuganosora/docstore/pkg/document"
	"github.com/kasuganosora/docstore/pkg/revision"
)

// CategorizeBulkAddRevisions applies the remote-revision categorization
// rules to docs — already-formed documents carrying their own final _rev,
// as produced by another replica — against current (the pre-read state,
// keyed by document id). Unlike CategorizeBulkWrite, this path never
// produces conflict errors: a losing revision is simply dropped.
func CategorizeBulkAddRevisions(pkPath []string, current map[string]document.Document, docs []document.Document, startTimes []int64) (*CategorizedWrites, error) {
	out := newCategorizedWrites(len(docs))

	for i, incoming := range docs {
		st := startTimes[i]

		id, err := document.ExtractID(incoming, pkPath)
		if err != nil {
			return nil, err
		}

		existing, hasExisting := current[id]
		if !hasExisting {
			stamped := incoming.WithLastWriteAt(st)
			if !incoming.Deleted() {
				out.PutLive = append(out.PutLive, PutRow{ID: id, Doc: stamped})
			} else {
				out.PutDeleted = append(out.PutDeleted, PutRow{ID: id, Doc: stamped})
			}
			out.Events = append(out.Events, ChangeEvent{
				ID:        id,
				Operation: OpInsert,
				Previous:  nil,
				Doc:       stamped.StripPrivate(),
				StartTime: st,
			})
			out.ChangeIDs = append(out.ChangeIDs, id)
			continue
		}

		incomingRev, err := revision.Parse(incoming.Rev())
		if err != nil {
			return nil, err
		}
		existingRev, err := revision.Parse(existing.Rev())
		if err != nil {
			return nil, err
		}
		if !revision.Dominates(incomingRev, existingRev) {
			// Losing or equal revision: dropped silently, no event, no
			// changes-meta entry.
			continue
		}

		stamped := incoming.WithLastWriteAt(st)
		prevDeleted := existing.Deleted()
		newDeleted := incoming.Deleted()

		switch {
		case prevDeleted && !newDeleted:
			out.PutLive = append(out.PutLive, PutRow{ID: id, Doc: stamped})
			out.RemoveDeleted = append(out.RemoveDeleted, id)
			out.Events = append(out.Events, ChangeEvent{
				ID:        id,
				Operation: OpInsert,
				Previous:  nil,
				Doc:       stamped.StripPrivate(),
				StartTime: st,
			})
			out.ChangeIDs = append(out.ChangeIDs, id)
		case !prevDeleted && !newDeleted:
			out.PutLive = append(out.PutLive, PutRow{ID: id, Doc: stamped})
			out.Events = append(out.Events, ChangeEvent{
				ID:        id,
				Operation: OpUpdate,
				Previous:  existing.StripPrivate(),
				Doc:       stamped.StripPrivate(),
				StartTime: st,
			})
			out.ChangeIDs = append(out.ChangeIDs, id)
		case !prevDeleted && newDeleted:
			out.PutDeleted = append(out.PutDeleted, PutRow{ID: id, Doc: stamped})
			out.RemoveLive = append(out.RemoveLive, id)
			rewrittenPrev := existing.WithRev(incoming.Rev())
			out.Events = append(out.Events, ChangeEvent{
				ID:        id,
				Operation: OpDelete,
				Previous:  rewrittenPrev.StripPrivate(),
				Doc:       nil,
				StartTime: st,
			})
			out.ChangeIDs = append(out.ChangeIDs, id)
		default:
			// prevDeleted && newDeleted: tombstone payload update in
			// place. Emit no event and do not record in changes-meta —
			// this is the one accepted write that contributes neither.
			out.PutDeleted = append(out.PutDeleted, PutRow{ID: id, Doc: stamped})
		}
	}

	return out, nil
}
