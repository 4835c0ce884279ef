// Package writer implements the pure write categorizer: given the
// collection's current state and a batch of write rows, it decides which
// documents move where, which ids become part of the change feed, and
// which rows conflict. It touches no storage and reads no clock — callers
// supply per-row timestamps so the function stays deterministic and
// testable.
package writer

import (
	"fmt"

	"github.com/kasuganosora/docstore/pkg/document"
	"github.com/kasuganosora/docstore/pkg/revision"
)

// Operation identifies the kind of change a ChangeEvent represents.
type Operation string

const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// ChangeEvent is one entry of a published EventBulk.
type ChangeEvent struct {
	ID        string
	Operation Operation
	Previous  document.Document // nil for a fresh insert
	Doc       document.Document // nil for a delete
	StartTime int64
	EndTime   int64 // stamped by the bulk write engine after commit
}

// WriteRow is one input to bulkWrite: the caller's intended new document
// body and, optionally, the revision the caller believes is currently
// stored (used for optimistic-conflict detection).
type WriteRow struct {
	Document document.Document
	Previous document.Document
}

// PutRow pairs a document with its already-resolved primary key, so the
// substrate never has to re-derive an id from a document body (which
// would only work for the literal field name "id", not a compound or
// renamed primary-key path).
type PutRow struct {
	ID  string
	Doc document.Document
}

// CategorizedWrites is the categorizer's pure output: what the bulk write
// engine must do to the substrate, and what it must publish afterward.
type CategorizedWrites struct {
	PutLive       []PutRow
	RemoveLive    []string
	PutDeleted    []PutRow
	RemoveDeleted []string
	ChangeIDs     []string
	Events        []ChangeEvent
	Errors        map[string]error
}

func newCategorizedWrites(n int) *CategorizedWrites {
	return &CategorizedWrites{
		PutLive:       make([]PutRow, 0, n),
		RemoveLive:    make([]string, 0),
		PutDeleted:    make([]PutRow, 0, n),
		RemoveDeleted: make([]string, 0),
		ChangeIDs:     make([]string, 0, n),
		Events:        make([]ChangeEvent, 0, n),
		Errors:        make(map[string]error),
	}
}

// CategorizeBulkWrite applies the client-write categorization rules to
// rows against current (the pre-read state, keyed by document id).
// startTimes[i] is the timestamp assigned to rows[i]'s $lastWriteAt and
// ChangeEvent.StartTime — captured once per row by the caller before the
// transaction.
//
// A non-nil error means a row's primary key could not be resolved, a
// stored revision could not be parsed, or a row's categorization fell
// through every defined transition (ErrShouldNotHappen) — and the caller
// must abort the whole transaction. Per-row conflicts never produce this
// error; they are collected in the returned CategorizedWrites.Errors
// instead.
func CategorizeBulkWrite(pkPath []string, current map[string]document.Document, rows []WriteRow, startTimes []int64) (*CategorizedWrites, error) {
	out := newCategorizedWrites(len(rows))

	for i, row := range rows {
		st := startTimes[i]
		newDoc := row.Document

		id, err := document.ExtractID(newDoc, pkPath)
		if err != nil {
			return nil, fmt.Errorf("writer: row %d: %w", i, err)
		}

		existing, hasExisting := current[id]

		if !hasExisting {
			categorizeInsert(out, id, newDoc, st)
			continue
		}

		if err := categorizeAgainstExisting(out, id, existing, row, st); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func categorizeInsert(out *CategorizedWrites, id string, newDoc document.Document, st int64) {
	rev := revision.New(1, revision.Hash(newDoc))
	stamped := newDoc.WithRev(rev).WithLastWriteAt(st)

	if !newDoc.Deleted() {
		out.PutLive = append(out.PutLive, PutRow{ID: id, Doc: stamped})
		out.Events = append(out.Events, ChangeEvent{
			ID:        id,
			Operation: OpInsert,
			Previous:  nil,
			Doc:       stamped.StripPrivate(),
			StartTime: st,
		})
	} else {
		out.PutDeleted = append(out.PutDeleted, PutRow{ID: id, Doc: stamped})
		// Inserting an already-tombstoned document replicates via
		// changes-meta only, never broadcast on the live change stream.
	}
	out.ChangeIDs = append(out.ChangeIDs, id)
}

func categorizeAgainstExisting(out *CategorizedWrites, id string, existing document.Document, row WriteRow, st int64) error {
	newDoc := row.Document
	prev := row.Previous

	var effectivePrev document.Document
	switch {
	case prev == nil && existing.Deleted():
		// "existing, deleted | previous missing | treat previous := existing
		// and continue" — the resurrect-a-tombstone path.
		effectivePrev = existing
	case prev == nil:
		out.Errors[id] = document.NewErrConflict(id, "missing previous revision")
		return nil
	case prev.Rev() != existing.Rev():
		out.Errors[id] = document.NewErrConflict(id, "previous revision does not match stored revision")
		return nil
	default:
		effectivePrev = prev
	}

	height, err := revision.Height(existing.Rev())
	if err != nil {
		return fmt.Errorf("writer: document %q: %w", id, err)
	}
	newRev := revision.New(height+1, revision.Hash(newDoc))
	stamped := newDoc.WithRev(newRev).WithLastWriteAt(st)

	prevDeleted := effectivePrev.Deleted()
	newDeleted := newDoc.Deleted()

	switch {
	case prevDeleted && !newDeleted:
		// resurrect: live attains it back, deleted loses it.
		out.PutLive = append(out.PutLive, PutRow{ID: id, Doc: stamped})
		out.RemoveDeleted = append(out.RemoveDeleted, id)
		out.Events = append(out.Events, ChangeEvent{
			ID:        id,
			Operation: OpInsert,
			Previous:  nil,
			Doc:       stamped.StripPrivate(),
			StartTime: st,
		})
	case !prevDeleted && !newDeleted:
		out.PutLive = append(out.PutLive, PutRow{ID: id, Doc: stamped})
		out.Events = append(out.Events, ChangeEvent{
			ID:        id,
			Operation: OpUpdate,
			Previous:  effectivePrev.StripPrivate(),
			Doc:       stamped.StripPrivate(),
			StartTime: st,
		})
	case !prevDeleted && newDeleted:
		out.PutDeleted = append(out.PutDeleted, PutRow{ID: id, Doc: stamped})
		out.RemoveLive = append(out.RemoveLive, id)
		// the previous attached to a DELETE event carries _rev
		// rewritten to the new tombstone revision.
		rewrittenPrev := effectivePrev.WithRev(newRev)
		out.Events = append(out.Events, ChangeEvent{
			ID:        id,
			Operation: OpDelete,
			Previous:  rewrittenPrev.StripPrivate(),
			Doc:       nil,
			StartTime: st,
		})
	default:
		// prevDeleted && newDeleted: re-deleting an already-deleted
		// document against a matching previous has no defined transition.
		return document.NewErrShouldNotHappen(id, "delete of an already-deleted document with a matching previous revision")
	}

	out.ChangeIDs = append(out.ChangeIDs, id)
	return nil
}
