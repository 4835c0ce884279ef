package writer

import (
	"testing"

	"github.com/kasuganosora/docstore/pkg/document"
	"github.com/kasuganosora/docstore/pkg/revision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pk = []string{"id"}

func TestCategorize_InsertThenConflict(t *testing.T) {
	out, err := CategorizeBulkWrite(pk, map[string]document.Document{}, []WriteRow{
		{Document: document.Document{"id": "a", "v": 1, document.FieldDeleted: false}},
	}, []int64{100})
	require.NoError(t, err)
	require.Empty(t, out.Errors)
	require.Len(t, out.PutLive, 1)
	require.Len(t, out.Events, 1)
	assert.Equal(t, OpInsert, out.Events[0].Operation)
	assert.Nil(t, out.Events[0].Previous)

	stored := out.PutLive[0].Doc
	rev, err := revision.Parse(stored.Rev())
	require.NoError(t, err)
	assert.Equal(t, 1, rev.Height)

	// Re-issue the same row with no previous against the now-existing doc.
	current := map[string]document.Document{"a": stored}
	out2, err := CategorizeBulkWrite(pk, current, []WriteRow{
		{Document: document.Document{"id": "a", "v": 1, document.FieldDeleted: false}},
	}, []int64{101})
	require.NoError(t, err)
	require.Contains(t, out2.Errors, "a")
	var conflict *document.ErrConflict
	require.ErrorAs(t, out2.Errors["a"], &conflict)
	assert.Equal(t, 409, conflict.Status)
}

func TestCategorize_UpdateWithMatchingPrevious(t *testing.T) {
	existing := document.Document{"id": "a", "v": 1, document.FieldDeleted: false, document.FieldRev: "1-Ha"}
	current := map[string]document.Document{"a": existing}

	out, err := CategorizeBulkWrite(pk, current, []WriteRow{
		{
			Document: document.Document{"id": "a", "v": 2, document.FieldDeleted: false},
			Previous: document.Document{"id": "a", "v": 1, document.FieldRev: "1-Ha", document.FieldDeleted: false},
		},
	}, []int64{200})
	require.NoError(t, err)
	require.Empty(t, out.Errors)
	require.Len(t, out.Events, 1)
	assert.Equal(t, OpUpdate, out.Events[0].Operation)
	assert.Equal(t, 1, out.Events[0].Previous["v"])
	assert.Equal(t, 2, out.Events[0].Doc["v"])

	rev, err := revision.Parse(out.PutLive[0].Doc.Rev())
	require.NoError(t, err)
	assert.Equal(t, 2, rev.Height)
}

func TestCategorize_DeleteRewritesPreviousRev(t *testing.T) {
	existing := document.Document{"id": "a", "v": 2, document.FieldDeleted: false, document.FieldRev: "2-Hb"}
	current := map[string]document.Document{"a": existing}

	out, err := CategorizeBulkWrite(pk, current, []WriteRow{
		{
			Document: document.Document{"id": "a", "v": 2, document.FieldDeleted: true},
			Previous: document.Document{"id": "a", "v": 2, document.FieldRev: "2-Hb", document.FieldDeleted: false},
		},
	}, []int64{300})
	require.NoError(t, err)
	require.Len(t, out.Events, 1)
	ev := out.Events[0]
	assert.Equal(t, OpDelete, ev.Operation)
	assert.Nil(t, ev.Doc)
	require.Len(t, out.PutDeleted, 1)
	assert.Equal(t, out.PutDeleted[0].Doc.Rev(), ev.Previous.Rev(), "previous._rev is rewritten to the new tombstone revision")
	require.Len(t, out.RemoveLive, 1)
	assert.Equal(t, "a", out.RemoveLive[0])
}

func TestCategorize_ResurrectTombstone(t *testing.T) {
	tombstone := document.Document{"id": "a", "v": 2, document.FieldDeleted: true, document.FieldRev: "3-Hc"}
	current := map[string]document.Document{"a": tombstone}

	out, err := CategorizeBulkWrite(pk, current, []WriteRow{
		{Document: document.Document{"id": "a", "v": 3, document.FieldDeleted: false}},
	}, []int64{400})
	require.NoError(t, err)
	require.Empty(t, out.Errors)
	require.Len(t, out.Events, 1)
	assert.Equal(t, OpInsert, out.Events[0].Operation)
	assert.Nil(t, out.Events[0].Previous)
	require.Len(t, out.PutLive, 1)
	require.Len(t, out.RemoveDeleted, 1)
}

func TestCategorize_InsertAlreadyDeleted_NoEvent(t *testing.T) {
	out, err := CategorizeBulkWrite(pk, map[string]document.Document{}, []WriteRow{
		{Document: document.Document{"id": "a", document.FieldDeleted: true}},
	}, []int64{1})
	require.NoError(t, err)
	assert.Empty(t, out.Events)
	require.Len(t, out.PutDeleted, 1)
	assert.Equal(t, []string{"a"}, out.ChangeIDs, "still recorded in changes-meta")
}

func TestCategorize_MissingPreviousOnExisting_Conflicts(t *testing.T) {
	existing := document.Document{"id": "a", document.FieldRev: "1-Ha", document.FieldDeleted: false}
	current := map[string]document.Document{"a": existing}
	out, err := CategorizeBulkWrite(pk, current, []WriteRow{
		{Document: document.Document{"id": "a", "v": 9, document.FieldDeleted: false}},
	}, []int64{1})
	require.NoError(t, err)
	require.Contains(t, out.Errors, "a")
}

func TestCategorize_RedeleteTombstone_ShouldNotHappen(t *testing.T) {
	tombstone := document.Document{"id": "a", document.FieldRev: "2-Hb", document.FieldDeleted: true}
	current := map[string]document.Document{"a": tombstone}
	_, err := CategorizeBulkWrite(pk, current, []WriteRow{
		{
			Document: document.Document{"id": "a", document.FieldDeleted: true},
			Previous: document.Document{"id": "a", document.FieldRev: "2-Hb", document.FieldDeleted: true},
		},
	}, []int64{1})
	require.Error(t, err)
	var snh *document.ErrShouldNotHappen
	require.ErrorAs(t, err, &snh)
}

func TestCategorize_EventOrderMatchesInputOrder(t *testing.T) {
	out, err := CategorizeBulkWrite(pk, map[string]document.Document{}, []WriteRow{
		{Document: document.Document{"id": "a", document.FieldDeleted: false}},
		{Document: document.Document{"id": "b", document.FieldDeleted: false}},
		{Document: document.Document{"id": "c", document.FieldDeleted: false}},
	}, []int64{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, out.Events, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{out.Events[0].ID, out.Events[1].ID, out.Events[2].ID})
}

// Event count equals successful, non-tombstone-insert rows.
func TestCategorize_EventCountMatchesSuccessfulRows(t *testing.T) {
	tombstone := document.Document{"id": "b", document.FieldRev: "1-H", document.FieldDeleted: true}
	current := map[string]document.Document{"b": tombstone}
	out, err := CategorizeBulkWrite(pk, current, []WriteRow{
		{Document: document.Document{"id": "a", document.FieldDeleted: false}},       // insert -> event
		{Document: document.Document{"id": "b", document.FieldDeleted: false}},       // resurrect -> event
		{Document: document.Document{"id": "c", document.FieldDeleted: true}},        // absent+deleted -> no event
	}, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, out.Events, 2)
	assert.Len(t, out.ChangeIDs, 3)
}
