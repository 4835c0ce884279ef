package revision

import (
	"testing"

	"github.com/kasuganosora/docstore/pkg/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndString(t *testing.T) {
	r, err := Parse("12-abcdef0123456789")
	require.NoError(t, err)
	assert.Equal(t, 12, r.Height)
	assert.Equal(t, "abcdef0123456789", r.Hash)
	assert.Equal(t, "12-abcdef0123456789", r.String())
}

func TestParse_Malformed(t *testing.T) {
	cases := []string{"", "abc", "1-", "-abc", "0-abc"}
	for _, c := range cases {
		_, err := Parse(c)
		assert.Errorf(t, err, "expected error for %q", c)
	}
}

func TestHeight(t *testing.T) {
	h, err := Height("3-deadbeef")
	require.NoError(t, err)
	assert.Equal(t, 3, h)
}

func TestHash_ExcludesPrivateFields(t *testing.T) {
	a := document.Document{"id": "x", "v": 1, document.FieldRev: "1-aaa", document.FieldLastWriteAt: int64(1)}
	b := document.Document{"id": "x", "v": 1, document.FieldRev: "2-bbb", document.FieldLastWriteAt: int64(2)}
	assert.Equal(t, Hash(a), Hash(b), "hash must not depend on _rev or $lastWriteAt")
}

func TestHash_ExcludesAttachments(t *testing.T) {
	a := document.Document{"id": "x", "v": 1, document.FieldAttachments: map[string]interface{}{"f": "one"}}
	b := document.Document{"id": "x", "v": 1, document.FieldAttachments: map[string]interface{}{"f": "two"}}
	assert.Equal(t, Hash(a), Hash(b), "hash must not depend on _attachments")
}

func TestHash_Stable(t *testing.T) {
	doc := document.Document{"id": "x", "v": 1}
	assert.Equal(t, Hash(doc), Hash(doc))
}

func TestHash_DiffersOnContent(t *testing.T) {
	a := document.Document{"id": "x", "v": 1}
	b := document.Document{"id": "x", "v": 2}
	assert.NotEqual(t, Hash(a), Hash(b))
}

func TestLessAndDominates(t *testing.T) {
	low := Revision{Height: 2, Hash: "zzz"}
	high := Revision{Height: 4, Hash: "aaa"}
	assert.True(t, Less(low, high))
	assert.True(t, Dominates(high, low))
	assert.False(t, Dominates(low, high))

	tieA := Revision{Height: 3, Hash: "aaa"}
	tieB := Revision{Height: 3, Hash: "bbb"}
	assert.True(t, Less(tieA, tieB))
	assert.False(t, Equal(tieA, tieB))
	assert.True(t, Equal(tieA, tieA))
}
