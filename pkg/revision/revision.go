// Package revision implements the "<height>-<hash>" revision codec: parsing,
// formatting, content hashing, and the ordering rule used by
// bulkAddRevisions.
package revision

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kasuganosora/docstore/pkg/document"
)

// Revision is a parsed "<height>-<hash>" string.
type Revision struct {
	Height int
	Hash   string
}

// String formats the revision back to its canonical "<height>-<hash>" form.
func (r Revision) String() string {
	return strconv.Itoa(r.Height) + "-" + r.Hash
}

// Parse splits "H-Hash" into its height and hash components.
func Parse(rev string) (Revision, error) {
	idx := strings.IndexByte(rev, '-')
	if idx <= 0 || idx == len(rev)-1 {
		return Revision{}, fmt.Errorf("revision: malformed revision %q", rev)
	}
	height, err := strconv.Atoi(rev[:idx])
	if err != nil || height <= 0 {
		return Revision{}, fmt.Errorf("revision: malformed height in %q", rev)
	}
	return Revision{Height: height, Hash: rev[idx+1:]}, nil
}

// Height returns only the height component of "H-Hash".
func Height(rev string) (int, error) {
	r, err := Parse(rev)
	if err != nil {
		return 0, err
	}
	return r.Height, nil
}

// New formats a revision string from an explicit height and hash.
func New(height int, hash string) string {
	return Revision{Height: height, Hash: hash}.String()
}

// excludedFields never contribute to the content hash: they are engine
// metadata, not document content.
var excludedFields = map[string]bool{
	document.FieldRev:         true,
	document.FieldMeta:        true,
	document.FieldAttachments: true,
	document.FieldLastWriteAt: true,
}

// Hash computes a stable content hash of doc, excluding _rev, _meta,
// _attachments, and $lastWriteAt. It is a truncated MD5 (first 16 hex
// chars) over a canonical, field-sorted JSON encoding — collision
// resistance is not required, only stability for identical content
// across reruns.
func Hash(doc document.Document) string {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		if excludedFields[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	canonical := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		canonical[k] = doc[k]
	}

	// The field order of the encoding comes from json.Marshal, which
	// writes map keys in sorted order; the sorted key list above only
	// selects which fields are hashed.
	buf, _ := json.Marshal(canonical)

	sum := md5.Sum(buf)
	return hex.EncodeToString(sum[:])[:16]
}

// Less reports whether a sorts strictly before b under the ordering used by
// bulkAddRevisions: height ascending, then hash lexicographically ascending
// on ties.
func Less(a, b Revision) bool {
	if a.Height != b.Height {
		return a.Height < b.Height
	}
	return a.Hash < b.Hash
}

// Equal reports whether a and b are the same revision.
func Equal(a, b Revision) bool {
	return a.Height == b.Height && a.Hash == b.Hash
}

// Dominates reports whether incoming strictly outranks current under the
// (height, hash) ordering — the rule bulkAddRevisions uses to decide
// whether to apply a remote document.
func Dominates(incoming, current Revision) bool {
	return Less(current, incoming)
}
