package collection

import (
	"strings"

	"github.com/kasuganosora/docstore/pkg/document"
)

// PrimaryKey resolves a document's id from a schema's declared primary
// path, mirroring the teacher's PrimaryKeyGenerator.GenerateFromRow
// (pkg/resource/badger/key_encoding.go): a compound path is joined with
// "|" rather than parsed from a JSON schema, since schema parsing is an
// external collaborator this engine never sees.
type PrimaryKey struct {
	path []string
}

// NewPrimaryKey builds a resolver from a list of top-level field names. A
// single field is the common case; more than one models a compound key.
// Nested (dotted) paths are not resolved.
func NewPrimaryKey(path ...string) PrimaryKey {
	return PrimaryKey{path: path}
}

func (pk PrimaryKey) String() string {
	return strings.Join(pk.path, "|")
}

// Extract pulls the id out of doc per the configured path.
func (pk PrimaryKey) Extract(doc document.Document) (string, error) {
	return document.ExtractID(doc, pk.path)
}
