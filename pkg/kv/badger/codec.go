package badger

import (
	"encoding/json"
	"fmt"

	"github.com/kasuganosora/docstore/pkg/document"
)

// rowCodec serializes documents to and from JSON, mirroring the teacher's
// RowCodec (pkg/resource/badger/row_codec.go) but working on
// document.Document instead of domain.Row.
type rowCodec struct{}

func (rowCodec) Encode(doc document.Document) ([]byte, error) {
	if doc == nil {
		return nil, nil
	}
	buf, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("badger: failed to encode document: %w", err)
	}
	return buf, nil
}

func (rowCodec) Decode(data []byte) (document.Document, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var doc document.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("badger: failed to decode document: %w", err)
	}
	return doc, nil
}
