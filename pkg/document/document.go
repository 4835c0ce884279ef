// Package document defines the engine-level document shape shared by the
// write categorizer, the bulk write engine, and the storage substrate.
package document

// Document is a loosely-typed document body. Field access mirrors the
// teacher's domain.Row (map[string]interface{}) convention rather than a
// generated struct, since the collection has no compiled schema.
type Document map[string]interface{}

// Well-known engine fields. Only $lastWriteAt and _meta are engine-private
// and removed from documents returned by a read path (see StripPrivate);
// _rev, _deleted and _attachments are returned as stored.
const (
	FieldRev          = "_rev"
	FieldDeleted      = "_deleted"
	FieldAttachments  = "_attachments"
	FieldLastWriteAt  = "$lastWriteAt"
	FieldMeta         = "_meta"
)

// Clone returns a shallow copy of d. Nested values are not deep-copied;
// callers that mutate nested maps/slices must copy those themselves.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Rev returns the document's revision string, or "" if unset.
func (d Document) Rev() string {
	if d == nil {
		return ""
	}
	s, _ := d[FieldRev].(string)
	return s
}

// WithRev returns a clone of d with _rev set to rev.
func (d Document) WithRev(rev string) Document {
	out := d.Clone()
	out[FieldRev] = rev
	return out
}

// Deleted reports the document's tombstone flag.
func (d Document) Deleted() bool {
	if d == nil {
		return false
	}
	b, _ := d[FieldDeleted].(bool)
	return b
}

// WithLastWriteAt returns a clone of d with $lastWriteAt stamped.
func (d Document) WithLastWriteAt(ms int64) Document {
	out := d.Clone()
	out[FieldLastWriteAt] = ms
	return out
}

// StripPrivate returns a clone of d with engine-private fields removed,
// suitable for returning from a read path (findDocumentsById, query,
// getChangedDocuments).
func (d Document) StripPrivate() Document {
	out := d.Clone()
	delete(out, FieldLastWriteAt)
	delete(out, FieldMeta)
	return out
}

// ExtractID resolves a document's primary key given a (possibly compound)
// primary-key path, the way an external schema's primaryKey descriptor
// would. A compound path is joined with "|" to form a single storage id,
// matching RxDB's composite-primary-key convention.
func ExtractID(d Document, path []string) (string, error) {
	if len(path) == 0 {
		return "", NewErrInvalidPrimaryKey("primary key path is empty")
	}
	if len(path) == 1 {
		v, ok := d[path[0]]
		if !ok || v == nil {
			return "", NewErrInvalidPrimaryKey("missing field " + path[0])
		}
		s, ok := v.(string)
		if !ok {
			return "", NewErrInvalidPrimaryKey("field " + path[0] + " is not a string")
		}
		return s, nil
	}
	parts := make([]string, 0, len(path))
	for _, seg := range path {
		v, ok := d[seg]
		if !ok || v == nil {
			return "", NewErrInvalidPrimaryKey("missing field " + seg)
		}
		s, ok := v.(string)
		if !ok {
			return "", NewErrInvalidPrimaryKey("field " + seg + " is not a string")
		}
		parts = append(parts, s)
	}
	return joinCompound(parts), nil
}

func joinCompound(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += "|" + p
	}
	return out
}
