package badger

import (
	"fmt"
	"strconv"
	"strings"
)

// Key layout, scoped per (database, collection):
//
//	<base>live/row/<id>            -> encoded document
//	<base>live/ts/<padded-ms>/<id> -> <id>                (secondary index)
//	<base>deleted/row/<id>
//	<base>deleted/ts/<padded-ms>/<id>
//	<base>chg/<padded-seq>         -> <id>                (changes-meta log)
//	<base>chg_seq                  -> binary uint64 counter
//
// This mirrors the prefix-plus-scan idiom of the teacher's KeyEncoder
// (pkg/resource/badger/key_encoding.go), generalized from "table" to
// "collection" and with a dedicated ts/ sub-prefix replacing the teacher's
// generic composite-index key for the one secondary index this engine
// needs.
const (
	liveTable    = "live"
	deletedTable = "deleted"
)

// keySpace encodes and decodes keys for one collection.
type keySpace struct {
	base string // "<database>/<collection>/"
}

func newKeySpace(database, collection string) keySpace {
	return keySpace{base: fmt.Sprintf("%s/%s/", database, collection)}
}

func (k keySpace) rowKey(table, id string) []byte {
	return []byte(k.base + table + "/row/" + id)
}

func (k keySpace) rowPrefix(table string) []byte {
	return []byte(k.base + table + "/row/")
}

func (k keySpace) idFromRowKey(table string, key []byte) string {
	prefix := k.rowPrefix(table)
	return string(key[len(prefix):])
}

func (k keySpace) tsKey(table string, ms int64, id string) []byte {
	return []byte(k.base + table + "/ts/" + padInt(ms) + "/" + id)
}

func (k keySpace) tsPrefix(table string) []byte {
	return []byte(k.base + table + "/ts/")
}

func (k keySpace) chgKey(seq int64) []byte {
	return []byte(k.base + "chg/" + padInt(seq))
}

func (k keySpace) chgPrefix() []byte {
	return []byte(k.base + "chg/")
}

func (k keySpace) chgSeqCounterKey() []byte {
	return []byte(k.base + "chg_seq")
}

// padInt zero-pads a (non-negative, for our purposes) integer to 20
// decimal digits so that lexicographic key order matches numeric order —
// the same trick as the teacher's PrimaryKeyGenerator.FormatIntKey.
func padInt(n int64) string {
	return fmt.Sprintf("%020d", n)
}

func parsePaddedInt(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimLeft(s, " "), 10, 64)
}
