package collection

import "github.com/kasuganosora/docstore/pkg/document"

// Matcher and Comparator model Query's opaque matcher/comparator pair: the
// planner and sort semantics themselves are an external collaborator, so
// the engine only ever calls caller-supplied functions — mirroring how
// the teacher's datasource layer separates a predicate (domain.Filter)
// from value comparison rather than embedding a SQL planner in the
// storage layer (pkg/resource/badger/datasource.go).
type Matcher func(document.Document) bool

type Comparator func(a, b document.Document) int

// PreparedQuery bundles the matcher/comparator pair with paging.
type PreparedQuery struct {
	Match   Matcher
	Sort    Comparator
	Skip    int
	Limit   int // 0 means unbounded
}
