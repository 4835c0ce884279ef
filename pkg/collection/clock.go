package collection

import "time"

// nowMillis is the production Clock default. Tests supply their own Clock
// via Config so categorization stays deterministic (pkg/writer never
// reads a clock itself; the bulk write engine captures one timestamp per
// row before the transaction and threads it through).
func nowMillis() int64 {
	return time.Now().UnixMilli()
}
