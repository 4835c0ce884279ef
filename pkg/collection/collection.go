// Package collection is the storage instance façade: it binds the
// revision codec, the write categorizer, and the badger-backed substrate
// to a named (database, collection) pair, and exposes the bulk write
// engine and read paths as a single API.
package collection

import (
	"context"
	"log"
	"sync"

	"github.com/kasuganosora/docstore/pkg/changefeed"
	"github.com/kasuganosora/docstore/pkg/document"
	"github.com/kasuganosora/docstore/pkg/kv"
)

// Clock supplies the wall-clock timestamp (ms) used for $lastWriteAt and
// event timing. Tests inject a deterministic clock; production code wires
// time.Now().UnixMilli.
type Clock func() int64

// Config describes one storage instance.
type Config struct {
	Database   string
	Name       string
	PrimaryKey PrimaryKey
	Store      kv.Store
	Clock      Clock
	Logger     *log.Logger
}

// Collection is a single (database, name) storage instance: the sole
// writer for its substrate. Coordinating multiple writer processes
// against the same substrate (leader election) is an external concern.
type Collection struct {
	database   string
	name       string
	primaryKey PrimaryKey
	store      kv.Store
	clock      Clock
	logger     *log.Logger
	publisher  *changefeed.Publisher

	mu     sync.RWMutex
	closed bool
}

// Open binds cfg's substrate handles into a ready-to-use Collection.
// Opening the three tables is the substrate's responsibility (pkg/kv);
// Open itself does no I/O beyond constructing the façade.
func Open(cfg Config) *Collection {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = defaultClock
	}
	return &Collection{
		database:   cfg.Database,
		name:       cfg.Name,
		primaryKey: cfg.PrimaryKey,
		store:      cfg.Store,
		clock:      clock,
		logger:     logger,
		publisher:  changefeed.New(),
	}
}

// ChangeStream returns a subscribeable stream of EventBulk plus an
// unsubscribe function.
func (c *Collection) ChangeStream() (<-chan changefeed.EventBulk, func()) {
	return c.publisher.Subscribe()
}

// Close sets the closed flag, completes the change stream, and releases
// the substrate handle. Idempotent.
func (c *Collection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.publisher.Close()
	return c.store.Close()
}

// Remove clears live and changes-meta, then closes the instance. deleted
// is left in place for the substrate's own drop/GC policy.
func (c *Collection) Remove(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return document.NewErrClosed(c.name)
	}
	c.mu.Unlock()

	if err := c.store.Live().Clear(ctx); err != nil {
		return err
	}
	if err := c.store.ChangesMeta().Clear(ctx); err != nil {
		return err
	}
	return c.Close()
}

// GetAttachmentData always fails: attachment streams are out of scope for
// this engine.
func (c *Collection) GetAttachmentData(ctx context.Context, id, attachmentName string) ([]byte, error) {
	return nil, document.NewErrUnsupported("getAttachmentData")
}

func (c *Collection) checkOpen() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return document.NewErrClosed(c.name)
	}
	return nil
}

func defaultClock() int64 {
	return nowMillis()
}
