// Package changefeed implements the collection's broadcast change stream:
// a bulk write publishes at most one EventBulk (none when it produced no
// events), and every subscriber active at publish time receives it unless
// that subscriber's buffer is full. No backlog is kept for subscribers
// that join late.
package changefeed

import (
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/kasuganosora/docstore/pkg/writer"
)

// EventBulk is a set of change events committed atomically by one write
// transaction. ID is a random token a replicator can use to deduplicate a
// bulk it has already applied.
type EventBulk struct {
	ID     string
	Events []writer.ChangeEvent
}

// NewEventBulk mints an EventBulk with a fresh random id.
func NewEventBulk(events []writer.ChangeEvent) EventBulk {
	return EventBulk{ID: uuid.NewString(), Events: events}
}

// subscriberBuffer bounds how many undelivered bulks a slow subscriber can
// accumulate before Publish starts dropping for it. Publication must never
// block the writer, so a full subscriber channel loses bulks rather than
// stalling the bulk write engine.
const subscriberBuffer = 256

// Publisher is a single broadcast stream per collection instance.
type Publisher struct {
	mu     sync.RWMutex
	subs   map[int]chan EventBulk
	nextID int
	closed bool
	logger *log.Logger
}

// New creates a Publisher using the standard library default logger for
// dropped-bulk warnings.
func New() *Publisher {
	return &Publisher{
		subs:   make(map[int]chan EventBulk),
		logger: log.Default(),
	}
}

// Subscribe registers a new listener and returns its channel plus an
// unsubscribe function. The channel only ever receives bulks published
// after Subscribe returns.
func (p *Publisher) Subscribe() (<-chan EventBulk, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan EventBulk, subscriberBuffer)
	if p.closed {
		close(ch)
		return ch, func() {}
	}

	id := p.nextID
	p.nextID++
	p.subs[id] = ch

	unsubscribe := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if sub, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(sub)
		}
	}
	return ch, unsubscribe
}

// Publish broadcasts bulk to every current subscriber. It never blocks: a
// subscriber whose buffer is full drops the bulk rather than stalling the
// caller.
func (p *Publisher) Publish(bulk EventBulk) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return
	}
	for id, ch := range p.subs {
		select {
		case ch <- bulk:
		default:
			p.logger.Printf("changefeed: subscriber %d is slow, dropping bulk %s", id, bulk.ID)
		}
	}
}

// Close completes the stream: every subscriber channel is closed and no
// further subscriptions are accepted. Idempotent.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	for id, ch := range p.subs {
		close(ch)
		delete(p.subs, id)
	}
}
