package engine

import (
	"container/list"

	"github.com/google/uuid"
)

// IdempotencyChecker implements two-tier command deduplication: a hot
// in-memory LRU over recent command IDs, backed by a Postgres lookup for
// IDs that have aged out of the cache.
type IdempotencyChecker struct {
	lru       *idempotencyLRU
	dbChecker DBIdempotencyChecker
}

// DBIdempotencyChecker is the cold-path dedup lookup against the
// operation log.
type DBIdempotencyChecker interface {
	IsProcessed(commandID uuid.UUID) (bool, error)
}

func NewIdempotencyChecker(capacity int, dbChecker DBIdempotencyChecker) *IdempotencyChecker {
	return &IdempotencyChecker{
		lru:       newIdempotencyLRU(capacity),
		dbChecker: dbChecker,
	}
}

// IsDuplicate reports whether the command ID has been processed before.
// A DB lookup failure is treated as not-duplicate so a database hiccup
// cannot stall processing; the operation log's unique constraint is the
// final backstop.
func (ic *IdempotencyChecker) IsDuplicate(id uuid.UUID) bool {
	if ic.lru.contains(id) {
		return true
	}
	if ic.dbChecker != nil {
		processed, err := ic.dbChecker.IsProcessed(id)
		if err != nil {
			return false
		}
		if processed {
			ic.lru.add(id)
			return true
		}
	}
	return false
}

// MarkProcessed records the ID after successful processing.
func (ic *IdempotencyChecker) MarkProcessed(id uuid.UUID) {
	ic.lru.add(id)
}

// Warm preloads recent command IDs so restarts avoid cold DB lookups.
func (ic *IdempotencyChecker) Warm(ids []uuid.UUID) {
	for _, id := range ids {
		ic.lru.add(id)
	}
}

// Keys exports the cached IDs for snapshot state.
func (ic *IdempotencyChecker) Keys() []uuid.UUID {
	return ic.lru.keys()
}

// Size returns the current LRU occupancy.
func (ic *IdempotencyChecker) Size() int {
	return ic.lru.order.Len()
}

// idempotencyLRU is not safe for concurrent use; only the single-threaded
// engine touches it.
type idempotencyLRU struct {
	capacity int
	cache    map[uuid.UUID]*list.Element
	order    *list.List
}

func newIdempotencyLRU(capacity int) *idempotencyLRU {
	return &idempotencyLRU{
		capacity: capacity,
		cache:    make(map[uuid.UUID]*list.Element, capacity),
		order:    list.New(),
	}
}

func (l *idempotencyLRU) contains(id uuid.UUID) bool {
	elem, ok := l.cache[id]
	if ok {
		l.order.MoveToFront(elem)
	}
	return ok
}

func (l *idempotencyLRU) add(id uuid.UUID) {
	if elem, ok := l.cache[id]; ok {
		l.order.MoveToFront(elem)
		return
	}
	l.cache[id] = l.order.PushFront(id)
	if l.order.Len() > l.capacity {
		oldest := l.order.Back()
		l.order.Remove(oldest)
		delete(l.cache, oldest.Value.(uuid.UUID))
	}
}

func (l *idempotencyLRU) keys() []uuid.UUID {
	out := make([]uuid.UUID, 0, l.order.Len())
	for elem := l.order.Back(); elem != nil; elem = elem.Prev() {
		out = append(out, elem.Value.(uuid.UUID))
	}
	return out
}
