// Package aggregate provides multi-versioned scalar aggregates sharded
// across worker slots. Each slot owns a lock-free history list of
// (value, version) nodes; readers at any version see the aggregate as of
// that version, combined across slots.
package aggregate

import "sync/atomic"

// Aggregator describes one aggregate: its zero element, the per-slot
// sequential combining operator, and the cross-slot combining operator.
// CombOp must be associative and commutative so the cross-slot fold order is
// irrelevant.
type Aggregator[T any] struct {
	Zero   T
	SeqOp  func(agg, value T) T
	CombOp func(agg, value T) T
}

// node is one entry in a slot's version history. Once linked, a node is
// immutable; the list is never pruned.
type node[T any] struct {
	value   T
	version uint64
	next    *node[T]
}

// List is a single slot's versioned aggregate history, newest at head.
//
// Updates store the head with a plain atomic store, not CAS: each list has
// exactly one writer (the owning worker slot), enforced by Aggregate.
// Readers may run concurrently with the writer and use the atomic head load
// as their snapshot.
type List[T any] struct {
	head atomic.Pointer[node[T]]
	agg  Aggregator[T]
}

// NewList creates an empty history with the given aggregator.
func NewList[T any](agg Aggregator[T]) *List[T] {
	return &List[T]{agg: agg}
}

// Zero returns the aggregator's zero element.
func (l *List[T]) Zero() T {
	return l.agg.Zero
}

// Get returns the aggregate value at the given version: the value of the
// node with the largest version not exceeding the requested one, or the zero
// element if no such node exists.
func (l *List[T]) Get(version uint64) T {
	if n := getNode(l.head.Load(), version); n != nil {
		return n.value
	}
	return l.agg.Zero
}

// SeqUpdate folds value into the aggregate at version using the sequential
// operator. Must only be called by the slot's owning writer.
func (l *List[T]) SeqUpdate(value T, version uint64) {
	l.update(l.agg.SeqOp, value, version)
}

// CombUpdate folds value into the aggregate at version using the combining
// operator. Must only be called by the slot's owning writer.
func (l *List[T]) CombUpdate(value T, version uint64) {
	l.update(l.agg.CombOp, value, version)
}

func (l *List[T]) update(op func(T, T) T, value T, version uint64) {
	head := l.head.Load()
	old := l.agg.Zero
	if n := getNode(head, version); n != nil {
		old = n.value
	}
	l.head.Store(&node[T]{value: op(old, value), version: version, next: head})
}

// getNode returns the node with the largest version less than or equal to
// the requested one, preferring an exact match, or nil.
func getNode[T any](head *node[T], version uint64) *node[T] {
	var best *node[T]
	var bestVersion uint64
	for n := head; n != nil; n = n.next {
		if n.version == version {
			return n
		}
		if n.version < version && (best == nil || n.version > bestVersion) {
			best = n
			bestVersion = n.version
		}
	}
	return best
}

// Aggregate shards an aggregate across worker slots. Writers route updates
// to their own slot; readers fold the combining operator over all slots.
type Aggregate[T any] struct {
	agg   Aggregator[T]
	slots []*List[T]
}

// New creates an aggregate with one history list per worker slot.
func New[T any](agg Aggregator[T], maxConcurrency int) *Aggregate[T] {
	slots := make([]*List[T], maxConcurrency)
	for i := range slots {
		slots[i] = NewList(agg)
	}
	return &Aggregate[T]{agg: agg, slots: slots}
}

// Slots returns the number of worker slots.
func (a *Aggregate[T]) Slots() int {
	return len(a.slots)
}

// SeqUpdate applies a sequential update on the given slot.
func (a *Aggregate[T]) SeqUpdate(slot int, value T, version uint64) {
	a.slots[slot].SeqUpdate(value, version)
}

// CombUpdate applies a combining update on the given slot.
func (a *Aggregate[T]) CombUpdate(slot int, value T, version uint64) {
	a.slots[slot].CombUpdate(value, version)
}

// Get returns the aggregate at the given version combined across all slots.
func (a *Aggregate[T]) Get(version uint64) T {
	value := a.agg.Zero
	for _, slot := range a.slots {
		value = a.agg.CombOp(value, slot.Get(version))
	}
	return value
}
