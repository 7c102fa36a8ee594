// Package timer implements the kernel's deferred callback list.
//
// Entries are kept in ascending order of expiry and each entry stores its
// delay relative to the entry in front of it, so a clock tick only touches
// the head of the list. The list lives in a fixed array of request slots; a
// request slot is free when it has no callback.
package timer

import (
	"errors"
	"fmt"
)

// DefaultCapacity is the number of simultaneous timer requests.
const DefaultCapacity = 64

// Timer errors.
var (
	// ErrFull is the panic value raised when no request slot is free.
	ErrFull = errors.New("no more time requests free")
)

// Func is a timer callback.
type Func func()

type request struct {
	delta int64
	fn    Func
	next  int
}

const none = -1

// Queue is a delta-encoded list of timer requests.
type Queue struct {
	requests []request
	head     int
	size     int
}

// New creates a queue with room for capacity requests.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	q := &Queue{
		requests: make([]request, capacity),
		head:     none,
	}
	for i := range q.requests {
		q.requests[i].next = none
	}
	return q
}

// Cap returns the number of request slots.
func (q *Queue) Cap() int { return len(q.requests) }

// Len returns the number of queued requests.
func (q *Queue) Len() int { return q.size }

// Add arranges for fn to run after ticks clock ticks. A non-positive delay
// runs fn before Add returns. Running out of request slots panics with ErrFull.
func (q *Queue) Add(ticks int64, fn Func) {
	if err := q.TryAdd(ticks, fn); err != nil {
		panic(err)
	}
}

// TryAdd is Add reporting a full queue as an error wrapping ErrFull.
func (q *Queue) TryAdd(ticks int64, fn Func) error {
	if fn == nil {
		return nil
	}
	if ticks <= 0 {
		fn()
		return nil
	}
	slot := q.freeSlot()
	if slot == none {
		return fmt.Errorf("%w: capacity %d", ErrFull, len(q.requests))
	}

	prev := none
	cur := q.head
	for cur != none && q.requests[cur].delta <= ticks {
		ticks -= q.requests[cur].delta
		prev = cur
		cur = q.requests[cur].next
	}
	q.requests[slot] = request{delta: ticks, fn: fn, next: cur}
	if cur != none {
		q.requests[cur].delta -= ticks
	}
	if prev == none {
		q.head = slot
	} else {
		q.requests[prev].next = slot
	}
	q.size++
	return nil
}

func (q *Queue) freeSlot() int {
	for i := range q.requests {
		if q.requests[i].fn == nil {
			return i
		}
	}
	return none
}

// Tick advances the clock by one tick and fires every expired request.
// Callbacks may add new requests.
func (q *Queue) Tick() {
	if q.head == none {
		return
	}
	q.requests[q.head].delta--
	for q.head != none && q.requests[q.head].delta <= 0 {
		slot := q.head
		fn := q.requests[slot].fn
		q.head = q.requests[slot].next
		q.requests[slot] = request{next: none}
		q.size--
		fn()
	}
}

// Pending returns the absolute remaining ticks of every request, head first.
func (q *Queue) Pending() []int64 {
	var result []int64
	var sum int64
	for cur := q.head; cur != none; cur = q.requests[cur].next {
		sum += q.requests[cur].delta
		result = append(result, sum)
	}
	return result
}
