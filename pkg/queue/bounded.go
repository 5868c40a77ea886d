// Package queue provides fixed capacity FIFO buffers.
package queue

import (
	"errors"

	"github.com/golang/glog"
)

var (
	// ErrFull indicates the item was dropped because the queue is full.
	ErrFull = errors.New("queue full")
	// ErrEmpty indicates nothing is available in the queue.
	ErrEmpty = errors.New("queue empty")
)

// Bounded is a circular FIFO backed by a fixed slice of N slots.
// One slot is always kept empty, so the usable capacity is N-1.
// The slice is allocated once in New and never grows.
//
// Bounded is not safe for concurrent use.
type Bounded[T any] struct {
	// Name is used when reporting overflow and underflow.
	Name string

	slots []T
	head  int
	tail  int
}

// New creates a Bounded queue with the given number of slots.
func New[T any](slots int) *Bounded[T] {
	if slots < 2 {
		panic("queue: at least 2 slots required")
	}
	return &Bounded[T]{slots: make([]T, slots)}
}

// NewWithCapacity creates a Bounded queue holding up to capacity items.
func NewWithCapacity[T any](capacity int) *Bounded[T] {
	return New[T](capacity + 1)
}

// Named sets the name and returns the queue.
func (q *Bounded[T]) Named(name string) *Bounded[T] {
	q.Name = name
	return q
}

// IsEmpty reports whether there is nothing to pop.
func (q *Bounded[T]) IsEmpty() bool {
	return q.head == q.tail
}

// IsFull reports whether the next Push will be dropped.
func (q *Bounded[T]) IsFull() bool {
	return (q.tail+1)%len(q.slots) == q.head
}

// Size returns the number of queued items.
func (q *Bounded[T]) Size() int {
	n := len(q.slots)
	return (q.tail + n - q.head) % n
}

// Capacity returns the number of usable slots.
func (q *Bounded[T]) Capacity() int {
	return len(q.slots) - 1
}

// Push appends an item. When full, the item is dropped and ErrFull returned.
func (q *Bounded[T]) Push(item T) error {
	if q.IsFull() {
		glog.Errorf("queue %s is full, item dropped", q.Name)
		return ErrFull
	}
	q.slots[q.tail] = item
	q.tail = (q.tail + 1) % len(q.slots)
	return nil
}

// Pop removes and returns the oldest item.
// When empty, it returns the zero value and ErrEmpty.
func (q *Bounded[T]) Pop() (item T, err error) {
	if q.IsEmpty() {
		glog.Warningf("queue %s is empty", q.Name)
		return item, ErrEmpty
	}
	var zero T
	item, q.slots[q.head] = q.slots[q.head], zero
	q.head = (q.head + 1) % len(q.slots)
	return item, nil
}

// Peek returns the oldest item without removing it.
func (q *Bounded[T]) Peek() (item T, err error) {
	if q.IsEmpty() {
		glog.Warningf("queue %s is empty", q.Name)
		return item, ErrEmpty
	}
	return q.slots[q.head], nil
}

// Each visits queued items from oldest to newest until fn returns false.
func (q *Bounded[T]) Each(fn func(T) bool) {
	for idx := q.head; idx != q.tail; idx = (idx + 1) % len(q.slots) {
		if !fn(q.slots[idx]) {
			return
		}
	}
}

// Reset drops all queued items.
func (q *Bounded[T]) Reset() {
	var zero T
	for i := range q.slots {
		q.slots[i] = zero
	}
	q.head, q.tail = 0, 0
}
